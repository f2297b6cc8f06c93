/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	applog "bannerforge/internal/log"
	"bannerforge/internal/scene"
)

// DefaultMaxSize is the undo depth used when none is configured.
const DefaultMaxSize = 50

// Manager keeps the bounded undo/redo history of one editing session. It is safe for
// concurrent use: stack bookkeeping is guarded by a mutex and commands touching the
// same object run one at a time. Overlapping commands on different objects are pushed
// in completion order.
type Manager struct {
	mu      sync.Mutex
	undo    []Command
	redo    []Command
	maxSize int

	locks   *Locks
	canUndo *scene.Channel[bool]
	canRedo *scene.Channel[bool]
	log     *slog.Logger
}

func NewManager(maxSize int) *Manager {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Manager{
		maxSize: maxSize,
		locks:   NewLocks(),
		canUndo: scene.NewChannel(false),
		canRedo: scene.NewChannel(false),
		log:     applog.WithComponent("command"),
	}
}

// CanUndo publishes whether Undo has something to do.
func (m *Manager) CanUndo() *scene.Channel[bool] { return m.canUndo }

// CanRedo publishes whether Redo has something to do.
func (m *Manager) CanRedo() *scene.Channel[bool] { return m.canRedo }

// MaxSize returns the undo depth.
func (m *Manager) MaxSize() int { return m.maxSize }

// Execute applies cmd and records it. Redo history is dropped either way. A failed
// command is not recorded; the error is logged as a warning and returned.
func (m *Manager) Execute(ctx context.Context, cmd Command) error {
	l := applog.WithOperation(m.log, cmd.Name()).With(slog.Any("targets", cmd.Targets()))
	if err := m.run(ctx, cmd, cmd.Apply); err != nil {
		m.mu.Lock()
		m.redo = nil
		m.mu.Unlock()
		m.publish()
		m.warn(l, "command rejected", err)
		return err
	}
	m.push(cmd)
	l.Debug("command executed")
	return nil
}

// Reject surfaces a command that could not be built, e.g. deleting the frame, with
// the same warning a failed Execute produces.
func (m *Manager) Reject(err error) {
	if err != nil {
		m.warn(m.log, "command rejected", err)
	}
}

// AddToHistory records cmd without applying it, for mutations already applied live
// during a gesture.
func (m *Manager) AddToHistory(cmd Command) {
	m.push(cmd)
	applog.WithOperation(m.log, cmd.Name()).Debug("command recorded", slog.Any("targets", cmd.Targets()))
}

func (m *Manager) push(cmd Command) {
	m.mu.Lock()
	m.undo = append(m.undo, cmd)
	if over := len(m.undo) - m.maxSize; over > 0 {
		// drop the oldest entries
		m.undo = append([]Command(nil), m.undo[over:]...)
	}
	m.redo = nil
	m.mu.Unlock()
	m.publish()
}

// Undo inverts the most recent command. It returns false when there is nothing to
// undo. A command whose target is gone is dropped from history; any other failure
// puts it back so it can be retried.
func (m *Manager) Undo(ctx context.Context) (bool, error) {
	m.mu.Lock()
	n := len(m.undo)
	if n == 0 {
		m.mu.Unlock()
		return false, nil
	}
	cmd := m.undo[n-1]
	m.undo = m.undo[:n-1]
	m.mu.Unlock()

	l := applog.WithOperation(m.log, cmd.Name()).With(slog.String("dir", "undo"))
	if err := m.run(ctx, cmd, cmd.Invert); err != nil {
		m.warn(l, "undo failed", err)
		if scene.ClassOf(err) != scene.ClassState {
			m.mu.Lock()
			m.undo = append(m.undo, cmd)
			m.mu.Unlock()
		}
		m.publish()
		return true, err
	}
	m.mu.Lock()
	m.redo = append(m.redo, cmd)
	m.mu.Unlock()
	m.publish()
	l.Debug("command undone")
	return true, nil
}

// Redo reapplies the most recently undone command. It returns false when there is
// nothing to redo.
func (m *Manager) Redo(ctx context.Context) (bool, error) {
	m.mu.Lock()
	n := len(m.redo)
	if n == 0 {
		m.mu.Unlock()
		return false, nil
	}
	cmd := m.redo[n-1]
	m.redo = m.redo[:n-1]
	m.mu.Unlock()

	l := applog.WithOperation(m.log, cmd.Name()).With(slog.String("dir", "redo"))
	if err := m.run(ctx, cmd, cmd.Reapply); err != nil {
		m.warn(l, "redo failed", err)
		if scene.ClassOf(err) != scene.ClassState {
			m.mu.Lock()
			m.redo = append(m.redo, cmd)
			m.mu.Unlock()
		}
		m.publish()
		return true, err
	}
	m.mu.Lock()
	m.undo = append(m.undo, cmd)
	if over := len(m.undo) - m.maxSize; over > 0 {
		m.undo = append([]Command(nil), m.undo[over:]...)
	}
	m.mu.Unlock()
	m.publish()
	l.Debug("command redone")
	return true, nil
}

// IsClean reports whether there is nothing to undo.
func (m *Manager) IsClean() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo) == 0
}

// Clear empties both stacks, e.g. when switching documents.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.undo, m.redo = nil, nil
	m.mu.Unlock()
	m.publish()
}

// Stats returns the current stack depths.
func (m *Manager) Stats() (undo, redo int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo), len(m.redo)
}

// History lists the undo stack command names, oldest first.
func (m *Manager) History() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.undo))
	for i, c := range m.undo {
		out[i] = c.Name()
	}
	return out
}

func (m *Manager) publish() {
	m.mu.Lock()
	u, r := len(m.undo) > 0, len(m.redo) > 0
	m.mu.Unlock()
	if m.canUndo.Current() != u {
		m.canUndo.Publish(u)
	}
	if m.canRedo.Current() != r {
		m.canRedo.Publish(r)
	}
}

// run holds the target locks for the duration of fn and turns panics into state errors
// so nothing escapes the command boundary.
func (m *Manager) run(ctx context.Context, cmd Command, fn func(context.Context) error) (err error) {
	release, err := m.locks.Acquire(ctx, cmd.Targets())
	if err != nil {
		return fmt.Errorf("%s: wait for targets: %w", cmd.Name(), err)
	}
	defer release()
	defer func() {
		if r := recover(); r != nil {
			err = &scene.Error{Class: scene.ClassState, Op: cmd.Name(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return fn(ctx)
}

func (m *Manager) warn(l *slog.Logger, msg string, err error) {
	var se *scene.Error
	if errors.As(err, &se) {
		l.Warn(msg, slog.String("class", se.Class.String()), slog.String("object", se.ObjectID), slog.Any("err", err))
		return
	}
	l.Warn(msg, slog.Any("err", err))
}
