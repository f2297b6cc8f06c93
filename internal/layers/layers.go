/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package layers derives the user-facing layer list from the scene. The list is
// read-only; every change goes through a command on the underlying object.
package layers

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"bannerforge/internal/command"
	"bannerforge/internal/scene"
)

// Layer is one row of the layer list.
type Layer struct {
	ID      string
	Name    string
	Kind    scene.Kind
	Visible bool
	Locked  bool
	// Order is the position in the list, 0 being the top-most object.
	Order int
}

const snippetLen = 28

// DefaultName is the custom name, else a label from the kind and, for text, the first
// characters of its content.
func DefaultName(o scene.Object) string {
	if o.Metadata.CustomName != "" {
		return o.Metadata.CustomName
	}
	switch o.Kind {
	case scene.KindText, scene.KindButton:
		label := "Text"
		if o.Kind == scene.KindButton {
			label = "Button"
		}
		s := strings.Join(strings.Fields(o.Visual.Text), " ")
		if s == "" {
			return label
		}
		if utf8.RuneCountInString(s) > snippetLen {
			s = strings.TrimSpace(string([]rune(s)[:snippetLen])) + "…"
		}
		return label + ": " + s
	case scene.KindImage:
		return "Image"
	case scene.KindFrame:
		return "Frame"
	case scene.KindShape:
		return "Shape"
	}
	return string(o.Kind)
}

// Derive projects the object list into layers, preserving order.
func Derive(objs []scene.Object) []Layer {
	out := make([]Layer, len(objs))
	for i, o := range objs {
		out[i] = Layer{ID: o.ID, Name: DefaultName(o), Kind: o.Kind, Visible: o.Visible, Locked: o.Locked, Order: i}
	}
	return out
}

// Manager keeps the derived list current and builds the layer commands.
type Manager struct {
	state    *scene.State
	commands *command.Manager
	layers   *scene.Channel[[]Layer]
	unsub    func()
	once     sync.Once
}

// NewManager subscribes to scene changes. Call Close to stop.
func NewManager(state *scene.State, commands *command.Manager) *Manager {
	m := &Manager{state: state, commands: commands, layers: scene.NewChannel[[]Layer](nil)}
	m.unsub = state.Changes().Subscribe(func(uint64) { m.layers.Publish(Derive(state.Objects())) })
	return m
}

// Layers publishes the current layer list.
func (m *Manager) Layers() *scene.Channel[[]Layer] { return m.layers }

// List returns the current layer list.
func (m *Manager) List() []Layer { return m.layers.Current() }

func (m *Manager) Close() { m.once.Do(m.unsub) }

// CanDeleteLayer is false for the frame.
func (m *Manager) CanDeleteLayer(id string) bool {
	o, ok := m.state.Get(id)
	return ok && !o.IsFrame()
}

// CanReorderLayer reports whether id may move to toIndex.
func (m *Manager) CanReorderLayer(id string, toIndex int) bool {
	_, err := command.NewReorderLayer(m.state, id, toIndex)
	return err == nil
}

// Delete removes a layer through the command manager.
func (m *Manager) Delete(ctx context.Context, id string) error {
	c, err := command.NewDeleteLayer(m.state, id)
	if err != nil {
		return m.reject(err)
	}
	return m.commands.Execute(ctx, c)
}

// Reorder moves a layer to toIndex in the list.
func (m *Manager) Reorder(ctx context.Context, id string, toIndex int) error {
	c, err := command.NewReorderLayer(m.state, id, toIndex)
	if err != nil {
		return m.reject(err)
	}
	return m.commands.Execute(ctx, c)
}

// Rename sets the layer's custom name.
func (m *Manager) Rename(ctx context.Context, id, name string) error {
	c, err := command.Rename(m.state, id, name)
	if err != nil {
		return m.reject(err)
	}
	return m.commands.Execute(ctx, c)
}

// ToggleVisibility flips the visible flag.
func (m *Manager) ToggleVisibility(ctx context.Context, id string) error {
	c, err := command.ToggleVisibility(m.state, id)
	if err != nil {
		return m.reject(err)
	}
	return m.commands.Execute(ctx, c)
}

// ToggleLock flips the locked flag.
func (m *Manager) ToggleLock(ctx context.Context, id string) error {
	c, err := command.ToggleLock(m.state, id)
	if err != nil {
		return m.reject(err)
	}
	return m.commands.Execute(ctx, c)
}

func (m *Manager) reject(err error) error {
	m.commands.Reject(err)
	return err
}
