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
	"slices"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Locks serializes commands per object id: a second command on the same object waits
// until the first has fully settled. Ids are always acquired in sorted order so
// multi-object commands cannot deadlock each other.
type Locks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	sem  *semaphore.Weighted
	refs int
}

func NewLocks() *Locks {
	return &Locks{entries: make(map[string]*lockEntry)}
}

func (l *Locks) ref(id string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok {
		e = &lockEntry{sem: semaphore.NewWeighted(1)}
		l.entries[id] = e
	}
	e.refs++
	return e
}

func (l *Locks) unref(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[id]; ok {
		e.refs--
		if e.refs <= 0 {
			delete(l.entries, id)
		}
	}
}

// Acquire blocks until every id is free or ctx is done. Calling release more than
// once is harmless.
func (l *Locks) Acquire(ctx context.Context, ids []string) (release func(), err error) {
	keys := slices.Clone(ids)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	held := make([]string, 0, len(keys))
	entries := make([]*lockEntry, 0, len(keys))
	unlock := func() {
		for i := len(held) - 1; i >= 0; i-- {
			entries[i].sem.Release(1)
			l.unref(held[i])
		}
	}
	for _, id := range keys {
		e := l.ref(id)
		if err := e.sem.Acquire(ctx, 1); err != nil {
			l.unref(id)
			unlock()
			return nil, err
		}
		held = append(held, id)
		entries = append(entries, e)
	}
	var once sync.Once
	return func() { once.Do(unlock) }, nil
}

// Held returns the number of ids currently referenced.
func (l *Locks) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
