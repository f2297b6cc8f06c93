/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import "sync"

// Channel is a reactive value holder: it keeps the last published value, replays it to
// late subscribers and notifies every subscriber on Publish.
type Channel[T any] struct {
	mu     sync.Mutex
	cur    T
	nextID int
	subs   map[int]func(T)
	order  []int
}

func NewChannel[T any](initial T) *Channel[T] {
	return &Channel[T]{cur: initial, subs: make(map[int]func(T))}
}

// Current returns the last published value.
func (c *Channel[T]) Current() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

// Subscribe registers fn, calls it immediately with the current value and returns
// a function that removes the subscription.
func (c *Channel[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.order = append(c.order, id)
	cur := c.cur
	c.mu.Unlock()

	fn(cur)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
		for i, v := range c.order {
			if v == id {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
}

// Publish stores v and notifies subscribers in subscription order.
func (c *Channel[T]) Publish(v T) {
	c.mu.Lock()
	c.cur = v
	fns := make([]func(T), 0, len(c.order))
	for _, id := range c.order {
		fns = append(fns, c.subs[id])
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}
