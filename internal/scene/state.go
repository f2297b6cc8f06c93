/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"slices"
	"sync"

	"bannerforge/internal/geom"
)

// FrameBounds is the published frame rectangle. Present is false when there is no frame.
type FrameBounds struct {
	Rect    geom.Rect
	Present bool
}

// GuideLine is a transient snap guide. It is a render-only artifact and never part of
// the object list.
type GuideLine struct {
	Orientation string // "vertical" or "horizontal"
	Position    float64
	From        geom.Pt
	To          geom.Pt
}

// State owns the ordered object list, the selection and the reactive read channels.
// All access goes through its methods; returned objects are copies.
//
// Subscribers are notified after the mutation is committed and must not mutate the
// scene from inside a notification.
type State struct {
	mu       sync.RWMutex
	objects  []*Object
	selected string
	rev      uint64
	render   func()

	pubMu          sync.Mutex
	changes        *Channel[uint64]
	selectedObject *Channel[*Object]
	selectedProps  *Channel[Properties]
	frameBounds    *Channel[FrameBounds]
	guides         *Channel[[]GuideLine]
}

func NewState() *State {
	return &State{
		changes:        NewChannel[uint64](0),
		selectedObject: NewChannel[*Object](nil),
		selectedProps:  NewChannel[Properties](nil),
		frameBounds:    NewChannel(FrameBounds{}),
		guides:         NewChannel[[]GuideLine](nil),
	}
}

// SetRenderHook installs the render-surface callback invoked after every mutation batch.
func (s *State) SetRenderHook(fn func()) {
	s.mu.Lock()
	s.render = fn
	s.mu.Unlock()
}

// Changes publishes the scene revision after every structural or field mutation.
func (s *State) Changes() *Channel[uint64] { return s.changes }

// SelectedObject publishes a copy of the selected object, or nil.
func (s *State) SelectedObject() *Channel[*Object] { return s.selectedObject }

// SelectedProperties publishes the extracted properties of the selected object, or nil.
func (s *State) SelectedProperties() *Channel[Properties] { return s.selectedProps }

// FrameBounds publishes the current frame rectangle.
func (s *State) FrameBounds() *Channel[FrameBounds] { return s.frameBounds }

// Guides publishes the active snap guide lines.
func (s *State) Guides() *Channel[[]GuideLine] { return s.guides }

// Revision returns the number of committed mutations.
func (s *State) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rev
}

// Objects returns copies of all objects, top-most first.
func (s *State) Objects() []Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Object, len(s.objects))
	for i, o := range s.objects {
		out[i] = o.Clone()
	}
	return out
}

func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Get returns a copy of the object with id.
func (s *State) Get(id string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.objects[i].Clone(), true
	}
	return Object{}, false
}

// Has reports whether an object with id is in the scene.
func (s *State) Has(id string) bool { return s.IndexOf(id) >= 0 }

// IndexOf returns the list position of id, or -1.
func (s *State) IndexOf(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexLocked(id)
}

// Frame returns a copy of the main frame.
func (s *State) Frame() (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f := s.frameLocked(); f != nil {
		return f.Clone(), true
	}
	return Object{}, false
}

func (s *State) indexLocked(id string) int {
	return slices.IndexFunc(s.objects, func(o *Object) bool { return o.ID == id })
}

func (s *State) frameLocked() *Object {
	if n := len(s.objects); n > 0 && s.objects[n-1].IsFrame() {
		return s.objects[n-1]
	}
	return nil
}

// mutate runs fn under the write lock and, when fn reports a change, bumps the
// revision and broadcasts. Broadcast order: changes, selection, render hook.
func (s *State) mutate(fn func() (changed bool, err error)) error {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	changed, err := fn()
	if !changed {
		s.mu.Unlock()
		return err
	}
	s.rev++
	rev := s.rev
	var sel *Object
	if i := s.indexLocked(s.selected); i >= 0 {
		c := s.objects[i].Clone()
		sel = &c
	} else {
		s.selected = ""
	}
	render := s.render
	s.mu.Unlock()

	s.changes.Publish(rev)
	s.selectedObject.Publish(sel)
	if sel != nil {
		s.selectedProps.Publish(Extract(*sel))
	} else {
		s.selectedProps.Publish(nil)
	}
	if render != nil {
		render()
	}
	return err
}

// Insert places obj at index (clamped). The frame always goes last; regular objects
// are never placed below the frame. Duplicate ids and a second frame are rejected.
func (s *State) Insert(obj Object, index int) error {
	return s.mutate(func() (bool, error) {
		if obj.ID == "" {
			return false, Validationf("insert", "", "object id is empty")
		}
		if s.indexLocked(obj.ID) >= 0 {
			return false, Validationf("insert", obj.ID, "duplicate object id")
		}
		c := obj.Clone()
		if c.IsFrame() {
			if s.frameLocked() != nil {
				return false, Validationf("insert", obj.ID, "scene already has a frame")
			}
			c.Clip = nil
			s.objects = append(s.objects, &c)
			return true, nil
		}
		limit := len(s.objects)
		if s.frameLocked() != nil {
			limit--
		}
		index = max(0, min(index, limit))
		s.objects = slices.Insert(s.objects, index, &c)
		return true, nil
	})
}

// Add inserts obj at the top of the stack.
func (s *State) Add(obj Object) error { return s.Insert(obj, 0) }

// Remove deletes the object and returns the removed copy and its former index.
func (s *State) Remove(id string) (Object, int, error) {
	var removed Object
	idx := -1
	err := s.mutate(func() (bool, error) {
		i := s.indexLocked(id)
		if i < 0 {
			return false, Missing("remove", id)
		}
		removed = s.objects[i].Clone()
		idx = i
		s.objects = slices.Delete(s.objects, i, i+1)
		return true, nil
	})
	return removed, idx, err
}

// Update applies fn to the live object. fn must not retain the pointer.
func (s *State) Update(id string, fn func(*Object)) error {
	return s.mutate(func() (bool, error) {
		i := s.indexLocked(id)
		if i < 0 {
			return false, Missing("update", id)
		}
		fn(s.objects[i])
		return true, nil
	})
}

// UpdateMany applies fn to every listed object as one mutation. If any id is missing
// nothing is changed.
func (s *State) UpdateMany(ids []string, fn func(*Object)) error {
	return s.mutate(func() (bool, error) {
		targets := make([]*Object, 0, len(ids))
		for _, id := range ids {
			i := s.indexLocked(id)
			if i < 0 {
				return false, Missing("update", id)
			}
			targets = append(targets, s.objects[i])
		}
		for _, o := range targets {
			fn(o)
		}
		return len(targets) > 0, nil
	})
}

// UpdateAll applies fn to every object except the frame.
func (s *State) UpdateAll(fn func(*Object)) {
	_ = s.mutate(func() (bool, error) {
		changed := false
		for _, o := range s.objects {
			if o.IsFrame() {
				continue
			}
			fn(o)
			changed = true
		}
		return changed, nil
	})
}

// BringForward moves id one step towards the top.
func (s *State) BringForward(id string) error {
	return s.mutate(func() (bool, error) {
		i := s.indexLocked(id)
		if i < 0 {
			return false, Missing("bring_forward", id)
		}
		if s.objects[i].IsFrame() {
			return false, Validationf("bring_forward", id, "frame is pinned to the back")
		}
		if i == 0 {
			return false, nil
		}
		s.objects[i-1], s.objects[i] = s.objects[i], s.objects[i-1]
		return true, nil
	})
}

// SendBackward moves id one step towards the bottom, never below the frame.
func (s *State) SendBackward(id string) error {
	return s.mutate(func() (bool, error) {
		i := s.indexLocked(id)
		if i < 0 {
			return false, Missing("send_backward", id)
		}
		if s.objects[i].IsFrame() {
			return false, Validationf("send_backward", id, "frame is pinned to the back")
		}
		if i+1 >= len(s.objects) || s.objects[i+1].IsFrame() {
			return false, nil
		}
		s.objects[i+1], s.objects[i] = s.objects[i], s.objects[i+1]
		return true, nil
	})
}

// Replace swaps the whole object list, e.g. on import. The frame is re-sent to the back
// and the selection is cleared.
func (s *State) Replace(objs []Object) error {
	return s.mutate(func() (bool, error) {
		next := make([]*Object, 0, len(objs))
		var frame *Object
		seen := make(map[string]bool, len(objs))
		for _, o := range objs {
			if seen[o.ID] {
				return false, Validationf("replace", o.ID, "duplicate object id")
			}
			seen[o.ID] = true
			c := o.Clone()
			if c.IsFrame() {
				if frame != nil {
					return false, Validationf("replace", o.ID, "scene already has a frame")
				}
				frame = &c
				continue
			}
			next = append(next, &c)
		}
		if frame != nil {
			frame.Clip = nil
			next = append(next, frame)
		}
		s.objects = next
		s.selected = ""
		return true, nil
	})
}

// Select makes id the selected object. An empty id clears the selection.
func (s *State) Select(id string) error {
	return s.mutate(func() (bool, error) {
		if id != "" && s.indexLocked(id) < 0 {
			return false, Missing("select", id)
		}
		s.selected = id
		return true, nil
	})
}

// ClearSelection drops the selection.
func (s *State) ClearSelection() { _ = s.Select("") }

// SelectedID returns the selected object id or "".
func (s *State) SelectedID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// PublishFrameBounds republishes the frame rectangle; the frame manager owns the value.
func (s *State) PublishFrameBounds(b FrameBounds) { s.frameBounds.Publish(b) }

// SetGuides shows the given guide lines.
func (s *State) SetGuides(lines []GuideLine) { s.guides.Publish(slices.Clone(lines)) }

// ClearGuides removes all guide lines.
func (s *State) ClearGuides() {
	if len(s.guides.Current()) == 0 {
		return
	}
	s.guides.Publish(nil)
}
