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
	"fmt"

	"bannerforge/internal/geom"
	"bannerforge/internal/scene"
)

// FrameState is the part of the frame a resize or ratio change touches.
type FrameState struct {
	Left        float64
	Top         float64
	Width       float64
	Height      float64
	ScaleX      float64
	ScaleY      float64
	AspectRatio float64
}

// FrameStateOf captures the frame fields of o.
func FrameStateOf(o scene.Object) FrameState {
	g := o.Geometry
	return FrameState{Left: g.Left, Top: g.Top, Width: g.Width, Height: g.Height,
		ScaleX: g.ScaleX, ScaleY: g.ScaleY, AspectRatio: o.Metadata.AspectRatio}
}

// Bounds is the displayed rectangle.
func (s FrameState) Bounds() geom.Rect {
	return geom.Rect{X: s.Left, Y: s.Top, W: s.Width * s.ScaleX, H: s.Height * s.ScaleY}
}

func (s FrameState) patch() scene.Patch {
	return scene.Patch{
		Left: scene.Ptr(s.Left), Top: scene.Ptr(s.Top), Width: scene.Ptr(s.Width), Height: scene.Ptr(s.Height),
		ScaleX: scene.Ptr(s.ScaleX), ScaleY: scene.Ptr(s.ScaleY), AspectRatio: scene.Ptr(s.AspectRatio),
	}
}

// FrameUpdate moves or resizes the frame. It does not know about clipping: after every
// write it calls onChange, which the frame manager uses to republish bounds and clip
// the siblings.
type FrameUpdate struct {
	base
	state    *scene.State
	id       string
	before   FrameState
	after    FrameState
	onChange func()
}

// NewFrameUpdate records a change of the current frame from before to after.
func NewFrameUpdate(state *scene.State, before, after FrameState, onChange func()) (*FrameUpdate, error) {
	f, ok := state.Frame()
	if !ok {
		return nil, scene.Validationf("frame_update", "", "scene has no frame")
	}
	return &FrameUpdate{state: state, id: f.ID, before: before, after: after, onChange: onChange}, nil
}

func (c *FrameUpdate) Name() string      { return "frame_update" }
func (c *FrameUpdate) Targets() []string { return []string{c.id} }

// Before and After expose the captured rectangles.
func (c *FrameUpdate) Before() FrameState { return c.before }
func (c *FrameUpdate) After() FrameState  { return c.after }

func (c *FrameUpdate) Apply(context.Context) error   { return c.write(c.after) }
func (c *FrameUpdate) Invert(context.Context) error  { return c.write(c.before) }
func (c *FrameUpdate) Reapply(context.Context) error { return c.write(c.after) }

func (c *FrameUpdate) write(s FrameState) error {
	if err := c.state.Update(c.id, s.patch().ApplyTo); err != nil {
		return fmt.Errorf("frame_update: %w", err)
	}
	if c.onChange != nil {
		c.onChange()
	}
	return nil
}

// AddLayer inserts a new object. onAdded runs after every insertion, e.g. to clip the
// object to the frame.
type AddLayer struct {
	base
	state   *scene.State
	obj     scene.Object
	index   int
	onAdded func(id string)
}

// NewAddLayer inserts obj at the top of the stack.
func NewAddLayer(state *scene.State, obj scene.Object, onAdded func(id string)) *AddLayer {
	return &AddLayer{state: state, obj: obj.Clone(), onAdded: onAdded}
}

func (c *AddLayer) Name() string      { return "add_layer" }
func (c *AddLayer) Targets() []string { return []string{c.obj.ID} }

// ObjectID is the id of the inserted object.
func (c *AddLayer) ObjectID() string { return c.obj.ID }

func (c *AddLayer) Apply(context.Context) error { return c.insert() }

func (c *AddLayer) Invert(context.Context) error {
	obj, _, err := c.state.Remove(c.obj.ID)
	if err != nil {
		return fmt.Errorf("add_layer invert: %w", err)
	}
	// keep later edits for redo
	c.obj = obj
	return nil
}

func (c *AddLayer) Reapply(context.Context) error { return c.insert() }

func (c *AddLayer) insert() error {
	if err := c.state.Insert(c.obj, c.index); err != nil {
		return fmt.Errorf("add_layer: %w", err)
	}
	if c.onAdded != nil {
		c.onAdded(c.obj.ID)
	}
	return nil
}

// DeleteLayer removes an object. The frame cannot be deleted.
type DeleteLayer struct {
	base
	state   *scene.State
	id      string
	removed scene.Object
	index   int
}

func NewDeleteLayer(state *scene.State, id string) (*DeleteLayer, error) {
	obj, ok := state.Get(id)
	if !ok {
		return nil, scene.Missing("delete_layer", id)
	}
	if obj.IsFrame() {
		return nil, scene.Validationf("delete_layer", id, "the frame cannot be deleted")
	}
	return &DeleteLayer{state: state, id: id, index: -1}, nil
}

func (c *DeleteLayer) Name() string      { return "delete_layer" }
func (c *DeleteLayer) Targets() []string { return []string{c.id} }

func (c *DeleteLayer) Apply(context.Context) error { return c.remove() }

func (c *DeleteLayer) Invert(context.Context) error {
	if c.index < 0 {
		return scene.Validationf("delete_layer", c.id, "nothing to restore")
	}
	if err := c.state.Insert(c.removed, c.index); err != nil {
		return fmt.Errorf("delete_layer invert: %w", err)
	}
	return nil
}

func (c *DeleteLayer) Reapply(context.Context) error { return c.remove() }

func (c *DeleteLayer) remove() error {
	if obj, ok := c.state.Get(c.id); ok && obj.IsFrame() {
		return scene.Validationf("delete_layer", c.id, "the frame cannot be deleted")
	}
	obj, idx, err := c.state.Remove(c.id)
	if err != nil {
		return fmt.Errorf("delete_layer: %w", err)
	}
	c.removed, c.index = obj, idx
	return nil
}

// ReorderLayer moves an object to a new position in the layer list, expressed as
// single z-order steps. The frame never moves and nothing moves to or below it.
type ReorderLayer struct {
	base
	state *scene.State
	id    string
	delta int // positive moves towards the bottom
}

// NewReorderLayer validates the move from the object's current index to toIndex.
func NewReorderLayer(state *scene.State, id string, toIndex int) (*ReorderLayer, error) {
	from := state.IndexOf(id)
	if from < 0 {
		return nil, scene.Missing("reorder_layer", id)
	}
	objs := state.Objects()
	if objs[from].IsFrame() {
		return nil, scene.Validationf("reorder_layer", id, "the frame cannot be reordered")
	}
	limit := len(objs) - 1
	if _, ok := state.Frame(); ok {
		limit--
	}
	if toIndex < 0 || toIndex > limit {
		return nil, scene.Validationf("reorder_layer", id, "index %d out of range 0..%d", toIndex, limit)
	}
	if toIndex == from {
		return nil, scene.Validationf("reorder_layer", id, "object is already at index %d", toIndex)
	}
	return &ReorderLayer{state: state, id: id, delta: toIndex - from}, nil
}

func (c *ReorderLayer) Name() string      { return "reorder_layer" }
func (c *ReorderLayer) Targets() []string { return []string{c.id} }

func (c *ReorderLayer) Apply(context.Context) error   { return c.step(c.delta) }
func (c *ReorderLayer) Invert(context.Context) error  { return c.step(-c.delta) }
func (c *ReorderLayer) Reapply(context.Context) error { return c.step(c.delta) }

func (c *ReorderLayer) step(delta int) error {
	if !c.state.Has(c.id) {
		return scene.Missing("reorder_layer", c.id)
	}
	move := c.state.SendBackward
	if delta < 0 {
		move, delta = c.state.BringForward, -delta
	}
	for range delta {
		if err := move(c.id); err != nil {
			return fmt.Errorf("reorder_layer: %w", err)
		}
	}
	return nil
}
