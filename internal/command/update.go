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
	"log/slog"
	"maps"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"bannerforge/internal/assets"
	applog "bannerforge/internal/log"
	"bannerforge/internal/scene"
)

// UpdateProperties writes a patch onto one object.
type UpdateProperties struct {
	base
	name   string
	state  *scene.State
	id     string
	before scene.Patch
	after  scene.Patch
}

// NewUpdateProperties captures the current values of every field in patch.
func NewUpdateProperties(state *scene.State, id string, patch scene.Patch) (*UpdateProperties, error) {
	obj, ok := state.Get(id)
	if !ok {
		return nil, scene.Missing("update_properties", id)
	}
	return &UpdateProperties{name: "update_properties", state: state, id: id, before: patch.Capture(obj), after: patch}, nil
}

// NewUpdateFromSnapshots builds an update whose before-state was captured earlier, e.g.
// at the start of a drag, and whose after-state is the object's current value.
func NewUpdateFromSnapshots(state *scene.State, id string, before scene.Patch) (*UpdateProperties, error) {
	obj, ok := state.Get(id)
	if !ok {
		return nil, scene.Missing("update_properties", id)
	}
	return &UpdateProperties{name: "update_properties", state: state, id: id, before: before, after: before.Capture(obj)}, nil
}

func (c *UpdateProperties) withName(n string) *UpdateProperties { c.name = n; return c }

func (c *UpdateProperties) Name() string      { return c.name }
func (c *UpdateProperties) Targets() []string { return []string{c.id} }

// Patch returns the forward patch.
func (c *UpdateProperties) Patch() scene.Patch { return c.after }

func (c *UpdateProperties) Apply(context.Context) error   { return c.write("apply", c.after) }
func (c *UpdateProperties) Invert(context.Context) error  { return c.write("invert", c.before) }
func (c *UpdateProperties) Reapply(context.Context) error { return c.write("reapply", c.after) }

func (c *UpdateProperties) write(phase string, p scene.Patch) error {
	if err := c.state.Update(c.id, p.ApplyTo); err != nil {
		return fmt.Errorf("%s %s: %w", c.name, phase, err)
	}
	return nil
}

// Rename sets an object's custom layer name.
func Rename(state *scene.State, id, name string) (*UpdateProperties, error) {
	c, err := NewUpdateProperties(state, id, scene.Patch{CustomName: scene.Ptr(name)})
	if err != nil {
		return nil, err
	}
	return c.withName("rename_layer"), nil
}

// ToggleVisibility flips an object's visible flag.
func ToggleVisibility(state *scene.State, id string) (*UpdateProperties, error) {
	obj, ok := state.Get(id)
	if !ok {
		return nil, scene.Missing("toggle_visibility", id)
	}
	c, err := NewUpdateProperties(state, id, scene.Patch{Visible: scene.Ptr(!obj.Visible)})
	if err != nil {
		return nil, err
	}
	return c.withName("toggle_visibility"), nil
}

// ToggleLock flips an object's locked flag.
func ToggleLock(state *scene.State, id string) (*UpdateProperties, error) {
	obj, ok := state.Get(id)
	if !ok {
		return nil, scene.Missing("toggle_lock", id)
	}
	c, err := NewUpdateProperties(state, id, scene.Patch{Locked: scene.Ptr(!obj.Locked)})
	if err != nil {
		return nil, err
	}
	return c.withName("toggle_lock"), nil
}

// BatchUpdate writes patches onto several objects as one undo point. When a patch
// changes a font, every needed family/weight is preloaded before any object is
// touched, so all objects switch together.
type BatchUpdate struct {
	base
	state   *scene.State
	ids     []string
	after   map[string]scene.Patch
	before  map[string]scene.Patch
	fonts   FontWaiter
	timeout time.Duration
	measure TextMeasurer
	reflow  map[string]scene.Patch
	log     *slog.Logger
}

// BatchOption configures a BatchUpdate.
type BatchOption func(*BatchUpdate)

// WithFontPreload waits for fonts with the given timeout before writing.
func WithFontPreload(f FontWaiter, timeout time.Duration) BatchOption {
	return func(b *BatchUpdate) { b.fonts, b.timeout = f, timeout }
}

// WithReflow recomputes text heights after the write.
func WithReflow(m TextMeasurer) BatchOption {
	return func(b *BatchUpdate) { b.measure = m }
}

// NewBatchUpdate applies the same patch to every id.
func NewBatchUpdate(state *scene.State, ids []string, patch scene.Patch, opts ...BatchOption) (*BatchUpdate, error) {
	each := make(map[string]scene.Patch, len(ids))
	for _, id := range ids {
		each[id] = patch
	}
	return NewBatchUpdateEach(state, each, opts...)
}

// NewBatchUpdateEach applies a separate patch per id.
func NewBatchUpdateEach(state *scene.State, patches map[string]scene.Patch, opts ...BatchOption) (*BatchUpdate, error) {
	if len(patches) == 0 {
		return nil, scene.Validationf("batch_update", "", "no targets")
	}
	b := &BatchUpdate{
		state:  state,
		ids:    slices.Sorted(maps.Keys(patches)),
		after:  maps.Clone(patches),
		before: make(map[string]scene.Patch, len(patches)),
		log:    applog.WithComponent("command"),
	}
	for _, id := range b.ids {
		obj, ok := state.Get(id)
		if !ok {
			return nil, scene.Missing("batch_update", id)
		}
		b.before[id] = b.after[id].Capture(obj)
		if b.after[id].TouchesText() {
			// reflow may change the height; capture it too
			b.before[id] = b.before[id].Merge(scene.Patch{Height: scene.Ptr(obj.Geometry.Height)})
		}
	}
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

func (b *BatchUpdate) Name() string      { return "batch_update" }
func (b *BatchUpdate) Targets() []string { return slices.Clone(b.ids) }

func (b *BatchUpdate) Apply(ctx context.Context) error {
	b.preload(ctx)
	b.reflow = make(map[string]scene.Patch)
	err := b.state.UpdateMany(b.ids, func(o *scene.Object) {
		p := b.after[o.ID]
		p.ApplyTo(o)
		if b.measure != nil && o.Kind == scene.KindText && p.TouchesText() {
			h := reflowHeight(b.measure, *o)
			o.Geometry.Height = h
			b.reflow[o.ID] = scene.Patch{Height: scene.Ptr(h)}
		}
	})
	if err != nil {
		return fmt.Errorf("batch_update apply: %w", err)
	}
	return nil
}

func (b *BatchUpdate) Invert(context.Context) error {
	if err := b.state.UpdateMany(b.ids, func(o *scene.Object) { b.before[o.ID].ApplyTo(o) }); err != nil {
		return fmt.Errorf("batch_update invert: %w", err)
	}
	return nil
}

func (b *BatchUpdate) Reapply(context.Context) error {
	err := b.state.UpdateMany(b.ids, func(o *scene.Object) {
		b.after[o.ID].ApplyTo(o)
		if r, ok := b.reflow[o.ID]; ok {
			r.ApplyTo(o)
		}
	})
	if err != nil {
		return fmt.Errorf("batch_update reapply: %w", err)
	}
	return nil
}

type fontKey struct {
	family string
	weight int
}

// preload waits for every distinct font the batch needs. Failures are logged and the
// write proceeds for all objects.
func (b *BatchUpdate) preload(ctx context.Context) {
	if b.fonts == nil {
		return
	}
	need := map[fontKey]bool{}
	for _, id := range b.ids {
		p := b.after[id]
		if !p.TouchesFont() {
			continue
		}
		obj, ok := b.state.Get(id)
		if !ok {
			continue
		}
		p.ApplyTo(&obj)
		need[fontKey{obj.Visual.FontFamily, obj.Visual.FontWeight}] = true
	}
	if len(need) == 0 {
		return
	}
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	g, gctx := errgroup.WithContext(ctx)
	for k := range need {
		g.Go(func() error {
			if err := b.fonts.AwaitFontReady(gctx, k.family, k.weight); err != nil {
				return fmt.Errorf("font %s %d: %w", k.family, k.weight, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		b.log.Warn("font preload incomplete, applying anyway", slog.Any("err", scene.ResourceErr("batch_update", "", err)))
	}
}

func reflowHeight(m TextMeasurer, o scene.Object) float64 {
	v := o.Visual
	size := m.MeasureText(assets.TextSpec{
		Family: v.FontFamily, Weight: v.FontWeight, Size: v.FontSize, LineHeight: v.LineHeight, Text: v.Text,
	}, o.Geometry.Width)
	return size.H
}
