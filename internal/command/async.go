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
	"time"

	applog "bannerforge/internal/log"
	"bannerforge/internal/scene"
)

// ImageSwap replaces an image's source while keeping its on-screen footprint. The
// resource is awaited before any write, and each write is a single scene update, so a
// failed load leaves the object untouched.
type ImageSwap struct {
	base
	state  *scene.State
	loader ImageLoader
	id     string
	newSrc string
	before scene.Patch  // full geometry, opacity, corner radius and source at construction
	after  *scene.Patch // memoized once the new natural size is known
}

// NewImageSwap captures the object's current state.
func NewImageSwap(state *scene.State, loader ImageLoader, id, src string) (*ImageSwap, error) {
	obj, ok := state.Get(id)
	if !ok {
		return nil, scene.Missing("image_swap", id)
	}
	if obj.Kind != scene.KindImage {
		return nil, scene.Validationf("image_swap", id, "%s object has no image source", obj.Kind)
	}
	if src == "" {
		return nil, scene.Validationf("image_swap", id, "empty image source")
	}
	g, v := obj.Geometry, obj.Visual
	before := scene.Patch{
		Left: scene.Ptr(g.Left), Top: scene.Ptr(g.Top), Width: scene.Ptr(g.Width), Height: scene.Ptr(g.Height),
		ScaleX: scene.Ptr(g.ScaleX), ScaleY: scene.Ptr(g.ScaleY), Angle: scene.Ptr(g.Angle),
		FlipX: scene.Ptr(g.FlipX), FlipY: scene.Ptr(g.FlipY),
		Opacity: scene.Ptr(v.Opacity), CornerRadius: scene.Ptr(v.CornerRadius), Src: scene.Ptr(v.Src),
	}
	return &ImageSwap{state: state, loader: loader, id: id, newSrc: src, before: before}, nil
}

func (c *ImageSwap) Name() string      { return "image_swap" }
func (c *ImageSwap) Targets() []string { return []string{c.id} }

func (c *ImageSwap) Apply(ctx context.Context) error {
	if c.after != nil {
		return c.Reapply(ctx)
	}
	img, err := c.loader.LoadImage(ctx, c.newSrc)
	if err != nil {
		return scene.ResourceErr("image_swap", c.id, err)
	}
	if img.Width <= 0 || img.Height <= 0 {
		return scene.ResourceErr("image_swap", c.id, fmt.Errorf("%s has no natural size", c.newSrc))
	}
	oldW := *c.before.Width * *c.before.ScaleX
	oldH := *c.before.Height * *c.before.ScaleY
	after := scene.Patch{
		Src:    scene.Ptr(c.newSrc),
		Width:  scene.Ptr(img.Width),
		Height: scene.Ptr(img.Height),
		ScaleX: scene.Ptr(oldW / img.Width),
		ScaleY: scene.Ptr(oldH / img.Height),
	}
	if err := c.state.Update(c.id, after.ApplyTo); err != nil {
		return fmt.Errorf("image_swap apply: %w", err)
	}
	c.after = &after
	return nil
}

func (c *ImageSwap) Invert(ctx context.Context) error {
	old := *c.before.Src
	if old != "" {
		if _, err := c.loader.LoadImage(ctx, old); err != nil {
			return scene.ResourceErr("image_swap", c.id, err)
		}
	}
	if err := c.state.Update(c.id, c.before.ApplyTo); err != nil {
		return fmt.Errorf("image_swap invert: %w", err)
	}
	return nil
}

func (c *ImageSwap) Reapply(ctx context.Context) error {
	if c.after == nil {
		return c.Apply(ctx)
	}
	if _, err := c.loader.LoadImage(ctx, c.newSrc); err != nil {
		return scene.ResourceErr("image_swap", c.id, err)
	}
	if err := c.state.Update(c.id, c.after.ApplyTo); err != nil {
		return fmt.Errorf("image_swap reapply: %w", err)
	}
	return nil
}

// DefaultFontTimeout bounds the wait for a font before a font change applies anyway.
const DefaultFontTimeout = 60 * time.Second

// FontChange switches an object's font and reflows its text. It waits for the font
// with a bounded timeout; on failure the change is applied anyway.
type FontChange struct {
	base
	state   *scene.State
	fonts   FontWaiter
	measure TextMeasurer
	timeout time.Duration
	id      string
	patch   scene.Patch
	before  scene.Patch
	after   *scene.Patch
	// LastErr is the resource error of the most recent font wait, if any.
	LastErr error
	log     *slog.Logger
}

// FontSpec is the requested font. Zero fields keep the current value.
type FontSpec struct {
	Family string
	Weight int
	Size   float64
}

// NewFontChange captures the current font fields and height.
func NewFontChange(state *scene.State, fonts FontWaiter, measure TextMeasurer, id string, spec FontSpec, timeout time.Duration) (*FontChange, error) {
	obj, ok := state.Get(id)
	if !ok {
		return nil, scene.Missing("font_change", id)
	}
	if obj.Kind != scene.KindText && obj.Kind != scene.KindButton {
		return nil, scene.Validationf("font_change", id, "%s object has no text", obj.Kind)
	}
	var p scene.Patch
	if spec.Family != "" {
		p.FontFamily = scene.Ptr(spec.Family)
	}
	if spec.Weight != 0 {
		p.FontWeight = scene.Ptr(spec.Weight)
	}
	if spec.Size > 0 {
		p.FontSize = scene.Ptr(spec.Size)
	}
	if p.Empty() {
		return nil, scene.Validationf("font_change", id, "no font field requested")
	}
	if timeout <= 0 {
		timeout = DefaultFontTimeout
	}
	before := p.Capture(obj).Merge(scene.Patch{Height: scene.Ptr(obj.Geometry.Height)})
	return &FontChange{
		state: state, fonts: fonts, measure: measure, timeout: timeout,
		id: id, patch: p, before: before,
		log: applog.WithComponent("command"),
	}, nil
}

func (c *FontChange) Name() string      { return "font_change" }
func (c *FontChange) Targets() []string { return []string{c.id} }

func (c *FontChange) Apply(ctx context.Context) error {
	if c.after != nil {
		return c.Reapply(ctx)
	}
	obj, ok := c.state.Get(c.id)
	if !ok {
		return scene.Missing("font_change", c.id)
	}
	c.patch.ApplyTo(&obj)
	c.await(ctx, obj.Visual.FontFamily, obj.Visual.FontWeight)

	var after scene.Patch
	err := c.state.Update(c.id, func(o *scene.Object) {
		c.patch.ApplyTo(o)
		after = c.patch
		if c.measure != nil && o.Kind == scene.KindText {
			h := reflowHeight(c.measure, *o)
			o.Geometry.Height = h
			after = after.Merge(scene.Patch{Height: scene.Ptr(h)})
		}
	})
	if err != nil {
		return fmt.Errorf("font_change apply: %w", err)
	}
	c.after = &after
	return nil
}

func (c *FontChange) Invert(ctx context.Context) error {
	obj, ok := c.state.Get(c.id)
	if !ok {
		return scene.Missing("font_change", c.id)
	}
	c.before.ApplyTo(&obj)
	c.await(ctx, obj.Visual.FontFamily, obj.Visual.FontWeight)
	if err := c.state.Update(c.id, c.before.ApplyTo); err != nil {
		return fmt.Errorf("font_change invert: %w", err)
	}
	return nil
}

func (c *FontChange) Reapply(ctx context.Context) error {
	if c.after == nil {
		return c.Apply(ctx)
	}
	if err := c.state.Update(c.id, c.after.ApplyTo); err != nil {
		return fmt.Errorf("font_change reapply: %w", err)
	}
	return nil
}

// await waits for the font; a failure is logged and remembered, never returned.
func (c *FontChange) await(ctx context.Context, family string, weight int) {
	c.LastErr = nil
	if c.fonts == nil || family == "" {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.fonts.AwaitFontReady(wctx, family, weight); err != nil {
		c.LastErr = scene.ResourceErr("font_change", c.id, err)
		c.log.Warn("font not ready, applying anyway",
			slog.String("object", c.id), slog.String("family", family), slog.Int("weight", weight), slog.Any("err", err))
	}
}
