/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"context"
	"log/slog"
	"math"
	"slices"

	"bannerforge/internal/assets"
	"bannerforge/internal/command"
	"bannerforge/internal/frame"
	"bannerforge/internal/geom"
	"bannerforge/internal/scene"
)

// Creation defaults.
const (
	DefaultFontFamily = "Go"
	DefaultFontSize   = 32
	DefaultTextWidth  = 240
	// images larger than this share of the frame are scaled down on insert
	imageFitShare = 0.5
)

// TextOptions describes a new text object. Zero fields take the defaults.
type TextOptions struct {
	Text       string
	FontFamily string
	FontWeight int
	FontSize   float64
	Fill       string
	Width      float64
	At         *geom.Pt
}

// AddText creates a text object at the top of the stack, sized by the text measurer
// and placed inside the frame. It returns the new object id.
func (s *Session) AddText(ctx context.Context, o TextOptions) (string, error) {
	if o.FontFamily == "" {
		o.FontFamily = DefaultFontFamily
	}
	if o.FontWeight == 0 {
		o.FontWeight = 400
	}
	if o.FontSize <= 0 {
		o.FontSize = DefaultFontSize
	}
	if o.Width <= 0 {
		o.Width = DefaultTextWidth
	}
	if o.Fill == "" {
		o.Fill = "#000000"
	}
	sz := s.Fonts.MeasureText(assets.TextSpec{
		Family: o.FontFamily, Weight: o.FontWeight, Size: o.FontSize,
		LineHeight: assets.DefaultLineHeight, Text: o.Text,
	}, o.Width)
	h := math.Max(sz.H, o.FontSize*assets.DefaultLineHeight)

	obj := scene.New(scene.KindText, s.place(o.Width, h, o.At))
	obj.Visual.Text = o.Text
	obj.Visual.Fill = o.Fill
	obj.Visual.FontFamily = o.FontFamily
	obj.Visual.FontWeight = o.FontWeight
	obj.Visual.FontSize = o.FontSize
	obj.Visual.LineHeight = assets.DefaultLineHeight
	obj.Visual.TextAlign = "left"
	return s.add(ctx, obj)
}

// AddImage creates an image object from src. The image is loaded first for its
// natural size and scaled down to fit half the frame width when larger.
func (s *Session) AddImage(ctx context.Context, src string, at *geom.Pt) (string, error) {
	img, err := s.Images.LoadImage(ctx, src)
	if err != nil {
		err = scene.ResourceErr("add_image", "", err)
		s.Commands.Reject(err)
		return "", err
	}
	ref := s.Frames.Reference()
	scale := 1.0
	if limit := ref.W * imageFitShare; limit > 0 && img.Width > limit {
		scale = limit / img.Width
	}
	g := s.place(img.Width*scale, img.Height*scale, at)
	g.Width, g.Height, g.ScaleX, g.ScaleY = img.Width, img.Height, scale, scale
	obj := scene.New(scene.KindImage, g)
	obj.Visual.Src = src
	return s.add(ctx, obj)
}

// AddButton creates a button with a label.
func (s *Session) AddButton(ctx context.Context, label string, at *geom.Pt) (string, error) {
	if label == "" {
		label = "Button"
	}
	obj := scene.New(scene.KindButton, s.place(160, 48, at))
	obj.Visual.Text = label
	obj.Visual.Fill = "#2563eb"
	obj.Visual.TextColor = "#ffffff"
	obj.Visual.FontFamily = DefaultFontFamily
	obj.Visual.FontWeight = 500
	obj.Visual.FontSize = 18
	obj.Visual.CornerRadius = 8
	return s.add(ctx, obj)
}

// AddShape creates a plain rectangle.
func (s *Session) AddShape(ctx context.Context, w, h float64, fill string, at *geom.Pt) (string, error) {
	if w <= 0 || h <= 0 {
		err := scene.Validationf("add_shape", "", "shape size %vx%v must be positive", w, h)
		s.Commands.Reject(err)
		return "", err
	}
	if fill == "" {
		fill = "#cccccc"
	}
	obj := scene.New(scene.KindShape, s.place(w, h, at))
	obj.Visual.Fill = fill
	return s.add(ctx, obj)
}

func (s *Session) place(w, h float64, at *geom.Pt) scene.Geometry {
	p := s.Frames.ConstrainedPosition(w, h, at)
	return scene.Geometry{Left: p.X, Top: p.Y, Width: w, Height: h, ScaleX: 1, ScaleY: 1}
}

func (s *Session) add(ctx context.Context, obj scene.Object) (string, error) {
	cmd := command.NewAddLayer(s.State, obj, s.clip)
	if err := s.Commands.Execute(ctx, cmd); err != nil {
		return "", err
	}
	return cmd.ObjectID(), nil
}

func (s *Session) clip(id string) {
	if err := s.Frames.ApplyFrameClipping(id); err != nil {
		s.log.Warn("clip new object", slog.String("id", id), slog.Any("err", err))
	}
}

// Update applies p to one object as an undoable property update. Moving or resizing
// the frame goes through the frame commands so bounds, clips and the aspect ratio
// follow.
func (s *Session) Update(ctx context.Context, id string, p scene.Patch) error {
	if f, ok := s.State.Frame(); ok && f.ID == id {
		return s.exec(ctx)(s.frameUpdate(f, p))
	}
	return s.exec(ctx)(command.NewUpdateProperties(s.State, id, p))
}

// frameUpdate splits a frame patch: placement fields become a frame resize, the rest
// a plain update, recorded together. A patch that leaves the placement as it is (a
// property panel resends every field) is a plain update.
func (s *Session) frameUpdate(f scene.Object, p scene.Patch) (command.Command, error) {
	place, rest := p.SplitPlacement()
	if rest.Angle != nil && *rest.Angle != f.Geometry.Angle {
		return nil, scene.Validationf("update_frame", f.ID, "the frame cannot be rotated")
	}
	next := f.Clone()
	place.ApplyTo(&next)
	if next.Metadata.AspectRatio <= 0 {
		next.Metadata.AspectRatio = f.Metadata.AspectRatio
	}
	if next.Geometry == f.Geometry && next.Metadata.AspectRatio == f.Metadata.AspectRatio {
		return plainUpdate(s.State, f.ID, rest)
	}
	resize, err := s.Ratios.ResizeGeometry(next.Geometry, next.Metadata.AspectRatio)
	if err != nil {
		return nil, err
	}
	if rest.Empty() {
		return resize, nil
	}
	uc, err := command.NewUpdateProperties(s.State, f.ID, rest)
	if err != nil {
		return nil, err
	}
	g, err := command.NewGroup("update_frame", resize, uc)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func plainUpdate(st *scene.State, id string, p scene.Patch) (command.Command, error) {
	uc, err := command.NewUpdateProperties(st, id, p)
	if err != nil {
		return nil, err
	}
	return uc, nil
}

// UpdateProperties applies a property panel DTO to one object.
func (s *Session) UpdateProperties(ctx context.Context, id string, p scene.Properties) error {
	obj, ok := s.State.Get(id)
	if !ok {
		err := scene.Missing("update_properties", id)
		s.Commands.Reject(err)
		return err
	}
	patch, err := scene.PatchFor(obj, p)
	if err != nil {
		s.Commands.Reject(err)
		return err
	}
	return s.Update(ctx, id, patch)
}

// UpdateMany applies p to all ids as one atomic command. Font changes are preloaded
// and text is reflowed.
func (s *Session) UpdateMany(ctx context.Context, ids []string, p scene.Patch) error {
	if f, ok := s.State.Frame(); ok && slices.Contains(ids, f.ID) {
		if place, _ := p.SplitPlacement(); !place.Empty() {
			err := scene.Validationf("update_many", f.ID, "the frame is moved or resized on its own")
			s.Commands.Reject(err)
			return err
		}
	}
	return s.exec(ctx)(command.NewBatchUpdate(s.State, ids, p,
		command.WithFontPreload(s.Fonts, s.opts.BatchFontTimeout),
		command.WithReflow(s.Fonts)))
}

// Align moves one object against the frame, or the viewport when there is no frame.
func (s *Session) Align(ctx context.Context, id string, mode command.AlignMode) error {
	return s.exec(ctx)(command.Align(s.State, id, mode, s.Frames.Reference()))
}

// Transform rotates or flips one object.
func (s *Session) Transform(ctx context.Context, id string, op command.TransformOp) error {
	return s.exec(ctx)(command.Transform(s.State, id, op))
}

// SetFont changes the font of a text or button object. The font wait is best effort:
// the returned error is nil when the change applied without the font being ready.
func (s *Session) SetFont(ctx context.Context, id string, spec command.FontSpec) error {
	return s.exec(ctx)(command.NewFontChange(s.State, s.Fonts, s.Fonts, id, spec, s.opts.FontTimeout))
}

// SwapImage replaces an image source keeping its on-screen footprint.
func (s *Session) SwapImage(ctx context.Context, id, src string) error {
	return s.exec(ctx)(command.NewImageSwap(s.State, s.Images, id, src))
}

// ChangeRatio switches the frame to a preset ratio.
func (s *Session) ChangeRatio(ctx context.Context, p frame.Preset) error {
	return s.exec(ctx)(s.Ratios.ChangeRatio(p))
}

// ChangeFrameSize switches the frame to an explicit size.
func (s *Session) ChangeFrameSize(ctx context.Context, w, h float64) error {
	return s.exec(ctx)(s.Ratios.ChangeSize(w, h))
}

// exec returns a function that runs a freshly built command. Construction errors
// are surfaced as rejected commands.
func (s *Session) exec(ctx context.Context) func(command.Command, error) error {
	return func(cmd command.Command, err error) error {
		if err != nil {
			s.Commands.Reject(err)
			return err
		}
		return s.Commands.Execute(ctx, cmd)
	}
}
