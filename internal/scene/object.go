/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package scene is the single mutable source of truth of the editor: the ordered object
// list, the selection and the frame reference, plus the reactive channels the UI reads.
//
// Order convention: index 0 is the top-most object; the frame, when present, is always
// the last element (bottom of the stack).
package scene

import (
	"maps"
	"time"

	"bannerforge/internal/geom"

	"github.com/google/uuid"
)

// Kind classifies a scene object.
type Kind string

const (
	KindText   Kind = "text"
	KindImage  Kind = "image"
	KindButton Kind = "button"
	KindFrame  Kind = "frame"
	KindShape  Kind = "shape"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindImage, KindButton, KindFrame, KindShape:
		return true
	}
	return false
}

// Geometry is the placement of an object. Width/Height are the intrinsic size; the
// on-screen footprint is Width*ScaleX by Height*ScaleY rotated by Angle degrees
// around (Left, Top).
type Geometry struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
	ScaleX float64
	ScaleY float64
	Angle  float64
	FlipX  bool
	FlipY  bool
}

// DisplaySize is the scaled, unrotated footprint.
func (g Geometry) DisplaySize() geom.Size { return geom.Size{W: g.Width * g.ScaleX, H: g.Height * g.ScaleY} }

// Transform maps object-local coordinates to canvas coordinates.
func (g Geometry) Transform() geom.Affine2D {
	return geom.Translate(g.Left, g.Top).Mul(geom.Rotate(geom.Deg2Rad(g.Angle))).Mul(geom.Scale(g.ScaleX, g.ScaleY))
}

// Bounds is the axis-aligned bounding box on the canvas.
func (g Geometry) Bounds() geom.Rect {
	if g.Angle == 0 {
		s := g.DisplaySize()
		return geom.Rect{X: g.Left, Y: g.Top, W: s.W, H: s.H}
	}
	return geom.BoundsOf(g.Transform(), geom.Rect{W: g.Width, H: g.Height})
}

// Visual carries the kind-specific drawing fields. Unused fields stay zero.
type Visual struct {
	Fill         string
	Stroke       string
	StrokeWidth  float64
	Opacity      float64
	Text         string
	TextColor    string // button label color
	FontFamily   string
	FontWeight   int
	FontSize     float64
	TextAlign    string
	LineHeight   float64
	CornerRadius float64
	Src          string
}

// Metadata is persisted with the object and survives export/import.
type Metadata struct {
	ID          string
	CreatedAt   time.Time
	Kind        Kind
	CustomName  string
	IsMainFrame bool
	AspectRatio float64
	Extra       map[string]any
}

// Object is one visual element on the canvas.
type Object struct {
	ID       string
	Kind     Kind
	Geometry Geometry
	Visual   Visual
	Metadata Metadata
	Visible  bool
	Locked   bool
	// Clip is the absolute clip region (the frame bounds) or nil when unclipped.
	Clip *geom.Rect
}

// IsFrame reports whether o is the main frame.
func (o *Object) IsFrame() bool { return o.Metadata.IsMainFrame }

// Bounds is the axis-aligned bounding box on the canvas.
func (o *Object) Bounds() geom.Rect { return o.Geometry.Bounds() }

// Clone returns a deep copy; the scene never hands out its own pointers.
func (o *Object) Clone() Object {
	c := *o
	if o.Clip != nil {
		clip := *o.Clip
		c.Clip = &clip
	}
	if o.Metadata.Extra != nil {
		c.Metadata.Extra = maps.Clone(o.Metadata.Extra)
	}
	return c
}

// NewID returns a fresh unique object id.
func NewID() string { return uuid.NewString() }

// New builds an object of the given kind with a fresh id, unit scale, full opacity
// and visible state. Callers fill in geometry and visual fields.
func New(kind Kind, g Geometry) Object {
	id := NewID()
	if g.ScaleX == 0 {
		g.ScaleX = 1
	}
	if g.ScaleY == 0 {
		g.ScaleY = 1
	}
	return Object{
		ID:       id,
		Kind:     kind,
		Geometry: g,
		Visual:   Visual{Opacity: 1},
		Metadata: Metadata{ID: id, CreatedAt: time.Now().UTC(), Kind: kind},
		Visible:  true,
	}
}
