/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package command

import (
	"math"

	"bannerforge/internal/geom"
	"bannerforge/internal/scene"
)

// AlignMode positions an object against a reference rectangle.
type AlignMode string

const (
	AlignLeft   AlignMode = "left"
	AlignCenter AlignMode = "center"
	AlignRight  AlignMode = "right"
	AlignTop    AlignMode = "top"
	AlignMiddle AlignMode = "middle"
	AlignBottom AlignMode = "bottom"
)

// ParseAlignMode validates a mode name.
func ParseAlignMode(s string) (AlignMode, bool) {
	m := AlignMode(s)
	switch m {
	case AlignLeft, AlignCenter, AlignRight, AlignTop, AlignMiddle, AlignBottom:
		return m, true
	}
	return "", false
}

// Align moves an object so its bounding box lines up with ref (the frame bounds, or
// the viewport when there is no frame). The result is a plain property update.
func Align(state *scene.State, id string, mode AlignMode, ref geom.Rect) (*UpdateProperties, error) {
	obj, ok := state.Get(id)
	if !ok {
		return nil, scene.Missing("align", id)
	}
	if obj.IsFrame() {
		return nil, scene.Validationf("align", id, "the frame cannot be aligned")
	}
	b := obj.Bounds()
	var p scene.Patch
	switch mode {
	case AlignLeft:
		p.Left = scene.Ptr(obj.Geometry.Left + ref.Left() - b.Left())
	case AlignCenter:
		p.Left = scene.Ptr(obj.Geometry.Left + ref.CenterX() - b.CenterX())
	case AlignRight:
		p.Left = scene.Ptr(obj.Geometry.Left + ref.Right() - b.Right())
	case AlignTop:
		p.Top = scene.Ptr(obj.Geometry.Top + ref.Top() - b.Top())
	case AlignMiddle:
		p.Top = scene.Ptr(obj.Geometry.Top + ref.CenterY() - b.CenterY())
	case AlignBottom:
		p.Top = scene.Ptr(obj.Geometry.Top + ref.Bottom() - b.Bottom())
	default:
		return nil, scene.Validationf("align", id, "unknown align mode %q", mode)
	}
	c, err := NewUpdateProperties(state, id, p)
	if err != nil {
		return nil, err
	}
	return c.withName("align"), nil
}

// TransformOp rotates or mirrors an object.
type TransformOp string

const (
	RotateCW  TransformOp = "rotate_cw"
	RotateCCW TransformOp = "rotate_ccw"
	FlipX     TransformOp = "flip_x"
	FlipY     TransformOp = "flip_y"
)

// Transform rotates by ±90 degrees around the object's center, or toggles a flip flag.
func Transform(state *scene.State, id string, op TransformOp) (*UpdateProperties, error) {
	obj, ok := state.Get(id)
	if !ok {
		return nil, scene.Missing("transform", id)
	}
	if obj.IsFrame() {
		return nil, scene.Validationf("transform", id, "the frame cannot be transformed")
	}
	g := obj.Geometry
	var p scene.Patch
	switch op {
	case RotateCW, RotateCCW:
		delta := 90.0
		if op == RotateCCW {
			delta = -90
		}
		angle := normalizeAngle(g.Angle + delta)
		center := g.Transform().Apply(geom.Pt{X: g.Width / 2, Y: g.Height / 2})
		next := g
		next.Angle = angle
		next.Left, next.Top = 0, 0
		off := next.Transform().Apply(geom.Pt{X: g.Width / 2, Y: g.Height / 2})
		p.Angle = scene.Ptr(angle)
		p.Left = scene.Ptr(geom.Round(center.X-off.X, 6))
		p.Top = scene.Ptr(geom.Round(center.Y-off.Y, 6))
	case FlipX:
		p.FlipX = scene.Ptr(!g.FlipX)
	case FlipY:
		p.FlipY = scene.Ptr(!g.FlipY)
	default:
		return nil, scene.Validationf("transform", id, "unknown transform %q", op)
	}
	c, err := NewUpdateProperties(state, id, p)
	if err != nil {
		return nil, err
	}
	return c.withName("transform"), nil
}

func normalizeAngle(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	return a
}
