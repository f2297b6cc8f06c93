/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import "strings"

// Properties is the typed property view of one object, one variant per kind.
type Properties interface {
	Kind() Kind
	isProperties()
}

// Placement is shared by all DTOs. Width and Height are display sizes (scale applied).
type Placement struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
	Angle  float64
}

type TextProperties struct {
	Placement
	Text       string
	FontFamily string
	FontWeight int
	FontSize   float64
	Fill       string
	TextAlign  string
	LineHeight float64
	Opacity    float64
}

type ImageProperties struct {
	Placement
	Src          string
	Opacity      float64
	CornerRadius float64
}

type ButtonProperties struct {
	Placement
	Text         string
	Fill         string
	TextColor    string
	FontFamily   string
	FontWeight   int
	FontSize     float64
	CornerRadius float64
	Stroke       string
	StrokeWidth  float64
}

type FrameProperties struct {
	Placement
	Fill        string
	AspectRatio float64
}

type ShapeProperties struct {
	Placement
	Fill         string
	Stroke       string
	StrokeWidth  float64
	Opacity      float64
	CornerRadius float64
}

func (TextProperties) Kind() Kind   { return KindText }
func (ImageProperties) Kind() Kind  { return KindImage }
func (ButtonProperties) Kind() Kind { return KindButton }
func (FrameProperties) Kind() Kind  { return KindFrame }
func (ShapeProperties) Kind() Kind  { return KindShape }

func (TextProperties) isProperties()   {}
func (ImageProperties) isProperties()  {}
func (ButtonProperties) isProperties() {}
func (FrameProperties) isProperties()  {}
func (ShapeProperties) isProperties()  {}

func placementOf(o Object) Placement {
	s := o.Geometry.DisplaySize()
	return Placement{Left: o.Geometry.Left, Top: o.Geometry.Top, Width: s.W, Height: s.H, Angle: o.Geometry.Angle}
}

// Extract maps an object to its typed properties. Unknown kinds yield nil.
func Extract(o Object) Properties {
	v := o.Visual
	pl := placementOf(o)
	switch o.Kind {
	case KindText:
		return TextProperties{Placement: pl, Text: v.Text, FontFamily: v.FontFamily, FontWeight: v.FontWeight,
			FontSize: v.FontSize, Fill: v.Fill, TextAlign: v.TextAlign, LineHeight: v.LineHeight, Opacity: v.Opacity}
	case KindImage:
		return ImageProperties{Placement: pl, Src: v.Src, Opacity: v.Opacity, CornerRadius: v.CornerRadius}
	case KindButton:
		return ButtonProperties{Placement: pl, Text: v.Text, Fill: v.Fill, TextColor: v.TextColor,
			FontFamily: v.FontFamily, FontWeight: v.FontWeight, FontSize: v.FontSize,
			CornerRadius: v.CornerRadius, Stroke: v.Stroke, StrokeWidth: v.StrokeWidth}
	case KindFrame:
		return FrameProperties{Placement: pl, Fill: v.Fill, AspectRatio: o.Metadata.AspectRatio}
	case KindShape:
		return ShapeProperties{Placement: pl, Fill: v.Fill, Stroke: v.Stroke, StrokeWidth: v.StrokeWidth,
			Opacity: v.Opacity, CornerRadius: v.CornerRadius}
	}
	return nil
}

// PatchFor converts typed properties into the partial update that writes every field
// of p onto an object. Display sizes are converted back to intrinsic sizes using the
// object's current scale.
func PatchFor(o Object, p Properties) (Patch, error) {
	if p == nil || p.Kind() != o.Kind {
		got := Kind("nil")
		if p != nil {
			got = p.Kind()
		}
		return Patch{}, Validationf("apply_properties", o.ID, "%s properties for %s object", got, o.Kind)
	}
	var pt Patch
	setPlacement := func(pl Placement) {
		pt.Left, pt.Top, pt.Angle = Ptr(pl.Left), Ptr(pl.Top), Ptr(pl.Angle)
		if sx := o.Geometry.ScaleX; sx != 0 {
			pt.Width = Ptr(pl.Width / sx)
		}
		if sy := o.Geometry.ScaleY; sy != 0 {
			pt.Height = Ptr(pl.Height / sy)
		}
	}
	switch v := p.(type) {
	case TextProperties:
		setPlacement(v.Placement)
		pt.Text, pt.FontFamily, pt.FontWeight, pt.FontSize = Ptr(v.Text), Ptr(v.FontFamily), Ptr(v.FontWeight), Ptr(v.FontSize)
		pt.Fill, pt.TextAlign, pt.LineHeight, pt.Opacity = Ptr(v.Fill), Ptr(v.TextAlign), Ptr(v.LineHeight), Ptr(v.Opacity)
	case ImageProperties:
		setPlacement(v.Placement)
		pt.Src, pt.Opacity, pt.CornerRadius = Ptr(v.Src), Ptr(v.Opacity), Ptr(v.CornerRadius)
	case ButtonProperties:
		setPlacement(v.Placement)
		pt.Text, pt.Fill, pt.TextColor = Ptr(v.Text), Ptr(v.Fill), Ptr(v.TextColor)
		pt.FontFamily, pt.FontWeight, pt.FontSize = Ptr(v.FontFamily), Ptr(v.FontWeight), Ptr(v.FontSize)
		pt.CornerRadius, pt.Stroke, pt.StrokeWidth = Ptr(v.CornerRadius), Ptr(v.Stroke), Ptr(v.StrokeWidth)
	case FrameProperties:
		setPlacement(v.Placement)
		pt.Fill, pt.AspectRatio = Ptr(v.Fill), Ptr(v.AspectRatio)
	case ShapeProperties:
		setPlacement(v.Placement)
		pt.Fill, pt.Stroke, pt.StrokeWidth = Ptr(v.Fill), Ptr(v.Stroke), Ptr(v.StrokeWidth)
		pt.Opacity, pt.CornerRadius = Ptr(v.Opacity), Ptr(v.CornerRadius)
	}
	return pt, nil
}

// ApplyProperties writes p onto o. A DTO of the wrong kind is a validation error and
// leaves o untouched.
func ApplyProperties(o *Object, p Properties) error {
	pt, err := PatchFor(*o, p)
	if err != nil {
		return err
	}
	pt.ApplyTo(o)
	return nil
}

// ClassifyKind resolves an object's kind from its wire type tag and metadata. The
// frame flag wins, then a valid metadata kind, then the type tag. Unknown tags yield "".
func ClassifyKind(typ string, md Metadata) Kind {
	if md.IsMainFrame {
		return KindFrame
	}
	if md.Kind.Valid() {
		return md.Kind
	}
	switch strings.ToLower(typ) {
	case "textbox", "text", "i-text":
		return KindText
	case "image":
		return KindImage
	case "button", "group":
		return KindButton
	case "frame":
		return KindFrame
	case "rect", "circle", "ellipse", "triangle", "polygon", "line", "shape":
		return KindShape
	}
	return ""
}

// TypeTag is the wire discriminant written for kind k.
func TypeTag(k Kind) string {
	switch k {
	case KindText:
		return "textbox"
	case KindImage:
		return "image"
	case KindButton:
		return "button"
	case KindFrame, KindShape:
		return "rect"
	}
	return ""
}
