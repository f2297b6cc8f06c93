/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

// Patch is a partial object update: nil fields are left untouched. Commands keep a
// forward patch and the inverse produced by Capture before the first write.
type Patch struct {
	Left   *float64
	Top    *float64
	Width  *float64
	Height *float64
	ScaleX *float64
	ScaleY *float64
	Angle  *float64
	FlipX  *bool
	FlipY  *bool

	Fill         *string
	Stroke       *string
	StrokeWidth  *float64
	Opacity      *float64
	Text         *string
	TextColor    *string
	FontFamily   *string
	FontWeight   *int
	FontSize     *float64
	TextAlign    *string
	LineHeight   *float64
	CornerRadius *float64
	Src          *string

	Visible     *bool
	Locked      *bool
	CustomName  *string
	AspectRatio *float64
}

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T { return &v }

type fieldRef struct {
	name string
	src  any // **T inside the patch
	dst  any // *T inside the object
}

func (p *Patch) refs(o *Object) []fieldRef {
	g, v := &o.Geometry, &o.Visual
	return []fieldRef{
		{"left", &p.Left, &g.Left},
		{"top", &p.Top, &g.Top},
		{"width", &p.Width, &g.Width},
		{"height", &p.Height, &g.Height},
		{"scaleX", &p.ScaleX, &g.ScaleX},
		{"scaleY", &p.ScaleY, &g.ScaleY},
		{"angle", &p.Angle, &g.Angle},
		{"flipX", &p.FlipX, &g.FlipX},
		{"flipY", &p.FlipY, &g.FlipY},
		{"fill", &p.Fill, &v.Fill},
		{"stroke", &p.Stroke, &v.Stroke},
		{"strokeWidth", &p.StrokeWidth, &v.StrokeWidth},
		{"opacity", &p.Opacity, &v.Opacity},
		{"text", &p.Text, &v.Text},
		{"textColor", &p.TextColor, &v.TextColor},
		{"fontFamily", &p.FontFamily, &v.FontFamily},
		{"fontWeight", &p.FontWeight, &v.FontWeight},
		{"fontSize", &p.FontSize, &v.FontSize},
		{"textAlign", &p.TextAlign, &v.TextAlign},
		{"lineHeight", &p.LineHeight, &v.LineHeight},
		{"cornerRadius", &p.CornerRadius, &v.CornerRadius},
		{"src", &p.Src, &v.Src},
		{"visible", &p.Visible, &o.Visible},
		{"locked", &p.Locked, &o.Locked},
		{"customName", &p.CustomName, &o.Metadata.CustomName},
		{"aspectRatio", &p.AspectRatio, &o.Metadata.AspectRatio},
	}
}

func isSet(src any) bool {
	switch s := src.(type) {
	case **float64:
		return *s != nil
	case **string:
		return *s != nil
	case **bool:
		return *s != nil
	case **int:
		return *s != nil
	}
	return false
}

// ApplyTo writes every set field onto o.
func (p Patch) ApplyTo(o *Object) {
	for _, r := range p.refs(o) {
		switch s := r.src.(type) {
		case **float64:
			if *s != nil {
				*r.dst.(*float64) = **s
			}
		case **string:
			if *s != nil {
				*r.dst.(*string) = **s
			}
		case **bool:
			if *s != nil {
				*r.dst.(*bool) = **s
			}
		case **int:
			if *s != nil {
				*r.dst.(*int) = **s
			}
		}
	}
}

// Capture returns the patch that restores o's current values for every field p sets.
func (p Patch) Capture(o Object) Patch {
	var inv Patch
	own := p.refs(&o)
	back := inv.refs(&o)
	for i, r := range own {
		if !isSet(r.src) {
			continue
		}
		switch d := r.dst.(type) {
		case *float64:
			*back[i].src.(**float64) = Ptr(*d)
		case *string:
			*back[i].src.(**string) = Ptr(*d)
		case *bool:
			*back[i].src.(**bool) = Ptr(*d)
		case *int:
			*back[i].src.(**int) = Ptr(*d)
		}
	}
	return inv
}

// Merge returns p with every field set in q overriding p's value.
func (p Patch) Merge(q Patch) Patch {
	var scratch Object
	out := p
	dst := out.refs(&scratch)
	for i, r := range q.refs(&scratch) {
		if !isSet(r.src) {
			continue
		}
		switch s := r.src.(type) {
		case **float64:
			*dst[i].src.(**float64) = *s
		case **string:
			*dst[i].src.(**string) = *s
		case **bool:
			*dst[i].src.(**bool) = *s
		case **int:
			*dst[i].src.(**int) = *s
		}
	}
	return out
}

// Fields lists the names of the set fields, in declaration order.
func (p Patch) Fields() []string {
	var scratch Object
	var out []string
	for _, r := range p.refs(&scratch) {
		if isSet(r.src) {
			out = append(out, r.name)
		}
	}
	return out
}

// Empty reports whether p sets no field.
func (p Patch) Empty() bool { return len(p.Fields()) == 0 }

// SplitPlacement separates the fields that move or resize an object, plus the stored
// aspect ratio, from the rest of p.
func (p Patch) SplitPlacement() (placement, rest Patch) {
	placement = Patch{Left: p.Left, Top: p.Top, Width: p.Width, Height: p.Height,
		ScaleX: p.ScaleX, ScaleY: p.ScaleY, AspectRatio: p.AspectRatio}
	rest = p
	rest.Left, rest.Top, rest.Width, rest.Height = nil, nil, nil, nil
	rest.ScaleX, rest.ScaleY, rest.AspectRatio = nil, nil, nil
	return placement, rest
}

// TouchesFont reports whether p changes a field that needs a loaded font.
func (p Patch) TouchesFont() bool {
	return p.FontFamily != nil || p.FontWeight != nil
}

// TouchesText reports whether p changes a field that affects text layout.
func (p Patch) TouchesText() bool {
	return p.TouchesFont() || p.FontSize != nil || p.Text != nil || p.LineHeight != nil || p.Width != nil
}
