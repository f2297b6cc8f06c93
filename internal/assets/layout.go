/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package assets

import (
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"bannerforge/internal/geom"
)

// DefaultLineHeight is the line height multiplier used when a text object has none.
const DefaultLineHeight = 1.16

// TextSpec is the text and font of one text object.
type TextSpec struct {
	Family     string
	Weight     int
	Size       float64
	LineHeight float64
	Text       string
}

// Layout is the result of word-wrapping text into a box width.
type Layout struct {
	Lines  []string
	Width  float64
	Height float64
}

// MeasureText implements the reflow measurer: it wraps spec.Text into width and
// returns the used size. Unknown families fall back to a fixed 7x13 face scaled to
// the requested size.
func (r *FontRegistry) MeasureText(spec TextSpec, width float64) geom.Size {
	l := r.Layout(spec, width)
	return geom.Size{W: l.Width, H: l.Height}
}

// Layout breaks spec.Text on spaces and newlines so that no line exceeds width, unless
// a single word is wider. Width <= 0 disables wrapping.
func (r *FontRegistry) Layout(spec TextSpec, width float64) Layout {
	if spec.Size <= 0 {
		spec.Size = 16
	}
	lh := spec.LineHeight
	if lh <= 0 {
		lh = DefaultLineHeight
	}

	measure := r.measurer(spec)

	var out Layout
	for _, para := range strings.Split(spec.Text, "\n") {
		cur, curW := "", 0.0
		flush := func() {
			out.Lines = append(out.Lines, cur)
			out.Width = max(out.Width, curW)
			cur, curW = "", 0
		}
		for _, word := range strings.Fields(para) {
			if cur == "" {
				cur, curW = word, measure(word)
				continue
			}
			candidate := cur + " " + word
			w := measure(candidate)
			if width > 0 && w > width {
				flush()
				cur, curW = word, measure(word)
				continue
			}
			cur, curW = candidate, w
		}
		flush()
	}
	out.Height = float64(len(out.Lines)) * spec.Size * lh
	return out
}

func (r *FontRegistry) measurer(spec TextSpec) func(string) float64 {
	face, err := r.Face(spec.Family, spec.Weight, spec.Size)
	if err != nil {
		// basicfont glyphs are 13px tall; scale advances to the requested size
		scale := spec.Size / 13
		d := &font.Drawer{Face: basicfont.Face7x13}
		return func(s string) float64 { return fixedToFloat(d.MeasureString(s)) * scale }
	}
	return func(s string) float64 {
		r.measureMu.Lock()
		defer r.measureMu.Unlock()
		return fixedToFloat(font.MeasureString(face, s))
	}
}

func fixedToFloat(v fixed.Int26_6) float64 { return float64(v) / 64 }
