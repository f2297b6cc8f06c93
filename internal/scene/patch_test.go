/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"errors"
	"slices"
	"testing"
)

func TestPatchCaptureRestores(t *testing.T) {
	o := New(KindText, Geometry{Left: 10, Top: 20, Width: 100, Height: 30})
	o.Visual.FontFamily = "Go"
	before := o.Clone()

	p := Patch{Left: Ptr(40.0), FontFamily: Ptr("Go Mono"), Visible: Ptr(false)}
	inv := p.Capture(o)
	p.ApplyTo(&o)
	if o.Geometry.Left != 40 || o.Visual.FontFamily != "Go Mono" || o.Visible {
		t.Fatalf("patch not applied: %+v", o)
	}
	if inv.Top != nil || inv.Width != nil {
		t.Fatalf("inverse captured untouched fields: %v", inv.Fields())
	}
	inv.ApplyTo(&o)
	if o.Geometry != before.Geometry || o.Visual != before.Visual || o.Visible != before.Visible {
		t.Fatalf("inverse did not restore: %+v vs %+v", o, before)
	}
}

func TestPatchFieldsAndMerge(t *testing.T) {
	p := Patch{Left: Ptr(1.0), FontWeight: Ptr(700)}
	q := Patch{Left: Ptr(2.0), Src: Ptr("a.png")}
	m := p.Merge(q)
	if *m.Left != 2 || *m.FontWeight != 700 || *m.Src != "a.png" {
		t.Fatalf("merge = %v", m.Fields())
	}
	if !slices.Equal(m.Fields(), []string{"left", "fontWeight", "src"}) {
		t.Fatalf("fields = %v", m.Fields())
	}
	if !p.TouchesFont() || q.TouchesFont() {
		t.Fatalf("TouchesFont wrong")
	}
	if !(Patch{}).Empty() {
		t.Fatalf("zero patch should be empty")
	}
}

func TestExtractApplyRoundTrip(t *testing.T) {
	o := New(KindButton, Geometry{Left: 5, Top: 6, Width: 100, Height: 40, ScaleX: 2, ScaleY: 1})
	o.Visual.Text = "Buy"
	p, ok := Extract(o).(ButtonProperties)
	if !ok {
		t.Fatalf("extract kind = %T", Extract(o))
	}
	if p.Width != 200 {
		t.Fatalf("display width = %v, want 200", p.Width)
	}
	p.Text = "Buy now"
	p.Width = 300
	if err := ApplyProperties(&o, p); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if o.Visual.Text != "Buy now" || o.Geometry.Width != 150 || o.Geometry.ScaleX != 2 {
		t.Fatalf("apply wrote %+v", o)
	}
}

func TestApplyPropertiesRejectsWrongKind(t *testing.T) {
	o := New(KindImage, Geometry{Width: 10, Height: 10})
	err := ApplyProperties(&o, TextProperties{Text: "x"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestClassifyKind(t *testing.T) {
	cases := []struct {
		typ  string
		md   Metadata
		want Kind
	}{
		{"textbox", Metadata{}, KindText},
		{"i-text", Metadata{}, KindText},
		{"image", Metadata{}, KindImage},
		{"group", Metadata{}, KindButton},
		{"rect", Metadata{IsMainFrame: true}, KindFrame},
		{"rect", Metadata{}, KindShape},
		{"rect", Metadata{Kind: KindButton}, KindButton},
		{"video", Metadata{}, ""},
		{"", Metadata{}, ""},
	}
	for _, c := range cases {
		if got := ClassifyKind(c.typ, c.md); got != c.want {
			t.Fatalf("ClassifyKind(%q, %+v) = %q, want %q", c.typ, c.md, got, c.want)
		}
	}
}
