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
	"errors"
	"testing"
	"time"

	"bannerforge/internal/geom"
	"bannerforge/internal/scene"
)

func imageObj() scene.Object {
	o := scene.New(scene.KindImage, scene.Geometry{Left: 40, Top: 60, Width: 200, Height: 100, ScaleX: 0.5, ScaleY: 0.5})
	o.Visual.Src = "old.png"
	o.Visual.Opacity = 0.8
	o.Visual.CornerRadius = 6
	return o
}

func TestImageSwapKeepsFootprint(t *testing.T) {
	o := imageObj()
	st := sceneWith(o)
	loader := &fakeLoader{sizes: map[string]geom.Size{"old.png": {W: 200, H: 100}, "new.png": {W: 400, H: 400}}}
	c, err := NewImageSwap(st, loader, o.ID, "new.png")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	m := NewManager(5)
	ctx := context.Background()
	if err := m.Execute(ctx, c); err != nil {
		t.Fatalf("execute: %v", err)
	}
	got := get(t, st, o.ID)
	if got.Visual.Src != "new.png" || got.Geometry.Width != 400 || got.Geometry.Height != 400 {
		t.Fatalf("after = %+v", got)
	}
	if ds := got.Geometry.DisplaySize(); ds != (geom.Size{W: 100, H: 50}) {
		t.Fatalf("display size = %+v, want 100x50", ds)
	}
	if got.Geometry.Left != 40 || got.Geometry.Top != 60 || got.Visual.Opacity != 0.8 || got.Visual.CornerRadius != 6 {
		t.Fatalf("position or style changed: %+v", got)
	}

	if _, err := m.Undo(ctx); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if back := get(t, st, o.ID); back.Geometry != o.Geometry || back.Visual != o.Visual {
		t.Fatalf("undo = %+v", back)
	}
	if loader.calls[len(loader.calls)-1] != "old.png" {
		t.Fatalf("undo must await the old source, calls %v", loader.calls)
	}

	// the natural size is memoized; changing the loader answer must not change redo
	loader.sizes["new.png"] = geom.Size{W: 1, H: 1}
	if _, err := m.Redo(ctx); err != nil {
		t.Fatalf("redo: %v", err)
	}
	if g := get(t, st, o.ID).Geometry; g.Width != 400 || g.ScaleX != 0.25 {
		t.Fatalf("redo used a re-derived size: %+v", g)
	}
}

func TestImageSwapFailureLeavesObjectUntouched(t *testing.T) {
	o := imageObj()
	st := sceneWith(o)
	rev := st.Revision()
	c, _ := NewImageSwap(st, &fakeLoader{sizes: map[string]geom.Size{}}, o.ID, "broken.png")
	m := NewManager(5)
	err := m.Execute(context.Background(), c)
	if !errors.Is(err, scene.ErrAsyncResource) {
		t.Fatalf("want resource error, got %v", err)
	}
	if st.Revision() != rev {
		t.Fatalf("failed swap wrote to the scene")
	}
	if got := get(t, st, o.ID); got.Geometry != o.Geometry || got.Visual != o.Visual {
		t.Fatalf("object changed: %+v", got)
	}
	if !m.IsClean() {
		t.Fatalf("failed swap recorded")
	}
}

func TestImageSwapRejectsNonImage(t *testing.T) {
	o := scene.New(scene.KindText, scene.Geometry{Width: 1, Height: 1})
	st := sceneWith(o)
	if _, err := NewImageSwap(st, &fakeLoader{}, o.ID, "a.png"); !errors.Is(err, scene.ErrValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestFontChangeBestEffortOnTimeout(t *testing.T) {
	o := scene.New(scene.KindText, scene.Geometry{Width: 100, Height: 12})
	o.Visual.Text, o.Visual.FontFamily, o.Visual.FontWeight, o.Visual.FontSize = "hello world, again", "Go", 400, 12
	st := sceneWith(o)
	fonts := &fakeFonts{}
	c, err := NewFontChange(st, fonts, lineMeasurer{}, o.ID, FontSpec{Family: "Slow Sans", Weight: 700, Size: 20}, 15*time.Millisecond)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	m := NewManager(5)
	ctx := context.Background()
	start := time.Now()
	if err := m.Execute(ctx, c); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("font wait was not bounded")
	}
	if !errors.Is(c.LastErr, scene.ErrAsyncResource) {
		t.Fatalf("LastErr = %v", c.LastErr)
	}
	got := get(t, st, o.ID)
	if got.Visual.FontFamily != "Slow Sans" || got.Visual.FontWeight != 700 || got.Visual.FontSize != 20 {
		t.Fatalf("font fields not applied: %+v", got.Visual)
	}
	if got.Geometry.Height != 40 {
		t.Fatalf("reflow height = %v, want 40", got.Geometry.Height)
	}

	fonts.ready = map[string]bool{"Go": true}
	_, _ = m.Undo(ctx)
	back := get(t, st, o.ID)
	if back.Visual != o.Visual || back.Geometry.Height != 12 {
		t.Fatalf("undo = %+v", back)
	}
	_, _ = m.Redo(ctx)
	if g := get(t, st, o.ID); g.Geometry.Height != 40 || g.Visual.FontSize != 20 {
		t.Fatalf("redo = %+v", g)
	}
}

func TestFontChangeNeedsAField(t *testing.T) {
	o := scene.New(scene.KindText, scene.Geometry{Width: 1, Height: 1})
	st := sceneWith(o)
	if _, err := NewFontChange(st, nil, nil, o.ID, FontSpec{}, 0); !errors.Is(err, scene.ErrValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
}
