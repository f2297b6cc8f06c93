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
	"math"
	"sync"
	"testing"
	"time"

	"bannerforge/internal/assets"
	"bannerforge/internal/geom"
	"bannerforge/internal/scene"
)

type fakeLoader struct {
	mu    sync.Mutex
	sizes map[string]geom.Size
	calls []string
}

func (f *fakeLoader) LoadImage(ctx context.Context, src string) (assets.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, src)
	sz, ok := f.sizes[src]
	if !ok {
		return assets.Image{}, errors.New("decode failed")
	}
	return assets.Image{Src: src, Width: sz.W, Height: sz.H}, nil
}

type fakeFonts struct {
	mu    sync.Mutex
	ready map[string]bool
	asked []string
}

func (f *fakeFonts) AwaitFontReady(ctx context.Context, family string, weight int) error {
	f.mu.Lock()
	f.asked = append(f.asked, family)
	ok := f.ready[family]
	f.mu.Unlock()
	if ok {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

// lineMeasurer reports one 10px line per 10 characters.
type lineMeasurer struct{}

func (lineMeasurer) MeasureText(spec assets.TextSpec, width float64) geom.Size {
	lines := math.Ceil(float64(len(spec.Text)) / 10)
	return geom.Size{W: width, H: lines * spec.Size}
}

func sceneWith(objs ...scene.Object) *scene.State {
	st := scene.NewState()
	for i := len(objs) - 1; i >= 0; i-- {
		_ = st.Add(objs[i])
	}
	return st
}

func get(t *testing.T, st *scene.State, id string) scene.Object {
	t.Helper()
	o, ok := st.Get(id)
	if !ok {
		t.Fatalf("object %s missing", id)
	}
	return o
}

func TestUpdatePropertiesUndoRedo(t *testing.T) {
	o := scene.New(scene.KindShape, scene.Geometry{Left: 1, Top: 2, Width: 30, Height: 40})
	st := sceneWith(o)
	m := NewManager(10)
	ctx := context.Background()

	c, err := NewUpdateProperties(st, o.ID, scene.Patch{Left: scene.Ptr(50.0), Fill: scene.Ptr("#f00")})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := m.Execute(ctx, c); err != nil {
		t.Fatalf("execute: %v", err)
	}
	after := get(t, st, o.ID)
	if after.Geometry.Left != 50 || after.Visual.Fill != "#f00" {
		t.Fatalf("not applied: %+v", after)
	}
	_, _ = m.Undo(ctx)
	if got := get(t, st, o.ID); got.Geometry != o.Geometry || got.Visual != o.Visual {
		t.Fatalf("undo = %+v", got)
	}
	_, _ = m.Redo(ctx)
	if got := get(t, st, o.ID); got.Geometry != after.Geometry || got.Visual != after.Visual {
		t.Fatalf("redo = %+v", got)
	}
}

func TestUpdateOnRemovedObjectIsStateError(t *testing.T) {
	o := scene.New(scene.KindShape, scene.Geometry{Width: 1, Height: 1})
	st := sceneWith(o)
	c, _ := NewUpdateProperties(st, o.ID, scene.Patch{Left: scene.Ptr(3.0)})
	_, _, _ = st.Remove(o.ID)
	err := NewManager(5).Execute(context.Background(), c)
	if !errors.Is(err, scene.ErrState) {
		t.Fatalf("want state error, got %v", err)
	}
	if _, err := NewUpdateProperties(st, o.ID, scene.Patch{}); !errors.Is(err, scene.ErrState) {
		t.Fatalf("construct on missing: %v", err)
	}
}

func TestGestureSnapshotCommand(t *testing.T) {
	o := scene.New(scene.KindShape, scene.Geometry{Left: 10, Top: 10, Width: 5, Height: 5})
	st := sceneWith(o)
	before := scene.Patch{Left: scene.Ptr(10.0), Top: scene.Ptr(10.0)}
	_ = st.Update(o.ID, func(x *scene.Object) { x.Geometry.Left, x.Geometry.Top = 80, 90 })
	c, err := NewUpdateFromSnapshots(st, o.ID, before)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	m := NewManager(5)
	m.AddToHistory(c)
	_, _ = m.Undo(context.Background())
	if g := get(t, st, o.ID).Geometry; g.Left != 10 || g.Top != 10 {
		t.Fatalf("undo = %+v", g)
	}
	_, _ = m.Redo(context.Background())
	if g := get(t, st, o.ID).Geometry; g.Left != 80 || g.Top != 90 {
		t.Fatalf("redo = %+v", g)
	}
}

func TestBatchUpdatePreloadsThenAppliesAll(t *testing.T) {
	a := scene.New(scene.KindText, scene.Geometry{Width: 100, Height: 10})
	a.Visual.Text, a.Visual.FontFamily, a.Visual.FontSize = "twenty characters!!!", "Go", 10
	b := scene.New(scene.KindText, scene.Geometry{Width: 100, Height: 10})
	b.Visual.Text, b.Visual.FontFamily, b.Visual.FontSize = "short", "Go", 10
	st := sceneWith(a, b)
	fonts := &fakeFonts{ready: map[string]bool{"Go Mono": true}}

	c, err := NewBatchUpdate(st, []string{a.ID, b.ID}, scene.Patch{FontFamily: scene.Ptr("Go Mono")},
		WithFontPreload(fonts, time.Second), WithReflow(lineMeasurer{}))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	m := NewManager(5)
	ctx := context.Background()
	if err := m.Execute(ctx, c); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(fonts.asked) != 1 || fonts.asked[0] != "Go Mono" {
		t.Fatalf("preload asked %v, want one distinct font", fonts.asked)
	}
	ga, gb := get(t, st, a.ID), get(t, st, b.ID)
	if ga.Visual.FontFamily != "Go Mono" || gb.Visual.FontFamily != "Go Mono" {
		t.Fatalf("font not applied to all")
	}
	if ga.Geometry.Height != 20 || gb.Geometry.Height != 10 {
		t.Fatalf("reflow heights = %v, %v", ga.Geometry.Height, gb.Geometry.Height)
	}
	if undoLen, _ := m.Stats(); undoLen != 1 {
		t.Fatalf("batch must be one undo point")
	}
	_, _ = m.Undo(ctx)
	ga, gb = get(t, st, a.ID), get(t, st, b.ID)
	if ga.Visual.FontFamily != "Go" || gb.Visual.FontFamily != "Go" || ga.Geometry.Height != 10 {
		t.Fatalf("undo did not restore both: %+v %+v", ga.Visual, gb.Visual)
	}
}

func TestBatchUpdateAppliesAfterPreloadTimeout(t *testing.T) {
	a := scene.New(scene.KindText, scene.Geometry{Width: 100, Height: 10})
	st := sceneWith(a)
	fonts := &fakeFonts{}
	c, _ := NewBatchUpdate(st, []string{a.ID}, scene.Patch{FontFamily: scene.Ptr("Missing")},
		WithFontPreload(fonts, 10*time.Millisecond))
	if err := NewManager(5).Execute(context.Background(), c); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if get(t, st, a.ID).Visual.FontFamily != "Missing" {
		t.Fatalf("font change should apply after preload timeout")
	}
}

func TestAlignAgainstReference(t *testing.T) {
	o := scene.New(scene.KindShape, scene.Geometry{Left: 0, Top: 0, Width: 50, Height: 20})
	st := sceneWith(o)
	ref := geom.R(100, 200, 300, 400)
	cases := []struct {
		mode AlignMode
		want geom.Pt
	}{
		{AlignLeft, geom.Pt{X: 100, Y: 0}},
		{AlignCenter, geom.Pt{X: 225, Y: 0}},
		{AlignRight, geom.Pt{X: 350, Y: 0}},
		{AlignTop, geom.Pt{X: 0, Y: 200}},
		{AlignMiddle, geom.Pt{X: 0, Y: 390}},
		{AlignBottom, geom.Pt{X: 0, Y: 580}},
	}
	m := NewManager(10)
	for _, c := range cases {
		cmd, err := Align(st, o.ID, c.mode, ref)
		if err != nil {
			t.Fatalf("%s: %v", c.mode, err)
		}
		_ = m.Execute(context.Background(), cmd)
		g := get(t, st, o.ID).Geometry
		if g.Left != c.want.X || g.Top != c.want.Y {
			t.Fatalf("%s: got %v,%v want %+v", c.mode, g.Left, g.Top, c.want)
		}
		_, _ = m.Undo(context.Background())
	}
	if _, ok := ParseAlignMode("diagonal"); ok {
		t.Fatalf("unknown mode accepted")
	}
}

func TestTransformRotatesAroundCenter(t *testing.T) {
	o := scene.New(scene.KindShape, scene.Geometry{Left: 100, Top: 100, Width: 100, Height: 50})
	st := sceneWith(o)
	center := o.Bounds().Center()
	c, err := Transform(st, o.ID, RotateCW)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	_ = c.Apply(context.Background())
	got := get(t, st, o.ID)
	if got.Geometry.Angle != 90 {
		t.Fatalf("angle = %v", got.Geometry.Angle)
	}
	if nc := got.Bounds().Center(); math.Abs(nc.X-center.X) > 1e-6 || math.Abs(nc.Y-center.Y) > 1e-6 {
		t.Fatalf("center moved from %+v to %+v", center, nc)
	}
	ccw, _ := Transform(st, o.ID, RotateCCW)
	_ = ccw.Apply(context.Background())
	if a := get(t, st, o.ID).Geometry.Angle; a != 0 {
		t.Fatalf("angle after ccw = %v", a)
	}
	flip, _ := Transform(st, o.ID, FlipX)
	_ = flip.Apply(context.Background())
	if !get(t, st, o.ID).Geometry.FlipX {
		t.Fatalf("flipX not toggled")
	}
	_ = flip.Invert(context.Background())
	if get(t, st, o.ID).Geometry.FlipX {
		t.Fatalf("flipX not restored")
	}
}

func TestFrameUpdateCallsBack(t *testing.T) {
	f := scene.New(scene.KindFrame, scene.Geometry{Left: 0, Top: 0, Width: 100, Height: 100})
	f.Metadata.IsMainFrame = true
	f.Metadata.AspectRatio = 1
	st := sceneWith(f)
	calls := 0
	before := FrameStateOf(f)
	after := before
	after.Width, after.Height = 200, 200
	c, err := NewFrameUpdate(st, before, after, func() { calls++ })
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	m := NewManager(5)
	ctx := context.Background()
	_ = m.Execute(ctx, c)
	_, _ = m.Undo(ctx)
	_, _ = m.Redo(ctx)
	if calls != 3 {
		t.Fatalf("callback calls = %d", calls)
	}
	if fr, _ := st.Frame(); fr.Geometry.Width != 200 {
		t.Fatalf("redo width = %v", fr.Geometry.Width)
	}
	if _, err := NewFrameUpdate(scene.NewState(), before, after, nil); !errors.Is(err, scene.ErrValidation) {
		t.Fatalf("frame update without frame: %v", err)
	}
}

func TestAddLayerUndoRedo(t *testing.T) {
	st := scene.NewState()
	o := scene.New(scene.KindText, scene.Geometry{Width: 10, Height: 10})
	var added []string
	c := NewAddLayer(st, o, func(id string) { added = append(added, id) })
	m := NewManager(5)
	ctx := context.Background()
	_ = m.Execute(ctx, c)
	_, _ = m.Undo(ctx)
	if st.Has(o.ID) {
		t.Fatalf("undo should remove the new layer")
	}
	_, _ = m.Redo(ctx)
	if st.IndexOf(o.ID) != 0 || len(added) != 2 {
		t.Fatalf("redo index=%d callbacks=%d", st.IndexOf(o.ID), len(added))
	}
}

func TestDeleteLayerRefusesFrame(t *testing.T) {
	f := scene.New(scene.KindFrame, scene.Geometry{Width: 10, Height: 10})
	f.Metadata.IsMainFrame = true
	st := sceneWith(f)
	if _, err := NewDeleteLayer(st, f.ID); !errors.Is(err, scene.ErrValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
	if _, err := NewReorderLayer(st, f.ID, 0); !errors.Is(err, scene.ErrValidation) {
		t.Fatalf("reorder frame: %v", err)
	}
}
