/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package snap

import (
	"testing"

	"bannerforge/internal/geom"
	"bannerforge/internal/scene"
)

func box(left, top, w, h float64) scene.Object {
	return scene.New(scene.KindShape, scene.Geometry{Left: left, Top: top, Width: w, Height: h})
}

func frameObj(left, top, w, h float64) scene.Object {
	f := scene.New(scene.KindFrame, scene.Geometry{Left: left, Top: top, Width: w, Height: h})
	f.Metadata.IsMainFrame = true
	return f
}

func TestSnapsLeftEdgeWithinThreshold(t *testing.T) {
	e := New(Options{Canvas: geom.Size{W: 1000, H: 800}})
	a, b := box(100, 0, 100, 40), box(300, 0, 100, 40)
	moving := box(0, 500, 10, 10)
	objs := []scene.Object{moving, a, b}

	res := e.Calculate(objs, moving, 104, 500)
	if !res.SnappedX || res.Position.X != 100 {
		t.Fatalf("expected snap to x=100, got %+v", res)
	}
	if res.SnappedY {
		t.Fatalf("unexpected y snap: %+v", res)
	}
	if len(res.Lines) != 1 || res.Lines[0].Orientation != "vertical" || res.Lines[0].Position != 100 {
		t.Fatalf("expected one vertical guide at 100, got %+v", res.Lines)
	}
	if res.Lines[0].From.Y != 0 || res.Lines[0].To.Y != 800 {
		t.Fatalf("guide should span the canvas without a frame: %+v", res.Lines[0])
	}

	res = e.Calculate(objs, moving, 107, 500)
	if res.Snapped || res.Position.X != 107 || len(res.Lines) != 0 {
		t.Fatalf("distance 7 must not snap: %+v", res)
	}
}

func TestThresholdIsStrict(t *testing.T) {
	e := New(Options{})
	moving := box(0, 500, 10, 10)
	objs := []scene.Object{moving, box(100, 0, 40, 40)}
	if res := e.Calculate(objs, moving, 105, 500); res.SnappedX {
		t.Fatalf("distance equal to threshold must not snap: %+v", res)
	}
}

func TestFirstMatchWinsOverCloser(t *testing.T) {
	e := New(Options{})
	moving := box(0, 500, 10, 10)
	// candidate order: 100 (distance 4) before 103 (distance 1)
	objs := []scene.Object{moving, box(100, 0, 1000, 10), box(103, 100, 1000, 10)}
	res := e.Calculate(objs, moving, 104, 500)
	if res.Position.X != 100 {
		t.Fatalf("first candidate in scan order should win, got %v", res.Position.X)
	}
}

func TestFrameGuidesAndIndependentAxes(t *testing.T) {
	e := New(Options{GuideMargin: 20})
	f := frameObj(100, 100, 300, 600)
	moving := box(0, 0, 50, 50)
	objs := []scene.Object{moving, f}

	// center of moving (x) lands 2px right of frame center 250; y far from anything
	res := e.Calculate(objs, moving, 227, 333)
	if !res.SnappedX || res.SnappedY {
		t.Fatalf("expected x-only snap, got %+v", res)
	}
	if res.Position.X != 225 {
		t.Fatalf("x = %v, want 225", res.Position.X)
	}
	g := res.Lines[0]
	if g.Position != 250 || g.From.Y != 80 || g.To.Y != 720 {
		t.Fatalf("guide = %+v", g)
	}
}

func TestIgnoresHiddenSiblingsAndSelf(t *testing.T) {
	e := New(Options{})
	hidden := box(100, 0, 40, 40)
	hidden.Visible = false
	moving := box(98, 0, 10, 10)
	objs := []scene.Object{moving, hidden}
	c := Collect(objs, moving.ID)
	if len(c.Vertical) != 0 || len(c.Horizontal) != 0 {
		t.Fatalf("hidden sibling and moving object must not be candidates: %+v", c)
	}
	if res := e.CalculateWith(c, moving, 101, 0); res.Snapped {
		t.Fatalf("unexpected snap: %+v", res)
	}
}
