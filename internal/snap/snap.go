/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package snap computes magnetic alignment of a moving object against the frame and
// its visible siblings. It is deterministic and free of UI state so it can run once
// per pointer-move tick.
package snap

import (
	"math"

	"bannerforge/internal/geom"
	"bannerforge/internal/scene"
)

// DefaultThreshold is the snap distance in canvas pixels. A match must be strictly closer.
const DefaultThreshold = 5

// DefaultGuideMargin extends guide lines past the frame edges.
const DefaultGuideMargin = 20

// Options controls the engine.
type Options struct {
	Threshold   float64
	GuideMargin float64
	// Canvas is the drawing area; guides span it when there is no frame.
	Canvas geom.Size
}

// Engine resolves snap positions. The zero value is not usable; call New.
type Engine struct {
	opts Options
}

func New(opts Options) *Engine {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.GuideMargin < 0 {
		opts.GuideMargin = 0
	}
	return &Engine{opts: opts}
}

// Threshold returns the effective snap distance.
func (e *Engine) Threshold() float64 { return e.opts.Threshold }

// SetCanvas updates the canvas size used for guide extents without a frame.
func (e *Engine) SetCanvas(s geom.Size) { e.opts.Canvas = s }

// Result is the outcome of Calculate.
type Result struct {
	Snapped  bool
	SnappedX bool
	SnappedY bool
	// Position is the adjusted left/top; equal to the proposal on an axis that did not snap.
	Position geom.Pt
	Lines    []scene.GuideLine
}

// Candidates are the coordinates a moving object may align to, in scan order.
type Candidates struct {
	Vertical   []float64 // x values: left, centerX, right per source
	Horizontal []float64 // y values: top, centerY, bottom per source
	frame      *geom.Rect
}

// Collect gathers candidates from the frame first, then every visible sibling in list
// order. The moving object and the frame are never siblings; guides are not objects
// and never appear here.
func Collect(objs []scene.Object, movingID string) Candidates {
	var c Candidates
	add := func(b geom.Rect) {
		c.Vertical = append(c.Vertical, b.Left(), b.CenterX(), b.Right())
		c.Horizontal = append(c.Horizontal, b.Top(), b.CenterY(), b.Bottom())
	}
	for i := range objs {
		if objs[i].IsFrame() {
			b := objs[i].Bounds()
			c.frame = &b
			add(b)
			break
		}
	}
	for i := range objs {
		o := &objs[i]
		if o.IsFrame() || o.ID == movingID || !o.Visible {
			continue
		}
		add(o.Bounds())
	}
	return c
}

// Calculate snaps moving, proposed at (left, top), against objs. Each axis is
// resolved on its own: the moving object's checks run in order (left, center, right
// and top, middle, bottom), each scanning candidates in collection order, and the
// first candidate strictly within the threshold wins even if a later one is closer.
func (e *Engine) Calculate(objs []scene.Object, moving scene.Object, left, top float64) Result {
	return e.CalculateWith(Collect(objs, moving.ID), moving, left, top)
}

// CalculateWith is Calculate with precollected candidates, for use across the ticks of
// one drag.
func (e *Engine) CalculateWith(c Candidates, moving scene.Object, left, top float64) Result {
	res := Result{Position: geom.Pt{X: left, Y: top}}

	// The bounding box may be offset from (Left, Top) when rotated.
	b := moving.Bounds()
	box := b.Translate(left-moving.Geometry.Left, top-moving.Geometry.Top)

	xChecks := []float64{box.Left(), box.CenterX(), box.Right()}
	if cand, check, ok := firstMatch(xChecks, c.Vertical, e.opts.Threshold); ok {
		res.Position.X = left + (cand - check)
		res.SnappedX = true
		res.Lines = append(res.Lines, e.verticalGuide(cand, c.frame))
	}
	yChecks := []float64{box.Top(), box.CenterY(), box.Bottom()}
	if cand, check, ok := firstMatch(yChecks, c.Horizontal, e.opts.Threshold); ok {
		res.Position.Y = top + (cand - check)
		res.SnappedY = true
		res.Lines = append(res.Lines, e.horizontalGuide(cand, c.frame))
	}
	res.Snapped = res.SnappedX || res.SnappedY
	return res
}

func firstMatch(checks, candidates []float64, threshold float64) (cand, check float64, ok bool) {
	for _, ck := range checks {
		for _, cd := range candidates {
			if math.Abs(ck-cd) < threshold {
				return cd, ck, true
			}
		}
	}
	return 0, 0, false
}

func (e *Engine) verticalGuide(x float64, frame *geom.Rect) scene.GuideLine {
	from, to := 0.0, e.opts.Canvas.H
	if frame != nil {
		from, to = frame.Top()-e.opts.GuideMargin, frame.Bottom()+e.opts.GuideMargin
	}
	x = geom.Round(x, 3)
	return scene.GuideLine{Orientation: "vertical", Position: x, From: geom.Pt{X: x, Y: from}, To: geom.Pt{X: x, Y: to}}
}

func (e *Engine) horizontalGuide(y float64, frame *geom.Rect) scene.GuideLine {
	from, to := 0.0, e.opts.Canvas.W
	if frame != nil {
		from, to = frame.Left()-e.opts.GuideMargin, frame.Right()+e.opts.GuideMargin
	}
	y = geom.Round(y, 3)
	return scene.GuideLine{Orientation: "horizontal", Position: y, From: geom.Pt{X: from, Y: y}, To: geom.Pt{X: to, Y: y}}
}
