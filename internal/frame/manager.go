/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package frame tracks the main frame: its bounds, the clip region of every sibling,
// aspect-ratio enforcement after resizes and containment of new objects.
//
// Without a frame every operation is a no-op.
package frame

import (
	"log/slog"
	"math"
	"sync"

	"bannerforge/internal/command"
	"bannerforge/internal/geom"
	applog "bannerforge/internal/log"
	"bannerforge/internal/scene"
)

// DefaultEpsilon is the tolerated aspect-ratio drift before a correction.
const DefaultEpsilon = 1e-4

// Manager owns the frame-derived state of one scene.
type Manager struct {
	state   *scene.State
	epsilon float64

	mu       sync.Mutex
	viewport geom.Size

	log *slog.Logger
}

func NewManager(state *scene.State, viewport geom.Size, epsilon float64) *Manager {
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}
	return &Manager{state: state, viewport: viewport, epsilon: epsilon, log: applog.WithComponent("frame")}
}

// SetViewport records the visible canvas size.
func (m *Manager) SetViewport(s geom.Size) {
	m.mu.Lock()
	m.viewport = s
	m.mu.Unlock()
}

func (m *Manager) Viewport() geom.Size {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewport
}

// Bounds returns the displayed frame rectangle.
func (m *Manager) Bounds() (geom.Rect, bool) {
	f, ok := m.state.Frame()
	if !ok {
		return geom.Rect{}, false
	}
	return frameRect(f.Geometry), true
}

// Reference is the rectangle objects align against: the frame, else the viewport.
func (m *Manager) Reference() geom.Rect {
	if b, ok := m.Bounds(); ok {
		return b
	}
	v := m.Viewport()
	return geom.Rect{W: v.W, H: v.H}
}

func frameRect(g scene.Geometry) geom.Rect {
	return geom.Rect{X: g.Left, Y: g.Top, W: g.Width * g.ScaleX, H: g.Height * g.ScaleY}
}

// InitializeFrame creates the frame centered in the viewport and stores its aspect ratio.
func (m *Manager) InitializeFrame(width, height float64) (scene.Object, error) {
	if width <= 0 || height <= 0 {
		return scene.Object{}, scene.Validationf("initialize_frame", "", "frame size %vx%v must be positive", width, height)
	}
	if _, ok := m.state.Frame(); ok {
		return scene.Object{}, scene.Validationf("initialize_frame", "", "scene already has a frame")
	}
	v := m.Viewport()
	r := geom.CenteredIn(geom.Pt{X: v.W / 2, Y: v.H / 2}, geom.Size{W: width, H: height})
	f := scene.New(scene.KindFrame, scene.Geometry{Left: r.X, Top: r.Y, Width: width, Height: height})
	f.Visual.Fill = "#ffffff"
	f.Metadata.IsMainFrame = true
	f.Metadata.AspectRatio = width / height
	f.Metadata.CustomName = "Frame"
	if err := m.state.Add(f); err != nil {
		return scene.Object{}, err
	}
	m.Refresh()
	m.log.Info("frame initialized", slog.String("id", f.ID), slog.Float64("w", width), slog.Float64("h", height))
	return f, nil
}

// UpdateFrameBounds recomputes the frame rectangle and republishes it.
func (m *Manager) UpdateFrameBounds() scene.FrameBounds {
	b, ok := m.Bounds()
	fb := scene.FrameBounds{Rect: b, Present: ok}
	m.state.PublishFrameBounds(fb)
	return fb
}

// ApplyFrameClipping sets id's clip region to the absolute frame bounds.
func (m *Manager) ApplyFrameClipping(id string) error {
	b, ok := m.Bounds()
	if !ok {
		return nil
	}
	obj, found := m.state.Get(id)
	if !found {
		return scene.Missing("apply_frame_clipping", id)
	}
	if obj.IsFrame() {
		return nil
	}
	return m.state.Update(id, func(o *scene.Object) {
		clip := b
		o.Clip = &clip
	})
}

// ApplyClippingToAllObjects clips every non-frame object to the frame.
func (m *Manager) ApplyClippingToAllObjects() {
	b, ok := m.Bounds()
	if !ok {
		return
	}
	m.state.UpdateAll(func(o *scene.Object) {
		clip := b
		o.Clip = &clip
	})
}

// Refresh republishes the bounds and reclips all siblings. Frame commands call it
// after every write.
func (m *Manager) Refresh() {
	m.UpdateFrameBounds()
	m.ApplyClippingToAllObjects()
}

// EnforceGeometry bakes scale into width/height and, if the result drifts from ratio
// by more than eps, recomputes the dimension on the axis whose scale moved less.
// Scale is reset to 1.
func EnforceGeometry(g scene.Geometry, ratio, eps float64) scene.Geometry {
	w, h := g.Width*g.ScaleX, g.Height*g.ScaleY
	if ratio > 0 && h > 0 && math.Abs(w/h-ratio) > eps {
		if math.Abs(g.ScaleX-1) >= math.Abs(g.ScaleY-1) {
			h = w / ratio
		} else {
			w = h * ratio
		}
	}
	g.Width, g.Height = w, h
	g.ScaleX, g.ScaleY = 1, 1
	return g
}

// EnforceAspectRatio applies EnforceGeometry to the frame in the scene. It reports
// whether the frame changed.
func (m *Manager) EnforceAspectRatio() (bool, error) {
	f, ok := m.state.Frame()
	if !ok {
		return false, nil
	}
	next := EnforceGeometry(f.Geometry, f.Metadata.AspectRatio, m.epsilon)
	if next == f.Geometry {
		return false, nil
	}
	if err := m.state.Update(f.ID, func(o *scene.Object) { o.Geometry = next }); err != nil {
		return false, err
	}
	m.Refresh()
	return true, nil
}

// ConstrainedPosition picks the top-left for a new object of the given display size.
// Without a frame it centers on the viewport. With a frame it centers in the frame, or
// starts from the preferred position, then clamps so the object stays inside.
func (m *Manager) ConstrainedPosition(width, height float64, preferred *geom.Pt) geom.Pt {
	b, ok := m.Bounds()
	if !ok {
		v := m.Viewport()
		if preferred != nil {
			return *preferred
		}
		return geom.Pt{X: v.W/2 - width/2, Y: v.H/2 - height/2}
	}
	p := geom.Pt{X: b.CenterX() - width/2, Y: b.CenterY() - height/2}
	if preferred != nil {
		p = *preferred
	}
	p.X = geom.Clamp(p.X, b.Left(), b.Right()-width)
	p.Y = geom.Clamp(p.Y, b.Top(), b.Bottom()-height)
	return p
}

// Contain returns g moved so its bounding box lies inside the frame. An axis on which
// the object is larger than the frame is left alone.
func (m *Manager) Contain(g scene.Geometry) scene.Geometry {
	b, ok := m.Bounds()
	if !ok {
		return g
	}
	return ContainIn(b, g)
}

// ContainIn is Contain against an explicit frame rectangle. It does not touch the
// scene, so it may run inside a scene update.
func ContainIn(b geom.Rect, g scene.Geometry) scene.Geometry {
	box := g.Bounds()
	if box.W <= b.W {
		g.Left += geom.Clamp(box.X, b.Left(), b.Right()-box.W) - box.X
	}
	if box.H <= b.H {
		g.Top += geom.Clamp(box.Y, b.Top(), b.Bottom()-box.H) - box.Y
	}
	return g
}

// ContainSiblings builds the command that moves every non-frame object back inside
// the rectangle b, for a frame about to take that rectangle. It returns nil when
// nothing has to move.
func (m *Manager) ContainSiblings(b geom.Rect) (*command.BatchUpdate, error) {
	moves := make(map[string]scene.Patch)
	for _, o := range m.state.Objects() {
		if o.IsFrame() {
			continue
		}
		g := ContainIn(b, o.Geometry)
		if g.Left != o.Geometry.Left || g.Top != o.Geometry.Top {
			moves[o.ID] = scene.Patch{Left: scene.Ptr(g.Left), Top: scene.Ptr(g.Top)}
		}
	}
	if len(moves) == 0 {
		return nil, nil
	}
	m.log.Debug("containing siblings", slog.Int("moved", len(moves)))
	return command.NewBatchUpdateEach(m.state, moves)
}
