/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package interaction turns pointer gestures into live scene updates and, at gesture
// end, one undoable history entry.
package interaction

import (
	"context"
	"log/slog"
	"sync"

	"bannerforge/internal/command"
	"bannerforge/internal/frame"
	"bannerforge/internal/geom"
	applog "bannerforge/internal/log"
	"bannerforge/internal/scene"
	"bannerforge/internal/snap"
)

// Gesture is the kind of pointer interaction in progress.
type Gesture int

const (
	Move Gesture = iota + 1
	Scale
	Rotate
)

func (g Gesture) String() string {
	switch g {
	case Move:
		return "move"
	case Scale:
		return "scale"
	case Rotate:
		return "rotate"
	}
	return "none"
}

type active struct {
	id      string
	kind    Gesture
	isFrame bool
	before  scene.Patch
	frame   command.FrameState
	cands   snap.Candidates
	moved   bool
}

// Handler bridges gesture ticks to constraint application. One gesture at a time.
type Handler struct {
	state    *scene.State
	frames   *frame.Manager
	snapper  *snap.Engine
	commands *command.Manager
	log      *slog.Logger

	mu  sync.Mutex
	cur *active
}

func NewHandler(state *scene.State, frames *frame.Manager, snapper *snap.Engine, commands *command.Manager) *Handler {
	return &Handler{state: state, frames: frames, snapper: snapper, commands: commands, log: applog.WithComponent("interaction")}
}

var geometryFields = scene.Patch{
	Left: scene.Ptr(0.0), Top: scene.Ptr(0.0), Width: scene.Ptr(0.0), Height: scene.Ptr(0.0),
	ScaleX: scene.Ptr(0.0), ScaleY: scene.Ptr(0.0), Angle: scene.Ptr(0.0),
}

// Begin starts a gesture on id. Locked objects cannot be manipulated.
func (h *Handler) Begin(id string, kind Gesture) error {
	obj, ok := h.state.Get(id)
	if !ok {
		return scene.Missing("gesture_begin", id)
	}
	if obj.Locked {
		err := scene.Validationf("gesture_begin", id, "layer is locked")
		h.commands.Reject(err)
		return err
	}
	a := &active{id: id, kind: kind, isFrame: obj.IsFrame(), before: geometryFields.Capture(obj)}
	if a.isFrame {
		a.frame = command.FrameStateOf(obj)
	}
	if kind == Move && !a.isFrame {
		a.cands = snap.Collect(h.state.Objects(), id)
	}
	h.mu.Lock()
	h.cur = a
	h.mu.Unlock()
	h.log.Debug("gesture begin", slog.String("object", id), slog.String("gesture", kind.String()))
	return nil
}

func (h *Handler) current(want Gesture) (*active, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cur == nil || h.cur.kind != want {
		return nil, scene.Validationf("gesture", "", "no %s gesture in progress", want)
	}
	return h.cur, nil
}

// Drag moves the object to the proposed position, snapping it and showing guides.
func (h *Handler) Drag(left, top float64) (snap.Result, error) {
	a, err := h.current(Move)
	if err != nil {
		return snap.Result{}, err
	}
	obj, ok := h.state.Get(a.id)
	if !ok {
		return snap.Result{}, scene.Missing("drag", a.id)
	}
	res := snap.Result{Position: geom.Pt{X: left, Y: top}}
	if !a.isFrame {
		res = h.snapper.CalculateWith(a.cands, obj, left, top)
	}
	if err := h.state.Update(a.id, func(o *scene.Object) {
		o.Geometry.Left, o.Geometry.Top = res.Position.X, res.Position.Y
	}); err != nil {
		return res, err
	}
	a.moved = true
	if res.Snapped {
		h.state.SetGuides(res.Lines)
	} else {
		h.state.ClearGuides()
	}
	if a.isFrame {
		h.frames.Refresh()
	}
	return res, nil
}

// Resize applies live scale factors relative to the gesture start. The frame keeps its
// aspect ratio on every tick: its scale is baked into width/height each time, so the
// factors are applied to the size captured at Begin. Other objects are kept inside the
// frame.
func (h *Handler) Resize(scaleX, scaleY, left, top float64) error {
	a, err := h.current(Scale)
	if err != nil {
		return err
	}
	fb, hasFrame := h.frames.Bounds()
	if err := h.state.Update(a.id, func(o *scene.Object) {
		if a.isFrame {
			o.Geometry.Width, o.Geometry.Height = a.frame.Width, a.frame.Height
		}
		o.Geometry.ScaleX, o.Geometry.ScaleY = scaleX, scaleY
		o.Geometry.Left, o.Geometry.Top = left, top
		if !a.isFrame && hasFrame {
			o.Geometry = frame.ContainIn(fb, o.Geometry)
		}
	}); err != nil {
		return err
	}
	a.moved = true
	if a.isFrame {
		if _, err := h.frames.EnforceAspectRatio(); err != nil {
			return err
		}
	}
	return nil
}

// Turn applies a live rotation angle in degrees.
func (h *Handler) Turn(angle float64) error {
	a, err := h.current(Rotate)
	if err != nil {
		return err
	}
	if a.isFrame {
		return scene.Validationf("rotate", a.id, "the frame cannot be rotated")
	}
	if err := h.state.Update(a.id, func(o *scene.Object) { o.Geometry.Angle = angle }); err != nil {
		return err
	}
	a.moved = true
	return nil
}

// End finishes the gesture: guides are cleared and, if anything changed, one command
// carrying the captured before-state is added to history without reapplying it.
func (h *Handler) End() (command.Command, error) {
	h.mu.Lock()
	a := h.cur
	h.cur = nil
	h.mu.Unlock()
	h.state.ClearGuides()
	if a == nil || !a.moved {
		return nil, nil
	}
	obj, ok := h.state.Get(a.id)
	if !ok {
		return nil, scene.Missing("gesture_end", a.id)
	}
	var cmd command.Command
	if a.isFrame {
		c, err := h.endFrame(a, obj)
		if err != nil {
			return nil, err
		}
		cmd = c
	} else {
		uc, err := command.NewUpdateFromSnapshots(h.state, a.id, a.before)
		if err != nil {
			return nil, err
		}
		cmd = uc
	}
	h.commands.AddToHistory(cmd)
	h.log.Debug("gesture end", slog.String("object", a.id), slog.String("gesture", a.kind.String()))
	return cmd, nil
}

// endFrame records a frame gesture. Siblings left outside the new frame are moved
// back in and recorded with the frame change as one undo point.
func (h *Handler) endFrame(a *active, obj scene.Object) (command.Command, error) {
	fc, err := command.NewFrameUpdate(h.state, a.frame, command.FrameStateOf(obj), h.frames.Refresh)
	if err != nil {
		return nil, err
	}
	b, _ := h.frames.Bounds()
	moves, err := h.frames.ContainSiblings(b)
	if err != nil {
		return nil, err
	}
	if moves == nil {
		return fc, nil
	}
	if err := moves.Apply(context.Background()); err != nil {
		return nil, err
	}
	g, err := command.NewGroup("frame_resize", fc, moves)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Cancel abandons the gesture and restores the captured state.
func (h *Handler) Cancel() error {
	h.mu.Lock()
	a := h.cur
	h.cur = nil
	h.mu.Unlock()
	h.state.ClearGuides()
	if a == nil || !a.moved {
		return nil
	}
	if err := h.state.Update(a.id, a.before.ApplyTo); err != nil {
		return err
	}
	if a.isFrame {
		h.frames.Refresh()
	}
	return nil
}

// Active reports the object id and gesture in progress.
func (h *Handler) Active() (string, Gesture, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cur == nil {
		return "", 0, false
	}
	return h.cur.id, h.cur.kind, true
}
