/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package frame

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"

	"bannerforge/internal/command"
	"bannerforge/internal/geom"
	"bannerforge/internal/scene"
)

// Preset is a named aspect ratio with the size used the first time it is chosen.
type Preset struct {
	Name string
	Size geom.Size
}

// Presets are the built-in frame ratios.
var Presets = []Preset{
	{"1:1", geom.Size{W: 600, H: 600}},
	{"4:5", geom.Size{W: 480, H: 600}},
	{"9:16", geom.Size{W: 360, H: 640}},
	{"16:9", geom.Size{W: 640, H: 360}},
	{"1:2", geom.Size{W: 300, H: 600}},
	{"3:1", geom.Size{W: 900, H: 300}},
}

// PresetByName finds a built-in preset.
func PresetByName(name string) (Preset, bool) {
	for _, p := range Presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

// RatioKey reduces a size to its "w:h" ratio name, e.g. 640x360 -> "16:9".
func RatioKey(s geom.Size) string {
	w, h := int(math.Round(s.W)), int(math.Round(s.H))
	if w <= 0 || h <= 0 {
		return ""
	}
	g := gcd(w, h)
	return strconv.Itoa(w/g) + ":" + strconv.Itoa(h/g)
}

// ParseRatio reads "w:h".
func ParseRatio(s string) (float64, error) {
	a, b, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("ratio %q: want w:h", s)
	}
	w, err1 := strconv.ParseFloat(a, 64)
	h, err2 := strconv.ParseFloat(b, 64)
	if err1 != nil || err2 != nil || w <= 0 || h <= 0 {
		return 0, fmt.Errorf("ratio %q: want positive numbers", s)
	}
	return w / h, nil
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// RatioService changes the frame ratio. It remembers the last size used per ratio so
// switching back restores it, and keeps the frame centered on its previous center.
// Sizes are remembered when a frame command is applied, undone or redone, never when
// it is only built.
type RatioService struct {
	frames *Manager

	mu     sync.Mutex
	memory map[string]geom.Size
}

func NewRatioService(frames *Manager) *RatioService {
	return &RatioService{frames: frames, memory: make(map[string]geom.Size)}
}

// Remembered returns the stored size for a ratio name.
func (s *RatioService) Remembered(ratio string) (geom.Size, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sz, ok := s.memory[ratio]
	return sz, ok
}

func (s *RatioService) remember(sz geom.Size) {
	k := RatioKey(sz)
	if k == "" {
		return
	}
	s.mu.Lock()
	s.memory[k] = sz
	s.mu.Unlock()
}

// ChangeRatio builds the undoable frame change to the preset's ratio. A size
// remembered for that ratio wins over the preset's default size; choosing the ratio
// the frame already has keeps its size.
func (s *RatioService) ChangeRatio(p Preset) (command.Command, error) {
	f, ok := s.frames.state.Frame()
	if !ok {
		return nil, scene.Validationf("change_ratio", "", "scene has no frame")
	}
	if p.Size.W <= 0 || p.Size.H <= 0 {
		return nil, scene.Validationf("change_ratio", f.ID, "preset %q has no size", p.Name)
	}
	cur := command.FrameStateOf(f).Bounds()
	target := RatioKey(p.Size)
	size := p.Size
	if target == RatioKey(cur.Size()) {
		size = cur.Size()
	} else if sz, ok := s.Remembered(target); ok {
		size = sz
	}
	return s.resizeTo(f, "change_ratio", size)
}

// ChangeSize builds the undoable frame change to exactly w x h, centered on the
// current frame center. The new ratio becomes the frame's aspect ratio.
func (s *RatioService) ChangeSize(w, h float64) (command.Command, error) {
	f, ok := s.frames.state.Frame()
	if !ok {
		return nil, scene.Validationf("change_size", "", "scene has no frame")
	}
	if w <= 0 || h <= 0 {
		return nil, scene.Validationf("change_size", f.ID, "frame size %vx%v must be positive", w, h)
	}
	return s.resizeTo(f, "change_size", geom.Size{W: w, H: h})
}

func (s *RatioService) resizeTo(f scene.Object, op string, size geom.Size) (command.Command, error) {
	before := command.FrameStateOf(f)
	cur := before.Bounds()
	r := geom.CenteredIn(cur.Center(), size)
	after := command.FrameState{
		Left: r.X, Top: r.Y, Width: size.W, Height: size.H,
		ScaleX: 1, ScaleY: 1, AspectRatio: size.W / size.H,
	}
	s.frames.log.Debug("frame ratio change", slog.String("op", op),
		slog.String("from", RatioKey(cur.Size())), slog.String("to", RatioKey(size)),
		slog.Float64("w", size.W), slog.Float64("h", size.H))
	return s.build(op, before, after)
}

// Resize builds the undoable frame change to an explicit rectangle, keeping the ratio
// stored in the frame. Used by property panels.
func (s *RatioService) Resize(r geom.Rect) (command.Command, error) {
	f, ok := s.frames.state.Frame()
	if !ok {
		return nil, scene.Validationf("resize_frame", "", "scene has no frame")
	}
	g := f.Geometry
	g.Left, g.Top = r.X, r.Y
	if sx := g.ScaleX; sx != 0 {
		g.Width = r.W / sx
	}
	if sy := g.ScaleY; sy != 0 {
		g.Height = r.H / sy
	}
	return s.ResizeGeometry(g, f.Metadata.AspectRatio)
}

// ResizeGeometry builds the undoable frame change to g, re-asserting ratio (the
// frame's stored ratio when ratio is not positive). When the requested display size
// drifts from the ratio, the axis that moved more relative to the current frame keeps
// its value and the other is recomputed.
func (s *RatioService) ResizeGeometry(g scene.Geometry, ratio float64) (command.Command, error) {
	f, ok := s.frames.state.Frame()
	if !ok {
		return nil, scene.Validationf("resize_frame", "", "scene has no frame")
	}
	if ratio <= 0 {
		ratio = f.Metadata.AspectRatio
	}
	want := g.DisplaySize()
	if want.W <= 0 || want.H <= 0 {
		return nil, scene.Validationf("resize_frame", f.ID, "frame size %vx%v must be positive", want.W, want.H)
	}
	if ratio <= 0 {
		ratio = want.W / want.H
	}
	w, h := want.W, want.H
	if math.Abs(w/h-ratio) > s.frames.epsilon {
		cur := f.Geometry.DisplaySize()
		if cur.W > 0 && cur.H > 0 && math.Abs(w/cur.W-1) < math.Abs(h/cur.H-1) {
			w = h * ratio
		} else {
			h = w / ratio
		}
	}
	after := command.FrameState{Left: g.Left, Top: g.Top, Width: w, Height: h,
		ScaleX: 1, ScaleY: 1, AspectRatio: ratio}
	return s.build("resize_frame", command.FrameStateOf(f), after)
}

// build bundles the frame update with the sibling moves that keep every object inside
// the new frame. A change that leaves the frame as it is is rejected.
func (s *RatioService) build(op string, before, after command.FrameState) (command.Command, error) {
	if after == before {
		return nil, scene.Validationf(op, "", "frame is already %gx%g", after.Width, after.Height)
	}
	fu, err := command.NewFrameUpdate(s.frames.state, before, after, s.changed(before.Bounds().Size()))
	if err != nil {
		return nil, err
	}
	moves, err := s.frames.ContainSiblings(after.Bounds())
	if err != nil {
		return nil, err
	}
	if moves == nil {
		return fu, nil
	}
	g, err := command.NewGroup("frame_resize", fu, moves)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// changed is the frame command callback: bounds and clips are refreshed and both the
// previous and the resulting size are remembered under their ratios.
func (s *RatioService) changed(prev geom.Size) func() {
	return func() {
		s.frames.Refresh()
		s.remember(prev)
		if b, ok := s.frames.Bounds(); ok {
			s.remember(b.Size())
		}
	}
}
