/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package assets provides local implementations of the editor's external
// collaborators: a font registry with a font-ready signal and text measuring, and an
// image decoder that reports natural sizes.
package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/gofont/gosmallcaps"
	"golang.org/x/image/font/opentype"

	applog "bannerforge/internal/log"
)

// ErrUnknownFont is returned by Face lookups for a family that is not registered.
var ErrUnknownFont = errors.New("unknown font family")

type fontKey struct {
	family string
	weight int
}

type faceKey struct {
	fontKey
	size float64
}

// FontRegistry stores parsed OpenType fonts by family and weight. Waiters blocked in
// AwaitFontReady are released when the font is registered. It is safe for concurrent use.
type FontRegistry struct {
	mu      sync.Mutex
	fonts   map[fontKey]*opentype.Font
	waiters map[fontKey]chan struct{}
	faces   map[faceKey]font.Face
	log     *slog.Logger

	// opentype faces are not safe for concurrent use
	measureMu sync.Mutex
}

func NewFontRegistry() *FontRegistry {
	return &FontRegistry{
		fonts:   make(map[fontKey]*opentype.Font),
		waiters: make(map[fontKey]chan struct{}),
		faces:   make(map[faceKey]font.Face),
		log:     applog.WithComponent("assets"),
	}
}

// NewDefaultFontRegistry returns a registry preloaded with the Go font family.
func NewDefaultFontRegistry() *FontRegistry {
	r := NewFontRegistry()
	builtin := []struct {
		family string
		weight int
		ttf    []byte
	}{
		{"Go", 400, goregular.TTF},
		{"Go", 500, gomedium.TTF},
		{"Go", 700, gobold.TTF},
		{"Go Mono", 400, gomono.TTF},
		{"Go Mono", 700, gomonobold.TTF},
		{"Go Smallcaps", 400, gosmallcaps.TTF},
	}
	for _, b := range builtin {
		if err := r.Register(b.family, b.weight, b.ttf); err != nil {
			r.log.Error("builtin font failed to parse", slog.String("family", b.family), slog.Any("err", err))
		}
	}
	return r
}

// Register parses ttf and makes family/weight available. Weight 0 means 400.
func (r *FontRegistry) Register(family string, weight int, ttf []byte) error {
	if family == "" {
		return fmt.Errorf("register font: empty family")
	}
	if weight == 0 {
		weight = 400
	}
	f, err := opentype.Parse(ttf)
	if err != nil {
		return fmt.Errorf("parse font %s %d: %w", family, weight, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := fontKey{family, weight}
	r.fonts[k] = f
	for fk := range r.faces {
		if fk.fontKey == k {
			delete(r.faces, fk)
		}
	}
	for _, wk := range []fontKey{k, {family, 0}} {
		if ch, ok := r.waiters[wk]; ok {
			close(ch)
			delete(r.waiters, wk)
		}
	}
	return nil
}

// RegisterFile loads a TTF/OTF file.
func (r *FontRegistry) RegisterFile(family string, weight int, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font %s: %w", path, err)
	}
	return r.Register(family, weight, data)
}

// Has reports whether family/weight is registered. Weight 0 matches any weight.
func (r *FontRegistry) Has(family string, weight int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasLocked(fontKey{family, weight})
}

func (r *FontRegistry) hasLocked(k fontKey) bool {
	if k.weight != 0 {
		_, ok := r.fonts[k]
		return ok
	}
	for fk := range r.fonts {
		if fk.family == k.family {
			return true
		}
	}
	return false
}

// AwaitFontReady blocks until family/weight is registered or ctx is done.
func (r *FontRegistry) AwaitFontReady(ctx context.Context, family string, weight int) error {
	k := fontKey{family, weight}
	r.mu.Lock()
	if r.hasLocked(k) {
		r.mu.Unlock()
		return nil
	}
	ch, ok := r.waiters[k]
	if !ok {
		ch = make(chan struct{})
		r.waiters[k] = ch
	}
	r.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		if s := r.Suggest(family); s != "" && s != family {
			return fmt.Errorf("font %q weight %d not ready (did you mean %q?): %w", family, weight, s, ctx.Err())
		}
		return fmt.Errorf("font %q weight %d not ready: %w", family, weight, ctx.Err())
	}
}

// Families lists registered family names.
func (r *FontRegistry) Families() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for k := range r.fonts {
		if !slices.Contains(out, k.family) {
			out = append(out, k.family)
		}
	}
	slices.Sort(out)
	return out
}

// Weights lists the registered weights of family in ascending order.
func (r *FontRegistry) Weights(family string) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int
	for k := range r.fonts {
		if k.family == family {
			out = append(out, k.weight)
		}
	}
	slices.Sort(out)
	return out
}

// Suggest returns the registered family closest to name by edit distance, ignoring
// case, or "" when nothing is registered.
func (r *FontRegistry) Suggest(name string) string {
	best, bestD := "", -1
	for _, fam := range r.Families() {
		d := levenshtein.ComputeDistance(strings.ToLower(name), strings.ToLower(fam))
		if bestD < 0 || d < bestD {
			best, bestD = fam, d
		}
	}
	return best
}

// Face returns a face for family at size, using the nearest registered weight.
func (r *FontRegistry) Face(family string, weight int, size float64) (font.Face, error) {
	if weight == 0 {
		weight = 400
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := r.nearestLocked(family, weight)
	if k == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFont, family)
	}
	fk := faceKey{*k, size}
	if f, ok := r.faces[fk]; ok {
		return f, nil
	}
	face, err := opentype.NewFace(r.fonts[*k], &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingNone})
	if err != nil {
		return nil, fmt.Errorf("face %s %d: %w", family, weight, err)
	}
	r.faces[fk] = face
	return face, nil
}

func (r *FontRegistry) nearestLocked(family string, weight int) *fontKey {
	var best *fontKey
	bestD := 0
	for k := range r.fonts {
		if k.family != family {
			continue
		}
		d := k.weight - weight
		if d < 0 {
			d = -d
		}
		if best == nil || d < bestD || (d == bestD && k.weight < best.weight) {
			kk := k
			best, bestD = &kk, d
		}
	}
	return best
}
