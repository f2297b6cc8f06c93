/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package command holds the reversible scene mutations and the Command Manager that
// keeps their undo/redo history.
//
// Every command captures what it needs to invert itself when it is constructed. Apply
// performs the mutation the first time, Invert restores the captured before-state and
// Reapply restores the after-state recorded by Apply.
package command

import (
	"context"

	"bannerforge/internal/assets"
	"bannerforge/internal/geom"
)

// Command is one reversible mutation. The set of implementations is closed.
type Command interface {
	// Name identifies the command kind in logs and history listings.
	Name() string
	// Targets lists the object ids the command touches.
	Targets() []string
	Apply(ctx context.Context) error
	Invert(ctx context.Context) error
	Reapply(ctx context.Context) error

	sealed()
}

type base struct{}

func (base) sealed() {}

// FontWaiter reports when a font family/weight is ready for layout.
type FontWaiter interface {
	AwaitFontReady(ctx context.Context, family string, weight int) error
}

// ImageLoader resolves an image source to its natural size.
type ImageLoader interface {
	LoadImage(ctx context.Context, src string) (assets.Image, error)
}

// TextMeasurer lays out text in a box of the given width and returns the used size.
type TextMeasurer interface {
	MeasureText(spec assets.TextSpec, width float64) geom.Size
}
