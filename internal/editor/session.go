/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package editor wires the editing core into one Session per open template: the
// scene, its frame and snap managers, the layer list, the command history and the
// gesture handler. A Session is created on start, cleared on document switch and
// closed at the end.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"bannerforge/internal/assets"
	"bannerforge/internal/command"
	"bannerforge/internal/config"
	"bannerforge/internal/frame"
	"bannerforge/internal/geom"
	"bannerforge/internal/interaction"
	"bannerforge/internal/layers"
	applog "bannerforge/internal/log"
	"bannerforge/internal/scene"
	"bannerforge/internal/snap"
	"bannerforge/internal/storage"

	"github.com/google/uuid"
)

// ErrNoDocument is returned by operations that need an open document.
var ErrNoDocument = errors.New("no document open")

// Options configures a Session. Zero values fall back to package defaults.
type Options struct {
	HistorySize      int
	Snap             snap.Options
	Viewport         geom.Size
	RatioEpsilon     float64
	FontTimeout      time.Duration
	BatchFontTimeout time.Duration
	// Fonts is shared between sessions; nil uses the built-in Go fonts.
	Fonts *assets.FontRegistry
	// Images resolves image sources; nil resolves relative to the document directory.
	Images *assets.ImageDecoder
	// Revisions records a revision on every Save when set. The session does not own it.
	Revisions     storage.RevisionStore
	KeepRevisions int
}

// OptionsFromConfig maps the user configuration onto session options.
func OptionsFromConfig(cfg config.AppConfig) Options {
	e := cfg.Editor
	return Options{
		HistorySize:      e.HistorySize,
		Snap:             snap.Options{Threshold: e.SnapThreshold, GuideMargin: e.GuideMargin},
		Viewport:         geom.Size{W: e.ViewportWidth, H: e.ViewportHeight},
		RatioEpsilon:     e.RatioEpsilon,
		FontTimeout:      e.FontTimeout(),
		BatchFontTimeout: e.BatchFontTimeout(),
		KeepRevisions:    cfg.Storage.KeepRevisions,
	}
}

// Session is one editing session.
type Session struct {
	ID          string
	State       *scene.State
	Frames      *frame.Manager
	Ratios      *frame.RatioService
	Snap        *snap.Engine
	Commands    *command.Manager
	Layers      *layers.Manager
	Interaction *interaction.Handler
	Fonts       *assets.FontRegistry
	Images      *assets.ImageDecoder

	opts Options
	log  *slog.Logger

	mu     sync.Mutex
	handle *storage.DocumentHandle
	closed bool
}

// New starts a session with an empty scene.
func New(opts Options) *Session {
	if opts.Viewport.W <= 0 || opts.Viewport.H <= 0 {
		opts.Viewport = geom.Size{W: 1280, H: 720}
	}
	if opts.Snap.Canvas.W <= 0 || opts.Snap.Canvas.H <= 0 {
		opts.Snap.Canvas = opts.Viewport
	}
	if opts.Snap.GuideMargin <= 0 {
		opts.Snap.GuideMargin = snap.DefaultGuideMargin
	}
	if opts.FontTimeout <= 0 {
		opts.FontTimeout = command.DefaultFontTimeout
	}
	if opts.BatchFontTimeout <= 0 {
		opts.BatchFontTimeout = 10 * time.Second
	}
	if opts.Fonts == nil {
		opts.Fonts = assets.NewDefaultFontRegistry()
	}
	if opts.Images == nil {
		opts.Images = assets.NewImageDecoder("")
	}

	id := uuid.NewString()
	st := scene.NewState()
	frames := frame.NewManager(st, opts.Viewport, opts.RatioEpsilon)
	snapper := snap.New(opts.Snap)
	cmds := command.NewManager(opts.HistorySize)
	s := &Session{
		ID:          id,
		State:       st,
		Frames:      frames,
		Ratios:      frame.NewRatioService(frames),
		Snap:        snapper,
		Commands:    cmds,
		Layers:      layers.NewManager(st, cmds),
		Interaction: interaction.NewHandler(st, frames, snapper, cmds),
		Fonts:       opts.Fonts,
		Images:      opts.Images,
		opts:        opts,
		log:         applog.WithSession(applog.WithComponent("editor"), id),
	}
	s.log.Debug("session started", slog.Int("history", cmds.MaxSize()))
	return s
}

// Open loads a document into the session. Any previous scene and history are
// discarded. A document without a frame gets one of the document's size.
func (s *Session) Open(h *storage.DocumentHandle) (scene.DecodeResult, error) {
	if h == nil {
		return scene.DecodeResult{}, errors.New("nil DocumentHandle")
	}
	if s.isClosed() {
		return scene.DecodeResult{}, errors.New("session closed")
	}
	if h.Path != "" && s.Images.Root == "" {
		s.Images.Root = filepath.Dir(h.Path)
	}
	res, err := s.State.ImportScene(h.Document.Objects)
	if err != nil {
		return res, fmt.Errorf("open %s: %w", h.Path, err)
	}
	if _, ok := s.State.Frame(); !ok && h.Document.Width > 0 && h.Document.Height > 0 {
		if _, err := s.Frames.InitializeFrame(h.Document.Width, h.Document.Height); err != nil {
			return res, err
		}
	}
	s.Frames.Refresh()
	_ = s.Interaction.Cancel()
	s.Commands.Clear()

	s.mu.Lock()
	s.handle = h
	s.mu.Unlock()
	s.log.Info("document opened",
		slog.String("path", h.Path), slog.Int("objects", len(res.Objects)), slog.Int("skipped", res.Skipped))
	return res, nil
}

// Handle returns the open document handle, or nil.
func (s *Session) Handle() *storage.DocumentHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// Document writes the current scene into the open handle and returns it.
func (s *Session) Document() (*storage.DocumentHandle, error) {
	s.mu.Lock()
	h := s.handle
	s.mu.Unlock()
	if h == nil {
		return nil, ErrNoDocument
	}
	data, err := s.State.ExportScene()
	if err != nil {
		return nil, err
	}
	h.Document.Objects = data
	if b, ok := s.Frames.Bounds(); ok {
		h.Document.Width, h.Document.Height = b.W, b.H
	}
	return h, nil
}

// Save writes the document to disk and, with a revision store configured, records
// the scene as a revision. The history is marked pristine afterwards.
func (s *Session) Save(ctx context.Context) error {
	h, err := s.Document()
	if err != nil {
		return err
	}
	if err := storage.Save(h); err != nil {
		return err
	}
	if rs := s.opts.Revisions; rs != nil {
		rev, err := rs.SaveRevision(ctx, storage.Revision{
			DocumentID: h.Document.ID,
			Revision:   s.State.Revision(),
			Data:       h.Document.Objects,
		})
		if err != nil {
			// the file is safe; history is best effort
			s.log.Warn("record revision failed", slog.Any("err", err))
		} else if s.opts.KeepRevisions > 0 {
			if n, err := rs.PruneRevisions(ctx, h.Document.ID, s.opts.KeepRevisions); err != nil {
				s.log.Warn("prune revisions failed", slog.Any("err", err))
			} else if n > 0 {
				s.log.Debug("revisions pruned", slog.Int64("removed", n), slog.Int64("latest", rev.ID))
			}
		}
	}
	s.MarkPristine()
	s.log.Info("document saved", slog.String("path", h.Path))
	return nil
}

// MarkPristine drops the undo and redo history, e.g. after the host saved.
func (s *Session) MarkPristine() {
	s.Commands.Clear()
}

// IsDirty reports whether there are edits since the last pristine point.
func (s *Session) IsDirty() bool { return !s.Commands.IsClean() }

// Reset empties the scene, the selection and the history and forgets the document.
func (s *Session) Reset() {
	_ = s.Interaction.Cancel()
	if err := s.State.Replace(nil); err != nil {
		s.log.Warn("reset scene", slog.Any("err", err))
	}
	s.State.ClearGuides()
	s.Frames.Refresh()
	s.Commands.Clear()
	s.mu.Lock()
	s.handle = nil
	s.mu.Unlock()
	s.log.Debug("session reset")
}

// Close ends the session. The session is unusable afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.Layers.Close()
	s.Commands.Clear()
	s.log.Debug("session closed")
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Undo reverts the most recent command.
func (s *Session) Undo(ctx context.Context) (bool, error) { return s.Commands.Undo(ctx) }

// Redo reapplies the most recently undone command.
func (s *Session) Redo(ctx context.Context) (bool, error) { return s.Commands.Redo(ctx) }
