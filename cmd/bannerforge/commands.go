/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"bannerforge/internal/backend"
	"bannerforge/internal/command"
	"bannerforge/internal/config"
	"bannerforge/internal/editor"
	"bannerforge/internal/frame"
	"bannerforge/internal/layers"
	"bannerforge/internal/scene"
	"bannerforge/internal/storage"
)

const commandTimeout = 2 * time.Minute

type app struct {
	cfg    config.AppConfig
	secret string
	out    io.Writer
	log    *slog.Logger

	store   storage.RevisionStore
	session *editor.Session
}

func (a *app) close() {
	if a.session != nil {
		a.session.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("close revision store", slog.Any("err", err))
		}
	}
}

// revisions opens the configured revision store once.
func (a *app) revisions(ctx context.Context) (storage.RevisionStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	switch a.cfg.Storage.Backend {
	case "", "sqlite":
		x, err := storage.OpenIndex(a.cfg.Storage.DataDir)
		if err != nil {
			return nil, err
		}
		a.store = x
	case "postgres":
		dsn, err := backend.WithPassword(a.cfg.Storage.PostgresDSN, a.secret)
		if err != nil {
			return nil, err
		}
		pg, err := backend.OpenPG(ctx, dsn)
		if err != nil {
			return nil, err
		}
		a.store = pg
	default:
		return nil, fmt.Errorf("unknown storage backend %q", a.cfg.Storage.Backend)
	}
	return a.store, nil
}

// open loads path into a new session wired to the revision store.
func (a *app) open(ctx context.Context, path string) (*editor.Session, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	h, err := storage.Open(abs)
	if err != nil {
		return nil, err
	}
	if h.Recovered {
		_, _ = fmt.Fprintln(a.out, "Warning: document was unreadable, recovered from the latest backup")
	}
	opts := editor.OptionsFromConfig(a.cfg)
	if rs, err := a.revisions(ctx); err != nil {
		// editing works without history
		a.log.Warn("revision store unavailable", slog.Any("err", err))
	} else {
		opts.Revisions = rs
	}
	s := editor.New(opts)
	a.session = s
	res, err := s.Open(h)
	if err != nil {
		return nil, err
	}
	if res.Skipped > 0 {
		_, _ = fmt.Fprintf(a.out, "Warning: %d unsupported objects were skipped\n", res.Skipped)
	}
	return s, nil
}

func parseSize(ws, hs string) (float64, float64, error) {
	w, err := strconv.ParseFloat(ws, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("width: %w", err)
	}
	h, err := strconv.ParseFloat(hs, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("height: %w", err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("size %vx%v must be positive", w, h)
	}
	return w, h, nil
}

func (a *app) cmdNew(path, ws, hs, name string) error {
	w, h, err := parseSize(ws, hs)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(abs), storage.DocumentExt)
	}
	if _, err := storage.Create(abs, storage.NewDocument(name, w, h)); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	// opening creates the frame; save it so the file carries it
	s, err := a.open(ctx, abs)
	if err != nil {
		return err
	}
	if err := s.Save(ctx); err != nil {
		return err
	}
	a.log.Info("template created", slog.String("path", abs))
	_, _ = fmt.Fprintf(a.out, "Created %s (%gx%g)\n", abs, w, h)
	return nil
}

func (a *app) cmdInfo(path string) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	s, err := a.open(ctx, path)
	if err != nil {
		return err
	}
	h := s.Handle()
	_, _ = fmt.Fprintf(a.out, "Template: %s\n", h.Document.Name)
	_, _ = fmt.Fprintf(a.out, "ID: %s\n", h.Document.ID)
	if b, ok := s.Frames.Bounds(); ok {
		_, _ = fmt.Fprintf(a.out, "Frame: %gx%g (%s)\n", b.W, b.H, frame.RatioKey(b.Size()))
	} else {
		_, _ = fmt.Fprintln(a.out, "Frame: none")
	}
	_, _ = fmt.Fprintf(a.out, "Updated: %s\n", h.Document.UpdatedAt.Format(time.RFC3339))
	_, _ = fmt.Fprintln(a.out, "Layers:")
	for _, ly := range s.Layers.List() {
		_, _ = fmt.Fprintf(a.out, "  %2d  %-6s %-36s %s%s\n", ly.Order, ly.Kind, ly.ID, ly.Name, layerFlags(ly))
	}
	return nil
}

func layerFlags(ly layers.Layer) string {
	var f []string
	if !ly.Visible {
		f = append(f, "hidden")
	}
	if ly.Locked {
		f = append(f, "locked")
	}
	if len(f) == 0 {
		return ""
	}
	return " [" + strings.Join(f, ",") + "]"
}

func (a *app) cmdAddText(path, text string) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	s, err := a.open(ctx, path)
	if err != nil {
		return err
	}
	id, err := s.AddText(ctx, editor.TextOptions{Text: text})
	if err != nil {
		return err
	}
	if err := s.Save(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(a.out, id)
	return nil
}

func (a *app) cmdRatio(path string, spec []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	var (
		p    frame.Preset
		w, h float64
	)
	if len(spec) == 1 {
		var ok bool
		if p, ok = frame.PresetByName(spec[0]); !ok {
			return fmt.Errorf("unknown ratio preset %q", spec[0])
		}
	} else {
		var err error
		if w, h, err = parseSize(spec[0], spec[1]); err != nil {
			return err
		}
	}
	s, err := a.open(ctx, path)
	if err != nil {
		return err
	}
	if p.Name != "" {
		err = s.ChangeRatio(ctx, p)
	} else {
		err = s.ChangeFrameSize(ctx, w, h)
	}
	if err != nil {
		return err
	}
	if err := s.Save(ctx); err != nil {
		return err
	}
	b, _ := s.Frames.Bounds()
	_, _ = fmt.Fprintf(a.out, "Frame: %gx%g at %g,%g\n", b.W, b.H, b.X, b.Y)
	return nil
}

func (a *app) cmdAlign(path, id, mode string) error {
	m, ok := command.ParseAlignMode(mode)
	if !ok {
		return fmt.Errorf("unknown align mode %q", mode)
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	s, err := a.open(ctx, path)
	if err != nil {
		return err
	}
	if err := s.Align(ctx, id, m); err != nil {
		return err
	}
	if err := s.Save(ctx); err != nil {
		return err
	}
	o, _ := s.State.Get(id)
	_, _ = fmt.Fprintf(a.out, "%s at %g,%g\n", id, o.Geometry.Left, o.Geometry.Top)
	return nil
}

// cmdValidate checks the raw file without opening a session so nothing is repaired.
func (a *app) cmdValidate(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc storage.Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	if err := scene.ValidateScene(doc.Objects); err != nil {
		return err
	}
	res, err := scene.DecodeScene(doc.Objects)
	if err != nil {
		return err
	}
	frames := 0
	for _, o := range res.Objects {
		if o.IsFrame() {
			frames++
		}
	}
	if frames == 0 {
		return errors.New("template has no frame")
	}
	_, _ = fmt.Fprintf(a.out, "OK: %d objects, %d skipped\n", len(res.Objects), res.Skipped)
	return nil
}

func (a *app) cmdHistory(path string) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	h, err := storage.Open(path)
	if err != nil {
		return err
	}
	rs, err := a.revisions(ctx)
	if err != nil {
		return err
	}
	list, err := rs.ListRevisions(ctx, h.Document.ID, 0)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		_, _ = fmt.Fprintln(a.out, "No revisions recorded")
		return nil
	}
	for _, r := range list {
		sum := r.Checksum
		if len(sum) > 12 {
			sum = sum[:12]
		}
		_, _ = fmt.Fprintf(a.out, "%6d  %s  rev %-6d %s\n", r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Revision, sum)
	}
	return nil
}

func (a *app) cmdFonts() error {
	s := editor.New(editor.OptionsFromConfig(a.cfg))
	a.session = s
	for _, fam := range s.Fonts.Families() {
		ws := s.Fonts.Weights(fam)
		parts := make([]string, len(ws))
		for i, w := range ws {
			parts[i] = strconv.Itoa(w)
		}
		_, _ = fmt.Fprintf(a.out, "%-16s %s\n", fam, strings.Join(parts, " "))
	}
	return nil
}
