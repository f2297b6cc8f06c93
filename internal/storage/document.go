/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	applog "bannerforge/internal/log"

	"github.com/google/uuid"
)

const (
	// DocumentExt is the file extension of a template document.
	DocumentExt    = ".banner.json"
	BackupsDirName = "backups"
	// FormatVersion is written into every document; newer files are refused.
	FormatVersion = 1

	backupStamp = "20060102-150405.000000"
)

// ErrNewerFormat is returned when a document was written by a newer release.
var ErrNewerFormat = errors.New("document format is newer than this release")

// Document is the on-disk form of a template. Objects holds the encoded scene list
// (top-most first, frame last) exactly as the scene codec produced it.
type Document struct {
	Format    int             `json:"format"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Width     float64         `json:"width"`
	Height    float64         `json:"height"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Objects   json.RawMessage `json:"objects"`
}

// DocumentHandle ties a Document to the file it was loaded from or saved to.
// Recovered is set when Open had to fall back to a backup.
type DocumentHandle struct {
	Path      string
	Document  Document
	Recovered bool
}

// BackupDir is the directory that holds the backups of the document at path.
func BackupDir(path string) string {
	return filepath.Join(filepath.Dir(path), BackupsDirName)
}

// NewDocument returns a document with a fresh id and no objects.
func NewDocument(name string, width, height float64) Document {
	now := time.Now().UTC()
	return Document{
		Format:    FormatVersion,
		ID:        uuid.NewString(),
		Name:      name,
		Width:     width,
		Height:    height,
		CreatedAt: now,
		UpdatedAt: now,
		Objects:   json.RawMessage("[]"),
	}
}

// Create writes doc to path, creating parent directories. An existing file is
// refused so a template is never clobbered by accident.
func Create(path string, doc Document) (*DocumentHandle, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("document path is required")
	}
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("create %s: %w", path, os.ErrExist)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create document dir: %w", err)
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	h := &DocumentHandle{Path: path, Document: doc}
	if err := Save(h); err != nil {
		return nil, err
	}
	return h, nil
}

// Open loads the document at path. If the file cannot be read or parsed, the
// latest backup is used instead and the handle is flagged as recovered.
func Open(path string) (*DocumentHandle, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "open").With(slog.String("path", path))
	b, err := os.ReadFile(path)
	if err == nil {
		var doc Document
		if err = decodeDocument(b, &doc); err == nil {
			return &DocumentHandle{Path: path, Document: doc}, nil
		}
		if errors.Is(err, ErrNewerFormat) {
			return nil, err
		}
	}
	doc, berr := openFromLatestBackup(path)
	if berr != nil {
		return nil, fmt.Errorf("open document: %w; backup attempt: %v", err, berr)
	}
	l.Warn("document unreadable, recovered from backup", slog.Any("err", err))
	return &DocumentHandle{Path: path, Document: *doc, Recovered: true}, nil
}

func decodeDocument(b []byte, doc *Document) error {
	if err := json.Unmarshal(b, doc); err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	if doc.Format > FormatVersion {
		return fmt.Errorf("%w: %d", ErrNewerFormat, doc.Format)
	}
	if doc.ID == "" {
		return errors.New("parse document: missing id")
	}
	if len(doc.Objects) == 0 {
		doc.Objects = json.RawMessage("[]")
	}
	return nil
}

// Save writes the document with transactional semantics: the previous file is
// copied to a timestamped backup, the new content goes to a temp file in the same
// directory and is renamed over the target.
func Save(h *DocumentHandle) error {
	if h == nil {
		return errors.New("nil DocumentHandle")
	}
	if h.Path == "" {
		return errors.New("invalid DocumentHandle: missing path")
	}
	h.Document.Format = FormatVersion
	h.Document.UpdatedAt = time.Now().UTC()
	if h.Document.CreatedAt.IsZero() {
		h.Document.CreatedAt = h.Document.UpdatedAt
	}
	if len(h.Document.Objects) == 0 {
		h.Document.Objects = json.RawMessage("[]")
	}
	data, err := json.MarshalIndent(h.Document, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	data = append(data, '\n')

	if _, statErr := os.Stat(h.Path); statErr == nil {
		bdir := BackupDir(h.Path)
		if err := os.MkdirAll(bdir, 0o755); err != nil {
			return fmt.Errorf("ensure backups dir: %w", err)
		}
		bname := fmt.Sprintf("%s.%s.bak", filepath.Base(h.Path), time.Now().Format(backupStamp))
		if cerr := copyFile(h.Path, filepath.Join(bdir, bname)); cerr != nil {
			return fmt.Errorf("backup current document: %w", cerr)
		}
	}

	dir := filepath.Dir(h.Path)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(h.Path), os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp document: %w", werr)
	}
	// Windows refuses to rename over an existing file.
	if _, err := os.Stat(h.Path); err == nil {
		_ = os.Remove(h.Path)
	}
	if rerr := os.Rename(temp, h.Path); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace document: %w", rerr)
	}
	h.Recovered = false
	return nil
}

// SaveAs writes the document to a new path and points the handle at it.
func SaveAs(h *DocumentHandle, newPath string) error {
	if h == nil {
		return errors.New("nil DocumentHandle")
	}
	if newPath == "" {
		return errors.New("new path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(newPath), 0o755); err != nil {
		return fmt.Errorf("create target dir: %w", err)
	}
	h.Path = newPath
	return Save(h)
}

// Backups lists the backup files of the document at path, oldest first.
func Backups(path string) ([]string, error) {
	bdir := BackupDir(path)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	prefix := filepath.Base(path) + "."
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	// the timestamp in the name yields lexicographic order
	sort.Strings(out)
	return out, nil
}

// PruneBackups deletes all but the newest keep backups of the document at path.
func PruneBackups(path string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	list, err := Backups(path)
	if err != nil {
		return 0, err
	}
	if len(list) <= keep {
		return 0, nil
	}
	removed := 0
	for _, p := range list[:len(list)-keep] {
		if err := os.Remove(p); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// AutosaveCrash writes the in-memory document next to the backups without
// touching the original file. It returns the written path.
func AutosaveCrash(h *DocumentHandle) (string, error) {
	if h == nil || h.Path == "" {
		return "", errors.New("invalid DocumentHandle")
	}
	bdir := BackupDir(h.Path)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(h.Document, "", "  ")
	if err != nil {
		return "", err
	}
	p := filepath.Join(bdir, fmt.Sprintf("%s.crash-%s.json", filepath.Base(h.Path), time.Now().Format(backupStamp)))
	if err := writeFileSync(p, data); err != nil {
		return "", err
	}
	return p, nil
}

// writeFileSync writes data to a file and flushes it to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies src to dst, overwriting dst.
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

func openFromLatestBackup(path string) (*Document, error) {
	list, err := Backups(path)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.New("no backups found")
	}
	latest := list[len(list)-1]
	b, err := os.ReadFile(latest)
	if err != nil {
		return nil, fmt.Errorf("read latest backup: %w", err)
	}
	var doc Document
	if err := decodeDocument(b, &doc); err != nil {
		return nil, fmt.Errorf("latest backup: %w", err)
	}
	return &doc, nil
}
