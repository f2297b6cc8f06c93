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
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCreateWritesDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "promo", "spring"+DocumentExt)
	doc := NewDocument("Spring Sale", 600, 600)

	h, err := Create(path, doc)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	b, err := os.ReadFile(h.Path)
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	var got Document
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal document: %v", err)
	}
	if got.ID != doc.ID || got.Name != "Spring Sale" || got.Format != FormatVersion {
		t.Fatalf("unexpected document on disk: %+v", got)
	}
	if string(got.Objects) != "[]" {
		t.Fatalf("expected empty object list, got %s", got.Objects)
	}
	if _, err := Create(path, doc); !errors.Is(err, os.ErrExist) {
		t.Fatalf("expected ErrExist on second create, got %v", err)
	}
}

func TestSaveCreatesTimestampedBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b"+DocumentExt)
	h, err := Create(path, NewDocument("Backup Test", 300, 600))
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	h.Document.Name = "changed"
	if err := Save(h); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	list, err := Backups(path)
	if err != nil {
		t.Fatalf("Backups error: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected exactly one backup, got %v", list)
	}
	b, _ := os.ReadFile(list[0])
	if !strings.Contains(string(b), "Backup Test") {
		t.Fatalf("backup should hold the previous content")
	}
	// no temp files left behind
	ents, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range ents {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestOpenFallsBackToLatestBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c"+DocumentExt)
	h, err := Create(path, NewDocument("Good", 640, 360))
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	// second save produces a backup of the good content
	if err := Save(h); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	got, err := Open(path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if !got.Recovered || got.Document.Name != "Good" {
		t.Fatalf("expected recovery from backup, got %+v", got)
	}
}

func TestOpenWithoutBackupFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing"+DocumentExt)
	if _, err := Open(path); err == nil {
		t.Fatalf("expected error for missing document without backups")
	}
}

func TestOpenRefusesNewerFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future"+DocumentExt)
	doc := NewDocument("Future", 10, 10)
	doc.Format = FormatVersion + 1
	b, _ := json.Marshal(doc)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Open(path); !errors.Is(err, ErrNewerFormat) {
		t.Fatalf("expected ErrNewerFormat, got %v", err)
	}
}

func TestSaveAsMovesHandle(t *testing.T) {
	dir := t.TempDir()
	h, err := Create(filepath.Join(dir, "a"+DocumentExt), NewDocument("A", 10, 10))
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	target := filepath.Join(dir, "copies", "b"+DocumentExt)
	if err := SaveAs(h, target); err != nil {
		t.Fatalf("SaveAs error: %v", err)
	}
	if h.Path != target {
		t.Fatalf("handle not moved: %s", h.Path)
	}
	got, err := Open(target)
	if err != nil || got.Document.ID != h.Document.ID {
		t.Fatalf("reopen: %v %+v", err, got)
	}
}

func TestPruneBackupsKeepsNewest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p"+DocumentExt)
	h, err := Create(path, NewDocument("P", 10, 10))
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	for i := 0; i < 4; i++ {
		if err := Save(h); err != nil {
			t.Fatalf("Save error: %v", err)
		}
	}
	before, _ := Backups(path)
	if len(before) != 4 {
		t.Fatalf("expected 4 backups, got %d", len(before))
	}
	n, err := PruneBackups(path, 1)
	if err != nil || n != 3 {
		t.Fatalf("PruneBackups = %d, %v", n, err)
	}
	after, _ := Backups(path)
	if len(after) != 1 || after[0] != before[3] {
		t.Fatalf("expected newest backup to survive, got %v", after)
	}
}

func TestAutosaveCrashLeavesOriginal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x"+DocumentExt)
	h, err := Create(path, NewDocument("Original", 10, 10))
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	h.Document.Name = "Unsaved"
	p, err := AutosaveCrash(h)
	if err != nil {
		t.Fatalf("AutosaveCrash error: %v", err)
	}
	b, _ := os.ReadFile(p)
	if !strings.Contains(string(b), "Unsaved") {
		t.Fatalf("crash autosave should hold the in-memory document")
	}
	orig, _ := os.ReadFile(path)
	if !strings.Contains(string(orig), "Original") {
		t.Fatalf("original must not be touched")
	}
}
