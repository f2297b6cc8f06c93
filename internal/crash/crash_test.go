/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package crash

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bannerforge/internal/storage"
)

func TestWriteReportCreatesFileInTemp(t *testing.T) {
	path, err := writeReport(nil, "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	defer os.Remove(path)
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "BannerForge Crash Report") {
		t.Fatalf("report header missing")
	}
	if !strings.Contains(s, "Panic: boom") {
		t.Fatalf("panic content missing: %s", s)
	}
}

func TestWriteReportCreatesFileInDocumentBackups(t *testing.T) {
	h := &storage.DocumentHandle{Path: filepath.Join(t.TempDir(), "a"+storage.DocumentExt)}
	path, err := writeReport(h, "kaboom", []byte("stack"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	if filepath.Dir(path) != storage.BackupDir(h.Path) {
		t.Fatalf("expected crash report under backups dir, got %s", path)
	}
}

// Recover must write the report and autosave, and call exitFn instead of exiting.
func TestRecoverWritesReportAndAutosave(t *testing.T) {
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	defer func() {
		_ = w.Close()
		os.Stderr = oldStderr
		_, _ = io.Copy(io.Discard, r)
	}()

	called := 0
	oldExit := exitFn
	exitFn = func(code int) { called = code }
	defer func() { exitFn = oldExit }()

	h, err := storage.Create(filepath.Join(t.TempDir(), "c"+storage.DocumentExt), storage.NewDocument("Crashy", 10, 10))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	func() {
		defer Recover(func() *storage.DocumentHandle { return h })
		h.Document.Name = "edited before the panic"
		panic("boom")
	}()

	files, _ := os.ReadDir(storage.BackupDir(h.Path))
	var report, autosave string
	for _, f := range files {
		switch {
		case strings.HasPrefix(f.Name(), "crash-") && strings.HasSuffix(f.Name(), ".log"):
			report = filepath.Join(storage.BackupDir(h.Path), f.Name())
		case strings.Contains(f.Name(), ".crash-"):
			autosave = filepath.Join(storage.BackupDir(h.Path), f.Name())
		}
	}
	if report == "" || autosave == "" {
		t.Fatalf("expected report and autosave, got %v", files)
	}
	b, _ := os.ReadFile(report)
	if !bytes.Contains(b, []byte("Panic: boom")) {
		t.Fatalf("report does not contain panic: %s", b)
	}
	a, _ := os.ReadFile(autosave)
	if !bytes.Contains(a, []byte("edited before the panic")) {
		t.Fatalf("autosave should hold the in-memory document")
	}
	if called != 2 {
		t.Fatalf("expected exit code 2, got %d", called)
	}
}
