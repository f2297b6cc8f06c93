/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestInitJSONFileCarriesComponentAndOp(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "bfg.log")
	var console bytes.Buffer
	Init(Options{Level: "debug", Format: "json", File: fpath, Writer: &console})

	l := WithOperation(WithComponent("commands"), "execute")
	l.Info("command applied", slog.String("target", "obj-1"))

	b, err := os.ReadFile(fpath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var last string
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		if s := strings.TrimSpace(sc.Text()); s != "" {
			last = s
		}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(last), &m); err != nil {
		t.Fatalf("unmarshal json log %q: %v", last, err)
	}
	if m["app"] != "bannerforge" || m["component"] != "commands" || m["op"] != "execute" || m["target"] != "obj-1" {
		t.Fatalf("unexpected record: %v", m)
	}
	if !strings.Contains(console.String(), "command applied") {
		t.Fatalf("console output missing record: %q", console.String())
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("BFG_LOG_LEVEL", "warn")
	t.Setenv("BFG_LOG_FORMAT", "json")
	t.Setenv("BFG_LOG_SOURCE", "1")
	t.Setenv("BFG_LOG_FILE", "")
	opts := FromEnv()
	if opts.Level != "warn" || opts.Format != "json" || !opts.AddSource || opts.File != "" {
		t.Fatalf("FromEnv mismatch: %+v", opts)
	}
	if v := getenv("BFG_SURELY_UNSET", "fallback"); v != "fallback" {
		t.Fatalf("getenv fallback failed: %q", v)
	}
}

func TestLineHandlerFormatting(t *testing.T) {
	var buf bytes.Buffer
	var h slog.Handler = &lineHandler{level: slog.LevelWarn, w: &buf, mu: new(sync.Mutex)}
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatalf("info should be filtered at warn level")
	}
	h = h.WithAttrs([]slog.Attr{slog.String("component", "snap")}).WithGroup("guide")
	r := slog.NewRecord(time.Now(), slog.LevelWarn, "no frame", 0)
	r.AddAttrs(slog.Float64("x", 104.5), slog.Bool("snapped", false), slog.String("why", "no match"))
	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("handle: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"WRN no frame", "component=snap", "guide.x=104.5", "guide.snapped=false", `guide.why="no match"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
}
