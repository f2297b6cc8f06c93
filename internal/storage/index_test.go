/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	x, err := OpenIndex(t.TempDir())
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	t.Cleanup(func() { _ = x.Close() })
	return x
}

func TestOpenIndexMigratesToLatest(t *testing.T) {
	x := openTestIndex(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	v, dirty, err := x.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 2 || dirty {
		t.Fatalf("expected clean schema version 2, got %d dirty=%v", v, dirty)
	}
	app, err := x.Meta(ctx, "app_version")
	if err != nil || app == "" {
		t.Fatalf("expected app_version meta, got %q %v", app, err)
	}
}

func TestOpenIndexTwiceIsNoChange(t *testing.T) {
	dir := t.TempDir()
	x, err := OpenIndex(dir)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	_ = x.Close()
	y, err := OpenIndex(dir)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	_ = y.Close()
}

func TestRevisionsSaveListLatest(t *testing.T) {
	x := openTestIndex(t)
	ctx := context.Background()

	if _, err := x.LatestRevision(ctx, "doc"); !errors.Is(err, ErrNoRevision) {
		t.Fatalf("expected ErrNoRevision, got %v", err)
	}
	for i, data := range []string{`[1]`, `[2]`, `[3]`} {
		if _, err := x.SaveRevision(ctx, Revision{DocumentID: "doc", Revision: uint64(i + 1), Data: []byte(data)}); err != nil {
			t.Fatalf("SaveRevision %d: %v", i, err)
		}
	}
	latest, err := x.LatestRevision(ctx, "doc")
	if err != nil {
		t.Fatalf("LatestRevision: %v", err)
	}
	if string(latest.Data) != `[3]` || latest.Revision != 3 || latest.Checksum != Checksum([]byte(`[3]`)) {
		t.Fatalf("unexpected latest: %+v", latest)
	}
	list, err := x.ListRevisions(ctx, "doc", 2)
	if err != nil {
		t.Fatalf("ListRevisions: %v", err)
	}
	if len(list) != 2 || string(list[0].Data) != `[3]` || string(list[1].Data) != `[2]` {
		t.Fatalf("expected newest first, got %+v", list)
	}
	if other, _ := x.ListRevisions(ctx, "other", 0); len(other) != 0 {
		t.Fatalf("revisions leaked across documents")
	}
}

func TestSaveRevisionSkipsIdenticalData(t *testing.T) {
	x := openTestIndex(t)
	ctx := context.Background()
	first, err := x.SaveRevision(ctx, Revision{DocumentID: "doc", Revision: 1, Data: []byte(`[]`)})
	if err != nil {
		t.Fatalf("SaveRevision: %v", err)
	}
	again, err := x.SaveRevision(ctx, Revision{DocumentID: "doc", Revision: 2, Data: []byte(`[]`)})
	if err != nil {
		t.Fatalf("SaveRevision: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("identical data should not create a revision: %d vs %d", again.ID, first.ID)
	}
	list, _ := x.ListRevisions(ctx, "doc", 0)
	if len(list) != 1 {
		t.Fatalf("expected one revision, got %d", len(list))
	}
}

func TestSaveRevisionValidates(t *testing.T) {
	x := openTestIndex(t)
	if _, err := x.SaveRevision(context.Background(), Revision{Data: []byte(`[]`)}); err == nil {
		t.Fatalf("expected error for missing document id")
	}
	if _, err := x.SaveRevision(context.Background(), Revision{DocumentID: "d"}); err == nil {
		t.Fatalf("expected error for missing data")
	}
}

func TestPruneRevisions(t *testing.T) {
	x := openTestIndex(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := x.SaveRevision(ctx, Revision{DocumentID: "doc", Revision: uint64(i), Data: []byte{byte('a' + i)}}); err != nil {
			t.Fatalf("SaveRevision: %v", err)
		}
	}
	n, err := x.PruneRevisions(ctx, "doc", 2)
	if err != nil || n != 3 {
		t.Fatalf("PruneRevisions = %d, %v", n, err)
	}
	list, _ := x.ListRevisions(ctx, "doc", 0)
	if len(list) != 2 || list[0].Revision != 4 {
		t.Fatalf("expected the two newest to survive, got %+v", list)
	}
	if n, _ := x.PruneRevisions(ctx, "doc", 0); n != 0 {
		t.Fatalf("keep<=0 must be a no-op")
	}
}
