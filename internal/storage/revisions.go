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
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// ErrNoRevision is returned when a document has no recorded revision.
var ErrNoRevision = errors.New("no revision recorded")

// Revision is one recorded state of a document's scene. Revision is the scene's
// change counter at the time of the save; ID is assigned by the store.
type Revision struct {
	ID         int64
	DocumentID string
	Revision   uint64
	Label      string
	Data       []byte
	Checksum   string
	CreatedAt  time.Time
}

// RevisionStore persists revision history. The sqlite Index is the default
// implementation; a Postgres store satisfies the same contract.
type RevisionStore interface {
	// SaveRevision records rev. When the newest stored revision of the same
	// document has identical data, nothing is written and that revision is returned.
	SaveRevision(ctx context.Context, rev Revision) (Revision, error)
	// LatestRevision returns ErrNoRevision when the document has none.
	LatestRevision(ctx context.Context, documentID string) (Revision, error)
	// ListRevisions returns up to limit revisions, newest first.
	ListRevisions(ctx context.Context, documentID string, limit int) ([]Revision, error)
	// PruneRevisions keeps the newest keep revisions and reports how many were deleted.
	PruneRevisions(ctx context.Context, documentID string, keep int) (int64, error)
	Close() error
}

// Checksum is the content hash stored with a revision.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

const defaultListLimit = 50

// PrepareRevision validates rev, fills its checksum and normalizes the timestamp to UTC.
func PrepareRevision(rev Revision) (Revision, error) {
	if rev.DocumentID == "" {
		return rev, errors.New("revision: document id is required")
	}
	if rev.Data == nil {
		return rev, errors.New("revision: data is required")
	}
	rev.Checksum = Checksum(rev.Data)
	if rev.CreatedAt.IsZero() {
		rev.CreatedAt = time.Now()
	}
	rev.CreatedAt = rev.CreatedAt.UTC()
	return rev, nil
}
