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
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "bannerforge/internal/log"
	"bannerforge/internal/version"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

// IndexFileName is the revision database inside the data directory.
const IndexFileName = "revisions.sqlite"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// language=SQL
// dialect=SQLite
const insertRevisionSQL = `INSERT INTO revisions(document_id, revision, label, data, checksum, created_at) VALUES (?, ?, ?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestRevisionSQL = `SELECT id, document_id, revision, label, data, checksum, created_at FROM revisions WHERE document_id = ? ORDER BY id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const listRevisionsSQL = `SELECT id, document_id, revision, label, data, checksum, created_at FROM revisions WHERE document_id = ? ORDER BY id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneRevisionsSQL = `DELETE FROM revisions WHERE document_id = ? AND id NOT IN (
	SELECT id FROM revisions WHERE document_id = ? ORDER BY id DESC LIMIT ?
)`

// language=SQL
// dialect=SQLite
const upsertMetaSQL = `INSERT INTO meta(key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`

// Index is the SQLite revision store.
type Index struct {
	db   *sql.DB
	path string
	log  *slog.Logger
}

var _ RevisionStore = (*Index)(nil)

// IndexPath returns the revision database path inside dataDir.
func IndexPath(dataDir string) string {
	return filepath.Join(dataDir, IndexFileName)
}

// OpenIndex creates or opens the revision database in dataDir, enables WAL mode
// and migrates the schema to the newest version.
func OpenIndex(dataDir string) (*Index, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_open").With(
		slog.String("dir", dataDir),
	)
	if strings.TrimSpace(dataDir) == "" {
		return nil, errors.New("data directory is required")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		l.Error("create data dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	path := IndexPath(dataDir)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := migrateIndex(db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	if _, err := db.ExecContext(ctx, upsertMetaSQL, "app_version", version.String()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("write meta: %w", err)
	}

	l.Debug("index ready", slog.String("path", path))
	return &Index{db: db, path: path, log: applog.WithComponent("storage")}, nil
}

// migrateIndex applies the embedded migrations. The migrate instance is not
// closed because that would close db; only its source is released.
func migrateIndex(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	defer func() { _ = src.Close() }()
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Path is the database file.
func (x *Index) Path() string { return x.path }

// SchemaVersion reports the applied migration version and whether the last one failed halfway.
func (x *Index) SchemaVersion(ctx context.Context) (uint, bool, error) {
	var v uint
	var dirty bool
	err := x.db.QueryRowContext(ctx, `SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&v, &dirty)
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return v, dirty, nil
}

// Meta returns a value of the meta table, or "" when the key is absent.
func (x *Index) Meta(ctx context.Context, key string) (string, error) {
	var v string
	err := x.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

func (x *Index) SaveRevision(ctx context.Context, rev Revision) (Revision, error) {
	rev, err := PrepareRevision(rev)
	if err != nil {
		return rev, err
	}
	latest, err := x.LatestRevision(ctx, rev.DocumentID)
	switch {
	case err == nil && latest.Checksum == rev.Checksum:
		return latest, nil
	case err != nil && !errors.Is(err, ErrNoRevision):
		return rev, err
	}
	res, err := x.db.ExecContext(ctx, insertRevisionSQL,
		rev.DocumentID, int64(rev.Revision), rev.Label, rev.Data, rev.Checksum, rev.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return rev, fmt.Errorf("insert revision: %w", err)
	}
	if rev.ID, err = res.LastInsertId(); err != nil {
		return rev, err
	}
	x.log.Debug("revision saved", slog.String("doc", rev.DocumentID), slog.Int64("id", rev.ID))
	return rev, nil
}

func (x *Index) LatestRevision(ctx context.Context, documentID string) (Revision, error) {
	rev, err := scanRevision(x.db.QueryRowContext(ctx, selectLatestRevisionSQL, documentID))
	if errors.Is(err, sql.ErrNoRows) {
		return Revision{}, ErrNoRevision
	}
	return rev, err
}

func (x *Index) ListRevisions(ctx context.Context, documentID string, limit int) ([]Revision, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := x.db.QueryContext(ctx, listRevisionsSQL, documentID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Revision
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rev)
	}
	return out, rows.Err()
}

func (x *Index) PruneRevisions(ctx context.Context, documentID string, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := x.db.ExecContext(ctx, pruneRevisionsSQL, documentID, documentID, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close releases the database.
func (x *Index) Close() error { return x.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRevision(r rowScanner) (Revision, error) {
	var rev Revision
	var num int64
	var ts string
	if err := r.Scan(&rev.ID, &rev.DocumentID, &num, &rev.Label, &rev.Data, &rev.Checksum, &ts); err != nil {
		return Revision{}, err
	}
	rev.Revision = uint64(num)
	// keep the row even if the timestamp is damaged
	rev.CreatedAt, _ = time.Parse(time.RFC3339Nano, ts)
	return rev, nil
}
