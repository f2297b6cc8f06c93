/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package backend holds the optional Postgres revision store used when several
// editors share one template history.
package backend

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	applog "bannerforge/internal/log"
	"bannerforge/internal/storage"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PGStore keeps revisions in Postgres through the pgx database/sql driver.
type PGStore struct {
	db  *sql.DB
	log *slog.Logger
}

var _ storage.RevisionStore = (*PGStore)(nil)

// WithPassword returns dsn with password filled in when the dsn carries a user
// but no password. The password normally comes from the OS keyring.
func WithPassword(dsn, password string) (string, error) {
	if password == "" {
		return dsn, nil
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse dsn: %w", err)
	}
	if u.User == nil {
		return dsn, nil
	}
	if _, set := u.User.Password(); set {
		return dsn, nil
	}
	u.User = url.UserPassword(u.User.Username(), password)
	return u.String(), nil
}

// migrationURL rewrites a postgres:// dsn to the scheme of the pgx/v5 migrate driver.
func migrationURL(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse dsn: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		u.Scheme = "pgx5"
		return u.String(), nil
	}
	return "", fmt.Errorf("unsupported dsn scheme %q", u.Scheme)
}

// OpenPG connects to dsn, pings it and applies the embedded migrations.
func OpenPG(ctx context.Context, dsn string) (*PGStore, error) {
	l := applog.WithOperation(applog.WithComponent("backend"), "open")
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := applyMigrations(dsn); err != nil {
		_ = db.Close()
		l.Error("migrate failed", slog.Any("err", err))
		return nil, fmt.Errorf("migrate: %w", err)
	}
	l.Info("postgres revision store ready")
	return &PGStore{db: db, log: applog.WithComponent("backend")}, nil
}

// applyMigrations runs on its own connection so closing the migrator leaves the store's pool alone.
func applyMigrations(dsn string) error {
	murl, err := migrationURL(dsn)
	if err != nil {
		return err
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, murl)
	if err != nil {
		return err
	}
	defer func() {
		if serr, derr := m.Close(); serr != nil || derr != nil {
			applog.WithComponent("backend").Warn("migrator close", slog.Any("source", serr), slog.Any("db", derr))
		}
	}()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// dialect=PostgreSQL
const insertRevisionSQL = `INSERT INTO revisions(document_id, revision, label, data, checksum, created_at)
	VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`

// dialect=PostgreSQL
const selectRevisionsSQL = `SELECT id, document_id, revision, label, data, checksum, created_at
	FROM revisions WHERE document_id = $1 ORDER BY id DESC LIMIT $2`

// dialect=PostgreSQL
const pruneRevisionsSQL = `DELETE FROM revisions WHERE document_id = $1 AND id NOT IN (
	SELECT id FROM revisions WHERE document_id = $1 ORDER BY id DESC LIMIT $2
)`

func (s *PGStore) SaveRevision(ctx context.Context, rev storage.Revision) (storage.Revision, error) {
	rev, err := storage.PrepareRevision(rev)
	if err != nil {
		return rev, err
	}
	latest, err := s.LatestRevision(ctx, rev.DocumentID)
	switch {
	case err == nil && latest.Checksum == rev.Checksum:
		return latest, nil
	case err != nil && !errors.Is(err, storage.ErrNoRevision):
		return rev, err
	}
	if err := s.db.QueryRowContext(ctx, insertRevisionSQL,
		rev.DocumentID, int64(rev.Revision), rev.Label, rev.Data, rev.Checksum, rev.CreatedAt).Scan(&rev.ID); err != nil {
		return rev, fmt.Errorf("insert revision: %w", err)
	}
	s.log.Debug("revision saved", slog.String("doc", rev.DocumentID), slog.Int64("id", rev.ID))
	return rev, nil
}

func (s *PGStore) LatestRevision(ctx context.Context, documentID string) (storage.Revision, error) {
	list, err := s.ListRevisions(ctx, documentID, 1)
	if err != nil {
		return storage.Revision{}, err
	}
	if len(list) == 0 {
		return storage.Revision{}, storage.ErrNoRevision
	}
	return list[0], nil
}

func (s *PGStore) ListRevisions(ctx context.Context, documentID string, limit int) ([]storage.Revision, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, selectRevisionsSQL, documentID, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.log.Warn("rows close", slog.Any("err", err))
		}
	}()
	var out []storage.Revision
	for rows.Next() {
		var rev storage.Revision
		var num int64
		if err := rows.Scan(&rev.ID, &rev.DocumentID, &num, &rev.Label, &rev.Data, &rev.Checksum, &rev.CreatedAt); err != nil {
			return nil, err
		}
		rev.Revision = uint64(num)
		out = append(out, rev)
	}
	return out, rows.Err()
}

func (s *PGStore) PruneRevisions(ctx context.Context, documentID string, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, pruneRevisionsSQL, documentID, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close releases the connection pool.
func (s *PGStore) Close() error { return s.db.Close() }
