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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "spellcards/internal/log"
	"spellcards/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

// schemaVersion tracks the local SQLite schema. Bump it together with a new
// step in runMigrations.
const schemaVersion = 2

// tsLayout is fixed width so that timestamps sort lexicographically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// language=SQL
// dialect=SQLite
const upsertKVSQL = `INSERT INTO kv(key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

// language=SQL
// dialect=SQLite
const selectKVSQL = `SELECT value FROM kv WHERE key = ?`

// language=SQL
// dialect=SQLite
const insertSnapshotSQL = `INSERT INTO snapshots(key, ts, blob) VALUES (?, ?, ?)`

// language=SQL
// dialect=SQLite
const listSnapshotsSQL = `SELECT ts, blob FROM snapshots WHERE key = ? ORDER BY ts DESC, id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneOldSnapshotsSQL = `DELETE FROM snapshots WHERE key = ? AND id NOT IN (
	SELECT id FROM snapshots WHERE key = ? ORDER BY ts DESC, id DESC LIMIT ?
)`

// SQLiteKV keeps values in an embedded SQLite database in WAL mode. Every
// Put also appends the value to a snapshots table pruned to keepLast rows
// per key.
type SQLiteKV struct {
	db       *sql.DB
	path     string
	keepLast int
	log      *slog.Logger
}

// OpenSQLite creates or opens the database at path, enables WAL and brings
// the schema up to date.
func OpenSQLite(ctx context.Context, path string, keepLast int) (*SQLiteKV, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "sqlite_open").With(slog.String("path", path))
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single writer for an embedded database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure version failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("sqlite ready")
	return &SQLiteKV{db: db, path: path, keepLast: keepLast, log: applog.WithComponent("storage")}, nil
}

func ensureVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// fresh database starts at schema 0 and migrates up
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, 0, ?, ?, ?)`, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// migrations[i] brings the schema from version i to i+1.
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	},
	{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id   INTEGER PRIMARY KEY AUTOINCREMENT,
			key  TEXT NOT NULL,
			ts   TEXT NOT NULL,
			blob BLOB NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_key_ts ON snapshots(key, ts);`,
	},
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	// never downgrade a newer database
	for ; cur < schemaVersion && cur < len(migrations); cur++ {
		next := cur + 1
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range migrations[cur] {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
	}
	return nil
}

// Path returns the database file.
func (s *SQLiteKV) Path() string { return s.path }

func (s *SQLiteKV) Get(ctx context.Context, key string) ([]byte, error) {
	var b []byte
	err := s.db.QueryRowContext(ctx, selectKVSQL, key).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return b, nil
}

func (s *SQLiteKV) Put(ctx context.Context, key string, value []byte) error {
	return s.put(ctx, key, value, s.keepLast > 0)
}

// Replace writes value without adding a snapshot row.
func (s *SQLiteKV) Replace(ctx context.Context, key string, value []byte) error {
	return s.put(ctx, key, value, false)
}

func (s *SQLiteKV) put(ctx context.Context, key string, value []byte, snapshot bool) error {
	ts := time.Now().UTC().Format(tsLayout)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsertKVSQL, key, value, ts); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if snapshot {
		if _, err := tx.ExecContext(ctx, insertSnapshotSQL, key, ts, value); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("snapshot %s: %w", key, err)
		}
		if _, err := tx.ExecContext(ctx, pruneOldSnapshotsSQL, key, key, s.keepLast); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("prune snapshots: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put: %w", err)
	}
	return nil
}

// History returns up to limit most recent values of key, newest first.
func (s *SQLiteKV) History(ctx context.Context, key string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, listSnapshotsSQL, key, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Snapshot
	for rows.Next() {
		var tsStr string
		var blob []byte
		if err := rows.Scan(&tsStr, &blob); err != nil {
			return nil, err
		}
		ts, _ := time.Parse(tsLayout, tsStr)
		out = append(out, Snapshot{TS: ts, Blob: blob})
	}
	return out, rows.Err()
}

func (s *SQLiteKV) Close() error {
	if err := s.db.Close(); err != nil {
		s.log.Warn("sqlite close failed", slog.Any("err", err))
		return err
	}
	return nil
}
