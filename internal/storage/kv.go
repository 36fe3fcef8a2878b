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
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"spellcards/internal/config"
	applog "spellcards/internal/log"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("storage: key not found")

// KV is a durable key-value store holding whole serialized documents.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

// Snapshot is one historical value of a key.
type Snapshot struct {
	TS   time.Time
	Blob []byte
}

// Replacer is implemented by backends that keep previous values. Replace
// overwrites the current value of key without recording a new version.
type Replacer interface {
	Replace(ctx context.Context, key string, value []byte) error
}

// Historian is implemented by backends that keep previous values.
type Historian interface {
	History(ctx context.Context, key string, limit int) ([]Snapshot, error)
}

// SQLiteFileName is the database file created under the storage path.
const SQLiteFileName = "spellcards.sqlite"

// Open returns the backend selected by cfg.
func Open(ctx context.Context, cfg config.StorageConfig) (KV, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "open").With(slog.String("backend", cfg.Backend))
	var (
		kv  KV
		err error
	)
	switch cfg.Backend {
	case config.BackendFile, "":
		kv, err = NewFileKV(cfg.Path, cfg.Snapshots)
	case config.BackendSQLite:
		kv, err = OpenSQLite(ctx, filepath.Join(cfg.Path, SQLiteFileName), cfg.Snapshots)
	case config.BackendPostgres:
		kv, err = OpenPostgres(ctx, cfg.DSN, cfg.Password, cfg.Snapshots)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		l.Error("open failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("storage ready")
	return kv, nil
}
