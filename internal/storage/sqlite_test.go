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
	"path/filepath"
	"testing"
)

func openTestSQLite(t *testing.T, keep int) (*SQLiteKV, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db", SQLiteFileName)
	kv, err := OpenSQLite(context.Background(), path, keep)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })
	return kv, path
}

func TestSQLiteKVRoundTrip(t *testing.T) {
	kv, _ := openTestSQLite(t, 5)
	ctx := context.Background()
	if _, err := kv.Get(ctx, "state"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing = %v", err)
	}
	if err := kv.Put(ctx, "state", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := kv.Put(ctx, "state", []byte(`{"a":2}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := kv.Get(ctx, "state")
	if err != nil || string(got) != `{"a":2}` {
		t.Fatalf("Get = %q, %v", got, err)
	}
}

func TestSQLiteKVHistoryIsPruned(t *testing.T) {
	kv, _ := openTestSQLite(t, 3)
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		if err := kv.Put(ctx, "state", []byte(fmt.Sprintf(`{"n":%d}`, i))); err != nil {
			t.Fatalf("Put %d: %v", i, err)
		}
	}
	// another key keeps its own history
	if err := kv.Put(ctx, "other", []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	hist, err := kv.History(ctx, "state", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("History len = %d, want 3", len(hist))
	}
	if string(hist[0].Blob) != `{"n":5}` || string(hist[2].Blob) != `{"n":3}` {
		t.Fatalf("History not newest first: %q .. %q", hist[0].Blob, hist[2].Blob)
	}
	if hist[0].TS.Before(hist[2].TS) {
		t.Fatalf("timestamps out of order")
	}
}

func TestSQLiteKVReopenKeepsDataAndSchema(t *testing.T) {
	kv, path := openTestSQLite(t, 0)
	ctx := context.Background()
	if err := kv.Put(ctx, "state", []byte(`{"x":true}`)); err != nil {
		t.Fatal(err)
	}
	if err := kv.Close(); err != nil {
		t.Fatal(err)
	}
	again, err := OpenSQLite(ctx, path, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = again.Close() }()
	got, err := again.Get(ctx, "state")
	if err != nil || string(got) != `{"x":true}` {
		t.Fatalf("Get after reopen = %q, %v", got, err)
	}
	var schema int
	if err := again.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&schema); err != nil {
		t.Fatal(err)
	}
	if schema != schemaVersion {
		t.Fatalf("schema = %d, want %d", schema, schemaVersion)
	}
	var mode string
	if err := again.db.QueryRowContext(ctx, `PRAGMA journal_mode`).Scan(&mode); err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Fatalf("journal_mode = %q", mode)
	}
	hist, err := again.History(ctx, "state", 0)
	if err != nil || len(hist) != 0 {
		t.Fatalf("history with keepLast=0: %d, %v", len(hist), err)
	}
}
