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
	"os"
	"testing"
	"time"
)

// openPGForTest connects to SPELLCARDS_TEST_PG_DSN and skips when it is
// unset or unreachable.
func openPGForTest(t *testing.T) *PostgresKV {
	t.Helper()
	dsn := os.Getenv("SPELLCARDS_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("SPELLCARDS_TEST_PG_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	kv, err := OpenPostgres(ctx, dsn, "", 2)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func TestPostgresKVRoundTrip(t *testing.T) {
	kv := openPGForTest(t)
	ctx := context.Background()
	key := "test-" + time.Now().Format("150405.000000000")
	if _, err := kv.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing = %v", err)
	}
	for _, v := range []string{`{"n":1}`, `{"n":2}`, `{"n":3}`} {
		if err := kv.Put(ctx, key, []byte(v)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	got, err := kv.Get(ctx, key)
	if err != nil || string(got) != `{"n":3}` {
		t.Fatalf("Get = %q, %v", got, err)
	}
	hist, err := kv.History(ctx, key, 10)
	if err != nil || len(hist) != 2 {
		t.Fatalf("History = %d, %v", len(hist), err)
	}
}

func TestParseVersion(t *testing.T) {
	v, err := parseVersion("migrations/002_snapshots.sql")
	if err != nil || v != 2 {
		t.Fatalf("parseVersion = %d, %v", v, err)
	}
	if _, err := parseVersion("snapshots.sql"); err == nil {
		t.Fatal("expected error for unnumbered file")
	}
}

func TestOpenPostgresRequiresDSN(t *testing.T) {
	if _, err := OpenPostgres(context.Background(), "", "", 0); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}
