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
	"path/filepath"
	"strconv"
	"testing"
)

func TestFileKVGetMissing(t *testing.T) {
	kv, err := NewFileKV(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewFileKV: %v", err)
	}
	if _, err := kv.Get(context.Background(), "state"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing = %v, want ErrNotFound", err)
	}
}

func TestFileKVPutGetAndBackup(t *testing.T) {
	root := t.TempDir()
	kv, err := NewFileKV(root, 0)
	if err != nil {
		t.Fatalf("NewFileKV: %v", err)
	}
	ctx := context.Background()
	if err := kv.Put(ctx, "state", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("Put 1: %v", err)
	}
	if err := kv.Put(ctx, "state", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("Put 2: %v", err)
	}
	got, err := kv.Get(ctx, "state")
	if err != nil || string(got) != `{"v":2}` {
		t.Fatalf("Get = %q, %v", got, err)
	}
	hist, err := kv.History(ctx, "state", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 1 || string(hist[0].Blob) != `{"v":1}` {
		t.Fatalf("History = %+v", hist)
	}
	if hist[0].TS.IsZero() {
		t.Fatalf("backup timestamp not parsed")
	}
	// no temp files left behind
	ents, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range ents {
		if !e.IsDir() && e.Name() != "state.json" {
			t.Fatalf("unexpected file %s", e.Name())
		}
	}
}

func TestFileKVFallsBackToBackupOnCorruption(t *testing.T) {
	root := t.TempDir()
	kv, err := NewFileKV(root, 0)
	if err != nil {
		t.Fatalf("NewFileKV: %v", err)
	}
	ctx := context.Background()
	if err := kv.Put(ctx, "state", []byte(`{"good":true}`)); err != nil {
		t.Fatal(err)
	}
	if err := kv.Put(ctx, "state", []byte(`{"good":"newer"}`)); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "state.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := kv.Get(ctx, "state")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `{"good":true}` {
		t.Fatalf("Get = %q, want latest backup", got)
	}
}

func TestFileKVCorruptWithoutBackupFails(t *testing.T) {
	root := t.TempDir()
	kv, err := NewFileKV(root, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "state.json"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = kv.Get(context.Background(), "state")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("Get = %v, want a read error", err)
	}
}

func TestFileKVPrunesBackups(t *testing.T) {
	root := t.TempDir()
	kv, err := NewFileKV(root, 2)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		if err := kv.Put(ctx, "state", []byte(`{}`)); err != nil {
			t.Fatalf("Put %d: %v", i, err)
		}
	}
	names, err := kv.backups("state")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 {
		t.Fatalf("kept %d backups, want 2", len(names))
	}
}

func TestFileKVEscapesKeys(t *testing.T) {
	root := t.TempDir()
	kv, err := NewFileKV(root, 0)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := kv.Put(ctx, "../outside", []byte(`[]`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(root), "outside.json")); err == nil {
		t.Fatalf("key escaped the storage root")
	}
	got, err := kv.Get(ctx, "../outside")
	if err != nil || string(got) != `[]` {
		t.Fatalf("Get = %q, %v", got, err)
	}
}

func TestFileKVHonorsContext(t *testing.T) {
	kv, err := NewFileKV(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := kv.Put(ctx, "state", []byte(`{}`)); !errors.Is(err, context.Canceled) {
		t.Fatalf("Put = %v, want context.Canceled", err)
	}
}

func TestNewFileKVRequiresRoot(t *testing.T) {
	if _, err := NewFileKV("  ", 0); err == nil {
		t.Fatal("expected error for empty root")
	}
}

func TestFileKVReplaceKeepsBackups(t *testing.T) {
	kv, err := NewFileKV(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := kv.Put(ctx, "state", []byte(`{"v":1}`)); err != nil {
		t.Fatal(err)
	}
	if err := kv.Put(ctx, "state", []byte(`{"v":2}`)); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := kv.Replace(ctx, "state", []byte(`{"v":2,"sel":`+strconv.Itoa(i)+`}`)); err != nil {
			t.Fatalf("Replace %d: %v", i, err)
		}
	}
	got, err := kv.Get(ctx, "state")
	if err != nil || string(got) != `{"v":2,"sel":2}` {
		t.Fatalf("Get = %q, %v", got, err)
	}
	hist, err := kv.History(ctx, "state", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 || string(hist[0].Blob) != `{"v":1}` {
		t.Fatalf("History after Replace = %+v", hist)
	}
}
