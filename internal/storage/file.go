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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	BackupsDirName = "backups"
	fileExt        = ".json"
	backupStamp    = "20060102-150405.000000000"
)

// FileKV stores each key as <root>/<key>.json. Writes go to a temp file that
// is renamed over the target; the previous value is first copied to a
// timestamped backup. A missing or corrupt primary falls back to the newest
// backup on read.
type FileKV struct {
	root       string
	keepBackup int

	mu sync.Mutex
}

// NewFileKV creates root and its backups directory. keepBackups bounds the
// backups kept per key; zero keeps all of them.
func NewFileKV(root string, keepBackups int) (*FileKV, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, BackupsDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dirs: %w", err)
	}
	return &FileKV{root: root, keepBackup: keepBackups}, nil
}

// Root returns the storage directory.
func (f *FileKV) Root() string { return f.root }

func (f *FileKV) path(key string) string {
	return filepath.Join(f.root, url.PathEscape(key)+fileExt)
}

func (f *FileKV) backupPrefix(key string) string { return url.PathEscape(key) + fileExt + "." }

func (f *FileKV) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := os.ReadFile(f.path(key))
	if err == nil && json.Valid(b) {
		return b, nil
	}
	primaryErr := err
	if primaryErr == nil {
		primaryErr = errors.New("corrupt value")
	}
	bak, berr := f.latestBackup(key)
	switch {
	case berr == nil:
		return bak, nil
	case errors.Is(primaryErr, os.ErrNotExist) && errors.Is(berr, ErrNotFound):
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("read %s: %w; backup attempt: %v", key, primaryErr, berr)
	}
}

func (f *FileKV) Put(ctx context.Context, key string, value []byte) error {
	return f.put(ctx, key, value, true)
}

// Replace writes value without backing up the previous file.
func (f *FileKV) Replace(ctx context.Context, key string, value []byte) error {
	return f.put(ctx, key, value, false)
}

func (f *FileKV) put(ctx context.Context, key string, value []byte, backup bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	target := f.path(key)
	bdir := filepath.Join(f.root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}
	if _, statErr := os.Stat(target); backup && statErr == nil {
		bpath := filepath.Join(bdir, f.backupPrefix(key)+time.Now().UTC().Format(backupStamp)+".bak")
		if err := copyFile(target, bpath); err != nil {
			return fmt.Errorf("backup %s: %w", key, err)
		}
		if err := f.pruneBackups(key); err != nil {
			return fmt.Errorf("prune backups: %w", err)
		}
	}

	temp := filepath.Join(f.root, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(target), os.Getpid(), rand.Int()))
	if err := writeFileSync(temp, value); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("write temp file: %w", err)
	}
	// Windows cannot rename over an existing file.
	if _, err := os.Stat(target); err == nil {
		_ = os.Remove(target)
	}
	if err := os.Rename(temp, target); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace %s: %w", key, err)
	}
	return nil
}

func (f *FileKV) Close() error { return nil }

// History returns the newest backups of key, newest first.
func (f *FileKV) History(ctx context.Context, key string, limit int) ([]Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names, err := f.backups(key)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	var out []Snapshot
	for i := len(names) - 1; i >= 0 && len(out) < limit; i-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := os.ReadFile(filepath.Join(f.root, BackupsDirName, names[i]))
		if err != nil {
			return nil, err
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(names[i], f.backupPrefix(key)), ".bak")
		ts, _ := time.Parse(backupStamp, stamp)
		out = append(out, Snapshot{TS: ts, Blob: b})
	}
	return out, nil
}

// backups lists backup file names of key, oldest first.
func (f *FileKV) backups(key string) ([]string, error) {
	ents, err := os.ReadDir(filepath.Join(f.root, BackupsDirName))
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	prefix := f.backupPrefix(key)
	var names []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bak") {
			names = append(names, name)
		}
	}
	sort.Strings(names) // timestamp in name yields lexicographic order
	return names, nil
}

func (f *FileKV) pruneBackups(key string) error {
	if f.keepBackup <= 0 {
		return nil
	}
	names, err := f.backups(key)
	if err != nil {
		return err
	}
	for len(names) > f.keepBackup {
		if err := os.Remove(filepath.Join(f.root, BackupsDirName, names[0])); err != nil {
			return err
		}
		names = names[1:]
	}
	return nil
}

// latestBackup returns the newest backup of key that holds valid JSON.
func (f *FileKV) latestBackup(key string) ([]byte, error) {
	names, err := f.backups(key)
	if err != nil {
		return nil, err
	}
	for i := len(names) - 1; i >= 0; i-- {
		b, err := os.ReadFile(filepath.Join(f.root, BackupsDirName, names[i]))
		if err == nil && json.Valid(b) {
			return b, nil
		}
	}
	return nil, ErrNotFound
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
