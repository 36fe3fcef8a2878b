/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package inbox imports export files dropped into a watched folder.
// Each file is imported once and then moved to imported/ or rejected/.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"spellcards/internal/codec"
	"spellcards/internal/document"
	applog "spellcards/internal/log"
)

// Subfolders that receive processed files.
const (
	ImportedDir = "imported"
	RejectedDir = "rejected"
)

// DefaultDebounce is how long a file must stay quiet before it is read.
const DefaultDebounce = 300 * time.Millisecond

// Stats counts watcher activity.
type Stats struct {
	Imported int
	Rejected int
	Errors   int
	LastFile string
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// OnImport is called after each processed file with the errors of that
// file; a nil slice means it was imported.
func OnImport(fn func(path string, errs []error)) Option {
	return func(w *Watcher) { w.onImport = fn }
}

// Watcher feeds files appearing in one directory into a store.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	store    *document.Store
	dir      string
	pending  map[string]time.Time
	debounce time.Duration
	onImport func(string, []error)
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
	closed   bool
	stats    Stats
	log      *slog.Logger
}

// New prepares a watcher for dir. Nothing is watched until Start.
func New(dir string, store *document.Store, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("inbox watcher: %w", err)
	}
	w := &Watcher{
		watcher:  fw,
		store:    store,
		dir:      dir,
		pending:  make(map[string]time.Time),
		debounce: DefaultDebounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		log:      applog.WithComponent("inbox").With(slog.String("dir", dir)),
	}
	for _, o := range opts {
		o(w)
	}
	return w, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string { return w.dir }

// Start creates the directory if needed, queues files already present and
// begins watching. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running || w.closed {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		w.abort()
		return fmt.Errorf("create inbox %s: %w", w.dir, err)
	}
	if err := w.watcher.Add(w.dir); err != nil {
		w.abort()
		return fmt.Errorf("watch inbox %s: %w", w.dir, err)
	}
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.abort()
		return fmt.Errorf("read inbox %s: %w", w.dir, err)
	}
	w.mu.Lock()
	for _, e := range entries {
		if !e.IsDir() {
			w.pending[filepath.Join(w.dir, e.Name())] = time.Now()
		}
	}
	w.mu.Unlock()

	w.log.Info("watching")
	go w.run(ctx)
	return nil
}

func (w *Watcher) abort() {
	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
}

// Stop ends the watch loop, waits for it and releases the watcher. It is
// safe to call more than once and without Start.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	wasRunning := w.running
	w.running = false
	w.closed = true
	w.mu.Unlock()

	close(w.stopCh)
	if wasRunning {
		<-w.doneCh
	}
	if err := w.watcher.Close(); err != nil {
		w.log.Error("close watcher", slog.Any("err", err))
	}
	w.log.Info("stopped")
}

// Stats returns a copy of the counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := time.NewTicker(min(100*time.Millisecond, max(w.debounce/4, 5*time.Millisecond)))
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("watch error", slog.Any("err", err))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		case <-tick.C:
			w.processSettled()
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	if filepath.Dir(ev.Name) != filepath.Clean(w.dir) {
		return
	}
	w.mu.Lock()
	w.pending[ev.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processSettled() {
	w.mu.Lock()
	now := time.Now()
	var ready []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		w.process(path)
	}
}

func (w *Watcher) process(path string) {
	st, err := os.Stat(path)
	if err != nil || st.IsDir() {
		// moved away, deleted, or one of our own subfolders
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		w.log.Error("read dropped file", slog.String("file", path), slog.Any("err", err))
		w.mu.Lock()
		w.stats.Errors++
		w.mu.Unlock()
		return
	}
	name := filepath.Base(path)
	d := codec.Dropped{Name: name, MimeType: mime.TypeByExtension(filepath.Ext(name)), Data: data}
	errs := codec.ImportDropped(w.store, []codec.Dropped{d})

	dest := ImportedDir
	w.mu.Lock()
	w.stats.LastFile = name
	if len(errs) == 0 {
		w.stats.Imported++
	} else {
		w.stats.Rejected++
		dest = RejectedDir
	}
	w.mu.Unlock()

	if err := moveInto(path, filepath.Join(w.dir, dest)); err != nil {
		w.log.Error("move processed file", slog.String("file", name), slog.Any("err", err))
	}
	if w.onImport != nil {
		w.onImport(path, errs)
	}
}

// moveInto renames path into dir, adding a timestamp when the name is
// already taken.
func moveInto(path, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	dst := filepath.Join(dir, filepath.Base(path))
	if _, err := os.Stat(dst); err == nil {
		dst = fmt.Sprintf("%s.%s", dst, time.Now().Format("20060102-150405.000000000"))
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return os.Rename(path, dst)
}
