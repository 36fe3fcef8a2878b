/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package undo keeps a linear undo/redo history of a document store.
package undo

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"spellcards/internal/document"
	applog "spellcards/internal/log"
)

// Snapshot is a serialized document and the time it was replaced.
// Its size is estimated as len(Blob).
type Snapshot struct {
	Blob []byte
	TS   time.Time
}

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap over both stacks; the oldest undo entries are
	// pruned when it is exceeded.
	MaxBytes int
	// Depth limits the number of undo entries (0 means unlimited).
	Depth int
	// Coalesce merges changes that follow the previous entry within the
	// interval into that entry, so a burst of edits undoes in one step.
	Coalesce time.Duration
}

// History records the state before every content change of a store.
// Selection-only changes are not undoable. It is safe for concurrent use.
type History struct {
	cfg   Config
	store *document.Store
	now   func() time.Time
	log   *slog.Logger
	unsub func()

	mu         sync.Mutex
	current    []byte
	undo       []Snapshot
	redo       []Snapshot
	totalBytes int
	// noMerge stops the next change from coalescing into an entry that
	// predates an Undo or Redo.
	noMerge bool
}

// Option configures a History.
type Option func(*History)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(h *History) { h.now = now } }

// New attaches a history to store. The store's current content is the
// starting point.
func New(store *document.Store, cfg Config, opts ...Option) (*History, error) {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 16 * 1024 * 1024 // 16 MiB
	}
	if cfg.Coalesce < 0 {
		cfg.Coalesce = 0
	}
	h := &History{cfg: cfg, store: store, now: time.Now, log: applog.WithComponent("undo")}
	for _, o := range opts {
		o(h)
	}
	cur, err := store.Serialize()
	if err != nil {
		return nil, err
	}
	h.current = cur
	h.unsub = store.Subscribe(h.observe)
	return h, nil
}

// Close detaches from the store.
func (h *History) Close() {
	if h.unsub != nil {
		h.unsub()
	}
}

func (h *History) observe(ch document.Change) {
	switch ch.Op {
	case document.OpRestore:
		// produced by Undo/Redo, which already moved current
		return
	}
	blob, err := h.store.Serialize()
	if err != nil {
		h.log.Warn("history snapshot failed", slog.Any("err", err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	switch ch.Op {
	case document.OpSelect:
		h.current = blob
		return
	case document.OpLoad:
		h.clearLocked()
		h.current = blob
		return
	}
	prev := h.current
	h.current = blob
	h.pushLocked(Snapshot{Blob: prev, TS: h.now()})
}

// pushLocked records s as the state to return to. An entry within the
// coalesce interval of the previous one is dropped: the previous entry
// already holds the state before the burst.
func (h *History) pushLocked(s Snapshot) {
	h.dropRedoLocked()
	merge := !h.noMerge
	h.noMerge = false
	if n := len(h.undo); merge && n > 0 && h.cfg.Coalesce > 0 {
		if s.TS.Sub(h.undo[n-1].TS) < h.cfg.Coalesce {
			return
		}
	}
	h.undo = append(h.undo, s)
	h.totalBytes += len(s.Blob)
	h.enforceCapsLocked()
}

// Undo restores the state before the latest change. It reports false when
// there is nothing to undo.
func (h *History) Undo() (bool, error) {
	h.mu.Lock()
	n := len(h.undo)
	if n == 0 {
		h.mu.Unlock()
		return false, nil
	}
	s := h.undo[n-1]
	doc, err := decode(s.Blob)
	if err != nil {
		h.mu.Unlock()
		return false, err
	}
	h.undo = h.undo[:n-1]
	h.redo = append(h.redo, Snapshot{Blob: h.current, TS: h.now()})
	h.totalBytes += len(h.current) - len(s.Blob)
	h.current = s.Blob
	h.noMerge = true
	h.mu.Unlock()

	// outside mu: Restore notifies observe synchronously
	h.store.Restore(doc)
	return true, nil
}

// Redo re-applies the latest undone change.
func (h *History) Redo() (bool, error) {
	h.mu.Lock()
	n := len(h.redo)
	if n == 0 {
		h.mu.Unlock()
		return false, nil
	}
	s := h.redo[n-1]
	doc, err := decode(s.Blob)
	if err != nil {
		h.mu.Unlock()
		return false, err
	}
	h.redo = h.redo[:n-1]
	h.undo = append(h.undo, Snapshot{Blob: h.current, TS: h.now()})
	h.totalBytes += len(h.current) - len(s.Blob)
	h.current = s.Blob
	h.noMerge = true
	h.enforceCapsLocked()
	h.mu.Unlock()

	h.store.Restore(doc)
	return true, nil
}

// CanUndo reports whether Undo would do anything.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo) > 0
}

// CanRedo reports whether Redo would do anything.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redo) > 0
}

// Clear drops both stacks.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clearLocked()
}

func (h *History) clearLocked() {
	h.undo, h.redo, h.totalBytes = nil, nil, 0
}

func (h *History) dropRedoLocked() {
	for _, s := range h.redo {
		h.totalBytes -= len(s.Blob)
	}
	h.redo = nil
}

// Stats returns current sizes for diagnostics.
func (h *History) Stats() (totalBytes, undoDepth, redoDepth int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.totalBytes, len(h.undo), len(h.redo)
}

func (h *History) enforceCapsLocked() {
	if h.cfg.Depth > 0 && len(h.undo) > h.cfg.Depth {
		toDrop := len(h.undo) - h.cfg.Depth
		for i := 0; i < toDrop; i++ {
			h.totalBytes -= len(h.undo[i].Blob)
		}
		h.undo = append([]Snapshot{}, h.undo[toDrop:]...)
	}
	// keep at least the newest entry
	for h.cfg.MaxBytes > 0 && h.totalBytes > h.cfg.MaxBytes && len(h.undo) > 1 {
		h.totalBytes -= len(h.undo[0].Blob)
		h.undo = h.undo[1:]
	}
}

func decode(blob []byte) (document.Document, error) {
	var doc document.Document
	if err := json.Unmarshal(blob, &doc); err != nil {
		return document.Document{}, fmt.Errorf("decode history entry: %w", err)
	}
	return doc, nil
}
