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
	"sync"
	"sync/atomic"
	"time"

	"spellcards/internal/document"
	applog "spellcards/internal/log"
)

// DefaultKey is the key a workspace is stored under.
const DefaultKey = "state"

// Persister keeps one key of a KV in sync with a document.Store.
type Persister struct {
	kv      KV
	key     string
	timeout time.Duration
	log     *slog.Logger

	loading atomic.Bool

	mu      sync.Mutex
	lastErr error
	saves   int
	unsub   func()
}

// NewPersister binds kv and key. An empty key means DefaultKey.
func NewPersister(kv KV, key string) *Persister {
	if key == "" {
		key = DefaultKey
	}
	return &Persister{
		kv:      kv,
		key:     key,
		timeout: 10 * time.Second,
		log:     applog.WithComponent("storage").With(slog.String("key", key)),
	}
}

// Key returns the bound key.
func (p *Persister) Key() string { return p.key }

// Load hydrates store from the KV. A missing key leaves the store empty.
// Unreadable or corrupt data is logged and also leaves the store empty; only
// a cancelled ctx is returned as an error.
func (p *Persister) Load(ctx context.Context, store *document.Store) error {
	ctx = applog.ContextWithWorkspace(ctx, p.key)
	data, err := p.kv.Get(ctx, p.key)
	switch {
	case errors.Is(err, ErrNotFound):
		p.log.DebugContext(ctx, "no stored workspace")
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		p.log.WarnContext(ctx, "load failed, starting empty", slog.Any("err", err))
		return nil
	}
	p.loading.Store(true)
	defer p.loading.Store(false)
	if err := store.Deserialize(data); err != nil {
		p.log.WarnContext(ctx, "stored workspace is corrupt, starting empty", slog.Any("err", err))
		return nil
	}
	p.log.InfoContext(ctx, "workspace loaded", slog.Int("groups", store.Len()))
	return nil
}

// Save writes the current content of store.
func (p *Persister) Save(ctx context.Context, store *document.Store) error {
	return p.save(ctx, store, false)
}

// save writes store; with selectionOnly set a backend that keeps history
// replaces the current value instead of recording a version.
func (p *Persister) save(ctx context.Context, store *document.Store, selectionOnly bool) error {
	data, err := store.Serialize()
	if err != nil {
		return err
	}
	if r, ok := p.kv.(Replacer); ok && selectionOnly {
		err = r.Replace(ctx, p.key, data)
	} else {
		err = p.kv.Put(ctx, p.key, data)
	}
	p.mu.Lock()
	p.lastErr = err
	if err == nil {
		p.saves++
	}
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("save workspace: %w", err)
	}
	return nil
}

// Attach saves store after every committed change until Detach. Selection
// changes do not add a stored version. Save failures are logged and reported
// by Err.
func (p *Persister) Attach(store *document.Store) {
	p.Detach()
	unsub := store.Subscribe(func(ch document.Change) {
		if p.loading.Load() && ch.Op == document.OpLoad {
			return
		}
		ctx, cancel := context.WithTimeout(applog.ContextWithWorkspace(context.Background(), p.key), p.timeout)
		defer cancel()
		if err := p.save(ctx, store, ch.Op == document.OpSelect); err != nil {
			p.log.ErrorContext(ctx, "autosave failed", slog.String("op", string(ch.Op)), slog.Uint64("rev", ch.Revision), slog.Any("err", err))
		}
	})
	p.mu.Lock()
	p.unsub = unsub
	p.mu.Unlock()
}

// Detach stops autosaving.
func (p *Persister) Detach() {
	p.mu.Lock()
	unsub := p.unsub
	p.unsub = nil
	p.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// Err returns the result of the most recent save.
func (p *Persister) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Saves counts successful saves.
func (p *Persister) Saves() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}
