/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package session wires a workspace together: the document store, its
// persistence, undo history, live preview and export pipeline. Front ends
// talk to a Session, usually through an Interp.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"spellcards/internal/config"
	"spellcards/internal/crash"
	"spellcards/internal/document"
	"spellcards/internal/export"
	applog "spellcards/internal/log"
	"spellcards/internal/render"
	"spellcards/internal/storage"
	"spellcards/internal/textlayout"
	"spellcards/internal/undo"
)

// Session is one open workspace.
type Session struct {
	Config    config.AppConfig
	Store     *document.Store
	KV        storage.KV
	Persister *storage.Persister
	History   *undo.History
	Renderer  *render.CardRenderer
	Preview   *render.Preview
	Pipeline  *export.Pipeline

	log       *slog.Logger
	closeOnce sync.Once
	closeErr  error
}

type options struct {
	kv     storage.KV
	follow bool
}

// Option configures Open.
type Option func(*options)

// WithKV uses kv instead of opening the configured backend. The session
// still closes it.
func WithKV(kv storage.KV) Option { return func(o *options) { o.kv = kv } }

// WithFollowSelection makes the selection track items by identity.
func WithFollowSelection(on bool) Option { return func(o *options) { o.follow = on } }

// Open loads the workspace described by cfg and starts autosave and the
// preview. Corrupt stored data yields an empty workspace, not an error.
func Open(ctx context.Context, cfg config.AppConfig, opts ...Option) (*Session, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	log := applog.WithComponent("session")

	kv := o.kv
	if kv == nil {
		var err error
		kv, err = storage.Open(ctx, cfg.Storage)
		if err != nil {
			return nil, err
		}
	}

	var provider textlayout.Provider
	if cfg.Export.FontFile != "" {
		fp, err := textlayout.LoadFont(cfg.Export.FontFile)
		if err != nil {
			log.Warn("font not loaded, using built-in face", slog.Any("err", err))
		} else {
			provider = fp
		}
	}

	store := document.New(document.FollowSelection(o.follow))
	p := storage.NewPersister(kv, cfg.Storage.Key)
	if err := p.Load(ctx, store); err != nil {
		_ = kv.Close()
		return nil, err
	}
	p.Attach(store)

	hist, err := undo.New(store, undo.Config{
		MaxBytes: cfg.History.MaxBytes,
		Depth:    cfg.History.Depth,
		Coalesce: cfg.History.Coalesce(),
	})
	if err != nil {
		p.Detach()
		_ = kv.Close()
		return nil, err
	}

	r := render.NewCardRenderer(provider, cfg.Export.RasterWidth, cfg.Export.RasterHeight)
	prev := render.NewPreview(store, r)
	pipe := export.NewPipeline(store, prev, cfg.Export.RenderTimeout())
	pipe.Fallback = r
	pipe.PDF.PrintWidth = cfg.Export.PrintRasterWidth

	log.Info("session opened",
		slog.String("backend", cfg.Storage.Backend),
		slog.String("key", p.Key()),
		slog.Int("groups", store.Len()))

	return &Session{
		Config:    cfg,
		Store:     store,
		KV:        kv,
		Persister: p,
		History:   hist,
		Renderer:  r,
		Preview:   prev,
		Pipeline:  pipe,
		log:       log,
	}, nil
}

// Save writes the workspace now, independent of autosave.
func (s *Session) Save(ctx context.Context) error {
	return s.Persister.Save(ctx, s.Store)
}

// Close stops the preview and autosave, flushes a final save and closes
// the store backend.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.Preview.Close()
		s.History.Close()
		s.Persister.Detach()
		ctx := applog.ContextWithWorkspace(context.Background(), s.Persister.Key())
		var errs []error
		if err := s.Persister.Save(ctx, s.Store); err != nil {
			errs = append(errs, err)
		}
		if err := s.KV.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
		s.closeErr = errors.Join(errs...)
		s.log.Info("session closed", slog.Int("saves", s.Persister.Saves()))
	})
	return s.closeErr
}

// CrashTarget describes what crash.Recover should preserve for this
// session.
func (s *Session) CrashTarget() *crash.Target {
	dir := s.Config.Storage.Path
	if s.Config.Storage.Backend == config.BackendPostgres || dir == "" {
		dir = os.TempDir()
	}
	return &crash.Target{
		Dir:       dir,
		Store:     s.Store,
		Workspace: s.Persister.Key(),
		Save:      s.Save,
	}
}
