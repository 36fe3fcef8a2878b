/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"spellcards/internal/document"
	applog "spellcards/internal/log"
)

var (
	// ErrRenderNotReady is returned by Capture before the first render.
	ErrRenderNotReady = errors.New("render not ready")
	// ErrPreviewClosed is returned by Await after Close.
	ErrPreviewClosed = errors.New("preview closed")
)

// Preview keeps a rendered Pair of the store's selected card up to date.
// Rendering runs on its own goroutine after every change; each finished
// render is tagged with the store revision it started from.
type Preview struct {
	store *document.Store
	r     Renderer
	log   *slog.Logger

	kick  chan struct{}
	done  chan struct{}
	wg    sync.WaitGroup
	unsub func()
	once  sync.Once

	mu      sync.Mutex
	pair    Pair
	rev     uint64
	ready   bool
	lastErr error
	// rendered is closed and replaced after every render.
	rendered chan struct{}
}

// NewPreview starts rendering store's selection with r.
func NewPreview(store *document.Store, r Renderer) *Preview {
	p := &Preview{
		store:    store,
		r:        r,
		log:      applog.WithComponent("render"),
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		rendered: make(chan struct{}),
	}
	p.unsub = store.Subscribe(func(document.Change) { p.trigger() })
	p.wg.Add(1)
	go p.loop()
	p.trigger()
	return p
}

func (p *Preview) trigger() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

func (p *Preview) loop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case <-p.kick:
		}
		// revision first: the card read below is at least this new
		rev := p.store.Revision()
		card := p.store.SelectedCard()
		start := time.Now()
		pair, err := p.r.Render(card)

		p.mu.Lock()
		if err == nil {
			p.pair = pair
			p.rev = rev
			p.ready = true
		}
		p.lastErr = err
		close(p.rendered)
		p.rendered = make(chan struct{})
		p.mu.Unlock()

		if err != nil {
			p.log.Warn("render failed", slog.Uint64("rev", rev), slog.Any("err", err))
			continue
		}
		p.log.Debug("rendered", slog.Uint64("rev", rev), slog.String("card", pair.Name), slog.Duration("took", time.Since(start)))
	}
}

// Await blocks until a render that started at revision rev or later has
// finished. It returns false when timeout elapses first; callers may then
// capture whatever is current. A cancelled ctx or a closed preview is an
// error.
func (p *Preview) Await(ctx context.Context, rev uint64, timeout time.Duration) (bool, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}
	for {
		p.mu.Lock()
		if p.ready && p.rev >= rev {
			p.mu.Unlock()
			return true, nil
		}
		wait := p.rendered
		p.mu.Unlock()

		select {
		case <-wait:
		case <-deadline:
			return false, nil
		case <-ctx.Done():
			return false, ctx.Err()
		case <-p.done:
			return false, ErrPreviewClosed
		}
	}
}

// Capture returns the latest rendered pair and the revision it reflects.
func (p *Preview) Capture() (Pair, uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.ready {
		if p.lastErr != nil {
			return Pair{}, 0, errors.Join(ErrRenderNotReady, p.lastErr)
		}
		return Pair{}, 0, ErrRenderNotReady
	}
	return p.pair, p.rev, nil
}

// Close stops watching the store and waits for the render goroutine.
func (p *Preview) Close() {
	p.once.Do(func() {
		p.unsub()
		close(p.done)
		p.wg.Wait()
	})
}
