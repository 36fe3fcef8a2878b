/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export turns cards into files: a ZIP bundle of rendered faces and
// print-ready PDFs. Faces always come from the live preview, one card at a
// time, so exports look exactly like what the editor shows.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"spellcards/internal/document"
	"spellcards/internal/domain"
	applog "spellcards/internal/log"
	"spellcards/internal/render"
)

// DefaultRenderTimeout bounds the wait for one card's preview.
const DefaultRenderTimeout = 2 * time.Second

// ErrEmptyTarget is returned when a target contains no cards.
var ErrEmptyTarget = errors.New("nothing to export")

// Ref is the position of one card.
type Ref struct {
	Group, Card int
}

// Captured is one card's rendered faces.
type Captured struct {
	Ref
	Pair render.Pair
}

// Pipeline drives the preview through a list of cards.
type Pipeline struct {
	Store   *document.Store
	Preview *render.Preview
	// Timeout bounds each Await; zero means DefaultRenderTimeout.
	Timeout time.Duration
	// Fallback renders a card directly when the preview misses Timeout.
	// Without it the last captured pair is used.
	Fallback render.Renderer
	// PDF controls Print output.
	PDF PDFOptions

	log *slog.Logger
}

// NewPipeline builds a pipeline over store and its preview.
func NewPipeline(store *document.Store, preview *render.Preview, timeout time.Duration) *Pipeline {
	return &Pipeline{
		Store:   store,
		Preview: preview,
		Timeout: timeout,
		log:     applog.WithComponent("export"),
	}
}

func (p *Pipeline) logger() *slog.Logger {
	if p.log == nil {
		p.log = applog.WithComponent("export")
	}
	return p.log
}

// Refs lists the cards of target in workspace order. A none selection
// means every card.
func (p *Pipeline) Refs(target domain.Selection) ([]Ref, error) {
	groups := p.Store.Groups()
	var out []Ref
	switch target.Type {
	case domain.SelectionCard:
		if _, err := p.Store.EffectiveCard(target.Group, target.Card); err != nil {
			return nil, err
		}
		out = append(out, Ref{Group: target.Group, Card: target.Card})
	case domain.SelectionGroup:
		if err := domain.CheckIndex("group", target.Group, len(groups)); err != nil {
			return nil, err
		}
		for c := 0; c < groups[target.Group].Len(); c++ {
			out = append(out, Ref{Group: target.Group, Card: c})
		}
	default:
		for g, grp := range groups {
			for c := 0; c < grp.Len(); c++ {
				out = append(out, Ref{Group: g, Card: c})
			}
		}
	}
	return out, nil
}

// Collect selects every card of target in turn, waits for the preview to
// render it, and captures the result. Cards are processed strictly one
// after another. The selection in place before the call is restored on
// return, including on error.
func (p *Pipeline) Collect(ctx context.Context, target domain.Selection) ([]Captured, error) {
	refs, err := p.Refs(target)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, ErrEmptyTarget
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultRenderTimeout
	}
	log := applog.WithOperation(p.logger(), "collect")

	orig := p.Store.Selection()
	defer p.Store.SelectAt(orig)

	out := make([]Captured, 0, len(refs))
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.Store.SelectCard(ref.Group, ref.Card)
		rev := p.Store.Revision()
		ok, err := p.Preview.Await(ctx, rev, timeout)
		if err != nil {
			return nil, fmt.Errorf("await card %d/%d: %w", ref.Group, ref.Card, err)
		}
		pair, err := p.capture(ref, ok)
		if err != nil {
			return nil, err
		}
		if !ok {
			log.Warn("render timed out, using fallback", slog.Int("group", ref.Group), slog.Int("card", ref.Card), slog.Duration("timeout", timeout))
		}
		out = append(out, Captured{Ref: ref, Pair: pair})
	}
	log.Debug("collected", slog.Int("cards", len(out)))
	return out, nil
}

func (p *Pipeline) capture(ref Ref, rendered bool) (render.Pair, error) {
	if !rendered && p.Fallback != nil {
		card, err := p.Store.EffectiveCard(ref.Group, ref.Card)
		if err != nil {
			return render.Pair{}, err
		}
		pair, err := p.Fallback.Render(card)
		if err != nil {
			return render.Pair{}, fmt.Errorf("fallback render %d/%d: %w", ref.Group, ref.Card, err)
		}
		return pair, nil
	}
	pair, _, err := p.Preview.Capture()
	if err != nil {
		return render.Pair{}, fmt.Errorf("capture card %d/%d: %w", ref.Group, ref.Card, err)
	}
	return pair, nil
}
