/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package document holds the live card workspace: the ordered groups, the
// current selection and the observers that react to every committed change.
//
// The public API is positional (group index, card index). Behind it every
// group and card carries a stable uuid so that callers can hold on to an
// item across reorders and, with FollowSelection, the selection does too.
package document

import (
	"log/slog"
	"sync"

	"spellcards/internal/domain"
	applog "spellcards/internal/log"
)

// NoSelectionName is the name shown by SelectedCard when nothing is selected.
const NoSelectionName = "No Selection"

// Op names the mutation that produced a Change.
type Op string

const (
	OpAddGroup       Op = "add-group"
	OpRemoveGroup    Op = "remove-group"
	OpMoveGroup      Op = "move-group"
	OpDuplicateGroup Op = "duplicate-group"
	OpRenameGroup    Op = "rename-group"
	OpEditDefaults   Op = "edit-defaults"
	OpAddCard        Op = "add-card"
	OpRemoveCard     Op = "remove-card"
	OpMoveCard       Op = "move-card"
	OpEditCard       Op = "edit-card"
	OpDuplicateCard  Op = "duplicate-card"
	OpSelect         Op = "select"
	OpLoad           Op = "load"
	OpRestore        Op = "restore"
)

// Change is delivered to observers after a mutation has been committed and
// the selection has been re-validated.
type Change struct {
	Op        Op
	Revision  uint64
	Selection domain.Selection
}

// Option configures a Store.
type Option func(*Store)

// FollowSelection makes the selection track the selected item by identity
// across moves and removals of other items. By default the selection keeps
// its indices and is only cleared when it falls out of range or its target
// is removed.
func FollowSelection(on bool) Option { return func(s *Store) { s.follow = on } }

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.log = l } }

type cardEntry struct {
	id string
}

type groupEntry struct {
	id    string
	group *domain.Group
	cards []cardEntry
}

// Store is the single source of truth for a workspace. It is safe for
// concurrent use. Observers run synchronously after each commit and must not
// call mutating methods from the callback goroutine.
type Store struct {
	// txMu serializes mutation, selection fix-up and notification.
	txMu sync.Mutex
	// mu guards the fields below for readers.
	mu     sync.RWMutex
	groups []*groupEntry
	sel    domain.Selection
	rev    uint64
	selSet bool

	follow bool
	log    *slog.Logger

	obsMu     sync.Mutex
	observers []observer
	nextObs   int
}

type observer struct {
	id int
	fn func(Change)
}

// New returns an empty store with nothing selected.
func New(opts ...Option) *Store {
	s := &Store{sel: domain.NoSelection()}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = applog.WithComponent("document")
	}
	return s
}

// Subscribe registers fn for every future Change. The returned function
// removes the registration.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.nextObs++
	id := s.nextObs
	s.observers = append(s.observers, observer{id: id, fn: fn})
	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		for i, o := range s.observers {
			if o.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) notify(ch Change) {
	s.obsMu.Lock()
	obs := append([]observer(nil), s.observers...)
	s.obsMu.Unlock()
	for _, o := range obs {
		o.fn(ch)
	}
}

// commit runs fn as one transaction: mutate, fix the selection, bump the
// revision and notify. When fn fails nothing is committed and no observer
// runs; fn must validate before it mutates.
func (s *Store) commit(op Op, fn func() error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	ch, err := s.apply(op, fn)
	if err != nil {
		return err
	}
	s.log.Debug("commit", slog.String("op", string(op)), slog.Uint64("rev", ch.Revision), slog.String("selection", ch.Selection.String()))
	s.notify(ch)
	return nil
}

// apply runs fn and the selection fix-up under the state mutex. The mutex is
// released even when fn panics so that a crash handler can still read the
// store.
func (s *Store) apply(op Op, fn func() error) (Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	anchor := s.anchorLocked()
	s.selSet = false
	if err := fn(); err != nil {
		return Change{}, err
	}
	if s.follow && !s.selSet {
		s.sel = s.resolveLocked(anchor)
	}
	s.validateSelectionLocked()
	s.rev++
	return Change{Op: op, Revision: s.rev, Selection: s.sel}, nil
}

// setSelectionLocked records an explicit selection made by the current
// transaction so that identity tracking does not override it.
func (s *Store) setSelectionLocked(sel domain.Selection) {
	s.sel = sel
	s.selSet = true
}

func (s *Store) validateSelectionLocked() {
	if !s.sel.Valid(len(s.groups), func(g int) int { return s.groups[g].group.Len() }) {
		s.log.Debug("selection out of range, cleared", slog.String("selection", s.sel.String()))
		s.sel = domain.NoSelection()
	}
}

func newGroupEntry(g *domain.Group) *groupEntry {
	e := &groupEntry{id: newID(), group: g, cards: make([]cardEntry, g.Len())}
	for i := range e.cards {
		e.cards[i] = cardEntry{id: newID()}
	}
	return e
}

func (s *Store) groupLocked(i int) (*groupEntry, error) {
	if err := domain.CheckIndex("group", i, len(s.groups)); err != nil {
		return nil, err
	}
	return s.groups[i], nil
}

// Revision is incremented by every committed mutation.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rev
}

// Selection returns the current selection. It always satisfies the bounds
// invariant.
func (s *Store) Selection() domain.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sel
}

// Len returns the number of groups.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.groups)
}

// Groups returns deep copies of every group.
func (s *Store) Groups() []*domain.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Group, len(s.groups))
	for i, e := range s.groups {
		out[i] = e.group.Clone()
	}
	return out
}

// Group returns a copy of group i.
func (s *Store) Group(i int) (*domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.groupLocked(i)
	if err != nil {
		return nil, err
	}
	return e.group.Clone(), nil
}

// EffectiveCard returns card c of group g merged over the group defaults.
func (s *Store) EffectiveCard(g, c int) (domain.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.groupLocked(g)
	if err != nil {
		return nil, err
	}
	return e.group.EffectiveCard(c)
}

// SelectedCard is the card a preview shows: the effective card for a card
// selection, the group defaults titled with the group name for a group
// selection, and a placeholder otherwise.
func (s *Store) SelectedCard() domain.Card {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch s.sel.Type {
	case domain.SelectionCard:
		c, err := s.groups[s.sel.Group].group.EffectiveCard(s.sel.Card)
		if err == nil {
			return c
		}
	case domain.SelectionGroup:
		g := s.groups[s.sel.Group].group
		return domain.Merge(domain.Card{domain.FieldName: g.Name}, g.Defaults)
	}
	return domain.Card{domain.FieldName: NoSelectionName}
}
