/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package document

import (
	"errors"

	"github.com/google/uuid"

	"spellcards/internal/domain"
)

// ErrUnknownID is returned when a stable id does not name a live item.
var ErrUnknownID = errors.New("unknown id")

func newID() string { return uuid.NewString() }

// anchor is the identity of the current selection target.
type anchor struct {
	sel   domain.Selection
	group string
	card  string
}

func (s *Store) anchorLocked() anchor {
	a := anchor{sel: s.sel}
	if !s.sel.HasGroup() || s.sel.Group < 0 || s.sel.Group >= len(s.groups) {
		return a
	}
	e := s.groups[s.sel.Group]
	a.group = e.id
	if s.sel.IsCard() && s.sel.Card >= 0 && s.sel.Card < len(e.cards) {
		a.card = e.cards[s.sel.Card].id
	}
	return a
}

// resolveLocked maps an anchor back to positions after a mutation. A
// target that no longer exists yields no selection.
func (s *Store) resolveLocked(a anchor) domain.Selection {
	if a.group == "" {
		return a.sel
	}
	g := s.indexOfGroupLocked(a.group)
	if g < 0 {
		return domain.NoSelection()
	}
	if !a.sel.IsCard() {
		return domain.GroupSelection(g)
	}
	if c := s.groups[g].indexOfCard(a.card); c >= 0 {
		return domain.CardSelection(g, c)
	}
	return domain.NoSelection()
}

func (s *Store) indexOfGroupLocked(id string) int {
	for i, e := range s.groups {
		if e.id == id {
			return i
		}
	}
	return -1
}

func (e *groupEntry) indexOfCard(id string) int {
	if id == "" {
		return -1
	}
	for i, c := range e.cards {
		if c.id == id {
			return i
		}
	}
	return -1
}

// GroupID returns the stable id of group i.
func (s *Store) GroupID(i int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.groupLocked(i)
	if err != nil {
		return "", err
	}
	return e.id, nil
}

// CardID returns the stable id of card c in group g.
func (s *Store) CardID(g, c int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.groupLocked(g)
	if err != nil {
		return "", err
	}
	if err := domain.CheckIndex("card", c, len(e.cards)); err != nil {
		return "", err
	}
	return e.cards[c].id, nil
}

// LocateGroup returns the current index of the group with the given id.
func (s *Store) LocateGroup(id string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOfGroupLocked(id); i >= 0 {
		return i, nil
	}
	return -1, ErrUnknownID
}

// LocateCard returns the current position of the card with the given id.
func (s *Store) LocateCard(id string) (g, c int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for gi, e := range s.groups {
		if ci := e.indexOfCard(id); ci >= 0 {
			return gi, ci, nil
		}
	}
	return -1, -1, ErrUnknownID
}
