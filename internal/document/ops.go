/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package document

import (
	"spellcards/internal/domain"
)

// AddGroup appends g (the store keeps a copy) and returns its index. A nil
// group is rejected with -1 and nothing is committed.
func (s *Store) AddGroup(g *domain.Group) int {
	if g == nil {
		return -1
	}
	var idx int
	_ = s.commit(OpAddGroup, func() error {
		s.groups = append(s.groups, newGroupEntry(g.Clone()))
		idx = len(s.groups) - 1
		return nil
	})
	return idx
}

// RemoveGroup removes group i. A selection on that group is cleared.
func (s *Store) RemoveGroup(i int) (*domain.Group, error) {
	var removed *domain.Group
	err := s.commit(OpRemoveGroup, func() error {
		e, err := s.groupLocked(i)
		if err != nil {
			return err
		}
		removed = e.group
		s.groups = append(s.groups[:i], s.groups[i+1:]...)
		if s.sel.HasGroup() && s.sel.Group == i {
			s.setSelectionLocked(domain.NoSelection())
		}
		return nil
	})
	return removed, err
}

// MoveGroup moves group from to position to, shifting the groups between.
func (s *Store) MoveGroup(from, to int) error {
	return s.commit(OpMoveGroup, func() error {
		if err := domain.CheckIndex("group", from, len(s.groups)); err != nil {
			return err
		}
		if err := domain.CheckIndex("group", to, len(s.groups)); err != nil {
			return err
		}
		s.groups = domain.Move(s.groups, from, to)
		return nil
	})
}

// DuplicateGroup appends a deep copy of group i and selects it.
func (s *Store) DuplicateGroup(i int) (int, error) {
	var idx int
	err := s.commit(OpDuplicateGroup, func() error {
		e, err := s.groupLocked(i)
		if err != nil {
			return err
		}
		s.groups = append(s.groups, newGroupEntry(e.group.Clone()))
		idx = len(s.groups) - 1
		s.setSelectionLocked(domain.GroupSelection(idx))
		return nil
	})
	return idx, err
}

// RenameGroup sets the name of group g. Any string is accepted.
func (s *Store) RenameGroup(g int, name string) error {
	return s.commit(OpRenameGroup, func() error {
		e, err := s.groupLocked(g)
		if err != nil {
			return err
		}
		e.group.EditName(name)
		return nil
	})
}

// EditDefaults sets a default field of group g; nil clears it.
func (s *Store) EditDefaults(g int, f domain.Field, value *string) error {
	return s.commit(OpEditDefaults, func() error {
		e, err := s.groupLocked(g)
		if err != nil {
			return err
		}
		e.group.EditDefaults(f, value)
		return nil
	})
}

// AddCard appends card to group g and returns its index.
func (s *Store) AddCard(g int, card domain.Card) (int, error) {
	var idx int
	err := s.commit(OpAddCard, func() error {
		e, err := s.groupLocked(g)
		if err != nil {
			return err
		}
		idx = e.addCard(card)
		return nil
	})
	return idx, err
}

// RemoveCard removes card c of group g. A selection on exactly that card is
// cleared.
func (s *Store) RemoveCard(g, c int) (domain.Card, error) {
	var removed domain.Card
	err := s.commit(OpRemoveCard, func() error {
		e, err := s.groupLocked(g)
		if err != nil {
			return err
		}
		removed, err = e.group.RemoveCard(c)
		if err != nil {
			return err
		}
		e.cards = append(e.cards[:c], e.cards[c+1:]...)
		if s.sel.IsCard() && s.sel.Group == g && s.sel.Card == c {
			s.setSelectionLocked(domain.NoSelection())
		}
		return nil
	})
	return removed, err
}

// MoveCard moves a card within group g.
func (s *Store) MoveCard(g, from, to int) error {
	return s.commit(OpMoveCard, func() error {
		e, err := s.groupLocked(g)
		if err != nil {
			return err
		}
		if err := e.group.MoveCard(from, to); err != nil {
			return err
		}
		e.cards = domain.Move(e.cards, from, to)
		return nil
	})
}

// EditCard sets one field of card c in group g; nil clears it.
func (s *Store) EditCard(g, c int, f domain.Field, value *string) error {
	return s.commit(OpEditCard, func() error {
		e, err := s.groupLocked(g)
		if err != nil {
			return err
		}
		return e.group.EditCard(c, f, value)
	})
}

// DuplicateCard appends a copy of the stored card c of group g to the same
// group and selects the copy.
func (s *Store) DuplicateCard(g, c int) (int, error) {
	var idx int
	err := s.commit(OpDuplicateCard, func() error {
		e, err := s.groupLocked(g)
		if err != nil {
			return err
		}
		raw, err := e.group.Card(c)
		if err != nil {
			return err
		}
		idx = e.addCard(raw)
		s.setSelectionLocked(domain.CardSelection(g, idx))
		return nil
	})
	return idx, err
}

// Select sets the selection from optional indices. It is not bounds-checked
// up front; an out of range selection collapses to none when the
// transaction validates.
func (s *Store) Select(group, card *int) {
	s.SelectAt(domain.SelectionOf(group, card))
}

// SelectAt sets the selection to sel.
func (s *Store) SelectAt(sel domain.Selection) {
	_ = s.commit(OpSelect, func() error {
		s.setSelectionLocked(sel)
		return nil
	})
}

// SelectNone clears the selection.
func (s *Store) SelectNone() { s.SelectAt(domain.NoSelection()) }

// SelectGroup selects group g.
func (s *Store) SelectGroup(g int) { s.SelectAt(domain.GroupSelection(g)) }

// SelectCard selects card c of group g.
func (s *Store) SelectCard(g, c int) { s.SelectAt(domain.CardSelection(g, c)) }

func (e *groupEntry) addCard(card domain.Card) int {
	idx := e.group.AddCard(card)
	e.cards = append(e.cards, cardEntry{id: newID()})
	return idx
}
