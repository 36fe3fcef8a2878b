/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"encoding/json"
	"fmt"
)

// SelectionType tags the Selection variant.
type SelectionType string

const (
	SelectionNone  SelectionType = "none"
	SelectionGroup SelectionType = "group"
	SelectionCard  SelectionType = "card"
)

// Selection points at nothing, a whole group, or a single card by position.
// Group is meaningful for SelectionGroup and SelectionCard; Card only for
// SelectionCard.
type Selection struct {
	Type  SelectionType
	Group int
	Card  int
}

// NoSelection is the empty selection.
func NoSelection() Selection { return Selection{Type: SelectionNone} }

// GroupSelection selects group g.
func GroupSelection(g int) Selection { return Selection{Type: SelectionGroup, Group: g} }

// CardSelection selects card c of group g.
func CardSelection(g, c int) Selection { return Selection{Type: SelectionCard, Group: g, Card: c} }

// SelectionOf builds a selection from optional indices, mirroring the
// select(group?, card?) call shape. A card index without a group is ignored.
func SelectionOf(group, card *int) Selection {
	switch {
	case group == nil:
		return NoSelection()
	case card == nil:
		return GroupSelection(*group)
	default:
		return CardSelection(*group, *card)
	}
}

// IsNone reports whether nothing is selected.
func (s Selection) IsNone() bool { return s.Type != SelectionGroup && s.Type != SelectionCard }

// HasGroup reports whether the selection references a group index.
func (s Selection) HasGroup() bool { return s.Type == SelectionGroup || s.Type == SelectionCard }

// IsCard reports whether a single card is selected.
func (s Selection) IsCard() bool { return s.Type == SelectionCard }

// Valid reports whether the selection fits a workspace whose group sizes are
// given by cardCount (indexed by group).
func (s Selection) Valid(groups int, cardCount func(g int) int) bool {
	switch s.Type {
	case SelectionGroup:
		return s.Group >= 0 && s.Group < groups
	case SelectionCard:
		if s.Group < 0 || s.Group >= groups {
			return false
		}
		return s.Card >= 0 && s.Card < cardCount(s.Group)
	default:
		return true
	}
}

func (s Selection) String() string {
	switch s.Type {
	case SelectionGroup:
		return fmt.Sprintf("group[%d]", s.Group)
	case SelectionCard:
		return fmt.Sprintf("card[%d][%d]", s.Group, s.Card)
	default:
		return "none"
	}
}

type selectionJSON struct {
	Type  SelectionType `json:"type"`
	Group *int          `json:"group,omitempty"`
	Card  *int          `json:"card,omitempty"`
}

func (s Selection) MarshalJSON() ([]byte, error) {
	out := selectionJSON{Type: SelectionNone}
	switch s.Type {
	case SelectionGroup:
		out.Type = SelectionGroup
		out.Group = &s.Group
	case SelectionCard:
		out.Type = SelectionCard
		out.Group = &s.Group
		out.Card = &s.Card
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes leniently: an unknown type or a missing index
// yields the empty selection.
func (s *Selection) UnmarshalJSON(b []byte) error {
	var in selectionJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*s = NoSelection()
	switch in.Type {
	case SelectionGroup:
		if in.Group != nil {
			*s = GroupSelection(*in.Group)
		}
	case SelectionCard:
		if in.Group != nil && in.Card != nil {
			*s = CardSelection(*in.Group, *in.Card)
		}
	}
	return nil
}
