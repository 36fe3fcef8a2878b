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
	"errors"
	"fmt"
)

// UnnamedCard is assigned to cards added without a name.
const UnnamedCard = "Unnamed"

// ErrIndexOutOfRange is the sentinel wrapped by every IndexError.
var ErrIndexOutOfRange = errors.New("index out of range")

// IndexError reports a positional reference outside its list.
type IndexError struct {
	What  string // "group" or "card"
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s index %d out of range [0,%d)", e.What, e.Index, e.Len)
}

func (e *IndexError) Unwrap() error { return ErrIndexOutOfRange }

// CheckIndex returns an *IndexError when i is not in [0, n).
func CheckIndex(what string, i, n int) error {
	if i < 0 || i >= n {
		return &IndexError{What: what, Index: i, Len: n}
	}
	return nil
}

// Group is a named, ordered list of cards sharing default field values.
type Group struct {
	Name     string
	Defaults Card
	cards    []Card
}

// NewGroup builds a group owning copies of the given cards.
func NewGroup(name string, defaults Card, cards ...Card) *Group {
	g := &Group{Name: name, Defaults: defaults.Clone(), cards: make([]Card, 0, len(cards))}
	for _, c := range cards {
		g.cards = append(g.cards, c.Clone())
	}
	return g
}

// NewGroupName is the placeholder name for the n-th group of a workspace.
func NewGroupName(n int) string { return fmt.Sprintf("New Group %d", n) }

// Len returns the number of cards.
func (g *Group) Len() int { return len(g.cards) }

// AddCard appends a copy of card and returns its index. A card without a
// name is named UnnamedCard.
func (g *Group) AddCard(card Card) int {
	c := card.Clone()
	if _, ok := c[FieldName]; !ok {
		c[FieldName] = UnnamedCard
	}
	g.cards = append(g.cards, c)
	return len(g.cards) - 1
}

// MoveCard removes the card at from and reinserts it at to. Cards between
// the two positions shift by one.
func (g *Group) MoveCard(from, to int) error {
	if err := CheckIndex("card", from, len(g.cards)); err != nil {
		return err
	}
	if err := CheckIndex("card", to, len(g.cards)); err != nil {
		return err
	}
	g.cards = Move(g.cards, from, to)
	return nil
}

// RemoveCard removes and returns the card at i.
func (g *Group) RemoveCard(i int) (Card, error) {
	if err := CheckIndex("card", i, len(g.cards)); err != nil {
		return nil, err
	}
	c := g.cards[i]
	g.cards = append(g.cards[:i], g.cards[i+1:]...)
	return c, nil
}

// EditCard sets one field of the card at i. A nil value deletes the field
// so that the group default applies again.
func (g *Group) EditCard(i int, f Field, value *string) error {
	if err := CheckIndex("card", i, len(g.cards)); err != nil {
		return err
	}
	c := g.cards[i].Clone()
	c.apply(f, value)
	g.cards[i] = c
	return nil
}

// EditDefaults sets one default field; nil deletes it.
func (g *Group) EditDefaults(f Field, value *string) {
	d := g.Defaults.Clone()
	d.apply(f, value)
	g.Defaults = d
}

// EditName renames the group.
func (g *Group) EditName(name string) { g.Name = name }

// Card returns a copy of the raw card at i, without defaults applied.
func (g *Group) Card(i int) (Card, error) {
	if err := CheckIndex("card", i, len(g.cards)); err != nil {
		return nil, err
	}
	return g.cards[i].Clone(), nil
}

// EffectiveCard returns the card at i merged over the group defaults.
func (g *Group) EffectiveCard(i int) (Card, error) {
	if err := CheckIndex("card", i, len(g.cards)); err != nil {
		return nil, err
	}
	return Merge(g.Defaults, g.cards[i]), nil
}

// Cards returns every card with defaults applied.
func (g *Group) Cards() []Card {
	out := make([]Card, len(g.cards))
	for i, c := range g.cards {
		out[i] = Merge(g.Defaults, c)
	}
	return out
}

// RawCards returns copies of the stored cards.
func (g *Group) RawCards() []Card {
	out := make([]Card, len(g.cards))
	for i, c := range g.cards {
		out[i] = c.Clone()
	}
	return out
}

// Clone returns a deep copy.
func (g *Group) Clone() *Group {
	return NewGroup(g.Name, g.Defaults, g.cards...)
}

// groupJSON is the persisted shape {name, defaults, cards}.
type groupJSON struct {
	Name     string `json:"name"`
	Defaults Card   `json:"defaults"`
	Cards    []Card `json:"cards"`
}

func (g *Group) MarshalJSON() ([]byte, error) {
	cards := g.cards
	if cards == nil {
		cards = []Card{}
	}
	return json.Marshal(groupJSON{Name: g.Name, Defaults: g.Defaults, Cards: cards})
}

func (g *Group) UnmarshalJSON(b []byte) error {
	var gj groupJSON
	if err := json.Unmarshal(b, &gj); err != nil {
		return err
	}
	*g = *NewGroup(gj.Name, gj.Defaults, gj.Cards...)
	return nil
}

// Move is a splice-remove followed by a splice-insert on any positional list.
// Indices must already be in range.
func Move[T any](s []T, from, to int) []T {
	if from == to {
		return s
	}
	v := s[from]
	s = append(s[:from], s[from+1:]...)
	s = append(s[:to], append([]T{v}, s[to:]...)...)
	return s
}
