/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package codec

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"spellcards/internal/document"
	"spellcards/internal/domain"
	applog "spellcards/internal/log"
)

// ErrNoGroupSelected is returned when a single card is imported while no
// group or card is selected to receive it.
var ErrNoGroupSelected = errors.New("no group selected to receive the card")

// UnsupportedTypeError rejects a dropped file that is not JSON.
type UnsupportedTypeError struct {
	Name     string
	MimeType string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported file %q (type %q): expected application/json or .json", e.Name, e.MimeType)
}

// Result describes what an import added.
type Result struct {
	Groups   int
	Cards    int
	Warnings []string
}

// ExportSelection builds the file for sel: every group for none, one
// group with its raw cards for a group, the effective card for a card.
func ExportSelection(s *document.Store, sel domain.Selection) (File, error) {
	switch sel.Type {
	case domain.SelectionGroup:
		g, err := s.Group(sel.Group)
		if err != nil {
			return File{}, fmt.Errorf("export group: %w", err)
		}
		return File{Type: domain.SelectionGroup, Group: g}, nil
	case domain.SelectionCard:
		c, err := s.EffectiveCard(sel.Group, sel.Card)
		if err != nil {
			return File{}, fmt.Errorf("export card: %w", err)
		}
		return File{Type: domain.SelectionCard, Card: c}, nil
	default:
		return File{Type: domain.SelectionNone, Groups: s.Groups()}, nil
	}
}

// Import adds the content of f to s. Groups are appended; a single group is
// also selected. A single card goes into the selected group and becomes the
// selection; without a selected group nothing changes and
// ErrNoGroupSelected is returned. Cards that fail soft validation are still
// imported and reported in Result.Warnings.
func Import(s *document.Store, f File) (Result, error) {
	var res Result
	switch f.Type {
	case domain.SelectionNone:
		for _, g := range f.Groups {
			if g == nil {
				continue
			}
			res.Warnings = append(res.Warnings, groupWarnings(g)...)
			s.AddGroup(g)
			res.Groups++
			res.Cards += g.Len()
		}
	case domain.SelectionGroup:
		if f.Group == nil {
			return res, errors.New("import group: empty group file")
		}
		res.Warnings = append(res.Warnings, groupWarnings(f.Group)...)
		idx := s.AddGroup(f.Group)
		s.SelectGroup(idx)
		res.Groups, res.Cards = 1, f.Group.Len()
	case domain.SelectionCard:
		sel := s.Selection()
		if !sel.HasGroup() {
			return res, ErrNoGroupSelected
		}
		if err := f.Card.Validate(); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("card %q: %v", f.Card.Name(), err))
		}
		idx, err := s.AddCard(sel.Group, f.Card)
		if err != nil {
			return res, fmt.Errorf("import card: %w", err)
		}
		s.SelectCard(sel.Group, idx)
		res.Cards = 1
	default:
		return res, fmt.Errorf("import: unknown file type %q", f.Type)
	}
	return res, nil
}

func groupWarnings(g *domain.Group) []string {
	var out []string
	if err := g.Defaults.Validate(); err != nil {
		out = append(out, fmt.Sprintf("group %q defaults: %v", g.Name, err))
	}
	for i, c := range g.RawCards() {
		if err := c.Validate(); err != nil {
			out = append(out, fmt.Sprintf("group %q card %d %q: %v", g.Name, i, c.Name(), err))
		}
	}
	return out
}

// Dropped is a file handed over by a drop target or a watched folder.
type Dropped struct {
	Name     string
	MimeType string
	Data     []byte
}

// Accepts reports whether d looks like an export file.
func (d Dropped) Accepts() bool {
	return d.MimeType == "application/json" || strings.EqualFold(filepath.Ext(d.Name), ".json")
}

// ImportDropped imports every acceptable file in order. A rejected or
// unreadable file is logged and reported but does not stop the others. The
// returned slice holds one entry per failed file.
func ImportDropped(s *document.Store, files []Dropped) []error {
	l := applog.WithOperation(applog.WithComponent("codec"), "drop")
	var errs []error
	for _, d := range files {
		if !d.Accepts() {
			err := &UnsupportedTypeError{Name: d.Name, MimeType: d.MimeType}
			l.Error("dropped file rejected", slog.String("file", d.Name), slog.String("mime", d.MimeType))
			errs = append(errs, err)
			continue
		}
		f, err := parse(d.Name, d.Data)
		if err != nil {
			l.Error("dropped file unreadable", slog.String("file", d.Name), slog.Any("err", err))
			errs = append(errs, err)
			continue
		}
		res, err := Import(s, f)
		if err != nil {
			l.Error("dropped file not imported", slog.String("file", d.Name), slog.Any("err", err))
			errs = append(errs, fmt.Errorf("%s: %w", d.Name, err))
			continue
		}
		for _, w := range res.Warnings {
			l.Warn("imported with warning", slog.String("file", d.Name), slog.String("warning", w))
		}
		l.Info("dropped file imported", slog.String("file", d.Name), slog.Int("groups", res.Groups), slog.Int("cards", res.Cards))
	}
	return errs
}
