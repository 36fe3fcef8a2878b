/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package layout computes where card faces go on printed US Letter sheets.
// It is pure: it never renders, it only places opaque content.
package layout

import (
	"fmt"
)

// Page geometry in PDF points.
const (
	PageWidth  = 612.0
	PageHeight = 792.0
	Margin     = 0.25 * 72

	// TileWidth and TileHeight divide the printable area into a 3x3 grid.
	TileWidth  = (PageWidth - 2*Margin) / 3
	TileHeight = (PageHeight - 2*Margin) / 3

	// CardWidth and CardHeight keep the 50:70 card ratio at tile height.
	CardHeight = TileHeight
	CardWidth  = CardHeight / 70 * 50

	cols         = 3
	rows         = 3
	cardsPerPage = cols * rows
)

// Mode selects a print arrangement.
type Mode string

const (
	// ModeDoubleSided prints fronts on one side of a sheet and backs on the
	// other, mirrored so that they line up when the sheet is flipped.
	ModeDoubleSided Mode = "double"
	// ModeFoldable prints front and back side by side, three cards a page.
	ModeFoldable Mode = "foldable"
)

// ParseMode accepts the mode names used on the command line.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDoubleSided, "double-sided", "doublesided":
		return ModeDoubleSided, nil
	case ModeFoldable, "fold":
		return ModeFoldable, nil
	}
	return "", fmt.Errorf("unknown print mode %q", s)
}

// Face tells front from back.
type Face int

const (
	Front Face = iota
	Back
)

func (f Face) String() string {
	if f == Back {
		return "back"
	}
	return "front"
}

// Break is a page-break marker relative to a placement.
type Break int

const (
	BreakNone Break = iota
	BreakBefore
	BreakAfter
)

// Pair is one card's two faces.
type Pair[T any] struct {
	Front T
	Back  T
}

// Placement positions one face. X and Y are the top-left corner in points
// from the top-left of page Page (0-based).
type Placement[T any] struct {
	Card    int
	Face    Face
	Page    int
	Break   Break
	X, Y    float64
	Width   float64
	Height  float64
	Content T
}

// Plan is the ordered list of placements for a print run.
type Plan[T any] struct {
	Mode       Mode
	Pages      int
	Placements []Placement[T]
}

// OnPage returns the placements of page n in emission order.
func (p Plan[T]) OnPage(n int) []Placement[T] {
	var out []Placement[T]
	for _, pl := range p.Placements {
		if pl.Page == n {
			out = append(out, pl)
		}
	}
	return out
}

// Arrange dispatches to the layout for mode.
func Arrange[T any](mode Mode, pairs []Pair[T]) (Plan[T], error) {
	switch mode {
	case ModeDoubleSided:
		return DoubleSided(pairs), nil
	case ModeFoldable:
		return Foldable(pairs), nil
	}
	return Plan[T]{}, fmt.Errorf("unknown print mode %q", mode)
}

// DoubleSided lays cards out nine to a sheet side. Each batch of nine
// fronts fills page 2b and the matching backs fill page 2b+1 with columns
// mirrored, so that a long-edge duplex print lines the faces up.
func DoubleSided[T any](pairs []Pair[T]) Plan[T] {
	plan := Plan[T]{Mode: ModeDoubleSided}
	n := len(pairs)
	if n == 0 {
		return plan
	}
	plan.Placements = make([]Placement[T], 0, 2*n)
	for start := 0; start < n; start += cardsPerPage {
		end := min(start+cardsPerPage, n)
		batch := start / cardsPerPage
		for i := start; i < end; i++ {
			k, r := i%cols, (i/cols)%rows
			brk := BreakNone
			if i == start {
				brk = BreakBefore
			}
			plan.Placements = append(plan.Placements, Placement[T]{
				Card: i, Face: Front, Page: 2 * batch, Break: brk,
				X: Margin + float64(k)*TileWidth, Y: Margin + float64(r)*TileHeight,
				Width: TileWidth, Height: TileHeight, Content: pairs[i].Front,
			})
		}
		for i := start; i < end; i++ {
			k, r := i%cols, (i/cols)%rows
			brk := BreakNone
			switch {
			case i == start:
				brk = BreakBefore
			case i%cardsPerPage == cardsPerPage-1 && i != n-1:
				brk = BreakAfter
			}
			plan.Placements = append(plan.Placements, Placement[T]{
				Card: i, Face: Back, Page: 2*batch + 1, Break: brk,
				X: Margin + float64(cols-1-k)*TileWidth, Y: Margin + float64(r)*TileHeight,
				Width: TileWidth, Height: TileHeight, Content: pairs[i].Back,
			})
		}
		plan.Pages = 2*batch + 2
	}
	return plan
}

// Foldable places each card's front and back next to each other, three
// cards down a page, for folding along the shared edge.
func Foldable[T any](pairs []Pair[T]) Plan[T] {
	plan := Plan[T]{Mode: ModeFoldable}
	n := len(pairs)
	if n == 0 {
		return plan
	}
	plan.Placements = make([]Placement[T], 0, 2*n)
	for i, p := range pairs {
		r := i % rows
		page := i / rows
		y := Margin + float64(r)*CardHeight
		plan.Placements = append(plan.Placements, Placement[T]{
			Card: i, Face: Front, Page: page,
			X: Margin, Y: y, Width: CardWidth, Height: CardHeight, Content: p.Front,
		})
		brk := BreakNone
		if r == rows-1 && i != n-1 {
			brk = BreakAfter
		}
		plan.Placements = append(plan.Placements, Placement[T]{
			Card: i, Face: Back, Page: page, Break: brk,
			X: Margin + CardWidth, Y: y, Width: CardWidth, Height: CardHeight, Content: p.Back,
		})
		plan.Pages = page + 1
	}
	return plan
}

// Paginate replays the break markers the way a flowing renderer would and
// returns the page each placement lands on. Before on the very first
// placement is ignored and adjacent markers collapse into one break. For
// every plan built here the result equals the Page fields.
func Paginate[T any](placements []Placement[T]) []int {
	out := make([]int, len(placements))
	page := 0
	pending := false
	for i, pl := range placements {
		if i > 0 && (pending || pl.Break == BreakBefore) {
			page++
		}
		pending = pl.Break == BreakAfter
		out[i] = page
	}
	return out
}
