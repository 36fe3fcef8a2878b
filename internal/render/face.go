/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package render draws the two faces of a card. A Face is a flat list of
// drawing items in card units (a 50x70 box); SVG and Raster turn the same
// Face into vector text and an RGBA image.
package render

import (
	"strings"

	"spellcards/internal/domain"
	"spellcards/internal/textlayout"
)

// Card box in card units.
const (
	Width  = 50.0
	Height = 70.0

	// wrapWidth is the text column of the front face.
	wrapWidth = 44.0
)

// DefaultColor is used when a card has no color.
const DefaultColor = "#000000"

// Side tells the front from the back.
type Side int

const (
	Front Side = iota
	Back
)

func (s Side) String() string {
	if s == Back {
		return "back"
	}
	return "front"
}

// Anchor is the horizontal text alignment at X.
type Anchor int

const (
	AnchorMiddle Anchor = iota
	AnchorStart
	AnchorEnd
)

// Point is a position in card units.
type Point struct{ X, Y float64 }

// Item is one drawing instruction.
type Item interface{ item() }

// Rect is a filled and/or stroked rectangle with corner radius R.
type Rect struct {
	X, Y, W, H  float64
	R           float64
	Fill        string
	Stroke      string
	StrokeWidth float64
}

type Line struct {
	X1, Y1, X2, Y2 float64
	Stroke         string
	Width          float64
}

// Polygon is closed when Closed is set, otherwise an open polyline.
type Polygon struct {
	Points      []Point
	Closed      bool
	Fill        string
	Stroke      string
	StrokeWidth float64
}

// Text is one or more lines starting at baseline Y; each further line sits
// one font size lower.
type Text struct {
	X, Y   float64
	Lines  []string
	Style  textlayout.TextStyle
	Anchor Anchor
	Fill   string
	// Centered puts the vertical middle of the first line on Y.
	Centered bool
}

// Image places a picture given by URL; data URLs are embedded in rasters.
type Image struct {
	X, Y, W, H float64
	Href       string
}

func (Rect) item()    {}
func (Line) item()    {}
func (Polygon) item() {}
func (Text) item()    {}
func (Image) item()   {}

// Face is the drawable content of one side of a card.
type Face struct {
	Side  Side
	Color string
	Items []Item
}

func (f *Face) add(items ...Item) { f.Items = append(f.Items, items...) }

// Text returns every text line on the face, in drawing order.
func (f Face) Text() []string {
	var out []string
	for _, it := range f.Items {
		if t, ok := it.(Text); ok {
			out = append(out, t.Lines...)
		}
	}
	return out
}

func cardColor(c domain.Card) string {
	if v, ok := c.Get(domain.FieldColor); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return DefaultColor
}

func text(x, y float64, s string, style string, anchor Anchor, fill string) Text {
	return Text{X: x, Y: y, Lines: []string{s}, Style: textlayout.MustStyle(style), Anchor: anchor, Fill: fill}
}

// FrontFace lays out the front of c: title, the four stat boxes, physical
// components, description, the higher-level block, class and type line.
func FrontFace(c domain.Card, m *textlayout.Measurer) Face {
	if m == nil {
		m = textlayout.NewMeasurer(nil)
	}
	color := cardColor(c)
	f := Face{Side: Front, Color: color}
	body := textlayout.MustStyle("Body")

	f.add(
		Rect{W: Width, H: Height, Fill: color},
		Rect{X: 2, Y: 2, W: 46, H: 64, R: 2, Fill: "#ffffff"},
	)
	for _, y := range []float64{9, 16, 23} {
		f.add(Line{X1: 0, Y1: y, X2: Width, Y2: y, Stroke: color, Width: 0.3})
	}
	f.add(Line{X1: 25, Y1: 9, X2: 25, Y2: 23, Stroke: color, Width: 0.3})

	f.add(text(25, 6.75, c.Name(), "Title", AnchorMiddle, color))

	duration, conc := domain.SplitConcentration(c[domain.FieldDuration])
	f.add(
		text(13.5, 12, "CASTING TIME", "Label", AnchorMiddle, color),
		text(13.5, 14.6, c[domain.FieldCastingTime], "Body", AnchorMiddle, ""),
		text(36.5, 12, "RANGE", "Label", AnchorMiddle, color),
		text(36.5, 14.6, c[domain.FieldRange], "Body", AnchorMiddle, ""),
		text(13.5, 19, "COMPONENTS", "Label", AnchorMiddle, color),
		text(13.5, 21.6, c[domain.FieldComponents], "Body", AnchorMiddle, ""),
		text(36.5, 19, "DURATION", "Label", AnchorMiddle, color),
		text(36.5, 21.6, domain.Capitalize(duration), "Body", AnchorMiddle, ""),
	)
	if conc {
		f.add(Polygon{
			Points: []Point{{45.5, 17}, {43.5, 19.5}, {45.5, 22}, {47.5, 19.5}},
			Closed: true,
			Fill:   color,
		})
		t := text(45.5, 19.5, "C", "Label", AnchorMiddle, "#ffffff")
		t.Centered = true
		f.add(t)
	}

	offset := 0.0
	if v, ok := c.Get(domain.FieldPhysicalComponents); ok {
		b := m.Wrap(domain.BulletLists(v), wrapWidth, body.Size)
		f.add(
			Rect{Y: 23, W: Width, H: b.Advance + 4, Fill: color},
			Text{X: 3, Y: 25.6, Lines: b.Lines, Style: body, Anchor: AnchorStart, Fill: "#ffffff"},
		)
		offset += b.Advance + 3.5
	}
	if v, ok := c.Get(domain.FieldDescription); ok {
		b := m.Wrap(domain.BulletLists(v), wrapWidth, body.Size)
		f.add(Text{X: 3, Y: 25.5 + offset, Lines: b.Lines, Style: body, Anchor: AnchorStart})
	}
	if v, ok := c.Get(domain.FieldExtDescription); ok {
		b := m.Wrap(domain.BulletLists(v), wrapWidth, body.Size)
		top := 62 - b.Advance
		f.add(
			Rect{Y: top - 3, W: Width, H: 3.5, Fill: color},
			text(25, top-0.4, "At Higher Levels", "Banner", AnchorMiddle, "#ffffff"),
			Text{X: 3, Y: 65 - b.Advance, Lines: b.Lines, Style: body, Anchor: AnchorStart},
		)
	}

	f.add(
		text(2.5, 68.5, c[domain.FieldClass], "Label", AnchorStart, "#ffffff"),
		text(48, 68.5, domain.TypeLine(c), "Caption", AnchorEnd, "#ffffff"),
	)
	return f
}

// BackFace lays out the back of c: frame, rhombus, the level glyph in two
// corners and the card image.
func BackFace(c domain.Card) Face {
	color := cardColor(c)
	f := Face{Side: Back, Color: color}
	f.add(
		Rect{W: Width, H: Height, Fill: color},
		Rect{X: 2, Y: 2, W: 46, H: 66, R: 2, Fill: "#ffffff"},
		Rect{X: 5, Y: 5, W: 40, H: 60, R: 2, Stroke: color, StrokeWidth: 0.5},
		Polygon{
			Points:      []Point{{5.25, 35}, {25, 5.25}, {45, 34.75}, {25, 64.75}, {5.25, 35}},
			Stroke:      color,
			StrokeWidth: 0.5,
		},
	)
	glyph := domain.LevelGlyph(c)
	f.add(
		text(38, 15, glyph, "Glyph", AnchorMiddle, color),
		text(12, 62, glyph, "Glyph", AnchorMiddle, color),
	)
	if img, ok := c.Get(domain.FieldImage); ok && img != "" {
		f.add(Image{X: 12.5, Y: 22.5, W: 25, H: 25, Href: img})
	}
	return f
}
