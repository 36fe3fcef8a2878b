/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"strings"

	"golang.org/x/image/font"
)

// resolution is the pixel density used to measure card units.
const resolution = 32.0

// Measurer measures strings in card units.
type Measurer struct {
	Provider Provider
}

// NewMeasurer returns a measurer; a nil provider means BasicProvider.
func NewMeasurer(p Provider) *Measurer {
	if p == nil {
		p = BasicProvider{}
	}
	return &Measurer{Provider: p}
}

// Width returns the advance of s at the given font size, in card units.
// Tracking is added between glyphs.
func (m *Measurer) Width(s string, size, tracking float64) float64 {
	if s == "" {
		return 0
	}
	face, scale := m.Provider.Face(size * resolution)
	px := float64(font.MeasureString(face, s)) / 64 * scale
	w := px / resolution
	if n := len([]rune(s)); n > 1 {
		w += tracking * float64(n-1)
	}
	return w
}

// Block is wrapped text. Lines are rendered one font size apart; Advance is
// the distance from the first baseline to the last.
type Block struct {
	Lines   []string
	Advance float64
}

// Wrap breaks text into lines no wider than width. Newlines always break;
// within a line words are separated by single spaces and a word that does
// not fit starts the next line. A word wider than width stays on a line of
// its own. Blank lines are kept.
func (m *Measurer) Wrap(text string, width, size float64) Block {
	text = strings.ReplaceAll(text, "\r", "")
	var b Block
	for _, para := range strings.Split(text, "\n") {
		words := strings.Split(para, " ")
		cur := words[0]
		for _, w := range words[1:] {
			next := cur + " " + w
			if m.Width(next, size, 0) > width {
				b.Lines = append(b.Lines, cur)
				cur = w
				continue
			}
			cur = next
		}
		b.Lines = append(b.Lines, cur)
	}
	b.Advance = float64(len(b.Lines)-1) * size
	return b
}

// Height is the space a block takes when each line is one font size tall.
func (b Block) Height(size float64) float64 {
	return float64(len(b.Lines)) * size
}
