/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"fmt"
	"image"

	"spellcards/internal/domain"
	"spellcards/internal/textlayout"
)

// Default raster size of one face.
const (
	RasterWidth  = 1500
	RasterHeight = 2100
)

// Pair is both faces of one card in vector and raster form.
type Pair struct {
	Name     string
	FrontSVG []byte
	BackSVG  []byte
	Front    *image.RGBA
	Back     *image.RGBA
}

// Renderer turns an effective card into a Pair.
type Renderer interface {
	Render(c domain.Card) (Pair, error)
}

// CardRenderer is the default Renderer.
type CardRenderer struct {
	Measurer *textlayout.Measurer
	Width    int
	Height   int
}

// NewCardRenderer renders at w x h pixels; non-positive sizes use the
// defaults. A nil provider means the basic bitmap face.
func NewCardRenderer(p textlayout.Provider, w, h int) *CardRenderer {
	if w <= 0 {
		w = RasterWidth
	}
	if h <= 0 {
		h = RasterHeight
	}
	return &CardRenderer{Measurer: textlayout.NewMeasurer(p), Width: w, Height: h}
}

func (r *CardRenderer) Render(c domain.Card) (Pair, error) {
	front := FrontFace(c, r.Measurer)
	back := BackFace(c)
	fs, err := SVG(front)
	if err != nil {
		return Pair{}, fmt.Errorf("render front: %w", err)
	}
	bs, err := SVG(back)
	if err != nil {
		return Pair{}, fmt.Errorf("render back: %w", err)
	}
	return Pair{
		Name:     c.Name(),
		FrontSVG: fs,
		BackSVG:  bs,
		Front:    Raster(front, r.Width, r.Height, r.Measurer.Provider),
		Back:     Raster(back, r.Width, r.Height, r.Measurer.Provider),
	}, nil
}
