/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package textlayout measures and wraps card text. Card geometry uses a
// 50x70 unit box, so all widths and sizes here are in card units; pixel
// faces from golang.org/x/image are scaled into that space.
package textlayout

import (
	"fmt"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
)

// Provider supplies a face for text that should be sizePx pixels tall.
// Scale converts the face's own pixel measurements to the requested size;
// it is 1 for scalable fonts.
type Provider interface {
	Face(sizePx float64) (face font.Face, scale float64)
}

// BasicProvider uses the fixed 7x13 bitmap face from basicfont. It needs no
// font files and gives deterministic results.
type BasicProvider struct{}

func (BasicProvider) Face(sizePx float64) (font.Face, float64) {
	f := basicfont.Face7x13
	native := float64(f.Metrics().Height.Round())
	if native <= 0 || sizePx <= 0 {
		return f, 1
	}
	return f, sizePx / native
}

// FontProvider renders with a parsed OpenType/TrueType font and falls back
// to BasicProvider when no font is loaded.
type FontProvider struct {
	Font *opentype.Font
}

// LoadFont reads and parses a TTF or OTF file.
func LoadFont(path string) (*FontProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font %s: %w", path, err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", path, err)
	}
	return &FontProvider{Font: f}, nil
}

func (p *FontProvider) Face(sizePx float64) (font.Face, float64) {
	if p == nil || p.Font == nil || sizePx <= 0 {
		return BasicProvider{}.Face(sizePx)
	}
	face, err := opentype.NewFace(p.Font, &opentype.FaceOptions{Size: sizePx, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return BasicProvider{}.Face(sizePx)
	}
	return face, 1
}
