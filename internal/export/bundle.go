/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"

	"spellcards/internal/domain"
	"spellcards/internal/render"
)

// Bundle entry names inside each card folder.
const (
	FrontSVG = "front.svg"
	BackSVG  = "back.svg"
	FrontPNG = "front.png"
	BackPNG  = "back.png"
	RowPNG   = "row.png"
	ColPNG   = "column.png"
)

// Render collects target and writes a ZIP bundle to w: one NNN-<name>/
// folder per card holding both faces as SVG and PNG plus the faces joined
// in a row and in a column.
func (p *Pipeline) Render(ctx context.Context, target domain.Selection, w io.Writer) error {
	cards, err := p.Collect(ctx, target)
	if err != nil {
		return err
	}
	return WriteBundle(cards, w)
}

// WriteBundle writes already captured cards as a ZIP bundle.
func WriteBundle(cards []Captured, w io.Writer) error {
	if len(cards) == 0 {
		return ErrEmptyTarget
	}
	zw := zip.NewWriter(w)
	buf := &bytes.Buffer{}
	for i, c := range cards {
		dir := FolderName(i, c.Pair.Name)
		if err := addZipFile(zw, dir+FrontSVG, c.Pair.FrontSVG); err != nil {
			return fmt.Errorf("zip add %s: %w", dir+FrontSVG, err)
		}
		if err := addZipFile(zw, dir+BackSVG, c.Pair.BackSVG); err != nil {
			return fmt.Errorf("zip add %s: %w", dir+BackSVG, err)
		}
		images := []struct {
			name string
			img  image.Image
		}{
			{FrontPNG, c.Pair.Front},
			{BackPNG, c.Pair.Back},
			{RowPNG, render.Row(c.Pair.Front, c.Pair.Back)},
			{ColPNG, render.Column(c.Pair.Front, c.Pair.Back)},
		}
		for _, im := range images {
			buf.Reset()
			if err := png.Encode(buf, im.img); err != nil {
				return fmt.Errorf("encode %s: %w", dir+im.name, err)
			}
			if err := addZipFile(zw, dir+im.name, buf.Bytes()); err != nil {
				return fmt.Errorf("zip add %s: %w", dir+im.name, err)
			}
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

// FolderName is the bundle folder of the i-th exported card (0-based),
// numbered from 001 and ending in a slash.
func FolderName(i int, name string) string {
	return fmt.Sprintf("%03d-%s/", i+1, domain.SafeFileName(name, domain.UnnamedCard))
}

func addZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
