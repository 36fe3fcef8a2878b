/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"spellcards/internal/domain"
	"spellcards/internal/layout"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
)

// Output formats understood by BatchExport.
const (
	FormatZip      = "zip"
	FormatDouble   = "double"
	FormatFoldable = "foldable"
)

// BatchOptions controls a batch export.
//
// Files go to <OutDir>/<preset>/: cards.zip for the bundle and
// cards-<mode>.pdf for print layouts. A relative OutDir is used as given.
type BatchOptions struct {
	Preset  PresetName
	Formats []string // empty means preset defaults
	Target  domain.Selection
	OutDir  string
	// Guides overrides the preset's cut guides when set.
	Guides *bool
}

// BatchExport collects the target once and writes every requested format.
// It returns the paths written.
func (p *Pipeline) BatchExport(ctx context.Context, opt BatchOptions) ([]string, error) {
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	norm := make([]string, len(formats))
	for i, f := range formats {
		norm[i] = strings.ToLower(strings.TrimSpace(f))
		switch norm[i] {
		case FormatZip, FormatDouble, FormatFoldable:
		default:
			return nil, fmt.Errorf("unknown format: %s", f)
		}
	}

	baseOut := opt.OutDir
	if baseOut == "" {
		baseOut = "exports"
	}
	preset := string(opt.Preset)
	if preset == "" {
		preset = string(PresetPrint)
	}
	baseOut = filepath.Join(baseOut, preset)
	if err := os.MkdirAll(baseOut, 0o755); err != nil {
		return nil, fmt.Errorf("ensure out dir: %w", err)
	}

	cards, err := p.Collect(ctx, opt.Target)
	if err != nil {
		return nil, err
	}
	pdfOpt := p.PDF
	pdfOpt.Guides = presetIncludeGuides(opt.Preset)
	if opt.Guides != nil {
		pdfOpt.Guides = *opt.Guides
	}

	var written []string
	for _, f := range norm {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		var out string
		var werr error
		switch f {
		case FormatZip:
			out = filepath.Join(baseOut, "cards.zip")
			werr = writeFile(out, func(w *os.File) error { return WriteBundle(cards, w) })
		case FormatDouble:
			out = filepath.Join(baseOut, "cards-double.pdf")
			werr = writeFile(out, func(w *os.File) error { return WritePDF(layout.ModeDoubleSided, cards, w, pdfOpt) })
		case FormatFoldable:
			out = filepath.Join(baseOut, "cards-foldable.pdf")
			werr = writeFile(out, func(w *os.File) error { return WritePDF(layout.ModeFoldable, cards, w, pdfOpt) })
		}
		if werr != nil {
			return written, fmt.Errorf("%s: %w", f, werr)
		}
		written = append(written, out)
	}
	return written, nil
}

// writeFile creates path, runs fn on it and removes the file again when fn
// fails.
func writeFile(path string, fn func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetWeb:
		return []string{FormatZip}
	case PresetPrint:
		return []string{FormatDouble, FormatFoldable}
	default:
		return []string{FormatDouble}
	}
}

func presetIncludeGuides(p PresetName) bool {
	switch p {
	case PresetWeb:
		return false
	default:
		return true
	}
}
