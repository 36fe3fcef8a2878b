/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"

	"github.com/jung-kurt/gofpdf"
	xdraw "golang.org/x/image/draw"

	"spellcards/internal/domain"
	applog "spellcards/internal/log"
	"spellcards/internal/layout"
)

// DefaultPrintWidth is the pixel width faces are embedded at in PDFs.
// 600 px across a 2.5 in card is 240 dpi.
const DefaultPrintWidth = 600

// PDFOptions controls PDF output. Units are points; the page is US Letter
// with its origin at the top left.
type PDFOptions struct {
	// PrintWidth is the embedded face width in pixels; zero means
	// DefaultPrintWidth. The height keeps the face aspect ratio.
	PrintWidth int
	// Guides draws a hairline cut rectangle around every face.
	Guides bool
	Title  string
}

// PrintDoubleSided writes target as a duplex PDF: fronts on even pages,
// mirrored backs on odd pages.
func (p *Pipeline) PrintDoubleSided(ctx context.Context, target domain.Selection, w io.Writer) error {
	return p.Print(ctx, layout.ModeDoubleSided, target, w)
}

// PrintFoldable writes target as a PDF with front and back of each card
// side by side.
func (p *Pipeline) PrintFoldable(ctx context.Context, target domain.Selection, w io.Writer) error {
	return p.Print(ctx, layout.ModeFoldable, target, w)
}

// Print collects target and writes it in the given arrangement.
func (p *Pipeline) Print(ctx context.Context, mode layout.Mode, target domain.Selection, w io.Writer) error {
	cards, err := p.Collect(ctx, target)
	if err != nil {
		return err
	}
	return WritePDF(mode, cards, w, p.PDF)
}

// WritePDF lays out captured cards with mode and writes the PDF to w. Each
// placement gets its face as an embedded PNG, fitted into the placement
// box and centered horizontally.
func WritePDF(mode layout.Mode, cards []Captured, w io.Writer, opt PDFOptions) error {
	if len(cards) == 0 {
		return ErrEmptyTarget
	}
	width := opt.PrintWidth
	if width <= 0 {
		width = DefaultPrintWidth
	}
	pairs := make([]layout.Pair[[]byte], len(cards))
	for i, c := range cards {
		front, err := encodeScaled(c.Pair.Front, width)
		if err != nil {
			return fmt.Errorf("card %d front: %w", i, err)
		}
		back, err := encodeScaled(c.Pair.Back, width)
		if err != nil {
			return fmt.Errorf("card %d back: %w", i, err)
		}
		pairs[i] = layout.Pair[[]byte]{Front: front, Back: back}
	}
	plan, err := layout.Arrange(mode, pairs)
	if err != nil {
		return err
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: layout.PageWidth, Ht: layout.PageHeight},
	})
	title := opt.Title
	if title == "" {
		title = "Spell Cards"
	}
	pdf.SetTitle(title, true)
	pdf.SetCreator("spellcards", false)
	pdf.SetAutoPageBreak(false, 0)

	for _, pl := range plan.Placements {
		// Page is authoritative; pages without placements stay blank.
		for pdf.PageCount() <= pl.Page {
			pdf.AddPage()
		}
		if pdf.PageNo() != pl.Page+1 {
			pdf.SetPage(pl.Page + 1)
		}
		name := fmt.Sprintf("card-%d-%s", pl.Card, pl.Face)
		opts := gofpdf.ImageOptions{ImageType: "PNG"}
		info := pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(pl.Content))
		if info == nil || pdf.Err() {
			return fmt.Errorf("embed %s: %w", name, pdf.Error())
		}
		x, y, fw, fh := fit(pl, info.Width()/info.Height())
		pdf.ImageOptions(name, x, y, fw, fh, false, opts, 0, "")
		if opt.Guides {
			pdf.SetDrawColor(160, 160, 160)
			pdf.SetLineWidth(0.25)
			pdf.Rect(x, y, fw, fh, "D")
		}
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	applog.WithOperation(applog.WithComponent("export"), "pdf").Debug("pdf written",
		slog.String("mode", string(mode)), slog.Int("cards", len(cards)), slog.Int("pages", plan.Pages))
	return nil
}

// fit returns the largest box with the given aspect ratio (w/h) inside the
// placement, top aligned and centered horizontally.
func fit(pl layout.Placement[[]byte], aspect float64) (x, y, w, h float64) {
	w, h = pl.Width, pl.Height
	if aspect > 0 {
		if pl.Height*aspect <= pl.Width {
			w = pl.Height * aspect
		} else {
			h = pl.Width / aspect
		}
	}
	return pl.X + (pl.Width-w)/2, pl.Y, w, h
}

func encodeScaled(img image.Image, width int) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("no image")
	}
	b := img.Bounds()
	if b.Dx() > width {
		h := max(1, b.Dy()*width/b.Dx())
		dst := image.NewRGBA(image.Rect(0, 0, width, h))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
		img = dst
	}
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
