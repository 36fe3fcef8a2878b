/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"net/url"
	"strconv"
	"strings"

	// decoders for embedded card images
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"spellcards/internal/textlayout"
)

// canvas maps card units onto an RGBA image.
type canvas struct {
	img    *image.RGBA
	sx, sy float64
}

// Raster draws f into a new w x h image. Text uses p, or the basic bitmap
// face when p is nil. Images that are not data URLs are left out.
func Raster(f Face, w, h int, p textlayout.Provider) *image.RGBA {
	if p == nil {
		p = textlayout.BasicProvider{}
	}
	c := &canvas{img: image.NewRGBA(image.Rect(0, 0, w, h)), sx: float64(w) / Width, sy: float64(h) / Height}
	for _, it := range f.Items {
		switch v := it.(type) {
		case Rect:
			c.rect(v)
		case Line:
			col, ok := parseColor(v.Stroke)
			if ok && v.Width > 0 {
				c.segment(Point{v.X1, v.Y1}, Point{v.X2, v.Y2}, v.Width, col)
			}
		case Polygon:
			c.polygon(v)
		case Text:
			c.text(v, p)
		case Image:
			if src, err := decodeDataURL(v.Href); err == nil {
				dr := c.pixelRect(v.X, v.Y, v.W, v.H)
				xdraw.CatmullRom.Scale(c.img, dr, src, src.Bounds(), draw.Over, nil)
			}
		}
	}
	return c.img
}

func (c *canvas) pixelRect(x, y, w, h float64) image.Rectangle {
	return image.Rect(
		int(math.Round(x*c.sx)), int(math.Round(y*c.sy)),
		int(math.Round((x+w)*c.sx)), int(math.Round((y+h)*c.sy)),
	)
}

// fill paints every pixel of the card-unit box whose center satisfies inside.
func (c *canvas) fill(x0, y0, x1, y1 float64, col color.RGBA, inside func(x, y float64) bool) {
	b := c.img.Bounds().Intersect(image.Rect(
		int(math.Floor(x0*c.sx)), int(math.Floor(y0*c.sy)),
		int(math.Ceil(x1*c.sx)), int(math.Ceil(y1*c.sy)),
	))
	for py := b.Min.Y; py < b.Max.Y; py++ {
		y := (float64(py) + 0.5) / c.sy
		for px := b.Min.X; px < b.Max.X; px++ {
			if inside((float64(px)+0.5)/c.sx, y) {
				blend(c.img, px, py, col)
			}
		}
	}
}

func (c *canvas) rect(r Rect) {
	if col, ok := parseColor(r.Fill); ok {
		c.fill(r.X, r.Y, r.X+r.W, r.Y+r.H, col, func(x, y float64) bool {
			return inRoundRect(x, y, r.X, r.Y, r.W, r.H, r.R)
		})
	}
	if col, ok := parseColor(r.Stroke); ok && r.StrokeWidth > 0 {
		t := r.StrokeWidth / 2
		c.fill(r.X-t, r.Y-t, r.X+r.W+t, r.Y+r.H+t, col, func(x, y float64) bool {
			return inRoundRect(x, y, r.X-t, r.Y-t, r.W+2*t, r.H+2*t, r.R+t) &&
				!inRoundRect(x, y, r.X+t, r.Y+t, r.W-2*t, r.H-2*t, math.Max(r.R-t, 0))
		})
	}
}

func (c *canvas) segment(a, b Point, width float64, col color.RGBA) {
	t := width / 2
	c.fill(math.Min(a.X, b.X)-t, math.Min(a.Y, b.Y)-t, math.Max(a.X, b.X)+t, math.Max(a.Y, b.Y)+t, col, func(x, y float64) bool {
		return distToSegment(Point{x, y}, a, b) <= t
	})
}

func (c *canvas) polygon(p Polygon) {
	if len(p.Points) == 0 {
		return
	}
	minX, minY, maxX, maxY := p.Points[0].X, p.Points[0].Y, p.Points[0].X, p.Points[0].Y
	for _, pt := range p.Points[1:] {
		minX, minY = math.Min(minX, pt.X), math.Min(minY, pt.Y)
		maxX, maxY = math.Max(maxX, pt.X), math.Max(maxY, pt.Y)
	}
	if col, ok := parseColor(p.Fill); ok {
		c.fill(minX, minY, maxX, maxY, col, func(x, y float64) bool { return inPolygon(Point{x, y}, p.Points) })
	}
	if col, ok := parseColor(p.Stroke); ok && p.StrokeWidth > 0 {
		for i := 1; i < len(p.Points); i++ {
			c.segment(p.Points[i-1], p.Points[i], p.StrokeWidth, col)
		}
		if p.Closed && len(p.Points) > 2 {
			c.segment(p.Points[len(p.Points)-1], p.Points[0], p.StrokeWidth, col)
		}
	}
}

// text renders each line at the face's native size and scales it into place.
func (c *canvas) text(t Text, p textlayout.Provider) {
	col, ok := parseColor(t.Fill)
	if !ok {
		col = color.RGBA{A: 255}
	}
	sizePx := t.Style.Size * c.sy
	if sizePx <= 0 {
		return
	}
	face, scale := p.Face(sizePx)
	m := face.Metrics()
	ascent, descent := m.Ascent.Ceil(), m.Descent.Ceil()
	for i, line := range t.Lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		nativeW := font.MeasureString(face, line).Ceil()
		nativeH := ascent + descent
		if nativeW <= 0 || nativeH <= 0 {
			continue
		}
		tmp := image.NewRGBA(image.Rect(0, 0, nativeW, nativeH))
		d := font.Drawer{Dst: tmp, Src: image.NewUniform(col), Face: face, Dot: fixed.P(0, ascent)}
		d.DrawString(line)

		w := float64(nativeW) * scale
		h := float64(nativeH) * scale
		baseline := (t.Y + float64(i)*t.Style.Size) * c.sy
		top := baseline - float64(ascent)*scale
		if t.Centered {
			top = baseline - h/2
		}
		left := t.X * c.sx
		switch t.Anchor {
		case AnchorMiddle:
			left -= w / 2
		case AnchorEnd:
			left -= w
		}
		dr := image.Rect(int(math.Round(left)), int(math.Round(top)), int(math.Round(left+w)), int(math.Round(top+h)))
		xdraw.ApproxBiLinear.Scale(c.img, dr, tmp, tmp.Bounds(), draw.Over, nil)
	}
}

func inRoundRect(x, y, rx, ry, w, h, r float64) bool {
	if w <= 0 || h <= 0 || x < rx || y < ry || x > rx+w || y > ry+h {
		return false
	}
	r = math.Min(r, math.Min(w, h)/2)
	if r <= 0 {
		return true
	}
	cx := math.Max(rx+r, math.Min(x, rx+w-r))
	cy := math.Max(ry+r, math.Min(y, ry+h-r))
	return math.Hypot(x-cx, y-cy) <= r
}

func distToSegment(p, a, b Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	t := math.Max(0, math.Min(1, ((p.X-a.X)*dx+(p.Y-a.Y)*dy)/l2))
	return math.Hypot(p.X-(a.X+t*dx), p.Y-(a.Y+t*dy))
}

// inPolygon is the even-odd rule.
func inPolygon(p Point, pts []Point) bool {
	in := false
	for i, j := 0, len(pts)-1; i < len(pts); j, i = i, i+1 {
		a, b := pts[i], pts[j]
		if (a.Y > p.Y) != (b.Y > p.Y) && p.X < (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y)+a.X {
			in = !in
		}
	}
	return in
}

func blend(img *image.RGBA, x, y int, c color.RGBA) {
	if c.A == 255 {
		img.SetRGBA(x, y, c)
		return
	}
	d := img.RGBAAt(x, y)
	a := uint32(c.A)
	mix := func(s, d uint8) uint8 { return uint8((uint32(s)*a + uint32(d)*(255-a)) / 255) }
	img.SetRGBA(x, y, color.RGBA{mix(c.R, d.R), mix(c.G, d.G), mix(c.B, d.B), uint8(a + uint32(d.A)*(255-a)/255)})
}

var namedColors = map[string]color.RGBA{
	"white": {255, 255, 255, 255},
	"black": {0, 0, 0, 255},
}

// parseColor understands #rgb, #rrggbb, #rrggbbaa and a few names. The
// empty string, "none" and "transparent" report false.
func parseColor(s string) (color.RGBA, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "none", "transparent":
		return color.RGBA{}, false
	}
	if c, ok := namedColors[s]; ok {
		return c, true
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.RGBA{A: 255}, true
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{A: 255}, true
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, true
}

// decodeDataURL decodes a data: URL holding an image.
func decodeDataURL(href string) (image.Image, error) {
	rest, ok := strings.CutPrefix(href, "data:")
	if !ok {
		return nil, fmt.Errorf("not a data url")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("malformed data url")
	}
	var data []byte
	if strings.HasSuffix(meta, ";base64") {
		b, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("decode data url: %w", err)
		}
		data = b
	} else {
		s, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("decode data url: %w", err)
		}
		data = []byte(s)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Row places front and back side by side.
func Row(front, back image.Image) *image.RGBA {
	fb, bb := front.Bounds(), back.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, fb.Dx()+bb.Dx(), max(fb.Dy(), bb.Dy())))
	draw.Draw(out, image.Rect(0, 0, fb.Dx(), fb.Dy()), front, fb.Min, draw.Src)
	draw.Draw(out, image.Rect(fb.Dx(), 0, fb.Dx()+bb.Dx(), bb.Dy()), back, bb.Min, draw.Src)
	return out
}

// Column places front above back.
func Column(front, back image.Image) *image.RGBA {
	fb, bb := front.Bounds(), back.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, max(fb.Dx(), bb.Dx()), fb.Dy()+bb.Dy()))
	draw.Draw(out, image.Rect(0, 0, fb.Dx(), fb.Dy()), front, fb.Min, draw.Src)
	draw.Draw(out, image.Rect(0, fb.Dy(), bb.Dx(), fb.Dy()+bb.Dy()), back, bb.Min, draw.Src)
	return out
}
