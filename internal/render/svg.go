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
	"fmt"
	"strings"
)

const (
	fontRegular  = "Modesto-Regular, Georgia, serif"
	fontExpanded = "Modesto-Expd, Georgia, serif"
)

// SVG writes f as a standalone SVG document with a 0 0 50 70 viewBox.
func SVG(f Face) ([]byte, error) {
	var buf bytes.Buffer
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}

	wf("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" version=\"1.1\" width=\"%g\" height=\"%g\" viewBox=\"0 0 %g %g\" font-family=\"%s\">\n", Width, Height, Width, Height, fontRegular)
	for _, it := range f.Items {
		switch v := it.(type) {
		case Rect:
			wf("  <rect x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\"", v.X, v.Y, v.W, v.H)
			if v.R > 0 {
				wf(" rx=\"%g\" ry=\"%g\"", v.R, v.R)
			}
			wf(" fill=\"%s\"", fillOrNone(v.Fill))
			if v.Stroke != "" {
				wf(" stroke=\"%s\" stroke-width=\"%g\"", escAttr(v.Stroke), v.StrokeWidth)
			}
			wf("/>\n")
		case Line:
			wf("  <line x1=\"%g\" y1=\"%g\" x2=\"%g\" y2=\"%g\" stroke=\"%s\" stroke-width=\"%g\"/>\n", v.X1, v.Y1, v.X2, v.Y2, escAttr(v.Stroke), v.Width)
		case Polygon:
			tag := "polyline"
			if v.Closed {
				tag = "polygon"
			}
			pts := make([]string, len(v.Points))
			for i, p := range v.Points {
				pts[i] = fmt.Sprintf("%g,%g", p.X, p.Y)
			}
			wf("  <%s points=\"%s\" fill=\"%s\"", tag, strings.Join(pts, " "), fillOrNone(v.Fill))
			if v.Stroke != "" {
				wf(" stroke=\"%s\" stroke-width=\"%g\"", escAttr(v.Stroke), v.StrokeWidth)
			}
			wf("/>\n")
		case Text:
			if len(v.Lines) == 0 || (len(v.Lines) == 1 && v.Lines[0] == "") {
				continue
			}
			family := fontRegular
			if v.Style.Expanded {
				family = fontExpanded
			}
			wf("  <text x=\"%g\" y=\"%g\" font-size=\"%g\" font-family=\"%s\" text-anchor=\"%s\"", v.X, v.Y, v.Style.Size, family, anchorName(v.Anchor))
			if v.Style.Tracking != 0 {
				wf(" letter-spacing=\"%g\"", v.Style.Tracking)
			}
			if v.Centered {
				wf(" dominant-baseline=\"middle\"")
			}
			if v.Fill != "" {
				wf(" fill=\"%s\"", escAttr(v.Fill))
			}
			wf(">")
			for i, line := range v.Lines {
				if line == "" {
					line = " "
				}
				if i == 0 {
					wf("<tspan>%s</tspan>", escText(line))
					continue
				}
				wf("<tspan x=\"%g\" dy=\"%g\">%s</tspan>", v.X, v.Style.Size, escText(line))
			}
			wf("</text>\n")
		case Image:
			wf("  <image href=\"%s\" x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\"/>\n", escAttr(v.Href), v.X, v.Y, v.W, v.H)
		}
	}
	wf("</svg>\n")
	if werr != nil {
		return nil, fmt.Errorf("build svg: %w", werr)
	}
	return buf.Bytes(), nil
}

func fillOrNone(c string) string {
	if c == "" {
		return "none"
	}
	return escAttr(c)
}

func anchorName(a Anchor) string {
	switch a {
	case AnchorStart:
		return "start"
	case AnchorEnd:
		return "end"
	default:
		return "middle"
	}
}

func escAttr(s string) string {
	r := strings.NewReplacer(`&`, "&amp;", `"`, "&quot;", "<", "&lt;", "\n", " ", "\r", "")
	return r.Replace(s)
}

func escText(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
