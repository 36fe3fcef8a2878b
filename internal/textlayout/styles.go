/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"sort"
)

// TextStyle is a reusable text preset for card faces. Size and Tracking are
// in card units.
type TextStyle struct {
	Name     string
	Size     float64
	Tracking float64
	// Expanded selects the wide display face when a font is configured.
	Expanded bool
}

var builtinStyles = map[string]TextStyle{
	"Title":   {Name: "Title", Size: 4, Expanded: true},
	"Label":   {Name: "Label", Size: 2, Expanded: true},
	"Body":    {Name: "Body", Size: 2},
	"Banner":  {Name: "Banner", Size: 2, Tracking: 0.1, Expanded: true},
	"Glyph":   {Name: "Glyph", Size: 10},
	"Caption": {Name: "Caption", Size: 2},
}

// BuiltinStyle returns a copy of the named style.
func BuiltinStyle(name string) (TextStyle, bool) {
	s, ok := builtinStyles[name]
	return s, ok
}

// MustStyle returns the named builtin style and panics on an unknown name.
func MustStyle(name string) TextStyle {
	s, ok := builtinStyles[name]
	if !ok {
		panic("textlayout: unknown style " + name)
	}
	return s
}

// BuiltinStyleNames lists the builtin styles in sorted order.
func BuiltinStyleNames() []string {
	out := make([]string, 0, len(builtinStyles))
	for k := range builtinStyles {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
