/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// OrdinalSuffix returns "st", "nd", "rd" or "th" for n, honoring 11..13.
func OrdinalSuffix(n int) string {
	if n < 0 {
		n = -n
	}
	switch n % 100 {
	case 11, 12, 13:
		return "th"
	}
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	}
	return "th"
}

var bulletRE = regexp.MustCompile(`(?m)^[*-] `)

// BulletLists turns line-leading "* " and "- " markers into bullets.
func BulletLists(text string) string {
	return bulletRE.ReplaceAllString(text, "• ")
}

// TypeLine is the subtitle under the card name: "evocation cantrip" at
// level 0, "3rd level evocation" otherwise, the bare type when the level is
// not a number.
func TypeLine(c Card) string {
	typ := c[FieldType]
	lvl, ok := c[FieldLevel]
	if !ok {
		return typ
	}
	n, err := strconv.Atoi(strings.TrimSpace(lvl))
	if err != nil {
		return typ
	}
	if n == 0 {
		return strings.TrimSpace(typ + " cantrip")
	}
	return strings.TrimSpace(strconv.Itoa(n) + OrdinalSuffix(n) + " level " + typ)
}

var concentrationRE = regexp.MustCompile(`(?i)^concentration,? `)

// SplitConcentration strips a leading "concentration" marker from a duration
// and reports whether one was present. The remainder is capitalized.
func SplitConcentration(duration string) (rest string, concentration bool) {
	loc := concentrationRE.FindStringIndex(duration)
	if loc == nil {
		return duration, false
	}
	return Capitalize(duration[loc[1]:]), true
}

// Capitalize upper-cases the first rune.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// LevelGlyph is the large mark on a card back: the level, or the first
// letter of the type when no level is set.
func LevelGlyph(c Card) string {
	if lvl, ok := c[FieldLevel]; ok {
		return lvl
	}
	r, size := utf8.DecodeRuneInString(c[FieldType])
	if r == utf8.RuneError {
		return ""
	}
	return c[FieldType][:size]
}

// SafeFileName keeps name usable as a single path element: reserved
// characters become '_', control characters are dropped and an empty or
// dot-only result yields fallback.
func SafeFileName(name, fallback string) string {
	name = strings.TrimSpace(name)
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, name)
	name = filepath.Base(name)
	if name == "" || name == "." || name == ".." {
		return fallback
	}
	return name
}
