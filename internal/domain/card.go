/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package domain defines the card workspace data model: cards, groups with
// default values, and the positional selection that points into them.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Field names a single card attribute. The string value is the JSON key.
type Field string

const (
	FieldName               Field = "name"
	FieldCastingTime        Field = "castingTime"
	FieldRange              Field = "range"
	FieldComponents         Field = "components"
	FieldDuration           Field = "duration"
	FieldPhysicalComponents Field = "physicalComponents"
	FieldClass              Field = "class"
	FieldLevel              Field = "level"
	FieldType               Field = "type"
	FieldDescription        Field = "description"
	FieldExtDescription     Field = "extDescription"
	FieldImage              Field = "image"
	FieldColor              Field = "color"
)

// Fields lists every card field in editor order.
var Fields = []Field{
	FieldName, FieldCastingTime, FieldRange, FieldComponents, FieldDuration,
	FieldPhysicalComponents, FieldClass, FieldLevel, FieldType, FieldDescription,
	FieldExtDescription, FieldImage, FieldColor,
}

// fieldAliases maps historical JSON keys onto current fields.
var fieldAliases = map[string]Field{
	"clazz": FieldClass,
}

// ParseField resolves a field by its JSON key or a historical alias.
func ParseField(s string) (Field, error) {
	key := strings.TrimSpace(s)
	for _, f := range Fields {
		if string(f) == key {
			return f, nil
		}
	}
	if f, ok := fieldAliases[key]; ok {
		return f, nil
	}
	return "", fmt.Errorf("unknown card field %q", s)
}

// Card is a flat record of optional fields. A missing key means the field is
// unset and falls through to the group defaults.
type Card map[Field]string

// Get returns the value of f and whether it is set.
func (c Card) Get(f Field) (string, bool) {
	v, ok := c[f]
	return v, ok
}

// Name returns the card name or "" when unset.
func (c Card) Name() string { return c[FieldName] }

// Clone returns an independent copy. A nil card clones to an empty card.
func (c Card) Clone() Card {
	out := make(Card, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// apply sets f to *value, or deletes f when value is nil.
func (c Card) apply(f Field, value *string) {
	if value == nil {
		delete(c, f)
		return
	}
	c[f] = *value
}

// Merge returns the effective card: every field set on card wins, every
// unset field falls back to defaults. Neither input is modified.
func Merge(defaults, card Card) Card {
	out := make(Card, len(defaults)+len(card))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range card {
		out[k] = v
	}
	return out
}

// Str is a small helper for building optional field values.
func Str(s string) *string { return &s }

func (c Card) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[Field]string(c))
}

// UnmarshalJSON accepts strings and numbers (canonicalized to decimal
// strings), maps the historical "clazz" key to class, treats null as unset,
// and ignores unknown keys.
func (c *Card) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(Card, len(raw))
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	// aliases first so that an explicit current key wins
	sort.Slice(keys, func(i, j int) bool {
		_, ai := fieldAliases[keys[i]]
		_, aj := fieldAliases[keys[j]]
		if ai != aj {
			return ai
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		f, err := ParseField(k)
		if err != nil {
			continue
		}
		v := bytes.TrimSpace(raw[k])
		if bytes.Equal(v, []byte("null")) {
			continue
		}
		s, err := scalarString(v)
		if err != nil {
			return fmt.Errorf("card field %s: %w", f, err)
		}
		out[f] = s
	}
	*c = out
	return nil
}

func scalarString(v []byte) (string, error) {
	if len(v) > 0 && v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return "", fmt.Errorf("expected string or number, got %s", v)
	}
	f, err := n.Float64()
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

// cardRules carries the soft validation constraints for a card.
type cardRules struct {
	Color string `validate:"omitempty,hexcolor"`
	Level string `validate:"omitempty,numeric"`
	Image string `validate:"omitempty,datauri|url"`
}

var validate = sync.OnceValue(func() *validator.Validate { return validator.New() })

// Validate reports values that will not render sensibly (a color that is
// not a hex color, a non-numeric level, an image that is neither a data URI
// nor a URL). Callers treat the result as a warning.
func (c Card) Validate() error {
	return validate().Struct(cardRules{
		Color: c[FieldColor],
		Level: c[FieldLevel],
		Image: c[FieldImage],
	})
}
