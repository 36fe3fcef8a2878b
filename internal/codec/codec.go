/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package codec reads and writes the portable card file format: a tagged
// envelope holding either the whole workspace, one group, or one card.
package codec

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"spellcards/internal/domain"
)

//go:embed schema.json
var schemaJSON []byte

// Kind is the envelope tag. It reuses the selection type names.
type Kind = domain.SelectionType

// File is a decoded export envelope. Exactly one of Groups, Group and Card is
// meaningful, according to Type.
type File struct {
	Type   Kind
	Groups []*domain.Group
	Group  *domain.Group
	Card   domain.Card
}

// ParseError reports input that is not a valid export file.
type ParseError struct {
	Source  string
	Reasons []string
	Err     error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parse")
	if e.Source != "" {
		b.WriteString(" ")
		b.WriteString(e.Source)
	}
	switch {
	case e.Err != nil:
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	case len(e.Reasons) > 0:
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Reasons, "; "))
	}
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

type envelope struct {
	Type domain.SelectionType `json:"type"`
	Data json.RawMessage      `json:"data"`
}

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
})

// Marshal encodes f as {"type", "data"}.
func Marshal(f File) ([]byte, error) {
	var data any
	switch f.Type {
	case domain.SelectionNone:
		groups := f.Groups
		if groups == nil {
			groups = []*domain.Group{}
		}
		data = groups
	case domain.SelectionGroup:
		if f.Group == nil {
			return nil, errors.New("marshal group file: no group")
		}
		data = f.Group
	case domain.SelectionCard:
		data = f.Card
	default:
		return nil, fmt.Errorf("marshal file: unknown type %q", f.Type)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal file data: %w", err)
	}
	return json.Marshal(envelope{Type: f.Type, Data: raw})
}

// Parse decodes and validates an export file. Every failure is a
// *ParseError.
func Parse(data []byte) (File, error) {
	return parse("", data)
}

func parse(source string, data []byte) (File, error) {
	schema, err := compiledSchema()
	if err != nil {
		return File{}, fmt.Errorf("compile file schema: %w", err)
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return File{}, &ParseError{Source: source, Err: err}
	}
	if !res.Valid() {
		pe := &ParseError{Source: source}
		for _, re := range res.Errors() {
			pe.Reasons = append(pe.Reasons, re.String())
		}
		return File{}, pe
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return File{}, &ParseError{Source: source, Err: err}
	}
	f := File{Type: env.Type}
	switch env.Type {
	case domain.SelectionNone:
		err = json.Unmarshal(env.Data, &f.Groups)
	case domain.SelectionGroup:
		f.Group = &domain.Group{}
		err = json.Unmarshal(env.Data, f.Group)
	case domain.SelectionCard:
		err = json.Unmarshal(env.Data, &f.Card)
	}
	if err != nil {
		return File{}, &ParseError{Source: source, Err: err}
	}
	return f, nil
}

// FileName is the download name for f: workspace.json for everything,
// <group>.group.json and <card>.card.json otherwise.
func FileName(f File) string {
	switch f.Type {
	case domain.SelectionGroup:
		name := ""
		if f.Group != nil {
			name = f.Group.Name
		}
		return domain.SafeFileName(name, "group") + ".group.json"
	case domain.SelectionCard:
		return domain.SafeFileName(f.Card.Name(), "card") + ".card.json"
	default:
		return "workspace.json"
	}
}
