/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package document

import (
	"encoding/json"
	"fmt"

	"spellcards/internal/domain"
)

// Document is the persisted form of a workspace.
type Document struct {
	Groups    []*domain.Group  `json:"groups"`
	Selection domain.Selection `json:"selection"`
}

// Snapshot returns a deep copy of the current content.
func (s *Store) Snapshot() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Document {
	doc := Document{Groups: make([]*domain.Group, len(s.groups)), Selection: s.sel}
	for i, e := range s.groups {
		doc.Groups[i] = e.group.Clone()
	}
	return doc
}

// Serialize encodes {groups, selection}.
func (s *Store) Serialize() ([]byte, error) {
	doc := s.Snapshot()
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("serialize document: %w", err)
	}
	return b, nil
}

// Deserialize replaces the whole content with data. The selection is
// restored by position and cleared when it does not fit. On a decode error
// the store is left untouched.
func (s *Store) Deserialize(data []byte) error {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("deserialize document: %w", err)
	}
	s.replace(OpLoad, doc)
	return nil
}

// Restore replaces the content with doc, as Deserialize does.
func (s *Store) Restore(doc Document) {
	s.replace(OpRestore, doc)
}

func (s *Store) replace(op Op, doc Document) {
	_ = s.commit(op, func() error {
		groups := make([]*groupEntry, 0, len(doc.Groups))
		for _, g := range doc.Groups {
			if g == nil {
				continue
			}
			groups = append(groups, newGroupEntry(g.Clone()))
		}
		s.groups = groups
		s.setSelectionLocked(doc.Selection)
		return nil
	})
}
