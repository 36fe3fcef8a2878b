/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package document

import (
	"strings"
)

// Match is a search hit. Card is -1 when the group name matched.
type Match struct {
	Group int
	Card  int
	Name  string
}

// Search finds groups and cards whose name contains query, ignoring case.
// Card names are the effective names, so a card without its own name matches
// on its group default. An empty query matches nothing.
func (s *Store) Search(query string) []Match {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Match
	for gi, e := range s.groups {
		if strings.Contains(strings.ToLower(e.group.Name), q) {
			out = append(out, Match{Group: gi, Card: -1, Name: e.group.Name})
		}
		for ci, c := range e.group.Cards() {
			if name := c.Name(); strings.Contains(strings.ToLower(name), q) {
				out = append(out, Match{Group: gi, Card: ci, Name: name})
			}
		}
	}
	return out
}
