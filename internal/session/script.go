/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package session

import (
	"bufio"
	"fmt"
	"strings"
)

// Line is one command of a script: its arguments after quote removal and
// the 1-based line it started on.
type Line struct {
	No   int
	Args []string
}

// ScriptError reports a malformed script line with position context.
type ScriptError struct {
	Line    int
	Column  int
	Message string
}

func (e ScriptError) Error() string {
	return fmt.Sprintf("line %d:%d: %s", e.Line, e.Column, e.Message)
}

// ParseScript splits a command script into lines.
// Supported syntax:
//   - One command per line, arguments separated by blanks.
//   - Single or double quotes group words; a backslash escapes the next
//     character outside single quotes.
//   - Lines indented by 2+ spaces continue the previous command.
//   - Lines starting with "#" or ";" are comments. Blank lines end a
//     continuation.
func ParseScript(input string) ([]Line, []ScriptError) {
	var lines []Line
	var errs []ScriptError

	scanner := bufio.NewScanner(strings.NewReader(input))
	lineNo := 0
	var last *Line

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		trim := strings.TrimSpace(line)

		if trim == "" {
			last = nil
			continue
		}
		if strings.HasPrefix(trim, "#") || strings.HasPrefix(trim, ";") {
			continue
		}

		args, col, err := Split(line)
		if err != nil {
			errs = append(errs, ScriptError{Line: lineNo, Column: col, Message: err.Error()})
			last = nil
			continue
		}

		if strings.HasPrefix(line, "  ") && last != nil {
			last.Args = append(last.Args, args...)
			continue
		}
		lines = append(lines, Line{No: lineNo, Args: args})
		last = &lines[len(lines)-1]
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, ScriptError{Line: lineNo, Column: 1, Message: err.Error()})
	}
	return lines, errs
}

// Split tokenizes one command line. On error it also returns the 1-based
// column of the offending quote.
func Split(line string) ([]string, int, error) {
	var (
		args    []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		quoteAt int
		escaped bool
	)
	for i, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case quote == '\'':
			if r == '\'' {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\\':
			escaped, inWord = true, true
		case quote == '"':
			if r == '"' {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote, quoteAt, inWord = r, i+1, true
		case r == ' ' || r == '\t':
			if inWord {
				args = append(args, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	if quote != 0 {
		return nil, quoteAt, fmt.Errorf("unterminated %c quote", quote)
	}
	if escaped {
		cur.WriteRune('\\')
	}
	if inWord {
		args = append(args, cur.String())
	}
	return args, 0, nil
}
