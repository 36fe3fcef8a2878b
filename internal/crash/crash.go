/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a crash report plus an emergency copy of
// the open workspace.
package crash

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	"spellcards/internal/document"
	applog "spellcards/internal/log"
	"spellcards/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// saveTimeout bounds the regular save attempted during a crash.
const saveTimeout = 5 * time.Second

// Target describes what to preserve when the process panics.
type Target struct {
	// Dir receives the report and snapshot; empty means os.TempDir().
	Dir string
	// Store is written to a crash snapshot file when set.
	Store *document.Store
	// Save is the regular persistence path, tried after the snapshot.
	Save func(ctx context.Context) error
	// Workspace names the persisted key in the report.
	Workspace string
}

// Recover captures a panic, logs an error with stacktrace,
// writes an error report file, and attempts a crash-safe autosave
// of the workspace (if provided).
//
// Usage: defer crash.Recover(t)
func Recover(t *Target) {
	if r := recover(); r != nil {
		l := applog.WithComponent("crash")
		stack := debug.Stack()
		l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

		reportPath, _ := writeReport(t, r, stack)
		if t != nil && t.Store != nil {
			if path, err := AutosaveSnapshot(t.Store, t.dir()); err != nil {
				l.Error("autosave crash snapshot failed", slog.Any("err", err))
			} else {
				l.Info("autosave crash snapshot written", slog.String("path", path))
			}
		}
		if t != nil && t.Save != nil {
			ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
			if err := t.Save(ctx); err != nil {
				l.Error("save on crash failed", slog.Any("err", err))
			}
			cancel()
		}

		if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
			l.Error("failed to write crash message to stderr", slog.Any("err", err))
		}
		if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
			l.Error("failed to write version info to stderr", slog.Any("err", err))
		}
		// Exit with a non-zero code to indicate failure in CLI context.
		exitFn(2)
	}
}

func (t *Target) dir() string {
	if t == nil || t.Dir == "" {
		return os.TempDir()
	}
	return t.Dir
}

// AutosaveSnapshot writes the serialized store to dir as
// crash-<timestamp>.json and returns the path.
func AutosaveSnapshot(s *document.Store, dir string) (string, error) {
	data, err := s.Serialize()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure crash dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.json", time.Now().Format("20060102-150405.000")))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write crash snapshot: %w", err)
	}
	return path, nil
}

func writeReport(t *Target, panicVal any, stack []byte) (string, error) {
	dir := t.dir()
	_ = os.MkdirAll(dir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	fname := fmt.Sprintf("crash-%s.log", stamp)
	path := filepath.Join(dir, fname)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			applog.WithComponent("crash").Error("failed to close crash report file", slog.Any("err", err), slog.String("path", path))
		}
	}()

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "Spell Cards Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if t != nil && t.Workspace != "" {
		_, _ = fmt.Fprintf(&buf, "Workspace: %s\n", t.Workspace)
	}
	if t != nil && t.Store != nil {
		_, _ = fmt.Fprintf(&buf, "Revision: %d\nGroups: %d\n", t.Store.Revision(), t.Store.Len())
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	if _, err := f.Write(buf.Bytes()); err != nil {
		return path, err
	}
	_ = f.Sync()
	return path, nil
}
