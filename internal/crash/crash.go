/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns panics into logged, reported failures. Recover is for
// the top of main; Guard wraps single editing actions so a fault in one
// stroke does not end the session.
package crash

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "vecterrain/internal/log"
	"vecterrain/internal/storage"
	"vecterrain/internal/version"
)

// ErrPanic wraps a panic recovered by Guard.
var ErrPanic = errors.New("recovered panic")

// exitFn is swapped out by tests.
var exitFn = os.Exit

// Recover captures a panic, logs it with its stack, writes a crash report
// and an autosave of the open document (if any) and exits with code 2.
//
// Usage: defer crash.Recover(h)
func Recover(h *storage.Handle) {
	if r := recover(); r != nil {
		Report(h, r)
	}
}

// Report handles a value already taken from recover. Callers that need the
// handle resolved at panic time defer a closure:
//
//	defer func() {
//		if r := recover(); r != nil {
//			crash.Report(h, r)
//		}
//	}()
func Report(h *storage.Handle, r any) {
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	reportPath, err := writeReport(h, r, stack)
	if err != nil {
		l.Error("write crash report failed", slog.Any("err", err))
	}
	if h != nil {
		if path, err := storage.AutosaveCrashSnapshot(h); err != nil {
			l.Error("autosave crash snapshot failed", slog.Any("err", err))
		} else {
			l.Info("autosave crash snapshot written", slog.String("path", path))
		}
	}
	_, _ = fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath)
	_, _ = fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	exitFn(2)
}

// Guard runs fn and converts a panic into an error wrapping ErrPanic. Both
// panics and ordinary errors are logged under op; the caller treats either
// as a no-op action.
func Guard(op string, fn func() error) (err error) {
	l := applog.WithOperation(applog.WithComponent("crash"), op)
	defer func() {
		if r := recover(); r != nil {
			l.Error("action panicked", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("%s: %w: %v", op, ErrPanic, r)
		}
	}()
	if err = fn(); err != nil {
		l.Warn("action failed", slog.Any("err", err))
	}
	return err
}

func writeReport(h *storage.Handle, panicVal any, stack []byte) (string, error) {
	dir := os.TempDir()
	if h != nil && h.Root != "" {
		dir = filepath.Join(h.Root, storage.BackupsDirName)
		_ = os.MkdirAll(dir, 0o755)
	}
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", time.Now().Format("20060102-150405")))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "vecterrain crash report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if h != nil {
		_, _ = fmt.Fprintf(&buf, "Root: %s\n", h.Root)
		_, _ = fmt.Fprintf(&buf, "Document: %s\n", h.DocPath)
		for _, name := range h.Doc.LayerNames() {
			mp := h.Doc.Layers[name]
			_, _ = fmt.Fprintf(&buf, "Layer %s: %d polygons, %d vertices\n", name, len(mp), mp.VertexCount())
		}
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return path, err
	}
	return path, nil
}
