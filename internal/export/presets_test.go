/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"os"
	"path/filepath"
	"testing"

	"vecterrain/internal/storage"
)

func TestBatchExport_WebPreset(t *testing.T) {
	root := t.TempDir()
	h, err := storage.Init(root, sampleDocument())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	paths, err := BatchExport(h, BatchOptions{Preset: PresetWeb})
	if err != nil {
		t.Fatalf("batch export web: %v", err)
	}
	checks := []string{
		filepath.Join(root, "exports", "web", "terrain.png"),
		filepath.Join(root, "exports", "web", "terrain.svg"),
	}
	if len(paths) != len(checks) {
		t.Fatalf("paths = %v", paths)
	}
	for i, p := range checks {
		if paths[i] != p {
			t.Fatalf("path %d = %s, want %s", i, paths[i], p)
		}
		st, err := os.Stat(p)
		if err != nil {
			t.Fatalf("missing %s: %v", p, err)
		}
		if st.Size() <= 0 {
			t.Fatalf("empty file: %s", p)
		}
	}
}

func TestBatchExport_PrintPreset(t *testing.T) {
	root := t.TempDir()
	h, err := storage.Init(root, sampleDocument())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := BatchExport(h, BatchOptions{Preset: PresetPrint, BaseName: "cave"}); err != nil {
		t.Fatalf("batch export print: %v", err)
	}
	for _, p := range []string{
		filepath.Join(root, "exports", "print", "cave.pdf"),
		filepath.Join(root, "exports", "print", "cave.png"),
	} {
		st, err := os.Stat(p)
		if err != nil {
			t.Fatalf("missing %s: %v", p, err)
		}
		if st.Size() <= 0 {
			t.Fatalf("empty file: %s", p)
		}
	}
}

func TestBatchExport_UnknownFormat(t *testing.T) {
	h, err := storage.Init(t.TempDir(), sampleDocument())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := BatchExport(h, BatchOptions{Formats: []string{"cbz"}}); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
