/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vecterrain/internal/geom"
)

func square(x, y, s float64) geom.Ring {
	return geom.Ring{{X: x, Y: y}, {X: x + s, Y: y}, {X: x + s, Y: y + s}, {X: x, Y: y + s}}
}

func sampleDoc() Document {
	d := NewDocument("Test Terrain")
	d.Zoom = 1.5
	d.Layers["shovel"] = geom.MultiPolygon{{Outer: square(0, 0, 100), Holes: []geom.Ring{square(20, 20, 10).Reversed()}}}
	d.Layers["paint/grass/top"] = geom.MultiPolygon{{Outer: square(200, 0, 10)}, {Outer: square(300, 0, 12.5)}}
	d.Layers["paint/rock/background"] = nil
	d.Stamps = []geom.Polygon{{Outer: geom.Ring{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 5, Y: 10}}}}
	return d
}

func TestInitCreatesStructureAndDocument(t *testing.T) {
	root := t.TempDir()
	h, err := Init(root, sampleDoc())
	if err != nil {
		t.Fatalf("Init error: %v", err)
	}
	if h.DocPath != filepath.Join(root, DocumentFileName) {
		t.Fatalf("DocPath = %q", h.DocPath)
	}
	for _, d := range []string{BackupsDirName, ExportsDirName, StampsDirName} {
		if fi, err := os.Stat(filepath.Join(root, d)); err != nil || !fi.IsDir() {
			t.Fatalf("expected directory %s", d)
		}
	}
	raw, err := os.ReadFile(h.DocPath)
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("document is not JSON: %v", err)
	}
	layers := m["layers"].(map[string]any)
	shovel := layers["shovel"].(map[string]any)
	if shovel["type"] != "FeatureCollection" {
		t.Fatalf("layer is not a FeatureCollection: %v", shovel["type"])
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	root := t.TempDir()
	want := sampleDoc()
	if _, err := Init(root, want); err != nil {
		t.Fatalf("Init: %v", err)
	}
	h, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got := h.Doc
	if got.Name != want.Name || got.Zoom != 1.5 || got.Version != FormatVersion {
		t.Fatalf("header mismatch: %+v", got)
	}
	if len(got.Layers) != 3 {
		t.Fatalf("layers = %v", got.LayerNames())
	}
	shovel := got.Layers["shovel"]
	if len(shovel) != 1 || len(shovel[0].Holes) != 1 || len(shovel[0].Outer) != 4 {
		t.Fatalf("shovel geometry not preserved: %+v", shovel)
	}
	if shovel.Area() != want.Layers["shovel"].Area() {
		t.Fatalf("area %.3f want %.3f", shovel.Area(), want.Layers["shovel"].Area())
	}
	if len(got.Layers["paint/grass/top"]) != 2 || len(got.Layers["paint/rock/background"]) != 0 {
		t.Fatalf("paint layers not preserved")
	}
	if len(got.Stamps) != 1 || !got.Stamps[0].Outer[2].Eq(geom.Pt(5, 10), 0) {
		t.Fatalf("stamps not preserved: %+v", got.Stamps)
	}
	if h.Recovered != "" {
		t.Fatalf("unexpected recovery from %s", h.Recovered)
	}
}

func TestSaveCreatesTimestampedBackup(t *testing.T) {
	root := t.TempDir()
	h, err := Init(root, sampleDoc())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	h.Doc.Name = "changed"
	if err := Save(h); err != nil {
		t.Fatalf("Save: %v", err)
	}
	baks, err := Backups(root)
	if err != nil || len(baks) == 0 {
		t.Fatalf("expected a backup, got %v err=%v", baks, err)
	}
	if !strings.HasPrefix(filepath.Base(baks[0]), DocumentFileName+".") {
		t.Fatalf("unexpected backup name %s", baks[0])
	}
}

func TestOpenFallsBackToBackup(t *testing.T) {
	root := t.TempDir()
	h, err := Init(root, sampleDoc())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := Save(h); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.WriteFile(h.DocPath, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	got, err := Open(root)
	if err != nil {
		t.Fatalf("Open should recover: %v", err)
	}
	if got.Recovered == "" || got.Doc.Name != "Test Terrain" {
		t.Fatalf("expected recovered document, got %+v", got)
	}
}

func TestOpenFailsWithoutBackups(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, DocumentFileName), []byte(`{"version": 1}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Open(root); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSaveAsMovesHandle(t *testing.T) {
	root := t.TempDir()
	h, err := Init(root, sampleDoc())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	h.Doc.Name = "Renamed"
	newRoot := filepath.Join(root, "copy")
	if err := SaveAs(h, newRoot); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	if h.DocPath != filepath.Join(newRoot, DocumentFileName) {
		t.Fatalf("paths not updated: %+v", h)
	}
	got, err := Open(newRoot)
	if err != nil || got.Doc.Name != "Renamed" {
		t.Fatalf("Open new root: %+v err=%v", got, err)
	}
}

func TestAutosaveCrashSnapshot(t *testing.T) {
	root := t.TempDir()
	h, err := Init(root, sampleDoc())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	before, _ := os.ReadFile(h.DocPath)
	h.Doc.Name = "unsaved"
	path, err := AutosaveCrashSnapshot(h)
	if err != nil {
		t.Fatalf("autosave: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	d, err := DecodeDocument(b)
	if err != nil || d.Name != "unsaved" {
		t.Fatalf("snapshot decode: %+v err=%v", d, err)
	}
	after, _ := os.ReadFile(h.DocPath)
	if string(before) != string(after) {
		t.Fatalf("crash snapshot must not touch %s", DocumentFileName)
	}
	if _, err := AutosaveCrashSnapshot(nil); err == nil {
		t.Fatalf("expected error for nil handle")
	}
}

func TestFeaturesToPolygonsRejectsPoints(t *testing.T) {
	raw := []byte(`{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{}}]}`)
	var w wireDocument
	if err := json.Unmarshal([]byte(`{"version":1,"name":"x","layers":{"a":`+string(raw)+`}}`), &w); err != nil {
		t.Fatalf("unmarshal wire: %v", err)
	}
	if _, err := FeaturesToPolygons(w.Layers["a"]); !errors.Is(err, geom.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestLayerNamingAndOrder(t *testing.T) {
	name := PaintLayer("grass", DepthTop)
	if m, d, ok := SplitPaintLayer(name); !ok || m != "grass" || d != DepthTop {
		t.Fatalf("split %q = %q %q %v", name, m, d, ok)
	}
	for _, bad := range []string{"shovel", "paint/grass", "paint//top", "paint/grass/middle"} {
		if _, _, ok := SplitPaintLayer(bad); ok {
			t.Fatalf("%q should not parse as a paint layer", bad)
		}
	}
	if _, err := ParseDepth("sideways"); err == nil {
		t.Fatalf("expected error for unknown depth")
	}
	if d, _ := ParseDepth(" Foreground "); d != DepthForeground {
		t.Fatalf("depth = %q", d)
	}

	d := NewDocument("order")
	for _, n := range []string{"zz", PaintLayer("rock", DepthTop), ShovelLayer, PaintLayer("sand", DepthForeground), PaintLayer("grass", DepthBackground)} {
		d.Layers[n] = nil
	}
	got := d.LayerNames()
	want := []string{"paint/grass/background", "shovel", "paint/sand/foreground", "paint/rock/top", "zz"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestPruneBackupsKeepsNewest(t *testing.T) {
	root := t.TempDir()
	bdir := filepath.Join(root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, ts := range []string{"20250101-000001", "20250101-000002", "20250101-000003", "20250101-000004"} {
		p := filepath.Join(bdir, DocumentFileName+"."+ts+".bak")
		if err := os.WriteFile(p, []byte("{}"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	n, err := PruneBackups(root, 2)
	if err != nil || n != 2 {
		t.Fatalf("PruneBackups = %d, %v", n, err)
	}
	left, _ := Backups(root)
	if len(left) != 2 || !strings.Contains(left[0], "000003") {
		t.Fatalf("left = %v", left)
	}
	if n, _ := PruneBackups(root, 0); n != 0 {
		t.Fatalf("keep 0 must not delete, removed %d", n)
	}
}
