/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package stamppack

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"vecterrain/internal/geom"
	"vecterrain/internal/stamp"
	"vecterrain/internal/storage"
)

func tri(x float64) geom.Polygon {
	return geom.Polygon{Outer: geom.Ring{{X: x, Y: 0}, {X: x + 10, Y: 0}, {X: x + 5, Y: 8}}}
}

func newProject(t *testing.T, stamps ...geom.Polygon) *storage.Handle {
	t.Helper()
	d := storage.NewDocument("pack test")
	d.Stamps = stamps
	h, err := storage.Init(t.TempDir(), d)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	return h
}

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	zw := zip.NewWriter(f)
	for name, body := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("write entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close zip file: %v", err)
	}
}

func TestExportAndReadPack(t *testing.T) {
	h := newProject(t, tri(0), tri(20), stamp.DefaultBlob())
	if err := os.MkdirAll(filepath.Join(h.Root, storage.StampsDirName), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(h.Root, storage.StampsDirName, "preview.txt"), []byte("blob"), 0o644); err != nil {
		t.Fatalf("write preview: %v", err)
	}
	zipPath := filepath.Join(t.TempDir(), "out", "rocks.zip")
	if err := ExportProjectStamps(h, "rocks", zipPath); err != nil {
		t.Fatalf("export: %v", err)
	}
	p, err := ReadPack(zipPath)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if p.Manifest.Name != "rocks" || p.Manifest.Count != 3 || p.Manifest.Format != PackFormat {
		t.Fatalf("manifest = %+v", p.Manifest)
	}
	if len(p.Stamps) != 3 || len(p.Stamps[0].Outer) != 3 {
		t.Fatalf("stamps = %+v", p.Stamps)
	}
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer r.Close()
	found := false
	for _, f := range r.File {
		if f.Name == "stamps/preview.txt" {
			found = true
		}
	}
	if !found {
		t.Fatalf("stamps directory not packed")
	}
}

func TestExportWithoutStampsDir(t *testing.T) {
	h := newProject(t)
	zipPath := filepath.Join(t.TempDir(), "empty.zip")
	if err := ExportProjectStamps(h, "", zipPath); err != nil {
		t.Fatalf("export: %v", err)
	}
	p, err := ReadPack(zipPath)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if p.Manifest.Count != 0 || p.Manifest.Name != "pack test" {
		t.Fatalf("manifest = %+v", p.Manifest)
	}
	if err := ExportProjectStamps(nil, "", zipPath); err == nil {
		t.Fatalf("expected error for nil handle")
	}
}

func TestInstallSkipsDuplicatesAndExisting(t *testing.T) {
	src := newProject(t, tri(0), tri(20))
	zipPath := filepath.Join(t.TempDir(), "p.zip")
	if err := ExportProjectStamps(src, "tris", zipPath); err != nil {
		t.Fatalf("export: %v", err)
	}
	dst := newProject(t, tri(20))
	res, err := InstallPack(dst, zipPath)
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if res.Stamps != 1 || res.Duplicates != 1 || len(dst.Doc.Stamps) != 2 {
		t.Fatalf("result = %+v, library = %d", res, len(dst.Doc.Stamps))
	}
	res, err = InstallPack(dst, zipPath)
	if err != nil || res.Stamps != 0 || res.Duplicates != 2 {
		t.Fatalf("second install = %+v, %v", res, err)
	}
}

func TestInstallPack_ZipSlipAndSkipExisting(t *testing.T) {
	h := newProject(t)
	m, _ := json.Marshal(Manifest{Format: PackFormat, Name: "evil", Count: 0})
	zpath := filepath.Join(t.TempDir(), "pack.zip")
	writeZip(t, zpath, map[string]string{
		ManifestName:       string(m),
		StampsName:         `{"type":"FeatureCollection","features":[]}`,
		"../evil.txt":      "nope",
		"stamps/../../x":   "nope",
		"stamps/good.txt":  "ok",
		"extra/plain.txt":  "ok",
		"stamps/exist.txt": "new",
	})
	target := filepath.Join(h.Root, storage.StampsDirName, "exist.txt")
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(target, []byte("existing"), 0o644); err != nil {
		t.Fatalf("precreate file: %v", err)
	}

	res, err := InstallPack(h, zpath)
	if err != nil {
		t.Fatalf("install pack: %v", err)
	}
	if res.Files != 2 {
		t.Fatalf("expected 2 files installed, got %d", res.Files)
	}
	if _, err := os.Stat(filepath.Join(h.Root, "evil.txt")); err == nil {
		t.Fatalf("evil.txt should not exist")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(h.Root), "x")); err == nil {
		t.Fatalf("x should not exist")
	}
	if _, err := os.Stat(filepath.Join(h.Root, storage.StampsDirName, "extra", "plain.txt")); err != nil {
		t.Fatalf("plain entry not extracted under stamps/: %v", err)
	}
	if b, _ := os.ReadFile(target); string(b) != "existing" {
		t.Fatalf("existing file overwritten: %q", b)
	}
}

func TestReadPackRejectsBadPacks(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]map[string]string{
		"missing": {ManifestName: `{"format":1}`},
		"format":  {ManifestName: `{"format":9}`, StampsName: `{"type":"FeatureCollection","features":[]}`},
		"count":   {ManifestName: `{"format":1,"count":2}`, StampsName: `{"type":"FeatureCollection","features":[]}`},
		"points": {ManifestName: `{"format":1,"count":1}`,
			StampsName: `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{}}]}`},
		"degenerate": {ManifestName: `{"format":1,"count":1}`,
			StampsName: `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[0,0],[1,1],[0,0]]]},"properties":{}}]}`},
	}
	for name, entries := range cases {
		p := filepath.Join(dir, name+".zip")
		writeZip(t, p, entries)
		if _, err := ReadPack(p); !errors.Is(err, ErrInvalidPack) {
			t.Fatalf("%s: expected ErrInvalidPack, got %v", name, err)
		}
	}
}
