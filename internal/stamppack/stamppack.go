/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package stamppack moves stamp libraries between projects as zip archives.
// A pack holds manifest.json, stamps.geojson (one Polygon feature per
// stamp) and optionally extra files such as previews under stamps/.
package stamppack

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"

	"vecterrain/internal/geom"
	applog "vecterrain/internal/log"
	"vecterrain/internal/storage"
	"vecterrain/internal/version"
)

const (
	ManifestName = "manifest.json"
	StampsName   = "stamps.geojson"
	// PackFormat is bumped on incompatible layout changes.
	PackFormat = 1
	// maxEntrySize bounds a single extracted file.
	maxEntrySize = 32 << 20
)

var ErrInvalidPack = errors.New("invalid stamp pack")

// Manifest describes a pack.
type Manifest struct {
	Format    int       `json:"format"`
	Name      string    `json:"name"`
	Created   time.Time `json:"created"`
	Count     int       `json:"count"`
	Generator string    `json:"generator"`
}

// Pack is a decoded archive.
type Pack struct {
	Manifest Manifest
	Stamps   []geom.Polygon
}

// ExportProjectStamps zips the document's stamp library plus the project's
// stamps directory into destZipPath.
func ExportProjectStamps(h *storage.Handle, name, destZipPath string) error {
	l := applog.WithOperation(applog.WithComponent("stamppack"), "export")
	if h == nil {
		return errors.New("project handle is required")
	}
	if strings.TrimSpace(destZipPath) == "" {
		return errors.New("destZipPath is required")
	}
	l = l.With(slog.String("project", h.Root))
	if name == "" {
		name = h.Doc.Name
	}
	if err := os.MkdirAll(filepath.Dir(destZipPath), 0o755); err != nil {
		return fmt.Errorf("ensure zip dir: %w", err)
	}
	// On Windows, remove destination if present before create
	_ = os.Remove(destZipPath)

	zf, err := os.Create(destZipPath)
	if err != nil {
		return fmt.Errorf("create zip: %w", err)
	}
	defer func() { _ = zf.Close() }()
	zw := zip.NewWriter(zf)

	if err := writePack(zw, name, h.Doc.Stamps); err != nil {
		_ = zw.Close()
		return err
	}

	stampsDir := filepath.Join(h.Root, storage.StampsDirName)
	added := 0
	err = filepath.Walk(stampsDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == stampsDir {
				return filepath.SkipDir
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(h.Root, p)
		if err != nil {
			return err
		}
		fw, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		if _, err := io.Copy(fw, f); err != nil {
			return err
		}
		added++
		return nil
	})
	if err != nil {
		_ = zw.Close()
		l.Error("zip build failed", slog.Any("err", err))
		return fmt.Errorf("build zip: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish zip: %w", err)
	}
	l.Info("stamp pack exported", slog.Int("stamps", len(h.Doc.Stamps)), slog.Int("files", added), slog.String("zip", destZipPath))
	return nil
}

func writePack(zw *zip.Writer, name string, stamps []geom.Polygon) error {
	m := Manifest{
		Format:    PackFormat,
		Name:      name,
		Created:   time.Now().UTC(),
		Count:     len(stamps),
		Generator: "vecterrain " + version.String(),
	}
	mb, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	sb, err := storage.PolygonsToFeatures(stamps).MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode stamps: %w", err)
	}
	for _, e := range []struct {
		name string
		data []byte
	}{{ManifestName, mb}, {StampsName, sb}} {
		w, err := zw.Create(e.name)
		if err != nil {
			return fmt.Errorf("add %s: %w", e.name, err)
		}
		if _, err := w.Write(e.data); err != nil {
			return fmt.Errorf("write %s: %w", e.name, err)
		}
	}
	return nil
}

// ReadPack decodes and validates the manifest and stamps of a pack.
func ReadPack(packZipPath string) (Pack, error) {
	r, err := zip.OpenReader(packZipPath)
	if err != nil {
		return Pack{}, fmt.Errorf("open pack: %w", err)
	}
	defer func() { _ = r.Close() }()
	return readPack(&r.Reader)
}

func readPack(r *zip.Reader) (Pack, error) {
	var mb, sb []byte
	for _, f := range r.File {
		switch f.Name {
		case ManifestName, StampsName:
			b, err := readEntry(f)
			if err != nil {
				return Pack{}, err
			}
			if f.Name == ManifestName {
				mb = b
			} else {
				sb = b
			}
		}
	}
	if mb == nil || sb == nil {
		return Pack{}, fmt.Errorf("%w: missing %s or %s", ErrInvalidPack, ManifestName, StampsName)
	}
	var p Pack
	if err := json.Unmarshal(mb, &p.Manifest); err != nil {
		return Pack{}, fmt.Errorf("%w: manifest: %v", ErrInvalidPack, err)
	}
	if p.Manifest.Format != PackFormat {
		return Pack{}, fmt.Errorf("%w: unsupported format %d", ErrInvalidPack, p.Manifest.Format)
	}
	fc, err := geojson.UnmarshalFeatureCollection(sb)
	if err != nil {
		return Pack{}, fmt.Errorf("%w: stamps: %v", ErrInvalidPack, err)
	}
	mp, err := storage.FeaturesToPolygons(fc)
	if err != nil {
		return Pack{}, fmt.Errorf("%w: stamps: %v", ErrInvalidPack, err)
	}
	if err := mp.Validate(); err != nil {
		return Pack{}, fmt.Errorf("%w: stamps: %v", ErrInvalidPack, err)
	}
	if len(mp) != p.Manifest.Count {
		return Pack{}, fmt.Errorf("%w: manifest lists %d stamps, found %d", ErrInvalidPack, p.Manifest.Count, len(mp))
	}
	p.Stamps = mp
	return p, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return nil, err
	}
	if n > maxEntrySize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrInvalidPack, f.Name, maxEntrySize)
	}
	return buf.Bytes(), nil
}

// InstallResult reports what InstallPack changed.
type InstallResult struct {
	Stamps     int // appended to the library
	Duplicates int // already present, skipped
	Files      int // extracted under stamps/
}

// InstallPack appends the pack's stamps to h.Doc.Stamps, skipping exact
// duplicates, and extracts other files into the project's stamps
// directory without overwriting. Entries escaping the project are
// ignored. The caller saves the document.
func InstallPack(h *storage.Handle, packZipPath string) (InstallResult, error) {
	l := applog.WithOperation(applog.WithComponent("stamppack"), "install")
	var res InstallResult
	if h == nil {
		return res, errors.New("project handle is required")
	}
	if strings.TrimSpace(packZipPath) == "" {
		return res, errors.New("packZipPath is required")
	}
	l = l.With(slog.String("project", h.Root))

	r, err := zip.OpenReader(packZipPath)
	if err != nil {
		return res, fmt.Errorf("open pack: %w", err)
	}
	defer func() { _ = r.Close() }()
	p, err := readPack(&r.Reader)
	if err != nil {
		return res, err
	}

	seen := make(map[string]bool, len(h.Doc.Stamps))
	for _, s := range h.Doc.Stamps {
		seen[stampKey(s)] = true
	}
	for _, s := range p.Stamps {
		k := stampKey(s)
		if seen[k] {
			res.Duplicates++
			continue
		}
		seen[k] = true
		h.Doc.Stamps = append(h.Doc.Stamps, s)
		res.Stamps++
	}

	stampsDir := filepath.Join(h.Root, storage.StampsDirName)
	for _, f := range r.File {
		if f.Name == ManifestName || f.Name == StampsName || f.FileInfo().IsDir() {
			continue
		}
		rel, ok := safeRel(f.Name)
		if !ok {
			l.Warn("skip unsafe entry", slog.String("entry", f.Name))
			continue
		}
		targetPath := filepath.Join(stampsDir, filepath.FromSlash(rel))
		if _, err := os.Stat(targetPath); err == nil {
			l.Warn("skip existing file", slog.String("path", targetPath))
			continue
		}
		b, err := readEntry(f)
		if err != nil {
			return res, err
		}
		if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
			return res, err
		}
		if err := os.WriteFile(targetPath, b, 0o644); err != nil {
			return res, err
		}
		res.Files++
	}
	l.Info("stamp pack installed",
		slog.String("pack", p.Manifest.Name),
		slog.Int("stamps", res.Stamps),
		slog.Int("duplicates", res.Duplicates),
		slog.Int("files", res.Files))
	return res, nil
}

// safeRel maps an archive entry to a path below stamps/. Entries may
// carry the stamps/ prefix or not.
func safeRel(name string) (string, bool) {
	if name == "" || strings.Contains(name, "\\") || path.IsAbs(name) {
		return "", false
	}
	clean := path.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", false
	}
	clean = strings.TrimPrefix(clean, storage.StampsDirName+"/")
	if clean == "." || clean == "" || clean == storage.StampsDirName {
		return "", false
	}
	return clean, true
}

// stampKey identifies a stamp by its WKT text.
func stampKey(p geom.Polygon) string {
	return wkt.MarshalString(p.ToOrb())
}
