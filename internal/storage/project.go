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
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	applog "vecterrain/internal/log"
)

const (
	DocumentFileName = "terrain.json"
	BackupsDirName   = "backups"
	ExportsDirName   = "exports"
	StampsDirName    = "stamps"
)

var standardSubDirs = []string{
	BackupsDirName,
	ExportsDirName,
	StampsDirName,
}

// Handle ties a Document to its directory on disk.
type Handle struct {
	Root    string
	DocPath string
	Doc     Document
	// Recovered is set when Open had to fall back to a backup.
	Recovered string
}

// Init creates root with its standard subfolders and writes doc.
func Init(root string, doc Document) (*Handle, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create root: %w", err)
	}
	for _, d := range standardSubDirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return nil, fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	if doc.Version == 0 {
		doc.Version = FormatVersion
	}
	h := &Handle{Root: root, DocPath: filepath.Join(root, DocumentFileName), Doc: doc}
	if err := Save(h); err != nil {
		return nil, err
	}
	return h, nil
}

// Open loads root/terrain.json. A missing, unparsable or schema-invalid file
// is replaced by the newest backup that loads cleanly.
func Open(root string) (*Handle, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "open").With(slog.String("root", root))
	dpath := filepath.Join(root, DocumentFileName)
	doc, err := readDocument(dpath)
	if err == nil {
		return &Handle{Root: root, DocPath: dpath, Doc: doc}, nil
	}
	l.Warn("document unreadable, trying backups", slog.Any("err", err))
	bdoc, bpath, berr := openFromLatestBackup(root)
	if berr != nil {
		return nil, fmt.Errorf("open document: %w; backup attempt: %v", err, berr)
	}
	l.Info("recovered from backup", slog.String("backup", bpath))
	return &Handle{Root: root, DocPath: dpath, Doc: bdoc, Recovered: bpath}, nil
}

func readDocument(path string) (Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	return DecodeDocument(b)
}

// DecodeDocument validates b against the document schema and decodes it.
func DecodeDocument(b []byte) (Document, error) {
	if err := ValidateDocument(b); err != nil {
		return Document{}, err
	}
	var d Document
	if err := json.Unmarshal(b, &d); err != nil {
		return Document{}, fmt.Errorf("parse document: %w", err)
	}
	return d, nil
}

// Save writes h.Doc transactionally and keeps a timestamped backup of the
// previous file.
func Save(h *Handle) error {
	if h == nil {
		return errors.New("nil Handle")
	}
	if h.Root == "" || h.DocPath == "" {
		return errors.New("invalid Handle: missing paths")
	}
	h.Doc.Modified = time.Now().UTC()
	data, err := json.MarshalIndent(h.Doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	data = append(data, '\n')

	bdir := filepath.Join(h.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}
	if _, statErr := os.Stat(h.DocPath); statErr == nil {
		stamp := time.Now().Format("20060102-150405")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", DocumentFileName, stamp))
		if cerr := copyFile(h.DocPath, bpath); cerr != nil {
			return fmt.Errorf("backup current document: %w", cerr)
		}
	}
	return replaceFile(h.DocPath, data)
}

// SaveAs moves the handle to newRoot and saves there.
func SaveAs(h *Handle, newRoot string) error {
	if h == nil {
		return errors.New("nil Handle")
	}
	if newRoot == "" {
		return errors.New("new root is empty")
	}
	for _, d := range append([]string{""}, standardSubDirs...) {
		if err := os.MkdirAll(filepath.Join(newRoot, d), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", filepath.Join(newRoot, d), err)
		}
	}
	h.Root = newRoot
	h.DocPath = filepath.Join(newRoot, DocumentFileName)
	h.Recovered = ""
	return Save(h)
}

// AutosaveCrashSnapshot writes the in-memory document next to the backups
// without touching terrain.json, for use while the process is going down.
func AutosaveCrashSnapshot(h *Handle) (string, error) {
	if h == nil || h.Root == "" {
		return "", errors.New("invalid Handle")
	}
	data, err := json.MarshalIndent(h.Doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	bdir := filepath.Join(h.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(bdir, fmt.Sprintf("%s.%s.crash", DocumentFileName, time.Now().Format("20060102-150405")))
	if err := writeFileSync(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// Backups lists document backups, oldest first.
func Backups(root string) ([]string, error) {
	bdir := filepath.Join(root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, DocumentFileName+".") && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	sort.Strings(out)
	return out, nil
}

// PruneBackups deletes all but the newest keep backups and returns how many
// were removed. keep <= 0 keeps everything.
func PruneBackups(root string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	all, err := Backups(root)
	if err != nil {
		return 0, err
	}
	if len(all) <= keep {
		return 0, nil
	}
	n := 0
	for _, p := range all[:len(all)-keep] {
		if err := os.Remove(p); err != nil {
			return n, fmt.Errorf("remove backup: %w", err)
		}
		n++
	}
	return n, nil
}

// replaceFile writes data next to path and renames it into place.
func replaceFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", base, os.Getpid(), rand.Int()))
	if err := writeFileSync(temp, data); err != nil {
		return fmt.Errorf("write temp %s: %w", base, err)
	}
	// Windows refuses to rename over an existing file.
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if err := os.Rename(temp, path); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace %s: %w", base, err)
	}
	return nil
}

func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

// openFromLatestBackup walks backups newest first and returns the first one
// that decodes.
func openFromLatestBackup(root string) (Document, string, error) {
	cands, err := Backups(root)
	if err != nil {
		return Document{}, "", err
	}
	if len(cands) == 0 {
		return Document{}, "", errors.New("no backups found")
	}
	var lastErr error
	for i := len(cands) - 1; i >= 0; i-- {
		d, err := readDocument(cands[i])
		if err == nil {
			return d, cands[i], nil
		}
		lastErr = err
	}
	return Document{}, "", fmt.Errorf("no valid backup: %w", lastErr)
}
