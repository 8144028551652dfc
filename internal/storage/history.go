/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb/encoding/wkt"

	"vecterrain/internal/geom"
	applog "vecterrain/internal/log"
	"vecterrain/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	HistoryDirName  = ".vtr"
	HistoryFileName = "history.sqlite"

	// historySchema is the current SQLite schema version. Bump it together
	// with a step in runMigrations.
	historySchema = 2
)

// HistoryPath returns the stroke history database path for a document root.
func HistoryPath(root string) string {
	return filepath.Join(root, HistoryDirName, HistoryFileName)
}

// Snapshot is one committed stroke: the full geometry of a layer after it.
type Snapshot struct {
	ID       int64
	Layer    string
	Seq      int
	Mode     string
	TS       time.Time
	Polygons int
	Area     float64
	Geometry geom.MultiPolygon
}

// History is the per-document stroke log.
type History struct {
	db   *sql.DB
	path string
}

// OpenHistory opens (creating if needed) root/.vtr/history.sqlite.
func OpenHistory(root string) (*History, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "history_open").With(slog.String("root", root))
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, HistoryDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", HistoryDirName, err)
	}
	path := HistoryPath(root)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	for _, step := range []func(context.Context, *sql.DB) error{ensureMetaAndVersion, ensureHistorySchema, runMigrations} {
		if err := step(ctx, db); err != nil {
			_ = db.Close()
			l.Error("history schema failed", slog.Any("err", err))
			return nil, err
		}
	}
	l.Debug("history ready", slog.String("path", path))
	return &History{db: db, path: path}, nil
}

func (h *History) Close() error { return h.db.Close() }
func (h *History) Path() string { return h.path }

// SchemaVersion reports the schema recorded in the database.
func (h *History) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := h.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&v)
	return v, err
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, historySchema, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

func ensureHistorySchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS strokes (
			id       INTEGER PRIMARY KEY,
			layer    TEXT    NOT NULL,
			seq      INTEGER NOT NULL,
			mode     TEXT    NOT NULL,
			ts       TEXT    NOT NULL,
			polygons INTEGER NOT NULL,
			area     REAL    NOT NULL DEFAULT 0,
			wkt      TEXT    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_strokes_layer_ts ON strokes(layer, ts);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure history schema: %w", err)
		}
	}
	return nil
}

// runMigrations upgrades databases written by older builds.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for cur < historySchema {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{`ALTER TABLE strokes ADD COLUMN area REAL NOT NULL DEFAULT 0;`}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

// language=SQL
const insertStrokeSQL = `INSERT INTO strokes(layer, seq, mode, ts, polygons, area, wkt) VALUES (?, ?, ?, ?, ?, ?, ?)`

// language=SQL
const selectStrokeCols = `SELECT id, layer, seq, mode, ts, polygons, area, wkt FROM strokes`

// language=SQL
const pruneStrokesSQL = `DELETE FROM strokes WHERE layer = ? AND id NOT IN (
	SELECT id FROM strokes WHERE layer = ? ORDER BY id DESC LIMIT ?
)`

// Record stores s and returns its row id. Polygons, Area and a zero TS are
// filled from the geometry and the clock.
func (h *History) Record(ctx context.Context, s Snapshot) (int64, error) {
	if s.TS.IsZero() {
		s.TS = time.Now()
	}
	text := ""
	if len(s.Geometry) > 0 {
		text = wkt.MarshalString(s.Geometry.ToOrb())
	}
	res, err := h.db.ExecContext(ctx, insertStrokeSQL,
		s.Layer, s.Seq, s.Mode, s.TS.UTC().Format(time.RFC3339Nano),
		len(s.Geometry), s.Geometry.Area(), text)
	if err != nil {
		return 0, fmt.Errorf("record stroke: %w", err)
	}
	return res.LastInsertId()
}

// Latest returns the newest snapshot of layer; ok is false when there is none.
func (h *History) Latest(ctx context.Context, layer string) (Snapshot, bool, error) {
	list, err := h.query(ctx, selectStrokeCols+` WHERE layer = ? ORDER BY id DESC LIMIT 1`, layer)
	if err != nil || len(list) == 0 {
		return Snapshot{}, false, err
	}
	return list[0], true, nil
}

// List returns up to limit snapshots, newest first. An empty layer lists
// all layers.
func (h *History) List(ctx context.Context, layer string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	if layer == "" {
		return h.query(ctx, selectStrokeCols+` ORDER BY id DESC LIMIT ?`, limit)
	}
	return h.query(ctx, selectStrokeCols+` WHERE layer = ? ORDER BY id DESC LIMIT ?`, layer, limit)
}

// Prune keeps the newest keep snapshots of layer.
func (h *History) Prune(ctx context.Context, layer string, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := h.db.ExecContext(ctx, pruneStrokesSQL, layer, layer, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (h *History) query(ctx context.Context, q string, args ...any) ([]Snapshot, error) {
	rows, err := h.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Snapshot
	for rows.Next() {
		var s Snapshot
		var ts, text string
		if err := rows.Scan(&s.ID, &s.Layer, &s.Seq, &s.Mode, &ts, &s.Polygons, &s.Area, &text); err != nil {
			return nil, err
		}
		s.TS, _ = time.Parse(time.RFC3339Nano, ts)
		if text != "" {
			mp, err := wkt.UnmarshalMultiPolygon(text)
			if err != nil {
				return nil, fmt.Errorf("stroke %d: %w", s.ID, err)
			}
			s.Geometry = geom.MultiPolygonFromOrb(mp)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
