/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	"vecterrain/internal/config"
	"vecterrain/internal/crash"
	"vecterrain/internal/editor"
	"vecterrain/internal/export"
	applog "vecterrain/internal/log"
	"vecterrain/internal/stamppack"
	"vecterrain/internal/storage"
	"vecterrain/internal/version"
)

func usage() {
	fmt.Println("VecTerrain: vector terrain editing core")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  vecterrain version|-v|--version                 Show version")
	fmt.Println("  vecterrain init <dir> [name]                    Create a terrain project at <dir>")
	fmt.Println("  vecterrain info <dir>                           Print layers, stamps and backups")
	fmt.Println("  vecterrain paint <dir> <script.yaml>            Replay a stroke script and save")
	fmt.Println("  vecterrain export <dir> png|svg|pdf|web|print [out]")
	fmt.Println("  vecterrain stamps export <dir> <pack.zip> [name]")
	fmt.Println("  vecterrain stamps import <dir> <pack.zip>")
	fmt.Println("  vecterrain history <dir> [layer] [limit]        List recorded strokes")
}

func fail(l *slog.Logger, msg string, err error) {
	l.Error(msg, slog.Any("err", err))
	fmt.Println("Error:", err)
	os.Exit(1)
}

func need(args []string, n int, what string) {
	if len(args) < n {
		fmt.Println(what)
		usage()
		os.Exit(2)
	}
}

func main() {
	cfg, cfgErr := config.Load()
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	l := applog.WithComponent("cli")
	if cfgErr != nil {
		l.Warn("config load failed, using defaults", slog.Any("err", cfgErr))
	}

	var ph *storage.Handle
	defer func() {
		if r := recover(); r != nil {
			crash.Report(ph, r)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) < 2 {
		usage()
		return
	}
	switch args[1] {
	case "version", "--version", "-v":
		fmt.Println("VecTerrain")
		fmt.Println(version.String())
	case "init":
		need(args, 3, "init requires <dir>")
		abs, _ := filepath.Abs(args[2])
		name := filepath.Base(abs)
		if len(args) > 3 {
			name = args[3]
		}
		l.Info("init project", slog.String("root", abs), slog.String("name", name))
		h, err := storage.Init(abs, storage.NewDocument(name))
		if err != nil {
			fail(l, "init failed", err)
		}
		ph = h
		fmt.Println("Created project at", abs)
	case "info":
		need(args, 3, "info requires <dir>")
		h := open(l, args[2])
		ph = h
		printInfo(ctx, h)
	case "paint":
		need(args, 4, "paint requires <dir> and <script.yaml>")
		h := open(l, args[2])
		ph = h
		if err := paint(ctx, cfg, h, args[3]); err != nil {
			fail(l, "paint failed", err)
		}
	case "export":
		need(args, 4, "export requires <dir> and a format")
		h := open(l, args[2])
		ph = h
		out := ""
		if len(args) > 4 {
			out = args[4]
		}
		paths, err := runExport(cfg, h, args[3], out)
		if err != nil {
			fail(l, "export failed", err)
		}
		for _, p := range paths {
			fmt.Println("Wrote", p)
		}
	case "stamps":
		need(args, 5, "stamps requires export|import, <dir> and <pack.zip>")
		h := open(l, args[3])
		ph = h
		if err := stamps(l, h, args[2], args[4], args[5:]); err != nil {
			fail(l, "stamps failed", err)
		}
	case "history":
		need(args, 3, "history requires <dir>")
		h := open(l, args[2])
		ph = h
		layer := storage.ShovelLayer
		if len(args) > 3 {
			layer = args[3]
		}
		limit := 20
		if len(args) > 4 {
			if n, err := strconv.Atoi(args[4]); err == nil {
				limit = n
			}
		}
		if err := printHistory(ctx, h, layer, limit); err != nil {
			fail(l, "history failed", err)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func open(l *slog.Logger, dir string) *storage.Handle {
	abs, _ := filepath.Abs(dir)
	l.Info("open project", slog.String("root", abs))
	h, err := storage.Open(abs)
	if err != nil {
		fail(l, "open failed", err)
	}
	if h.Recovered != "" {
		fmt.Println("Document was restored from backup", h.Recovered)
	}
	return h
}

func printInfo(ctx context.Context, h *storage.Handle) {
	fmt.Printf("Terrain: %s\n", h.Doc.Name)
	fmt.Println("Root:", h.Root)
	fmt.Printf("Zoom: %.2f\n", h.Doc.Zoom)
	fmt.Printf("Stamps: %d\n", len(h.Doc.Stamps))
	for _, name := range h.Doc.LayerNames() {
		mp := h.Doc.Layers[name]
		fmt.Printf("  %-24s polygons=%d vertices=%d area=%.1f\n", name, len(mp), mp.VertexCount(), mp.Area())
	}
	if b, err := storage.Backups(h.Root); err == nil {
		fmt.Printf("Backups: %d\n", len(b))
	}
	if _, err := os.Stat(storage.HistoryPath(h.Root)); err == nil {
		hist, err := storage.OpenHistory(h.Root)
		if err == nil {
			defer hist.Close()
			if v, err := hist.SchemaVersion(ctx); err == nil {
				fmt.Printf("History schema: v%d\n", v)
			}
		}
	}
}

func paint(ctx context.Context, cfg config.AppConfig, h *storage.Handle, scriptPath string) error {
	l := applog.WithComponent("paint")
	s, err := LoadScript(scriptPath)
	if err != nil {
		return err
	}
	opts := []editor.Option{editor.WithLogger(l)}
	if cfg.Storage.History {
		hist, err := storage.OpenHistory(h.Root)
		if err != nil {
			return err
		}
		defer hist.Close()
		opts = append(opts, editor.WithHistory(hist))
	}
	ed, err := editor.New(cfg, opts...)
	if err != nil {
		return err
	}
	if err := ed.Load(h.Doc); err != nil {
		return err
	}
	res, err := s.Run(ctx, ed)
	if err != nil {
		return err
	}
	ed.Flush()
	inf := ed.Info()
	h.Doc = ed.Document(h.Doc)
	if err := storage.Save(h); err != nil {
		return err
	}
	if n, err := storage.PruneBackups(h.Root, cfg.Storage.KeepBackups); err != nil {
		l.Warn("prune backups failed", slog.Any("err", err))
	} else if n > 0 {
		l.Debug("pruned backups", slog.Int("removed", n))
	}
	fmt.Printf("Strokes: %d  undo: %d  redo: %d\n", res.Strokes, res.Undos, res.Redos)
	fmt.Printf("Active layer %s: polygons=%d vertices=%d triangles=%d\n", inf.Layer, inf.Polygons, inf.Vertices, inf.Triangles)
	return nil
}

func runExport(cfg config.AppConfig, h *storage.Handle, format, out string) ([]string, error) {
	o := export.Options{}
	o.Decor.InnerSteps = cfg.Decor.InnerSteps
	o.Decor.BorderWidth = cfg.Decor.BorderWidth
	o.Decor.OuterCount = cfg.Decor.OuterCount
	o.Decor.NoSmooth = !cfg.Decor.Smooth
	name := func(ext string) string {
		if out != "" {
			return out
		}
		return "terrain." + ext
	}
	var (
		p   string
		err error
	)
	switch format {
	case "png":
		p, err = export.ExportPNG(h, name("png"), export.PNGOptions{Options: o})
	case "svg":
		p, err = export.ExportSVG(h, name("svg"), export.SVGOptions{Options: o})
	case "pdf":
		p, err = export.ExportPDF(h, name("pdf"), export.PDFOptions{Options: o, Title: h.Doc.Name})
	case string(export.PresetWeb), string(export.PresetPrint):
		return export.BatchExport(h, export.BatchOptions{Preset: export.PresetName(format), OutDir: out, Options: o})
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return []string{p}, nil
}

func stamps(l *slog.Logger, h *storage.Handle, verb, zipPath string, rest []string) error {
	switch verb {
	case "export":
		name := h.Doc.Name
		if len(rest) > 0 {
			name = rest[0]
		}
		if err := stamppack.ExportProjectStamps(h, name, zipPath); err != nil {
			return err
		}
		fmt.Println("Wrote", zipPath)
		return nil
	case "import":
		res, err := stamppack.InstallPack(h, zipPath)
		if err != nil {
			return err
		}
		if err := storage.Save(h); err != nil {
			return err
		}
		l.Info("stamp pack installed", slog.Int("stamps", res.Stamps), slog.Int("duplicates", res.Duplicates))
		fmt.Printf("Installed %d stamps (%d duplicates skipped, %d files)\n", res.Stamps, res.Duplicates, res.Files)
		return nil
	default:
		return errors.New("stamps: expected export or import")
	}
}

func printHistory(ctx context.Context, h *storage.Handle, layer string, limit int) error {
	hist, err := storage.OpenHistory(h.Root)
	if err != nil {
		return err
	}
	defer hist.Close()
	list, err := hist.List(ctx, layer, limit)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No strokes recorded for", layer)
		return nil
	}
	for _, s := range list {
		fmt.Printf("#%-4d %s %-6s polygons=%d area=%.1f\n", s.Seq, s.TS.Format("2006-01-02 15:04:05"), s.Mode, s.Polygons, s.Area)
	}
	return nil
}
