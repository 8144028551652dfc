/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package editor is the terrain editing session: a shovel layer plus paint
// layers per material and depth, one brush engine writing into whichever
// layer the active tool selects, undo per stroke, and the derived mesh and
// border decoration each layer hands to the renderer.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"vecterrain/internal/brush"
	"vecterrain/internal/clip"
	"vecterrain/internal/config"
	"vecterrain/internal/crash"
	"vecterrain/internal/frame"
	"vecterrain/internal/geom"
	applog "vecterrain/internal/log"
	"vecterrain/internal/mesh"
	"vecterrain/internal/ringfx"
	"vecterrain/internal/stamp"
	"vecterrain/internal/storage"
	"vecterrain/internal/terrain"
	"vecterrain/internal/undo"
)

var (
	// ErrBusy is returned by tool changes during a stroke.
	ErrBusy          = errors.New("stroke in progress")
	ErrUnknownTool   = errors.New("unknown tool")
	ErrInvalidLayer  = errors.New("invalid layer")
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

// Tool selects the layer family a stroke writes into.
type Tool int

const (
	Shovel Tool = iota
	Paint
)

func (t Tool) String() string {
	if t == Paint {
		return "paint"
	}
	return "shovel"
}

func ParseTool(s string) (Tool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "shovel", "dig":
		return Shovel, nil
	case "paint":
		return Paint, nil
	default:
		return Shovel, fmt.Errorf("%w %q", ErrUnknownTool, s)
	}
}

// Info is the debug readout of the session.
type Info struct {
	Tool      string
	Mode      string
	Layer     string
	Zoom      float64
	BrushSize float64
	SpacingPx float64
	// SpacingWorld is SpacingPx at the current zoom.
	SpacingWorld float64
	Layers       int
	Polygons     int
	Vertices     int
	Triangles    int
	LastStroke   brush.Stats
	Strokes      int
	UndoDepth    int
}

// Option configures an Editor.
type Option func(*Editor)

func WithRand(r brush.Rand) Option { return func(e *Editor) { e.rng = r } }

func WithClock(now func() time.Time) Option {
	return func(e *Editor) {
		if now != nil {
			e.now = now
		}
	}
}

// WithHistory records every committed stroke into h.
func WithHistory(h *storage.History) Option { return func(e *Editor) { e.history = h } }

// WithSinks supplies the renderer-side mesh sink of each layer.
func WithSinks(fn func(layer string) mesh.Sink) Option { return func(e *Editor) { e.sinkFor = fn } }

func WithLogger(l *slog.Logger) Option {
	return func(e *Editor) {
		if l != nil {
			e.log = l
		}
	}
}

// Editor is safe for use from one input goroutine plus a render goroutine
// calling Flush.
type Editor struct {
	mu  sync.Mutex
	cfg config.AppConfig
	log *slog.Logger
	now func() time.Time
	rng brush.Rand

	layers  map[string]*terrain.Area
	reg     *stamp.Registry
	eng     *brush.Engine
	clipper *clip.Clipper

	tool     Tool
	mode     brush.Mode
	material string
	depth    string
	sizePx   float64
	zoom     float64

	undo    *undo.Manager
	history *storage.History
	sinkFor func(string) mesh.Sink

	frame    *frame.Coalescer
	dirty    map[string]bool
	builders map[string]*mesh.Builder
	meshes   map[string]mesh.Stats
	decor    ringfx.Decoration

	strokeLayer string
	before      undo.Snapshot
	seq         int
}

// New builds an empty session from cfg.
func New(cfg config.AppConfig, opts ...Option) (*Editor, error) {
	policy, err := terrain.ParsePolicy(cfg.Terrain.Policy)
	if err != nil {
		return nil, err
	}
	e := &Editor{
		cfg:      cfg,
		now:      time.Now,
		layers:   map[string]*terrain.Area{},
		reg:      stamp.NewRegistry(stamp.DefaultBlob()),
		clipper:  &clip.Clipper{Scale: cfg.Terrain.ClipScale},
		material: "grass",
		depth:    storage.DepthBackground,
		sizePx:   cfg.Brush.SizePx,
		zoom:     cfg.Camera.ClampZoom(cfg.Camera.Zoom),
		dirty:    map[string]bool{},
		builders: map[string]*mesh.Builder{},
		meshes:   map[string]mesh.Stats{},
		undo: undo.NewManager(undo.Config{
			MaxPerLayer: cfg.Storage.HistoryLimit,
			MinInterval: time.Duration(cfg.Brush.MinIntervalMs) * time.Millisecond,
		}),
	}
	for _, o := range opts {
		o(e)
	}
	if e.log == nil {
		e.log = applog.WithComponent("editor")
	}
	if e.rng == nil {
		seed := cfg.Brush.Seed
		if seed == 0 {
			seed = e.now().UnixNano()
		}
		e.rng = brush.NewRand(seed)
	}
	if e.sizePx <= 0 {
		e.sizePx = config.Defaults().Brush.SizePx
	}
	e.frame = frame.New(e.rebuild)

	bo := brush.DefaultOptions()
	bo.SpacingPx = e.spacingPx()
	bo.Zoom = e.zoom
	bo.Jitter = cfg.Brush.Jitter
	bo.RotationMin, bo.RotationMax = cfg.Brush.RotationMin, cfg.Brush.RotationMax
	bo.Scale = brush.ScaleForSize(e.sizePx)
	bo.UseCapsule = cfg.Brush.UseCapsule
	bo.AccumulatePerStroke = cfg.Brush.Accumulate
	bo.MinInterval = time.Duration(cfg.Brush.MinIntervalMs) * time.Millisecond
	bo.Simplify = cfg.Brush.SimplifyFactor > 0
	bo.SimplifyFactor = cfg.Brush.SimplifyFactor
	bo.StrokePolicy = policy
	e.eng = brush.New(activeTarget{e}, e.reg, bo,
		brush.WithRand(e.rng),
		brush.WithClock(e.now),
		brush.WithScheduler(e.frame),
		brush.WithLogger(applog.WithComponent("brush")),
		brush.WithStrokeArea(func(o brush.Options) *terrain.Area {
			return terrain.New(terrain.WithPolicy(o.StrokePolicy), terrain.WithClipper(e.clipper), terrain.WithMinArea(cfg.Terrain.MinArea))
		}),
	)
	return e, nil
}

func (e *Editor) newArea() *terrain.Area {
	return terrain.New(terrain.WithClipper(e.clipper), terrain.WithMinArea(e.cfg.Terrain.MinArea))
}

func (e *Editor) spacingPx() float64 {
	if e.cfg.Brush.SpacingPx > 0 {
		return e.cfg.Brush.SpacingPx
	}
	return brush.SpacingForSize(e.sizePx)
}

// area returns the layer, creating it empty.
func (e *Editor) area(layer string) *terrain.Area {
	a, ok := e.layers[layer]
	if !ok {
		a = e.newArea()
		e.layers[layer] = a
	}
	return a
}

// ActiveLayer is the layer the next stroke writes into.
func (e *Editor) ActiveLayer() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeLayer()
}

func (e *Editor) activeLayer() string {
	if e.tool == Paint {
		return storage.PaintLayer(e.material, e.depth)
	}
	return storage.ShovelLayer
}

// activeTarget forwards stroke merges to the layer the stroke started on.
// The engine only calls it while the editor lock is held.
type activeTarget struct{ e *Editor }

func (t activeTarget) layer() string {
	if t.e.strokeLayer != "" {
		return t.e.strokeLayer
	}
	return t.e.activeLayer()
}

func (t activeTarget) AddStamp(s geom.Shape) error {
	l := t.layer()
	t.e.dirty[l] = true
	return t.e.area(l).AddStamp(s)
}

func (t activeTarget) EraseStamp(s geom.Shape) error {
	l := t.layer()
	t.e.dirty[l] = true
	return t.e.area(l).EraseStamp(s)
}

// Tool selection. Changes are refused mid-stroke so a stroke never spans
// layers.

func (e *Editor) SetTool(t Tool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.eng.State() == brush.Stroking {
		return ErrBusy
	}
	e.tool = t
	return nil
}

func (e *Editor) SetMode(m brush.Mode) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.eng.State() == brush.Stroking {
		return ErrBusy
	}
	e.mode = m
	e.eng.SetMode(m)
	return nil
}

// SetPaintLayer selects the material and depth used by the paint tool.
func (e *Editor) SetPaintLayer(material, depth string) error {
	material = strings.TrimSpace(material)
	if material == "" || strings.ContainsAny(material, "/\\") {
		return fmt.Errorf("%w: material %q", ErrInvalidLayer, material)
	}
	d, err := storage.ParseDepth(depth)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLayer, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.eng.State() == brush.Stroking {
		return ErrBusy
	}
	e.material, e.depth = material, d
	return nil
}

// SetBrushSize sets the brush diameter in screen pixels; scale and the
// derived spacing follow.
func (e *Editor) SetBrushSize(px float64) {
	if px <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sizePx = px
	e.eng.SetScale(brush.ScaleForSize(px))
	e.eng.SetSpacingPx(e.spacingPx())
}

// SetZoom clamps z to the camera range and feeds it to the brush.
func (e *Editor) SetZoom(z float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.zoom = e.cfg.Camera.ClampZoom(z)
	e.eng.SetZoom(e.zoom)
	return e.zoom
}

// ZoomBy applies wheel notches, positive zooming in.
func (e *Editor) ZoomBy(steps int) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.zoom = e.cfg.Camera.ZoomBy(e.zoom, steps)
	e.eng.SetZoom(e.zoom)
	return e.zoom
}

func (e *Editor) Zoom() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.zoom
}

// SetStamps replaces the stamp library; an empty list restores the
// built-in blob.
func (e *Editor) SetStamps(polys []geom.Polygon) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(polys) == 0 {
		polys = []geom.Polygon{stamp.DefaultBlob()}
	}
	e.reg.SetAll(polys)
}

// Pointer input, in world coordinates.

func (e *Editor) PointerDown(p geom.Point) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.eng.State() == brush.Stroking {
		return brush.ErrAlreadyStroking
	}
	layer := e.activeLayer()
	before, err := undo.Capture(layer, e.area(layer).Geometry(), e.now())
	if err != nil {
		return err
	}
	e.strokeLayer = layer
	e.before = before
	return e.guard("pointerDown", func() error { return e.eng.PointerDown(p) })
}

func (e *Editor) PointerMove(p geom.Point) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.eng.State() != brush.Stroking {
		return nil
	}
	return e.guard("pointerMove", func() error { return e.eng.PointerMove(p) })
}

// PointerUp merges the stroke, then records undo and history for it.
func (e *Editor) PointerUp(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.eng.State() != brush.Stroking {
		return nil
	}
	if err := e.guard("pointerUp", e.eng.PointerUp); err != nil {
		return err
	}
	layer := e.strokeLayer
	e.strokeLayer = ""
	if e.eng.Stats().Commits == 0 {
		return nil
	}
	e.seq++
	e.before.TS = e.now()
	e.undo.PushSnapshot(e.before)
	e.record(ctx, layer)
	return nil
}

// Cancel drops the in-progress stroke. Stamps already merged without
// accumulation are rolled back.
func (e *Editor) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.eng.State() != brush.Stroking {
		return
	}
	e.eng.Cancel()
	e.restoreBefore()
}

// guard runs an engine call under crash.Guard. A failed call leaves the
// stroke layer as it was before the stroke and ends the stroke.
func (e *Editor) guard(op string, fn func() error) error {
	err := crash.Guard(op, fn)
	if err == nil {
		return nil
	}
	e.eng.Cancel()
	e.restoreBefore()
	return err
}

func (e *Editor) restoreBefore() {
	layer := e.strokeLayer
	e.strokeLayer = ""
	if layer == "" {
		return
	}
	mp, err := e.before.Geometry()
	if err == nil {
		err = e.area(layer).SetGeometry(mp)
	}
	if err != nil {
		e.log.Error("restore layer failed", slog.String("layer", layer), slog.Any("err", err))
	}
	e.dirty[layer] = true
	e.frame.Request()
}

func (e *Editor) record(ctx context.Context, layer string) {
	if e.history == nil || !e.cfg.Storage.History {
		return
	}
	ctx = applog.WithLayer(applog.WithStroke(ctx, e.seq), layer)
	snap := storage.Snapshot{
		Layer:    layer,
		Seq:      e.seq,
		Mode:     e.mode.String(),
		TS:       e.now(),
		Geometry: e.layers[layer].Geometry(),
	}
	if _, err := e.history.Record(ctx, snap); err != nil {
		e.log.ErrorContext(ctx, "record stroke failed", slog.Any("err", err))
		return
	}
	if n := e.cfg.Storage.HistoryLimit; n > 0 {
		if _, err := e.history.Prune(ctx, layer, n); err != nil {
			e.log.WarnContext(ctx, "prune history failed", slog.Any("err", err))
		}
	}
}

// Undo reverts the last stroke on layer ("" means the active layer).
func (e *Editor) Undo(layer string) error {
	return e.step(layer, true)
}

// Redo reapplies the last undone stroke on layer ("" means the active layer).
func (e *Editor) Redo(layer string) error {
	return e.step(layer, false)
}

func (e *Editor) step(layer string, back bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.eng.State() == brush.Stroking {
		return ErrBusy
	}
	if layer == "" {
		layer = e.activeLayer()
	}
	cur, err := undo.Capture(layer, e.area(layer).Geometry(), e.now())
	if err != nil {
		return err
	}
	var (
		s  undo.Snapshot
		ok bool
	)
	if back {
		s, ok = e.undo.Undo(cur)
		if !ok {
			return ErrNothingToUndo
		}
	} else {
		s, ok = e.undo.Redo(cur)
		if !ok {
			return ErrNothingToRedo
		}
	}
	mp, err := s.Geometry()
	if err != nil {
		return err
	}
	if err := e.layers[layer].SetGeometry(mp); err != nil {
		return err
	}
	e.dirty[layer] = true
	e.frame.Request()
	return nil
}

// Geometry returns a copy of a layer, empty when it does not exist.
func (e *Editor) Geometry(layer string) geom.MultiPolygon {
	e.mu.Lock()
	defer e.mu.Unlock()
	if a, ok := e.layers[layer]; ok {
		return a.Geometry()
	}
	return geom.MultiPolygon{}
}

// Preview is the in-progress stroke.
func (e *Editor) Preview() geom.MultiPolygon {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.eng.Preview()
}

// Flush rebuilds meshes and decoration for layers changed since the last
// call. Hosts call it once per frame. It reports whether anything ran.
func (e *Editor) Flush() bool { return e.frame.Flush() }

func (e *Editor) rebuild() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for layer := range e.dirty {
		a, ok := e.layers[layer]
		if !ok {
			e.dropMesh(layer)
			continue
		}
		b, ok := e.builders[layer]
		if !ok {
			var sink mesh.Sink
			if e.sinkFor != nil {
				sink = e.sinkFor(layer)
			}
			b = mesh.NewBuilder(sink, mesh.WithRepeatScale(e.cfg.Mesh.RepeatScale))
			e.builders[layer] = b
		}
		mp := a.Geometry()
		st, err := b.Update(mp)
		if err != nil {
			e.log.Error("mesh rebuild failed", slog.String("layer", layer), slog.Any("err", err))
			continue
		}
		e.meshes[layer] = st
		if layer == storage.ShovelLayer {
			e.decor = ringfx.Decorate(mp, e.decorOptions())
		}
	}
	e.dirty = map[string]bool{}
}

// dropMesh hides and forgets the mesh of a layer that no longer exists.
func (e *Editor) dropMesh(layer string) {
	if b, ok := e.builders[layer]; ok {
		if _, err := b.Update(nil); err != nil {
			e.log.Error("hide mesh failed", slog.String("layer", layer), slog.Any("err", err))
		}
		delete(e.builders, layer)
	}
	delete(e.meshes, layer)
	if layer == storage.ShovelLayer {
		e.decor = ringfx.Decoration{}
	}
}

func (e *Editor) decorOptions() ringfx.DecorOptions {
	d := e.cfg.Decor
	return ringfx.DecorOptions{
		InnerSteps:  d.InnerSteps,
		BorderWidth: d.BorderWidth,
		OuterCount:  d.OuterCount,
		NoSmooth:    !d.Smooth,
	}
}

// Mesh returns the last uploaded buffers of a layer.
func (e *Editor) Mesh(layer string) (mesh.Buffers, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.builders[layer]
	if !ok {
		return mesh.Buffers{}, false
	}
	return b.Buffers(), true
}

// Decoration returns the shovel border built by the last Flush.
func (e *Editor) Decoration() ringfx.Decoration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.decor
}

func (e *Editor) Info() Info {
	e.mu.Lock()
	defer e.mu.Unlock()
	layer := e.activeLayer()
	o := e.eng.Options()
	inf := Info{
		Tool:         e.tool.String(),
		Mode:         e.mode.String(),
		Layer:        layer,
		Zoom:         e.zoom,
		BrushSize:    e.sizePx,
		SpacingPx:    o.SpacingPx,
		SpacingWorld: o.SpacingWorld(),
		LastStroke:   e.eng.Stats(),
		Strokes:      e.seq,
	}
	for _, a := range e.layers {
		if !a.IsEmpty() {
			inf.Layers++
		}
	}
	if a, ok := e.layers[layer]; ok {
		mp := a.Geometry()
		inf.Polygons = len(mp)
		inf.Vertices = mp.VertexCount()
	}
	inf.Triangles = e.meshes[layer].Triangles
	_, _, inf.UndoDepth = e.undo.Stats()
	return inf
}

// Load replaces the session state with doc: layers, stamps and zoom. Undo
// history is cleared.
func (e *Editor) Load(doc storage.Document) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.eng.State() == brush.Stroking {
		return ErrBusy
	}
	layers := make(map[string]*terrain.Area, len(doc.Layers))
	for name, mp := range doc.Layers {
		if name != storage.ShovelLayer {
			if _, _, ok := storage.SplitPaintLayer(name); !ok {
				return fmt.Errorf("%w: %q", ErrInvalidLayer, name)
			}
		}
		a := e.newArea()
		if err := a.SetGeometry(mp); err != nil {
			return fmt.Errorf("layer %q: %w", name, err)
		}
		layers[name] = a
	}
	for name := range e.layers {
		e.undo.ClearLayer(name)
	}
	e.layers = layers
	stamps := doc.Stamps
	if len(stamps) == 0 {
		stamps = []geom.Polygon{stamp.DefaultBlob()}
	}
	e.reg.SetAll(stamps)
	if doc.Zoom > 0 {
		e.zoom = e.cfg.Camera.ClampZoom(doc.Zoom)
		e.eng.SetZoom(e.zoom)
	}
	e.dirty = map[string]bool{}
	for name := range layers {
		e.dirty[name] = true
	}
	// layers missing from doc still have meshes on screen
	for name := range e.builders {
		e.dirty[name] = true
	}
	e.decor = ringfx.Decoration{}
	e.frame.Request()
	return nil
}

// Document writes the session into a copy of base: every non-empty layer,
// the camera zoom and the modification time. Stamps are left to base.
func (e *Editor) Document(base storage.Document) storage.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := base
	out.Layers = make(map[string]geom.MultiPolygon, len(e.layers))
	for name, a := range e.layers {
		if a.IsEmpty() {
			continue
		}
		out.Layers[name] = a.Geometry()
	}
	out.Zoom = e.zoom
	out.Modified = e.now().UTC()
	return out
}
