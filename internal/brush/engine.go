/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package brush turns pointer events into stamp placements. Stamps are
// spaced by a jittered distance threshold measured in world units, so the
// on-screen density does not depend on zoom. With per-stroke accumulation
// the target area is mutated once per stroke.
package brush

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/paulmach/orb/simplify"

	"vecterrain/internal/frame"
	"vecterrain/internal/geom"
	applog "vecterrain/internal/log"
	"vecterrain/internal/stamp"
	"vecterrain/internal/terrain"
)

// ErrAlreadyStroking is returned by PointerDown during a stroke.
var ErrAlreadyStroking = errors.New("pointer down while stroking")

// Target is the authoritative area a stroke is merged into.
type Target interface {
	AddStamp(s geom.Shape) error
	EraseStamp(s geom.Shape) error
}

// Rand is the random source for rotations, spacing jitter and stamp choice.
type Rand interface {
	Float64() float64
}

// NewRand returns a seeded source.
func NewRand(seed int64) Rand { return rand.New(rand.NewSource(seed)) }

// State of the engine.
type State int

const (
	Idle State = iota
	Stroking
)

func (s State) String() string {
	if s == Stroking {
		return "stroking"
	}
	return "idle"
}

// Stats counts the work done by the current or last stroke.
type Stats struct {
	Stamps   int
	Capsules int
	// Commits counts mutations of the target.
	Commits int
}

// DebugInfo describes the most recent stamp placement.
type DebugInfo struct {
	P                geom.Point
	Prev             geom.Point
	HasPrev          bool
	Zoom             float64
	SpacingWorld     float64
	NextSpacingWorld float64
	DistAccWorld     float64
	CapsuleRadius    float64
	Rotation         float64
}

// Engine is a single-stroke state machine. It is not safe for concurrent use.
type Engine struct {
	target Target
	reg    *stamp.Registry
	opts   Options

	rng       Rand
	now       func() time.Time
	sched     frame.Scheduler
	log       *slog.Logger
	onDebug   func(DebugInfo)
	newStroke func(Options) *terrain.Area

	state       State
	lastSeen    geom.Point
	lastStamp   geom.Point
	lastStampAt time.Time
	dist        float64
	next        float64
	stroke      *terrain.Area
	stats       Stats
	debug       DebugInfo
}

// Option injects a dependency.
type Option func(*Engine)

func WithRand(r Rand) Option {
	return func(e *Engine) {
		if r != nil {
			e.rng = r
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithScheduler(s frame.Scheduler) Option {
	return func(e *Engine) {
		if s != nil {
			e.sched = s
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithDebug registers a callback invoked after every stamp.
func WithDebug(fn func(DebugInfo)) Option { return func(e *Engine) { e.onDebug = fn } }

// WithStrokeArea overrides how the per-stroke area is created.
func WithStrokeArea(fn func(Options) *terrain.Area) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newStroke = fn
		}
	}
}

// New returns an idle engine writing into target with stamps from reg.
func New(target Target, reg *stamp.Registry, opts Options, deps ...Option) *Engine {
	opts.normalize()
	e := &Engine{
		target: target,
		reg:    reg,
		opts:   opts,
		now:    time.Now,
		sched:  frame.Nop{},
		newStroke: func(o Options) *terrain.Area {
			return terrain.New(terrain.WithPolicy(o.StrokePolicy))
		},
	}
	for _, d := range deps {
		d(e)
	}
	if e.rng == nil {
		e.rng = NewRand(e.now().UnixNano())
	}
	if e.log == nil {
		e.log = applog.WithComponent("brush")
	}
	return e
}

func (e *Engine) State() State         { return e.state }
func (e *Engine) Options() Options     { return e.opts }
func (e *Engine) Stats() Stats         { return e.stats }
func (e *Engine) LastDebug() DebugInfo { return e.debug }

// Preview returns a copy of the in-progress stroke, or an empty set.
func (e *Engine) Preview() geom.MultiPolygon {
	if e.stroke == nil {
		return geom.MultiPolygon{}
	}
	return e.stroke.Geometry()
}

// PointerDown starts a stroke and stamps once at p.
func (e *Engine) PointerDown(p geom.Point) error {
	if e.state == Stroking {
		return ErrAlreadyStroking
	}
	e.state = Stroking
	e.stats = Stats{}
	e.lastSeen = p
	e.dist = 0
	e.next = e.drawThreshold()
	if e.opts.AccumulatePerStroke {
		e.stroke = e.newStroke(e.opts)
	}
	err := e.applyAt(p, e.randomAngle(), nil)
	e.lastStamp = p
	e.lastStampAt = e.now()
	return err
}

// PointerMove accumulates travelled distance and stamps when the current
// threshold is reached.
func (e *Engine) PointerMove(p geom.Point) error {
	if e.state != Stroking {
		return nil
	}
	e.dist += p.Dist(e.lastSeen)
	e.lastSeen = p
	if e.opts.MinInterval > 0 && e.now().Sub(e.lastStampAt) < e.opts.MinInterval {
		return nil
	}
	if e.dist < e.next {
		return nil
	}
	prev := e.lastStamp
	err := e.applyAt(p, e.randomAngle(), &prev)
	e.dist = 0
	e.next = e.drawThreshold()
	e.lastStamp = p
	e.lastStampAt = e.now()
	return err
}

// PointerUp merges the stroke into the target once and returns to idle.
func (e *Engine) PointerUp() error {
	if e.state != Stroking {
		return nil
	}
	stroke := e.stroke
	e.stroke = nil
	e.state = Idle
	if !e.opts.AccumulatePerStroke || stroke == nil {
		return nil
	}
	l := applog.WithOperation(e.log, "pointerUp")
	if err := stroke.Commit(); err != nil {
		l.Error("stroke commit failed", slog.Any("err", err))
		return fmt.Errorf("commit stroke: %w", err)
	}
	if stroke.IsEmpty() {
		return nil
	}
	geo := stroke.Geometry()
	if e.opts.Simplify {
		if eps := e.opts.simplifyEpsilon(); eps > 0 {
			geo = simplifyMulti(geo, eps)
		}
	}
	if len(geo) == 0 {
		return nil
	}
	var err error
	if e.opts.Mode == Erase {
		err = e.target.EraseStamp(geom.MultiShape(geo))
	} else {
		err = e.target.AddStamp(geom.MultiShape(geo))
	}
	e.sched.Request()
	if err != nil {
		l.Error("stroke merge failed", slog.String("mode", e.opts.Mode.String()), slog.Any("err", err))
		return fmt.Errorf("merge stroke: %w", err)
	}
	e.stats.Commits++
	l.Debug("stroke merged",
		slog.String("mode", e.opts.Mode.String()),
		slog.Int("stamps", e.stats.Stamps),
		slog.Int("capsules", e.stats.Capsules),
		slog.Int("polygons", len(geo)),
	)
	return nil
}

// Cancel drops the in-progress stroke without touching the target.
func (e *Engine) Cancel() {
	e.stroke = nil
	e.state = Idle
	e.sched.Request()
}

func (e *Engine) applyAt(p geom.Point, rot float64, prev *geom.Point) error {
	if e.reg == nil || e.reg.Count() == 0 {
		return nil
	}
	base, err := e.pickStamp()
	if err != nil {
		return err
	}
	poly := stamp.Transform(base, stamp.Params{
		Translate: p,
		Scale:     e.opts.Scale,
		Rotation:  rot,
		Pivot:     stamp.PivotCentroid(),
	})
	var capsule *geom.Polygon
	if e.opts.UseCapsule && prev != nil && prev.Dist(p) > 1e-9 {
		c := geom.Polygon{Outer: Capsule(*prev, p, e.opts.capsuleRadius(), e.opts.CapsuleSteps)}
		capsule = &c
	}

	e.debug = DebugInfo{
		P:                p,
		Zoom:             e.opts.Zoom,
		SpacingWorld:     e.opts.SpacingWorld(),
		NextSpacingWorld: e.next,
		DistAccWorld:     e.dist,
		CapsuleRadius:    e.opts.capsuleRadius(),
		Rotation:         rot,
	}
	if prev != nil {
		e.debug.Prev, e.debug.HasPrev = *prev, true
	}

	if e.opts.AccumulatePerStroke {
		if e.stroke == nil {
			e.stroke = e.newStroke(e.opts)
		}
		if err := e.stroke.AddStamp(geom.PolygonShape(poly)); err != nil {
			return fmt.Errorf("stamp into stroke: %w", err)
		}
		e.stats.Stamps++
		if capsule != nil {
			if err := e.stroke.AddStamp(geom.PolygonShape(*capsule)); err != nil {
				return fmt.Errorf("capsule into stroke: %w", err)
			}
			e.stats.Capsules++
		}
	} else {
		apply := e.target.AddStamp
		if e.opts.Mode == Erase {
			apply = e.target.EraseStamp
		}
		if err := apply(geom.PolygonShape(poly)); err != nil {
			return fmt.Errorf("stamp into area: %w", err)
		}
		e.stats.Stamps++
		e.stats.Commits++
		if capsule != nil {
			if err := apply(geom.PolygonShape(*capsule)); err != nil {
				return fmt.Errorf("capsule into area: %w", err)
			}
			e.stats.Capsules++
			e.stats.Commits++
		}
	}
	if e.onDebug != nil {
		e.onDebug(e.debug)
	}
	e.sched.Request()
	return nil
}

func (e *Engine) pickStamp() (geom.Polygon, error) {
	if e.opts.StampIndex >= 0 {
		return e.reg.Get(e.opts.StampIndex)
	}
	p, _, err := e.reg.Random(e.rng)
	return p, err
}

// drawThreshold returns spacing * (1 + jitter*(2r-1)).
func (e *Engine) drawThreshold() float64 {
	base := e.opts.SpacingWorld()
	if e.opts.Jitter == 0 {
		return base
	}
	r := e.rng.Float64()
	return base * (1 + e.opts.Jitter*(2*r-1))
}

func (e *Engine) randomAngle() float64 {
	a, b := e.opts.RotationMin, e.opts.RotationMax
	if a == b {
		return a
	}
	return a + e.rng.Float64()*(b-a)
}

// Configuration. Changes apply from the next threshold or stamp.

func (e *Engine) SetZoom(z float64) {
	if z > 0 && !math.IsInf(z, 0) {
		e.opts.Zoom = z
	}
}

func (e *Engine) SetSpacingPx(px float64) { e.opts.SpacingPx = math.Max(1, px) }
func (e *Engine) SetJitter(j float64)     { e.opts.Jitter = clampJitter(j) }
func (e *Engine) SetMode(m Mode)          { e.opts.Mode = m }
func (e *Engine) SetUseCapsule(on bool)   { e.opts.UseCapsule = on }

func (e *Engine) SetScale(s float64) {
	if s > 0 {
		e.opts.Scale = s
	}
}

func (e *Engine) SetRotationRange(lo, hi float64) {
	if lo > hi {
		lo, hi = hi, lo
	}
	e.opts.RotationMin, e.opts.RotationMax = lo, hi
}

// SetAccumulate switches stroke accumulation. It is ignored mid-stroke.
func (e *Engine) SetAccumulate(on bool) {
	if e.state == Stroking {
		return
	}
	e.opts.AccumulatePerStroke = on
}

func simplifyMulti(mp geom.MultiPolygon, eps float64) geom.MultiPolygon {
	out := simplify.DouglasPeucker(eps).MultiPolygon(mp.ToOrb())
	return geom.MultiPolygonFromOrb(out).FilterTiny(1e-9)
}
