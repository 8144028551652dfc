/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package terrain owns the authoritative painted region. The region only
// changes through union (AddStamp) and difference (EraseStamp) so every
// polygon it holds came out of the clipping engine or a validated input.
package terrain

import (
	"errors"
	"fmt"
	"strings"

	"vecterrain/internal/clip"
	"vecterrain/internal/geom"
)

var (
	// ErrInvalidInput marks malformed rings passed to a mutator.
	ErrInvalidInput = errors.New("invalid terrain input")
	// ErrClip wraps a failure of the boolean backend.
	ErrClip = errors.New("terrain boolean operation failed")
)

// DefaultMinArea is the outer-ring area below which polygons are dropped.
const DefaultMinArea = 1e-2

// Policy selects how AddStamp writes into a non-empty area.
type Policy int

const (
	// PolicyUnion unions every add into the current set.
	PolicyUnion Policy = iota
	// PolicyAppend appends polygons as possibly overlapping entries and
	// defers the union to Commit.
	PolicyAppend
)

func (p Policy) String() string {
	if p == PolicyAppend {
		return "append"
	}
	return "union"
}

// ParsePolicy maps "union" / "append" to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "union":
		return PolicyUnion, nil
	case "append":
		return PolicyAppend, nil
	default:
		return PolicyUnion, fmt.Errorf("unknown merge policy %q", s)
	}
}

// Area holds one MultiPolygon. It is not safe for concurrent mutation.
type Area struct {
	mp      geom.MultiPolygon
	minArea float64
	policy  Policy
	engine  clip.Engine
	// pending is true while appended polygons may overlap.
	pending bool
}

// Option configures an Area.
type Option func(*Area)

// WithMinArea sets the area below which polygons are dropped; negative
// values are ignored.
func WithMinArea(eps float64) Option {
	return func(a *Area) {
		if eps >= 0 {
			a.minArea = eps
		}
	}
}

// WithPolicy selects the write policy.
func WithPolicy(p Policy) Option { return func(a *Area) { a.policy = p } }

// WithClipper replaces the boolean backend; nil keeps the default.
func WithClipper(e clip.Engine) Option {
	return func(a *Area) {
		if e != nil {
			a.engine = e
		}
	}
}

// New returns an empty area.
func New(opts ...Option) *Area {
	a := &Area{minArea: DefaultMinArea, engine: clip.New()}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Area) Policy() Policy { return a.policy }
func (a *Area) IsEmpty() bool  { return len(a.mp) == 0 }
func (a *Area) Len() int       { return len(a.mp) }

// Geometry returns a deep copy of the current polygons.
func (a *Area) Geometry() geom.MultiPolygon {
	out := a.mp.Clone()
	if out == nil {
		out = geom.MultiPolygon{}
	}
	return out
}

// SetGeometry replaces the state with a filtered copy of mp.
func (a *Area) SetGeometry(mp geom.MultiPolygon) error {
	in, err := geom.MultiShape(mp).Normalize()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	a.mp = in.FilterTiny(a.minArea)
	a.pending = false
	return nil
}

func (a *Area) Clear() {
	a.mp = nil
	a.pending = false
}

// AddStamp unions s into the area, or appends it under PolicyAppend.
func (a *Area) AddStamp(s geom.Shape) error {
	in, err := s.Normalize()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if len(in) == 0 {
		return nil
	}
	if a.IsEmpty() {
		a.mp = in.FilterTiny(a.minArea)
		a.pending = a.policy == PolicyAppend && len(a.mp) > 1
		return nil
	}
	if a.policy == PolicyAppend {
		a.mp = append(a.mp, in.FilterTiny(a.minArea)...)
		a.pending = true
		return nil
	}
	out, err := a.engine.Union(a.mp, in)
	if err != nil {
		return fmt.Errorf("%w: union: %w", ErrClip, err)
	}
	a.mp = out.FilterTiny(a.minArea)
	return nil
}

// EraseStamp subtracts s from the area. Erasing from an empty area is a no-op.
func (a *Area) EraseStamp(s geom.Shape) error {
	in, err := s.Normalize()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if a.IsEmpty() || len(in) == 0 {
		return nil
	}
	if err := a.Commit(); err != nil {
		return err
	}
	out, err := a.engine.Difference(a.mp, in)
	if err != nil {
		return fmt.Errorf("%w: difference: %w", ErrClip, err)
	}
	a.mp = out.FilterTiny(a.minArea)
	return nil
}

// Commit unions entries appended under PolicyAppend into a normalized set.
func (a *Area) Commit() error {
	if !a.pending {
		return nil
	}
	out, err := a.engine.Union(a.mp, nil)
	if err != nil {
		return fmt.Errorf("%w: commit: %w", ErrClip, err)
	}
	a.mp = out.FilterTiny(a.minArea)
	a.pending = false
	return nil
}

// Pending reports whether appended entries still await Commit.
func (a *Area) Pending() bool { return a.pending }
