/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package brush

import (
	"fmt"
	"math"
	"strings"
	"time"

	"vecterrain/internal/terrain"
)

// Mode selects whether a stroke grows or shrinks the target area.
type Mode int

const (
	Paint Mode = iota
	Erase
)

func (m Mode) String() string {
	if m == Erase {
		return "erase"
	}
	return "paint"
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "paint", "add":
		return Paint, nil
	case "erase", "remove":
		return Erase, nil
	default:
		return Paint, fmt.Errorf("unknown brush mode %q", s)
	}
}

// Options configures an Engine. Start from DefaultOptions; the zero value
// disables capsules, accumulation and simplification.
type Options struct {
	// SpacingPx is the stamp spacing in screen pixels; world spacing is
	// SpacingPx / Zoom.
	SpacingPx float64
	Zoom      float64
	// Jitter is the fraction by which each spacing threshold varies.
	Jitter      float64
	RotationMin float64
	RotationMax float64
	Scale       float64
	// CapsuleRadius in world units; 0 means max(6, 8*Scale).
	CapsuleRadius float64
	CapsuleSteps  int
	UseCapsule    bool
	// AccumulatePerStroke collects stamps into a stroke area and touches
	// the target once, at pointer-up.
	AccumulatePerStroke bool
	// MinInterval throttles stamping; distance keeps accumulating.
	MinInterval time.Duration
	Simplify    bool
	// SimplifyFactor times the brush size (Scale*128) is the
	// Douglas-Peucker tolerance used at pointer-up.
	SimplifyFactor float64
	Mode           Mode
	// StrokePolicy is the write policy of the per-stroke area.
	StrokePolicy terrain.Policy
	// StampIndex picks a fixed registry entry; negative picks at random.
	StampIndex int
}

// DefaultOptions mirrors the editor's stock brush.
func DefaultOptions() Options {
	return Options{
		SpacingPx:           10,
		Zoom:                1,
		RotationMin:         0,
		RotationMax:         2 * math.Pi,
		Scale:               1,
		CapsuleSteps:        4,
		UseCapsule:          true,
		AccumulatePerStroke: true,
		Simplify:            true,
		SimplifyFactor:      0.01,
		Mode:                Paint,
		StrokePolicy:        terrain.PolicyUnion,
	}
}

// BrushSize is the nominal stamp size in world units for a scale.
const BrushSize = 128

// SpacingForSize is the editor's spacing rule: max(14, 0.8*size) pixels.
func SpacingForSize(sizePx float64) float64 { return math.Max(14, 0.8*sizePx) }

// ScaleForSize maps a UI brush size in pixels to a stamp scale.
func ScaleForSize(sizePx float64) float64 { return sizePx / 64 }

func (o *Options) normalize() {
	if o.SpacingPx < 1 {
		o.SpacingPx = 1
	}
	if o.Zoom <= 0 {
		o.Zoom = 1
	}
	if o.Scale <= 0 {
		o.Scale = 1
	}
	o.Jitter = clampJitter(o.Jitter)
	if o.CapsuleSteps <= 0 {
		o.CapsuleSteps = 4
	}
	if o.SimplifyFactor < 0 {
		o.SimplifyFactor = 0
	}
}

func clampJitter(j float64) float64 {
	switch {
	case j < 0 || math.IsNaN(j):
		return 0
	case j > 0.95:
		return 0.95
	default:
		return j
	}
}

// SpacingWorld is the base spacing in world units at the current zoom.
func (o Options) SpacingWorld() float64 { return o.SpacingPx / o.Zoom }

// capsuleRadius is in world units.
func (o Options) capsuleRadius() float64 {
	if o.CapsuleRadius > 0 {
		return o.CapsuleRadius
	}
	return math.Max(6, 8*o.Scale)
}

func (o Options) simplifyEpsilon() float64 {
	return o.SimplifyFactor * o.Scale * BrushSize
}
