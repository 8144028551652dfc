/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geom

import (
	"errors"
	"fmt"
	"math"
)

// ErrMalformed is returned for rings that are not usable closed 2D contours.
var ErrMalformed = errors.New("malformed geometry")

// Ring is a closed contour. The closing point is implicit: the last point is
// not a copy of the first.
type Ring []Point

// Polygon is an outer ring with zero or more holes inside it.
type Polygon struct {
	Outer Ring
	Holes []Ring
}

// MultiPolygon is an ordered set of polygons.
type MultiPolygon []Polygon

// Winding is the vertex order of a ring in a y-up frame.
type Winding int

const (
	Degenerate Winding = iota
	CCW
	CW
)

func (w Winding) String() string {
	switch w {
	case CCW:
		return "ccw"
	case CW:
		return "cw"
	default:
		return "degenerate"
	}
}

// Valid reports whether the ring has enough points to enclose area.
func (r Ring) Valid() bool { return len(r) >= 3 }

// SignedArea is the shoelace area; positive for counter-clockwise rings.
func (r Ring) SignedArea() float64 {
	n := len(r)
	if n < 3 {
		return 0
	}
	var a float64
	for i := 0; i < n; i++ {
		p := r[i]
		q := r[(i+1)%n]
		a += p.X*q.Y - q.X*p.Y
	}
	return a / 2
}

func (r Ring) Orientation() Winding {
	a := r.SignedArea()
	switch {
	case a > 0:
		return CCW
	case a < 0:
		return CW
	default:
		return Degenerate
	}
}

// Centroid is the unweighted mean of the vertices.
func (r Ring) Centroid() Point {
	if len(r) == 0 {
		return Point{}
	}
	var sx, sy float64
	for _, p := range r {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(r))
	return Point{sx / n, sy / n}
}

func (r Ring) Bounds() Rect {
	if len(r) == 0 {
		return Rect{}
	}
	minX, minY := r[0].X, r[0].Y
	maxX, maxY := minX, minY
	for _, p := range r[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

func (r Ring) Clone() Ring {
	if r == nil {
		return nil
	}
	out := make(Ring, len(r))
	copy(out, r)
	return out
}

// Reversed returns a copy with the opposite winding.
func (r Ring) Reversed() Ring {
	out := make(Ring, len(r))
	for i, p := range r {
		out[len(r)-1-i] = p
	}
	return out
}

// Validate fails for rings with fewer than three points or non-finite values.
func (r Ring) Validate() error {
	if len(r) < 3 {
		return fmt.Errorf("%w: ring has %d points, need at least 3", ErrMalformed, len(r))
	}
	for i, p := range r {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return fmt.Errorf("%w: non-finite coordinate at index %d", ErrMalformed, i)
		}
	}
	return nil
}

func (p Polygon) Clone() Polygon {
	out := Polygon{Outer: p.Outer.Clone()}
	if p.Holes != nil {
		out.Holes = make([]Ring, len(p.Holes))
		for i, h := range p.Holes {
			out.Holes[i] = h.Clone()
		}
	}
	return out
}

// Area is the absolute outer area minus the absolute hole areas.
func (p Polygon) Area() float64 {
	a := math.Abs(p.Outer.SignedArea())
	for _, h := range p.Holes {
		a -= math.Abs(h.SignedArea())
	}
	return a
}

func (p Polygon) VertexCount() int {
	n := len(p.Outer)
	for _, h := range p.Holes {
		n += len(h)
	}
	return n
}

func (p Polygon) Validate() error {
	if err := p.Outer.Validate(); err != nil {
		return fmt.Errorf("outer ring: %w", err)
	}
	for i, h := range p.Holes {
		if err := h.Validate(); err != nil {
			return fmt.Errorf("hole %d: %w", i, err)
		}
	}
	return nil
}

func (mp MultiPolygon) Clone() MultiPolygon {
	if mp == nil {
		return nil
	}
	out := make(MultiPolygon, len(mp))
	for i, p := range mp {
		out[i] = p.Clone()
	}
	return out
}

func (mp MultiPolygon) Area() float64 {
	var a float64
	for _, p := range mp {
		a += p.Area()
	}
	return a
}

func (mp MultiPolygon) VertexCount() int {
	n := 0
	for _, p := range mp {
		n += p.VertexCount()
	}
	return n
}

func (mp MultiPolygon) Bounds() Rect {
	var b Rect
	first := true
	for _, p := range mp {
		rb := p.Outer.Bounds()
		if len(p.Outer) == 0 {
			continue
		}
		if first {
			b = rb
			first = false
			continue
		}
		b = b.Union(rb)
	}
	return b
}

func (mp MultiPolygon) Validate() error {
	for i, p := range mp {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("polygon %d: %w", i, err)
		}
	}
	return nil
}

// FilterTiny drops polygons whose outer ring encloses less than minArea and
// holes that collapsed below three points.
func (mp MultiPolygon) FilterTiny(minArea float64) MultiPolygon {
	out := make(MultiPolygon, 0, len(mp))
	for _, p := range mp {
		if !p.Outer.Valid() || math.Abs(p.Outer.SignedArea()) < minArea {
			continue
		}
		var holes []Ring
		for _, h := range p.Holes {
			if h.Valid() {
				holes = append(holes, h)
			}
		}
		out = append(out, Polygon{Outer: p.Outer, Holes: holes})
	}
	return out
}
