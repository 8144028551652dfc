/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package stamp

import (
	"vecterrain/internal/geom"
)

// Pivot is the center of scale and rotation. The zero value is the local
// origin.
type Pivot struct {
	centroid bool
	at       geom.Point
}

// PivotAt pivots around an explicit point.
func PivotAt(p geom.Point) Pivot { return Pivot{at: p} }

// PivotCentroid pivots around the vertex mean of the outer ring.
func PivotCentroid() Pivot { return Pivot{centroid: true} }

func (p Pivot) IsCentroid() bool { return p.centroid }

// Params describes one stamp placement.
type Params struct {
	Translate geom.Point
	// Scale is uniform; 0 means 1.
	Scale float64
	// Rotation in radians.
	Rotation float64
	Pivot    Pivot
}

// Matrix returns T(pivot+translate) * R * S * T(-pivot) for the given outer ring.
func (pr Params) Matrix(outer geom.Ring) geom.Affine2D {
	s := pr.Scale
	if s == 0 {
		s = 1
	}
	pivot := pr.Pivot.at
	if pr.Pivot.centroid {
		pivot = outer.Centroid()
	}
	return geom.Translate(pivot.X+pr.Translate.X, pivot.Y+pr.Translate.Y).
		Mul(geom.Rotate(pr.Rotation)).
		Mul(geom.Scale(s, s)).
		Mul(geom.Translate(-pivot.X, -pivot.Y))
}

// Transform returns a new polygon: scale, then rotation, then translation,
// all around the pivot. Holes share the outer ring's pivot. A closing point
// equal to the first is dropped. p is not modified.
func Transform(p geom.Polygon, pr Params) geom.Polygon {
	outer := stripClosing(p.Outer)
	m := pr.Matrix(outer)
	out := geom.Polygon{Outer: m.ApplyRing(outer)}
	for _, h := range p.Holes {
		out.Holes = append(out.Holes, m.ApplyRing(stripClosing(h)))
	}
	return out
}

func stripClosing(r geom.Ring) geom.Ring {
	if n := len(r); n > 1 && r[0] == r[n-1] {
		return r[:n-1]
	}
	return r
}

// defaultBlobFlat is the built-in stamp as x,y pairs in unit space.
var defaultBlobFlat = []float64{
	-0.5875, -0.815625, -0.475, -0.821875, -0.16875, -0.596875, 0, -0.703125,
	0.28125, -0.603125, 0.30625, -0.009375, 0.0625, 0.078125, -0.15625, 0.378125,
	-0.3, 0.396875, -0.6125, 0.090625, -0.4625, -0.078125, -0.8375, -0.484375,
}

// DefaultBlobScale maps the unit blob to world units.
const DefaultBlobScale = 128

// DefaultBlob returns the built-in irregular blob stamp.
func DefaultBlob() geom.Polygon {
	r, _ := RingFromFlat(defaultBlobFlat, DefaultBlobScale, geom.Point{})
	return geom.Polygon{Outer: r}
}

// RingFromFlat builds a ring from x,y pairs, scaled then translated.
func RingFromFlat(flat []float64, scale float64, translate geom.Point) (geom.Ring, error) {
	if len(flat)%2 != 0 {
		return nil, errOddFlat
	}
	r := make(geom.Ring, 0, len(flat)/2)
	for i := 0; i < len(flat); i += 2 {
		r = append(r, geom.Point{X: flat[i]*scale + translate.X, Y: flat[i+1]*scale + translate.Y})
	}
	return r, nil
}
