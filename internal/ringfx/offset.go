/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package ringfx derives decoration rings from terrain outlines: uniform
// offsets, smoothing and the layered border used by the renderer.
package ringfx

import (
	"math"

	"vecterrain/internal/geom"
)

// Offset moves every vertex of r by delta along the mean of the outward
// normals of its two adjacent edges. Positive delta grows the ring, negative
// shrinks it, for either winding. This is not a mitred offset: sharp concave
// corners may self-intersect.
//
// Offset returns nil when r has fewer than three points or no area.
func Offset(r geom.Ring, delta float64) geom.Ring {
	if !r.Valid() {
		return nil
	}
	area := r.SignedArea()
	if area == 0 || math.IsNaN(area) {
		return nil
	}
	// (dy, -dx) points outward on a CCW ring.
	side := 1.0
	if area < 0 {
		side = -1
	}
	n := len(r)
	out := make(geom.Ring, n)
	for i := 0; i < n; i++ {
		prev := r[(i-1+n)%n]
		curr := r[i]
		next := r[(i+1)%n]
		nrm := edgeNormal(prev, curr, side).Add(edgeNormal(curr, next, side))
		if l := nrm.Len(); l > 0 {
			nrm = nrm.Mul(1 / l)
		}
		out[i] = curr.Add(nrm.Mul(delta))
	}
	return out
}

// edgeNormal is the unit outward normal of a->b, or zero for a zero-length edge.
func edgeNormal(a, b geom.Point, side float64) geom.Point {
	d := b.Sub(a)
	l := d.Len()
	if l == 0 {
		return geom.Point{}
	}
	return geom.Point{X: d.Y / l * side, Y: -d.X / l * side}
}

// OffsetPolygon offsets the outer ring by delta and each hole by -delta so
// that the filled region grows (or shrinks) consistently. Rings that
// degenerate are dropped; a lost outer ring yields the zero Polygon.
func OffsetPolygon(p geom.Polygon, delta float64) geom.Polygon {
	outer := Offset(p.Outer, delta)
	if outer == nil {
		return geom.Polygon{}
	}
	res := geom.Polygon{Outer: outer}
	for _, h := range p.Holes {
		if oh := Offset(h, -delta); oh != nil {
			res.Holes = append(res.Holes, oh)
		}
	}
	return res
}
