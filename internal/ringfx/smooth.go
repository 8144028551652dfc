/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ringfx

import (
	"math"

	"vecterrain/internal/geom"
)

// SmoothOptions tunes Smooth. Angles are in radians and measure the corner
// between a vertex's two edges: π is a straight line, 0 a full spike.
type SmoothOptions struct {
	Iterations int
	// Lambda is the pull toward the neighbours' midpoint at SoftAngle.
	Lambda float64
	// MaxLambda caps the pull on sharp corners.
	MaxLambda float64
	// SpikeAngle and ShortEdge select vertices that collapse outright.
	SpikeAngle float64
	SoftAngle  float64
	ShortEdge  float64
}

// DefaultSmooth suits shapes a few hundred world units across.
func DefaultSmooth() SmoothOptions {
	return SmoothOptions{
		Iterations: 2,
		Lambda:     0.25,
		MaxLambda:  0.6,
		SpikeAngle: 25 * math.Pi / 180,
		SoftAngle:  160 * math.Pi / 180,
		ShortEdge:  4,
	}
}

// SmoothFor scales DefaultSmooth to the size of b: small or rough shapes get
// more passes and a stronger pull.
func SmoothFor(b geom.Rect) SmoothOptions {
	o := DefaultSmooth()
	size := math.Max(b.W, b.H)
	switch {
	case size < 64:
		o.Iterations = 4
		o.Lambda = 0.35
	case size < 256:
		o.Iterations = 3
		o.Lambda = 0.3
	}
	return o
}

// Smooth relaxes r toward its neighbours' midpoints. Corners at or above
// SoftAngle are left alone, spikes between two short edges are collapsed and
// everything in between moves by a factor that grows as the corner sharpens.
// Each pass reads the previous pass, so the result does not depend on the
// starting vertex. Smooth returns nil if fewer than three distinct points
// remain.
func Smooth(r geom.Ring, o SmoothOptions) geom.Ring {
	if !r.Valid() {
		return nil
	}
	if o.Iterations <= 0 {
		if d := dedupe(r.Clone()); len(d) >= 3 {
			return d
		}
		return nil
	}
	if o.MaxLambda <= 0 {
		o.MaxLambda = 1
	}
	cur := r.Clone()
	next := make(geom.Ring, len(cur))
	for it := 0; it < o.Iterations; it++ {
		n := len(cur)
		next = next[:n]
		for i := 0; i < n; i++ {
			prev, p, nx := cur[(i-1+n)%n], cur[i], cur[(i+1)%n]
			next[i] = relax(prev, p, nx, o)
		}
		cur, next = dedupe(next), cur
		if len(cur) < 3 {
			return nil
		}
	}
	return cur
}

func relax(prev, p, next geom.Point, o SmoothOptions) geom.Point {
	a, b := prev.Sub(p), next.Sub(p)
	la, lb := a.Len(), b.Len()
	if la == 0 || lb == 0 {
		return p
	}
	mid := prev.Add(next).Mul(0.5)
	ang := cornerAngle(a, b, la, lb)
	switch {
	case ang <= o.SpikeAngle && la < o.ShortEdge && lb < o.ShortEdge:
		return mid
	case ang >= o.SoftAngle:
		return p
	}
	t := 1.0
	if span := o.SoftAngle - o.SpikeAngle; span > 0 {
		t = (o.SoftAngle - ang) / span
	}
	t = math.Min(1, math.Max(0, t))
	lambda := math.Min(o.MaxLambda, o.Lambda+t*(o.MaxLambda-o.Lambda))
	return p.Add(mid.Sub(p).Mul(lambda))
}

func cornerAngle(a, b geom.Point, la, lb float64) float64 {
	c := (a.X*b.X + a.Y*b.Y) / (la * lb)
	return math.Acos(math.Max(-1, math.Min(1, c)))
}

// dedupe drops consecutive coincident points, including a closing duplicate.
func dedupe(r geom.Ring) geom.Ring {
	const eps = 1e-9
	out := r[:0]
	for _, p := range r {
		if len(out) > 0 && out[len(out)-1].Eq(p, eps) {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && out[0].Eq(out[len(out)-1], eps) {
		out = out[:len(out)-1]
	}
	return out
}
