/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geom

import (
	"fmt"

	"github.com/paulmach/orb"
)

// orb rings repeat the first point at the end; ours do not.

func (r Ring) ToOrb() orb.Ring {
	if len(r) == 0 {
		return nil
	}
	out := make(orb.Ring, 0, len(r)+1)
	for _, p := range r {
		out = append(out, orb.Point{p.X, p.Y})
	}
	return append(out, out[0])
}

func (p Polygon) ToOrb() orb.Polygon {
	out := make(orb.Polygon, 0, 1+len(p.Holes))
	out = append(out, p.Outer.ToOrb())
	for _, h := range p.Holes {
		out = append(out, h.ToOrb())
	}
	return out
}

func (mp MultiPolygon) ToOrb() orb.MultiPolygon {
	out := make(orb.MultiPolygon, 0, len(mp))
	for _, p := range mp {
		out = append(out, p.ToOrb())
	}
	return out
}

// RingFromOrb drops the closing duplicate if present.
func RingFromOrb(r orb.Ring) Ring {
	n := len(r)
	if n > 1 && r[0] == r[n-1] {
		n--
	}
	out := make(Ring, n)
	for i := 0; i < n; i++ {
		out[i] = Point{X: r[i][0], Y: r[i][1]}
	}
	return out
}

func PolygonFromOrb(p orb.Polygon) Polygon {
	if len(p) == 0 {
		return Polygon{}
	}
	out := Polygon{Outer: RingFromOrb(p[0])}
	for _, h := range p[1:] {
		out.Holes = append(out.Holes, RingFromOrb(h))
	}
	return out
}

func MultiPolygonFromOrb(mp orb.MultiPolygon) MultiPolygon {
	out := make(MultiPolygon, 0, len(mp))
	for _, p := range mp {
		out = append(out, PolygonFromOrb(p))
	}
	return out
}

// FromOrbGeometry accepts Polygon, MultiPolygon or Ring geometries, the
// shapes persisted documents and stamp packs contain.
func FromOrbGeometry(g orb.Geometry) (MultiPolygon, error) {
	switch v := g.(type) {
	case orb.Polygon:
		return MultiPolygon{PolygonFromOrb(v)}, nil
	case orb.MultiPolygon:
		return MultiPolygonFromOrb(v), nil
	case orb.Ring:
		return MultiPolygon{{Outer: RingFromOrb(v)}}, nil
	case nil:
		return nil, fmt.Errorf("%w: nil geometry", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: unsupported geometry type %s", ErrMalformed, g.GeoJSONType())
	}
}
