/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package clip runs polygon boolean operations on geom values. The default
// engine scales world coordinates onto the integer grid used by Clipper and
// rebuilds polygons with holes from the resulting poly tree.
package clip

import (
	"errors"
	"fmt"
	"math"

	clipper "github.com/ctessum/go.clipper"

	"vecterrain/internal/geom"
)

// ErrFailed is returned when the clipping algorithm rejects its input.
var ErrFailed = errors.New("clipping failed")

// DefaultScale maps 1 world unit to 10^4 grid units.
const DefaultScale = 1e4

// Engine is the boolean backend used by the terrain area.
type Engine interface {
	Union(a, b geom.MultiPolygon) (geom.MultiPolygon, error)
	Difference(a, b geom.MultiPolygon) (geom.MultiPolygon, error)
}

// Clipper is the Engine backed by github.com/ctessum/go.clipper.
type Clipper struct {
	// Scale converts world units to integer grid units.
	Scale float64
}

// New returns a Clipper at DefaultScale.
func New() *Clipper { return &Clipper{Scale: DefaultScale} }

// Union returns the union of a and b as non-overlapping polygons.
func (c *Clipper) Union(a, b geom.MultiPolygon) (geom.MultiPolygon, error) {
	return c.run(clipper.CtUnion, a, b)
}

// Difference returns a minus b.
func (c *Clipper) Difference(a, b geom.MultiPolygon) (geom.MultiPolygon, error) {
	return c.run(clipper.CtDifference, a, b)
}

func (c *Clipper) scale() float64 {
	if c == nil || c.Scale <= 0 {
		return DefaultScale
	}
	return c.Scale
}

func (c *Clipper) run(op clipper.ClipType, a, b geom.MultiPolygon) (out geom.MultiPolygon, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("%w: %v", ErrFailed, r)
		}
	}()
	s := c.scale()
	cl := clipper.NewClipper(clipper.IoNone)
	if subj := toPaths(a, s); len(subj) > 0 {
		cl.AddPaths(subj, clipper.PtSubject, true)
	}
	if cp := toPaths(b, s); len(cp) > 0 {
		cl.AddPaths(cp, clipper.PtClip, true)
	}
	tree, ok := cl.Execute2(op, clipper.PftNonZero, clipper.PftNonZero)
	if !ok || tree == nil {
		return nil, ErrFailed
	}
	return fromTree(tree, s), nil
}

func toPaths(mp geom.MultiPolygon, s float64) clipper.Paths {
	var out clipper.Paths
	for _, p := range mp {
		// Outer rings are fed counter-clockwise and holes clockwise so the
		// nonzero rule sees holes regardless of the caller's winding.
		if path := toPath(p.Outer, s, geom.CCW); len(path) >= 3 {
			out = append(out, path)
		}
		for _, h := range p.Holes {
			if path := toPath(h, s, geom.CW); len(path) >= 3 {
				out = append(out, path)
			}
		}
	}
	return out
}

func toPath(r geom.Ring, s float64, want geom.Winding) clipper.Path {
	if !r.Valid() {
		return nil
	}
	if w := r.Orientation(); w != want && w != geom.Degenerate {
		r = r.Reversed()
	}
	path := make(clipper.Path, 0, len(r))
	for _, p := range r {
		path = append(path, &clipper.IntPoint{
			X: clipper.CInt(math.Round(p.X * s)),
			Y: clipper.CInt(math.Round(p.Y * s)),
		})
	}
	return path
}

func fromPath(path clipper.Path, s float64) geom.Ring {
	if len(path) < 3 {
		return nil
	}
	r := make(geom.Ring, len(path))
	for i, ip := range path {
		r[i] = geom.Point{X: float64(ip.X) / s, Y: float64(ip.Y) / s}
	}
	return r
}

// fromTree walks outer nodes and their hole children. Outer nodes nested in
// a hole become separate polygons.
func fromTree(tree *clipper.PolyTree, s float64) geom.MultiPolygon {
	out := geom.MultiPolygon{}
	var visit func(n *clipper.PolyNode)
	visit = func(n *clipper.PolyNode) {
		outer := fromPath(n.Contour(), s)
		if outer == nil {
			return
		}
		if outer.Orientation() == geom.CW {
			outer = outer.Reversed()
		}
		poly := geom.Polygon{Outer: outer}
		var islands []*clipper.PolyNode
		for _, h := range n.Childs() {
			if hr := fromPath(h.Contour(), s); hr != nil {
				if hr.Orientation() == geom.CCW {
					hr = hr.Reversed()
				}
				poly.Holes = append(poly.Holes, hr)
			}
			islands = append(islands, h.Childs()...)
		}
		out = append(out, poly)
		for _, island := range islands {
			visit(island)
		}
	}
	for _, n := range tree.Childs() {
		visit(n)
	}
	return out
}
