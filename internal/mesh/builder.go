/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package mesh turns terrain polygons into GPU-ready triangle buffers.
package mesh

import (
	"errors"
	"fmt"
	"math"

	"vecterrain/internal/geom"
)

// ErrIndexRange reports an index that points past the vertex buffer.
var ErrIndexRange = errors.New("mesh index out of range")

// TextureSize is the world size of one texture repeat at repeat scale 1.
const TextureSize = 128

// MaxIndex16 is the largest vertex count addressable with 16-bit indices.
const MaxIndex16 = math.MaxUint16

// Buffers is one uploaded mesh. Exactly one of Indices16 and Indices32 is
// set.
type Buffers struct {
	Positions []float32 // x, y per vertex
	UVs       []float32 // u, v per vertex
	Indices16 []uint16
	Indices32 []uint32
}

func (b Buffers) VertexCount() int { return len(b.Positions) / 2 }
func (b Buffers) Wide() bool       { return b.Indices32 != nil }

func (b Buffers) IndexCount() int {
	if b.Wide() {
		return len(b.Indices32)
	}
	return len(b.Indices16)
}

// Index returns the i-th index regardless of width.
func (b Buffers) Index(i int) int {
	if b.Wide() {
		return int(b.Indices32[i])
	}
	return int(b.Indices16[i])
}

// Sink receives mesh updates. Buffers passed to Upload are owned by the
// Builder and stay valid until the next Update.
type Sink interface {
	Upload(b Buffers)
	Hide()
}

// SinkFuncs adapts two functions to a Sink; nil functions are skipped.
type SinkFuncs struct {
	OnUpload func(Buffers)
	OnHide   func()
}

func (s SinkFuncs) Upload(b Buffers) {
	if s.OnUpload != nil {
		s.OnUpload(b)
	}
}

func (s SinkFuncs) Hide() {
	if s.OnHide != nil {
		s.OnHide()
	}
}

// Stats describes the outcome of one Update.
type Stats struct {
	Polygons  int
	Vertices  int
	Triangles int
	Wide      bool
	// Rebuilt is set when the index buffer was reallocated for a new width.
	Rebuilt bool
	Hidden  bool
}

type Option func(*Builder)

// WithRepeatScale sets how many texture repeats cover TextureSize world units.
func WithRepeatScale(s float64) Option {
	return func(b *Builder) {
		if s > 0 {
			b.repeat = s
		}
	}
}

// Builder keeps the mesh for one layer and reuses its buffers across
// updates. It is not safe for concurrent use.
type Builder struct {
	sink    Sink
	repeat  float64
	buf     Buffers
	built   bool
	scratch []int
}

func NewBuilder(sink Sink, opts ...Option) *Builder {
	if sink == nil {
		sink = SinkFuncs{}
	}
	b := &Builder{sink: sink, repeat: 1}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Buffers returns the last built buffers.
func (b *Builder) Buffers() Buffers { return b.buf }

// Update rebuilds the mesh for mp and hands it to the sink. An empty input,
// or one that yields no triangles, hides the mesh instead of leaving stale
// geometry on screen.
func (b *Builder) Update(mp geom.MultiPolygon) (Stats, error) {
	var st Stats
	pos := b.buf.Positions[:0]
	uv := b.buf.UVs[:0]
	idx := b.scratch[:0]
	base := 0
	for _, p := range mp {
		if !p.Outer.Valid() {
			continue
		}
		coords, holes := Flatten(p)
		tris := Earcut(coords, holes, 2)
		if len(tris) == 0 {
			continue
		}
		st.Polygons++
		for i := 0; i < len(coords); i += 2 {
			x, y := coords[i], coords[i+1]
			pos = append(pos, float32(x), float32(y))
			uv = append(uv, float32(x*b.repeat/TextureSize), float32(y*b.repeat/TextureSize))
		}
		for _, t := range tris {
			idx = append(idx, t+base)
		}
		base += len(coords) / 2
	}
	b.scratch = idx
	b.buf.Positions = pos
	b.buf.UVs = uv

	if len(idx) == 0 {
		b.buf.Indices16 = b.buf.Indices16[:0]
		if b.buf.Indices32 != nil {
			b.buf.Indices32 = b.buf.Indices32[:0]
		}
		b.sink.Hide()
		st.Hidden = true
		return st, nil
	}
	for _, i := range idx {
		if i < 0 || i >= base {
			b.sink.Hide()
			st.Hidden = true
			return st, fmt.Errorf("update: index %d with %d vertices: %w", i, base, ErrIndexRange)
		}
	}

	wide := base > MaxIndex16
	st.Rebuilt = !b.built || wide != b.buf.Wide()
	if wide {
		if st.Rebuilt {
			b.buf.Indices16 = nil
			b.buf.Indices32 = make([]uint32, 0, len(idx))
		}
		out := b.buf.Indices32[:0]
		for _, i := range idx {
			out = append(out, uint32(i))
		}
		b.buf.Indices32 = out
	} else {
		if st.Rebuilt {
			b.buf.Indices32 = nil
			b.buf.Indices16 = make([]uint16, 0, len(idx))
		}
		out := b.buf.Indices16[:0]
		for _, i := range idx {
			out = append(out, uint16(i))
		}
		b.buf.Indices16 = out
	}
	b.built = true

	st.Vertices = base
	st.Triangles = len(idx) / 3
	st.Wide = wide
	b.sink.Upload(b.buf)
	return st, nil
}

// Flatten lays out the outer ring followed by each hole as x, y pairs and
// returns the vertex index at which each hole begins. Holes with fewer than
// three points are skipped.
func Flatten(p geom.Polygon) (coords []float64, holes []int) {
	n := p.VertexCount()
	coords = make([]float64, 0, 2*n)
	for _, pt := range p.Outer {
		coords = append(coords, pt.X, pt.Y)
	}
	for _, h := range p.Holes {
		if !h.Valid() {
			continue
		}
		holes = append(holes, len(coords)/2)
		for _, pt := range h {
			coords = append(coords, pt.X, pt.Y)
		}
	}
	return coords, holes
}

// Triangulate is Earcut over a single polygon.
func Triangulate(p geom.Polygon) []int {
	coords, holes := Flatten(p)
	return Earcut(coords, holes, 2)
}

// TriangleArea sums the unsigned area of every triangle in b.
func TriangleArea(b Buffers) float64 {
	var sum float64
	for i := 0; i+2 < b.IndexCount(); i += 3 {
		a, c, d := b.Index(i), b.Index(i+1), b.Index(i+2)
		ax, ay := float64(b.Positions[2*a]), float64(b.Positions[2*a+1])
		bx, by := float64(b.Positions[2*c]), float64(b.Positions[2*c+1])
		cx, cy := float64(b.Positions[2*d]), float64(b.Positions[2*d+1])
		sum += math.Abs((bx-ax)*(cy-ay)-(cx-ax)*(by-ay)) / 2
	}
	return sum
}
