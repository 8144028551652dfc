/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package stamp

import (
	"errors"
	"math"
	"testing"

	"vecterrain/internal/geom"
)

var tri = geom.Polygon{Outer: geom.Ring{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 5, Y: 10}}}

func TestRegistryClonesOnReadAndWrite(t *testing.T) {
	src := tri.Clone()
	r := NewRegistry(src)
	src.Outer[0].X = 42
	got, err := r.Get(0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Outer[0].X != 0 {
		t.Fatalf("registry aliased the input")
	}
	got.Outer[1].X = 42
	again, _ := r.Get(0)
	if again.Outer[1].X != 10 {
		t.Fatalf("registry aliased the output")
	}
}

func TestRegistryAppendAndCount(t *testing.T) {
	r := NewRegistry()
	if r.Count() != 0 {
		t.Fatalf("expected empty registry")
	}
	if i := r.Append(tri); i != 0 {
		t.Fatalf("first index = %d", i)
	}
	if i := r.Append(DefaultBlob()); i != 1 {
		t.Fatalf("second index = %d", i)
	}
	if r.Count() != 2 || len(r.All()) != 2 {
		t.Fatalf("count = %d", r.Count())
	}
	r.SetAll([]geom.Polygon{tri})
	if r.Count() != 1 {
		t.Fatalf("SetAll should replace, count = %d", r.Count())
	}
}

func TestRegistryOutOfRange(t *testing.T) {
	r := NewRegistry(tri)
	for _, i := range []int{-1, 1, 99} {
		if _, err := r.Get(i); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("Get(%d): expected ErrOutOfRange, got %v", i, err)
		}
	}
}

type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

func TestRegistryRandom(t *testing.T) {
	r := NewRegistry(tri, DefaultBlob())
	if _, i, err := r.Random(fixedRand(0.99)); err != nil || i != 1 {
		t.Fatalf("random pick: %d %v", i, err)
	}
	if _, _, err := NewRegistry().Random(fixedRand(0)); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestTransformTranslateOnly(t *testing.T) {
	out := Transform(tri, Params{Translate: geom.Point{X: 100, Y: 100}, Scale: 1, Pivot: PivotCentroid()})
	for i, p := range out.Outer {
		want := tri.Outer[i].Add(geom.Point{X: 100, Y: 100})
		if !p.Eq(want, 1e-9) {
			t.Fatalf("vertex %d = %+v, want %+v", i, p, want)
		}
	}
	if tri.Outer[0] != (geom.Point{}) {
		t.Fatalf("Transform mutated its input")
	}
}

func TestTransformScaleRotateAroundCentroid(t *testing.T) {
	sq := geom.Polygon{
		Outer: geom.Ring{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 2}, {X: 0, Y: 2}},
		Holes: []geom.Ring{{{X: 0.5, Y: 0.5}, {X: 0.5, Y: 1.5}, {X: 1.5, Y: 1.5}, {X: 1.5, Y: 0.5}}},
	}
	out := Transform(sq, Params{Scale: 2, Rotation: math.Pi / 2, Pivot: PivotCentroid()})
	if c := out.Outer.Centroid(); !c.Eq(geom.Point{X: 1, Y: 1}, 1e-9) {
		t.Fatalf("centroid moved: %+v", c)
	}
	if a := math.Abs(out.Outer.SignedArea()); math.Abs(a-16) > 1e-9 {
		t.Fatalf("scaled area = %v, want 16", a)
	}
	// (0,0) -> scaled (-2,-2) around (1,1) -> rotated (2,-2) -> (3,-1)
	if !out.Outer[0].Eq(geom.Point{X: 3, Y: -1}, 1e-9) {
		t.Fatalf("first vertex = %+v", out.Outer[0])
	}
	// hole uses the same pivot: (0.5,0.5) -> (-1,-1) -> (1,-1) -> (2,0)
	if !out.Holes[0][0].Eq(geom.Point{X: 2, Y: 0}, 1e-9) {
		t.Fatalf("hole vertex = %+v", out.Holes[0][0])
	}
}

func TestTransformExplicitPivotAndZeroScale(t *testing.T) {
	out := Transform(tri, Params{Rotation: math.Pi, Pivot: PivotAt(geom.Point{})})
	if !out.Outer[1].Eq(geom.Point{X: -10, Y: 0}, 1e-9) {
		t.Fatalf("rotation around origin: %+v", out.Outer[1])
	}
}

func TestTransformDropsClosingPoint(t *testing.T) {
	closed := geom.Polygon{Outer: geom.Ring{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 0, Y: 0}}}
	if out := Transform(closed, Params{Scale: 1}); len(out.Outer) != 3 {
		t.Fatalf("closing point kept: %+v", out.Outer)
	}
}

func TestDefaultBlob(t *testing.T) {
	b := DefaultBlob()
	if len(b.Outer) != 12 {
		t.Fatalf("blob has %d points", len(b.Outer))
	}
	if !b.Outer[0].Eq(geom.Point{X: -0.5875 * 128, Y: -0.815625 * 128}, 1e-9) {
		t.Fatalf("first blob point = %+v", b.Outer[0])
	}
	if err := b.Validate(); err != nil {
		t.Fatalf("blob invalid: %v", err)
	}
	if _, err := RingFromFlat([]float64{1, 2, 3}, 1, geom.Point{}); err == nil {
		t.Fatalf("odd flat list should fail")
	}
}
