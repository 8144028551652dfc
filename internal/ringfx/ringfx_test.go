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
	"testing"

	"vecterrain/internal/geom"
)

func square(x, y, s float64) geom.Ring {
	return geom.Ring{{X: x, Y: y}, {X: x + s, Y: y}, {X: x + s, Y: y + s}, {X: x, Y: y + s}}
}

func hexagon(r float64) geom.Ring {
	out := make(geom.Ring, 6)
	for i := range out {
		a := float64(i) * math.Pi / 3
		out[i] = geom.Pt(r*math.Cos(a), r*math.Sin(a))
	}
	return out
}

func TestOffsetGrowsForBothWindings(t *testing.T) {
	ccw := square(0, 0, 10)
	cw := ccw.Reversed()
	for name, r := range map[string]geom.Ring{"ccw": ccw, "cw": cw} {
		grown := Offset(r, 2)
		if math.Abs(grown.SignedArea()) <= math.Abs(r.SignedArea()) {
			t.Fatalf("%s: expected +2 to grow, area %.2f -> %.2f", name, r.SignedArea(), grown.SignedArea())
		}
		shrunk := Offset(r, -2)
		if math.Abs(shrunk.SignedArea()) >= math.Abs(r.SignedArea()) {
			t.Fatalf("%s: expected -2 to shrink, area %.2f -> %.2f", name, r.SignedArea(), shrunk.SignedArea())
		}
	}
}

func TestOffsetSquareMovesAlongDiagonal(t *testing.T) {
	got := Offset(square(0, 0, 10), 1)
	d := 1 / math.Sqrt2
	want := geom.Pt(-d, -d)
	if !got[0].Eq(want, 1e-9) {
		t.Fatalf("corner moved to %+v, want %+v", got[0], want)
	}
}

func TestOffsetRoundTrip(t *testing.T) {
	for _, r := range []geom.Ring{square(5, 5, 40), hexagon(30), hexagon(30).Reversed()} {
		back := Offset(Offset(r, 1.5), -1.5)
		if len(back) != len(r) {
			t.Fatalf("length changed: %d -> %d", len(r), len(back))
		}
		for i := range r {
			if !back[i].Eq(r[i], 1e-6) {
				t.Fatalf("vertex %d drifted: %+v vs %+v", i, back[i], r[i])
			}
		}
	}
}

func TestOffsetDegenerate(t *testing.T) {
	if Offset(geom.Ring{{X: 0, Y: 0}, {X: 1, Y: 1}}, 1) != nil {
		t.Fatalf("two points must yield nil")
	}
	if Offset(geom.Ring{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}}, 1) != nil {
		t.Fatalf("collinear ring must yield nil")
	}
}

func TestOffsetSkipsZeroLengthEdges(t *testing.T) {
	r := geom.Ring{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}
	got := Offset(r, 1)
	for i, p := range got {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) {
			t.Fatalf("vertex %d is NaN", i)
		}
	}
	if math.Abs(got[1].Y+1) > 1e-9 {
		t.Fatalf("vertex before duplicate should move straight down, got %+v", got[1])
	}
}

func TestOffsetPolygonHolesShrink(t *testing.T) {
	p := geom.Polygon{Outer: square(0, 0, 20), Holes: []geom.Ring{square(5, 5, 10).Reversed()}}
	got := OffsetPolygon(p, 1)
	if len(got.Holes) != 1 {
		t.Fatalf("expected hole to survive")
	}
	if math.Abs(got.Holes[0].SignedArea()) >= 100 {
		t.Fatalf("hole should shrink when the polygon grows, area=%.2f", got.Holes[0].SignedArea())
	}
	if got.Area() <= p.Area() {
		t.Fatalf("polygon area should grow: %.2f -> %.2f", p.Area(), got.Area())
	}
}

func TestSmoothLeavesStraightRunsAlone(t *testing.T) {
	// Collinear midpoints sit at π and are not moved in a pass. Later passes
	// see the corners already pulled in, so check a single one.
	r := geom.Ring{{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}
	o := DefaultSmooth()
	o.Iterations = 1
	got := Smooth(r, o)
	if !got[1].Eq(geom.Pt(5, 0), 1e-9) {
		t.Fatalf("straight vertex moved to %+v", got[1])
	}
}

func TestSmoothCollapsesShortSpike(t *testing.T) {
	// A needle at index 2 between two short edges.
	r := geom.Ring{{X: 0, Y: 0}, {X: 20, Y: 0}, {X: 20.5, Y: 3}, {X: 21, Y: 0}, {X: 40, Y: 0}, {X: 40, Y: 20}, {X: 0, Y: 20}}
	o := DefaultSmooth()
	o.Iterations = 1
	got := Smooth(r, o)
	if !got[2].Eq(geom.Pt(20.5, 0), 1e-9) {
		t.Fatalf("spike should collapse to the neighbours' midpoint, got %+v", got[2])
	}
}

func TestSmoothPullsSharpCornersHarder(t *testing.T) {
	o := DefaultSmooth()
	o.Iterations = 1
	o.SpikeAngle = 0
	sq := Smooth(square(0, 0, 10), o)
	tri := Smooth(geom.Ring{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 5, Y: 30}}, o)
	sqMove := sq[0].Dist(geom.Pt(0, 0)) / geom.Pt(0, 0).Dist(geom.Pt(5, 5))
	triMove := tri[2].Dist(geom.Pt(5, 30)) / geom.Pt(5, 30).Dist(geom.Pt(5, 0))
	if triMove <= sqMove {
		t.Fatalf("sharper corner should move relatively further: tri=%.3f square=%.3f", triMove, sqMove)
	}
	if triMove > o.MaxLambda+1e-9 {
		t.Fatalf("lambda exceeded cap: %.3f", triMove)
	}
}

func TestSmoothRejectsDegenerate(t *testing.T) {
	if Smooth(geom.Ring{{X: 0, Y: 0}, {X: 1, Y: 0}}, DefaultSmooth()) != nil {
		t.Fatalf("expected nil for two points")
	}
	if Smooth(geom.Ring{{X: 1, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 1}}, DefaultSmooth()) != nil {
		t.Fatalf("expected nil for coincident points")
	}
}

func TestSmoothForSmallShapesWorksHarder(t *testing.T) {
	small := SmoothFor(geom.R(0, 0, 20, 20))
	large := SmoothFor(geom.R(0, 0, 1000, 600))
	if small.Iterations <= large.Iterations || small.Lambda <= large.Lambda {
		t.Fatalf("small=%+v large=%+v", small, large)
	}
}

func TestDecorateLayers(t *testing.T) {
	mp := geom.MultiPolygon{{Outer: hexagon(200), Holes: []geom.Ring{hexagon(40).Reversed()}}}
	d := Decorate(mp, DecorOptions{NoSmooth: true})
	if len(d.Inner) != 4 || len(d.Border) != 2 || len(d.Outer) != 5 {
		t.Fatalf("inner=%d border=%d outer=%d", len(d.Inner), len(d.Border), len(d.Outer))
	}
	if d.Len() != 11 {
		t.Fatalf("Len=%d", d.Len())
	}
	if math.Abs(d.Inner[0].Alpha-0.22) > 1e-9 || math.Abs(d.Inner[3].Alpha-0.22*0.25) > 1e-9 {
		t.Fatalf("inner alphas %.3f %.3f", d.Inner[0].Alpha, d.Inner[3].Alpha)
	}
	if math.Abs(d.Outer[0].Alpha-0.2) > 1e-9 || math.Abs(d.Outer[4].Alpha-0.04) > 1e-9 {
		t.Fatalf("outer alphas %.3f %.3f", d.Outer[0].Alpha, d.Outer[4].Alpha)
	}
	if d.Border[0].Color != 0x2a1d0f || d.Border[0].Width != 12 {
		t.Fatalf("border %+v", d.Border[0])
	}
	base := math.Abs(hexagon(200).SignedArea())
	if a := math.Abs(d.Outer[0].Ring.SignedArea()); a <= base {
		t.Fatalf("outer ring must enclose the outline: %.1f <= %.1f", a, base)
	}
	if a := math.Abs(d.Inner[0].Ring.SignedArea()); a >= base {
		t.Fatalf("inner ring must sit inside the outline: %.1f >= %.1f", a, base)
	}
	// First outer ring sits 1.8 border widths out along the vertex normal.
	if r := d.Outer[0].Ring[0].Len(); math.Abs(r-(200+21.6)) > 1e-6 {
		t.Fatalf("outer ring radius %.3f", r)
	}
}

func TestDecorateSmoothsFirst(t *testing.T) {
	mp := geom.MultiPolygon{{Outer: square(0, 0, 100)}}
	smoothed := Decorate(mp, DecorOptions{})
	raw := Decorate(mp, DecorOptions{NoSmooth: true})
	if smoothed.Border[0].Ring[0].Eq(raw.Border[0].Ring[0], 1e-9) {
		t.Fatalf("expected the square's corner to be relaxed")
	}
}
