/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package brush

import (
	"math"

	"vecterrain/internal/geom"
)

// Capsule returns a ring of 2k+2 points: a half circle of radius r capping
// b followed by one capping a, joined by the two straight sides. When a and
// b coincide the result is a coarse circle.
func Capsule(a, b geom.Point, r float64, k int) geom.Ring {
	if k < 1 {
		k = 1
	}
	d := b.Sub(a)
	l := d.Len()
	u := geom.Point{X: 1}
	if l > 0 {
		u = d.Mul(1 / l)
	}
	n := geom.Point{X: -u.Y, Y: u.X}

	pts := make(geom.Ring, 0, 2*k+2)
	arc := func(c geom.Point, from float64) {
		for i := 0; i <= k; i++ {
			ang := from + math.Pi*float64(i)/float64(k)
			pts = append(pts, c.Add(n.Mul(math.Cos(ang)*r)).Add(u.Mul(math.Sin(ang)*r)))
		}
	}
	arc(b, 0)
	arc(a, math.Pi)
	return pts
}
