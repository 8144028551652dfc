/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package mesh

import (
	"math"
	"sort"
)

// Earcut triangulates a polygon given as flat coordinates, dim values per
// vertex (only the first two are used). holes lists the vertex index at
// which each hole ring starts. The result holds three vertex indices per
// triangle, in the orientation of the outer ring.
//
// Large inputs (more than 80 vertices) use a z-order curve to speed up the
// ear test. Degenerate rings yield no triangles.
func Earcut(coords []float64, holes []int, dim int) []int {
	if dim < 2 {
		dim = 2
	}
	outerLen := len(coords)
	if len(holes) > 0 {
		outerLen = holes[0] * dim
	}
	outer := linkedList(coords, 0, outerLen, dim, true)
	if outer == nil || outer.next == outer.prev {
		return nil
	}
	ec := &earcutter{dim: dim, tris: make([]int, 0, (len(coords)/dim)*3)}
	if len(holes) > 0 {
		outer = eliminateHoles(coords, holes, outer, dim)
	}
	if len(coords) > 80*dim {
		minX, minY := coords[0], coords[1]
		maxX, maxY := minX, minY
		for i := dim; i < outerLen; i += dim {
			x, y := coords[i], coords[i+1]
			minX, minY = math.Min(minX, x), math.Min(minY, y)
			maxX, maxY = math.Max(maxX, x), math.Max(maxY, y)
		}
		ec.minX, ec.minY = minX, minY
		if size := math.Max(maxX-minX, maxY-minY); size != 0 {
			ec.invSize = 32767 / size
		}
	}
	ec.linked(outer, 0)
	return ec.tris
}

type node struct {
	i    int // coordinate offset in the flat input
	x, y float64

	prev, next *node

	z            int32
	prevZ, nextZ *node

	steiner bool
}

type earcutter struct {
	dim        int
	minX, minY float64
	invSize    float64
	tris       []int
}

func (ec *earcutter) emit(a, b, c *node) {
	ec.tris = append(ec.tris, a.i/ec.dim, b.i/ec.dim, c.i/ec.dim)
}

// linked clips ears until the ring is exhausted. When no ear is found it
// escalates: filter duplicates, then cure local self-intersections, then
// split the ring along a valid diagonal.
func (ec *earcutter) linked(ear *node, pass int) {
	if ear == nil {
		return
	}
	if pass == 0 && ec.invSize != 0 {
		indexCurve(ear, ec.minX, ec.minY, ec.invSize)
	}
	stop := ear
	for ear.prev != ear.next {
		prev, next := ear.prev, ear.next
		var ok bool
		if ec.invSize != 0 {
			ok = ec.isEarHashed(ear)
		} else {
			ok = isEar(ear)
		}
		if ok {
			ec.emit(prev, ear, next)
			removeNode(ear)
			ear = next.next
			stop = next.next
			continue
		}
		ear = next
		if ear == stop {
			switch pass {
			case 0:
				ec.linked(filterPoints(ear, nil), 1)
			case 1:
				ear = ec.cureLocalIntersections(filterPoints(ear, nil))
				ec.linked(ear, 2)
			case 2:
				ec.splitEarcut(ear)
			}
			return
		}
	}
}

func isEar(ear *node) bool {
	a, b, c := ear.prev, ear, ear.next
	if area(a, b, c) >= 0 {
		return false
	}
	x0, y0, x1, y1 := triBounds(a, b, c)
	for p := c.next; p != a; p = p.next {
		if p.x >= x0 && p.x <= x1 && p.y >= y0 && p.y <= y1 &&
			pointInTriangle(a.x, a.y, b.x, b.y, c.x, c.y, p.x, p.y) &&
			area(p.prev, p, p.next) >= 0 {
			return false
		}
	}
	return true
}

func (ec *earcutter) isEarHashed(ear *node) bool {
	a, b, c := ear.prev, ear, ear.next
	if area(a, b, c) >= 0 {
		return false
	}
	x0, y0, x1, y1 := triBounds(a, b, c)
	minZ := zOrder(x0, y0, ec.minX, ec.minY, ec.invSize)
	maxZ := zOrder(x1, y1, ec.minX, ec.minY, ec.invSize)

	blocks := func(p *node) bool {
		return p.x >= x0 && p.x <= x1 && p.y >= y0 && p.y <= y1 && p != a && p != c &&
			pointInTriangle(a.x, a.y, b.x, b.y, c.x, c.y, p.x, p.y) &&
			area(p.prev, p, p.next) >= 0
	}
	p, n := ear.prevZ, ear.nextZ
	for p != nil && p.z >= minZ && n != nil && n.z <= maxZ {
		if blocks(p) {
			return false
		}
		p = p.prevZ
		if blocks(n) {
			return false
		}
		n = n.nextZ
	}
	for ; p != nil && p.z >= minZ; p = p.prevZ {
		if blocks(p) {
			return false
		}
	}
	for ; n != nil && n.z <= maxZ; n = n.nextZ {
		if blocks(n) {
			return false
		}
	}
	return true
}

func triBounds(a, b, c *node) (x0, y0, x1, y1 float64) {
	x0 = math.Min(a.x, math.Min(b.x, c.x))
	y0 = math.Min(a.y, math.Min(b.y, c.y))
	x1 = math.Max(a.x, math.Max(b.x, c.x))
	y1 = math.Max(a.y, math.Max(b.y, c.y))
	return
}

func (ec *earcutter) cureLocalIntersections(start *node) *node {
	p := start
	for {
		a, b := p.prev, p.next.next
		if !equals(a, b) && intersects(a, p, p.next, b) && locallyInside(a, b) && locallyInside(b, a) {
			ec.emit(a, p, b)
			removeNode(p)
			removeNode(p.next)
			p, start = b, b
		}
		p = p.next
		if p == start {
			break
		}
	}
	return filterPoints(p, nil)
}

func (ec *earcutter) splitEarcut(start *node) {
	a := start
	for {
		for b := a.next.next; b != a.prev; b = b.next {
			if a.i != b.i && isValidDiagonal(a, b) {
				c := splitPolygon(a, b)
				a = filterPoints(a, a.next)
				c = filterPoints(c, c.next)
				ec.linked(a, 0)
				ec.linked(c, 0)
				return
			}
		}
		a = a.next
		if a == start {
			return
		}
	}
}

// linkedList builds a circular list from coords[start:end], reversing the
// input when its orientation does not match clockwise.
func linkedList(coords []float64, start, end, dim int, clockwise bool) *node {
	var last *node
	if clockwise == (signedArea(coords, start, end, dim) > 0) {
		for i := start; i < end; i += dim {
			last = insertNode(i, coords[i], coords[i+1], last)
		}
	} else {
		for i := end - dim; i >= start; i -= dim {
			last = insertNode(i, coords[i], coords[i+1], last)
		}
	}
	if last != nil && equals(last, last.next) {
		removeNode(last)
		last = last.next
	}
	return last
}

func signedArea(coords []float64, start, end, dim int) float64 {
	var sum float64
	j := end - dim
	for i := start; i < end; i += dim {
		sum += (coords[j] - coords[i]) * (coords[i+1] + coords[j+1])
		j = i
	}
	return sum
}

// filterPoints removes duplicate and collinear points between start and end.
func filterPoints(start, end *node) *node {
	if start == nil {
		return nil
	}
	if end == nil {
		end = start
	}
	p := start
	for {
		again := false
		if !p.steiner && (equals(p, p.next) || area(p.prev, p, p.next) == 0) {
			removeNode(p)
			p = p.prev
			end = p
			if p == p.next {
				break
			}
			again = true
		} else {
			p = p.next
		}
		if !again && p == end {
			break
		}
	}
	return end
}

func eliminateHoles(coords []float64, holes []int, outer *node, dim int) *node {
	queue := make([]*node, 0, len(holes))
	for i, h := range holes {
		start := h * dim
		end := len(coords)
		if i < len(holes)-1 {
			end = holes[i+1] * dim
		}
		list := linkedList(coords, start, end, dim, false)
		if list == nil {
			continue
		}
		if list == list.next {
			list.steiner = true
		}
		queue = append(queue, leftmost(list))
	}
	sort.SliceStable(queue, func(i, j int) bool { return queue[i].x < queue[j].x })
	for _, h := range queue {
		outer = eliminateHole(h, outer)
	}
	return outer
}

func eliminateHole(hole, outer *node) *node {
	bridge := findHoleBridge(hole, outer)
	if bridge == nil {
		return outer
	}
	rev := splitPolygon(bridge, hole)
	filterPoints(rev, rev.next)
	return filterPoints(bridge, bridge.next)
}

// findHoleBridge finds an outer vertex visible from the hole's leftmost point.
func findHoleBridge(hole, outer *node) *node {
	p := outer
	hx, hy := hole.x, hole.y
	qx := math.Inf(-1)
	var m *node
	for {
		if hy <= p.y && hy >= p.next.y && p.next.y != p.y {
			x := p.x + (hy-p.y)*(p.next.x-p.x)/(p.next.y-p.y)
			if x <= hx && x > qx {
				qx = x
				if p.next.x > p.x {
					m = p
				} else {
					m = p.next
				}
				if x == hx {
					return m
				}
			}
		}
		p = p.next
		if p == outer {
			break
		}
	}
	if m == nil {
		return nil
	}

	stop := m
	mx, my := m.x, m.y
	tanMin := math.Inf(1)
	p = m
	for {
		ax, cx := qx, hx
		if hy < my {
			ax, cx = hx, qx
		}
		if hx >= p.x && p.x >= mx && hx != p.x && pointInTriangle(ax, hy, mx, my, cx, hy, p.x, p.y) {
			tan := math.Abs(hy-p.y) / (hx - p.x)
			if locallyInside(p, hole) &&
				(tan < tanMin || (tan == tanMin && (p.x > m.x || (p.x == m.x && sectorContainsSector(m, p))))) {
				m = p
				tanMin = tan
			}
		}
		p = p.next
		if p == stop {
			break
		}
	}
	return m
}

func sectorContainsSector(m, p *node) bool {
	return area(m.prev, m, p.prev) < 0 && area(p.next, m, m.next) < 0
}

func indexCurve(start *node, minX, minY, invSize float64) {
	p := start
	for {
		p.z = zOrder(p.x, p.y, minX, minY, invSize)
		p.prevZ = p.prev
		p.nextZ = p.next
		p = p.next
		if p == start {
			break
		}
	}
	p.prevZ.nextZ = nil
	p.prevZ = nil
	sortLinked(p)
}

// sortLinked is a bottom-up merge sort of the z list.
func sortLinked(list *node) *node {
	inSize := 1
	for {
		p := list
		list = nil
		var tail *node
		merges := 0
		for p != nil {
			merges++
			q := p
			pSize := 0
			for i := 0; i < inSize; i++ {
				pSize++
				q = q.nextZ
				if q == nil {
					break
				}
			}
			qSize := inSize
			for pSize > 0 || (qSize > 0 && q != nil) {
				var e *node
				if pSize != 0 && (qSize == 0 || q == nil || p.z <= q.z) {
					e = p
					p = p.nextZ
					pSize--
				} else {
					e = q
					q = q.nextZ
					qSize--
				}
				if tail != nil {
					tail.nextZ = e
				} else {
					list = e
				}
				e.prevZ = tail
				tail = e
			}
			p = q
		}
		tail.nextZ = nil
		inSize *= 2
		if merges <= 1 {
			return list
		}
	}
}

// zOrder interleaves the 15-bit cell coordinates of (x, y).
func zOrder(x, y, minX, minY, invSize float64) int32 {
	ix := int32((x - minX) * invSize)
	iy := int32((y - minY) * invSize)
	ix = (ix | (ix << 8)) & 0x00FF00FF
	ix = (ix | (ix << 4)) & 0x0F0F0F0F
	ix = (ix | (ix << 2)) & 0x33333333
	ix = (ix | (ix << 1)) & 0x55555555
	iy = (iy | (iy << 8)) & 0x00FF00FF
	iy = (iy | (iy << 4)) & 0x0F0F0F0F
	iy = (iy | (iy << 2)) & 0x33333333
	iy = (iy | (iy << 1)) & 0x55555555
	return ix | (iy << 1)
}

func leftmost(start *node) *node {
	p, left := start, start
	for {
		if p.x < left.x || (p.x == left.x && p.y < left.y) {
			left = p
		}
		p = p.next
		if p == start {
			return left
		}
	}
}

func pointInTriangle(ax, ay, bx, by, cx, cy, px, py float64) bool {
	return (cx-px)*(ay-py) >= (ax-px)*(cy-py) &&
		(ax-px)*(by-py) >= (bx-px)*(ay-py) &&
		(bx-px)*(cy-py) >= (cx-px)*(by-py)
}

func isValidDiagonal(a, b *node) bool {
	if a.next.i == b.i || a.prev.i == b.i || intersectsPolygon(a, b) {
		return false
	}
	if locallyInside(a, b) && locallyInside(b, a) && middleInside(a, b) &&
		(area(a.prev, a, b.prev) != 0 || area(a, b.prev, b) != 0) {
		return true
	}
	return equals(a, b) && area(a.prev, a, a.next) > 0 && area(b.prev, b, b.next) > 0
}

func area(p, q, r *node) float64 {
	return (q.y-p.y)*(r.x-q.x) - (q.x-p.x)*(r.y-q.y)
}

func equals(a, b *node) bool { return a.x == b.x && a.y == b.y }

func intersects(p1, q1, p2, q2 *node) bool {
	o1 := sign(area(p1, q1, p2))
	o2 := sign(area(p1, q1, q2))
	o3 := sign(area(p2, q2, p1))
	o4 := sign(area(p2, q2, q1))
	switch {
	case o1 != o2 && o3 != o4:
		return true
	case o1 == 0 && onSegment(p1, p2, q1):
		return true
	case o2 == 0 && onSegment(p1, q2, q1):
		return true
	case o3 == 0 && onSegment(p2, p1, q2):
		return true
	case o4 == 0 && onSegment(p2, q1, q2):
		return true
	}
	return false
}

func onSegment(p, q, r *node) bool {
	return q.x <= math.Max(p.x, r.x) && q.x >= math.Min(p.x, r.x) &&
		q.y <= math.Max(p.y, r.y) && q.y >= math.Min(p.y, r.y)
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func intersectsPolygon(a, b *node) bool {
	p := a
	for {
		if p.i != a.i && p.next.i != a.i && p.i != b.i && p.next.i != b.i && intersects(p, p.next, a, b) {
			return true
		}
		p = p.next
		if p == a {
			return false
		}
	}
}

func locallyInside(a, b *node) bool {
	if area(a.prev, a, a.next) < 0 {
		return area(a, b, a.next) >= 0 && area(a, a.prev, b) >= 0
	}
	return area(a, b, a.prev) < 0 || area(a, a.next, b) < 0
}

func middleInside(a, b *node) bool {
	p := a
	inside := false
	px, py := (a.x+b.x)/2, (a.y+b.y)/2
	for {
		if (p.y > py) != (p.next.y > py) && p.next.y != p.y &&
			px < (p.next.x-p.x)*(py-p.y)/(p.next.y-p.y)+p.x {
			inside = !inside
		}
		p = p.next
		if p == a {
			return inside
		}
	}
}

// splitPolygon links a and b with a bridge, splitting the ring in two. The
// returned node starts the second ring.
func splitPolygon(a, b *node) *node {
	a2 := &node{i: a.i, x: a.x, y: a.y}
	b2 := &node{i: b.i, x: b.x, y: b.y}
	an, bp := a.next, b.prev

	a.next = b
	b.prev = a

	a2.next = an
	an.prev = a2

	b2.next = a2
	a2.prev = b2

	bp.next = b2
	b2.prev = bp
	return b2
}

func insertNode(i int, x, y float64, last *node) *node {
	p := &node{i: i, x: x, y: y}
	if last == nil {
		p.prev = p
		p.next = p
		return p
	}
	p.next = last.next
	p.prev = last
	last.next.prev = p
	last.next = p
	return p
}

func removeNode(p *node) {
	p.next.prev = p.prev
	p.prev.next = p.next
	if p.prevZ != nil {
		p.prevZ.nextZ = p.nextZ
	}
	if p.nextZ != nil {
		p.nextZ.prevZ = p.prevZ
	}
}
