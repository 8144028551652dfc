/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package stamp stores the base blob shapes a brush places and produces
// transformed instances of them.
package stamp

import (
	"errors"
	"fmt"
	"sync"

	"vecterrain/internal/geom"
)

// ErrOutOfRange is returned by Get for an invalid index.
var ErrOutOfRange = errors.New("stamp index out of range")

// ErrEmpty is returned by Random when no stamps are registered.
var ErrEmpty = errors.New("stamp registry is empty")

var errOddFlat = errors.New("flat coordinate list must have even length")

// Rand is the random source used to pick stamps.
type Rand interface {
	Float64() float64
}

// Registry owns a list of base polygons. Every read returns a clone.
type Registry struct {
	mu     sync.RWMutex
	stamps []geom.Polygon
}

// NewRegistry returns a registry holding copies of polys.
func NewRegistry(polys ...geom.Polygon) *Registry {
	r := &Registry{}
	r.SetAll(polys)
	return r
}

// SetAll replaces the registry contents with deep copies.
func (r *Registry) SetAll(polys []geom.Polygon) {
	cp := make([]geom.Polygon, len(polys))
	for i, p := range polys {
		cp[i] = p.Clone()
	}
	r.mu.Lock()
	r.stamps = cp
	r.mu.Unlock()
}

// Append adds a copy of p and returns its index.
func (r *Registry) Append(p geom.Polygon) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stamps = append(r.stamps, p.Clone())
	return len(r.stamps) - 1
}

func (r *Registry) Get(i int) (geom.Polygon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i < 0 || i >= len(r.stamps) {
		return geom.Polygon{}, fmt.Errorf("%w: %d (have %d)", ErrOutOfRange, i, len(r.stamps))
	}
	return r.stamps[i].Clone(), nil
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stamps)
}

// All returns clones of every stamp in index order.
func (r *Registry) All() []geom.Polygon {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]geom.Polygon, len(r.stamps))
	for i, p := range r.stamps {
		out[i] = p.Clone()
	}
	return out
}

// Random picks a stamp uniformly and returns it with its index.
func (r *Registry) Random(rng Rand) (geom.Polygon, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := len(r.stamps)
	if n == 0 {
		return geom.Polygon{}, -1, ErrEmpty
	}
	i := int(rng.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return r.stamps[i].Clone(), i, nil
}
