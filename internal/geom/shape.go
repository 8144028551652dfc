/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geom

import "fmt"

// ShapeKind tags the variant held by a Shape.
type ShapeKind int

const (
	KindNone ShapeKind = iota
	KindPolygon
	KindMulti
)

// Shape is either a single Polygon or a MultiPolygon. Consumers call
// Normalize instead of inspecting the contents.
type Shape struct {
	kind  ShapeKind
	poly  Polygon
	multi MultiPolygon
}

func PolygonShape(p Polygon) Shape     { return Shape{kind: KindPolygon, poly: p} }
func MultiShape(mp MultiPolygon) Shape { return Shape{kind: KindMulti, multi: mp} }
func (s Shape) Kind() ShapeKind        { return s.kind }
func (s Shape) IsZero() bool           { return s.kind == KindNone }

// Normalize returns a validated deep copy as a MultiPolygon. An empty
// MultiPolygon is valid and normalizes to an empty result.
func (s Shape) Normalize() (MultiPolygon, error) {
	switch s.kind {
	case KindPolygon:
		if err := s.poly.Validate(); err != nil {
			return nil, err
		}
		return MultiPolygon{s.poly.Clone()}, nil
	case KindMulti:
		if err := s.multi.Validate(); err != nil {
			return nil, err
		}
		out := s.multi.Clone()
		if out == nil {
			out = MultiPolygon{}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: empty shape", ErrMalformed)
	}
}
