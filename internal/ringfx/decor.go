/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ringfx

import "vecterrain/internal/geom"

// Stroke is one ring the renderer strokes with a solid line.
type Stroke struct {
	Ring  geom.Ring
	Width float64
	Color uint32
	Alpha float64
}

// Decoration is the layered border for a terrain outline, in draw order:
// Inner first, then Border, then Outer.
type Decoration struct {
	Inner  []Stroke
	Border []Stroke
	Outer  []Stroke
}

// Len is the total number of strokes.
func (d Decoration) Len() int { return len(d.Inner) + len(d.Border) + len(d.Outer) }

// DecorOptions controls Decorate. Zero fields take the defaults of
// DefaultDecor.
type DecorOptions struct {
	InnerSteps int
	BaseInset  float64
	MaxInset   float64
	InnerWidth float64

	BorderWidth float64
	BorderColor uint32

	OuterCount int
	OuterDelta float64
	OuterWidth float64

	// Smooth is applied to every ring before offsetting. When nil each
	// polygon uses SmoothFor its bounds.
	Smooth *SmoothOptions
	// NoSmooth disables smoothing entirely.
	NoSmooth bool
}

func DefaultDecor() DecorOptions {
	return DecorOptions{
		InnerSteps:  4,
		BaseInset:   4,
		MaxInset:    14,
		InnerWidth:  6,
		BorderWidth: 12,
		BorderColor: 0x2a1d0f,
		OuterCount:  5,
		OuterDelta:  12,
		OuterWidth:  3,
	}
}

func (o DecorOptions) withDefaults() DecorOptions {
	d := DefaultDecor()
	if o.InnerSteps <= 0 {
		o.InnerSteps = d.InnerSteps
	}
	if o.BaseInset <= 0 {
		o.BaseInset = d.BaseInset
	}
	if o.MaxInset <= 0 {
		o.MaxInset = d.MaxInset
	}
	if o.InnerWidth <= 0 {
		o.InnerWidth = d.InnerWidth
	}
	if o.BorderWidth <= 0 {
		o.BorderWidth = d.BorderWidth
	}
	if o.BorderColor == 0 {
		o.BorderColor = d.BorderColor
	}
	if o.OuterCount <= 0 {
		o.OuterCount = d.OuterCount
	}
	if o.OuterDelta <= 0 {
		o.OuterDelta = d.OuterDelta
	}
	if o.OuterWidth <= 0 {
		o.OuterWidth = d.OuterWidth
	}
	return o
}

// Decorate builds the border decoration of mp:
//   - Inner: InnerSteps inset copies of each outer ring, inset from
//     BaseInset toward MaxInset, black, fading from alpha 0.22;
//   - Border: every outer and hole ring at BorderWidth;
//   - Outer: OuterCount thin rings starting 1.8 border widths outside,
//     OuterDelta apart, fading from alpha 0.2.
//
// Rings that smooth or offset to nothing are skipped.
func Decorate(mp geom.MultiPolygon, o DecorOptions) Decoration {
	o = o.withDefaults()
	var d Decoration
	for _, p := range mp {
		outer := o.smooth(p.Outer)
		if outer == nil {
			continue
		}
		for i := 0; i < o.InnerSteps; i++ {
			t := float64(i) / float64(o.InnerSteps)
			inset := o.BaseInset + t*(o.MaxInset-o.BaseInset)
			if r := Offset(outer, -inset); r != nil {
				d.Inner = append(d.Inner, Stroke{Ring: r, Width: o.InnerWidth, Alpha: 0.22 * (1 - t)})
			}
		}
		d.Border = append(d.Border, Stroke{Ring: outer, Width: o.BorderWidth, Color: o.BorderColor, Alpha: 1})
		for _, h := range p.Holes {
			if hr := o.smooth(h); hr != nil {
				d.Border = append(d.Border, Stroke{Ring: hr, Width: o.BorderWidth, Color: o.BorderColor, Alpha: 1})
			}
		}
		base := o.BorderWidth * 1.8
		for i := 0; i < o.OuterCount; i++ {
			off := base + o.OuterDelta*float64(i)
			if r := Offset(outer, off); r != nil {
				alpha := 0.2 * (1 - float64(i)/float64(o.OuterCount))
				d.Outer = append(d.Outer, Stroke{Ring: r, Width: o.OuterWidth, Alpha: alpha})
			}
		}
	}
	return d
}

func (o DecorOptions) smooth(r geom.Ring) geom.Ring {
	if o.NoSmooth {
		if !r.Valid() {
			return nil
		}
		return r.Clone()
	}
	so := SmoothFor(r.Bounds())
	if o.Smooth != nil {
		so = *o.Smooth
	}
	return Smooth(r, so)
}
