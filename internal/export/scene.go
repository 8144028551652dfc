/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders a terrain document to PNG, SVG and PDF. All three
// draw the same Scene: layers in drawing order with solid fills, the
// shovel layer carrying its ringfx border decoration.
package export

import (
	"errors"
	"fmt"
	"hash/fnv"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"vecterrain/internal/geom"
	"vecterrain/internal/ringfx"
	"vecterrain/internal/storage"
)

var (
	ErrNothingToExport = errors.New("document has no geometry to export")
	ErrTooLarge        = errors.New("export exceeds the pixel limit")
)

// MaxPixels bounds raster output.
const MaxPixels = 64 << 20

// Options are shared by every format. Zero fields take defaults.
type Options struct {
	// Scale is output units (pixels or points) per world unit.
	Scale float64
	// Margin is added around the content, in world units.
	Margin     float64
	Background color.RGBA
	// Palette overrides fills by material name, or by full layer name.
	Palette map[string]color.RGBA
	// NoDecor skips the shovel border decoration.
	NoDecor bool
	Decor   ringfx.DecorOptions
	// Layers restricts output to the named layers; empty means all.
	Layers []string
}

var (
	defaultBackground = color.RGBA{R: 0x20, G: 0x25, B: 0x2b, A: 0xff}
	shovelFill        = color.RGBA{R: 0x5a, G: 0x3e, B: 0x22, A: 0xff}
	defaultPalette    = map[string]color.RGBA{
		"grass": {R: 0x4f, G: 0x8a, B: 0x2b, A: 0xff},
		"dirt":  {R: 0x6b, G: 0x4a, B: 0x2b, A: 0xff},
		"rock":  {R: 0x7a, G: 0x7a, B: 0x7a, A: 0xff},
		"sand":  {R: 0xd8, G: 0xc0, B: 0x7a, A: 0xff},
		"snow":  {R: 0xf2, G: 0xf4, B: 0xf7, A: 0xff},
	}
)

func (o Options) withDefaults() Options {
	if o.Scale <= 0 || math.IsNaN(o.Scale) {
		o.Scale = 1
	}
	if o.Margin <= 0 {
		o.Margin = 16
	}
	if o.Background == (color.RGBA{}) {
		o.Background = defaultBackground
	}
	return o
}

// Fill returns the fill colour of a layer.
func (o Options) Fill(layer string) color.RGBA {
	if c, ok := o.Palette[layer]; ok {
		return c
	}
	if layer == storage.ShovelLayer {
		return shovelFill
	}
	material, _, ok := storage.SplitPaintLayer(layer)
	if !ok {
		material = layer
	}
	if c, ok := o.Palette[material]; ok {
		return c
	}
	if c, ok := defaultPalette[material]; ok {
		return c
	}
	// stable colour for unknown materials
	h := fnv.New32a()
	_, _ = h.Write([]byte(material))
	v := h.Sum32()
	return color.RGBA{R: uint8(64 + v%160), G: uint8(64 + (v>>8)%160), B: uint8(64 + (v>>16)%160), A: 0xff}
}

// SceneLayer is one filled layer.
type SceneLayer struct {
	Name     string
	Geometry geom.MultiPolygon
	Fill     color.RGBA
	// Decor is set for the shovel layer unless disabled.
	Decor *ringfx.Decoration
}

// Scene is what the writers draw, in world coordinates.
type Scene struct {
	Bounds geom.Rect
	Layers []SceneLayer
}

// Size returns the output size in output units.
func (s Scene) Size(scale float64) (w, h float64) {
	return s.Bounds.W * scale, s.Bounds.H * scale
}

// BuildScene collects the non-empty layers of doc in drawing order.
func BuildScene(doc storage.Document, opt Options) (Scene, error) {
	opt = opt.withDefaults()
	want := map[string]bool{}
	for _, n := range opt.Layers {
		want[n] = true
	}
	var sc Scene
	var b geom.Rect
	for _, name := range doc.LayerNames() {
		if len(want) > 0 && !want[name] {
			continue
		}
		mp := doc.Layers[name].FilterTiny(1e-9)
		if len(mp) == 0 {
			continue
		}
		l := SceneLayer{Name: name, Geometry: mp, Fill: opt.Fill(name)}
		b = b.Union(mp.Bounds())
		if name == storage.ShovelLayer && !opt.NoDecor {
			d := ringfx.Decorate(mp, opt.Decor)
			l.Decor = &d
			for _, st := range d.Outer {
				b = b.Union(st.Ring.Bounds().Inset(-st.Width/2, -st.Width/2))
			}
			for _, st := range d.Border {
				b = b.Union(st.Ring.Bounds().Inset(-st.Width/2, -st.Width/2))
			}
		}
		sc.Layers = append(sc.Layers, l)
	}
	if len(sc.Layers) == 0 || b.Empty() {
		return Scene{}, ErrNothingToExport
	}
	sc.Bounds = b.Inset(-opt.Margin, -opt.Margin)
	return sc, nil
}

// project maps world coordinates to output coordinates.
func (s Scene) project(p geom.Point, scale float64) (float64, float64) {
	return (p.X - s.Bounds.X) * scale, (p.Y - s.Bounds.Y) * scale
}

// oriented returns the polygon with the outer ring counter-clockwise and
// holes clockwise, so nonzero filling leaves the holes open.
func oriented(p geom.Polygon) geom.Polygon {
	out := geom.Polygon{Outer: p.Outer}
	if p.Outer.Orientation() == geom.CW {
		out.Outer = p.Outer.Reversed()
	}
	for _, h := range p.Holes {
		if h.Orientation() == geom.CCW {
			h = h.Reversed()
		}
		out.Holes = append(out.Holes, h)
	}
	return out
}

func strokeColor(st ringfx.Stroke) color.RGBA {
	return color.RGBA{R: uint8(st.Color >> 16), G: uint8(st.Color >> 8), B: uint8(st.Color), A: 0xff}
}

// resolveOut places relative paths under the project's exports folder.
func resolveOut(h *storage.Handle, out string) (string, error) {
	if h == nil {
		return "", fmt.Errorf("project handle is nil")
	}
	if !filepath.IsAbs(out) {
		out = filepath.Join(h.Root, storage.ExportsDirName, out)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("ensure out dir: %w", err)
	}
	return out, nil
}
