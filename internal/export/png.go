/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"os"

	"golang.org/x/image/vector"

	"vecterrain/internal/geom"
	"vecterrain/internal/ringfx"
	"vecterrain/internal/storage"
)

// PNGOptions controls PNG export. Scale is pixels per world unit.
type PNGOptions struct {
	Options
	// Transparent leaves the background unpainted.
	Transparent bool
}

// RenderPNG rasterises doc. Fills use the nonzero rule over oriented rings;
// decoration strokes are drawn as one quad per edge plus a square per
// vertex.
func RenderPNG(doc storage.Document, opt PNGOptions) (*image.RGBA, error) {
	o := opt.Options.withDefaults()
	sc, err := BuildScene(doc, o)
	if err != nil {
		return nil, err
	}
	fw, fh := sc.Size(o.Scale)
	w, h := int(math.Ceil(fw)), int(math.Ceil(fh))
	if w <= 0 || h <= 0 {
		return nil, ErrNothingToExport
	}
	if int64(w)*int64(h) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, w, h)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if !opt.Transparent {
		draw.Draw(img, img.Bounds(), image.NewUniform(o.Background), image.Point{}, draw.Src)
	}
	r := &raster{img: img, sc: sc, scale: o.Scale, z: vector.NewRasterizer(w, h)}
	for _, l := range sc.Layers {
		if l.Decor != nil {
			r.strokes(l.Decor.Outer)
		}
		r.fill(l.Geometry, l.Fill)
		if l.Decor != nil {
			r.strokes(l.Decor.Inner)
			r.strokes(l.Decor.Border)
		}
	}
	return img, nil
}

// WritePNG encodes the rendered document to w.
func WritePNG(w io.Writer, doc storage.Document, opt PNGOptions) error {
	img, err := RenderPNG(doc, opt)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// ExportPNG writes the project's document to out, relative paths landing in
// the exports folder. It returns the written path.
func ExportPNG(h *storage.Handle, out string, opt PNGOptions) (string, error) {
	path, err := resolveOut(h, out)
	if err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create png: %w", err)
	}
	if err := WritePNG(f, h.Doc, opt); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close png: %w", err)
	}
	return path, nil
}

type raster struct {
	img   *image.RGBA
	sc    Scene
	scale float64
	z     *vector.Rasterizer
}

func (r *raster) reset() {
	b := r.img.Bounds()
	r.z.Reset(b.Dx(), b.Dy())
}

func (r *raster) pt(p geom.Point) (float32, float32) {
	x, y := r.sc.project(p, r.scale)
	return float32(x), float32(y)
}

func (r *raster) ring(ring geom.Ring) {
	if len(ring) < 3 {
		return
	}
	r.z.MoveTo(r.pt(ring[0]))
	for _, p := range ring[1:] {
		r.z.LineTo(r.pt(p))
	}
	r.z.ClosePath()
}

func (r *raster) draw(c color.Color) {
	r.z.Draw(r.img, r.img.Bounds(), image.NewUniform(c), image.Point{})
}

func (r *raster) fill(mp geom.MultiPolygon, c color.RGBA) {
	r.reset()
	for _, p := range mp {
		p = oriented(p)
		r.ring(p.Outer)
		for _, h := range p.Holes {
			r.ring(h)
		}
	}
	r.draw(c)
}

// strokes draws each stroke separately so overlapping quads of one ring
// do not compound its alpha.
func (r *raster) strokes(list []ringfx.Stroke) {
	for _, st := range list {
		if st.Alpha <= 0 || len(st.Ring) < 2 {
			continue
		}
		r.reset()
		hw := st.Width / 2
		n := len(st.Ring)
		for i := 0; i < n; i++ {
			a, b := st.Ring[i], st.Ring[(i+1)%n]
			r.segment(a, b, hw)
			r.square(a, hw)
		}
		c := strokeColor(st)
		r.draw(color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(math.Round(math.Min(st.Alpha, 1) * 255))})
	}
}

// segment and square emit the same winding so overlaps accumulate.
func (r *raster) segment(a, b geom.Point, hw float64) {
	d := b.Sub(a)
	l := d.Len()
	if l == 0 {
		return
	}
	n := geom.Point{X: -d.Y / l * hw, Y: d.X / l * hw}
	r.z.MoveTo(r.pt(a.Add(n)))
	r.z.LineTo(r.pt(b.Add(n)))
	r.z.LineTo(r.pt(b.Sub(n)))
	r.z.LineTo(r.pt(a.Sub(n)))
	r.z.ClosePath()
}

func (r *raster) square(c geom.Point, hw float64) {
	r.z.MoveTo(r.pt(geom.Point{X: c.X - hw, Y: c.Y + hw}))
	r.z.LineTo(r.pt(geom.Point{X: c.X + hw, Y: c.Y + hw}))
	r.z.LineTo(r.pt(geom.Point{X: c.X + hw, Y: c.Y - hw}))
	r.z.LineTo(r.pt(geom.Point{X: c.X - hw, Y: c.Y - hw}))
	r.z.ClosePath()
}
