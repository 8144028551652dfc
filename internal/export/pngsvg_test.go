/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vecterrain/internal/geom"
	"vecterrain/internal/ringfx"
	"vecterrain/internal/storage"
)

func square(x, y, s float64) geom.Ring {
	return geom.Ring{{X: x, Y: y}, {X: x + s, Y: y}, {X: x + s, Y: y + s}, {X: x, Y: y + s}}
}

func sampleDocument() storage.Document {
	d := storage.NewDocument("Sample Terrain")
	// hole shares the outer winding; export must still leave it open
	d.Layers[storage.ShovelLayer] = geom.MultiPolygon{{Outer: square(0, 0, 100), Holes: []geom.Ring{square(40, 40, 20)}}}
	d.Layers[storage.PaintLayer("grass", storage.DepthForeground)] = geom.MultiPolygon{{Outer: square(0, 0, 10)}}
	d.Layers[storage.PaintLayer("rock", storage.DepthBackground)] = geom.MultiPolygon{{Outer: square(80, 80, 10)}}
	d.Layers[storage.PaintLayer("sand", storage.DepthTop)] = nil
	return d
}

func plain() Options {
	return Options{Scale: 1, Margin: 10, NoDecor: true}
}

func TestRenderPNGFillsAndHoles(t *testing.T) {
	opt := PNGOptions{Options: plain()}
	img, err := RenderPNG(sampleDocument(), opt)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 120 || b.Dy() != 120 {
		t.Fatalf("size = %v, want 120x120", b)
	}
	// world (x,y) is pixel (x+10, y+10)
	at := func(x, y int) color.RGBA { return img.RGBAAt(x+10, y+10) }
	if got := at(20, 20); got != shovelFill {
		t.Fatalf("inside shovel = %v, want %v", got, shovelFill)
	}
	if got := at(50, 50); got != defaultBackground {
		t.Fatalf("inside hole = %v, want background", got)
	}
	if got := at(-5, -5); got != defaultBackground {
		t.Fatalf("margin = %v, want background", got)
	}
	if got := at(5, 5); got != defaultPalette["grass"] {
		t.Fatalf("foreground paint must draw over the shovel, got %v", got)
	}
	if got := at(85, 85); got != shovelFill {
		t.Fatalf("background paint must sit under the shovel, got %v", got)
	}
}

func TestRenderPNGDecorationBorder(t *testing.T) {
	o := Options{Scale: 1, Decor: ringfx.DecorOptions{NoSmooth: true}}
	doc := sampleDocument()
	sc, err := BuildScene(doc, o)
	if err != nil {
		t.Fatalf("scene: %v", err)
	}
	if sc.Bounds.W <= 100+2*60 {
		t.Fatalf("bounds must include the outer rings, got %+v", sc.Bounds)
	}
	if sc.Layers[1].Name != storage.ShovelLayer || sc.Layers[1].Decor == nil || sc.Layers[1].Decor.Len() == 0 {
		t.Fatalf("expected decorated shovel layer, got %+v", sc.Layers[1])
	}
	img, err := RenderPNG(doc, PNGOptions{Options: o})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	x, y := sc.project(geom.Pt(50, 0), 1)
	want := color.RGBA{R: 0x2a, G: 0x1d, B: 0x0f, A: 0xff}
	if got := img.RGBAAt(int(x), int(y)); got != want {
		t.Fatalf("border pixel = %v, want %v", got, want)
	}
}

func TestRenderPNGErrors(t *testing.T) {
	if _, err := RenderPNG(storage.NewDocument("empty"), PNGOptions{}); !errors.Is(err, ErrNothingToExport) {
		t.Fatalf("expected ErrNothingToExport, got %v", err)
	}
	o := plain()
	o.Scale = 1e4
	if _, err := RenderPNG(sampleDocument(), PNGOptions{Options: o}); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	o = plain()
	o.Layers = []string{"paint/sand/top"}
	if _, err := RenderPNG(sampleDocument(), PNGOptions{Options: o}); !errors.Is(err, ErrNothingToExport) {
		t.Fatalf("empty layer selection should export nothing, got %v", err)
	}
}

func TestPaletteFill(t *testing.T) {
	o := Options{Palette: map[string]color.RGBA{"grass": {R: 1, A: 255}, "paint/rock/top": {G: 2, A: 255}}}
	if c := o.Fill("paint/grass/background"); c.R != 1 {
		t.Fatalf("material override ignored: %v", c)
	}
	if c := o.Fill("paint/rock/top"); c.G != 2 {
		t.Fatalf("layer override ignored: %v", c)
	}
	if a, b := o.Fill("paint/moss/top"), o.Fill("paint/moss/background"); a != b || a.A != 255 {
		t.Fatalf("unknown material should get one stable colour: %v %v", a, b)
	}
}

func TestExportPNG(t *testing.T) {
	root := t.TempDir()
	h, err := storage.Init(root, sampleDocument())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	path, err := ExportPNG(h, filepath.Join("png", "t.png"), PNGOptions{Options: plain()})
	if err != nil {
		t.Fatalf("export png: %v", err)
	}
	if want := filepath.Join(root, storage.ExportsDirName, "png", "t.png"); path != want {
		t.Fatalf("path = %s, want %s", path, want)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(b, []byte("\x89PNG")) {
		t.Fatalf("not a png")
	}
}

func TestWriteSVG(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSVG(&buf, sampleDocument(), SVGOptions{Options: Options{Scale: 2}}); err != nil {
		t.Fatalf("svg: %v", err)
	}
	s := buf.String()
	if !strings.Contains(s, `fill-rule="evenodd"`) || !strings.Contains(s, "<title>Sample Terrain</title>") {
		t.Fatalf("missing fill rule or title:\n%s", s)
	}
	bg := strings.Index(s, `id="paint/rock/background"`)
	sh := strings.Index(s, `id="shovel"`)
	fg := strings.Index(s, `id="paint/grass/foreground"`)
	if bg < 0 || !(bg < sh && sh < fg) {
		t.Fatalf("layers out of order: %d %d %d", bg, sh, fg)
	}
	if strings.Contains(s, "paint/sand/top") {
		t.Fatalf("empty layer written")
	}
	if !strings.Contains(s, "M40 40 L60 40 L60 60 L40 60 Z") {
		t.Fatalf("hole ring missing")
	}
	if !strings.Contains(s, `stroke-opacity="0.22"`) {
		t.Fatalf("inner shadow stroke missing")
	}
}

func TestExportSVG(t *testing.T) {
	root := t.TempDir()
	h, err := storage.Init(root, sampleDocument())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	path, err := ExportSVG(h, "t.svg", SVGOptions{})
	if err != nil {
		t.Fatalf("export svg: %v", err)
	}
	st, err := os.Stat(path)
	if err != nil || st.Size() == 0 {
		t.Fatalf("svg missing: %v", err)
	}
}
