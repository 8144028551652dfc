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
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"vecterrain/internal/geom"
	"vecterrain/internal/ringfx"
	"vecterrain/internal/storage"
)

// SVGOptions controls SVG export. The viewBox is in world units; Scale only
// sets the width and height attributes.
type SVGOptions struct {
	Options
	// Precision is the number of decimals written per coordinate.
	Precision int
}

// WriteSVG writes doc as one <path> per polygon, filled with the even-odd
// rule, and decoration strokes as unfilled paths.
func WriteSVG(w io.Writer, doc storage.Document, opt SVGOptions) error {
	o := opt.Options.withDefaults()
	if opt.Precision <= 0 {
		opt.Precision = 2
	}
	sc, err := BuildScene(doc, o)
	if err != nil {
		return err
	}
	pw, ph := sc.Size(o.Scale)

	var buf bytes.Buffer
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}
	num := func(v float64) string { return strconv.FormatFloat(geom.Round(v, opt.Precision), 'f', -1, 64) }

	b := sc.Bounds
	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" version=\"1.1\" width=\"%dpx\" height=\"%dpx\" viewBox=\"%s %s %s %s\">\n",
		int(math.Ceil(pw)), int(math.Ceil(ph)), num(b.X), num(b.Y), num(b.W), num(b.H))
	wf("  <title>%s</title>\n", escText(doc.Name))
	wf("  <rect x=\"%s\" y=\"%s\" width=\"%s\" height=\"%s\" fill=\"%s\"/>\n", num(b.X), num(b.Y), num(b.W), num(b.H), svgColor(o.Background))

	strokes := func(list []ringfx.Stroke) {
		for _, st := range list {
			if st.Alpha <= 0 || len(st.Ring) < 2 {
				continue
			}
			wf("    <path d=\"%s\" fill=\"none\" stroke=\"%s\" stroke-opacity=\"%s\" stroke-width=\"%s\" stroke-linejoin=\"round\"/>\n",
				ringPath(st.Ring, num), svgColor(strokeColor(st)), num(st.Alpha), num(st.Width))
		}
	}
	for _, l := range sc.Layers {
		wf("  <g id=\"%s\">\n", escAttr(l.Name))
		if l.Decor != nil {
			strokes(l.Decor.Outer)
		}
		for _, p := range l.Geometry {
			var d strings.Builder
			d.WriteString(ringPath(p.Outer, num))
			for _, h := range p.Holes {
				d.WriteByte(' ')
				d.WriteString(ringPath(h, num))
			}
			wf("    <path d=\"%s\" fill=\"%s\" fill-rule=\"evenodd\"/>\n", d.String(), svgColor(l.Fill))
		}
		if l.Decor != nil {
			strokes(l.Decor.Inner)
			strokes(l.Decor.Border)
		}
		wf("  </g>\n")
	}
	wf("</svg>\n")
	if werr != nil {
		return fmt.Errorf("build svg: %w", werr)
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// ExportSVG writes the project's document to out and returns the path.
func ExportSVG(h *storage.Handle, out string, opt SVGOptions) (string, error) {
	path, err := resolveOut(h, out)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := WriteSVG(&buf, h.Doc, opt); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write svg: %w", err)
	}
	return path, nil
}

func ringPath(r geom.Ring, num func(float64) string) string {
	if len(r) == 0 {
		return ""
	}
	var b strings.Builder
	for i, p := range r {
		if i == 0 {
			b.WriteString("M")
		} else {
			b.WriteString(" L")
		}
		b.WriteString(num(p.X))
		b.WriteByte(' ')
		b.WriteString(num(p.Y))
	}
	b.WriteString(" Z")
	return b.String()
}

func svgColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func escAttr(s string) string {
	r := strings.NewReplacer("&", "&amp;", "\"", "&quot;", "<", "&lt;", "\n", " ", "\r", "")
	return r.Replace(s)
}

func escText(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
