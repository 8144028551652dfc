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
	"image/color"
	"io"

	"github.com/jung-kurt/gofpdf"

	"vecterrain/internal/geom"
	"vecterrain/internal/ringfx"
	"vecterrain/internal/storage"
)

// PDFOptions controls PDF export. Units are points; Scale is points per
// world unit and the page is sized to the scene.
type PDFOptions struct {
	Options
	Title  string
	Author string
}

func newPDF(doc storage.Document, opt PDFOptions) (*gofpdf.Fpdf, error) {
	o := opt.Options.withDefaults()
	sc, err := BuildScene(doc, o)
	if err != nil {
		return nil, err
	}
	pw, ph := sc.Size(o.Scale)

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: pw, Ht: ph},
	})
	title := opt.Title
	if title == "" {
		title = doc.Name
	}
	author := opt.Author
	if author == "" {
		author = "vecterrain"
	}
	pdf.SetTitle(title, true)
	pdf.SetAuthor(author, true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPageFormat("", gofpdf.SizeType{Wd: pw, Ht: ph})

	setFillColor(pdf, o.Background)
	pdf.Rect(0, 0, pw, ph, "F")

	d := pdfDrawer{pdf: pdf, sc: sc, scale: o.Scale}
	for _, l := range sc.Layers {
		if l.Decor != nil {
			d.strokes(l.Decor.Outer)
		}
		setFillColor(pdf, l.Fill)
		for _, p := range l.Geometry {
			d.path(p.Outer)
			for _, h := range p.Holes {
				d.path(h)
			}
			pdf.DrawPath("F*")
		}
		if l.Decor != nil {
			d.strokes(l.Decor.Inner)
			d.strokes(l.Decor.Border)
		}
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("build pdf: %w", err)
	}
	return pdf, nil
}

// WritePDF renders doc as a single-page vector PDF.
func WritePDF(w io.Writer, doc storage.Document, opt PDFOptions) error {
	pdf, err := newPDF(doc, opt)
	if err != nil {
		return err
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// ExportPDF writes the project's document to out and returns the path.
func ExportPDF(h *storage.Handle, out string, opt PDFOptions) (string, error) {
	path, err := resolveOut(h, out)
	if err != nil {
		return "", err
	}
	pdf, err := newPDF(h.Doc, opt)
	if err != nil {
		return "", err
	}
	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}
	return path, nil
}

type pdfDrawer struct {
	pdf   *gofpdf.Fpdf
	sc    Scene
	scale float64
}

func (d pdfDrawer) path(r geom.Ring) {
	if len(r) < 3 {
		return
	}
	d.pdf.MoveTo(d.sc.project(r[0], d.scale))
	for _, p := range r[1:] {
		d.pdf.LineTo(d.sc.project(p, d.scale))
	}
	d.pdf.ClosePath()
}

func (d pdfDrawer) strokes(list []ringfx.Stroke) {
	d.pdf.SetLineJoinStyle("round")
	for _, st := range list {
		if st.Alpha <= 0 || len(st.Ring) < 3 {
			continue
		}
		c := strokeColor(st)
		d.pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
		d.pdf.SetLineWidth(st.Width * d.scale)
		d.pdf.SetAlpha(st.Alpha, "Normal")
		d.path(st.Ring)
		d.pdf.DrawPath("D")
	}
	d.pdf.SetAlpha(1, "Normal")
}

func setFillColor(pdf *gofpdf.Fpdf, c color.RGBA) {
	pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
}
