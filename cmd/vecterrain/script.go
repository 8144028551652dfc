/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"vecterrain/internal/brush"
	"vecterrain/internal/editor"
	"vecterrain/internal/geom"
)

// Script is a recorded editing session: a list of strokes and undo/redo
// steps replayed against an editor in order.
type Script struct {
	Steps []Step `yaml:"steps"`
}

// Step is either a stroke (Points set) or an undo/redo of Layer. Tool,
// mode and brush fields persist into later steps.
type Step struct {
	Tool     string       `yaml:"tool"`
	Mode     string       `yaml:"mode"`
	Material string       `yaml:"material"`
	Depth    string       `yaml:"depth"`
	Size     float64      `yaml:"size"`
	Zoom     float64      `yaml:"zoom"`
	Points   [][2]float64 `yaml:"points"`
	// Resample subdivides the polyline so samples are at most this far
	// apart in world units, like pointer events from a real drag.
	Resample float64 `yaml:"resample"`
	Undo     bool    `yaml:"undo"`
	Redo     bool    `yaml:"redo"`
	Layer    string  `yaml:"layer"`
}

func LoadScript(path string) (Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return Script{}, err
	}
	defer f.Close()
	return DecodeScript(f)
}

func DecodeScript(r io.Reader) (Script, error) {
	var s Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return Script{}, fmt.Errorf("parse script: %w", err)
	}
	return s, nil
}

// Result summarises a replay.
type Result struct {
	Strokes int
	Undos   int
	Redos   int
}

// Run replays s into ed. It stops at the first failing step.
func (s Script) Run(ctx context.Context, ed *editor.Editor) (Result, error) {
	var res Result
	for i, st := range s.Steps {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := st.apply(ctx, ed, &res); err != nil {
			return res, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return res, nil
}

func (st Step) apply(ctx context.Context, ed *editor.Editor, res *Result) error {
	if st.Tool != "" {
		t, err := editor.ParseTool(st.Tool)
		if err != nil {
			return err
		}
		if err := ed.SetTool(t); err != nil {
			return err
		}
	}
	if st.Mode != "" {
		m, err := brush.ParseMode(st.Mode)
		if err != nil {
			return err
		}
		if err := ed.SetMode(m); err != nil {
			return err
		}
	}
	if st.Material != "" || st.Depth != "" {
		material := st.Material
		if material == "" {
			material = "grass"
		}
		if err := ed.SetPaintLayer(material, st.Depth); err != nil {
			return err
		}
	}
	if st.Size > 0 {
		ed.SetBrushSize(st.Size)
	}
	if st.Zoom > 0 {
		ed.SetZoom(st.Zoom)
	}
	switch {
	case st.Undo:
		if err := ed.Undo(st.Layer); err != nil {
			return err
		}
		res.Undos++
	case st.Redo:
		if err := ed.Redo(st.Layer); err != nil {
			return err
		}
		res.Redos++
	case len(st.Points) > 0:
		pts := resample(st.Points, st.Resample)
		if err := ed.PointerDown(pts[0]); err != nil {
			return err
		}
		for _, p := range pts[1:] {
			if err := ed.PointerMove(p); err != nil {
				return err
			}
		}
		if err := ed.PointerUp(ctx); err != nil {
			return err
		}
		res.Strokes++
	}
	return nil
}

func resample(in [][2]float64, step float64) []geom.Point {
	out := make([]geom.Point, 0, len(in))
	for i, p := range in {
		cur := geom.Pt(p[0], p[1])
		if i > 0 && step > 0 {
			prev := out[len(out)-1]
			n := int(math.Ceil(cur.Dist(prev) / step))
			for k := 1; k < n; k++ {
				out = append(out, prev.Add(cur.Sub(prev).Mul(float64(k)/float64(n))))
			}
		}
		out = append(out, cur)
	}
	return out
}
