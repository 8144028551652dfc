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
	"path/filepath"
	"strings"

	"vecterrain/internal/storage"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
)

// BatchOptions controls exporting one document to several formats.
//
// Path semantics:
//   - If OutDir is empty or relative, it will be created under <project>/exports/<preset>/.
//   - Each format writes <base>.<ext> inside OutDir, base defaulting to "terrain".
type BatchOptions struct {
	Preset  PresetName
	Formats []string // allowed: png, svg, pdf; empty means preset defaults
	// ScaleOverride when > 0 replaces the preset's scale.
	ScaleOverride float64
	// Decorate when set overrides the preset's default.
	Decorate *bool
	OutDir   string
	BaseName string
	Options  Options
}

// BatchExport runs exports according to the given preset and returns the
// written paths in format order.
func BatchExport(h *storage.Handle, opt BatchOptions) ([]string, error) {
	if h == nil {
		return nil, fmt.Errorf("project handle is nil")
	}
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}

	baseOut := opt.OutDir
	if baseOut == "" {
		baseOut = string(opt.Preset)
		if baseOut == "" {
			baseOut = "default"
		}
	}
	if !filepath.IsAbs(baseOut) {
		baseOut = filepath.Join(h.Root, storage.ExportsDirName, baseOut)
	}
	base := opt.BaseName
	if base == "" {
		base = "terrain"
	}

	o := opt.Options
	o.Scale = presetScale(opt.Preset)
	if opt.ScaleOverride > 0 {
		o.Scale = opt.ScaleOverride
	}
	o.NoDecor = !presetDecorate(opt.Preset)
	if opt.Decorate != nil {
		o.NoDecor = !*opt.Decorate
	}

	var written []string
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		out := filepath.Join(baseOut, base+"."+f)
		var (
			path string
			err  error
		)
		switch f {
		case "png":
			path, err = ExportPNG(h, out, PNGOptions{Options: o})
		case "svg":
			path, err = ExportSVG(h, out, SVGOptions{Options: o})
		case "pdf":
			path, err = ExportPDF(h, out, PDFOptions{Options: o})
		default:
			return written, fmt.Errorf("unknown format: %s", f)
		}
		if err != nil {
			return written, fmt.Errorf("%s: %w", f, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetWeb:
		return []string{"png", "svg"}
	case PresetPrint:
		return []string{"pdf", "png"}
	default:
		return []string{"png"}
	}
}

// presetScale is output units per world unit.
func presetScale(p PresetName) float64 {
	switch p {
	case PresetPrint:
		return 2
	default:
		return 1
	}
}

func presetDecorate(p PresetName) bool {
	return p != PresetPrint
}
