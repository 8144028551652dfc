/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/paulmach/orb/geojson"

	"vecterrain/internal/geom"
)

// FormatVersion is written into every document.
const FormatVersion = 1

// Document is the in-memory form of terrain.json.
type Document struct {
	Version  int
	Name     string
	Created  time.Time
	Modified time.Time
	Zoom     float64
	// Layers maps a layer name (ShovelLayer or PaintLayer) to its geometry.
	Layers map[string]geom.MultiPolygon
	Stamps []geom.Polygon
}

// NewDocument returns an empty document stamped with the current time.
func NewDocument(name string) Document {
	now := time.Now().UTC()
	return Document{
		Version:  FormatVersion,
		Name:     name,
		Created:  now,
		Modified: now,
		Zoom:     1,
		Layers:   map[string]geom.MultiPolygon{},
	}
}

// LayerNames returns the layer keys in drawing order.
func (d Document) LayerNames() []string {
	names := make([]string, 0, len(d.Layers))
	for k := range d.Layers {
		names = append(names, k)
	}
	SortLayers(names)
	return names
}

type wireCamera struct {
	Zoom float64 `json:"zoom"`
}

type wireDocument struct {
	Version  int                                   `json:"version"`
	Name     string                                `json:"name"`
	Created  time.Time                             `json:"created"`
	Modified time.Time                             `json:"modified"`
	Camera   wireCamera                            `json:"camera"`
	Layers   map[string]*geojson.FeatureCollection `json:"layers"`
	Stamps   *geojson.FeatureCollection            `json:"stamps"`
}

func (d Document) MarshalJSON() ([]byte, error) {
	w := wireDocument{
		Version:  d.Version,
		Name:     d.Name,
		Created:  d.Created,
		Modified: d.Modified,
		Camera:   wireCamera{Zoom: d.Zoom},
		Layers:   make(map[string]*geojson.FeatureCollection, len(d.Layers)),
		Stamps:   PolygonsToFeatures(d.Stamps),
	}
	if w.Version == 0 {
		w.Version = FormatVersion
	}
	for name, mp := range d.Layers {
		w.Layers[name] = PolygonsToFeatures(mp)
	}
	return json.Marshal(w)
}

func (d *Document) UnmarshalJSON(b []byte) error {
	var w wireDocument
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	out := Document{
		Version:  w.Version,
		Name:     w.Name,
		Created:  w.Created,
		Modified: w.Modified,
		Zoom:     w.Camera.Zoom,
		Layers:   make(map[string]geom.MultiPolygon, len(w.Layers)),
	}
	if out.Zoom <= 0 {
		out.Zoom = 1
	}
	for name, fc := range w.Layers {
		mp, err := FeaturesToPolygons(fc)
		if err != nil {
			return fmt.Errorf("layer %q: %w", name, err)
		}
		out.Layers[name] = mp
	}
	stamps, err := FeaturesToPolygons(w.Stamps)
	if err != nil {
		return fmt.Errorf("stamps: %w", err)
	}
	out.Stamps = stamps
	*d = out
	return nil
}

// PolygonsToFeatures writes one Polygon feature per entry, tagged with its
// index.
func PolygonsToFeatures(polys []geom.Polygon) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, p := range polys {
		f := geojson.NewFeature(p.ToOrb())
		f.Properties["index"] = i
		fc.Append(f)
	}
	return fc
}

// FeaturesToPolygons accepts Polygon and MultiPolygon features; any other
// geometry is an error. A nil collection yields nil.
func FeaturesToPolygons(fc *geojson.FeatureCollection) (geom.MultiPolygon, error) {
	if fc == nil {
		return nil, nil
	}
	var out geom.MultiPolygon
	for i, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		mp, err := geom.FromOrbGeometry(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		out = append(out, mp...)
	}
	return out, nil
}
