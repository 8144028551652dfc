/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"fmt"
	"sort"
	"strings"
)

// ShovelLayer holds the dug-out terrain.
const ShovelLayer = "shovel"

// Paint depths, back to front.
const (
	DepthBackground = "background"
	DepthForeground = "foreground"
	DepthTop        = "top"
)

var depthRank = map[string]int{DepthBackground: 0, DepthForeground: 2, DepthTop: 3}

// shovel draws between background and foreground paint
const shovelRank = 1

func ParseDepth(s string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(s))
	if d == "" {
		return DepthBackground, nil
	}
	if _, ok := depthRank[d]; !ok {
		return "", fmt.Errorf("unknown paint depth %q", s)
	}
	return d, nil
}

// PaintLayer names the layer of material at depth: paint/<material>/<depth>.
func PaintLayer(material, depth string) string {
	return "paint/" + material + "/" + depth
}

// SplitPaintLayer is the inverse of PaintLayer.
func SplitPaintLayer(name string) (material, depth string, ok bool) {
	parts := strings.Split(name, "/")
	if len(parts) != 3 || parts[0] != "paint" || parts[1] == "" {
		return "", "", false
	}
	if _, known := depthRank[parts[2]]; !known {
		return "", "", false
	}
	return parts[1], parts[2], true
}

func layerRank(name string) int {
	if name == ShovelLayer {
		return shovelRank
	}
	if _, d, ok := SplitPaintLayer(name); ok {
		return depthRank[d]
	}
	return len(depthRank) + 1
}

// SortLayers orders names for drawing: background paint, shovel,
// foreground, top, then anything unknown. Ties sort by name.
func SortLayers(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		ri, rj := layerRank(names[i]), layerRank(names[j])
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})
}
