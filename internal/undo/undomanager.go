/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package undo keeps bounded per-layer undo/redo stacks of terrain
// snapshots. A snapshot is the layer's MultiPolygon as WKB, captured before
// a stroke changes it.
package undo

import (
	"fmt"
	"sync"
	"time"

	"github.com/paulmach/orb/encoding/wkb"

	"vecterrain/internal/geom"
)

// Snapshot is a reversible layer state. Size is estimated as len(Blob).
type Snapshot struct {
	Layer string
	Blob  []byte
	TS    time.Time
}

// Capture encodes mp as a snapshot of layer.
func Capture(layer string, mp geom.MultiPolygon, ts time.Time) (Snapshot, error) {
	b, err := wkb.Marshal(mp.ToOrb())
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode %s snapshot: %w", layer, err)
	}
	return Snapshot{Layer: layer, Blob: b, TS: ts}, nil
}

// Geometry decodes the snapshot.
func (s Snapshot) Geometry() (geom.MultiPolygon, error) {
	g, err := wkb.Unmarshal(s.Blob)
	if err != nil {
		return nil, fmt.Errorf("decode %s snapshot: %w", s.Layer, err)
	}
	return geom.FromOrbGeometry(g)
}

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap; the oldest entries across layers are pruned
	// when exceeded.
	MaxBytes int
	// MaxPerLayer limits the undo depth of one layer (0 means unlimited).
	MaxPerLayer int
	// MinInterval coalesces snapshots pushed within the interval for the
	// same layer. The earlier state is kept since it is the one to return to.
	MinInterval time.Duration
}

// Manager provides an in-memory undo/redo stack per layer.
// It is safe for concurrent use.
type Manager struct {
	cfg Config
	mu  sync.Mutex
	// per-layer stacks
	undo map[string][]Snapshot
	redo map[string][]Snapshot
	// accounting, both stacks
	totalBytes int
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 16 * 1024 * 1024 // 16 MiB
	}
	if cfg.MinInterval < 0 {
		cfg.MinInterval = 0
	}
	return &Manager{cfg: cfg, undo: make(map[string][]Snapshot), redo: make(map[string][]Snapshot)}
}

// PushSnapshot records the state of a layer before a change and clears the
// layer's redo stack.
func (m *Manager) PushSnapshot(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropRedoLocked(s.Layer)
	stack := m.undo[s.Layer]
	if n := len(stack); n > 0 && m.cfg.MinInterval > 0 {
		last := stack[n-1]
		if s.TS.Sub(last.TS) < m.cfg.MinInterval {
			stack[n-1].TS = s.TS
			return
		}
	}
	m.undo[s.Layer] = append(stack, s)
	m.totalBytes += len(s.Blob)
	m.enforceCapsLocked(s.Layer)
}

// Undo swaps current for the most recent snapshot of its layer. current is
// kept for Redo.
func (m *Manager) Undo(current Snapshot) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[current.Layer]
	if len(stack) == 0 {
		return Snapshot{}, false
	}
	s := stack[len(stack)-1]
	m.undo[current.Layer] = stack[:len(stack)-1]
	m.totalBytes -= len(s.Blob)
	m.redo[current.Layer] = append(m.redo[current.Layer], current)
	m.totalBytes += len(current.Blob)
	m.enforceCapsLocked(current.Layer)
	return s, true
}

// Redo reverses the last Undo of current's layer.
func (m *Manager) Redo(current Snapshot) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.redo[current.Layer]
	if len(r) == 0 {
		return Snapshot{}, false
	}
	s := r[len(r)-1]
	m.redo[current.Layer] = r[:len(r)-1]
	m.totalBytes -= len(s.Blob)
	m.undo[current.Layer] = append(m.undo[current.Layer], current)
	m.totalBytes += len(current.Blob)
	m.enforceCapsLocked(current.Layer)
	return s, true
}

func (m *Manager) CanUndo(layer string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo[layer]) > 0
}

func (m *Manager) CanRedo(layer string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo[layer]) > 0
}

// ClearLayer clears undo/redo stacks for a layer to free memory.
func (m *Manager) ClearLayer(layer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.undo[layer] {
		m.totalBytes -= len(s.Blob)
	}
	m.dropRedoLocked(layer)
	delete(m.undo, layer)
	delete(m.redo, layer)
	if m.totalBytes < 0 {
		m.totalBytes = 0
	}
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes int, layers int, totalSnapshots int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.undo {
		if len(v) > 0 {
			layers++
		}
		totalSnapshots += len(v)
	}
	return m.totalBytes, layers, totalSnapshots
}

func (m *Manager) dropRedoLocked(layer string) {
	for _, s := range m.redo[layer] {
		m.totalBytes -= len(s.Blob)
	}
	m.redo[layer] = nil
}

func (m *Manager) enforceCapsLocked(layer string) {
	if m.cfg.MaxPerLayer > 0 {
		stack := m.undo[layer]
		if len(stack) > m.cfg.MaxPerLayer {
			toDrop := len(stack) - m.cfg.MaxPerLayer
			for i := 0; i < toDrop; i++ {
				m.totalBytes -= len(stack[i].Blob)
			}
			m.undo[layer] = append([]Snapshot{}, stack[toDrop:]...)
		}
	}
	// Global memory cap: prune the oldest undo entry across all layers.
	for m.cfg.MaxBytes > 0 && m.totalBytes > m.cfg.MaxBytes {
		oldest := ""
		found := false
		var oldestTS time.Time
		for l, stack := range m.undo {
			if len(stack) == 0 {
				continue
			}
			if !found || stack[0].TS.Before(oldestTS) {
				oldest, oldestTS, found = l, stack[0].TS, true
			}
		}
		if !found {
			break
		}
		stack := m.undo[oldest]
		m.totalBytes -= len(stack[0].Blob)
		m.undo[oldest] = stack[1:]
		if len(m.undo[oldest]) == 0 {
			delete(m.undo, oldest)
		}
	}
}
