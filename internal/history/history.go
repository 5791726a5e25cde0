/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package history keeps in-memory undo/redo stacks of scene states for
// interactive experimentation. Scripted playback does not push here; only
// user-driven edits do, so undo never fights the narration.
package history

import (
	"sync"
	"time"

	"mathviz/internal/scene"
)

// Snapshot is a reversible scene state for one experiment.
// TS is when the snapshot was captured.
type Snapshot struct {
	Experiment string
	State      scene.State
	TS         time.Time
}

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap on estimated memory; older entries are pruned
	// when exceeded.
	MaxBytes int
	// MaxPerExperiment limits snapshots per experiment (0 means unlimited).
	MaxPerExperiment int
	// MinInterval coalesces snapshots captured within the interval for the
	// same experiment, replacing the previous one instead of pushing a new
	// entry. Slider drags produce bursts; coalescing keeps them to one step.
	MinInterval time.Duration
}

// Manager provides an in-memory undo/redo stack per experiment with
// performance safeguards. It is safe for concurrent use.
type Manager struct {
	cfg Config
	mu  sync.Mutex
	// per-experiment stacks
	undo map[string][]Snapshot
	redo map[string][]Snapshot
	// accounting
	totalBytes int
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 4 * 1024 * 1024 // 4 MiB
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 250 * time.Millisecond
	}
	return &Manager{cfg: cfg, undo: make(map[string][]Snapshot), redo: make(map[string][]Snapshot)}
}

// PushSnapshot records a snapshot. If within MinInterval from the last
// snapshot of the same experiment, it replaces the last one. Clears the redo
// stack for that experiment.
func (m *Manager) PushSnapshot(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[s.Experiment]
	if n := len(stack); n > 0 {
		last := stack[n-1]
		if s.TS.Sub(last.TS) < m.cfg.MinInterval {
			m.totalBytes -= sizeOf(last.State)
			m.totalBytes += sizeOf(s.State)
			stack[n-1] = s
			m.undo[s.Experiment] = stack
			m.redo[s.Experiment] = nil
			m.enforceCapsLocked(s.Experiment)
			return
		}
	}
	stack = append(stack, s)
	m.undo[s.Experiment] = stack
	m.totalBytes += sizeOf(s.State)
	// Any new change invalidates redo for the experiment
	m.redo[s.Experiment] = nil
	m.enforceCapsLocked(s.Experiment)
}

// Undo pops from the undo stack and pushes to redo, returning the snapshot.
func (m *Manager) Undo(experiment string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[experiment]
	if len(stack) == 0 {
		return Snapshot{}, false
	}
	s := stack[len(stack)-1]
	m.undo[experiment] = stack[:len(stack)-1]
	m.totalBytes -= sizeOf(s.State)
	m.redo[experiment] = append(m.redo[experiment], s)
	return s, true
}

// Redo pops from redo and pushes back to undo.
func (m *Manager) Redo(experiment string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.redo[experiment]
	if len(r) == 0 {
		return Snapshot{}, false
	}
	s := r[len(r)-1]
	m.redo[experiment] = r[:len(r)-1]
	m.undo[experiment] = append(m.undo[experiment], s)
	m.totalBytes += sizeOf(s.State)
	m.enforceCapsLocked(experiment)
	return s, true
}

// Clear drops undo/redo stacks for an experiment to free memory.
func (m *Manager) Clear(experiment string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.undo[experiment] {
		m.totalBytes -= sizeOf(s.State)
	}
	delete(m.undo, experiment)
	delete(m.redo, experiment)
	if m.totalBytes < 0 {
		m.totalBytes = 0
	}
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes int, experiments int, totalSnapshots int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	experiments = len(m.undo)
	for _, v := range m.undo {
		totalSnapshots += len(v)
	}
	return m.totalBytes, experiments, totalSnapshots
}

func (m *Manager) enforceCapsLocked(experiment string) {
	// Per-experiment depth cap
	if m.cfg.MaxPerExperiment > 0 {
		stack := m.undo[experiment]
		if len(stack) > m.cfg.MaxPerExperiment {
			toDrop := len(stack) - m.cfg.MaxPerExperiment
			for i := 0; i < toDrop; i++ {
				m.totalBytes -= sizeOf(stack[i].State)
			}
			m.undo[experiment] = append([]Snapshot{}, stack[toDrop:]...)
		}
	}
	// Global memory cap: prune oldest across all experiments
	for m.cfg.MaxBytes > 0 && m.totalBytes > m.cfg.MaxBytes {
		oldestExp := ""
		oldestIdx := -1
		var oldestTS time.Time
		for exp, stack := range m.undo {
			if len(stack) == 0 {
				continue
			}
			if oldestIdx == -1 || stack[0].TS.Before(oldestTS) {
				oldestExp = exp
				oldestIdx = 0
				oldestTS = stack[0].TS
			}
		}
		if oldestIdx == -1 {
			break
		}
		stack := m.undo[oldestExp]
		m.totalBytes -= sizeOf(stack[0].State)
		m.undo[oldestExp] = stack[1:]
		if len(m.undo[oldestExp]) == 0 {
			delete(m.undo, oldestExp)
		}
	}
}

// sizeOf estimates the in-memory footprint of a state for cap accounting.
// It only needs to be stable and roughly proportional, not exact.
func sizeOf(st scene.State) int {
	n := 64 + len(st.WaveType)
	for _, h := range st.Highlighted {
		n += 16 + len(h)
	}
	for k := range st.Show {
		n += 17 + len(k)
	}
	for k, v := range st.Params {
		n += 32 + len(k)
		if s, ok := v.(string); ok {
			n += len(s)
		}
	}
	return n
}
