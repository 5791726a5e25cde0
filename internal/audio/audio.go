/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package audio reads pre-generated narration audio manifests. The player
// only needs per-line durations and clip paths; decoding and output are
// someone else's problem. A missing manifest is not an error, playback
// falls back to estimated timing.
package audio

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	applog "mathviz/internal/log"
)

// Clip is one synthesized narration line in a manifest.
type Clip struct {
	SectionID string  `json:"section_id"`
	LineID    string  `json:"line_id"`
	Path      string  `json:"path"`
	Duration  float64 `json:"duration"` // seconds
	Text      string  `json:"text,omitempty"`
}

// Manifest describes the synthesized audio for one script and voice.
// It lives at <dir>/<script-id>/<voice>/manifest.json, with a voiceless
// <dir>/<script-id>/manifest.json fallback for older generations.
type Manifest struct {
	ScriptID      string  `json:"script_id"`
	Voice         string  `json:"voice,omitempty"`
	Files         []Clip  `json:"files"`
	TotalDuration float64 `json:"total_duration,omitempty"`
}

// LoadManifest reads a manifest document from path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// Library resolves line durations and clip paths from a directory of
// per-script manifests. Manifests are loaded lazily and cached; a script
// without audio stays marked absent so the lookup is not retried per line.
type Library struct {
	dir   string
	voice string
	log   *slog.Logger

	mu    sync.Mutex
	cache map[string]*index
}

type index struct {
	base  string
	clips map[string]Clip // keyed section/line
}

// NewLibrary creates a library over dir for the given voice.
func NewLibrary(dir, voice string) *Library {
	return &Library{
		dir:   dir,
		voice: voice,
		log:   applog.WithComponent("audio"),
		cache: make(map[string]*index),
	}
}

// LineDuration reports the synthesized duration for one narration line.
// The boolean is false when no audio is available for the line.
func (l *Library) LineDuration(scriptID, sectionID, lineID string) (time.Duration, bool) {
	c, ok := l.clip(scriptID, sectionID, lineID)
	if !ok || c.Duration <= 0 {
		return 0, false
	}
	return time.Duration(c.Duration * float64(time.Second)), true
}

// ClipPath returns the on-disk path of the audio file for one line.
func (l *Library) ClipPath(scriptID, sectionID, lineID string) (string, bool) {
	c, ok := l.clip(scriptID, sectionID, lineID)
	if !ok || c.Path == "" {
		return "", false
	}
	idx, _ := l.load(scriptID)
	return filepath.Join(idx.base, c.Path), true
}

func (l *Library) clip(scriptID, sectionID, lineID string) (Clip, bool) {
	idx, ok := l.load(scriptID)
	if !ok {
		return Clip{}, false
	}
	c, ok := idx.clips[sectionID+"/"+lineID]
	return c, ok
}

func (l *Library) load(scriptID string) (*index, bool) {
	if l == nil || l.dir == "" || scriptID == "" {
		return nil, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if idx, seen := l.cache[scriptID]; seen {
		return idx, idx != nil
	}

	candidates := []string{
		filepath.Join(l.dir, scriptID, l.voice, "manifest.json"),
		filepath.Join(l.dir, scriptID, "manifest.json"),
	}
	for _, path := range candidates {
		m, err := LoadManifest(path)
		if err != nil {
			if !os.IsNotExist(err) {
				l.log.Warn("manifest unreadable", slog.String("path", path), slog.Any("err", err))
			}
			continue
		}
		idx := &index{base: filepath.Dir(path), clips: make(map[string]Clip, len(m.Files))}
		for _, c := range m.Files {
			idx.clips[c.SectionID+"/"+c.LineID] = c
		}
		l.cache[scriptID] = idx
		return idx, true
	}
	// remember the miss
	l.cache[scriptID] = nil
	return nil, false
}
