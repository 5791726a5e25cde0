/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNotFound is returned by Registry.Get for an unknown script id.
var ErrNotFound = errors.New("script not found")

// Registry is an immutable-after-setup lookup from script id to Script.
// Scripts are registered at session start; there is no removal API.
// Lookups are O(1); IDs preserves registration order.
type Registry struct {
	scripts map[string]*Script
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{scripts: make(map[string]*Script)}
}

// Register adds s under its id. Registering a duplicate id is an error;
// at most one script per id is guaranteed.
func (r *Registry) Register(s *Script) error {
	if s == nil || s.ID == "" {
		return fmt.Errorf("register: script has no id")
	}
	if _, dup := r.scripts[s.ID]; dup {
		return fmt.Errorf("register %s: duplicate script id", s.ID)
	}
	r.scripts[s.ID] = s
	r.order = append(r.order, s.ID)
	return nil
}

// Get returns the script for id, or ErrNotFound.
func (r *Registry) Get(id string) (*Script, error) {
	s, ok := r.scripts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// IDs returns the registered ids in registration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len reports the number of registered scripts.
func (r *Registry) Len() int { return len(r.scripts) }

// LoadDir registers every *.json script document found under dir
// (non-recursive), in file-name order so listings are stable.
func (r *Registry) LoadDir(dir string) error {
	entries, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return err
	}
	sort.Strings(entries)
	for _, path := range entries {
		if strings.HasSuffix(path, "manifest.json") {
			continue
		}
		s, err := LoadFile(path)
		if err != nil {
			return err
		}
		if err := r.Register(s); err != nil {
			return err
		}
	}
	return nil
}

// LoadFS registers every *.json script document in fsys, for embedded
// sample content.
func (r *Registry) LoadFS(fsys fs.FS) error {
	return fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		f, err := fsys.Open(path)
		if err != nil {
			return err
		}
		s, derr := Decode(f)
		_ = f.Close()
		if derr != nil {
			return fmt.Errorf("%s: %w", path, derr)
		}
		return r.Register(s)
	})
}
