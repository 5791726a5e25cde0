/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export writes narration scripts out for distribution: one flat
// JSON document per script id, and a PDF transcript for reviewers who want
// the narration on paper.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"mathviz/internal/script"
)

// ScriptJSON writes s as a flat JSON document to outPath. The document is
// the same wire format the loader consumes, so exported files round-trip.
func ScriptJSON(s *script.Script, outPath string) error {
	if s == nil {
		return fmt.Errorf("script is nil")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	return script.SaveFile(outPath, s)
}

// AllJSON exports every registered script as <outDir>/<id>.json.
func AllJSON(reg *script.Registry, outDir string) error {
	if reg == nil {
		return fmt.Errorf("registry is nil")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	for _, id := range reg.IDs() {
		s, err := reg.Get(id)
		if err != nil {
			return err
		}
		if err := script.SaveFile(filepath.Join(outDir, id+".json"), s); err != nil {
			return fmt.Errorf("export %s: %w", id, err)
		}
	}
	return nil
}
