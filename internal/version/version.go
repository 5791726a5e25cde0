/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package version exposes build metadata for the mathviz suite.
package version

import "runtime/debug"

// Version is the semantic version of the application. It may be overridden
// at build time via -ldflags "-X mathviz/internal/version.Version=...".
var Version = "0.3.0-dev"

// String returns the version, enriched with VCS revision info when the
// binary was built from a module with embedded build info.
func String() string {
	s := Version
	if bi, ok := debug.ReadBuildInfo(); ok {
		var rev, dirty string
		for _, kv := range bi.Settings {
			switch kv.Key {
			case "vcs.revision":
				if len(kv.Value) >= 8 {
					rev = kv.Value[:8]
				} else {
					rev = kv.Value
				}
			case "vcs.modified":
				if kv.Value == "true" {
					dirty = "+dirty"
				}
			}
		}
		if rev != "" {
			s += " (" + rev + dirty + ")"
		}
	}
	return s
}
