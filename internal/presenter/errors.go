/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package presenter

import (
	"errors"

	"mathviz/internal/script"
)

// Control-surface errors. All playback-data problems (malformed actions,
// broken predicates) are logged and reported, never returned: a broken
// line must not block the rest of the script.
var (
	// ErrScriptNotFound is returned by Start for an unknown script id.
	ErrScriptNotFound = script.ErrNotFound
	// ErrSeekOutOfRange is returned by Seek for a section/line pair that
	// does not exist in the current script. The presenter is unchanged.
	ErrSeekOutOfRange = errors.New("seek target not in script")
	// ErrActive is returned by Start while a session is already running.
	ErrActive = errors.New("presenter already active")
	// ErrNotActive is returned by controls that need a running session.
	ErrNotActive = errors.New("presenter not active")
)
