/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package presenter

import (
	"log/slog"
	"strconv"
	"strings"

	"mathviz/internal/scene"
	"mathviz/internal/script"
	"mathviz/internal/telemetry"
)

// runAction interprets one animation instruction as a single side effect
// against the scene store and/or the view layer. Dispatch is total: a
// malformed instruction is recorded and skipped, never a fault that halts
// playback. Must be called without the presenter lock held.
func (p *Presenter) runAction(a *script.ActionSpec, at position) {
	if a == nil {
		return
	}
	switch a.Kind {
	case script.ActionSetParameters:
		// keys FromMap cannot type (e.g. a string frequency) are dropped;
		// an instruction left with nothing to apply must not reach the
		// store, or its version bump would fake a parameter change
		patch := scene.FromMap(a.Params)
		if patch.IsEmpty() {
			p.contentIssue(at, "malformed_action", "setParams without usable params")
			return
		}
		p.store.Apply(patch)
	case script.ActionSetWaveType:
		w := a.WaveType
		if strings.TrimSpace(w) == "" {
			p.contentIssue(at, "malformed_action", "setWaveType without waveform")
			return
		}
		p.store.Apply(scene.Patch{WaveType: &w})
	case script.ActionStartAnimation:
		on := true
		p.store.Apply(scene.Patch{IsAnimating: &on})
	case script.ActionStopAnimation:
		off := false
		p.store.Apply(scene.Patch{IsAnimating: &off})
	case script.ActionHighlight:
		if a.Target == "" {
			p.contentIssue(at, "malformed_action", "highlight without target")
			return
		}
		p.store.Apply(scene.Patch{Highlighted: []string{a.Target}})
		p.view.Highlight(a.Target)
	case script.ActionScrollTo:
		if a.Target == "" {
			p.contentIssue(at, "malformed_action", "scrollTo without target")
			return
		}
		// view-layer only, the scene does not change
		p.view.ScrollTo(a.Target)
	case script.ActionReset:
		// restores scene defaults; an in-flight wait for the current
		// line keeps running
		p.store.Reset()
	default:
		p.contentIssue(at, "malformed_action", "unknown action type "+strconv.Quote(a.RawType))
	}
}

// dispatchAction runs a now or, when the instruction asks for a delay,
// schedules it under the current epoch so a seek cancels it.
func (p *Presenter) dispatchAction(a *script.ActionSpec, at position, epoch uint64) {
	if a == nil {
		return
	}
	if d := a.Delay(); d > 0 {
		p.clock.AfterFunc(p.scale(d), func() {
			if !p.epochAlive(epoch) {
				return
			}
			p.runAction(a, at)
		})
		return
	}
	p.runAction(a, at)
}

func (p *Presenter) contentIssue(at position, kind, detail string) {
	p.log.Warn("content issue",
		slog.String("kind", kind),
		slog.String("script", at.scriptID),
		slog.String("section", at.sectionID),
		slog.String("line", at.lineID),
		slog.String("detail", detail))
	telemetry.ContentIssue(kind, at.scriptID, at.sectionID, at.lineID, detail)
}
