/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"fmt"
	"strings"
)

// WaveTypes lists the waveforms the visualizations understand.
var WaveTypes = []string{"sine", "square", "sawtooth", "triangle"}

func knownWaveType(w string) bool {
	for _, k := range WaveTypes {
		if k == w {
			return true
		}
	}
	return false
}

// Issue is a content problem found during validation, addressed by the
// script position it occurred at.
type Issue struct {
	ScriptID  string
	SectionID string
	LineID    string
	Message   string
}

func (i Issue) String() string {
	pos := i.ScriptID
	if i.SectionID != "" {
		pos += "/" + i.SectionID
	}
	if i.LineID != "" {
		pos += "/" + i.LineID
	}
	return pos + ": " + i.Message
}

// Validate performs structural checks on s and returns every problem found.
// An empty result means the script is safe to register and play. Issues do
// not stop loading; the player degrades per line instead.
func Validate(s *Script) []Issue {
	var issues []Issue
	add := func(sectionID, lineID, format string, args ...any) {
		issues = append(issues, Issue{
			ScriptID:  s.ID,
			SectionID: sectionID,
			LineID:    lineID,
			Message:   fmt.Sprintf(format, args...),
		})
	}

	if strings.TrimSpace(s.ID) == "" {
		add("", "", "script has no id")
	}
	if strings.TrimSpace(s.Title) == "" {
		add("", "", "script has no title")
	}
	if len(s.Sections) == 0 {
		add("", "", "script has no sections")
	}

	secIDs := map[string]struct{}{}
	lineIDs := map[string]struct{}{}
	for si := range s.Sections {
		sec := &s.Sections[si]
		if strings.TrimSpace(sec.ID) == "" {
			add(sec.ID, "", "section %d has no id", si)
		}
		if _, dup := secIDs[sec.ID]; dup {
			add(sec.ID, "", "duplicate section id")
		}
		secIDs[sec.ID] = struct{}{}
		issues = append(issues, checkTrigger(s.ID, sec.ID, "", sec.Trigger)...)
		if len(sec.Lines) == 0 {
			add(sec.ID, "", "section has no lines")
		}
		for li := range sec.Lines {
			ln := &sec.Lines[li]
			if strings.TrimSpace(ln.ID) == "" {
				add(sec.ID, ln.ID, "line %d has no id", li)
			}
			// line ids are unique per script, not just per section
			if _, dup := lineIDs[ln.ID]; dup {
				add(sec.ID, ln.ID, "duplicate line id")
			}
			lineIDs[ln.ID] = struct{}{}
			if strings.TrimSpace(ln.Text) == "" {
				add(sec.ID, ln.ID, "line has no text")
			}
			if ln.DurationMs < 0 {
				add(sec.ID, ln.ID, "negative duration")
			}
			if ln.PauseMs < 0 {
				add(sec.ID, ln.ID, "negative pause")
			}
			issues = append(issues, checkTrigger(s.ID, sec.ID, ln.ID, ln.Trigger)...)
			if ln.Action != nil {
				issues = append(issues, checkAction(s.ID, sec.ID, ln.ID, ln.Action)...)
			}
		}
	}
	return issues
}

func checkTrigger(scriptID, sectionID, lineID string, t TriggerSpec) []Issue {
	var issues []Issue
	add := func(format string, args ...any) {
		issues = append(issues, Issue{ScriptID: scriptID, SectionID: sectionID, LineID: lineID, Message: fmt.Sprintf(format, args...)})
	}
	if t.DelayMs < 0 {
		add("negative trigger delay")
	}
	if t.Kind == TriggerAnimationEvent {
		switch {
		case t.Predicate == nil:
			add("animation-event trigger has no predicate")
		case t.Predicate.Field == "":
			add("trigger predicate has no field")
		case t.Predicate.Kind == FieldEquals && t.Predicate.Value == nil:
			add("equals predicate on %q has no value", t.Predicate.Field)
		}
	}
	return issues
}

func checkAction(scriptID, sectionID, lineID string, a *ActionSpec) []Issue {
	var issues []Issue
	add := func(format string, args ...any) {
		issues = append(issues, Issue{ScriptID: scriptID, SectionID: sectionID, LineID: lineID, Message: fmt.Sprintf(format, args...)})
	}
	if a.DelayMs < 0 {
		add("negative action delay")
	}
	switch a.Kind {
	case ActionUnknown:
		add("unknown action type %q", a.RawType)
	case ActionSetParameters:
		if len(a.Params) == 0 {
			add("setParams action has no params")
		}
	case ActionSetWaveType:
		if !knownWaveType(a.WaveType) {
			add("unknown wave type %q", a.WaveType)
		}
	case ActionHighlight:
		if strings.TrimSpace(a.Target) == "" {
			add("highlight action has no target")
		}
	case ActionScrollTo:
		if strings.TrimSpace(a.Target) == "" {
			add("scrollTo action has no target")
		}
	}
	return issues
}
