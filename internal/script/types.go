/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

// This file defines the narration data model: a Script is the full
// declarative narration unit for one experiment, composed of ordered
// Sections, each an ordered list of Lines. Scripts are immutable once
// registered; declaration order is the playback order.

import "time"

// Script is the top-level narration unit for one experiment.
type Script struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
}

// Section is a named, ordered group of Lines sharing an entry trigger.
type Section struct {
	ID      string      `json:"id"`
	Title   string      `json:"title,omitempty"`
	Trigger TriggerSpec `json:"trigger"`
	Lines   []Line      `json:"lines"`
}

// Line is the atomic playback unit: narration text plus optional formula,
// timing hints, trigger and animation instruction.
// DurationMs is advisory; the actual wait may come from an audio manifest.
// PauseMs is an extra delay appended after playback before advancing.
type Line struct {
	ID              string      `json:"id"`
	Text            string      `json:"text"`
	Formula         string      `json:"formula,omitempty"`
	DurationMs      int         `json:"duration_ms,omitempty"`
	PauseMs         int         `json:"pause_ms,omitempty"`
	Trigger         TriggerSpec `json:"trigger"`
	Action          *ActionSpec `json:"animation,omitempty"`
	HighlightTarget string      `json:"highlight_target,omitempty"`
}

// DurationHint returns the advisory line duration, zero when unset.
func (l *Line) DurationHint() time.Duration { return time.Duration(l.DurationMs) * time.Millisecond }

// Pause returns the post-line delay, zero when unset.
func (l *Line) Pause() time.Duration { return time.Duration(l.PauseMs) * time.Millisecond }

// TriggerKind enumerates the closed set of trigger variants.

type TriggerKind int

const (
	// TriggerAuto fires as soon as the previous unit completes, after an
	// optional pure time offset.
	TriggerAuto TriggerKind = iota
	// TriggerAnimationEvent fires when a scene field transitions to match
	// the attached predicate.
	TriggerAnimationEvent
	// TriggerParameterChange fires on the first scene patch observed after
	// arming; any field change qualifies.
	TriggerParameterChange
	// TriggerManual never fires on its own; only an explicit advance or
	// seek reaches the unit.
	TriggerManual
)

// TriggerSpec describes when a Section or Line becomes eligible to play.
// Exactly one kind per unit. The zero value is an immediate auto trigger.
type TriggerSpec struct {
	Kind      TriggerKind
	DelayMs   int        // auto only
	Predicate *Predicate // animation event only
}

// Delay returns the auto-trigger offset, zero when unset.
func (t TriggerSpec) Delay() time.Duration { return time.Duration(t.DelayMs) * time.Millisecond }

// PredicateKind enumerates the typed trigger predicates.

type PredicateKind int

const (
	// FieldEquals matches when the named scene field transitions to the
	// given value.
	FieldEquals PredicateKind = iota
	// FieldChanged matches when the named scene field changes value.
	FieldChanged
)

// Predicate is a typed trigger condition over a single scene field.
// Field names use the flat scene namespace, with "params." and "show."
// prefixes for the per-experiment sub-records.
type Predicate struct {
	Kind  PredicateKind
	Field string
	Value any // FieldEquals only
}

// ActionKind enumerates the animation instruction variants.

type ActionKind int

const (
	// ActionUnknown marks a variant the decoder did not recognize.
	// It is preserved so the dispatcher can record the data error and
	// continue; it is never a decode failure.
	ActionUnknown ActionKind = iota
	ActionSetParameters
	ActionSetWaveType
	ActionStartAnimation
	ActionStopAnimation
	ActionHighlight
	ActionScrollTo
	ActionReset
)

// ActionSpec is a single animation instruction attached to a Line.
// Each variant carries only the fields it needs.
type ActionSpec struct {
	Kind     ActionKind
	Params   map[string]any // setParameters
	WaveType string         // setWaveType
	Target   string         // highlight, scrollTo
	DelayMs  int            // optional offset before applying
	RawType  string         // original tag for unknown variants
}

// Delay returns the pre-dispatch offset, zero when unset.
func (a *ActionSpec) Delay() time.Duration { return time.Duration(a.DelayMs) * time.Millisecond }

// Position addresses one line inside a script by indices.
type Position struct {
	Section int
	Line    int
}

// Find locates a section/line pair by id. The boolean reports whether the
// pair exists in this script.
func (s *Script) Find(sectionID, lineID string) (Position, bool) {
	for si := range s.Sections {
		if s.Sections[si].ID != sectionID {
			continue
		}
		for li := range s.Sections[si].Lines {
			if s.Sections[si].Lines[li].ID == lineID {
				return Position{Section: si, Line: li}, true
			}
		}
	}
	return Position{}, false
}

// FindSection locates a section by id and returns its index.
func (s *Script) FindSection(sectionID string) (int, bool) {
	for si := range s.Sections {
		if s.Sections[si].ID == sectionID {
			return si, true
		}
	}
	return 0, false
}

// At returns the line at pos, or nil when pos is out of range.
func (s *Script) At(pos Position) *Line {
	if pos.Section < 0 || pos.Section >= len(s.Sections) {
		return nil
	}
	sec := &s.Sections[pos.Section]
	if pos.Line < 0 || pos.Line >= len(sec.Lines) {
		return nil
	}
	return &sec.Lines[pos.Line]
}

// TotalLines counts lines across all sections.
func (s *Script) TotalLines() int {
	n := 0
	for i := range s.Sections {
		n += len(s.Sections[i].Lines)
	}
	return n
}

// FlatIndex returns the zero-based ordinal of pos across the whole script,
// used to report playback progress.
func (s *Script) FlatIndex(pos Position) int {
	n := 0
	for si := 0; si < pos.Section && si < len(s.Sections); si++ {
		n += len(s.Sections[si].Lines)
	}
	return n + pos.Line
}
