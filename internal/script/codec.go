/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

// JSON codec for the tagged trigger, predicate and action variants.
// Scripts serialize to one flat JSON document per script id.

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Wire tags for trigger variants.
const (
	tagAuto            = "auto"
	tagAnimationEvent  = "onAnimationEvent"
	tagParameterChange = "onParameterChange"
	tagManual          = "manual"
)

// Wire tags for action variants.
const (
	tagSetParams      = "setParams"
	tagSetWaveType    = "setWaveType"
	tagStartAnimation = "startAnimation"
	tagStopAnimation  = "stopAnimation"
	tagHighlight      = "highlight"
	tagScrollTo       = "scrollTo"
	tagReset          = "reset"
)

type triggerJSON struct {
	Type      string     `json:"type"`
	DelayMs   int        `json:"delay_ms,omitempty"`
	Predicate *Predicate `json:"predicate,omitempty"`
}

func (t TriggerSpec) MarshalJSON() ([]byte, error) {
	out := triggerJSON{DelayMs: t.DelayMs, Predicate: t.Predicate}
	switch t.Kind {
	case TriggerAuto:
		out.Type = tagAuto
	case TriggerAnimationEvent:
		out.Type = tagAnimationEvent
	case TriggerParameterChange:
		out.Type = tagParameterChange
	case TriggerManual:
		out.Type = tagManual
	default:
		return nil, fmt.Errorf("trigger: unknown kind %d", t.Kind)
	}
	return json.Marshal(out)
}

func (t *TriggerSpec) UnmarshalJSON(data []byte) error {
	var in triggerJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Type {
	case tagAuto, "":
		t.Kind = TriggerAuto
	case tagAnimationEvent:
		t.Kind = TriggerAnimationEvent
	case tagParameterChange:
		t.Kind = TriggerParameterChange
	case tagManual:
		t.Kind = TriggerManual
	default:
		return fmt.Errorf("trigger: unknown type %q", in.Type)
	}
	t.DelayMs = in.DelayMs
	t.Predicate = in.Predicate
	if t.Kind == TriggerAnimationEvent && t.Predicate == nil {
		return fmt.Errorf("trigger: %s requires a predicate", tagAnimationEvent)
	}
	return nil
}

type predicateJSON struct {
	Op    string `json:"op"`
	Field string `json:"field"`
	Value any    `json:"value,omitempty"`
}

func (p Predicate) MarshalJSON() ([]byte, error) {
	out := predicateJSON{Field: p.Field, Value: p.Value}
	switch p.Kind {
	case FieldEquals:
		out.Op = "equals"
	case FieldChanged:
		out.Op = "changed"
	default:
		return nil, fmt.Errorf("predicate: unknown kind %d", p.Kind)
	}
	return json.Marshal(out)
}

func (p *Predicate) UnmarshalJSON(data []byte) error {
	var in predicateJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Op {
	case "equals":
		p.Kind = FieldEquals
	case "changed":
		p.Kind = FieldChanged
	default:
		return fmt.Errorf("predicate: unknown op %q", in.Op)
	}
	if in.Field == "" {
		return fmt.Errorf("predicate: missing field")
	}
	p.Field = in.Field
	p.Value = in.Value
	return nil
}

type actionJSON struct {
	Type     string         `json:"type"`
	Params   map[string]any `json:"params,omitempty"`
	WaveType string         `json:"wave_type,omitempty"`
	Target   string         `json:"target,omitempty"`
	DelayMs  int            `json:"delay_ms,omitempty"`
}

func (a ActionSpec) MarshalJSON() ([]byte, error) {
	out := actionJSON{Params: a.Params, WaveType: a.WaveType, Target: a.Target, DelayMs: a.DelayMs}
	switch a.Kind {
	case ActionSetParameters:
		out.Type = tagSetParams
	case ActionSetWaveType:
		out.Type = tagSetWaveType
	case ActionStartAnimation:
		out.Type = tagStartAnimation
	case ActionStopAnimation:
		out.Type = tagStopAnimation
	case ActionHighlight:
		out.Type = tagHighlight
	case ActionScrollTo:
		out.Type = tagScrollTo
	case ActionReset:
		out.Type = tagReset
	case ActionUnknown:
		out.Type = a.RawType
	default:
		return nil, fmt.Errorf("action: unknown kind %d", a.Kind)
	}
	return json.Marshal(out)
}

// UnmarshalJSON never rejects an unrecognized action tag. Broken animation
// instructions are a content error the dispatcher records at playback time;
// a single bad line must not make the whole script unloadable.
func (a *ActionSpec) UnmarshalJSON(data []byte) error {
	var in actionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	a.Params = in.Params
	a.WaveType = in.WaveType
	a.Target = in.Target
	a.DelayMs = in.DelayMs
	a.RawType = in.Type
	switch in.Type {
	case tagSetParams, "setParameters":
		a.Kind = ActionSetParameters
	case tagSetWaveType:
		a.Kind = ActionSetWaveType
	case tagStartAnimation:
		a.Kind = ActionStartAnimation
	case tagStopAnimation:
		a.Kind = ActionStopAnimation
	case tagHighlight:
		a.Kind = ActionHighlight
	case tagScrollTo:
		a.Kind = ActionScrollTo
	case tagReset:
		a.Kind = ActionReset
	default:
		a.Kind = ActionUnknown
	}
	return nil
}

// Decode reads one script document.
func Decode(r io.Reader) (*Script, error) {
	var s Script
	dec := json.NewDecoder(r)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}
	return &s, nil
}

// Encode writes s as an indented JSON document.
func Encode(w io.Writer, s *Script) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode script %s: %w", s.ID, err)
	}
	return nil
}

// LoadFile reads and decodes a script from path.
func LoadFile(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	s, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// SaveFile encodes s to path.
func SaveFile(path string, s *Script) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, s); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
