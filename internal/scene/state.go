/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package scene holds the shared mutable visualization state. Scripted
// narration lines and user-driven controls both write through the same
// Store; last write wins, which is accepted behavior since all writes go
// through one store in call order.
package scene

import "strings"

// State is a snapshot of the visualization parameters for the current
// experiment. Show toggles element visibility; Params carries arbitrary
// per-experiment values. Both are merged one level deep on patch.
type State struct {
	WaveType    string
	Frequency   float64
	Amplitude   float64
	Terms       int
	IsAnimating bool
	Highlighted []string
	Show        map[string]bool
	Params      map[string]any
}

// Clone returns a deep copy; mutating the copy never affects the source.
func (s State) Clone() State {
	out := s
	if s.Highlighted != nil {
		out.Highlighted = append([]string(nil), s.Highlighted...)
	}
	if s.Show != nil {
		out.Show = make(map[string]bool, len(s.Show))
		for k, v := range s.Show {
			out.Show[k] = v
		}
	}
	if s.Params != nil {
		out.Params = make(map[string]any, len(s.Params))
		for k, v := range s.Params {
			out.Params[k] = v
		}
	}
	return out
}

// Field resolves a flat field name to its current value. Sub-record keys
// use "show." and "params." prefixes. The boolean reports whether the
// field exists in this state.
func (s State) Field(name string) (any, bool) {
	switch name {
	case "waveType":
		return s.WaveType, true
	case "frequency":
		return s.Frequency, true
	case "amplitude":
		return s.Amplitude, true
	case "terms":
		return s.Terms, true
	case "isAnimating":
		return s.IsAnimating, true
	case "highlightedElements":
		return s.Highlighted, true
	}
	if k, ok := strings.CutPrefix(name, "show."); ok {
		v, ok := s.Show[k]
		return v, ok
	}
	if k, ok := strings.CutPrefix(name, "params."); ok {
		v, ok := s.Params[k]
		return v, ok
	}
	return nil, false
}

// Patch is a partial State. Nil pointer fields are unchanged; nil maps
// leave the sub-record untouched, non-nil maps merge key by key (one level
// deep). Highlighted replaces the whole set when non-nil.
type Patch struct {
	WaveType    *string
	Frequency   *float64
	Amplitude   *float64
	Terms       *int
	IsAnimating *bool
	Highlighted []string
	Show        map[string]bool
	Params      map[string]any
}

// IsEmpty reports whether applying p would change nothing structurally.
func (p Patch) IsEmpty() bool {
	return p.WaveType == nil && p.Frequency == nil && p.Amplitude == nil &&
		p.Terms == nil && p.IsAnimating == nil && p.Highlighted == nil &&
		len(p.Show) == 0 && len(p.Params) == 0
}

func (p Patch) applyTo(s *State) {
	if p.WaveType != nil {
		s.WaveType = *p.WaveType
	}
	if p.Frequency != nil {
		s.Frequency = *p.Frequency
	}
	if p.Amplitude != nil {
		s.Amplitude = *p.Amplitude
	}
	if p.Terms != nil {
		s.Terms = *p.Terms
	}
	if p.IsAnimating != nil {
		s.IsAnimating = *p.IsAnimating
	}
	if p.Highlighted != nil {
		s.Highlighted = append([]string(nil), p.Highlighted...)
	}
	if len(p.Show) > 0 {
		if s.Show == nil {
			s.Show = make(map[string]bool, len(p.Show))
		}
		for k, v := range p.Show {
			s.Show[k] = v
		}
	}
	if len(p.Params) > 0 {
		if s.Params == nil {
			s.Params = make(map[string]any, len(p.Params))
		}
		for k, v := range p.Params {
			s.Params[k] = v
		}
	}
}

// FromMap builds a Patch from loosely typed key/value data, as carried by
// setParams actions. Known field names map to the typed fields; anything
// else lands in Params.
func FromMap(m map[string]any) Patch {
	var p Patch
	for k, v := range m {
		switch k {
		case "waveType":
			if s, ok := v.(string); ok {
				p.WaveType = &s
			}
		case "frequency":
			if f, ok := toFloat(v); ok {
				p.Frequency = &f
			}
		case "amplitude":
			if f, ok := toFloat(v); ok {
				p.Amplitude = &f
			}
		case "terms":
			if f, ok := toFloat(v); ok {
				n := int(f)
				p.Terms = &n
			}
		case "isAnimating":
			if b, ok := v.(bool); ok {
				p.IsAnimating = &b
			}
		default:
			if b, ok := v.(bool); ok && strings.HasPrefix(k, "show") {
				if p.Show == nil {
					p.Show = map[string]bool{}
				}
				p.Show[showKey(k)] = b
				continue
			}
			if p.Params == nil {
				p.Params = map[string]any{}
			}
			p.Params[k] = v
		}
	}
	return p
}

// showKey normalizes "showAxes"/"show.axes" style keys to the bare
// element name used in the Show record.
func showKey(k string) string {
	if rest, ok := strings.CutPrefix(k, "show."); ok {
		return rest
	}
	rest := strings.TrimPrefix(k, "show")
	if rest == "" {
		return k
	}
	return strings.ToLower(rest[:1]) + rest[1:]
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
