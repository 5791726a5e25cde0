/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Error represents a parse error with position context.

type Error struct {
	Line    int
	Column  int
	Message string
}

// Parse parses the plain-text narration authoring format into a Script.
// Supported syntax (minimal):
//
//   - Header: "script: <id> | <title>" (first non-blank line).
//
//   - Section headings: "# <id> | <title> [trigger]". The bracketed trigger
//     is optional and defaults to auto.
//
//   - Lines: "- <id>: text" or "- <id> [trigger]: text". A trailing
//     "(duration=ms pause=ms)" group sets timing hints.
//
//   - Indented directives attach to the previous line:
//     "formula: <tex>", "highlight: <target>",
//     "action: <type> [key=value ...]".
//
//   - Triggers: [auto], [auto delay=ms], [manual], [onParameterChange],
//     [onAnimationEvent field==value], [onAnimationEvent field changed].
//
// - Comments: lines starting with ';' are ignored.
// Blank lines separate units but carry no meaning.
func Parse(input string) (*Script, []Error) {
	s := &Script{}
	var errs []Error

	scanner := bufio.NewScanner(strings.NewReader(input))
	lineNo := 0
	var curSection *Section
	var lastLine *Line

	reHeader := regexp.MustCompile(`^(?i)script:\s*([a-z0-9_\-]+)\s*(?:\|\s*(.*))?$`)
	reSection := regexp.MustCompile(`^#\s*([a-z0-9_\-]+)\s*(?:\|\s*([^\[]*))?(?:\[([^\]]*)\])?\s*$`)
	reLine := regexp.MustCompile(`^-\s*([a-z0-9_\-]+)\s*(?:\[([^\]]*)\])?\s*:\s*(.*)$`)
	reTiming := regexp.MustCompile(`\(([^)]*)\)\s*$`)
	reDirective := regexp.MustCompile(`^(formula|highlight|action):\s*(.*)$`)

	addErr := func(col int, format string, args ...any) {
		errs = append(errs, Error{Line: lineNo, Column: col, Message: fmt.Sprintf(format, args...)})
	}

	for scanner.Scan() {
		lineNo++
		raw := strings.TrimRight(scanner.Text(), "\r\n")
		indented := strings.HasPrefix(raw, "  ")
		trim := strings.TrimSpace(raw)
		if trim == "" {
			lastLine = nil
			continue
		}
		if strings.HasPrefix(trim, ";") {
			continue
		}

		// Indented directive attaches to the previous narration line.
		if indented && lastLine != nil {
			if m := reDirective.FindStringSubmatch(trim); m != nil {
				applyDirective(lastLine, m[1], strings.TrimSpace(m[2]), &errs, lineNo)
				continue
			}
			// continuation text
			lastLine.Text += " " + trim
			continue
		}

		if m := reHeader.FindStringSubmatch(trim); m != nil && s.ID == "" && curSection == nil {
			s.ID = m[1]
			s.Title = strings.TrimSpace(m[2])
			if s.Title == "" {
				s.Title = s.ID
			}
			lastLine = nil
			continue
		}

		if m := reSection.FindStringSubmatch(trim); m != nil {
			trig, terrs := parseTrigger(strings.TrimSpace(m[3]), lineNo)
			errs = append(errs, terrs...)
			s.Sections = append(s.Sections, Section{
				ID:      m[1],
				Title:   strings.TrimSpace(m[2]),
				Trigger: trig,
			})
			curSection = &s.Sections[len(s.Sections)-1]
			lastLine = nil
			continue
		}

		if m := reLine.FindStringSubmatch(trim); m != nil {
			if curSection == nil {
				addErr(1, "narration line before any section heading")
				continue
			}
			trig, terrs := parseTrigger(strings.TrimSpace(m[2]), lineNo)
			errs = append(errs, terrs...)
			text := strings.TrimSpace(m[3])
			ln := Line{ID: m[1], Trigger: trig}
			if tm := reTiming.FindStringSubmatch(text); tm != nil {
				text = strings.TrimSpace(strings.TrimSuffix(text, tm[0]))
				for _, kv := range strings.Fields(tm[1]) {
					k, v, ok := strings.Cut(kv, "=")
					ms, merr := strconv.Atoi(v)
					if !ok || merr != nil {
						addErr(1, "bad timing directive %q", kv)
						continue
					}
					switch k {
					case "duration":
						ln.DurationMs = ms
					case "pause":
						ln.PauseMs = ms
					default:
						addErr(1, "unknown timing key %q", k)
					}
				}
			}
			ln.Text = text
			curSection.Lines = append(curSection.Lines, ln)
			lastLine = &curSection.Lines[len(curSection.Lines)-1]
			continue
		}

		addErr(1, "unrecognized syntax: %q", trim)
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, Error{Line: lineNo, Column: 1, Message: err.Error()})
	}
	if s.ID == "" {
		errs = append(errs, Error{Line: 1, Column: 1, Message: "missing script header"})
	}
	return s, errs
}

// parseTrigger parses the bracketed trigger form. An empty spec is auto.
func parseTrigger(spec string, lineNo int) (TriggerSpec, []Error) {
	var errs []Error
	fields := strings.Fields(spec)
	if len(fields) == 0 {
		return TriggerSpec{Kind: TriggerAuto}, nil
	}
	t := TriggerSpec{}
	switch fields[0] {
	case "auto":
		t.Kind = TriggerAuto
		for _, f := range fields[1:] {
			if v, ok := strings.CutPrefix(f, "delay="); ok {
				ms, err := strconv.Atoi(v)
				if err != nil {
					errs = append(errs, Error{Line: lineNo, Column: 1, Message: "bad trigger delay " + v})
					continue
				}
				t.DelayMs = ms
			}
		}
	case "manual":
		t.Kind = TriggerManual
	case "onParameterChange":
		t.Kind = TriggerParameterChange
	case "onAnimationEvent":
		t.Kind = TriggerAnimationEvent
		rest := fields[1:]
		switch {
		case len(rest) == 1 && strings.Contains(rest[0], "=="):
			f, v, _ := strings.Cut(rest[0], "==")
			t.Predicate = &Predicate{Kind: FieldEquals, Field: f, Value: parseScalar(v)}
		case len(rest) == 2 && rest[1] == "changed":
			t.Predicate = &Predicate{Kind: FieldChanged, Field: rest[0]}
		default:
			errs = append(errs, Error{Line: lineNo, Column: 1, Message: "onAnimationEvent needs \"field==value\" or \"field changed\""})
		}
	default:
		errs = append(errs, Error{Line: lineNo, Column: 1, Message: "unknown trigger " + fields[0]})
		t.Kind = TriggerManual // safety valve, reachable only by explicit advance
	}
	return t, errs
}

func applyDirective(ln *Line, key, val string, errs *[]Error, lineNo int) {
	switch key {
	case "formula":
		ln.Formula = val
	case "highlight":
		ln.HighlightTarget = val
	case "action":
		a, aerrs := parseAction(val, lineNo)
		*errs = append(*errs, aerrs...)
		if a != nil {
			ln.Action = a
		}
	}
}

// parseAction parses "type [key=value ...]" action directives.
func parseAction(spec string, lineNo int) (*ActionSpec, []Error) {
	var errs []Error
	fields := strings.Fields(spec)
	if len(fields) == 0 {
		return nil, []Error{{Line: lineNo, Column: 1, Message: "empty action"}}
	}
	a := &ActionSpec{RawType: fields[0]}
	rest := fields[1:]
	takeDelay := func() []string {
		out := rest[:0]
		for _, f := range rest {
			if v, ok := strings.CutPrefix(f, "delay="); ok {
				ms, err := strconv.Atoi(v)
				if err != nil {
					errs = append(errs, Error{Line: lineNo, Column: 1, Message: "bad action delay " + v})
					continue
				}
				a.DelayMs = ms
				continue
			}
			out = append(out, f)
		}
		return out
	}
	rest = takeDelay()

	switch fields[0] {
	case tagSetParams:
		a.Kind = ActionSetParameters
		a.Params = map[string]any{}
		for _, kv := range rest {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				errs = append(errs, Error{Line: lineNo, Column: 1, Message: "bad param " + kv})
				continue
			}
			a.Params[k] = parseScalar(v)
		}
	case tagSetWaveType:
		a.Kind = ActionSetWaveType
		if len(rest) == 1 {
			a.WaveType = rest[0]
		} else {
			errs = append(errs, Error{Line: lineNo, Column: 1, Message: "setWaveType needs one waveform"})
		}
	case tagStartAnimation:
		a.Kind = ActionStartAnimation
	case tagStopAnimation:
		a.Kind = ActionStopAnimation
	case tagHighlight:
		a.Kind = ActionHighlight
		if len(rest) == 1 {
			a.Target = rest[0]
		} else {
			errs = append(errs, Error{Line: lineNo, Column: 1, Message: "highlight needs one target"})
		}
	case tagScrollTo:
		a.Kind = ActionScrollTo
		if len(rest) == 1 {
			a.Target = rest[0]
		} else {
			errs = append(errs, Error{Line: lineNo, Column: 1, Message: "scrollTo needs one target"})
		}
	case tagReset:
		a.Kind = ActionReset
	default:
		a.Kind = ActionUnknown
		errs = append(errs, Error{Line: lineNo, Column: 1, Message: "unknown action " + fields[0]})
	}
	return a, errs
}

// parseScalar interprets an authoring-format value as bool, number or string.
func parseScalar(v string) any {
	switch v {
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}
