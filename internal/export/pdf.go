/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"mathviz/internal/script"
)

// PDFOptions controls transcript export behavior.
// Built-in Helvetica keeps text vector without embedding fonts.
type PDFOptions struct {
	Author string
	// PreviewPNG, when set, is drawn on the title page; callers usually pass
	// a waveform rendering of the script's opening scene.
	PreviewPNG []byte
	// IncludeTiming annotates each line with its trigger and wait hints.
	IncludeTiming bool
}

// TranscriptPDF writes a reviewer-friendly PDF of the narration: a title
// page followed by the sections and lines in playback order.
func TranscriptPDF(s *script.Script, outPath string, opt PDFOptions) error {
	if s == nil {
		return fmt.Errorf("script is nil")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}

	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetTitle(fmt.Sprintf("%s — Narration Transcript", s.Title), true)
	author := opt.Author
	if author == "" {
		author = "MathViz"
	}
	pdf.SetAuthor(author, true)
	pdf.SetMargins(54, 54, 54)
	pageW, _ := pdf.GetPageSize()

	// Title page
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 24)
	pdf.MultiCell(pageW-108, 30, s.Title, "", "C", false)
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(pageW-108, 14, fmt.Sprintf("Script %s — %d sections, %d lines", s.ID, len(s.Sections), s.TotalLines()), "", "C", false)
	if len(opt.PreviewPNG) > 0 {
		name := "preview-" + s.ID
		pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(opt.PreviewPNG))
		info := pdf.GetImageInfo(name)
		if info != nil && info.Width() > 0 {
			w := pageW - 216
			h := w * info.Height() / info.Width()
			pdf.ImageOptions(name, 108, 200, w, h, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
		}
	}

	// Sections
	for si, sec := range s.Sections {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 16)
		head := sec.Title
		if head == "" {
			head = sec.ID
		}
		pdf.MultiCell(pageW-108, 20, fmt.Sprintf("%d. %s", si+1, head), "", "L", false)
		if opt.IncludeTiming {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.MultiCell(pageW-108, 12, "enter: "+triggerLabel(sec.Trigger), "", "L", false)
		}
		pdf.Ln(6)
		for _, ln := range sec.Lines {
			pdf.SetFont("Helvetica", "B", 10)
			pdf.MultiCell(pageW-108, 13, ln.ID, "", "L", false)
			pdf.SetFont("Helvetica", "", 11)
			pdf.MultiCell(pageW-108, 15, ln.Text, "", "L", false)
			if ln.Formula != "" {
				pdf.SetFont("Courier", "", 10)
				pdf.MultiCell(pageW-108, 13, ln.Formula, "", "L", false)
			}
			if opt.IncludeTiming {
				pdf.SetFont("Helvetica", "I", 9)
				pdf.MultiCell(pageW-108, 12, lineNotes(&ln), "", "L", false)
			}
			pdf.Ln(4)
		}
	}

	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func triggerLabel(t script.TriggerSpec) string {
	switch t.Kind {
	case script.TriggerAnimationEvent:
		if t.Predicate == nil {
			return "on animation event"
		}
		if t.Predicate.Kind == script.FieldEquals {
			return fmt.Sprintf("when %s = %v", t.Predicate.Field, t.Predicate.Value)
		}
		return fmt.Sprintf("when %s changes", t.Predicate.Field)
	case script.TriggerParameterChange:
		return "on parameter change"
	case script.TriggerManual:
		return "manual"
	default:
		if t.DelayMs > 0 {
			return fmt.Sprintf("auto after %dms", t.DelayMs)
		}
		return "auto"
	}
}

func lineNotes(ln *script.Line) string {
	parts := []string{triggerLabel(ln.Trigger)}
	if ln.DurationMs > 0 {
		parts = append(parts, fmt.Sprintf("duration %dms", ln.DurationMs))
	}
	if ln.PauseMs > 0 {
		parts = append(parts, fmt.Sprintf("pause %dms", ln.PauseMs))
	}
	if ln.Action != nil {
		parts = append(parts, "animation: "+actionLabel(ln.Action))
	}
	return strings.Join(parts, ", ")
}

func actionLabel(a *script.ActionSpec) string {
	switch a.Kind {
	case script.ActionSetParameters:
		return "set parameters"
	case script.ActionSetWaveType:
		return "wave type " + a.WaveType
	case script.ActionStartAnimation:
		return "start animation"
	case script.ActionStopAnimation:
		return "stop animation"
	case script.ActionHighlight:
		return "highlight " + a.Target
	case script.ActionScrollTo:
		return "scroll to " + a.Target
	case script.ActionReset:
		return "reset"
	default:
		return "unknown (" + a.RawType + ")"
	}
}
