/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package presenter

// Frame is what the view layer renders for the current narration moment.
type Frame struct {
	ScriptID        string
	SectionID       string
	SectionTitle    string
	LineID          string
	Text            string
	Formula         string
	HighlightTarget string
	Progress        float64 // fraction of script lines reached, in [0,1]
	Paused          bool
}

// ViewSink receives presentation output. Highlight and ScrollTo are
// advisory; a view that cannot locate the target just logs and moves on.
type ViewSink interface {
	ShowFrame(f Frame)
	Highlight(target string)
	ScrollTo(target string)
}

type noopView struct{}

func (noopView) ShowFrame(Frame)  {}
func (noopView) Highlight(string) {}
func (noopView) ScrollTo(string)  {}
