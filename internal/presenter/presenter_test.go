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
	"sync"
	"testing"
	"time"

	"mathviz/internal/scene"
	"mathviz/internal/script"
)

type fakeView struct {
	mu         sync.Mutex
	frames     []Frame
	highlights []string
	scrolls    []string
}

func (v *fakeView) ShowFrame(f Frame) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.frames = append(v.frames, f)
}

func (v *fakeView) Highlight(target string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.highlights = append(v.highlights, target)
}

func (v *fakeView) ScrollTo(target string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.scrolls = append(v.scrolls, target)
}

func (v *fakeView) lineIDs() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []string
	for _, f := range v.frames {
		out = append(out, f.LineID)
	}
	return out
}

type fakeAudio map[string]time.Duration

func (a fakeAudio) LineDuration(scriptID, sectionID, lineID string) (time.Duration, bool) {
	d, ok := a[sectionID+"/"+lineID]
	return d, ok
}

type harness struct {
	p     *Presenter
	store *scene.Store
	clock *ManualClock
	view  *fakeView
}

func newHarness(t *testing.T, s *script.Script, audio DurationProvider) *harness {
	t.Helper()
	reg := script.NewRegistry()
	if err := reg.Register(s); err != nil {
		t.Fatalf("register: %v", err)
	}
	store := scene.NewStore(scene.State{WaveType: "sine", Frequency: 1, Amplitude: 1, Terms: 3})
	clock := NewManualClock(time.Unix(0, 0))
	view := &fakeView{}
	p := New(Config{Registry: reg, Scene: store, View: view, Audio: audio, Clock: clock})
	t.Cleanup(p.Close)
	return &harness{p: p, store: store, clock: clock, view: view}
}

func autoLine(id, text string, durationMs int) script.Line {
	return script.Line{ID: id, Text: text, DurationMs: durationMs}
}

// --- ordering and timing ---

func TestAutoPlaybackRunsInDeclaredOrder(t *testing.T) {
	s := &script.Script{ID: "demo", Title: "Demo", Sections: []script.Section{
		{ID: "s1", Lines: []script.Line{
			autoLine("a", "first line", 2000),
			{ID: "b", Text: "second line", DurationMs: 1000, Trigger: script.TriggerSpec{Kind: script.TriggerAuto, DelayMs: 500}},
		}},
	}}
	h := newHarness(t, s, nil)
	if err := h.p.Start("demo"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// line a dispatches immediately
	if got := h.view.lineIDs(); len(got) != 1 || got[0] != "a" {
		t.Fatalf("expected [a], got %v", got)
	}
	// single in flight: nothing new while a's wait is outstanding
	h.clock.Advance(1999 * time.Millisecond)
	if got := h.view.lineIDs(); len(got) != 1 {
		t.Fatalf("line dispatched during outstanding wait: %v", got)
	}
	// a completes at 2000, b's delay starts
	h.clock.Advance(1 * time.Millisecond)
	if got := h.view.lineIDs(); len(got) != 1 {
		t.Fatalf("b fired before its 500ms delay: %v", got)
	}
	h.clock.Advance(500 * time.Millisecond)
	if got := h.view.lineIDs(); len(got) != 2 || got[1] != "b" {
		t.Fatalf("expected [a b], got %v", got)
	}
	// b's wait ends, script completes naturally
	h.clock.Advance(1000 * time.Millisecond)
	st := h.p.State()
	if st.Active {
		t.Fatalf("expected idle after natural completion: %+v", st)
	}
	done := h.p.CompletedSections()
	if len(done) != 1 || done[0] != "s1" {
		t.Fatalf("completed sections wrong: %v", done)
	}
}

func TestProgressGrowsAcrossScript(t *testing.T) {
	s := &script.Script{ID: "demo", Title: "Demo", Sections: []script.Section{
		{ID: "s1", Lines: []script.Line{autoLine("a", "one", 1000), autoLine("b", "two", 1000)}},
		{ID: "s2", Lines: []script.Line{autoLine("c", "three", 1000), autoLine("d", "four", 1000)}},
	}}
	h := newHarness(t, s, nil)
	if err := h.p.Start("demo"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := h.p.State().Progress; got != 0.25 {
		t.Fatalf("progress at first line: %v", got)
	}
	h.clock.Advance(2 * time.Second)
	if got := h.p.State().Progress; got != 0.75 {
		t.Fatalf("progress at third line: %v", got)
	}
}

func TestFallbackTimingNeverZero(t *testing.T) {
	s := &script.Script{ID: "demo", Title: "Demo", Sections: []script.Section{
		{ID: "s1", Lines: []script.Line{
			{ID: "a", Text: "no duration anywhere"},
			autoLine("b", "after", 1000),
		}},
	}}
	h := newHarness(t, s, nil)
	if err := h.p.Start("demo"); err != nil {
		t.Fatalf("start: %v", err)
	}
	// estimated reading time has a 1.5s floor
	h.clock.Advance(1499 * time.Millisecond)
	if got := h.view.lineIDs(); len(got) != 1 {
		t.Fatalf("advanced before fallback wait elapsed: %v", got)
	}
	h.clock.Advance(1 * time.Millisecond)
	if got := h.view.lineIDs(); len(got) != 2 || got[1] != "b" {
		t.Fatalf("fallback timing did not advance: %v", got)
	}
}

func TestAudioDurationExtendsHint(t *testing.T) {
	s := &script.Script{ID: "demo", Title: "Demo", Sections: []script.Section{
		{ID: "s1", Lines: []script.Line{
			{ID: "a", Text: "spoken line", DurationMs: 1000, PauseMs: 500},
			autoLine("b", "after", 1000),
		}},
	}}
	h := newHarness(t, s, fakeAudio{"s1/a": 3 * time.Second})
	if err := h.p.Start("demo"); err != nil {
		t.Fatalf("start: %v", err)
	}
	// wait is max(hint, audio) + pause = 3000 + 500
	h.clock.Advance(3499 * time.Millisecond)
	if got := h.view.lineIDs(); len(got) != 1 {
		t.Fatalf("advanced before audio wait elapsed: %v", got)
	}
	h.clock.Advance(1 * time.Millisecond)
	if got := h.view.lineIDs(); len(got) != 2 {
		t.Fatalf("audio-timed line did not advance: %v", got)
	}
}

func TestRateScalesWaits(t *testing.T) {
	s := &script.Script{ID: "demo", Title: "Demo", Sections: []script.Section{
		{ID: "s1", Lines: []script.Line{autoLine("a", "fast", 3000), autoLine("b", "after", 1000)}},
	}}
	h := newHarness(t, s, nil)
	h.p.SetRate(2.0)
	if err := h.p.Start("demo"); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.clock.Advance(1500 * time.Millisecond)
	if got := h.view.lineIDs(); len(got) != 2 {
		t.Fatalf("doubled rate should halve the wait: %v", got)
	}
}

// --- dispatch ---

func TestActionsMutateSceneAndView(t *testing.T) {
	s := &script.Script{ID: "demo", Title: "Demo", Sections: []script.Section{
		{ID: "s1", Lines: []script.Line{
			{ID: "a", Text: "set the wave", DurationMs: 1000,
				Action: &script.ActionSpec{Kind: script.ActionSetWaveType, WaveType: "square"}},
			{ID: "b", Text: "look here", DurationMs: 1000,
				Action: &script.ActionSpec{Kind: script.ActionHighlight, Target: "wave-canvas"}},
			{ID: "c", Text: "and scroll", DurationMs: 1000,
				Action: &script.ActionSpec{Kind: script.ActionScrollTo, Target: "gibbs-note"}},
		}},
	}}
	h := newHarness(t, s, nil)
	if err := h.p.Start("demo"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := h.store.Read().WaveType; got != "square" {
		t.Fatalf("setWaveType not applied: %q", got)
	}
	h.clock.Advance(time.Second)
	sc := h.store.Read()
	if len(sc.Highlighted) != 1 || sc.Highlighted[0] != "wave-canvas" {
		t.Fatalf("highlight not in scene: %v", sc.Highlighted)
	}
	if len(h.view.highlights) != 1 || h.view.highlights[0] != "wave-canvas" {
		t.Fatalf("view highlight missing: %v", h.view.highlights)
	}
	h.clock.Advance(time.Second)
	if len(h.view.scrolls) != 1 || h.view.scrolls[0] != "gibbs-note" {
		t.Fatalf("view scroll missing: %v", h.view.scrolls)
	}
	// scrollTo is view-only
	if h.store.Read().WaveType != "square" {
		t.Fatalf("scrollTo must not touch the scene")
	}
}

func TestMalformedActionIsSkippedNotFatal(t *testing.T) {
	s := &script.Script{ID: "demo", Title: "Demo", Sections: []script.Section{
		{ID: "s1", Lines: []script.Line{
			{ID: "a", Text: "bad action", DurationMs: 1000,
				Action: &script.ActionSpec{Kind: script.ActionUnknown, RawType: "teleport"}},
			autoLine("b", "fine", 1000),
		}},
	}}
	h := newHarness(t, s, nil)
	before := h.store.Read()
	if err := h.p.Start("demo"); err != nil {
		t.Fatalf("start: %v", err)
	}
	after := h.store.Read()
	if before.WaveType != after.WaveType || before.Frequency != after.Frequency {
		t.Fatalf("malformed action mutated the scene")
	}
	h.clock.Advance(time.Second)
	if got := h.view.lineIDs(); len(got) != 2 || got[1] != "b" {
		t.Fatalf("playback halted by malformed action: %v", got)
	}
}

func TestSetParamsWithoutUsableParamsIsSkipped(t *testing.T) {
	s := &script.Script{ID: "demo", Title: "Demo", Sections: []script.Section{
		{ID: "s1", Lines: []script.Line{
			{ID: "a", Text: "typo in the data", DurationMs: 1000,
				Action: &script.ActionSpec{Kind: script.ActionSetParameters, Params: map[string]any{"frequency": "fast"}}},
			autoLine("b", "fine", 1000),
		}},
	}}
	h := newHarness(t, s, nil)
	if err := h.p.Start("demo"); err != nil {
		t.Fatalf("start: %v", err)
	}
	// the mistyped key is dropped and the patch ends up empty; it must not
	// reach the store, or the version bump would look like a parameter change
	if v := h.store.Version(); v != 0 {
		t.Fatalf("unusable setParams touched the store: version %d", v)
	}
	h.clock.Advance(time.Second)
	if got := h.view.lineIDs(); len(got) != 2 || got[1] != "b" {
		t.Fatalf("playback halted by unusable setParams: %v", got)
	}
}

func TestResetActionDoesNotCancelWait(t *testing.T) {
	s := &script.Script{ID: "demo", Title: "Demo", Sections: []script.Section{
		{ID: "s1", Lines: []script.Line{
			{ID: "a", Text: "back to defaults", DurationMs: 2000,
				Action: &script.ActionSpec{Kind: script.ActionReset}},
			autoLine("b", "after", 1000),
		}},
	}}
	h := newHarness(t, s, nil)
	h.store.ApplyMap(map[string]any{"waveType": "square"})
	if err := h.p.Start("demo"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := h.store.Read().WaveType; got != "sine" {
		t.Fatalf("reset action not applied: %q", got)
	}
	// the wait still runs to completion
	h.clock.Advance(1999 * time.Millisecond)
	if got := h.view.lineIDs(); len(got) != 1 {
		t.Fatalf("reset cut the wait short: %v", got)
	}
	h.clock.Advance(1 * time.Millisecond)
	if got := h.view.lineIDs(); len(got) != 2 {
		t.Fatalf("wait after reset did not complete: %v", got)
	}
}

// --- triggers ---

func TestAnimationEventTriggerFiresOnTransitionOnce(t *testing.T) {
	s := &script.Script{ID: "demo", Title: "Demo", Sections: []script.Section{
		{ID: "s1", Lines: []script.Line{
			autoLine("a", "start it", 1000),
			{ID: "b", Text: "once animating", DurationMs: 1000, Trigger: script.TriggerSpec{
				Kind:      script.TriggerAnimationEvent,
				Predicate: &script.Predicate{Kind: script.FieldEquals, Field: "isAnimating", Value: true},
			}},
			{ID: "c", Text: "tail", DurationMs: 1000, Trigger: script.TriggerSpec{Kind: script.TriggerManual}},
		}},
	}}
	h := newHarness(t, s, nil)
	if err := h.p.Start("demo"); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.clock.Advance(time.Second) // a done, b armed
	if got := h.view.lineIDs(); len(got) != 1 {
		t.Fatalf("b fired without its event: %v", got)
	}
	on, off := true, false
	h.store.Apply(scene.Patch{IsAnimating: &on})
	if got := h.view.lineIDs(); len(got) != 2 || got[1] != "b" {
		t.Fatalf("b did not fire on transition: %v", got)
	}
	// re-qualifying transitions while b is in flight must not re-fire
	h.store.Apply(scene.Patch{IsAnimating: &off})
	h.store.Apply(scene.Patch{IsAnimating: &on})
	if got := h.view.lineIDs(); len(got) != 2 {
		t.Fatalf("trigger fired more than once per arm: %v", got)
	}
}

func TestParameterChangeDuringPreviousWaitCounts(t *testing.T) {
	s := &script.Script{ID: "demo", Title: "Demo", Sections: []script.Section{
		{ID: "s1", Lines: []script.Line{
			{ID: "a", Text: "drag the slider", DurationMs: 2000, Trigger: script.TriggerSpec{Kind: script.TriggerManual}},
			{ID: "b", Text: "you changed it", DurationMs: 1000, Trigger: script.TriggerSpec{Kind: script.TriggerParameterChange}},
		}},
	}}
	h := newHarness(t, s, nil)
	if err := h.p.Start("demo"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.p.Advance(); err != nil { // satisfy a's manual trigger
		t.Fatalf("advance: %v", err)
	}
	// user drags a slider while a's wait is still running
	f := 2.5
	h.store.Apply(scene.Patch{Frequency: &f})
	if got := h.view.lineIDs(); len(got) != 1 {
		t.Fatalf("b fired before a completed: %v", got)
	}
	// b becomes eligible as soon as a's wait ends
	h.clock.Advance(2 * time.Second)
	if got := h.view.lineIDs(); len(got) != 2 || got[1] != "b" {
		t.Fatalf("carried-over parameter change did not fire b: %v", got)
	}
}

func TestParameterChangeTriggerFiresOnFreshPatchOnce(t *testing.T) {
	s := &script.Script{ID: "demo", Title: "Demo", Sections: []script.Section{
		{ID: "s1", Lines: []script.Line{
			autoLine("a", "watch", 1000),
			{ID: "b", Text: "changed", DurationMs: 5000, Trigger: script.TriggerSpec{Kind: script.TriggerParameterChange}},
		}},
	}}
	h := newHarness(t, s, nil)
	if err := h.p.Start("demo"); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.clock.Advance(time.Second) // a done, b armed
	if got := h.view.lineIDs(); len(got) != 1 {
		t.Fatalf("b fired without a patch: %v", got)
	}
	f := 3.0
	h.store.Apply(scene.Patch{Frequency: &f})
	if got := h.view.lineIDs(); len(got) != 2 {
		t.Fatalf("b did not fire on patch: %v", got)
	}
	// more patches while b is in flight: at most once per arm
	g := 4.0
	h.store.Apply(scene.Patch{Frequency: &g})
	if got := h.view.lineIDs(); len(got) != 2 {
		t.Fatalf("parameter trigger re-fired: %v", got)
	}
}

func TestManualTriggerNeedsExplicitAdvance(t *testing.T) {
	s := &script.Script{ID: "demo", Title: "Demo", Sections: []script.Section{
		{ID: "s1", Lines: []script.Line{
			autoLine("a", "auto", 1000),
			{ID: "b", Text: "wait for me", DurationMs: 1000, Trigger: script.TriggerSpec{Kind: script.TriggerManual}},
		}},
	}}
	h := newHarness(t, s, nil)
	if err := h.p.Start("demo"); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.clock.Advance(time.Second)
	// neither time nor scene changes auto-advance a manual trigger
	h.clock.Advance(time.Minute)
	f := 9.0
	h.store.Apply(scene.Patch{Frequency: &f})
	if got := h.view.lineIDs(); len(got) != 1 {
		t.Fatalf("manual trigger fired on its own: %v", got)
	}
	if err := h.p.Advance(); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if got := h.view.lineIDs(); len(got) != 2 || got[1] != "b" {
		t.Fatalf("advance did not satisfy manual trigger: %v", got)
	}
}

func TestBrokenPredicateIsDeadUntilAdvance(t *testing.T) {
	s := &script.Script{ID: "demo", Title: "Demo", Sections: []script.Section{
		{ID: "s1", Lines: []script.Line{
			autoLine("a", "auto", 1000),
			{ID: "b", Text: "unreachable by trigger", DurationMs: 1000, Trigger: script.TriggerSpec{
				Kind:      script.TriggerAnimationEvent,
				Predicate: &script.Predicate{Kind: script.FieldEquals, Field: "params.bogus", Value: 1.0},
			}},
		}},
	}}
	h := newHarness(t, s, nil)
	if err := h.p.Start("demo"); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.clock.Advance(time.Second) // b armed
	f := 1.0
	h.store.Apply(scene.Patch{Frequency: &f}) // predicate errors, arm goes dead
	g := 2.0
	h.store.Apply(scene.Patch{Frequency: &g}) // dead arm stays silent
	if got := h.view.lineIDs(); len(got) != 1 {
		t.Fatalf("dead trigger fired: %v", got)
	}
	if err := h.p.Advance(); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if got := h.view.lineIDs(); len(got) != 2 || got[1] != "b" {
		t.Fatalf("safety valve did not reach the line: %v", got)
	}
}

func TestSectionEntryTriggerGatesNextSection(t *testing.T) {
	s := &script.Script{ID: "demo", Title: "Demo", Sections: []script.Section{
		{ID: "s1", Lines: []script.Line{autoLine("a", "one", 1000)}},
		{ID: "s2", Trigger: script.TriggerSpec{
			Kind:      script.TriggerAnimationEvent,
			Predicate: &script.Predicate{Kind: script.FieldEquals, Field: "isAnimating", Value: true},
		}, Lines: []script.Line{autoLine("b", "two", 1000)}},
	}}
	h := newHarness(t, s, nil)
	if err := h.p.Start("demo"); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.clock.Advance(time.Second) // s1 exhausted, s2 entry armed
	if got := h.view.lineIDs(); len(got) != 1 {
		t.Fatalf("s2 entered without its event: %v", got)
	}
	if done := h.p.CompletedSections(); len(done) != 1 || done[0] != "s1" {
		t.Fatalf("s1 not recorded complete: %v", done)
	}
	on := true
	h.store.Apply(scene.Patch{IsAnimating: &on})
	if got := h.view.lineIDs(); len(got) != 2 || got[1] != "b" {
		t.Fatalf("section trigger did not fire: %v", got)
	}
}

// --- pause / resume ---

func TestPauseResumePreservesRemainingWait(t *testing.T) {
	s := &script.Script{ID: "demo", Title: "Demo", Sections: []script.Section{
		{ID: "s1", Lines: []script.Line{autoLine("a", "one", 2000), autoLine("b", "two", 1000)}},
	}}
	h := newHarness(t, s, nil)
	if err := h.p.Start("demo"); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.clock.Advance(500 * time.Millisecond)
	if err := h.p.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	// arbitrary wall time passes while paused
	h.clock.Advance(time.Hour)
	if st := h.p.State(); st.LineID != "a" || !st.Paused {
		t.Fatalf("paused presenter advanced: %+v", st)
	}
	if err := h.p.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	// exactly the remaining 1500ms of played time advances the line
	h.clock.Advance(1499 * time.Millisecond)
	if st := h.p.State(); st.LineID != "a" {
		t.Fatalf("advanced before remaining wait elapsed: %+v", st)
	}
	h.clock.Advance(1 * time.Millisecond)
	if st := h.p.State(); st.LineID != "b" {
		t.Fatalf("remaining wait did not complete: %+v", st)
	}
}

func TestPauseSuspendsTriggerEvaluation(t *testing.T) {
	s := &script.Script{ID: "demo", Title: "Demo", Sections: []script.Section{
		{ID: "s1", Lines: []script.Line{
			autoLine("a", "one", 1000),
			{ID: "b", Text: "two", DurationMs: 1000, HighlightTarget: "pulse", Trigger: script.TriggerSpec{
				Kind:      script.TriggerAnimationEvent,
				Predicate: &script.Predicate{Kind: script.FieldEquals, Field: "isAnimating", Value: true},
			}},
		}},
	}}
	h := newHarness(t, s, nil)
	if err := h.p.Start("demo"); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.clock.Advance(time.Second) // b armed
	if err := h.p.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	on := true
	h.store.Apply(scene.Patch{IsAnimating: &on})
	// b's highlight marks its dispatch; pause and resume frames don't carry it
	if len(h.view.highlights) != 0 {
		t.Fatalf("trigger fired while paused: %v", h.view.highlights)
	}
	// the transition observed during the pause window is not lost; it
	// fires on resume
	if err := h.p.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if len(h.view.highlights) != 1 {
		t.Fatalf("pause-window transition did not fire on resume: %v", h.view.highlights)
	}
	h.clock.Advance(10 * time.Second)
	if st := h.p.State(); st.Active {
		t.Fatalf("playback hung after resume: %+v", st)
	}
}

func TestParameterChangeDuringPauseFiresOnResume(t *testing.T) {
	s := &script.Script{ID: "demo", Title: "Demo", Sections: []script.Section{
		{ID: "s1", Lines: []script.Line{
			autoLine("a", "one", 1000),
			{ID: "b", Text: "two", DurationMs: 1000, HighlightTarget: "pulse",
				Trigger: script.TriggerSpec{Kind: script.TriggerParameterChange}},
		}},
	}}
	h := newHarness(t, s, nil)
	if err := h.p.Start("demo"); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.clock.Advance(time.Second) // b armed
	if err := h.p.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	amp := 2.0
	h.store.Apply(scene.Patch{Amplitude: &amp})
	if len(h.view.highlights) != 0 {
		t.Fatalf("trigger fired while paused: %v", h.view.highlights)
	}
	if err := h.p.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if len(h.view.highlights) != 1 {
		t.Fatalf("pause-window patch did not fire on resume: %v", h.view.highlights)
	}
	// and the session still completes on its own
	h.clock.Advance(10 * time.Second)
	if st := h.p.State(); st.Active {
		t.Fatalf("playback hung after resume: %+v", st)
	}
}

func TestPauseWindowSelfCancellingTransitionDoesNotFire(t *testing.T) {
	s := &script.Script{ID: "demo", Title: "Demo", Sections: []script.Section{
		{ID: "s1", Lines: []script.Line{
			autoLine("a", "one", 1000),
			{ID: "b", Text: "two", DurationMs: 1000, HighlightTarget: "pulse", Trigger: script.TriggerSpec{
				Kind:      script.TriggerAnimationEvent,
				Predicate: &script.Predicate{Kind: script.FieldEquals, Field: "isAnimating", Value: true},
			}},
		}},
	}}
	h := newHarness(t, s, nil)
	if err := h.p.Start("demo"); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.clock.Advance(time.Second) // b armed
	if err := h.p.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	on, off := true, false
	h.store.Apply(scene.Patch{IsAnimating: &on})
	h.store.Apply(scene.Patch{IsAnimating: &off})
	if err := h.p.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	// over the whole pause window the value never transitioned
	if len(h.view.highlights) != 0 {
		t.Fatalf("self-cancelling pause-window change fired the trigger: %v", h.view.highlights)
	}
	// the arm stays live: a real transition after resume still fires
	h.store.Apply(scene.Patch{IsAnimating: &on})
	if len(h.view.highlights) != 1 {
		t.Fatalf("trigger dead after resume recheck: %v", h.view.highlights)
	}
}

func TestPausedFramesAreMarked(t *testing.T) {
	s := &script.Script{ID: "demo", Title: "Demo", Sections: []script.Section{
		{ID: "s1", Lines: []script.Line{autoLine("a", "one", 2000)}},
	}}
	h := newHarness(t, s, nil)
	if err := h.p.Start("demo"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.p.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	h.view.mu.Lock()
	last := h.view.frames[len(h.view.frames)-1]
	h.view.mu.Unlock()
	if !last.Paused {
		t.Fatalf("pause frame not marked: %+v", last)
	}
	if !h.p.State().Paused {
		t.Fatalf("state not paused")
	}
}

// --- seek / jump / back ---

func TestSeekCancelsWaitAndFiresAutoImmediately(t *testing.T) {
	s := &script.Script{ID: "demo", Title: "Demo", Sections: []script.Section{
		{ID: "s1", Lines: []script.Line{
			{ID: "a", Text: "one", DurationMs: 5000,
				Action: &script.ActionSpec{Kind: script.ActionSetWaveType, WaveType: "square"}},
		}},
		{ID: "s2", Lines: []script.Line{
			autoLine("b", "two", 1000),
			{ID: "c", Text: "three", DurationMs: 1000, Trigger: script.TriggerSpec{Kind: script.TriggerAuto, DelayMs: 60000},
				Action: &script.ActionSpec{Kind: script.ActionSetWaveType, WaveType: "sawtooth"}},
		}},
	}}
	h := newHarness(t, s, nil)
	if err := h.p.Start("demo"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.p.Seek("s2", "c"); err != nil {
		t.Fatalf("seek: %v", err)
	}
	// c's auto trigger fires immediately; its 60s delay is skipped
	got := h.view.lineIDs()
	if len(got) != 2 || got[1] != "c" {
		t.Fatalf("seek target not dispatched: %v", got)
	}
	if h.store.Read().WaveType != "sawtooth" {
		t.Fatalf("seek target's action not applied")
	}
	// a's abandoned 5s wait must not advance anything
	h.clock.Advance(5 * time.Second)
	st := h.p.State()
	if !st.Active || st.LineID != "c" {
		// c's own 1s wait ended inside the 5s window, completing the script
		if st.Active {
			t.Fatalf("unexpected state after stale window: %+v", st)
		}
	}
	if got := h.view.lineIDs(); len(got) != 2 {
		t.Fatalf("stale wait dispatched a line: %v", got)
	}
}

func TestStaleWaitCallbackIsDropped(t *testing.T) {
	s := &script.Script{ID: "demo", Title: "Demo", Sections: []script.Section{
		{ID: "s1", Lines: []script.Line{autoLine("a", "one", 5000), autoLine("b", "two", 1000)}},
	}}
	h := newHarness(t, s, nil)
	if err := h.p.Start("demo"); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.p.mu.Lock()
	stale := h.p.epoch
	h.p.mu.Unlock()
	if err := h.p.Seek("s1", "b"); err != nil {
		t.Fatalf("seek: %v", err)
	}
	before := h.p.State()
	// simulate a late-firing callback from the abandoned epoch
	h.p.onWaitDone(stale)
	h.p.onDelayDone(stale)
	after := h.p.State()
	if before != after {
		t.Fatalf("stale callback mutated state: %+v vs %+v", before, after)
	}
}

func TestSeekOutOfRangeLeavesStateUnchanged(t *testing.T) {
	s := &script.Script{ID: "demo", Title: "Demo", Sections: []script.Section{
		{ID: "s1", Lines: []script.Line{autoLine("a", "one", 2000)}},
	}}
	h := newHarness(t, s, nil)
	if err := h.p.Start("demo"); err != nil {
		t.Fatalf("start: %v", err)
	}
	before := h.p.State()
	err := h.p.Seek("s1", "nope")
	if !errors.Is(err, ErrSeekOutOfRange) {
		t.Fatalf("expected ErrSeekOutOfRange, got %v", err)
	}
	if h.p.State() != before {
		t.Fatalf("failed seek mutated state")
	}
	// the original wait still completes on schedule
	h.clock.Advance(2 * time.Second)
	if h.p.State().Active {
		t.Fatalf("original wait was lost")
	}
}

func TestSeekWhilePausedPlaysOnResume(t *testing.T) {
	s := &script.Script{ID: "demo", Title: "Demo", Sections: []script.Section{
		{ID: "s1", Lines: []script.Line{autoLine("a", "one", 2000), autoLine("b", "two", 1000)}},
	}}
	h := newHarness(t, s, nil)
	if err := h.p.Start("demo"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.p.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := h.p.Seek("s1", "b"); err != nil {
		t.Fatalf("seek: %v", err)
	}
	for _, id := range h.view.lineIDs() {
		if id == "b" {
			t.Fatalf("seek target played while paused")
		}
	}
	if err := h.p.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	got := h.view.lineIDs()
	if len(got) == 0 || got[len(got)-1] != "b" {
		t.Fatalf("seek target did not play on resume: %v", got)
	}
}

func TestJumpToSectionPlaysItsFirstLine(t *testing.T) {
	s := &script.Script{ID: "demo", Title: "Demo", Sections: []script.Section{
		{ID: "s1", Lines: []script.Line{autoLine("a", "one", 5000)}},
		{ID: "s2", Lines: []script.Line{autoLine("b", "two", 1000)}},
	}}
	h := newHarness(t, s, nil)
	if err := h.p.Start("demo"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.p.JumpToSection("s2"); err != nil {
		t.Fatalf("jump: %v", err)
	}
	if got := h.view.lineIDs(); len(got) != 2 || got[1] != "b" {
		t.Fatalf("jump did not play first line: %v", got)
	}
	if err := h.p.JumpToSection("missing"); !errors.Is(err, ErrSeekOutOfRange) {
		t.Fatalf("expected ErrSeekOutOfRange, got %v", err)
	}
}

func TestBackReplaysPreviousLine(t *testing.T) {
	s := &script.Script{ID: "demo", Title: "Demo", Sections: []script.Section{
		{ID: "s1", Lines: []script.Line{autoLine("a", "one", 1000), autoLine("b", "two", 1000)}},
	}}
	h := newHarness(t, s, nil)
	if err := h.p.Start("demo"); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.clock.Advance(time.Second) // now on b
	if st := h.p.State(); st.LineID != "b" {
		t.Fatalf("expected cursor on b: %+v", st)
	}
	if err := h.p.Back(); err != nil {
		t.Fatalf("back: %v", err)
	}
	got := h.view.lineIDs()
	if got[len(got)-1] != "a" {
		t.Fatalf("back did not replay a: %v", got)
	}
	// at the very start, Back restarts the current line
	if err := h.p.Back(); err != nil {
		t.Fatalf("back at start: %v", err)
	}
	if st := h.p.State(); st.LineID != "a" {
		t.Fatalf("back at start moved cursor: %+v", st)
	}
}

// --- lifecycle and errors ---

func TestStartUnknownScript(t *testing.T) {
	s := &script.Script{ID: "demo", Title: "Demo", Sections: []script.Section{
		{ID: "s1", Lines: []script.Line{autoLine("a", "one", 1000)}},
	}}
	h := newHarness(t, s, nil)
	if err := h.p.Start("missing"); !errors.Is(err, ErrScriptNotFound) {
		t.Fatalf("expected ErrScriptNotFound, got %v", err)
	}
	if h.p.State().Active {
		t.Fatalf("failed start must stay idle")
	}
}

func TestStartWhileActive(t *testing.T) {
	s := &script.Script{ID: "demo", Title: "Demo", Sections: []script.Section{
		{ID: "s1", Lines: []script.Line{autoLine("a", "one", 5000)}},
	}}
	h := newHarness(t, s, nil)
	if err := h.p.Start("demo"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.p.Start("demo"); !errors.Is(err, ErrActive) {
		t.Fatalf("expected ErrActive, got %v", err)
	}
}

func TestControlsWhenIdle(t *testing.T) {
	s := &script.Script{ID: "demo", Title: "Demo", Sections: []script.Section{
		{ID: "s1", Lines: []script.Line{autoLine("a", "one", 1000)}},
	}}
	h := newHarness(t, s, nil)
	if err := h.p.Pause(); !errors.Is(err, ErrNotActive) {
		t.Fatalf("pause idle: %v", err)
	}
	if err := h.p.Advance(); !errors.Is(err, ErrNotActive) {
		t.Fatalf("advance idle: %v", err)
	}
	if err := h.p.Exit(); err != nil {
		t.Fatalf("exit when idle must be a no-op: %v", err)
	}
}

func TestExitCancelsEverythingAndKeepsScene(t *testing.T) {
	s := &script.Script{ID: "demo", Title: "Demo", Sections: []script.Section{
		{ID: "s1", Lines: []script.Line{
			{ID: "a", Text: "one", DurationMs: 5000,
				Action: &script.ActionSpec{Kind: script.ActionSetWaveType, WaveType: "triangle"}},
			autoLine("b", "two", 1000),
		}},
	}}
	h := newHarness(t, s, nil)
	if err := h.p.Start("demo"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.p.Exit(); err != nil {
		t.Fatalf("exit: %v", err)
	}
	if h.p.State().Active {
		t.Fatalf("exit did not go idle")
	}
	// scene stays as the narration last set it
	if got := h.store.Read().WaveType; got != "triangle" {
		t.Fatalf("exit mutated scene: %q", got)
	}
	// abandoned wait fires into a dead epoch
	h.clock.Advance(10 * time.Second)
	if got := h.view.lineIDs(); len(got) != 1 {
		t.Fatalf("stale callback dispatched after exit: %v", got)
	}
	// a fresh session starts cleanly
	if err := h.p.Start("demo"); err != nil {
		t.Fatalf("restart: %v", err)
	}
}

func TestDelayedActionCancelledBySeek(t *testing.T) {
	s := &script.Script{ID: "demo", Title: "Demo", Sections: []script.Section{
		{ID: "s1", Lines: []script.Line{
			{ID: "a", Text: "one", DurationMs: 10000,
				Action: &script.ActionSpec{Kind: script.ActionSetWaveType, WaveType: "square", DelayMs: 5000}},
			autoLine("b", "two", 1000),
		}},
	}}
	h := newHarness(t, s, nil)
	if err := h.p.Start("demo"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.p.Seek("s1", "b"); err != nil {
		t.Fatalf("seek: %v", err)
	}
	h.clock.Advance(5 * time.Second)
	if got := h.store.Read().WaveType; got == "square" {
		t.Fatalf("stale delayed action mutated the scene")
	}
}
