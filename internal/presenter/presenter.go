/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package presenter drives narration playback: it advances through a
// script's sections and lines, resolves each unit's trigger, dispatches
// animation actions to the scene store, and paces the sequence with per
// line waits from audio durations or estimated reading time.
//
// The presenter is one logical actor. All transitions run under a single
// mutex; timer and scene callbacks re-enter through the same lock, and
// every scheduled callback carries the epoch it was created in. Seek,
// Exit, Advance and Back bump the epoch, so a late callback from an
// abandoned wait can never act on a line that is no longer current.
package presenter

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	applog "mathviz/internal/log"
	"mathviz/internal/scene"
	"mathviz/internal/script"
	"mathviz/internal/telemetry"
)

// DurationProvider reports synthesized audio length for a narration line.
// Unavailable audio is not an error; the presenter falls back to estimated
// reading time.
type DurationProvider interface {
	LineDuration(scriptID, sectionID, lineID string) (time.Duration, bool)
}

// State is a read-only snapshot of the playback cursor and mode.
type State struct {
	Active       bool
	Paused       bool
	ScriptID     string
	SectionIndex int
	LineIndex    int
	SectionID    string
	LineID       string
	Progress     float64
}

// Config wires the presenter's collaborators. Registry and Scene are
// required; the rest have working defaults.
type Config struct {
	Registry *script.Registry
	Scene    *scene.Store
	View     ViewSink         // nil: frames are dropped
	Audio    DurationProvider // nil: always estimate
	Clock    Clock            // nil: wall clock
	Rate     float64          // playback rate, 0 means 1.0
}

type waitKind int

const (
	waitNone  waitKind = iota
	waitDelay          // auto-trigger delay before dispatch
	waitLine           // line duration after dispatch
)

// position names a script location for logs and content issues.
type position struct {
	scriptID  string
	sectionID string
	lineID    string
}

// Presenter is the playback state machine. Zero value is not usable;
// construct with New.
type Presenter struct {
	reg   *script.Registry
	store *scene.Store
	view  ViewSink
	audio DurationProvider
	clock Clock
	log   *slog.Logger

	mu     sync.Mutex
	rate   float64
	active bool
	paused bool
	cur    *script.Script
	pos    script.Position
	epoch  uint64

	timer     Timer
	wait      waitKind
	waitStart time.Time
	waitTotal time.Duration
	remaining time.Duration // frozen wait, valid while paused

	armed           *armedTrigger
	pendingAutoFire bool          // auto trigger reached while paused
	pendingDelay    time.Duration // its unscaled delay, applied on resume
	pausedPrev      *scene.State  // state before the first change suppressed while paused
	sceneBase       uint64        // store version when the current line dispatched

	completed []string
	unsub     func()
}

// New builds a presenter and subscribes it to the scene store.
func New(cfg Config) *Presenter {
	p := &Presenter{
		reg:   cfg.Registry,
		store: cfg.Scene,
		view:  cfg.View,
		audio: cfg.Audio,
		clock: cfg.Clock,
		log:   applog.WithComponent("presenter"),
		rate:  cfg.Rate,
	}
	if p.view == nil {
		p.view = noopView{}
	}
	if p.clock == nil {
		p.clock = NewRealClock()
	}
	if p.rate <= 0 {
		p.rate = 1.0
	}
	p.unsub = p.store.Subscribe(p.onSceneChange)
	return p
}

// Close detaches the presenter from the scene store. The session, if any,
// is exited first.
func (p *Presenter) Close() {
	_ = p.Exit()
	if p.unsub != nil {
		p.unsub()
		p.unsub = nil
	}
}

// Start begins playback of the script with the given id. Fails with
// ErrScriptNotFound for an unknown id and ErrActive if a session is
// already running; the presenter stays idle on failure.
func (p *Presenter) Start(id string) error {
	p.mu.Lock()
	if p.active {
		p.mu.Unlock()
		return ErrActive
	}
	s, err := p.reg.Get(id)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	if s.TotalLines() == 0 {
		p.mu.Unlock()
		return fmt.Errorf("script %s has no playable lines", id)
	}
	p.active = true
	p.paused = false
	p.cur = s
	p.pos = script.Position{}
	p.epoch++
	p.completed = nil
	p.pendingAutoFire = false
	p.sceneBase = p.store.Version()
	epoch := p.epoch
	fireNow := p.armLocked(true)
	p.mu.Unlock()

	p.log.Info("playback started", slog.String("script", id))
	telemetry.Event("playback_start", map[string]any{"script": id})
	if fireNow {
		p.playCurrent(epoch)
	}
	return nil
}

// Pause freezes the current wait and suspends trigger evaluation. The
// remaining wait time is preserved, not reset.
func (p *Presenter) Pause() error {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return ErrNotActive
	}
	if p.paused {
		p.mu.Unlock()
		return nil
	}
	p.paused = true
	if p.wait != waitNone && p.timer != nil {
		p.timer.Stop()
		p.timer = nil
		elapsed := p.clock.Now().Sub(p.waitStart)
		p.remaining = p.waitTotal - elapsed
		if p.remaining < 0 {
			p.remaining = 0
		}
	}
	frame, ok := p.frameLocked()
	p.mu.Unlock()
	if ok {
		p.view.ShowFrame(frame)
	}
	return nil
}

// Resume continues a paused session. A frozen wait restarts with its
// remaining time, so played time is honored regardless of how long the
// pause lasted.
func (p *Presenter) Resume() error {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return ErrNotActive
	}
	if !p.paused {
		p.mu.Unlock()
		return nil
	}
	p.paused = false
	epoch := p.epoch

	if p.pendingAutoFire {
		p.pendingAutoFire = false
		if p.pendingDelay > 0 {
			p.startDelayLocked(p.scaleLocked(p.pendingDelay), epoch)
			p.pendingDelay = 0
			p.mu.Unlock()
			return nil
		}
		p.mu.Unlock()
		p.playCurrent(epoch)
		return nil
	}

	if p.armed != nil {
		fire, err := p.recheckArmedLocked()
		if err != nil {
			at := p.positionLocked()
			p.mu.Unlock()
			p.contentIssue(at, "trigger_condition_error", err.Error())
			return nil
		}
		if fire {
			p.armed = nil
			p.mu.Unlock()
			p.playCurrent(epoch)
			return nil
		}
	}

	if p.wait != waitNone {
		d := p.remaining
		p.waitStart = p.clock.Now()
		p.waitTotal = d
		switch p.wait {
		case waitLine:
			p.timer = p.clock.AfterFunc(d, func() { p.onWaitDone(epoch) })
		case waitDelay:
			p.timer = p.clock.AfterFunc(d, func() { p.onDelayDone(epoch) })
		}
	}
	frame, ok := p.frameLocked()
	p.mu.Unlock()
	if ok {
		p.view.ShowFrame(frame)
	}
	return nil
}

// Seek relocates the cursor to an exact section/line pair, cancelling any
// outstanding wait. An auto trigger at the target fires immediately, with
// its delay skipped, since the "previous line completed" event it would
// normally ride on never happens after a jump. Works while paused; the
// target then plays on resume.
func (p *Presenter) Seek(sectionID, lineID string) error {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return ErrNotActive
	}
	pos, ok := p.cur.Find(sectionID, lineID)
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s/%s", ErrSeekOutOfRange, sectionID, lineID)
	}
	p.relocateLocked(pos)
	return p.fireAfterJumpLocked() // unlocks
}

// JumpToSection seeks to the first line of the named section.
func (p *Presenter) JumpToSection(sectionID string) error {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return ErrNotActive
	}
	si, ok := p.cur.FindSection(sectionID)
	if !ok || len(p.cur.Sections[si].Lines) == 0 {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSeekOutOfRange, sectionID)
	}
	p.relocateLocked(script.Position{Section: si})
	return p.fireAfterJumpLocked() // unlocks
}

// Advance is the explicit "next" control. It satisfies a pending manual
// (or dead) trigger, or cuts the current line's wait short and moves on.
// It is the safety valve that makes every line reachable.
func (p *Presenter) Advance() error {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return ErrNotActive
	}
	p.epoch++
	epoch := p.epoch
	p.stopTimerLocked()

	if p.armed != nil || p.pendingAutoFire || p.wait == waitDelay {
		// the current unit has not dispatched yet; advance plays it now
		p.armed = nil
		p.pendingAutoFire = false
		p.pendingDelay = 0
		p.pausedPrev = nil
		p.wait = waitNone
		return p.firePausableLocked(epoch) // unlocks
	}

	// mid-wait or idle between callbacks: move the cursor forward; manual
	// advance overrides whatever trigger the next unit carries
	p.wait = waitNone
	if alive, _ := p.advanceCursorLocked(); !alive {
		p.mu.Unlock()
		return nil
	}
	return p.firePausableLocked(epoch) // unlocks
}

// Back replays the previous line, or restarts the current line when the
// cursor is at the very beginning of the script.
func (p *Presenter) Back() error {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return ErrNotActive
	}
	p.epoch++
	epoch := p.epoch
	p.stopTimerLocked()
	p.wait = waitNone
	p.armed = nil
	p.pendingAutoFire = false
	p.pendingDelay = 0

	if p.pos.Line > 0 {
		p.pos.Line--
	} else if p.pos.Section > 0 {
		p.pos.Section--
		p.pos.Line = len(p.cur.Sections[p.pos.Section].Lines) - 1
	}
	return p.firePausableLocked(epoch) // unlocks
}

// Exit tears the session down from any state. Timers are cancelled, the
// trigger disarmed, and the presenter returns to idle. The scene is left
// exactly as the narration last set it.
func (p *Presenter) Exit() error {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return nil
	}
	id := ""
	if p.cur != nil {
		id = p.cur.ID
	}
	p.epoch++
	p.stopTimerLocked()
	p.active = false
	p.paused = false
	p.cur = nil
	p.wait = waitNone
	p.armed = nil
	p.pendingAutoFire = false
	p.pendingDelay = 0
	p.pausedPrev = nil
	p.mu.Unlock()

	p.log.Info("playback exited", slog.String("script", id))
	return nil
}

// SetRate sets the playback rate, clamped to [0.25, 4]. It applies to
// waits started after the call; a wait already in flight keeps its pace.
func (p *Presenter) SetRate(rate float64) {
	if rate < 0.25 {
		rate = 0.25
	}
	if rate > 4 {
		rate = 4
	}
	p.mu.Lock()
	p.rate = rate
	p.mu.Unlock()
}

// State returns a snapshot of the playback cursor and mode.
func (p *Presenter) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := State{Active: p.active, Paused: p.paused}
	if !p.active || p.cur == nil {
		return st
	}
	st.ScriptID = p.cur.ID
	st.SectionIndex = p.pos.Section
	st.LineIndex = p.pos.Line
	st.SectionID = p.cur.Sections[p.pos.Section].ID
	if ln := p.cur.At(p.pos); ln != nil {
		st.LineID = ln.ID
	}
	st.Progress = p.progressLocked()
	return st
}

// CompletedSections lists the sections played to the end this session,
// in completion order.
func (p *Presenter) CompletedSections() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.completed...)
}

// --- internal transitions ---

// relocateLocked moves the cursor for a user jump, invalidating every
// outstanding callback.
func (p *Presenter) relocateLocked(pos script.Position) {
	p.epoch++
	p.stopTimerLocked()
	p.wait = waitNone
	p.armed = nil
	p.pendingAutoFire = false
	p.pendingDelay = 0
	p.pausedPrev = nil
	p.pos = pos
}

// fireAfterJumpLocked arms the target unit after a seek. Auto fires
// immediately (delay skipped); manual and scene triggers arm normally.
// Unlocks p.mu.
func (p *Presenter) fireAfterJumpLocked() error {
	epoch := p.epoch
	ln := p.cur.At(p.pos)
	if ln == nil {
		p.mu.Unlock()
		return nil
	}
	switch ln.Trigger.Kind {
	case script.TriggerAuto:
		return p.firePausableLocked(epoch)
	default:
		p.armed = &armedTrigger{spec: ln.Trigger}
		p.mu.Unlock()
		return nil
	}
}

// firePausableLocked plays the current unit now, or defers it to resume
// when the session is paused. Unlocks p.mu.
func (p *Presenter) firePausableLocked(epoch uint64) error {
	if p.paused {
		p.pendingAutoFire = true
		p.pendingDelay = 0
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	p.playCurrent(epoch)
	return nil
}

// armLocked arms the trigger for the unit at the cursor and reports
// whether the caller should dispatch immediately. enteringSection applies
// the section's entry trigger when the cursor sits on its first line; a
// line-level non-auto trigger still takes precedence there.
func (p *Presenter) armLocked(enteringSection bool) (fireNow bool) {
	p.armed = nil
	p.pausedPrev = nil
	ln := p.cur.At(p.pos)
	if ln == nil {
		return false
	}
	t := ln.Trigger
	if enteringSection && p.pos.Line == 0 {
		sec := &p.cur.Sections[p.pos.Section]
		if t.Kind == script.TriggerAuto {
			if sec.Trigger.Kind != script.TriggerAuto {
				t = sec.Trigger
			} else if t.DelayMs == 0 {
				t.DelayMs = sec.Trigger.DelayMs
			}
		}
	}

	switch t.Kind {
	case script.TriggerAuto:
		if p.paused {
			p.pendingAutoFire = true
			p.pendingDelay = t.Delay()
			return false
		}
		if d := t.Delay(); d > 0 {
			p.startDelayLocked(p.scaleLocked(d), p.epoch)
			return false
		}
		return true
	case script.TriggerParameterChange:
		// a user change made during the previous line's wait already
		// satisfies the trigger; eligibility lands when the wait ends
		if p.store.Version() > p.sceneBase {
			if p.paused {
				p.pendingAutoFire = true
				p.pendingDelay = 0
				return false
			}
			return true
		}
		p.armed = &armedTrigger{spec: t}
	case script.TriggerManual, script.TriggerAnimationEvent:
		p.armed = &armedTrigger{spec: t}
	}
	return false
}

// recheckArmedLocked re-evaluates the armed trigger after a pause window.
// A parameter change that landed while paused shows up as a store version
// past the line's baseline; an animation-event predicate is evaluated over
// the transition from the state before the pause window to the state now.
func (p *Presenter) recheckArmedLocked() (fire bool, err error) {
	defer func() { p.pausedPrev = nil }()
	switch p.armed.spec.Kind {
	case script.TriggerParameterChange:
		if p.store.Version() > p.sceneBase {
			p.armed.fired = true
			return true, nil
		}
	case script.TriggerAnimationEvent:
		if p.pausedPrev != nil {
			return p.armed.evaluate(*p.pausedPrev, p.store.Read())
		}
	}
	return false, nil
}

func (p *Presenter) startDelayLocked(d time.Duration, epoch uint64) {
	p.wait = waitDelay
	p.waitStart = p.clock.Now()
	p.waitTotal = d
	p.timer = p.clock.AfterFunc(d, func() { p.onDelayDone(epoch) })
}

func (p *Presenter) onDelayDone(epoch uint64) {
	p.mu.Lock()
	if epoch != p.epoch || !p.active || p.paused || p.wait != waitDelay {
		p.mu.Unlock()
		return
	}
	p.wait = waitNone
	p.timer = nil
	p.mu.Unlock()
	p.playCurrent(epoch)
}

// playCurrent dispatches the line at the cursor and starts its wait.
// Side effects against the store and view run without the lock held, so
// scene subscribers (including the presenter's own trigger evaluation) can
// re-enter freely.
func (p *Presenter) playCurrent(epoch uint64) {
	p.mu.Lock()
	if epoch != p.epoch || !p.active {
		p.mu.Unlock()
		return
	}
	if p.paused {
		p.pendingAutoFire = true
		p.pendingDelay = 0
		p.mu.Unlock()
		return
	}
	ln := p.cur.At(p.pos)
	if ln == nil {
		p.mu.Unlock()
		return
	}
	at := p.positionLocked()
	frame, _ := p.frameLocked()
	action := ln.Action
	highlight := ln.HighlightTarget
	p.mu.Unlock()

	p.view.ShowFrame(frame)
	if highlight != "" {
		p.view.Highlight(highlight)
	}
	p.dispatchAction(action, at, epoch)

	p.mu.Lock()
	if epoch != p.epoch || !p.active {
		p.mu.Unlock()
		return
	}
	p.sceneBase = p.store.Version()
	d := p.lineWaitLocked(ln)
	if p.paused {
		// paused from inside a dispatch side effect: freeze the whole wait
		p.wait = waitLine
		p.remaining = d
		p.mu.Unlock()
		return
	}
	p.wait = waitLine
	p.waitStart = p.clock.Now()
	p.waitTotal = d
	p.timer = p.clock.AfterFunc(d, func() { p.onWaitDone(epoch) })
	p.mu.Unlock()
}

func (p *Presenter) onWaitDone(epoch uint64) {
	p.mu.Lock()
	if epoch != p.epoch || !p.active || p.paused || p.wait != waitLine {
		p.mu.Unlock()
		return
	}
	p.wait = waitNone
	p.timer = nil
	alive, entering := p.advanceCursorLocked()
	if !alive {
		p.mu.Unlock()
		return
	}
	fireNow := p.armLocked(entering)
	p.mu.Unlock()
	if fireNow {
		p.playCurrent(epoch)
	}
}

// advanceCursorLocked moves to the next line, rolling into the next
// section when the current one is exhausted. Returns alive=false after
// natural completion of the whole script.
func (p *Presenter) advanceCursorLocked() (alive, enteringSection bool) {
	sec := &p.cur.Sections[p.pos.Section]
	if p.pos.Line+1 < len(sec.Lines) {
		p.pos.Line++
		return true, false
	}
	p.completed = append(p.completed, sec.ID)
	if p.pos.Section+1 < len(p.cur.Sections) {
		p.pos.Section++
		p.pos.Line = 0
		return true, true
	}
	// natural completion
	id := p.cur.ID
	p.active = false
	p.paused = false
	p.cur = nil
	p.armed = nil
	p.epoch++
	p.log.Info("playback complete", slog.String("script", id))
	telemetry.Event("playback_complete", map[string]any{"script": id})
	return false, false
}

// onSceneChange evaluates the armed trigger against every store change.
// Runs synchronously inside Store.Apply, after the store released its own
// lock. While paused a qualifying change is suppressed, not lost: the state
// before the first suppressed change is kept so Resume can re-evaluate the
// arm over the whole pause window.
func (p *Presenter) onSceneChange(prev, cur scene.State) {
	p.mu.Lock()
	if !p.active || p.armed == nil {
		p.mu.Unlock()
		return
	}
	if p.paused {
		if p.pausedPrev == nil {
			s := prev.Clone()
			p.pausedPrev = &s
		}
		p.mu.Unlock()
		return
	}
	fire, err := p.armed.evaluate(prev, cur)
	if err != nil {
		at := p.positionLocked()
		p.mu.Unlock()
		p.contentIssue(at, "trigger_condition_error", err.Error())
		return
	}
	if !fire {
		p.mu.Unlock()
		return
	}
	p.armed = nil
	epoch := p.epoch
	p.mu.Unlock()
	p.playCurrent(epoch)
}

// lineWaitLocked computes the scaled wait for one line:
// max(duration hint, audio duration) + pause, and never zero. Without any
// duration source the wait falls back to reading speed over the text, so
// a line is never skipped silently.
func (p *Presenter) lineWaitLocked(ln *script.Line) time.Duration {
	base := ln.DurationHint()
	if p.audio != nil {
		if d, ok := p.audio.LineDuration(p.cur.ID, p.cur.Sections[p.pos.Section].ID, ln.ID); ok && d > base {
			base = d
		}
	}
	if base <= 0 {
		base = estimateReadingTime(ln.Text)
	}
	return p.scaleLocked(base + ln.Pause())
}

// estimateReadingTime approximates narration speed at roughly 200 words
// per minute, with a floor so even a one-word line stays readable.
func estimateReadingTime(text string) time.Duration {
	words := len(strings.Fields(text))
	d := time.Duration(words) * 300 * time.Millisecond
	if d < 1500*time.Millisecond {
		d = 1500 * time.Millisecond
	}
	return d
}

func (p *Presenter) scaleLocked(d time.Duration) time.Duration {
	return time.Duration(float64(d) / p.rate)
}

func (p *Presenter) scale(d time.Duration) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scaleLocked(d)
}

func (p *Presenter) epochAlive(epoch uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active && epoch == p.epoch
}

func (p *Presenter) stopTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *Presenter) positionLocked() position {
	at := position{scriptID: p.cur.ID, sectionID: p.cur.Sections[p.pos.Section].ID}
	if ln := p.cur.At(p.pos); ln != nil {
		at.lineID = ln.ID
	}
	return at
}

func (p *Presenter) progressLocked() float64 {
	total := p.cur.TotalLines()
	if total == 0 {
		return 0
	}
	return float64(p.cur.FlatIndex(p.pos)+1) / float64(total)
}

func (p *Presenter) frameLocked() (Frame, bool) {
	if !p.active || p.cur == nil {
		return Frame{}, false
	}
	ln := p.cur.At(p.pos)
	if ln == nil {
		return Frame{}, false
	}
	sec := &p.cur.Sections[p.pos.Section]
	return Frame{
		ScriptID:        p.cur.ID,
		SectionID:       sec.ID,
		SectionTitle:    sec.Title,
		LineID:          ln.ID,
		Text:            ln.Text,
		Formula:         ln.Formula,
		HighlightTarget: ln.HighlightTarget,
		Progress:        p.progressLocked(),
		Paused:          p.paused,
	}, true
}
