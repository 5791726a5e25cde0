/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package presenter

import (
	"sort"
	"sync"
	"time"
)

// Clock abstracts timer scheduling so playback timing is testable without
// wall-clock sleeps.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable scheduled callback. Stop reports whether the
// callback was prevented from running.
type Timer interface {
	Stop() bool
}

type realClock struct{}

// NewRealClock returns the wall-clock backed Clock used in production.
func NewRealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// ManualClock is a deterministic Clock for tests. Time only moves when
// Advance is called; due callbacks run synchronously on the advancing
// goroutine, in deadline order, without the clock lock held.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	c        *ManualClock
	deadline time.Time
	f        func()
	stopped  bool
	fired    bool
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{c: c, deadline: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward by d, firing every timer whose deadline is
// reached. Callbacks may schedule new timers; those fire too when their
// deadline falls inside the advanced window.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		t := c.nextDueLocked(target)
		if t == nil {
			break
		}
		if t.deadline.After(c.now) {
			c.now = t.deadline
		}
		t.fired = true
		f := t.f
		c.mu.Unlock()
		f()
		c.mu.Lock()
	}
	c.now = target
	c.compactLocked()
	c.mu.Unlock()
}

// Pending reports how many scheduled callbacks have not fired or been
// stopped yet.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

func (c *ManualClock) nextDueLocked(target time.Time) *manualTimer {
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.fired && !t.stopped && !t.deadline.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	return due[0]
}

func (c *ManualClock) compactLocked() {
	kept := c.timers[:0]
	for _, t := range c.timers {
		if !t.fired && !t.stopped {
			kept = append(kept, t)
		}
	}
	c.timers = kept
}

func (t *manualTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}
