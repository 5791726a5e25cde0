/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import "sync"

// Subscriber observes store changes with before/after snapshots. It is
// invoked synchronously, exactly once per Apply call (including empty
// patches), before Apply returns.
type Subscriber func(prev, cur State)

// Store owns the scene State for one experiment session. All mutation goes
// through Apply so subscribers see a total order of changes. Subscribers
// run without the store lock held; re-entrant Apply from inside a
// subscriber is allowed and orders after the triggering call.
type Store struct {
	mu       sync.Mutex
	cur      State
	defaults State
	version  uint64
	subs     map[int]Subscriber
	nextSub  int
}

// NewStore creates a store seeded with the experiment's default state.
// Reset returns to exactly these defaults.
func NewStore(defaults State) *Store {
	return &Store{
		cur:      defaults.Clone(),
		defaults: defaults.Clone(),
		subs:     make(map[int]Subscriber),
	}
}

// Read returns a snapshot of the current state.
func (st *Store) Read() State {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.cur.Clone()
}

// Version is a counter bumped on every Apply and Reset. Observers use it
// to tell whether any change happened between two points in time.
func (st *Store) Version() uint64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.version
}

// Apply merges p into the state and notifies every subscriber once.
func (st *Store) Apply(p Patch) {
	st.mu.Lock()
	st.version++
	prev := st.cur.Clone()
	p.applyTo(&st.cur)
	cur := st.cur.Clone()
	subs := st.snapshotSubs()
	st.mu.Unlock()

	for _, fn := range subs {
		fn(prev, cur)
	}
}

// ApplyMap is Apply for loosely typed patch data from script actions.
func (st *Store) ApplyMap(m map[string]any) { st.Apply(FromMap(m)) }

// Reset replaces the state with the registered defaults and notifies
// subscribers like any other change.
func (st *Store) Reset() {
	st.mu.Lock()
	st.version++
	prev := st.cur.Clone()
	st.cur = st.defaults.Clone()
	cur := st.cur.Clone()
	subs := st.snapshotSubs()
	st.mu.Unlock()

	for _, fn := range subs {
		fn(prev, cur)
	}
}

// Restore replaces the whole state with s. Undo and redo use this to roll
// the experiment back to a recorded snapshot; subscribers are notified like
// any other change.
func (st *Store) Restore(s State) {
	st.mu.Lock()
	st.version++
	prev := st.cur.Clone()
	st.cur = s.Clone()
	cur := st.cur.Clone()
	subs := st.snapshotSubs()
	st.mu.Unlock()

	for _, fn := range subs {
		fn(prev, cur)
	}
}

// Subscribe registers fn and returns its unsubscribe func. Unsubscribing
// twice is harmless.
func (st *Store) Subscribe(fn Subscriber) (unsubscribe func()) {
	st.mu.Lock()
	defer st.mu.Unlock()
	id := st.nextSub
	st.nextSub++
	st.subs[id] = fn
	return func() {
		st.mu.Lock()
		defer st.mu.Unlock()
		delete(st.subs, id)
	}
}

// snapshotSubs must be called with the lock held. Subscribers are invoked
// in registration order so observers agree on ordering.
func (st *Store) snapshotSubs() []Subscriber {
	ids := make([]int, 0, len(st.subs))
	for id := range st.subs {
		ids = append(ids, id)
	}
	// insertion sort, the set is tiny
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	out := make([]Subscriber, 0, len(ids))
	for _, id := range ids {
		out = append(out, st.subs[id])
	}
	return out
}
