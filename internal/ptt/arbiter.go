// Package ptt implements the push-to-talk arbiter (C9): a single-holder
// lock across sessions with a broadcast state-change feed.
package ptt

import "sync"

// State is exactly Free or Held{owner} (§3).
type State struct {
	Held  bool
	Owner string // SessionId, only meaningful when Held
}

// Free is the unheld state.
var Free = State{}

// Result of an Acquire call.
type Result int

// Acquire outcomes.
const (
	Granted Result = iota
	Busy
)

// Arbiter serializes push-to-talk ownership and fans out every state
// change to subscribers (§4.9).
type Arbiter struct {
	mu    sync.Mutex
	state State

	subMu sync.Mutex
	subs  map[chan State]struct{}
}

// NewArbiter allocates an Arbiter in the Free state.
func NewArbiter() *Arbiter {
	return &Arbiter{
		subs: make(map[chan State]struct{}),
	}
}

// Acquire attempts to take the uplink for sessionID. Re-acquiring by the
// current holder is a no-op Granted rather than Busy, so an explicit
// ptt_request (§4.10) never contends with the uplink's own track-driven
// acquire for the same session.
func (a *Arbiter) Acquire(sessionID string) (Result, State) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.Held {
		if a.state.Owner == sessionID {
			return Granted, a.state
		}
		return Busy, a.state
	}

	a.state = State{Held: true, Owner: sessionID}
	a.publish(a.state)
	return Granted, a.state
}

// Release releases the uplink if sessionID currently holds it; no-op
// otherwise.
func (a *Arbiter) Release(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.Held && a.state.Owner == sessionID {
		a.state = Free
		a.publish(a.state)
	}
}

// Current returns the arbiter's current state.
func (a *Arbiter) Current() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Subscribe returns a channel, buffered to 4, that receives subsequent
// state changes; a change is not delivered to a subscriber whose buffer
// is full. The caller must call Unsubscribe when done.
func (a *Arbiter) Subscribe() chan State {
	ch := make(chan State, 4)
	a.subMu.Lock()
	a.subs[ch] = struct{}{}
	a.subMu.Unlock()
	return ch
}

// Unsubscribe stops delivery to ch and closes it.
func (a *Arbiter) Unsubscribe(ch chan State) {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	if _, ok := a.subs[ch]; ok {
		delete(a.subs, ch)
		close(ch)
	}
}

// publish must be called with a.mu held, so that all observers see
// state transitions in the same order (§5).
func (a *Arbiter) publish(s State) {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	for ch := range a.subs {
		select {
		case ch <- s:
		default:
			// a subscriber with a full buffer misses this change; the
			// feed never blocks the arbiter's critical section.
		}
	}
}
