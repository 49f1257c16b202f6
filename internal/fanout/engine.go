// Package fanout implements the on-demand, subscriber-driven upstream
// lifecycle and bounded broadcast distribution shared by the audio and
// video fan-out engines (C5, C6; spec.md §4.5, §4.6).
package fanout

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/RJ/birdbox/internal/logger"
)

// State is a fan-out engine's upstream lifecycle state (§3).
type State int

// States, per §3.
const (
	Idle State = iota
	Connecting
	Streaming
	Draining
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case Draining:
		return "draining"
	default:
		return "unknown"
	}
}

// Upstream is supplied by the caller (doorbell audio puller, RTSP
// extractor) and blocks until the connection ends, calling publish for
// every produced item. It must return promptly when ctx is cancelled.
type Upstream[T any] func(ctx context.Context, publish func(T)) error

const (
	minBackoff = 500 * time.Millisecond
	maxJitter  = 500 * time.Millisecond
)

// Engine owns at most one upstream connection and replicates whatever
// it produces to N subscribers (§4.5, §4.6).
type Engine[T any] struct {
	log        logger.Writer
	bufferSize int
	grace      time.Duration
	upstream   Upstream[T]

	mu         sync.Mutex
	state      State
	subs       map[*Subscription[T]]struct{}
	cancel     context.CancelFunc
	graceTimer *time.Timer
}

// New allocates an Engine in the Idle state.
func New[T any](log logger.Writer, bufferSize int, grace time.Duration, upstream Upstream[T]) *Engine[T] {
	return &Engine[T]{
		log:        log,
		bufferSize: bufferSize,
		grace:      grace,
		upstream:   upstream,
		subs:       make(map[*Subscription[T]]struct{}),
	}
}

// State returns the engine's current lifecycle state.
func (e *Engine[T]) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SubscriberCount returns the number of live subscriptions.
func (e *Engine[T]) SubscriberCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

// Subscribe joins the fan-out, arming the upstream connection on a 0->1
// transition and cancelling any pending grace-period teardown.
func (e *Engine[T]) Subscribe() *Subscription[T] {
	e.mu.Lock()
	defer e.mu.Unlock()

	sub := &Subscription[T]{
		engine: e,
		queue:  newBoundedQueue[T](e.bufferSize),
	}
	e.subs[sub] = struct{}{}

	if e.graceTimer != nil {
		e.graceTimer.Stop()
		e.graceTimer = nil
	}

	switch e.state {
	case Idle:
		e.state = Connecting
		e.startUpstreamLocked()
	case Draining:
		e.state = Streaming
	}

	return sub
}

func (e *Engine[T]) startUpstreamLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	go e.runUpstream(ctx)
}

func (e *Engine[T]) runUpstream(ctx context.Context) {
	firstByte := true

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := e.upstream(ctx, func(item T) {
			e.mu.Lock()
			if firstByte {
				if e.state == Connecting {
					e.state = Streaming
				}
				firstByte = false
			}
			snapshot := make([]*Subscription[T], 0, len(e.subs))
			for s := range e.subs {
				snapshot = append(snapshot, s)
			}
			e.mu.Unlock()

			for _, s := range snapshot {
				s.queue.push(item)
			}
		})

		select {
		case <-ctx.Done():
			return
		default:
		}

		if err != nil {
			e.log.Log(logger.Warn, "upstream closed: %v", err)
		}

		e.mu.Lock()
		if len(e.subs) == 0 {
			e.state = Idle
			e.cancel = nil
			e.mu.Unlock()
			return
		}
		// §4.5/§4.6: on failure with subscribers still present,
		// re-enter Connecting after a short jittered backoff.
		e.state = Connecting
		e.mu.Unlock()

		firstByte = true

		backoff := minBackoff + time.Duration(rand.Int63n(int64(maxJitter)))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

func (e *Engine[T]) unsubscribe(sub *Subscription[T]) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.subs, sub)

	// A subscriber can disappear before the upstream ever produced its
	// first byte (Connecting) as well as after (Streaming); either way
	// the grace timer, not an immediate cancel, decides whether the
	// attempt is worth keeping alive.
	if len(e.subs) == 0 && (e.state == Streaming || e.state == Connecting) {
		e.state = Draining
		e.graceTimer = time.AfterFunc(e.grace, func() {
			e.mu.Lock()
			defer e.mu.Unlock()

			if e.state == Draining && len(e.subs) == 0 {
				e.state = Idle
				if e.cancel != nil {
					e.cancel()
					e.cancel = nil
				}
			}
		})
	}
}

// Subscription is a handle to one consumer of a fan-out engine. Its
// Close must be called exactly once, typically via defer (§3).
type Subscription[T any] struct {
	engine *Engine[T]
	queue  *boundedQueue[T]
	once   sync.Once
}

// Next blocks until an item is available or the subscription is closed.
func (s *Subscription[T]) Next() (T, bool) {
	return s.queue.pull()
}

// Dropped returns how many items this subscriber has lost to buffer
// overflow (§3 invariants, §8 boundary behaviors).
func (s *Subscription[T]) Dropped() uint64 {
	return s.queue.droppedCount()
}

// Close releases the subscription, decrementing the engine's
// subscriber count and possibly arming its grace timer.
func (s *Subscription[T]) Close() {
	s.once.Do(func() {
		s.queue.close()
		s.engine.unsubscribe(s)
	})
}
