package fanout

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RJ/birdbox/internal/logger"
)

type discardLogger struct{}

func (discardLogger) Log(level logger.Level, format string, args ...interface{}) {}

// countingUpstream emits an incrementing int every tick until ctx is
// cancelled, and counts how many times it was opened (single-upstream
// invariant, §8 scenario 2/3).
func countingUpstream(opens *int32, tick time.Duration) Upstream[int] {
	return func(ctx context.Context, publish func(int)) error {
		atomic.AddInt32(opens, 1)
		n := 0
		t := time.NewTicker(tick)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				publish(n)
				n++
			}
		}
	}
}

func TestSubscribeStartsUpstreamOnce(t *testing.T) {
	var opens int32
	e := New(discardLogger{}, 10, 50*time.Millisecond, countingUpstream(&opens, time.Millisecond))

	subA := e.Subscribe()
	subB := e.Subscribe()
	require.Equal(t, 2, e.SubscriberCount())

	time.Sleep(10 * time.Millisecond)
	require.Equal(t, int32(1), atomic.LoadInt32(&opens))

	subA.Close()
	subB.Close()
}

func TestGracePeriodNoFlap(t *testing.T) {
	var opens int32
	e := New(discardLogger{}, 10, 100*time.Millisecond, countingUpstream(&opens, time.Millisecond))

	sub := e.Subscribe()
	time.Sleep(5 * time.Millisecond)
	sub.Close()

	// re-subscribe well within the grace period: upstream must not
	// have been reopened.
	time.Sleep(20 * time.Millisecond)
	sub2 := e.Subscribe()
	time.Sleep(5 * time.Millisecond)

	require.Equal(t, int32(1), atomic.LoadInt32(&opens))
	sub2.Close()
}

func TestGracePeriodTeardown(t *testing.T) {
	e := New(discardLogger{}, 10, 30*time.Millisecond, countingUpstream(new(int32), time.Millisecond))

	sub := e.Subscribe()
	time.Sleep(5 * time.Millisecond)
	sub.Close()

	require.Eventually(t, func() bool {
		return e.State() == Idle
	}, 200*time.Millisecond, 5*time.Millisecond)
}

func TestSlowSubscriberDropsWithoutBlockingOthers(t *testing.T) {
	e := New(discardLogger{}, 4, 50*time.Millisecond, countingUpstream(new(int32), time.Millisecond))

	fast := e.Subscribe()
	slow := e.Subscribe()
	defer fast.Close()
	defer slow.Close()

	// drain only the fast subscriber; the slow one's queue fills and
	// starts dropping, but the fast one keeps receiving items.
	received := 0
	deadline := time.After(100 * time.Millisecond)
loop:
	for {
		select {
		case <-deadline:
			break loop
		default:
		}
		done := make(chan struct{})
		go func() {
			v, ok := fast.Next()
			_ = v
			_ = ok
			close(done)
		}()
		select {
		case <-done:
			received++
			if received > 20 {
				break loop
			}
		case <-time.After(10 * time.Millisecond):
			break loop
		}
	}

	require.Greater(t, received, 0)
	require.Greater(t, slow.Dropped(), uint64(0))
}
