package fanout

import (
	"context"
	"time"

	"github.com/RJ/birdbox/internal/logger"
	"github.com/RJ/birdbox/internal/unit"
	"github.com/RJ/birdbox/internal/videosource"
)

// VideoSampleDuration is the fixed nominal duration WebRTC samples are
// paced at (§4.6), approximating the doorbell's ~12fps H.264 stream.
const VideoSampleDuration = 83 * time.Millisecond

// NewVideo builds the video fan-out engine (C6): on 0->1 subscriber it
// opens the RTSP session and publishes H264AccessUnits as they are
// demuxed.
func NewVideo(log logger.Writer, rtspURL string, transport videosource.Transport, bufferUnits int, grace time.Duration) *Engine[*unit.H264AccessUnit] {
	upstream := func(ctx context.Context, publish func(*unit.H264AccessUnit)) error {
		src := &videosource.Source{
			URL:       rtspURL,
			Transport: transport,
			Log:       log,
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- src.Run(ctx, publish)
		}()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		}
	}

	return New(log, bufferUnits, grace, upstream)
}

// VideoSubscription wraps a raw Subscription so a new WebRTC session
// never begins decoding mid-GOP: its first delivered access unit is
// always a keyframe, with any leading non-keyframe units seen during
// the wait silently skipped.
type VideoSubscription struct {
	sub         *Subscription[*unit.H264AccessUnit]
	sawKeyframe bool
}

// SubscribeFromKeyframe joins the video fan-out and discards the access
// units that precede the next keyframe; that keyframe is delivered.
func SubscribeFromKeyframe(e *Engine[*unit.H264AccessUnit]) *VideoSubscription {
	return &VideoSubscription{sub: e.Subscribe()}
}

// Next blocks until the next access unit this subscriber should render:
// the first call never returns before a keyframe has been seen.
func (v *VideoSubscription) Next() (*unit.H264AccessUnit, bool) {
	for {
		au, ok := v.sub.Next()
		if !ok {
			return nil, false
		}
		if !v.sawKeyframe {
			if !au.IsKeyframe {
				continue
			}
			v.sawKeyframe = true
		}
		return au, true
	}
}

// Dropped returns how many access units this subscriber has lost to
// buffer overflow.
func (v *VideoSubscription) Dropped() uint64 { return v.sub.Dropped() }

// Close releases the underlying subscription.
func (v *VideoSubscription) Close() { v.sub.Close() }
