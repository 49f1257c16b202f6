package fanout

import (
	"context"
	"io"
	"time"

	"github.com/RJ/birdbox/internal/audiopipeline"
	"github.com/RJ/birdbox/internal/doorbell"
	"github.com/RJ/birdbox/internal/logger"
	"github.com/RJ/birdbox/internal/unit"
)

// NewAudio builds the audio fan-out engine (C5): on 0->1 subscriber it
// opens the doorbell's chunked mu-law stream, drives it through the
// forward transcoder, and publishes OpusFrames.
func NewAudio(log logger.Writer, client *doorbell.Client, bufferFrames int, grace time.Duration) *Engine[*unit.OpusFrame] {
	upstream := func(ctx context.Context, publish func(*unit.OpusFrame)) error {
		body, err := client.OpenAudioReceive(ctx)
		if err != nil {
			return err
		}
		defer body.Close() //nolint:errcheck

		fwd, err := audiopipeline.NewForward(log)
		if err != nil {
			return err
		}

		buf := make([]byte, 4096)
		for {
			n, err := body.Read(buf)
			if n > 0 {
				frames, ferr := fwd.Process(buf[:n])
				if ferr != nil {
					log.Log(logger.Warn, "transcode error: %v", ferr)
				}
				for _, f := range frames {
					publish(f)
				}
			}
			if err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
	}

	return New(log, bufferFrames, grace, upstream)
}
