// Package videosource pulls the doorbell's RTSP H.264 stream and emits
// raw access units with arrival metadata (C4, spec.md §4.4).
package videosource

import (
	"context"
	"fmt"
	"time"

	"github.com/bluenviron/gortsplib/v4"
	"github.com/bluenviron/gortsplib/v4/pkg/base"
	"github.com/bluenviron/gortsplib/v4/pkg/format"
	"github.com/bluenviron/mediacommon/pkg/codecs/h264"
	"github.com/pion/rtp"

	"github.com/RJ/birdbox/internal/logger"
	"github.com/RJ/birdbox/internal/unit"
)

// Transport selects the RTSP lower transport.
type Transport int

// Supported transports.
const (
	TransportUDP Transport = iota
	TransportTCP
)

// Source pulls one RTSP H.264 stream and hands every access unit to
// onUnit, blocking until the upstream disconnects. It never decodes to
// pixels (§4.4, Non-goals).
type Source struct {
	URL       string
	Transport Transport
	Log       logger.Writer
}

// Run opens the RTSP session and pumps access units until error,
// disconnect, or ctx cancellation. It does not retry; the caller (the
// video fan-out engine) is responsible for restart and backoff (§4.6, §7).
func (s *Source) Run(ctx context.Context, onUnit func(*unit.H264AccessUnit)) error {
	u, err := base.ParseURL(s.URL)
	if err != nil {
		return fmt.Errorf("invalid RTSP URL: %w", err)
	}

	proto := gortsplib.TransportUDP
	if s.Transport == TransportTCP {
		proto = gortsplib.TransportTCP
	}

	c := &gortsplib.Client{
		Transport: &proto,
		OnTransportSwitch: func(err error) {
			s.Log.Log(logger.Warn, "%v", err)
		},
		OnPacketLost: func(err error) {
			s.Log.Log(logger.Warn, "packet lost: %v", err)
		},
	}

	err = c.Start(u.Scheme, u.Host)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer c.Close()

	desc, _, err := c.Describe(u)
	if err != nil {
		return fmt.Errorf("describe: %w", err)
	}

	var h264Format *format.H264
	media := desc.FindFormat(&h264Format)
	if media == nil {
		return fmt.Errorf("stream does not contain an H264 track")
	}

	decoder, err := h264Format.CreateDecoder()
	if err != nil {
		return fmt.Errorf("h264 decoder: %w", err)
	}

	_, err = c.Setup(desc.BaseURL, media, 0, 0)
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}

	var seq uint64

	c.OnPacketRTP(media, h264Format, func(pkt *rtp.Packet) {
		au, errDec := decoder.Decode(pkt)
		if errDec != nil {
			// no complete access unit yet, or a malformed fragment;
			// forward-by-design means we simply wait for the next one.
			return
		}

		payload, errM := h264.AnnexB(au).Marshal()
		if errM != nil {
			s.Log.Log(logger.Warn, "annex-b marshal: %v", errM)
			return
		}

		onUnit(&unit.H264AccessUnit{
			Payload:    payload,
			Arrived:    time.Now(),
			Sequence:   seq,
			IsKeyframe: h264.IsRandomAccess(au),
		})
		seq++
	})

	_, err = c.Play(nil)
	if err != nil {
		return fmt.Errorf("play: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- c.Wait()
	}()

	select {
	case <-ctx.Done():
		c.Close()
		<-waitErr
		return ctx.Err()
	case err := <-waitErr:
		return err
	}
}
