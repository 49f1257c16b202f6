// Package session implements one browser's WebRTC session (C8): a
// peer connection carrying the shared audio and video fan-outs
// downstream, and an optional push-to-talk uplink back to the doorbell.
package session

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"

	"github.com/RJ/birdbox/internal/audiopipeline"
	"github.com/RJ/birdbox/internal/doorbell"
	"github.com/RJ/birdbox/internal/fanout"
	"github.com/RJ/birdbox/internal/logger"
	"github.com/RJ/birdbox/internal/ptt"
	"github.com/RJ/birdbox/internal/unit"
	"github.com/RJ/birdbox/internal/webrtcinfra"
)

// CandidateSender is called once per locally gathered ICE candidate, so
// the signaling carrier can forward it to the browser (§4.10).
type CandidateSender func(webrtc.ICECandidateInit)

// Session wires one peer connection to the shared audio/video fan-outs
// and, while push-to-talk is held, to the doorbell's uplink.
type Session struct {
	id  string
	log logger.Writer

	pc *webrtc.PeerConnection

	audioEngine *fanout.Engine[*unit.OpusFrame]
	videoEngine *fanout.Engine[*unit.H264AccessUnit]
	arbiter     *ptt.Arbiter
	doorbell    *doorbell.Client

	mu        sync.Mutex
	audioSub  *fanout.Subscription[*unit.OpusFrame]
	videoSub  *fanout.VideoSubscription
	pttCancel context.CancelFunc
	closed    bool
}

// New creates a Session for one signaling connection. The peer
// connection is not started until Negotiate is called with the
// browser's offer.
func New(
	log logger.Writer,
	infra *webrtcinfra.Infra,
	audioEngine *fanout.Engine[*unit.OpusFrame],
	videoEngine *fanout.Engine[*unit.H264AccessUnit],
	arbiter *ptt.Arbiter,
	client *doorbell.Client,
) (*Session, error) {
	id := uuid.NewString()

	pc, err := infra.API.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	return &Session{
		id:          id,
		log:         log,
		pc:          pc,
		audioEngine: audioEngine,
		videoEngine: videoEngine,
		arbiter:     arbiter,
		doorbell:    client,
	}, nil
}

// ID returns the session identifier used as the push-to-talk owner tag
// (§4.9) and in signaling logs.
func (s *Session) ID() string { return s.id }

// Negotiate subscribes to the shared fan-outs, adds the downstream
// tracks, and returns the SDP answer for the given offer (§4.8, §4.10).
// onCandidate is invoked for every locally gathered ICE candidate;
// onStateChange for every connection state transition, so the caller can
// react to Failed/Closed/Disconnected by calling Close.
func (s *Session) Negotiate(
	offer webrtc.SessionDescription,
	onCandidate CandidateSender,
	onStateChange func(webrtc.PeerConnectionState),
) (*webrtc.SessionDescription, error) {
	s.mu.Lock()
	s.audioSub = s.audioEngine.Subscribe()
	s.videoSub = fanout.SubscribeFromKeyframe(s.videoEngine)
	s.mu.Unlock()

	audioTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 1},
		"audio", "birdbox-"+s.id,
	)
	if err != nil {
		return nil, fmt.Errorf("new audio track: %w", err)
	}
	videoTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264, ClockRate: 90000},
		"video", "birdbox-"+s.id,
	)
	if err != nil {
		return nil, fmt.Errorf("new video track: %w", err)
	}

	audioSender, err := s.pc.AddTrack(audioTrack)
	if err != nil {
		return nil, fmt.Errorf("add audio track: %w", err)
	}
	videoSender, err := s.pc.AddTrack(videoTrack)
	if err != nil {
		return nil, fmt.Errorf("add video track: %w", err)
	}
	// drain RTCP so interceptors (NACK/PLI generation) keep working.
	go drainRTCP(audioSender)
	go drainRTCP(videoSender)

	if _, err := s.pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return nil, fmt.Errorf("add uplink transceiver: %w", err)
	}

	s.pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if remote.Kind() == webrtc.RTPCodecTypeAudio {
			go s.handleUplink(remote)
		}
	})

	s.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c != nil && onCandidate != nil {
			onCandidate(c.ToJSON())
		}
	})

	s.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.log.Log(logger.Debug, "session %s: peer connection state %s", s.id, state)
		if onStateChange != nil {
			onStateChange(state)
		}
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
			s.Close()
		}
	})

	if err := s.pc.SetRemoteDescription(offer); err != nil {
		return nil, fmt.Errorf("set remote description: %w", err)
	}

	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("create answer: %w", err)
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}

	go s.pumpAudio(audioTrack)
	go s.pumpVideo(videoTrack)

	return &answer, nil
}

// AddICECandidate trickles one remote ICE candidate in (§4.10).
func (s *Session) AddICECandidate(c webrtc.ICECandidateInit) error {
	return s.pc.AddICECandidate(c)
}

// RequestPTT answers an explicit ptt_request message (§4.9, §4.10): it
// attempts to acquire the uplink ahead of any RTP arriving on the
// recvonly transceiver, so the caller can report held_by_me/held_by_other
// back to the browser immediately instead of waiting for OnTrack.
func (s *Session) RequestPTT() (ptt.Result, ptt.State) {
	return s.arbiter.Acquire(s.id)
}

// ReleasePTT answers an explicit ptt_release message (§4.9, §4.10): it
// voluntarily gives up a held uplink without closing the session. If an
// uplink RTP loop is active, cancelling it lets handleUplink's own
// deferred cleanup release the arbiter; otherwise the arbiter is
// released directly.
func (s *Session) ReleasePTT() {
	s.mu.Lock()
	cancel := s.pttCancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		return
	}
	s.arbiter.Release(s.id)
}

func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func (s *Session) pumpAudio(track *webrtc.TrackLocalStaticSample) {
	s.mu.Lock()
	sub := s.audioSub
	s.mu.Unlock()
	if sub == nil {
		return
	}

	for {
		frame, ok := sub.Next()
		if !ok {
			return
		}
		sample := media.Sample{Data: frame.Payload, Duration: 20 * time.Millisecond}
		if err := track.WriteSample(sample); err != nil {
			s.log.Log(logger.Warn, "session %s: write audio sample: %v", s.id, err)
			return
		}
	}
}

func (s *Session) pumpVideo(track *webrtc.TrackLocalStaticSample) {
	s.mu.Lock()
	sub := s.videoSub
	s.mu.Unlock()
	if sub == nil {
		return
	}

	for {
		au, ok := sub.Next()
		if !ok {
			return
		}
		sample := media.Sample{Data: au.Payload, Duration: fanout.VideoSampleDuration}
		if err := track.WriteSample(sample); err != nil {
			s.log.Log(logger.Warn, "session %s: write video sample: %v", s.id, err)
			return
		}
	}
}

// handleUplink arbitrates push-to-talk and, while granted, drains the
// remote audio track through the reverse transcoder into the doorbell
// upload (§4.9, §4.3). A losing Acquire silently discards the track's
// RTP so the browser is never blocked on an unheld uplink.
func (s *Session) handleUplink(remote *webrtc.TrackRemote) {
	result, state := s.arbiter.Acquire(s.id)
	if result != ptt.Granted {
		s.log.Log(logger.Info, "session %s: uplink denied, held by %s", s.id, state.Owner)
		discardTrack(remote)
		return
	}
	s.log.Log(logger.Info, "session %s: uplink granted", s.id)

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.pttCancel = cancel
	s.mu.Unlock()

	defer func() {
		s.arbiter.Release(s.id)
		s.mu.Lock()
		s.pttCancel = nil
		s.mu.Unlock()
	}()

	rev, err := audiopipeline.NewReverse(s.log)
	if err != nil {
		s.log.Log(logger.Error, "session %s: reverse transcoder: %v", s.id, err)
		return
	}

	pr, pw := io.Pipe()
	uploadErr := make(chan error, 1)
	go func() {
		uploadErr <- s.doorbell.OpenAudioTransmit(ctx, pr)
	}()

	pacer := audiopipeline.NewPacer()
	for {
		select {
		case <-ctx.Done():
			pw.CloseWithError(ctx.Err()) //nolint:errcheck
			return
		case err := <-uploadErr:
			if err != nil {
				s.log.Log(logger.Warn, "session %s: audio-transmit upload ended: %v", s.id, err)
			}
			return
		default:
		}

		pkt, _, err := remote.ReadRTP()
		if err != nil {
			pw.CloseWithError(err) //nolint:errcheck
			return
		}

		chunk := rev.Process(pkt.Payload)
		if len(chunk) == 0 {
			continue
		}
		pacer.Wait()
		if _, err := pw.Write(chunk); err != nil {
			return
		}
	}
}

func discardTrack(remote *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := remote.Read(buf); err != nil {
			return
		}
	}
}

// Close tears the session down: releases both fan-out subscriptions,
// releases any held push-to-talk uplink, and closes the peer connection.
// Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	audioSub, videoSub, pttCancel := s.audioSub, s.videoSub, s.pttCancel
	s.mu.Unlock()

	if audioSub != nil {
		audioSub.Close()
	}
	if videoSub != nil {
		videoSub.Close()
	}
	if pttCancel != nil {
		pttCancel()
	}
	s.arbiter.Release(s.id)

	return s.pc.Close()
}
