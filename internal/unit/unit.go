// Package unit holds the immutable media units that flow through the
// fan-out engines: OpusFrame (audio) and H264AccessUnit (video).
package unit

import "time"

// OpusFrame is one self-contained 20ms/48kHz mono Opus packet (§3).
type OpusFrame struct {
	Payload   []byte
	Sequence  uint64
	Arrived   time.Time
}

// H264AccessUnit is one opaque encoded video access unit as demuxed from
// RTSP, forwarded verbatim (§3, §4.4). Payload is Annex-B (NALUs prefixed
// with start codes), the form WebRTC's H.264 packetizer expects.
// IsKeyframe marks an access unit containing an IDR NALU, so a fresh
// subscriber can wait for one before it starts decoding mid-GOP.
type H264AccessUnit struct {
	Payload    []byte
	Arrived    time.Time
	Sequence   uint64
	IsKeyframe bool
}
