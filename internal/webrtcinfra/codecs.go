// Package webrtcinfra builds the shared UDP socket, media engine, and
// ICE policy reused by every WebRTC session (C7; spec.md §4.7).
package webrtcinfra

import "github.com/pion/webrtc/v3"

// videoCodec is the only video codec the gateway negotiates: H.264 is
// forwarded verbatim from the doorbell, never transcoded (Non-goals).
var videoCodec = webrtc.RTPCodecParameters{
	RTPCodecCapability: webrtc.RTPCodecCapability{
		MimeType:    webrtc.MimeTypeH264,
		ClockRate:   90000,
		SDPFmtpLine: "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f",
	},
	PayloadType: 102,
}

// audioCodec is the only audio codec the gateway negotiates downstream:
// Opus at 48kHz mono, the output of the forward transcoder (§4.2).
var audioCodec = webrtc.RTPCodecParameters{
	RTPCodecCapability: webrtc.RTPCodecCapability{
		MimeType:    webrtc.MimeTypeOpus,
		ClockRate:   48000,
		Channels:    1,
		SDPFmtpLine: "minptime=10;useinbandfec=1",
	},
	PayloadType: 111,
}
