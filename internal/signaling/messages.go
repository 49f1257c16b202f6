// Package signaling implements the gateway's WebSocket signaling
// contract (C10; spec.md §4.10): a tagged JSON envelope carrying SDP
// offer/answer, trickled ICE candidates, and push-to-talk state.
package signaling

import "github.com/pion/webrtc/v3"

// Message types, both directions.
const (
	TypeOffer      = "offer"
	TypeAnswer     = "answer"
	TypeICE        = "ice"
	TypePTTRequest = "ptt_request"
	TypePTTRelease = "ptt_release"
	TypePTTState   = "ptt_state"
)

// Envelope is the wire shape of every signaling message: Type
// discriminates which of the other fields is populated.
type Envelope struct {
	Type string `json:"type"`

	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
	PTT       string                   `json:"ptt,omitempty"`
}

// Push-to-talk states carried in a TypePTTState envelope (§4.9).
const (
	PTTFree        = "free"
	PTTHeldByMe    = "held_by_me"
	PTTHeldByOther = "held_by_other"
)

// answerEnvelope builds the outbound answer message.
func answerEnvelope(sdp string) Envelope {
	return Envelope{Type: TypeAnswer, SDP: sdp}
}

// iceEnvelope builds an ICE-candidate message, used both directions.
func iceEnvelope(c webrtc.ICECandidateInit) Envelope {
	return Envelope{Type: TypeICE, Candidate: &c}
}

// pttStateEnvelope builds an outbound push-to-talk state message.
func pttStateEnvelope(state string) Envelope {
	return Envelope{Type: TypePTTState, PTT: state}
}
