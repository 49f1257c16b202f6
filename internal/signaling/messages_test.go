package signaling

import (
	"encoding/json"
	"testing"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/require"
)

func TestAnswerEnvelopeRoundTrip(t *testing.T) {
	enc, err := json.Marshal(answerEnvelope("v=0\r\n..."))
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(enc, &env))
	require.Equal(t, TypeAnswer, env.Type)
	require.Equal(t, "v=0\r\n...", env.SDP)
	require.Nil(t, env.Candidate)
}

func TestICEEnvelopeRoundTrip(t *testing.T) {
	mid := "0"
	cand := webrtc.ICECandidateInit{Candidate: "candidate:1 1 UDP 2122252543 10.0.0.1 50000 typ host", SDPMid: &mid}

	enc, err := json.Marshal(iceEnvelope(cand))
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(enc, &env))
	require.Equal(t, TypeICE, env.Type)
	require.NotNil(t, env.Candidate)
	require.Equal(t, cand.Candidate, env.Candidate.Candidate)
}

func TestOfferEnvelopeParsesFromClientJSON(t *testing.T) {
	raw := `{"type":"offer","sdp":"v=0\r\n..."}`

	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	require.Equal(t, TypeOffer, env.Type)
	require.Equal(t, "v=0\r\n...", env.SDP)
}

func TestPTTStateEnvelopeValues(t *testing.T) {
	for _, state := range []string{PTTFree, PTTHeldByMe, PTTHeldByOther} {
		enc, err := json.Marshal(pttStateEnvelope(state))
		require.NoError(t, err)

		var env Envelope
		require.NoError(t, json.Unmarshal(enc, &env))
		require.Equal(t, TypePTTState, env.Type)
		require.Equal(t, state, env.PTT)
	}
}
