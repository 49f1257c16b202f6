package audiopipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RJ/birdbox/internal/g711"
)

func newReverseForTest(t *testing.T) *Reverse {
	t.Helper()
	r, err := NewReverse(discardLogger{})
	require.NoError(t, err)
	return r
}

func TestReverseGarbagePacketYieldsComfortSilence(t *testing.T) {
	r := newReverseForTest(t)

	// TOC code 3 (multiple frames) with a frame count of 0: not a valid
	// Opus packet.
	out := r.Process([]byte{0x03, 0x00})
	require.Len(t, out, muLawChunkSamples)
	for _, b := range out {
		require.Equal(t, g711.Silence, b)
	}
}

func TestPacerDoesNotBlockOnFirstCall(t *testing.T) {
	p := NewPacer()

	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Millisecond):
		t.Fatal("first Wait should return immediately")
	}
}
