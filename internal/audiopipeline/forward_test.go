package audiopipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RJ/birdbox/internal/g711"
	"github.com/RJ/birdbox/internal/logger"
)

type discardLogger struct{}

func (discardLogger) Log(level logger.Level, format string, args ...interface{}) {}

func newForwardForTest(t *testing.T) (*Forward, error) {
	t.Helper()
	return NewForward(discardLogger{})
}

func TestForwardFrameCadence(t *testing.T) {
	f, err := newForwardForTest(t)
	require.NoError(t, err)

	// 50 chunks of 160 mu-law bytes = 1s of silence in, should yield
	// close to 50 OpusFrames out (startup priming may hold back <=1).
	total := 0
	for i := 0; i < 50; i++ {
		chunk := make([]byte, 160)
		for j := range chunk {
			chunk[j] = g711.Silence
		}
		frames, err := f.Process(chunk)
		require.NoError(t, err)
		total += len(frames)
	}

	require.GreaterOrEqual(t, total, 49)
	require.LessOrEqual(t, total, 51)
}

func TestForwardSequenceMonotonic(t *testing.T) {
	f, err := newForwardForTest(t)
	require.NoError(t, err)

	var seqs []uint64
	for i := 0; i < 10; i++ {
		chunk := make([]byte, 160)
		frames, err := f.Process(chunk)
		require.NoError(t, err)
		for _, fr := range frames {
			seqs = append(seqs, fr.Sequence)
		}
	}

	for i := 1; i < len(seqs); i++ {
		require.Equal(t, seqs[i-1]+1, seqs[i])
	}
}

func TestForwardPartialTailDiscardedOnFlush(t *testing.T) {
	f, err := newForwardForTest(t)
	require.NoError(t, err)

	// 163 bytes: one full 160-byte chunk plus a 3-byte remainder that
	// never reaches a full chunk and must be discarded, not framed.
	_, err = f.Process(make([]byte, 163))
	require.NoError(t, err)

	require.Len(t, f.pending, 3)

	frame, err := f.Flush()
	require.NoError(t, err)
	require.Nil(t, frame)
	require.Empty(t, f.pending)
}
