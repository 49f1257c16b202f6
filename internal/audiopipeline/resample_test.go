package audiopipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResamplerUpsamplePreservesDCLevel(t *testing.T) {
	r := newResampler(8000, 48000)

	in := make([]float64, 2000)
	for i := range in {
		in[i] = 0.5
	}

	out := r.process(in)
	require.NotEmpty(t, out)

	// skip the filter's startup transient; the settled region should sit
	// close to the constant input level.
	settled := out[len(out)/2:]
	for _, v := range settled {
		require.InDelta(t, 0.5, v, 0.05)
	}
}

func TestResamplerOutputLengthTracksRatio(t *testing.T) {
	r := newResampler(8000, 48000)

	in := make([]float64, 8000) // 1 second at 8kHz
	out := r.process(in)

	// 1 second at 8kHz resamples to 1 second at 48kHz minus the half
	// filter (128 input samples = 768 output samples) held back as
	// lookahead for the next block.
	require.InDelta(t, 48000-6*sincFilterLength/2, len(out), 400)
}

func TestResamplerDownsampleAttenuatesAboveNewNyquist(t *testing.T) {
	r := newResampler(48000, 8000)

	// a tone well above the downsampled Nyquist (4kHz) should be
	// strongly attenuated by the scaled-down cutoff, not aliased in at
	// full strength.
	const freq = 18000.0
	n := 48000
	in := make([]float64, n)
	for i := range in {
		in[i] = math.Sin(2 * math.Pi * freq * float64(i) / 48000)
	}

	out := r.process(in)
	require.NotEmpty(t, out)

	var peak float64
	for _, v := range out[len(out)/4:] {
		if math.Abs(v) > peak {
			peak = math.Abs(v)
		}
	}
	require.Less(t, peak, 0.5)
}
