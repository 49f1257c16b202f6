package audiopipeline

import "math"

// resampler is a streaming sinc-interpolating sample-rate converter
// (§4.2/§4.3): filter length 256, Blackman-Harris window, 256x phase
// oversampling, cutoff 0.95 of Nyquist. It is stateful: Process may be
// called repeatedly with arbitrarily sized input blocks and emits
// however many output samples the accumulated history supports,
// buffering the remainder for the next call.
//
// No sinc/libsamplerate binding exists anywhere in the retrieval pack
// (see DESIGN.md); this is deliberately the one component built
// directly on the standard library rather than a third-party codec.
type resampler struct {
	ratio      float64 // input samples per output sample
	filterLen  int
	oversample int
	center     float64
	bank       [][]float64

	buf []float64
	pos float64
}

const (
	sincFilterLength = 256
	sincOversample   = 256
	sincCutoff       = 0.95
)

func newResampler(inRate, outRate int) *resampler {
	cutoff := sincCutoff
	if outRate < inRate {
		// scale the passband down to the new Nyquist to avoid aliasing.
		cutoff *= float64(outRate) / float64(inRate)
	}

	r := &resampler{
		ratio:      float64(inRate) / float64(outRate),
		filterLen:  sincFilterLength,
		oversample: sincOversample,
		center:     float64(sincFilterLength) / 2,
		bank:       buildFilterBank(sincFilterLength, sincOversample, cutoff),
	}

	// prime with half a filter width of silence so the first real
	// samples immediately have full filter support.
	r.buf = make([]float64, int(r.center))
	r.pos = r.center
	return r
}

// process consumes in, appends it to the internal history, and returns
// every output sample the (now larger) history supports. It never
// blocks and never discards unconsumed input.
func (r *resampler) process(in []float64) []float64 {
	r.buf = append(r.buf, in...)

	var out []float64
	for {
		i0 := int(r.pos)
		need := i0 + int(r.center) + 1
		if need > len(r.buf) {
			break
		}

		frac := r.pos - float64(i0)
		phase := int(frac*float64(r.oversample) + 0.5)
		if phase >= r.oversample {
			phase = r.oversample - 1
		}
		taps := r.bank[phase]

		start := i0 - int(r.center) + 1
		var sum float64
		for k := 0; k < r.filterLen; k++ {
			idx := start + k
			if idx >= 0 && idx < len(r.buf) {
				sum += r.buf[idx] * taps[k]
			}
		}
		out = append(out, sum)
		r.pos += r.ratio
	}

	// drop the consumed prefix, keeping just enough trailing history
	// for the next block's filter support.
	trim := int(r.pos) - int(r.center) - 1
	if trim > 0 {
		if trim > len(r.buf) {
			trim = len(r.buf)
		}
		r.buf = append([]float64(nil), r.buf[trim:]...)
		r.pos -= float64(trim)
	}

	return out
}

func buildFilterBank(filterLen, oversample int, cutoff float64) [][]float64 {
	bank := make([][]float64, oversample)
	center := float64(filterLen) / 2

	for p := 0; p < oversample; p++ {
		frac := float64(p) / float64(oversample)
		taps := make([]float64, filterLen)
		var sum float64

		for k := 0; k < filterLen; k++ {
			d := float64(k) - center - frac
			taps[k] = sinc(d*cutoff) * cutoff * blackmanHarris((d+center)/float64(filterLen))
			sum += taps[k]
		}

		if sum != 0 {
			for k := range taps {
				taps[k] /= sum
			}
		}
		bank[p] = taps
	}

	return bank
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// blackmanHarris is the 4-term Blackman-Harris window, u in [0,1].
func blackmanHarris(u float64) float64 {
	const a0, a1, a2, a3 = 0.35875, 0.48829, 0.14128, 0.01168
	return a0 - a1*math.Cos(2*math.Pi*u) + a2*math.Cos(4*math.Pi*u) - a3*math.Cos(6*math.Pi*u)
}
