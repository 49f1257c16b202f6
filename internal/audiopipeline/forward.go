// Package audiopipeline implements the bidirectional mu-law/PCM/Opus
// transcoding pipeline (C2, C3) described in spec.md §4.2-4.3.
package audiopipeline

import (
	"fmt"
	"time"

	"github.com/hraban/opus"

	"github.com/RJ/birdbox/internal/g711"
	"github.com/RJ/birdbox/internal/logger"
	"github.com/RJ/birdbox/internal/unit"
)

const (
	inputSampleRate  = 8000
	outputSampleRate = 48000

	// one 20ms mu-law chunk at 8kHz.
	muLawChunkSamples = 160
	// one 20ms PCM block at 48kHz, i.e. exactly one Opus frame.
	opusFrameSamples = 960
)

// Forward implements the doorbell-microphone -> browser path: mu-law
// bytes in, OpusFrames out (C2). It is not safe for concurrent use.
type Forward struct {
	log logger.Writer

	encoder *opus.Encoder
	resamp  *resampler

	pending []byte // mu-law bytes shorter than one 160-byte chunk
	accum   []float64
	seq     uint64
}

// NewForward allocates a Forward transcoder.
func NewForward(log logger.Writer) (*Forward, error) {
	enc, err := opus.NewEncoder(outputSampleRate, 1, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("opus encoder: %w", err)
	}

	return &Forward{
		log:    log,
		encoder: enc,
		resamp:  newResampler(inputSampleRate, outputSampleRate),
	}, nil
}

// Process consumes an arbitrarily-sized chunk of 8kHz mu-law bytes and
// returns the OpusFrames it completes. Tail bytes shorter than 160
// persist until the next call or Flush.
func (f *Forward) Process(chunk []byte) ([]*unit.OpusFrame, error) {
	f.pending = append(f.pending, chunk...)

	var frames []*unit.OpusFrame

	for len(f.pending) >= muLawChunkSamples {
		block := f.pending[:muLawChunkSamples]
		f.pending = f.pending[muLawChunkSamples:]

		floatSamples := make([]float64, muLawChunkSamples)
		for i, b := range block {
			floatSamples[i] = float64(g711.Decode(b)) / 32768.0
		}

		f.accum = append(f.accum, f.resamp.process(floatSamples)...)

		for len(f.accum) >= opusFrameSamples {
			block48 := f.accum[:opusFrameSamples]
			f.accum = f.accum[opusFrameSamples:]

			frame, err := f.encodeOpus(block48)
			if err != nil {
				// §4.2 failure semantics: drop the offending frame, keep going.
				f.log.Log(logger.Warn, "opus encode failed, dropping frame: %v", err)
				continue
			}
			frames = append(frames, frame)
		}
	}

	return frames, nil
}

// Flush forces out a final OpusFrame if at least one whole 960-sample
// block is buffered; shorter tails, and mu-law bytes shorter than one
// 160-byte chunk, are discarded (§4.2, §9).
func (f *Forward) Flush() (*unit.OpusFrame, error) {
	f.pending = nil

	if len(f.accum) < opusFrameSamples {
		f.accum = nil
		return nil, nil
	}

	block := f.accum[:opusFrameSamples]
	f.accum = f.accum[opusFrameSamples:]
	f.accum = nil

	return f.encodeOpus(block)
}

func (f *Forward) encodeOpus(pcm48 []float64) (*unit.OpusFrame, error) {
	samples := make([]float32, len(pcm48))
	for i, v := range pcm48 {
		samples[i] = float32(v)
	}

	payload, err := f.encoder.EncodeFloat32(samples)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(payload))
	copy(out, payload)

	frame := &unit.OpusFrame{
		Payload:  out,
		Sequence: f.seq,
		Arrived:  time.Now(),
	}
	f.seq++
	return frame, nil
}
