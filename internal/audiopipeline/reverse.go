package audiopipeline

import (
	"fmt"
	"time"

	"github.com/hraban/opus"

	"github.com/RJ/birdbox/internal/g711"
	"github.com/RJ/birdbox/internal/logger"
)

// Reverse implements the browser-microphone -> doorbell-uplink path
// (C3): Opus RTP payloads in, a continuously paced 8kHz mu-law byte
// stream out, for the duration of one push-to-talk session.
type Reverse struct {
	log logger.Writer

	decoder *opus.Decoder
	resamp  *resampler

	accum []float64 // 8kHz float samples awaiting mu-law conversion
}

// NewReverse allocates a Reverse transcoder.
func NewReverse(log logger.Writer) (*Reverse, error) {
	dec, err := opus.NewDecoder(outputSampleRate, 1)
	if err != nil {
		return nil, fmt.Errorf("opus decoder: %w", err)
	}

	return &Reverse{
		log:     log,
		decoder: dec,
		resamp:  newResampler(outputSampleRate, inputSampleRate),
	}, nil
}

// Process decodes one Opus packet and returns however many complete
// 8kHz mu-law bytes it produces. On decode failure it returns a 160-byte
// comfort-silence block instead, to preserve cadence (§4.3).
func (r *Reverse) Process(opusPacket []byte) []byte {
	pcm := make([]float32, opusFrameSamples)
	n, err := r.decoder.DecodeFloat32(opusPacket, pcm)
	if err != nil {
		r.log.Log(logger.Warn, "opus decode failed, inserting comfort silence: %v", err)
		return comfortSilence()
	}

	floatSamples := make([]float64, n)
	for i := 0; i < n; i++ {
		floatSamples[i] = float64(pcm[i])
	}

	r.accum = append(r.accum, r.resamp.process(floatSamples)...)

	var out []byte
	for len(r.accum) >= muLawChunkSamples {
		block := r.accum[:muLawChunkSamples]
		r.accum = r.accum[muLawChunkSamples:]

		chunk := make([]byte, muLawChunkSamples)
		for i, v := range block {
			clamped := v
			if clamped > 1 {
				clamped = 1
			} else if clamped < -1 {
				clamped = -1
			}
			chunk[i] = g711.Encode(int16(clamped * 32767))
		}
		out = append(out, chunk...)
	}

	return out
}

func comfortSilence() []byte {
	s := make([]byte, muLawChunkSamples)
	for i := range s {
		s[i] = g711.Silence
	}
	return s
}

// Pacer paces a byte stream at wall-clock so a downstream HTTP POST
// upload does not overrun the doorbell's receive buffer: 20ms of audio
// per 20ms wall-clock (§4.3).
type Pacer struct {
	frame time.Duration
	next  time.Time
}

// NewPacer allocates a Pacer for 20ms mu-law chunks.
func NewPacer() *Pacer {
	return &Pacer{frame: 20 * time.Millisecond}
}

// Wait blocks until it is time to emit the next chunk.
func (p *Pacer) Wait() {
	now := time.Now()
	if p.next.IsZero() {
		p.next = now.Add(p.frame)
		return
	}

	if d := p.next.Sub(now); d > 0 {
		time.Sleep(d)
	}
	p.next = p.next.Add(p.frame)

	// if we fell far behind (e.g. after a GC pause), resync instead of
	// bursting to catch up.
	if now.Sub(p.next) > p.frame {
		p.next = now.Add(p.frame)
	}
}
