package g711

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeZero(t *testing.T) {
	require.Equal(t, byte(0xFF), Encode(0))
}

func TestRoundTripIdempotent(t *testing.T) {
	// encode(decode(encode(x))) == encode(x) for representative 16-bit values.
	for x := -32768; x <= 32767; x += 97 {
		e1 := Encode(int16(x))
		d := Decode(e1)
		e2 := Encode(d)
		require.Equal(t, e1, e2, "x=%d", x)
	}
}

func TestDecodeEncodeQuantized(t *testing.T) {
	// decode(encode(x)) must equal the quantised value, i.e. a second
	// round trip through the codec is a fixed point.
	for _, x := range []int16{0, 1, -1, 100, -100, 1000, -1000, 30000, -30000, 32767, -32768} {
		e := Encode(x)
		d := Decode(e)
		require.Equal(t, d, Decode(Encode(d)))
	}
}

func TestSliceHelpers(t *testing.T) {
	pcm := []int16{0, 1000, -1000, 32767, -32768}
	ulaw := EncodeSlice(pcm)
	require.Len(t, ulaw, len(pcm))
	back := DecodeSlice(ulaw)
	require.Len(t, back, len(pcm))
}
