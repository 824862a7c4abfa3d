package audio

import (
	"encoding/binary"
	"math"

	"github.com/youpy/go-wav"
)

// Int16Bytes converts float samples in [-1, 1] to little-endian signed 16-bit
// PCM. Each sample maps to round(s*32768), clipped to the int16 range.
func Int16Bytes(samples []float64) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(toInt16(s)))
	}
	return out
}

func toInt16(s float64) int16 {
	if math.IsNaN(s) {
		return 0
	}
	v := math.Round(s * 32768)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// Interleave writes WAV frames into out as interleaved 16-bit samples,
// reducing wider bit depths. It returns the number of values written.
func Interleave(out []int16, frames []wav.Sample, numChannels int, bitsPerSample uint16) int {
	shift := 0
	if bitsPerSample > 16 {
		shift = int(bitsPerSample) - 16
	}

	n := 0
	for _, f := range frames {
		if n+numChannels > len(out) {
			break
		}
		for c := 0; c < numChannels; c++ {
			out[n] = int16(f.Values[c] >> shift)
			n++
		}
	}
	return n
}
