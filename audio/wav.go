package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	resampling "github.com/tphakala/go-audio-resampling"
	"github.com/youpy/go-wav"
)

// readBatch is the number of frames pulled from the WAV reader per call.
const readBatch = 4096

// ErrDecode is returned when an audio file cannot be read or holds no audio.
var ErrDecode = errors.New("decode failed")

// Waveform is a mono float waveform in [-1, 1].
type Waveform struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the length of the waveform.
func (w *Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(w.Samples)) * time.Second / time.Duration(w.SampleRate)
}

// Load decodes a WAV file into a mono waveform at SampleRate. Stereo input is
// averaged and other sample rates are resampled.
func Load(path string) (*Waveform, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	defer file.Close()

	reader := wav.NewReader(file)

	format, err := reader.Format()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
	}
	if format.AudioFormat != wav.AudioFormatPCM {
		return nil, fmt.Errorf("%w: %s: unsupported audio format %d", ErrDecode, path, format.AudioFormat)
	}
	if format.NumChannels < 1 || format.NumChannels > 2 {
		return nil, fmt.Errorf("%w: %s: unsupported channel count %d", ErrDecode, path, format.NumChannels)
	}
	switch format.BitsPerSample {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %s: unsupported bit depth %d", ErrDecode, path, format.BitsPerSample)
	}

	scale := math.Pow(2, float64(format.BitsPerSample)-1)
	numChannels := int(format.NumChannels)

	var samples []float64
	for {
		batch, err := reader.ReadSamples(readBatch)
		for _, s := range batch {
			v := 0.0
			for c := 0; c < numChannels; c++ {
				v += float64(s.Values[c])
			}
			samples = append(samples, v/float64(numChannels)/scale)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
		}
		if len(batch) == 0 {
			break
		}
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: %s: no audio samples", ErrDecode, path)
	}

	if int(format.SampleRate) != SampleRate {
		samples, err = resample(samples, int(format.SampleRate), SampleRate)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
		}
		if len(samples) == 0 {
			return nil, fmt.Errorf("%w: %s: no audio after resampling", ErrDecode, path)
		}
	}

	return &Waveform{Samples: samples, SampleRate: SampleRate}, nil
}

func resample(samples []float64, from, to int) ([]float64, error) {
	if from <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", from)
	}
	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   channels,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}
	out, err := r.Process(samples)
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}
	tail, err := r.Flush()
	if err != nil {
		return nil, fmt.Errorf("resample flush error: %w", err)
	}
	out = append(out, tail...)

	// Flush pads with zeros, so trim back to the exact rate-converted length.
	want := int(math.Round(float64(len(samples)) * float64(to) / float64(from)))
	if len(out) > want {
		out = out[:want]
	}
	for i, s := range out {
		out[i] = math.Max(-1, math.Min(1, s))
	}
	return out, nil
}
