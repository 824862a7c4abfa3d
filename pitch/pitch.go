// Package pitch extracts pitch contours from mono PCM audio.
//
// Tracking follows the usual STFT peak-picking approach: each frame's
// magnitude spectrum is thresholded against its own maximum, local maxima
// inside [FMin, FMax) become pitch candidates, and the bin position is refined
// with parabolic interpolation. The result is a pair of bins x frames
// matrices (pitch in Hz, magnitude) that Salient reduces to a 1D sequence.
//
// Default parameters:
//
//	SampleRate: 16000
//	FFTSize:     2048
//	HopSize:      512
//	FMin:         150
//	FMax:        4000
//	Threshold:    0.1
package pitch

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"slices"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"
)

// tiny is the smallest normal float64, used to keep the parabolic shift
// finite on flat spectra.
const tiny = 2.2250738585072014e-308

// ErrPitchExtraction is returned for waveforms the tracker cannot process.
var ErrPitchExtraction = errors.New("pitch extraction failed")

// Sequence is a list of pitch estimates in Hz.
type Sequence []float64

// Config controls the tracker.
type Config struct {
	SampleRate int     // audio sample rate in Hz (default 16000)
	FFTSize    int     // FFT and window length in samples (default 2048)
	HopSize    int     // hop between frames in samples (default 512)
	FMin       float64 // lowest candidate frequency (default 150)
	FMax       float64 // candidate frequencies must be below this (default 4000)
	Threshold  float64 // fraction of the frame maximum a peak must exceed (default 0.1)
}

// DefaultConfig returns the standard tracker settings for 16kHz speech.
func DefaultConfig() Config {
	return Config{
		SampleRate: 16000,
		FFTSize:    2048,
		HopSize:    512,
		FMin:       150,
		FMax:       4000,
		Threshold:  0.1,
	}
}

// Extractor computes pitch matrices and sequences. It is safe for concurrent
// use.
type Extractor struct {
	cfg    Config
	window []float64
}

// New creates an Extractor. Zero fields in cfg take their defaults.
func New(cfg Config) *Extractor {
	def := DefaultConfig()
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.FFTSize <= 0 {
		cfg.FFTSize = def.FFTSize
	}
	if cfg.HopSize <= 0 {
		cfg.HopSize = cfg.FFTSize / 4
	}
	if cfg.FMax <= 0 {
		cfg.FMax = def.FMax
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	cfg.FMin = math.Max(cfg.FMin, 0)
	cfg.FMax = math.Min(cfg.FMax, float64(cfg.SampleRate)/2)

	return &Extractor{cfg: cfg, window: hannWindow(cfg.FFTSize)}
}

// Extract tracks samples and keeps the salient pitches.
func (e *Extractor) Extract(samples []float64) (Sequence, error) {
	for i, s := range samples {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, fmt.Errorf("%w: sample %d is not finite", ErrPitchExtraction, i)
		}
	}
	if len(samples) == 0 {
		return nil, nil
	}
	pitches, mags := e.Track(samples)
	return Salient(pitches, mags), nil
}

// Track returns the pitch (Hz) and magnitude matrices, both shaped
// bins x frames with bins = FFTSize/2+1. Frames are centred on multiples of
// HopSize; the signal is zero padded by FFTSize/2 on both sides.
func (e *Extractor) Track(samples []float64) (pitches, mags *mat.Dense) {
	cfg := e.cfg
	nfft := cfg.FFTSize
	pad := nfft / 2
	bins := nfft/2 + 1

	padded := make([]float64, len(samples)+2*pad)
	copy(padded[pad:], samples)
	frames := 1 + (len(padded)-nfft)/cfg.HopSize

	pitches = mat.NewDense(bins, frames, nil)
	mags = mat.NewDense(bins, frames, nil)

	fft := fourier.NewFFT(nfft)
	frame := make([]float64, nfft)
	coeffs := make([]complex128, bins)
	spec := make([]float64, bins)
	peaks := make([]float64, bins)
	binHz := float64(cfg.SampleRate) / float64(nfft)

	for t := 0; t < frames; t++ {
		start := t * cfg.HopSize
		for i := range frame {
			frame[i] = padded[start+i] * e.window[i]
		}
		coeffs = fft.Coefficients(coeffs, frame)

		peak := 0.0
		for k, c := range coeffs {
			spec[k] = cmplx.Abs(c)
			peak = math.Max(peak, spec[k])
		}
		ref := cfg.Threshold * peak
		for k, s := range spec {
			if s > ref {
				peaks[k] = s
			} else {
				peaks[k] = 0
			}
		}

		for k := 0; k < bins; k++ {
			f := float64(k) * binHz
			if f < cfg.FMin || f >= cfg.FMax || !isLocalMax(peaks, k) {
				continue
			}
			var avg, shift float64
			if k > 0 && k < bins-1 {
				avg = 0.5 * (spec[k+1] - spec[k-1])
				curv := 2*spec[k] - spec[k+1] - spec[k-1]
				if math.Abs(curv) < tiny {
					curv++
				}
				shift = avg / curv
			}
			pitches.Set(k, t, (float64(k)+shift)*binHz)
			mags.Set(k, t, spec[k]+0.5*avg*shift)
		}
	}
	return pitches, mags
}

// Salient keeps the pitches whose magnitude is strictly above the median of
// all magnitudes, in row-major order (bin first, then frame). Empty matrices
// or NaN magnitudes yield an empty sequence.
func Salient(pitches, mags *mat.Dense) Sequence {
	if pitches == nil || mags == nil {
		return nil
	}
	rows, cols := mags.Dims()
	if pr, pc := pitches.Dims(); pr != rows || pc != cols {
		return nil
	}

	all := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		all = append(all, mags.RawRowView(i)...)
	}
	med := median(all)
	if math.IsNaN(med) {
		return nil
	}

	var seq Sequence
	for i := 0; i < rows; i++ {
		for j, m := range mags.RawRowView(i) {
			if m > med {
				seq = append(seq, pitches.At(i, j))
			}
		}
	}
	return seq
}

// median returns the middle value, or the mean of the two middle values for
// even lengths, NaN when empty or when any value is NaN.
func median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := slices.Clone(values)
	for _, v := range sorted {
		if math.IsNaN(v) {
			return math.NaN()
		}
	}
	slices.Sort(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// isLocalMax reports x[k] > x[k-1] && x[k] >= x[k+1], treating the edges as
// repeated values so the first bin is never a maximum.
func isLocalMax(x []float64, k int) bool {
	left := x[max(k-1, 0)]
	right := x[min(k+1, len(x)-1)]
	return x[k] > left && x[k] >= right
}

// hannWindow returns a periodic Hann window of length n.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}
