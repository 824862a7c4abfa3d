package pitch

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func sine(freq float64, n, rate int, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return out
}

func TestHannWindow(t *testing.T) {
	w := hannWindow(2048)
	require.Len(t, w, 2048)
	assert.InDelta(t, 0.0, w[0], 1e-12)
	assert.InDelta(t, 1.0, w[1024], 1e-12)
	// Periodic window: symmetric around n/2, not around (n-1)/2.
	assert.InDelta(t, w[1], w[2047], 1e-12)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.0, median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, median([]float64{4, 1, 2, 3}))
	assert.True(t, math.IsNaN(median(nil)))
	assert.True(t, math.IsNaN(median([]float64{1, math.NaN(), 3})))
}

func TestIsLocalMax(t *testing.T) {
	x := []float64{5, 1, 3, 3, 0, 2}
	assert.False(t, isLocalMax(x, 0), "first bin is never a maximum")
	assert.False(t, isLocalMax(x, 1))
	assert.True(t, isLocalMax(x, 2), "ties on the right count")
	assert.False(t, isLocalMax(x, 3), "ties on the left do not")
	assert.True(t, isLocalMax(x, 5), "last bin compares with itself on the right")
}

func TestSalientRowMajorOrder(t *testing.T) {
	pitches := mat.NewDense(2, 3, []float64{
		100, 110, 120,
		200, 210, 220,
	})
	mags := mat.NewDense(2, 3, []float64{
		1, 9, 0,
		5, 0, 3,
	})
	// median of {0,0,1,3,5,9} = 2
	assert.Equal(t, Sequence{110, 200, 220}, Salient(pitches, mags))
}

func TestSalientEdgeCases(t *testing.T) {
	pitches := mat.NewDense(2, 2, []float64{100, 200, 300, 400})

	t.Run("equal magnitudes", func(t *testing.T) {
		mags := mat.NewDense(2, 2, []float64{1, 1, 1, 1})
		assert.Empty(t, Salient(pitches, mags))
	})
	t.Run("nan magnitude", func(t *testing.T) {
		mags := mat.NewDense(2, 2, []float64{1, math.NaN(), 5, 7})
		assert.Empty(t, Salient(pitches, mags))
	})
	t.Run("all infinite", func(t *testing.T) {
		inf := math.Inf(1)
		mags := mat.NewDense(2, 2, []float64{inf, inf, inf, inf})
		assert.Empty(t, Salient(pitches, mags))
	})
	t.Run("nil", func(t *testing.T) {
		assert.Empty(t, Salient(nil, nil))
	})
	t.Run("shape mismatch", func(t *testing.T) {
		assert.Empty(t, Salient(pitches, mat.NewDense(1, 2, []float64{1, 2})))
	})
}

func TestTrackShape(t *testing.T) {
	e := New(DefaultConfig())
	pitches, mags := e.Track(make([]float64, 16000))

	r, c := pitches.Dims()
	assert.Equal(t, 1025, r)
	// 16000 + 2048 padding, hop 512
	assert.Equal(t, 32, c)
	mr, mc := mags.Dims()
	assert.Equal(t, r, mr)
	assert.Equal(t, c, mc)
}

func TestExtractSine(t *testing.T) {
	e := New(DefaultConfig())
	seq, err := e.Extract(sine(440, 16000, 16000, 0.5))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(seq), 20)

	assert.InDelta(t, 440, median(seq), 10)
	for _, p := range seq {
		assert.GreaterOrEqual(t, p, 150.0)
		assert.Less(t, p, 4000.0)
	}
}

func TestExtractIgnoresOutOfBand(t *testing.T) {
	e := New(DefaultConfig())
	// 100 Hz is below FMin; its peak must never become a candidate.
	seq, err := e.Extract(sine(100, 16000, 16000, 0.5))
	require.NoError(t, err)
	for _, p := range seq {
		assert.GreaterOrEqual(t, p, 150.0)
	}
}

func TestExtractSilenceIsEmpty(t *testing.T) {
	e := New(DefaultConfig())
	seq, err := e.Extract(make([]float64, 8000))
	require.NoError(t, err)
	assert.Empty(t, seq)
}

func TestExtractEmptyInput(t *testing.T) {
	seq, err := New(DefaultConfig()).Extract(nil)
	require.NoError(t, err)
	assert.Empty(t, seq)
}

func TestExtractRejectsNonFinite(t *testing.T) {
	e := New(DefaultConfig())
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := e.Extract([]float64{0, bad, 0})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrPitchExtraction))
	}
}

func TestExtractDeterministic(t *testing.T) {
	e := New(DefaultConfig())
	in := sine(300, 12000, 16000, 0.3)
	a, err := e.Extract(in)
	require.NoError(t, err)
	b, err := e.Extract(in)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNewDefaults(t *testing.T) {
	cfg := New(Config{SampleRate: 8000}).cfg
	assert.Equal(t, 2048, cfg.FFTSize)
	assert.Equal(t, 512, cfg.HopSize)
	assert.Equal(t, 4000.0, cfg.FMax, "capped at Nyquist")
	assert.Equal(t, 0.1, cfg.Threshold)

	cfg = New(Config{SampleRate: 16000, FFTSize: 1024, FMax: 9000}).cfg
	assert.Equal(t, 256, cfg.HopSize)
	assert.Equal(t, 8000.0, cfg.FMax)
}
