package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/youpy/go-wav"
)

func writeWAV(t *testing.T, path string, frames [][]int, numChannels uint16, rate uint32) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	samples := make([]wav.Sample, len(frames))
	for i, fr := range frames {
		for c := 0; c < int(numChannels); c++ {
			samples[i].Values[c] = fr[c]
		}
	}
	w := wav.NewWriter(f, uint32(len(frames)), numChannels, rate, 16)
	require.NoError(t, w.WriteSamples(samples))
}

func TestInt16Bytes(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want int16
	}{
		{"zero", 0, 0},
		{"half", 0.5, 16384},
		{"negative half", -0.5, -16384},
		{"full scale clips", 1.0, 32767},
		{"over range clips", 1.5, 32767},
		{"negative full scale", -1.0, -32768},
		{"under range clips", -2, -32768},
		{"rounds", 1.6 / 32768, 2},
		{"nan", math.NaN(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Int16Bytes([]float64{tt.in})
			require.Len(t, b, 2)
			assert.Equal(t, tt.want, int16(binary.LittleEndian.Uint16(b)))
		})
	}
}

func TestInt16BytesLayout(t *testing.T) {
	b := Int16Bytes([]float64{1.0 / 32768, -1.0 / 32768})
	assert.Equal(t, []byte{0x01, 0x00, 0xff, 0xff}, b)
}

func TestLoadMono16k(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono.wav")
	frames := [][]int{{0}, {16384}, {-16384}, {32767}}
	writeWAV(t, path, frames, 1, SampleRate)

	w, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, SampleRate, w.SampleRate)
	require.Len(t, w.Samples, 4)
	assert.InDelta(t, 0.0, w.Samples[0], 1e-9)
	assert.InDelta(t, 0.5, w.Samples[1], 1e-9)
	assert.InDelta(t, -0.5, w.Samples[2], 1e-9)
	assert.InDelta(t, 32767.0/32768.0, w.Samples[3], 1e-9)
}

func TestLoadStereoDownmix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	writeWAV(t, path, [][]int{{16384, 0}, {-16384, -16384}}, 2, SampleRate)

	w, err := Load(path)
	require.NoError(t, err)
	require.Len(t, w.Samples, 2)
	assert.InDelta(t, 0.25, w.Samples[0], 1e-9)
	assert.InDelta(t, -0.5, w.Samples[1], 1e-9)
}

func TestLoadResamples(t *testing.T) {
	for _, n := range []int{800, 8000, 80000} {
		t.Run(fmt.Sprintf("%d frames", n), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "8k.wav")
			frames := make([][]int, n)
			for i := range frames {
				frames[i] = []int{int(8000 * math.Sin(2*math.Pi*200*float64(i)/8000))}
			}
			writeWAV(t, path, frames, 1, 8000)

			w, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, SampleRate, w.SampleRate)
			assert.InDelta(t, 2*n, len(w.Samples), 4, "the tail must survive resampling")
			for _, s := range w.Samples {
				assert.True(t, s >= -1 && s <= 1)
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.wav")
	writeWAV(t, empty, nil, 1, SampleRate)

	garbage := filepath.Join(dir, "garbage.wav")
	require.NoError(t, os.WriteFile(garbage, []byte("not a riff file at all"), 0o644))

	for name, path := range map[string]string{
		"missing": filepath.Join(dir, "missing.wav"),
		"empty":   empty,
		"garbage": garbage,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDecode), "got %v", err)
		})
	}
}

func TestWaveformDuration(t *testing.T) {
	w := &Waveform{Samples: make([]float64, 24000), SampleRate: SampleRate}
	assert.Equal(t, 1500*time.Millisecond, w.Duration())
	assert.Equal(t, time.Duration(0), (&Waveform{}).Duration())
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"360SP.wav", "preprocessed_360SP_20240102030405.wav"},
		{"/data/speaker one.mp3", "preprocessed_speaker one_20240102030405.wav"},
		{"take.2.final.m4a", "preprocessed_take_20240102030405.wav"},
		{"noext", "preprocessed_noext_20240102030405.wav"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OutputName(tt.src, "20240102030405"))
	}
}

func TestRunTimestamp(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "20240102030405", RunTimestamp(ts))
}

func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake ffmpeg needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\nin=\"$4\"\nfor a in \"$@\"; do out=\"$a\"; done\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestNormalize(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.wav")
	writeWAV(t, src, [][]int{{1}, {2}}, 1, SampleRate)
	dst := filepath.Join(dir, "out.wav")

	n := NewNormalizer(fakeFFmpeg(t, `cp "$in" "$out"`))
	require.NoError(t, n.Normalize(context.Background(), src, dst))

	w, err := Load(dst)
	require.NoError(t, err)
	assert.Len(t, w.Samples, 2)
}

func TestNormalizeFailures(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.wav")
	writeWAV(t, src, [][]int{{1}}, 1, SampleRate)

	tests := []struct {
		name string
		body string
		src  string
	}{
		{"process fails", "exit 1", src},
		{"no output", "true", src},
		{"empty output", `: > "$out"`, src},
		{"missing input", `cp "$in" "$out"`, filepath.Join(dir, "missing.wav")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNormalizer(fakeFFmpeg(t, tt.body))
			dst := filepath.Join(t.TempDir(), "out.wav")
			err := n.Normalize(context.Background(), tt.src, dst)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrTranscode), "got %v", err)
		})
	}
}

func TestNewNormalizerDefault(t *testing.T) {
	assert.Equal(t, "ffmpeg", NewNormalizer("").FFmpegPath)
}

func TestInterleave(t *testing.T) {
	frames := []wav.Sample{
		{Values: [2]int{1, -1}},
		{Values: [2]int{2, -2}},
		{Values: [2]int{3, -3}},
	}

	out := make([]int16, 4)
	n := Interleave(out, frames, 2, 16)
	assert.Equal(t, 4, n)
	assert.Equal(t, []int16{1, -1, 2, -2}, out)

	out = make([]int16, 8)
	n = Interleave(out, frames, 1, 16)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int16{1, 2, 3}, out[:n])

	wide := []wav.Sample{{Values: [2]int{0x7fff00, -0x800000}}}
	n = Interleave(out, wide, 2, 24)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int16{0x7fff, -0x8000}, out[:n])
}
