// Package player plays normalized recordings through the default output
// device.
package player

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/youpy/go-wav"

	"github.com/shashankpritam/PitchCompare/audio"
)

const framesPerBuffer = 1024

// Play streams a PCM WAV file to the default output device until the file
// ends or ctx is cancelled.
func Play(ctx context.Context, path string) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	reader := wav.NewReader(file)
	format, err := reader.Format()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", audio.ErrDecode, path, err)
	}
	if format.AudioFormat != wav.AudioFormatPCM {
		return fmt.Errorf("%w: %s: unsupported audio format %d", audio.ErrDecode, path, format.AudioFormat)
	}
	numChannels := int(format.NumChannels)

	finished := make(chan struct{})
	var once sync.Once

	stream, err := portaudio.OpenDefaultStream(
		0,
		numChannels,
		float64(format.SampleRate),
		framesPerBuffer,
		func(out []int16) {
			samples, err := reader.ReadSamples(uint32(len(out) / numChannels))
			if err != nil && err != io.EOF {
				slog.Error("Error reading from WAV file", "error", err)
			}

			n := audio.Interleave(out, samples, numChannels, format.BitsPerSample)
			clear(out[n:])

			if err != nil || len(samples) == 0 {
				once.Do(func() { close(finished) })
			}
		},
	)
	if err != nil {
		return fmt.Errorf("failed to open audio stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start audio stream: %w", err)
	}

	started := time.Now()
	slog.Info("Playing audio",
		"file", path,
		"channels", numChannels,
		"sampleRate", format.SampleRate)

	select {
	case <-finished:
	case <-ctx.Done():
		slog.Debug("Playback cancelled")
	}

	if err := stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop audio stream: %w", err)
	}

	slog.Debug("Playback finished", "elapsed", time.Since(started))
	return nil
}

// OutputDevices lists devices able to play audio.
func OutputDevices() ([]portaudio.DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}

	outputs := make([]portaudio.DeviceInfo, 0)
	for _, d := range devices {
		if d.MaxOutputChannels > 0 {
			outputs = append(outputs, *d)
		}
	}
	return outputs, nil
}
