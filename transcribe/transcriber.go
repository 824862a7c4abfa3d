package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

const (
	// DefaultChunkBytes is the number of BYTES handed to the decoder per step,
	// i.e. 1000 int16 samples.
	DefaultChunkBytes = 2000

	DefaultSampleRate = 16000
)

// ErrTranscription is returned when the model or decoder fails.
var ErrTranscription = errors.New("transcription failed")

// Decoder is a stateful streaming recognizer. It is not safe for concurrent
// use; create one per audio stream.
type Decoder interface {
	// AcceptWaveform feeds a chunk of little-endian int16 PCM and reports
	// whether an utterance was finalized.
	AcceptWaveform(chunk []byte) (bool, error)

	// Result returns the finalized utterance after AcceptWaveform returned true.
	Result() (RecognitionResult, error)

	// FinalResult flushes the stream and returns whatever remains.
	FinalResult() (RecognitionResult, error)

	Close() error
}

// Model is a loaded, read-only recognition model that can be shared across
// goroutines. Each stream gets its own Decoder.
type Model interface {
	NewDecoder(sampleRate float64) (Decoder, error)
	Close() error
}

// Config controls how audio is fed to the decoder.
type Config struct {
	// ChunkBytes is the chunk size in bytes. Must be even so chunks never
	// split a sample.
	ChunkBytes int

	// SampleRate of the PCM handed to Transcribe
	SampleRate int
}

// Transcriber turns fixed-point PCM into a Transcript using a shared Model.
type Transcriber struct {
	model  Model
	config Config
}

// New creates a Transcriber.
func New(model Model, cfg Config) (*Transcriber, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: no model", ErrTranscription)
	}
	if cfg.ChunkBytes == 0 {
		cfg.ChunkBytes = DefaultChunkBytes
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.ChunkBytes < 0 || cfg.ChunkBytes%2 != 0 {
		return nil, fmt.Errorf("chunk size must be a positive even byte count, got %d", cfg.ChunkBytes)
	}
	return &Transcriber{model: model, config: cfg}, nil
}

// Transcribe runs pcm through a fresh decoder.
func (t *Transcriber) Transcribe(ctx context.Context, pcm []byte) (Transcript, error) {
	dec, err := t.model.NewDecoder(float64(t.config.SampleRate))
	if err != nil {
		return nil, fmt.Errorf("%w: create decoder: %w", ErrTranscription, err)
	}
	defer func() {
		if err := dec.Close(); err != nil {
			slog.Warn("Failed to release decoder", "error", err)
		}
	}()

	return Stream(ctx, dec, pcm, t.config.ChunkBytes)
}

// Stream feeds pcm to dec in chunkBytes strides. A result is appended every
// time the decoder finalizes an utterance, and the final flush is always
// appended, even when empty.
func Stream(ctx context.Context, dec Decoder, pcm []byte, chunkBytes int) (Transcript, error) {
	if chunkBytes <= 0 {
		return nil, fmt.Errorf("%w: invalid chunk size %d", ErrTranscription, chunkBytes)
	}

	var transcript Transcript
	for i := 0; i < len(pcm); i += chunkBytes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := min(i+chunkBytes, len(pcm))
		done, err := dec.AcceptWaveform(pcm[i:end])
		if err != nil {
			return nil, fmt.Errorf("%w: chunk at byte %d: %w", ErrTranscription, i, err)
		}
		if !done {
			continue
		}

		res, err := dec.Result()
		if err != nil {
			return nil, fmt.Errorf("%w: result at byte %d: %w", ErrTranscription, i, err)
		}
		transcript = append(transcript, res)
	}

	final, err := dec.FinalResult()
	if err != nil {
		return nil, fmt.Errorf("%w: final result: %w", ErrTranscription, err)
	}
	transcript = append(transcript, final)

	slog.Debug("Transcription finished",
		"bytes", len(pcm),
		"results", len(transcript),
		"words", transcript.WordCount())

	return transcript, nil
}
