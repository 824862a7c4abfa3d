package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	SampleRate = 16000 // Rate every waveform is normalized to
	channels   = 1     // Mono audio

	// TimestampLayout formats the run timestamp shared by both outputs of a run.
	TimestampLayout = "20060102150405"
)

// ErrTranscode is returned when the external normalizer fails or produces
// nothing.
var ErrTranscode = errors.New("transcode failed")

// Normalizer converts arbitrary audio files into mono 16kHz WAV by shelling
// out to ffmpeg.
type Normalizer struct {
	// FFmpegPath is the ffmpeg executable, looked up in PATH when bare.
	FFmpegPath string
}

// NewNormalizer returns a Normalizer using the given ffmpeg executable.
func NewNormalizer(ffmpegPath string) *Normalizer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Normalizer{FFmpegPath: ffmpegPath}
}

// Normalize writes a mono, 16kHz version of inputPath to outputPath.
func (n *Normalizer) Normalize(ctx context.Context, inputPath, outputPath string) error {
	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTranscode, inputPath, err)
	}

	cmd := exec.CommandContext(ctx, n.FFmpegPath,
		"-nostdin",
		"-y", // Overwrite output file
		"-i", inputPath,
		"-ac", fmt.Sprintf("%d", channels),
		"-ar", fmt.Sprintf("%d", SampleRate),
		outputPath)

	slog.Debug("Executing ffmpeg command",
		"command", cmd.String())

	if output, err := cmd.CombinedOutput(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			slog.Debug("ffmpeg command failed",
				"output", lastLines(string(output), 5),
				"exitCode", exitErr.ExitCode())
		}
		return fmt.Errorf("%w: %s: %w", ErrTranscode, inputPath, err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return fmt.Errorf("%w: no output for %s: %w", ErrTranscode, inputPath, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: empty output for %s", ErrTranscode, inputPath)
	}
	return nil
}

// OutputName returns the normalized file name for src:
// preprocessed_<basename up to the first dot>_<timestamp>.wav
func OutputName(src, timestamp string) string {
	stem, _, _ := strings.Cut(filepath.Base(src), ".")
	return fmt.Sprintf("preprocessed_%s_%s.wav", stem, timestamp)
}

// RunTimestamp formats t the way normalized file names expect.
func RunTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
