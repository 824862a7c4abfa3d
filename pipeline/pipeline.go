package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/shashankpritam/PitchCompare/audio"
	"github.com/shashankpritam/PitchCompare/pitch"
	"github.com/shashankpritam/PitchCompare/prosody"
	"github.com/shashankpritam/PitchCompare/transcribe"
)

// Configuration for the comparison pipeline
type Config struct {
	// Directory receiving normalized files
	WorkDir string

	// Keep normalized files after a run
	KeepNormalized bool

	// Transcription feed
	ChunkBytes int
	SampleRate int

	Pitch pitch.Config

	// Number of watch-mode workers
	Workers int

	// Capacity of the watch-mode job queue
	QueueSize int
}

// Normalizer produces a mono 16kHz WAV from any input file.
type Normalizer interface {
	Normalize(ctx context.Context, inputPath, outputPath string) error
}

// Pipeline runs comparisons, one at a time or from a watched inbox.
type Pipeline struct {
	config Config

	normalizer  Normalizer
	transcriber *transcribe.Transcriber
	pitch       *pitch.Extractor
	now         func() time.Time

	// Watch mode
	watcher    *fsnotify.Watcher
	queue      chan Job
	workers    sync.WaitGroup
	cancelJobs context.CancelFunc
	stopOnce   sync.Once
}

// New creates a Pipeline sharing model across every run.
func New(cfg Config, model transcribe.Model, normalizer Normalizer) (*Pipeline, error) {
	if cfg.WorkDir == "" {
		cfg.WorkDir = "."
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if normalizer == nil {
		return nil, fmt.Errorf("no normalizer configured")
	}

	tr, err := transcribe.New(model, transcribe.Config{
		ChunkBytes: cfg.ChunkBytes,
		SampleRate: cfg.SampleRate,
	})
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		config:      cfg,
		normalizer:  normalizer,
		transcriber: tr,
		pitch:       pitch.New(cfg.Pitch),
		now:         time.Now,
		queue:       make(chan Job, cfg.QueueSize),
	}, nil
}

// Compare analyzes two recordings and compares their prosody. Normalized
// files go to the configured work directory.
func (p *Pipeline) Compare(ctx context.Context, a, b string) (*Report, error) {
	return p.Run(ctx, Request{A: a, B: b, WorkDir: p.config.WorkDir})
}

// Run executes req. Both recordings are analyzed concurrently; the first
// failure cancels the other and aborts the run.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Report, error) {
	runID := uuid.New().String()
	started := p.now()
	timestamp := audio.RunTimestamp(started)
	logger := slog.With("runID", runID)

	if err := os.MkdirAll(req.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}

	outA := filepath.Join(req.WorkDir, audio.OutputName(req.A, timestamp))
	outB := filepath.Join(req.WorkDir, audio.OutputName(req.B, timestamp))
	shared := outA == outB && sameFile(req.A, req.B)
	if outA == outB && !shared {
		outB = strings.TrimSuffix(outB, ".wav") + "_2.wav"
	}

	logger.Info("Starting comparison",
		"a", req.A,
		"b", req.B,
		"timestamp", timestamp)

	var files [2]*FileAnalysis
	if shared {
		fa, err := p.Analyze(ctx, req.A, outA)
		if err != nil {
			p.cleanup(outA)
			return nil, err
		}
		files = [2]*FileAnalysis{fa, fa}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		for i, job := range [2][2]string{{req.A, outA}, {req.B, outB}} {
			g.Go(func() error {
				fa, err := p.Analyze(gctx, job[0], job[1])
				files[i] = fa
				return err
			})
		}
		if err := g.Wait(); err != nil {
			p.cleanup(outA, outB)
			return nil, err
		}
	}

	res := prosody.Compare(files[0].Transcript, files[1].Transcript, files[0].Pitch, files[1].Pitch)

	report := &Report{
		RunID:                 runID,
		GeneratedAt:           p.now(),
		Files:                 [2]FileSummary{summarize(files[0]), summarize(files[1])},
		AvgPitchDifference:    Metric(res.AvgPitchDifference),
		AvgDurationDifference: Metric(res.AvgDurationDifference),
		AlignedPitches:        prosody.AlignedLen(len(files[0].Pitch), len(files[1].Pitch)),
		AlignedWordDurations: prosody.AlignedLen(
			len(prosody.WordDurations(files[0].Transcript)),
			len(prosody.WordDurations(files[1].Transcript))),
	}

	if !p.config.KeepNormalized {
		p.cleanup(outA, outB)
	}

	logger.Info("Comparison finished",
		"avgPitchDifference", res.AvgPitchDifference,
		"avgDurationDifference", res.AvgDurationDifference,
		"elapsed", time.Since(started))

	return report, nil
}

// Analyze normalizes src into dst, then transcribes and pitch-tracks it
// concurrently.
func (p *Pipeline) Analyze(ctx context.Context, src, dst string) (*FileAnalysis, error) {
	if err := p.normalizer.Normalize(ctx, src, dst); err != nil {
		return nil, err
	}
	slog.Debug("Normalized audio", "source", src, "output", dst)

	wave, err := audio.Load(dst)
	if err != nil {
		return nil, err
	}

	fa := &FileAnalysis{
		Source:     src,
		Normalized: dst,
		Duration:   wave.Duration(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tr, err := p.transcriber.Transcribe(gctx, audio.Int16Bytes(wave.Samples))
		if err != nil {
			return fmt.Errorf("%s: %w", src, err)
		}
		fa.Transcript = tr
		return nil
	})
	g.Go(func() error {
		seq, err := p.pitch.Extract(wave.Samples)
		if err != nil {
			return fmt.Errorf("%s: %w", src, err)
		}
		fa.Pitch = seq
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slog.Info("Analyzed audio",
		"file", filepath.Base(src),
		"duration", fa.Duration,
		"results", len(fa.Transcript),
		"words", fa.Transcript.WordCount(),
		"pitches", len(fa.Pitch))

	return fa, nil
}

func (p *Pipeline) cleanup(paths ...string) {
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to remove normalized file", "error", err, "path", path)
		}
	}
}

func sameFile(a, b string) bool {
	ia, err := os.Stat(a)
	if err != nil {
		return false
	}
	ib, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ia, ib)
}
