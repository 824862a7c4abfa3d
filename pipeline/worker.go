package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

func (p *Pipeline) worker(ctx context.Context) {
	slog.Debug("Worker starting")
	defer func() {
		slog.Debug("Worker shutting down")
		p.workers.Done()
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("Worker context cancelled")
			return

		case job, ok := <-p.queue:
			if !ok {
				slog.Debug("Worker queue closed")
				return
			}

			if err := p.processJob(ctx, job); err != nil {
				slog.Error("Failed to process comparison job",
					"error", err,
					"manifest", job.ManifestPath)
			}
		}
	}
}

func (p *Pipeline) processJob(ctx context.Context, job Job) error {
	m, err := ReadManifest(job.ManifestPath)
	if err != nil {
		return err
	}

	slog.Info("Processing manifest",
		"manifest", filepath.Base(job.ManifestPath),
		"a", m.A,
		"b", m.B,
		"queuedFor", time.Since(job.Timestamp))

	if err := os.MkdirAll(p.config.WorkDir, 0o755); err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}
	workDir, err := os.MkdirTemp(p.config.WorkDir, "pitchcompare-*")
	if err != nil {
		return fmt.Errorf("failed to create job directory: %w", err)
	}
	if !p.config.KeepNormalized {
		defer os.RemoveAll(workDir)
	}

	report, err := p.Run(ctx, Request{A: m.A, B: m.B, WorkDir: workDir})
	if err != nil {
		return err
	}

	if err := WriteReport(m.Report, report); err != nil {
		return err
	}

	slog.Info("Wrote report",
		"manifest", filepath.Base(job.ManifestPath),
		"report", m.Report,
		"avgPitchDifference", float64(report.AvgPitchDifference),
		"avgDurationDifference", float64(report.AvgDurationDifference))

	return nil
}
