package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Start runs the worker pool and watches inbox for new manifests until ctx
// is cancelled. Jobs run on a separate context: cancelling ctx only stops
// intake, and Stop cancels whatever is still running at its deadline.
func (p *Pipeline) Start(ctx context.Context, inbox string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	p.watcher = watcher

	if err := p.watcher.Add(inbox); err != nil {
		p.watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", inbox, err)
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancelJobs = cancel

	for i := 0; i < p.config.Workers; i++ {
		p.workers.Add(1)
		go p.worker(jobCtx)
	}

	slog.Info("Watching for manifests",
		"path", inbox,
		"workers", p.config.Workers)

	p.watchFiles(ctx)
	return nil
}

// Stop closes the job queue and waits for queued and in-flight jobs to
// finish. When ctx expires first, the remaining jobs are cancelled.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.queue) })
	if p.cancelJobs != nil {
		defer p.cancelJobs()
	}

	done := make(chan struct{})
	go func() {
		p.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out")
	}

	if p.watcher != nil {
		if err := p.watcher.Close(); err != nil {
			return fmt.Errorf("failed to close file watcher: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) watchFiles(ctx context.Context) {
	defer p.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if err := p.handleFSEvent(event); err != nil {
				slog.Error("Failed to handle file system event",
					"error", err,
					"event", event)
			}

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("File watcher error", "error", err)
		}
	}
}

// Manifests must appear atomically: write to a .tmp name, then rename.
func (p *Pipeline) handleFSEvent(event fsnotify.Event) error {
	if !event.Has(fsnotify.Create) || strings.HasSuffix(event.Name, ".tmp") {
		return nil
	}

	base := filepath.Base(event.Name)
	if !isYAML(base) || strings.Contains(base, ".report.") {
		return nil
	}

	slog.Info("Found new manifest", "file", base)
	return p.enqueue(Job{ManifestPath: event.Name, Timestamp: time.Now()})
}

func (p *Pipeline) enqueue(job Job) error {
	select {
	case p.queue <- job:
		slog.Debug("Queued manifest", "file", filepath.Base(job.ManifestPath))
	default:
		return fmt.Errorf("job queue is full")
	}
	return nil
}
