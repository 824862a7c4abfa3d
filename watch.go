package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

// shutdownContext bounds how long in-flight jobs may run after a signal.
func shutdownContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), shutdownTimeout)
}

func (a *app) newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <inbox>",
		Short: "Compare recordings named by manifests dropped into a directory",
		Long: `Watch a directory for YAML manifests and compare the recordings they name.

A manifest looks like:

  a: takes/reference.wav
  b: takes/attempt.mp3
  report: attempt.report.yaml   # optional, defaults to <manifest>.report.json

Relative paths resolve against the manifest's directory. Write manifests
atomically (write a .tmp file, then rename it) so they are read whole.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p, closeModel, err := a.newPipeline()
			if err != nil {
				return err
			}
			defer closeModel()

			defer func() {
				sctx, cancel := shutdownContext()
				defer cancel()
				if err := p.Stop(sctx); err != nil {
					slog.Error("Failed to stop pipeline", "error", err)
				}
			}()

			if err := p.Start(ctx, args[0]); err != nil {
				return err
			}
			slog.Debug("Received shutdown signal")
			return nil
		},
	}
}
