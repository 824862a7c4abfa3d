package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shashankpritam/PitchCompare/audio"
	"github.com/shashankpritam/PitchCompare/config"
	"github.com/shashankpritam/PitchCompare/pipeline"
	"github.com/shashankpritam/PitchCompare/pitch"
	"github.com/shashankpritam/PitchCompare/recognizer"
)

// app carries state shared by every command.
type app struct {
	v   *viper.Viper
	cfg *config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "pitchcompare [flags] <audio-a> <audio-b>",
		Short: "Compare the prosody of two spoken recordings",
		Long: `Compare the prosody of two recordings of speech.

Both files are normalized to mono 16kHz with ffmpeg, transcribed with word
timings and pitch-tracked. The average pitch difference (Hz) and average
word duration difference (seconds) are printed to stdout.

Every flag can also be set in pitchcompare.yaml or through PITCHCOMPARE_*
environment variables.`,
		Args:              cobra.ExactArgs(2),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE:              a.runCompare,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Config file (default ./pitchcompare.yaml)")
	flags.String("model", "", "Path to the recognition model directory")
	flags.String("ffmpeg", "ffmpeg", "Path to the ffmpeg executable")
	flags.String("work-dir", ".", "Directory receiving normalized files")
	flags.Bool("keep-normalized", true, "Keep normalized files after the run")
	flags.String("report", "", "Write a JSON or YAML report to this path")
	flags.Int("workers", 2, "Concurrent comparisons in watch mode")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")

	for key, flag := range map[string]string{
		"model":           "model",
		"ffmpeg":          "ffmpeg",
		"work_dir":        "work-dir",
		"keep_normalized": "keep-normalized",
		"report":          "report",
		"workers":         "workers",
		"log_level":       "log-level",
	} {
		if err := a.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	root.AddCommand(a.newWatchCmd(), a.newPlayCmd())
	return root
}

// setup resolves configuration and installs the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	file, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to read 'config' flag: %w", err)
	}

	cfg, err := config.Load(a.v, file)
	if err != nil {
		return err
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	a.cfg = cfg
	return nil
}

func (a *app) runCompare(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, closeModel, err := a.newPipeline()
	if err != nil {
		return err
	}
	defer closeModel()

	report, err := p.Compare(ctx, args[0], args[1])
	if err != nil {
		return err
	}

	res := report.Result()
	fmt.Fprintf(cmd.OutOrStdout(), "Average pitch difference: %v\n", res.AvgPitchDifference)
	fmt.Fprintf(cmd.OutOrStdout(), "Average word duration difference: %v\n", res.AvgDurationDifference)

	if a.cfg.Report != "" {
		if err := pipeline.WriteReport(a.cfg.Report, report); err != nil {
			return err
		}
		slog.Info("Wrote report", "path", a.cfg.Report)
	}
	return nil
}

// newPipeline loads the recognition model and builds a pipeline around it.
// The returned func releases the model.
func (a *app) newPipeline() (*pipeline.Pipeline, func(), error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, nil, err
	}

	model, err := recognizer.Load(a.cfg.Model, a.cfg.VoskLogLevel)
	if err != nil {
		return nil, nil, err
	}
	closeModel := func() {
		if err := model.Close(); err != nil {
			slog.Error("Failed to release model", "error", err)
		}
	}

	p, err := pipeline.New(pipelineConfig(a.cfg), model, audio.NewNormalizer(a.cfg.FFmpeg))
	if err != nil {
		closeModel()
		return nil, nil, err
	}
	return p, closeModel, nil
}

func pipelineConfig(cfg *config.Config) pipeline.Config {
	return pipeline.Config{
		WorkDir:        cfg.WorkDir,
		KeepNormalized: cfg.KeepNormalized,
		ChunkBytes:     cfg.ChunkBytes,
		SampleRate:     cfg.SampleRate,
		Pitch: pitch.Config{
			SampleRate: audio.SampleRate,
			FFTSize:    cfg.Pitch.FFTSize,
			HopSize:    cfg.Pitch.HopSize,
			FMin:       cfg.Pitch.FMin,
			FMax:       cfg.Pitch.FMax,
			Threshold:  cfg.Pitch.Threshold,
		},
		Workers:   cfg.Workers,
		QueueSize: cfg.QueueSize,
	}
}
