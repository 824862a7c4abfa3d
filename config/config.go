package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/shashankpritam/PitchCompare/audio"
)

const (
	// EnvPrefix prefixes every environment override, e.g. PITCHCOMPARE_MODEL.
	EnvPrefix = "PITCHCOMPARE"

	// DefaultConfigName is looked up in the working directory when no config
	// file is given.
	DefaultConfigName = "pitchcompare"
)

type Pitch struct {
	FFTSize   int     `mapstructure:"fft_size"`
	HopSize   int     `mapstructure:"hop_size"`
	FMin      float64 `mapstructure:"fmin"`
	FMax      float64 `mapstructure:"fmax"`
	Threshold float64 `mapstructure:"threshold"`
}

type Config struct {
	// Path to the recognition model bundle
	Model        string `mapstructure:"model"`
	VoskLogLevel int    `mapstructure:"vosk_log_level"`

	// Normalization
	FFmpeg         string `mapstructure:"ffmpeg"`
	WorkDir        string `mapstructure:"work_dir"`
	KeepNormalized bool   `mapstructure:"keep_normalized"`

	// Transcription feed
	ChunkBytes int `mapstructure:"chunk_bytes"`
	SampleRate int `mapstructure:"sample_rate"`

	// Watch mode
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`

	Report   string `mapstructure:"report"`
	LogLevel string `mapstructure:"log_level"`

	Pitch Pitch `mapstructure:"pitch"`
}

// SetDefaults registers every key so environment overrides apply to it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("model", "")
	v.SetDefault("vosk_log_level", -1)
	v.SetDefault("ffmpeg", "ffmpeg")
	v.SetDefault("work_dir", ".")
	v.SetDefault("keep_normalized", true)
	v.SetDefault("chunk_bytes", 2000)
	v.SetDefault("sample_rate", 16000)
	v.SetDefault("workers", 2)
	v.SetDefault("queue_size", 100)
	v.SetDefault("report", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("pitch.fft_size", 2048)
	v.SetDefault("pitch.hop_size", 512)
	v.SetDefault("pitch.fmin", 150.0)
	v.SetDefault("pitch.fmax", 4000.0)
	v.SetDefault("pitch.threshold", 0.1)
}

// Load resolves configuration from, in priority order, values already bound
// on v (flags), PITCHCOMPARE_* environment variables, the config file and
// defaults. An empty file means ./pitchcompare.yaml if it exists.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings needed to analyze audio.
func (c *Config) Validate() error {
	var errs []error
	if c.Model == "" {
		errs = append(errs, fmt.Errorf("model path is required (--model or %s_MODEL)", EnvPrefix))
	}
	if c.ChunkBytes <= 0 || c.ChunkBytes%2 != 0 {
		errs = append(errs, fmt.Errorf("chunk_bytes must be a positive even number, got %d", c.ChunkBytes))
	}
	if c.SampleRate != audio.SampleRate {
		errs = append(errs, fmt.Errorf("sample_rate must be %d to match normalized audio, got %d", audio.SampleRate, c.SampleRate))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("queue_size must be positive, got %d", c.QueueSize))
	}
	if c.Pitch.FFTSize <= 0 || c.Pitch.HopSize <= 0 {
		errs = append(errs, fmt.Errorf("pitch fft_size and hop_size must be positive"))
	}
	if c.Pitch.FMin < 0 || c.Pitch.FMax <= c.Pitch.FMin {
		errs = append(errs, fmt.Errorf("pitch range [%g, %g) is empty", c.Pitch.FMin, c.Pitch.FMax))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParseLevel maps debug|info|warn|error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q", s)
	}
	return level, nil
}
