package pipeline

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/shashankpritam/PitchCompare/pitch"
	"github.com/shashankpritam/PitchCompare/prosody"
	"github.com/shashankpritam/PitchCompare/transcribe"
)

// Metric is a comparison value that may be undefined. NaN encodes as JSON
// null.
type Metric float64

// MarshalJSON writes NaN and infinities as null.
func (m Metric) MarshalJSON() ([]byte, error) {
	f := float64(m)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

// UnmarshalJSON reads null back as NaN.
func (m *Metric) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*m = Metric(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*m = Metric(f)
	return nil
}

// Request is one comparison of two recordings.
type Request struct {
	A, B string

	// WorkDir receives the normalized files
	WorkDir string
}

// FileAnalysis is everything extracted from one recording.
type FileAnalysis struct {
	Source     string
	Normalized string
	Duration   time.Duration
	Transcript transcribe.Transcript
	Pitch      pitch.Sequence
}

// FileSummary is the persisted view of a FileAnalysis.
type FileSummary struct {
	Source          string  `json:"source" yaml:"source"`
	Normalized      string  `json:"normalized" yaml:"normalized"`
	DurationSeconds float64 `json:"duration_seconds" yaml:"duration_seconds"`
	Results         int     `json:"results" yaml:"results"`
	Words           int     `json:"words" yaml:"words"`
	WordDurations   int     `json:"word_durations" yaml:"word_durations"`
	Pitches         int     `json:"pitches" yaml:"pitches"`
}

func summarize(fa *FileAnalysis) FileSummary {
	return FileSummary{
		Source:          fa.Source,
		Normalized:      fa.Normalized,
		DurationSeconds: fa.Duration.Seconds(),
		Results:         len(fa.Transcript),
		Words:           fa.Transcript.WordCount(),
		WordDurations:   len(prosody.WordDurations(fa.Transcript)),
		Pitches:         len(fa.Pitch),
	}
}

// Report is the outcome of one comparison run.
type Report struct {
	RunID       string         `json:"run_id" yaml:"run_id"`
	GeneratedAt time.Time      `json:"generated_at" yaml:"generated_at"`
	Files       [2]FileSummary `json:"files" yaml:"files"`

	AvgPitchDifference    Metric `json:"avg_pitch_difference" yaml:"avg_pitch_difference"`
	AvgDurationDifference Metric `json:"avg_duration_difference" yaml:"avg_duration_difference"`

	// Number of position-aligned pairs behind each metric
	AlignedPitches       int `json:"aligned_pitches" yaml:"aligned_pitches"`
	AlignedWordDurations int `json:"aligned_word_durations" yaml:"aligned_word_durations"`
}

// Result returns the metrics as a prosody.Result.
func (r *Report) Result() prosody.Result {
	return prosody.Result{
		AvgPitchDifference:    float64(r.AvgPitchDifference),
		AvgDurationDifference: float64(r.AvgDurationDifference),
	}
}

// Manifest asks watch mode to compare two recordings. Relative paths are
// resolved against the manifest's directory.
type Manifest struct {
	A      string `yaml:"a"`
	B      string `yaml:"b"`
	Report string `yaml:"report,omitempty"`
}

// Job is a queued manifest.
type Job struct {
	ManifestPath string
	Timestamp    time.Time
}
