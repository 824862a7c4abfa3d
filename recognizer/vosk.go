// Package recognizer provides the Kaldi/Vosk speech recognition backend.
//
// A Model is loaded once per process and shared read-only; every audio stream
// gets its own Decoder since recognizer state cannot be shared.
package recognizer

import (
	"fmt"
	"log/slog"
	"sync"

	vosk "github.com/alphacep/vosk-api/go"

	"github.com/shashankpritam/PitchCompare/transcribe"
)

var _ transcribe.Model = (*Model)(nil)

// Model wraps a loaded Vosk model.
type Model struct {
	path string

	mu    sync.Mutex
	model *vosk.VoskModel
}

// Load reads the model bundle at path. logLevel follows Vosk: -1 silences
// Kaldi, 0 logs info.
func Load(path string, logLevel int) (*Model, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: model path is not configured", transcribe.ErrTranscription)
	}

	vosk.SetLogLevel(logLevel)

	slog.Info("Loading recognition model", "path", path)
	m, err := vosk.NewModel(path)
	if err != nil {
		return nil, fmt.Errorf("%w: load model %s: %w", transcribe.ErrTranscription, path, err)
	}
	slog.Info("Recognition model loaded", "path", path)

	return &Model{path: path, model: m}, nil
}

// NewDecoder creates a recognizer that reports word timings.
func (m *Model) NewDecoder(sampleRate float64) (transcribe.Decoder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.model == nil {
		return nil, fmt.Errorf("model %s is closed", m.path)
	}

	rec, err := vosk.NewRecognizer(m.model, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("create recognizer: %w", err)
	}
	rec.SetWords(1)
	return &decoder{rec: rec}, nil
}

// Close frees the model. Decoders already created keep their own reference
// inside Vosk and remain usable until closed.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.model != nil {
		m.model.Free()
		m.model = nil
	}
	return nil
}

type decoder struct {
	rec *vosk.VoskRecognizer
}

func (d *decoder) AcceptWaveform(chunk []byte) (bool, error) {
	switch r := d.rec.AcceptWaveform(chunk); {
	case r < 0:
		return false, fmt.Errorf("recognizer rejected waveform chunk of %d bytes", len(chunk))
	default:
		return r > 0, nil
	}
}

func (d *decoder) Result() (transcribe.RecognitionResult, error) {
	return transcribe.ParseResult([]byte(d.rec.Result()))
}

func (d *decoder) FinalResult() (transcribe.RecognitionResult, error) {
	return transcribe.ParseResult([]byte(d.rec.FinalResult()))
}

func (d *decoder) Close() error {
	if d.rec != nil {
		d.rec.Free()
		d.rec = nil
	}
	return nil
}
