package transcribe

import (
	"encoding/json"
	"fmt"
)

// WordSpan is a recognized word with its offsets in seconds.
type WordSpan struct {
	Text  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Conf  float64 `json:"conf,omitempty"`
}

// Duration returns End - Start.
func (w WordSpan) Duration() float64 {
	return w.End - w.Start
}

// RecognitionResult is what the decoder reports at an utterance boundary or
// at end of stream. Words is empty for silent or partial chunks.
type RecognitionResult struct {
	Text  string     `json:"text"`
	Words []WordSpan `json:"result,omitempty"`
}

// Transcript holds recognition results in chunk processing order.
type Transcript []RecognitionResult

// WordCount returns the total number of recognized words.
func (t Transcript) WordCount() int {
	n := 0
	for _, r := range t {
		n += len(r.Words)
	}
	return n
}

// ParseResult decodes a recognizer JSON result such as
// {"text": "hi", "result": [{"word": "hi", "start": 0.1, "end": 0.4, "conf": 1}]}.
func ParseResult(data []byte) (RecognitionResult, error) {
	var r RecognitionResult
	if err := json.Unmarshal(data, &r); err != nil {
		return RecognitionResult{}, fmt.Errorf("%w: malformed result: %w", ErrTranscription, err)
	}
	return r, nil
}
