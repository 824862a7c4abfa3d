// Package prosody reduces two speakers' transcripts and pitch sequences to
// scalar difference metrics.
//
// Sequences are aligned by position and truncated to the shorter length.
// Undefined averages come back as NaN rather than as errors.
package prosody

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/shashankpritam/PitchCompare/pitch"
	"github.com/shashankpritam/PitchCompare/transcribe"
)

// Result holds the two comparison metrics. Either may be NaN.
type Result struct {
	AvgPitchDifference    float64
	AvgDurationDifference float64
}

// Compare computes both metrics for a pair of analyzed recordings.
func Compare(t1, t2 transcribe.Transcript, p1, p2 pitch.Sequence) Result {
	return Result{
		AvgPitchDifference:    PitchDifference(p1, p2),
		AvgDurationDifference: DurationDifference(WordDurations(t1), WordDurations(t2)),
	}
}

// PitchDifference is the mean absolute difference of position-aligned
// pitches. NaN when either sequence is empty.
func PitchDifference(a, b pitch.Sequence) float64 {
	return meanAbsDiff(a, b)
}

// WordDurations returns End-Start of the first word of every result that
// recognized any words. Later words in the same result are ignored.
func WordDurations(t transcribe.Transcript) []float64 {
	var out []float64
	for _, r := range t {
		if len(r.Words) == 0 {
			continue
		}
		out = append(out, r.Words[0].Duration())
	}
	return out
}

// DurationDifference is the mean absolute difference of position-aligned
// durations. It is NaN unless both lists are non-empty and every duration is
// finite and non-negative.
func DurationDifference(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || !validDurations(a) || !validDurations(b) {
		return math.NaN()
	}
	return meanAbsDiff(a, b)
}

// AlignedLen is the number of pairs compared for sequences of length a and b.
func AlignedLen(a, b int) int {
	return min(a, b)
}

func validDurations(d []float64) bool {
	for _, v := range d {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return false
		}
	}
	return true
}

func meanAbsDiff(a, b []float64) float64 {
	n := AlignedLen(len(a), len(b))
	if n == 0 {
		return math.NaN()
	}
	diffs := make([]float64, n)
	for i := range diffs {
		diffs[i] = math.Abs(a[i] - b[i])
	}
	return stat.Mean(diffs, nil)
}
