// Package voiceprint provides speaker identification via speaker embeddings
// and PLDA scoring.
//
// # Architecture
//
// The pipeline processes one utterance in three stages:
//
//  1. Extractor.Extract: speaker feature frames → embedding. Frames are
//     mean normalized over a centered sliding window, evaluated once by an
//     [Evaluator] (typically an x-vector network), then projected and
//     rescaled so that the vector norm equals sqrt(dim).
//  2. Scorer.Score: raw embedding → population mean removed → affine
//     transform → PLDA length-normalized space.
//  3. Log-likelihood-ratio of the utterance against every enrolled
//     speaker of the [SpeakerModel], returned as a [ScoreSet].
//
// The enrolled speakers live in PLDA space; [Scorer.Embed] maps a raw
// embedding there so new speakers can be enrolled from the same
// embeddings the recognizer produces.
package voiceprint

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrTooFewFrames is returned when an utterance has fewer speech frames
	// than an embedding needs.
	ErrTooFewFrames = errors.New("voiceprint: not enough speech frames")

	// ErrDimensionMismatch is returned when a vector does not fit a
	// transform.
	ErrDimensionMismatch = errors.New("voiceprint: dimension mismatch")

	// ErrDuplicateUtterance is returned when two test utterances share a key.
	ErrDuplicateUtterance = errors.New("voiceprint: duplicate test utterance")
)

// FeatureStream is an incrementally computed stream of speaker feature
// frames, 100 per second. See fbank.Online for the default
// implementation.
type FeatureStream interface {
	// AcceptWaveform appends audio samples at the given rate.
	AcceptWaveform(sampleRate float32, samples []float32) error

	// NumFramesReady returns the number of frames available.
	NumFramesReady() int

	// Dim returns the frame dimension.
	Dim() int

	// Frame returns frame i, 0 <= i < NumFramesReady().
	Frame(i int) []float32
}

// Evaluator runs the speaker network over a feature matrix ([T][dim]) and
// returns one embedding for the whole input.
//
// Implementations must be safe for concurrent use.
type Evaluator interface {
	Compute(features [][]float32) ([]float32, error)
}

// EvaluatorFunc adapts a function to [Evaluator].
type EvaluatorFunc func(features [][]float32) ([]float32, error)

// Compute calls f(features).
func (f EvaluatorFunc) Compute(features [][]float32) ([]float32, error) { return f(features) }

// Matrix is a dense row-major matrix.
type Matrix [][]float32

// Rows returns the number of rows.
func (m Matrix) Rows() int { return len(m) }

// Cols returns the number of columns.
func (m Matrix) Cols() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// Affine applies m to v. When m has one column more than v the last column
// is a bias added to the product.
func (m Matrix) Affine(v []float32) ([]float32, error) {
	cols := m.Cols()
	bias := false
	switch cols {
	case len(v):
	case len(v) + 1:
		bias = true
	default:
		return nil, fmt.Errorf("%w: input vector has dimension %d and transform has %d columns",
			ErrDimensionMismatch, len(v), cols)
	}
	out := make([]float32, len(m))
	for r, row := range m {
		var sum float64
		if bias {
			sum = float64(row[len(v)])
		}
		for c, x := range v {
			sum += float64(row[c]) * float64(x)
		}
		out[r] = float32(sum)
	}
	return out, nil
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}
