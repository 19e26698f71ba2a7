package voiceprint

import (
	"fmt"
	"math"

	"github.com/haivivi/asr/pkg/audio/fbank"
)

const (
	// MinFrames is the default minimum number of speech frames for an
	// embedding.
	MinFrames = 50

	// CMNWindow is the default sliding mean normalization window in frames.
	CMNWindow = 300
)

// Embedding is the result of one extraction.
type Embedding struct {
	// Raw is the evaluator output, the input to scoring.
	Raw []float32

	// Vector is Raw projected by the model transform and rescaled to norm
	// sqrt(dim).
	Vector []float32

	// Frames is the number of feature frames used.
	Frames int
}

// Extractor turns speaker feature frames into embeddings.
type Extractor struct {
	model     *SpeakerModel
	minFrames int
	cmnWindow int
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithMinFrames sets the minimum number of frames (default 50).
func WithMinFrames(n int) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.minFrames = n
		}
	}
}

// WithCMNWindow sets the mean normalization window (default 300).
func WithCMNWindow(n int) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.cmnWindow = n
		}
	}
}

// NewExtractor creates an Extractor for m.
func NewExtractor(m *SpeakerModel, opts ...ExtractorOption) *Extractor {
	e := &Extractor{model: m, minFrames: MinFrames, cmnWindow: CMNWindow}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract computes the embedding of frames. It returns ErrTooFewFrames
// when there are fewer frames than the minimum.
func (e *Extractor) Extract(frames [][]float32) (Embedding, error) {
	if len(frames) < e.minFrames {
		return Embedding{Frames: len(frames)}, fmt.Errorf("%w: %d < %d", ErrTooFewFrames, len(frames), e.minFrames)
	}
	feats := fbank.SlidingWindowCMN(frames, e.cmnWindow, true)
	raw, err := e.model.eval.Compute(feats)
	if err != nil {
		return Embedding{Frames: len(frames)}, fmt.Errorf("voiceprint: evaluate: %w", err)
	}
	vec, err := e.model.transform.Affine(raw)
	if err != nil {
		return Embedding{Frames: len(frames)}, err
	}
	if n := norm(vec); n > 0 {
		ratio := n / math.Sqrt(float64(len(vec)))
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / ratio)
		}
	}
	return Embedding{Raw: raw, Vector: vec, Frames: len(frames)}, nil
}
