package recognizer

import (
	"github.com/haivivi/asr/pkg/lattice"
)

// Graph is a decoding graph. Its representation belongs to the Engine
// that decodes with it; the recognizer only passes it around.
type Graph interface{}

// FrameWeight is a change to the weight of one feature frame, as seen by
// the i-vector extractor of a feature pipeline. Frame counts from the
// start of the pipeline.
type FrameWeight struct {
	Frame  int
	Weight float32
}

// FeaturePipeline turns audio into acoustic features for a Decoder.
// Frames are 10 ms; the decoder consumes them three at a time.
type FeaturePipeline interface {
	// AcceptWaveform appends samples at the given rate.
	AcceptWaveform(sampleRate float32, samples []float32)

	// InputFinished flushes the remaining samples into frames.
	InputFinished()

	// NumFramesReady returns the number of 10 ms frames available.
	NumFramesReady() int

	// HasIvector reports whether the pipeline computes i-vectors, which
	// is what silence weights apply to.
	HasIvector() bool

	// UpdateFrameWeights applies weight changes to past frames.
	UpdateFrameWeights(delta []FrameWeight)
}

// Decoder is an incremental decoder reading from a FeaturePipeline.
// Frame numbers are decoder frames (30 ms) counted from the last
// InitDecoding.
type Decoder interface {
	// AdvanceDecoding decodes all frames the pipeline has ready.
	AdvanceDecoding()

	// FinalizeDecoding finishes the current utterance. Partial hypotheses
	// are no longer extended afterwards.
	FinalizeDecoding()

	// InitDecoding starts a new utterance. frameOffset is the number of
	// decoder frames of the pipeline consumed by earlier utterances.
	InitDecoding(frameOffset int)

	// NumFramesDecoded returns the number of frames decoded in the current
	// utterance.
	NumFramesDecoded() int

	// EndpointDetected reports whether the current utterance has ended
	// in silence according to the decoder's endpoint rules.
	EndpointDetected() bool

	// Lattice returns the word lattice of the current utterance. Arc
	// frame counts are decoder frames.
	Lattice(endOfUtterance bool) (*lattice.Lattice, error)

	// BestPath returns the current best hypothesis as a linear lattice.
	BestPath(endOfUtterance bool) (*lattice.Lattice, error)
}

// SilenceWeighting tracks which frames of the current utterance are
// silence according to the decoder's traceback.
type SilenceWeighting interface {
	// Active reports whether silence weighting is configured.
	Active() bool

	// ComputeCurrentTraceback refreshes the silence decisions from d.
	// forSpeaker asks for decisions suitable for speaker identification.
	ComputeCurrentTraceback(d Decoder, forSpeaker bool)

	// DeltaWeights returns the frame weight changes since the last call.
	// firstFrame is the first pipeline frame of the current utterance.
	DeltaWeights(numFramesReady, firstFrame int) []FrameWeight

	// NonsilenceFrames returns the decoder frames of the current
	// utterance, counted from its start, that are not silence.
	NonsilenceFrames(numFramesReady, firstFrame int) []int
}

// Engine creates the per-session collaborators of a Model.
type Engine interface {
	NewPipeline() (FeaturePipeline, error)
	NewDecoder(g Graph, p FeaturePipeline) (Decoder, error)
	NewSilenceWeighting() SilenceWeighting
}

// EstimatorOptions configures a GrammarEstimator.
type EstimatorOptions struct {
	Order    int
	Discount float32
}

// GrammarEstimator builds a grammar from example sentences.
type GrammarEstimator interface {
	// AddCounts adds one sentence of word ids.
	AddCounts(sentence []int32)

	// Estimate returns the grammar built from all sentences.
	Estimate() (Graph, error)
}

// GraphComposer combines a context-dependency/lexicon graph with a
// grammar.
type GraphComposer interface {
	Compose(hcl, g Graph, disambig []int32) (Graph, error)
}

// WordAligner moves word boundaries of a lattice to the positions given
// by the lexicon.
type WordAligner interface {
	Align(l *lattice.Lattice) (*lattice.Lattice, error)
}

// NeuralLM is a neural language model exposed as a deterministic fst.
// It caches states while a lattice is rescored; Clear drops the cache and
// is called at the end of every rescoring.
type NeuralLM interface {
	lattice.DeterministicFst
	Clear()
}
