package recognizer

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/haivivi/asr/pkg/lattice"
)

// ModelConfig holds the artifacts of an acoustic model. Only Engine and
// Symbols are required; the rest enables optional features.
type ModelConfig struct {
	Engine  Engine
	Symbols *SymbolTable

	// HCLG is a precompiled decoding graph.
	HCLG Graph

	// HCL and G are composed into a decoding graph by Composer when there
	// is no HCLG. Without HCLG, HCL alone enables runtime grammars.
	HCL      Graph
	G        Graph
	Disambig []int32
	Composer GraphComposer

	// NewEstimator creates the estimator for runtime grammars.
	NewEstimator func(EstimatorOptions) GrammarEstimator

	// Aligner word-aligns lattices before results are extracted.
	Aligner WordAligner

	// NewNeuralLM creates the per-session neural language model. BaseLM is
	// the n-gram model the lattices were decoded with; its scaled costs are
	// subtracted before the neural costs are added.
	NewNeuralLM func() (NeuralLM, error)
	BaseLM      lattice.DeterministicFst

	// SmallLM and LargeLM enable n-gram rescoring: SmallLM is the model
	// the lattices were decoded with, LargeLM replaces it.
	SmallLM lattice.DeterministicFst
	LargeLM lattice.DeterministicFst

	// Close is called when the last reference is released.
	Close func() error
}

// Model is a shared, read-only acoustic model. It is reference counted:
// NewModel returns a model holding one reference, each Session acquires
// its own and releases it on Close.
type Model struct {
	cfg  ModelConfig
	refs atomic.Int32
}

// NewModel validates cfg and builds a model.
func NewModel(cfg ModelConfig) (*Model, error) {
	if cfg.Engine == nil {
		return nil, errors.New("recognizer: model needs an engine")
	}
	if cfg.Symbols == nil {
		return nil, errors.New("recognizer: model needs a symbol table")
	}
	if cfg.NewNeuralLM != nil && cfg.BaseLM == nil {
		return nil, errors.New("recognizer: neural rescoring needs the base language model")
	}
	if (cfg.SmallLM == nil) != (cfg.LargeLM == nil) {
		return nil, errors.New("recognizer: n-gram rescoring needs both the small and the large language model")
	}
	m := &Model{cfg: cfg}
	m.refs.Store(1)
	return m, nil
}

// Symbols returns the word symbol table.
func (m *Model) Symbols() *SymbolTable { return m.cfg.Symbols }

// Acquire adds a reference.
func (m *Model) Acquire() *Model {
	m.refs.Add(1)
	return m
}

// Release drops a reference. Dropping the last one closes the model.
func (m *Model) Release() error {
	switch n := m.refs.Add(-1); {
	case n == 0 && m.cfg.Close != nil:
		return m.cfg.Close()
	case n < 0:
		return errors.New("recognizer: model released too many times")
	}
	return nil
}

// defaultGraph returns the precompiled graph, or composes one from HCL
// and G.
func (m *Model) defaultGraph() (Graph, error) {
	if m.cfg.HCLG != nil {
		return m.cfg.HCLG, nil
	}
	if m.cfg.HCL == nil || m.cfg.G == nil || m.cfg.Composer == nil {
		return nil, ErrNoGraph
	}
	g, err := m.cfg.Composer.Compose(m.cfg.HCL, m.cfg.G, m.cfg.Disambig)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoGraph, err)
	}
	return g, nil
}

// supportsGrammar reports whether runtime grammars can be built. A
// precompiled HCLG always takes precedence.
func (m *Model) supportsGrammar() bool {
	return m.cfg.HCLG == nil && m.cfg.HCL != nil && m.cfg.Composer != nil && m.cfg.NewEstimator != nil
}
