package recognizer

import (
	"fmt"

	"github.com/haivivi/asr/pkg/lattice"
)

// RescoreMode selects how lattices are rescored before results are
// extracted. It is fixed when a session is created, from the artifacts the
// model provides.
type RescoreMode int

const (
	RescoreNone RescoreMode = iota
	RescoreNeuralLM
	RescoreNGram
)

func (m RescoreMode) String() string {
	switch m {
	case RescoreNone:
		return "none"
	case RescoreNeuralLM:
		return "neural-lm"
	case RescoreNGram:
		return "ngram"
	default:
		return fmt.Sprintf("RescoreMode(%d)", int(m))
	}
}

const (
	// NeuralLMScale weighs the neural model against the base model it
	// replaces.
	NeuralLMScale = 0.5

	// NeuralLMOrder is the history length of the neural model state.
	NeuralLMOrder = 4

	// ComposeBeam and ComposeMaxArcs bound pruned composition with the
	// neural model.
	ComposeBeam    = 3.0
	ComposeMaxArcs = 3000

	// GraphScale is applied to graph costs of every rescored lattice.
	GraphScale = 0.9

	// determinizeMaxPaths bounds the word sequences kept by n-gram
	// rescoring.
	determinizeMaxPaths = 256
)

type rescorer struct {
	mode RescoreMode

	// neural
	subtract lattice.DeterministicFst
	neural   NeuralLM
	add      lattice.DeterministicFst

	// n-gram
	small, large lattice.DeterministicFst
}

func newRescorer(m *Model) (*rescorer, error) {
	switch {
	case m.cfg.NewNeuralLM != nil:
		lm, err := m.cfg.NewNeuralLM()
		if err != nil {
			return nil, fmt.Errorf("recognizer: neural lm: %w", err)
		}
		return &rescorer{
			mode:     RescoreNeuralLM,
			subtract: lattice.NewScaleFst(-NeuralLMScale, m.cfg.BaseLM),
			neural:   lm,
			add:      lattice.NewScaleFst(NeuralLMScale, lm),
		}, nil
	case m.cfg.SmallLM != nil:
		return &rescorer{mode: RescoreNGram, small: m.cfg.SmallLM, large: m.cfg.LargeLM}, nil
	}
	return &rescorer{mode: RescoreNone}, nil
}

// rescore returns the rescored lattice with GraphScale applied.
func (r *rescorer) rescore(l *lattice.Lattice) (*lattice.Lattice, error) {
	var err error
	switch r.mode {
	case RescoreNeuralLM:
		l, err = r.rescoreNeural(l)
	case RescoreNGram:
		l, err = r.rescoreNGram(l)
	}
	if err != nil {
		return nil, err
	}
	lattice.ScaleGraph(l, GraphScale)
	return l, nil
}

func (r *rescorer) rescoreNeural(l *lattice.Lattice) (*lattice.Lattice, error) {
	defer r.neural.Clear()
	if err := lattice.TopSort(l); err != nil {
		return nil, fmt.Errorf("recognizer: rescore: %w", err)
	}
	combined := lattice.NewComposeFst(r.subtract, r.add)
	out, err := lattice.ComposePruned(l, combined, lattice.PrunedOptions{
		Beam:    ComposeBeam,
		MaxArcs: ComposeMaxArcs,
	})
	if err != nil {
		return nil, fmt.Errorf("recognizer: rescore: %w", err)
	}
	return out, nil
}

func (r *rescorer) rescoreNGram(l *lattice.Lattice) (*lattice.Lattice, error) {
	// Graph costs are negated so that composing with the small model
	// cancels its contribution.
	lattice.ScaleGraph(l, -1)
	l = lattice.ComposeDeterministic(l, r.small)
	det, err := lattice.Determinize(l, determinizeMaxPaths)
	if err != nil {
		return nil, fmt.Errorf("recognizer: rescore: remove old lm: %w", err)
	}
	lattice.ScaleGraph(det, -1)
	l = lattice.ComposeDeterministic(det, r.large)
	det, err = lattice.Determinize(l, determinizeMaxPaths)
	if err != nil {
		return nil, fmt.Errorf("recognizer: rescore: apply new lm: %w", err)
	}
	return det, nil
}
