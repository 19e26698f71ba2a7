package voiceprint

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync/atomic"
)

// Enrollment is one enrolled speaker. Vector is the mean of the speaker's
// enrollment embeddings in PLDA space (see [Scorer.Embed]) and NumUtts the
// number of utterances averaged into it. A nil Vector marks a speaker that
// is listed but has no vector; such speakers are skipped when scoring.
type Enrollment struct {
	Speaker string
	Vector  []float32
	NumUtts int
}

// SpeakerModelConfig holds the artifacts of a speaker model.
type SpeakerModelConfig struct {
	// Evaluator computes raw embeddings from feature frames.
	Evaluator Evaluator

	// Mean is the population mean of raw embeddings.
	Mean []float32

	// Transform projects raw embeddings. It may carry a bias column.
	Transform Matrix

	// PLDA scores projected embeddings.
	PLDA *PLDA

	// PLDAConfig defaults to DefaultPLDAConfig when nil.
	PLDAConfig *PLDAConfig

	// Enrolled lists the known speakers.
	Enrolled []Enrollment

	// Close is called when the last reference is released.
	Close func() error
}

// SpeakerModel is a shared, read-only speaker model. It is reference
// counted: New returns a model holding one reference, every user calls
// Acquire before and Release after using it.
type SpeakerModel struct {
	eval      Evaluator
	mean      []float32
	transform Matrix
	plda      *PLDA
	cfg       PLDAConfig
	train     map[string][]float64
	numUtts   map[string]int
	speakers  []string

	refs   atomic.Int32
	closer func() error
}

// NewSpeakerModel validates cfg and builds a model.
func NewSpeakerModel(cfg SpeakerModelConfig) (*SpeakerModel, error) {
	if cfg.Evaluator == nil {
		return nil, errors.New("voiceprint: speaker model needs an evaluator")
	}
	if cfg.PLDA == nil {
		return nil, errors.New("voiceprint: speaker model needs a plda")
	}
	if err := cfg.PLDA.Validate(); err != nil {
		return nil, err
	}
	if r := cfg.Transform.Rows(); r != cfg.PLDA.Dim() {
		return nil, fmt.Errorf("%w: transform has %d rows, plda dimension is %d",
			ErrDimensionMismatch, r, cfg.PLDA.Dim())
	}
	if c := cfg.Transform.Cols(); c != len(cfg.Mean) && c != len(cfg.Mean)+1 {
		return nil, fmt.Errorf("%w: transform has %d columns, mean has dimension %d",
			ErrDimensionMismatch, c, len(cfg.Mean))
	}

	m := &SpeakerModel{
		eval:      cfg.Evaluator,
		mean:      cfg.Mean,
		transform: cfg.Transform,
		plda:      cfg.PLDA,
		cfg:       DefaultPLDAConfig(),
		train:     make(map[string][]float64),
		numUtts:   make(map[string]int),
		closer:    cfg.Close,
	}
	if cfg.PLDAConfig != nil {
		m.cfg = *cfg.PLDAConfig
	}
	for _, e := range cfg.Enrolled {
		if _, dup := m.numUtts[e.Speaker]; dup {
			return nil, fmt.Errorf("voiceprint: speaker %q enrolled twice", e.Speaker)
		}
		m.numUtts[e.Speaker] = max(e.NumUtts, 1)
		if e.Vector == nil {
			continue
		}
		if len(e.Vector) != cfg.PLDA.Dim() {
			return nil, fmt.Errorf("%w: speaker %q has dimension %d, plda %d",
				ErrDimensionMismatch, e.Speaker, len(e.Vector), cfg.PLDA.Dim())
		}
		v := make([]float64, len(e.Vector))
		for i, x := range e.Vector {
			v[i] = float64(x)
		}
		m.train[e.Speaker] = v
	}
	m.speakers = slices.Sorted(maps.Keys(m.numUtts))
	m.refs.Store(1)
	return m, nil
}

// Speakers returns the enrolled speaker ids in sorted order.
func (m *SpeakerModel) Speakers() []string { return slices.Clone(m.speakers) }

// Dim returns the PLDA dimension.
func (m *SpeakerModel) Dim() int { return m.plda.Dim() }

// Acquire adds a reference.
func (m *SpeakerModel) Acquire() *SpeakerModel {
	m.refs.Add(1)
	return m
}

// Release drops a reference. Dropping the last one closes the model.
func (m *SpeakerModel) Release() error {
	switch n := m.refs.Add(-1); {
	case n == 0 && m.closer != nil:
		return m.closer()
	case n < 0:
		return errors.New("voiceprint: speaker model released too many times")
	}
	return nil
}
