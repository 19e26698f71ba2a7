package voiceprint

import (
	"context"
	"fmt"
	"log/slog"
	"math"
)

// DefaultUtterance is the key under which Score scores its input.
const DefaultUtterance = "default"

// Score is the log-likelihood-ratio of one enrolled speaker.
type Score struct {
	Score   float64 `json:"score"`
	Speaker string  `json:"speaker"`
}

// ScoreSet holds the scores of one utterance, sorted by speaker.
type ScoreSet []Score

// Best returns the highest score. ok is false for an empty set.
func (s ScoreSet) Best() (best Score, ok bool) {
	for i, sc := range s {
		if i == 0 || sc.Score > best.Score {
			best = sc
		}
	}
	return best, len(s) > 0
}

// Utterance is a raw embedding to score under a key.
type Utterance struct {
	Key    string
	Vector []float32
}

// Scorer scores raw embeddings against the enrolled speakers of a model.
// A Scorer is safe for concurrent use.
type Scorer struct {
	model  *SpeakerModel
	logger *slog.Logger
}

// ScorerOption configures a Scorer.
type ScorerOption func(*Scorer)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) ScorerOption {
	return func(s *Scorer) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewScorer creates a Scorer for m.
func NewScorer(m *SpeakerModel, opts ...ScorerOption) *Scorer {
	s := &Scorer{model: m, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Embed maps a raw embedding into PLDA space as a single utterance: the
// population mean is removed, the model transform applied and the result
// length normalized.
func (s *Scorer) Embed(raw []float32) ([]float64, error) {
	m := s.model
	if len(raw) != len(m.mean) {
		return nil, fmt.Errorf("%w: embedding has dimension %d, mean %d", ErrDimensionMismatch, len(raw), len(m.mean))
	}
	centered := make([]float32, len(raw))
	for i, x := range raw {
		centered[i] = x - m.mean[i]
	}
	v, err := m.transform.Affine(centered)
	if err != nil {
		return nil, err
	}
	return m.plda.TransformVector(m.cfg, v, 1)
}

// Score scores one raw embedding against every enrolled speaker.
func (s *Scorer) Score(raw []float32) (ScoreSet, error) {
	sets, err := s.ScoreUtterances([]Utterance{{Key: DefaultUtterance, Vector: raw}})
	if err != nil {
		return nil, err
	}
	return sets[DefaultUtterance], nil
}

// ScoreUtterances scores every utterance against every enrolled speaker.
// Keys must be unique.
func (s *Scorer) ScoreUtterances(utts []Utterance) (map[string]ScoreSet, error) {
	test := make(map[string][]float64, len(utts))
	for _, u := range utts {
		if _, dup := test[u.Key]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateUtterance, u.Key)
		}
		v, err := s.Embed(u.Vector)
		if err != nil {
			return nil, fmt.Errorf("voiceprint: utterance %q: %w", u.Key, err)
		}
		test[u.Key] = v
	}

	m := s.model
	out := make(map[string]ScoreSet, len(utts))
	for _, u := range utts {
		tv := test[u.Key]
		set := make(ScoreSet, 0, len(m.speakers))
		for _, spk := range m.speakers {
			train, ok := m.train[spk]
			if !ok {
				s.logger.Warn("voiceprint: speaker not present in enrolled vectors", "speaker", spk)
				continue
			}
			if s.logger.Enabled(context.Background(), slog.LevelDebug) {
				s.logger.Debug("voiceprint: cosine", "speaker", spk, "utterance", u.Key, "cos", cosine64(train, tv))
			}
			set = append(set, Score{
				Speaker: spk,
				Score:   m.plda.LogLikelihoodRatio(train, m.numUtts[spk], tv),
			})
		}
		out[u.Key] = set
	}
	return out, nil
}

func cosine64(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / math.Sqrt(na*nb)
}
