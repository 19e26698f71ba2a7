package voiceprint

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"
)

func identity(n int) Matrix {
	m := make(Matrix, n)
	for i := range m {
		m[i] = make([]float32, n)
		m[i][i] = 1
	}
	return m
}

func testPLDA(dim int) *PLDA {
	psi := make([]float32, dim)
	for i := range psi {
		psi[i] = 2
	}
	return &PLDA{Mean: make([]float32, dim), Transform: identity(dim), Psi: psi}
}

// fixedEvaluator returns the same embedding for any input.
type fixedEvaluator struct{ calls int }

func (e *fixedEvaluator) Compute(features [][]float32) ([]float32, error) {
	e.calls++
	return []float32{1, 2, 2}, nil
}

func newModel(t *testing.T, enrolled []Enrollment) *SpeakerModel {
	t.Helper()
	m, err := NewSpeakerModel(SpeakerModelConfig{
		Evaluator: &fixedEvaluator{},
		Mean:      make([]float32, 3),
		Transform: identity(3),
		PLDA:      testPLDA(3),
		Enrolled:  enrolled,
	})
	if err != nil {
		t.Fatalf("NewSpeakerModel: %v", err)
	}
	return m
}

func frames(n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, dim)
		for d := range out[i] {
			out[i][d] = float32(i + d)
		}
	}
	return out
}

func TestAffine(t *testing.T) {
	m := Matrix{{1, 2, 10}, {0, 1, -1}}
	got, err := m.Affine([]float32{1, 1})
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 13 || got[1] != 0 {
		t.Errorf("Affine with bias = %v, want [13 0]", got)
	}
	got, err = Matrix{{1, 2}, {3, 4}}.Affine([]float32{1, 1})
	if err != nil || got[0] != 3 || got[1] != 7 {
		t.Errorf("Affine = %v, %v", got, err)
	}
	if _, err := m.Affine([]float32{1, 2, 3, 4}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestTransformVector(t *testing.T) {
	p := testPLDA(4)
	v := []float32{3, 0, 0, 4}

	out, err := p.TransformVector(PLDAConfig{}, v, 1)
	if err != nil {
		t.Fatal(err)
	}
	if out[0] != 3 || out[3] != 4 {
		t.Errorf("no normalization: %v", out)
	}

	out, _ = p.TransformVector(PLDAConfig{NormalizeLength: true, SimpleLengthNorm: true}, v, 1)
	var sq float64
	for _, x := range out {
		sq += x * x
	}
	if math.Abs(sq-4) > 1e-9 {
		t.Errorf("simple norm: squared length %v, want 4", sq)
	}

	// sum x^2/(psi+1/n) must equal dim after normalization.
	for _, n := range []int{1, 5} {
		out, _ = p.TransformVector(DefaultPLDAConfig(), v, n)
		var dot float64
		for i, x := range out {
			dot += x * x / (float64(p.Psi[i]) + 1/float64(n))
		}
		if math.Abs(dot-4) > 1e-9 {
			t.Errorf("n=%d: normalized dot %v, want 4", n, dot)
		}
	}

	if _, err := p.TransformVector(DefaultPLDAConfig(), v[:2], 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("err = %v", err)
	}
}

func TestLogLikelihoodRatio(t *testing.T) {
	p := &PLDA{Mean: []float32{0}, Transform: identity(1), Psi: []float32{1}}
	// One dimension, psi=1, n=1: same ~ N(0.5*train, 1.5), diff ~ N(0, 2).
	train, test := []float64{2}, []float64{2}
	want := -0.5*(math.Log(1.5)+1*1/1.5) + 0.5*(math.Log(2)+4/2.0)
	if got := p.LogLikelihoodRatio(train, 1, test); math.Abs(got-want) > 1e-12 {
		t.Errorf("LLR = %v, want %v", got, want)
	}
	near := p.LogLikelihoodRatio(train, 1, []float64{2})
	far := p.LogLikelihoodRatio(train, 1, []float64{-2})
	if near <= far {
		t.Errorf("matching vector scored %v, opposite %v", near, far)
	}
}

func TestExtractor(t *testing.T) {
	m := newModel(t, nil)
	ext := NewExtractor(m)

	emb, err := ext.Extract(frames(49, 3))
	if !errors.Is(err, ErrTooFewFrames) {
		t.Fatalf("49 frames: err = %v, want ErrTooFewFrames", err)
	}
	if emb.Frames != 49 {
		t.Errorf("Frames = %d", emb.Frames)
	}

	emb, err = ext.Extract(frames(50, 3))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got := norm(emb.Vector); math.Abs(got-math.Sqrt(3)) > 1e-5 {
		t.Errorf("|spk| = %v, want sqrt(3)", got)
	}
	if emb.Raw[0] != 1 || emb.Raw[1] != 2 || emb.Raw[2] != 2 {
		t.Errorf("Raw = %v", emb.Raw)
	}
	if eval := m.eval.(*fixedEvaluator); eval.calls != 1 {
		t.Errorf("evaluator called %d times", eval.calls)
	}

	small := NewExtractor(m, WithMinFrames(10))
	if _, err := small.Extract(frames(10, 3)); err != nil {
		t.Errorf("WithMinFrames(10): %v", err)
	}
}

func TestScorer(t *testing.T) {
	m := newModel(t, nil)
	s := NewScorer(m)
	alice, err := s.Embed([]float32{1, 2, 2})
	if err != nil {
		t.Fatal(err)
	}
	bob, _ := s.Embed([]float32{-2, 1, -1})

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	m = newModel(t, []Enrollment{
		{Speaker: "carol", NumUtts: 2},
		{Speaker: "bob", Vector: toF32(bob), NumUtts: 1},
		{Speaker: "alice", Vector: toF32(alice), NumUtts: 3},
	})
	s = NewScorer(m, WithLogger(logger))

	set, err := s.Score([]float32{1, 2, 2})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if len(set) != 2 || set[0].Speaker != "alice" || set[1].Speaker != "bob" {
		t.Fatalf("set = %+v, want alice, bob", set)
	}
	best, ok := set.Best()
	if !ok || best.Speaker != "alice" {
		t.Errorf("best = %+v", best)
	}
	if !strings.Contains(buf.String(), "speaker=carol") {
		t.Errorf("missing warning for carol:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "cos=") {
		t.Errorf("missing cosine debug line:\n%s", buf.String())
	}

	_, err = s.ScoreUtterances([]Utterance{
		{Key: "default", Vector: []float32{1, 2, 2}},
		{Key: "default", Vector: []float32{1, 2, 2}},
	})
	if !errors.Is(err, ErrDuplicateUtterance) {
		t.Errorf("err = %v, want ErrDuplicateUtterance", err)
	}
	if _, err := s.Score([]float32{1}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("err = %v, want ErrDimensionMismatch", err)
	}
	if _, ok := (ScoreSet{}).Best(); ok {
		t.Error("empty set has a best score")
	}
}

func TestSpeakerModelRefs(t *testing.T) {
	closed := 0
	m, err := NewSpeakerModel(SpeakerModelConfig{
		Evaluator: &fixedEvaluator{},
		Mean:      make([]float32, 3),
		Transform: identity(3),
		PLDA:      testPLDA(3),
		Close:     func() error { closed++; return nil },
	})
	if err != nil {
		t.Fatal(err)
	}
	m.Acquire()
	if err := m.Release(); err != nil || closed != 0 {
		t.Fatalf("first release: err %v closed %d", err, closed)
	}
	if err := m.Release(); err != nil || closed != 1 {
		t.Fatalf("last release: err %v closed %d", err, closed)
	}
	if err := m.Release(); err == nil {
		t.Error("extra release succeeded")
	}
}

func TestNewSpeakerModelErrors(t *testing.T) {
	base := func() SpeakerModelConfig {
		return SpeakerModelConfig{
			Evaluator: &fixedEvaluator{},
			Mean:      make([]float32, 3),
			Transform: identity(3),
			PLDA:      testPLDA(3),
		}
	}
	tests := []struct {
		name   string
		modify func(*SpeakerModelConfig)
	}{
		{"no evaluator", func(c *SpeakerModelConfig) { c.Evaluator = nil }},
		{"no plda", func(c *SpeakerModelConfig) { c.PLDA = nil }},
		{"transform rows", func(c *SpeakerModelConfig) { c.Transform = identity(2) }},
		{"mean dim", func(c *SpeakerModelConfig) { c.Mean = make([]float32, 5) }},
		{"enrolled dim", func(c *SpeakerModelConfig) {
			c.Enrolled = []Enrollment{{Speaker: "a", Vector: []float32{1}}}
		}},
		{"enrolled twice", func(c *SpeakerModelConfig) {
			c.Enrolled = []Enrollment{{Speaker: "a"}, {Speaker: "a"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.modify(&cfg)
			if _, err := NewSpeakerModel(cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func toF32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
