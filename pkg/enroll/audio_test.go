package enroll_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/haivivi/asr/pkg/enroll"
	"github.com/haivivi/asr/pkg/recognizer/recognizertest"
	"github.com/haivivi/asr/pkg/voiceprint"
)

func TestEnrollAudio(t *testing.T) {
	ctx := context.Background()
	m, err := recognizertest.SpeakerModel([]float32{1, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	defer m.Release()

	want, err := voiceprint.NewScorer(m).Embed([]float32{1, 0, 0})
	if err != nil {
		t.Fatal(err)
	}

	e := enroll.NewEnroller(enroll.NewMemory(), enroll.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	p, err := e.EnrollAudio(ctx, m, "alice", 16000, recognizertest.Samples(16000, 1))
	if err != nil {
		t.Fatal(err)
	}
	if p.NumUtts != 1 || len(p.Vector) != len(want) {
		t.Fatalf("profile = %+v", p)
	}
	for i := range want {
		if math.Abs(float64(p.Vector[i])-want[i]) > 1e-5 {
			t.Errorf("Vector[%d] = %v, want %v", i, p.Vector[i], want[i])
		}
	}

	if _, err := e.EnrollAudio(ctx, m, "bob", 16000, recognizertest.Samples(16000, 0.2)); !errors.Is(err, voiceprint.ErrTooFewFrames) {
		t.Errorf("short audio = %v, want ErrTooFewFrames", err)
	}
}

func TestIdentify(t *testing.T) {
	ctx := context.Background()
	store := enroll.NewMemory()
	e := enroll.NewEnroller(store)
	for speaker, eval := range map[string][]float32{"alice": {1, 0, 0}, "bob": {0, 1, 0}} {
		m, err := recognizertest.SpeakerModel(eval)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := e.EnrollAudio(ctx, m, speaker, 16000, recognizertest.Samples(16000, 1)); err != nil {
			t.Fatal(err)
		}
		m.Release()
	}
	enrolled, err := enroll.Load(ctx, store)
	if err != nil {
		t.Fatal(err)
	}

	m, err := recognizertest.SpeakerModel([]float32{0.9, 0.1, 0}, enrolled...)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Release()
	scores, err := enroll.Identify(m, 16000, recognizertest.Samples(16000, 1))
	if err != nil {
		t.Fatal(err)
	}
	if best, ok := scores.Best(); !ok || best.Speaker != "alice" {
		t.Errorf("best = %+v (%v), want alice", best, scores)
	}
}
