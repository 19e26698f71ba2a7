package enroll_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/haivivi/asr/pkg/enroll"
	"github.com/haivivi/asr/pkg/voiceprint"
)

func stores(t *testing.T) map[string]enroll.Store {
	t.Helper()
	b, err := enroll.OpenBadger(enroll.BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return map[string]enroll.Store{"badger": b, "memory": enroll.NewMemory()}
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Get(ctx, "alice"); !errors.Is(err, enroll.ErrNotFound) {
				t.Fatalf("Get missing = %v, want ErrNotFound", err)
			}

			created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			for _, spk := range []string{"carol", "alice", "bob"} {
				p := enroll.Profile{Speaker: spk, Vector: []float32{1, 2}, NumUtts: 2, Created: created, Updated: created}
				if err := s.Put(ctx, p); err != nil {
					t.Fatalf("Put(%s): %v", spk, err)
				}
			}

			got, err := s.Get(ctx, "alice")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Speaker != "alice" || got.NumUtts != 2 || len(got.Vector) != 2 || !got.Created.Equal(created) {
				t.Errorf("Get = %+v", got)
			}

			var order []string
			for p, err := range s.List(ctx) {
				if err != nil {
					t.Fatalf("List: %v", err)
				}
				order = append(order, p.Speaker)
			}
			if len(order) != 3 || order[0] != "alice" || order[1] != "bob" || order[2] != "carol" {
				t.Errorf("List order = %v", order)
			}

			if err := s.Delete(ctx, "bob"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := s.Delete(ctx, "bob"); !errors.Is(err, enroll.ErrNotFound) {
				t.Errorf("second Delete = %v, want ErrNotFound", err)
			}
			if err := s.Put(ctx, enroll.Profile{Speaker: "a:b"}); !errors.Is(err, enroll.ErrInvalidSpeaker) {
				t.Errorf("Put with separator = %v, want ErrInvalidSpeaker", err)
			}
			if _, err := s.Get(ctx, ""); !errors.Is(err, enroll.ErrInvalidSpeaker) {
				t.Errorf("Get empty = %v, want ErrInvalidSpeaker", err)
			}
		})
	}
}

func TestEnrollRunningMean(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
			e := enroll.NewEnroller(s, enroll.WithClock(func() time.Time {
				now = now.Add(time.Minute)
				return now
			}))

			if _, err := e.Enroll(ctx, "alice", []float64{1, 0, 3}); err != nil {
				t.Fatal(err)
			}
			if _, err := e.Enroll(ctx, "alice", []float64{3, 2, 3}); err != nil {
				t.Fatal(err)
			}
			p, err := e.Enroll(ctx, "alice", []float64{2, 4, 0})
			if err != nil {
				t.Fatal(err)
			}
			want := []float64{2, 2, 2}
			for i, w := range want {
				if math.Abs(float64(p.Vector[i])-w) > 1e-6 {
					t.Errorf("mean[%d] = %v, want %v", i, p.Vector[i], w)
				}
			}
			if p.NumUtts != 3 {
				t.Errorf("NumUtts = %d, want 3", p.NumUtts)
			}
			if !p.Updated.After(p.Created) {
				t.Errorf("Updated %v not after Created %v", p.Updated, p.Created)
			}

			if _, err := e.Enroll(ctx, "alice", []float64{1}); !errors.Is(err, voiceprint.ErrDimensionMismatch) {
				t.Errorf("Enroll with other dimension = %v", err)
			}
			if _, err := e.Enroll(ctx, "bob", nil); err == nil {
				t.Error("empty embedding accepted")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	s := enroll.NewMemory()
	e := enroll.NewEnroller(s)
	for _, spk := range []string{"bob", "alice"} {
		if _, err := e.Enroll(ctx, spk, []float64{1, 2, 3}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := enroll.Load(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Speaker != "alice" || got[1].Speaker != "bob" || got[0].NumUtts != 1 {
		t.Fatalf("Load = %+v", got)
	}
}

func TestBadgerPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b, err := enroll.OpenBadger(enroll.BadgerOptions{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := enroll.NewEnroller(b).Enroll(ctx, "alice", []float64{1, 1, 1}); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}

	b, err = enroll.OpenBadger(enroll.BadgerOptions{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	p, err := b.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if p.NumUtts != 1 {
		t.Errorf("profile = %+v", p)
	}
}

func TestOpenBadgerNeedsDir(t *testing.T) {
	if _, err := enroll.OpenBadger(enroll.BadgerOptions{}); err == nil {
		t.Error("OpenBadger without dir succeeded")
	}
}
