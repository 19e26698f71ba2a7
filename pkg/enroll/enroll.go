// Package enroll stores enrolled speaker profiles for speaker
// identification.
//
// A profile holds the mean PLDA-space embedding of everything a speaker
// enrolled with, so enrolling another utterance is a running mean update.
// Profiles are msgpack-encoded under the key "profile:{speaker}" in a
// [Store]; [Badger] persists them on disk, [Memory] keeps them in memory.
package enroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/haivivi/asr/pkg/voiceprint"
)

var (
	// ErrNotFound is returned when a speaker has no profile.
	ErrNotFound = errors.New("enroll: speaker not found")

	// ErrInvalidSpeaker is returned for empty speaker ids and ids holding
	// the key separator.
	ErrInvalidSpeaker = errors.New("enroll: invalid speaker id")
)

// Profile is one enrolled speaker.
type Profile struct {
	Speaker string    `msgpack:"speaker" json:"speaker" yaml:"speaker"`
	Vector  []float32 `msgpack:"vector" json:"vector" yaml:"vector"`
	NumUtts int       `msgpack:"num_utts" json:"num_utts" yaml:"num_utts"`
	Created time.Time `msgpack:"created" json:"created" yaml:"created"`
	Updated time.Time `msgpack:"updated" json:"updated" yaml:"updated"`
}

// Enrollment converts the profile for a speaker model.
func (p Profile) Enrollment() voiceprint.Enrollment {
	return voiceprint.Enrollment{Speaker: p.Speaker, Vector: p.Vector, NumUtts: p.NumUtts}
}

func validSpeaker(id string) error {
	if id == "" || strings.ContainsRune(id, keySeparator) {
		return fmt.Errorf("%w: %q", ErrInvalidSpeaker, id)
	}
	return nil
}

// Enroller adds utterances to speaker profiles.
type Enroller struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// EnrollerOption configures an Enroller.
type EnrollerOption func(*Enroller)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) EnrollerOption {
	return func(e *Enroller) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock sets the time source for profile timestamps.
func WithClock(now func() time.Time) EnrollerOption {
	return func(e *Enroller) { e.now = now }
}

// NewEnroller creates an Enroller writing to store.
func NewEnroller(store Store, opts ...EnrollerOption) *Enroller {
	e := &Enroller{store: store, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enroll adds one utterance to the profile of speaker. vec is the PLDA
// space embedding of the utterance, see [voiceprint.Scorer.Embed]. The
// profile is created on first use.
func (e *Enroller) Enroll(ctx context.Context, speaker string, vec []float64) (Profile, error) {
	if err := validSpeaker(speaker); err != nil {
		return Profile{}, err
	}
	if len(vec) == 0 {
		return Profile{}, errors.New("enroll: empty embedding")
	}

	now := e.now()
	p, err := e.store.Get(ctx, speaker)
	switch {
	case errors.Is(err, ErrNotFound):
		p = Profile{Speaker: speaker, Created: now}
	case err != nil:
		return Profile{}, err
	}
	if p.Vector != nil && len(p.Vector) != len(vec) {
		return Profile{}, fmt.Errorf("%w: profile %q has dimension %d, embedding %d",
			voiceprint.ErrDimensionMismatch, speaker, len(p.Vector), len(vec))
	}

	n := float64(p.NumUtts)
	mean := make([]float32, len(vec))
	for i, x := range vec {
		var old float64
		if p.Vector != nil {
			old = float64(p.Vector[i])
		}
		mean[i] = float32((old*n + x) / (n + 1))
	}
	p.Vector = mean
	p.NumUtts++
	p.Updated = now

	if err := e.store.Put(ctx, p); err != nil {
		return Profile{}, err
	}
	e.logger.Info("enroll: speaker enrolled", "speaker", speaker, "utterances", p.NumUtts)
	return p, nil
}

// Load returns the enrollments of all profiles in store, sorted by
// speaker.
func Load(ctx context.Context, store Store) ([]voiceprint.Enrollment, error) {
	var out []voiceprint.Enrollment
	for p, err := range store.List(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, p.Enrollment())
	}
	return out, nil
}
