package enroll

import (
	"context"
	"fmt"
	"iter"

	"github.com/vmihailenco/msgpack/v5"
)

// keySeparator joins key segments.
const keySeparator = ':'

const profilePrefix = "profile:"

// Store persists speaker profiles.
type Store interface {
	// Get returns the profile of speaker, or ErrNotFound.
	Get(ctx context.Context, speaker string) (Profile, error)

	// Put stores p, replacing the profile of p.Speaker.
	Put(ctx context.Context, p Profile) error

	// Delete removes the profile of speaker. It returns ErrNotFound when
	// there is none.
	Delete(ctx context.Context, speaker string) error

	// List iterates over all profiles in speaker order.
	List(ctx context.Context) iter.Seq2[Profile, error]

	// Close releases the resources held by the store.
	Close() error
}

func profileKey(speaker string) []byte {
	return []byte(profilePrefix + speaker)
}

func encodeProfile(p Profile) ([]byte, error) {
	b, err := msgpack.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("enroll: encode profile %q: %w", p.Speaker, err)
	}
	return b, nil
}

func decodeProfile(key, b []byte) (Profile, error) {
	var p Profile
	if err := msgpack.Unmarshal(b, &p); err != nil {
		return Profile{}, fmt.Errorf("enroll: decode profile %s: %w", key, err)
	}
	return p, nil
}
