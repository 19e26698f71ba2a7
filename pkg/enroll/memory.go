package enroll

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"slices"
	"sync"
)

// Memory is an in-memory Store. Profiles are kept encoded, so callers
// never share slices with the store.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, speaker string) (Profile, error) {
	if err := validSpeaker(speaker); err != nil {
		return Profile{}, err
	}
	key := profileKey(speaker)
	m.mu.RLock()
	v, ok := m.data[string(key)]
	m.mu.RUnlock()
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrNotFound, speaker)
	}
	return decodeProfile(key, v)
}

func (m *Memory) Put(_ context.Context, p Profile) error {
	if err := validSpeaker(p.Speaker); err != nil {
		return err
	}
	v, err := encodeProfile(p)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[string(profileKey(p.Speaker))] = v
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, speaker string) error {
	if err := validSpeaker(speaker); err != nil {
		return err
	}
	k := string(profileKey(speaker))
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[k]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, speaker)
	}
	delete(m.data, k)
	return nil
}

func (m *Memory) List(_ context.Context) iter.Seq2[Profile, error] {
	m.mu.RLock()
	snapshot := maps.Clone(m.data)
	m.mu.RUnlock()

	return func(yield func(Profile, error) bool) {
		for _, k := range slices.Sorted(maps.Keys(snapshot)) {
			p, err := decodeProfile([]byte(k), snapshot[k])
			if !yield(p, err) {
				return
			}
		}
	}
}

func (m *Memory) Close() error {
	return nil
}
