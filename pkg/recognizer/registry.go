package recognizer

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/haivivi/asr/pkg/voiceprint"
)

// Provider loads models from a directory for one decoding engine.
type Provider interface {
	// OpenModel loads the acoustic model in dir.
	OpenModel(ctx context.Context, dir string) (*Model, error)

	// OpenSpeakerModel loads the speaker model in dir and enrolls the
	// given speakers.
	OpenSpeakerModel(ctx context.Context, dir string, enrolled []voiceprint.Enrollment) (*voiceprint.SpeakerModel, error)
}

var (
	providersMu sync.RWMutex
	providers   = map[string]Provider{}
)

// Register makes an engine available by name. It panics if called twice
// with the same name or with a nil provider.
func Register(name string, p Provider) {
	providersMu.Lock()
	defer providersMu.Unlock()
	if p == nil {
		panic("recognizer: Register provider is nil")
	}
	if _, dup := providers[name]; dup {
		panic("recognizer: Register called twice for engine " + name)
	}
	providers[name] = p
}

// Lookup returns the provider registered under name.
func Lookup(name string) (Provider, error) {
	providersMu.RLock()
	defer providersMu.RUnlock()
	p, ok := providers[name]
	if !ok {
		return nil, fmt.Errorf("recognizer: unknown engine %q (forgotten import?)", name)
	}
	return p, nil
}

// Open loads the model in dir with the named engine.
func Open(ctx context.Context, engine, dir string) (*Model, error) {
	p, err := Lookup(engine)
	if err != nil {
		return nil, err
	}
	return p.OpenModel(ctx, dir)
}

// Engines returns the sorted names of the registered engines.
func Engines() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
