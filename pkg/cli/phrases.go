package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// LoadPhrases loads a list of phrases from a YAML or JSON file and returns
// it as the JSON array a recognition grammar takes.
//
//   - yes
//   - no
//   - call mom
func LoadPhrases(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	// YAML is a superset of JSON.
	var phrases []string
	if err := yaml.Unmarshal(data, &phrases); err != nil {
		return "", fmt.Errorf("failed to parse phrases: %w", err)
	}
	if len(phrases) == 0 {
		return "", fmt.Errorf("no phrases in %s", path)
	}
	out, err := json.Marshal(phrases)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
