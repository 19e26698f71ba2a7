package cli

import (
	"os"
	"path/filepath"
)

// Paths provides access to the asr directory structure
type Paths struct {
	// HomeDir is the user's home directory
	HomeDir string
}

// NewPaths creates a Paths for the current user
func NewPaths() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{HomeDir: home}, nil
}

// BaseDir returns the base directory (~/.asr)
func (p *Paths) BaseDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir)
}

// ConfigFile returns the config file path (~/.asr/config.yaml)
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.BaseDir(), DefaultConfigFile)
}

// TranscriptsDir returns the default transcript directory
// (~/.asr/transcripts)
func (p *Paths) TranscriptsDir() string {
	return filepath.Join(p.BaseDir(), "transcripts")
}
