package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

const (
	// DefaultBaseDir is the base configuration directory name
	DefaultBaseDir = ".asr"
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.yaml"
	// DefaultListen is the default server address
	DefaultListen = ":2700"
)

// Config is the configuration of the asr command.
type Config struct {
	// Engine is the registered recognition engine name
	Engine string `yaml:"engine,omitempty" json:"engine,omitempty"`

	// Model is the acoustic model directory
	Model string `yaml:"model,omitempty" json:"model,omitempty"`

	// SampleRate is the rate sessions run at
	SampleRate int `yaml:"sample_rate,omitempty" json:"sample_rate,omitempty"`

	// MaxAlternatives selects N-best results when positive
	MaxAlternatives int `yaml:"max_alternatives,omitempty" json:"max_alternatives,omitempty"`

	// Words enables per-word times in results
	Words bool `yaml:"words,omitempty" json:"words,omitempty"`

	Server   ServerConfig  `yaml:"server,omitempty" json:"server,omitempty"`
	Speakers SpeakerConfig `yaml:"speakers,omitempty" json:"speakers,omitempty"`
	Log      LogConfig     `yaml:"log,omitempty" json:"log,omitempty"`

	// Transcripts is the storage URI transcripts and server results are
	// archived to (a directory, file:// or s3:// URI)
	Transcripts string `yaml:"transcripts,omitempty" json:"transcripts,omitempty"`

	path string
}

// ServerConfig configures the streaming server.
type ServerConfig struct {
	Listen string `yaml:"listen,omitempty" json:"listen,omitempty"`

	// ReadLimit is the size limit of one client message in bytes
	ReadLimit int64 `yaml:"read_limit,omitempty" json:"read_limit,omitempty"`
}

// SpeakerConfig configures speaker identification.
type SpeakerConfig struct {
	// Model is the speaker model directory; empty disables identification
	Model string `yaml:"model,omitempty" json:"model,omitempty"`

	// DB is the enrolled speaker database directory
	DB string `yaml:"db,omitempty" json:"db,omitempty"`
}

// LoadConfig loads the configuration at path, or at the default location
// when path is empty. A missing file is created with the defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		p, err := NewPaths()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = p.ConfigFile()
	}

	cfg := &Config{path: path}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
		cfg.applyDefaults()
		return cfg, cfg.Save()
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}
	if c.Server.ReadLimit == 0 {
		c.Server.ReadLimit = 1 << 20
	}
	if c.Speakers.DB == "" {
		c.Speakers.DB = filepath.Join(filepath.Dir(c.path), "speakers")
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Path returns the config file path
func (c *Config) Path() string {
	return c.path
}

// Set sets the setting named by its YAML key path, such as
// "server.listen", and saves the configuration.
func (c *Config) Set(key, value string) error {
	var err error
	switch strings.ToLower(key) {
	case "engine":
		c.Engine = value
	case "model":
		c.Model = value
	case "sample_rate":
		c.SampleRate, err = strconv.Atoi(value)
	case "max_alternatives":
		c.MaxAlternatives, err = strconv.Atoi(value)
	case "words":
		c.Words, err = strconv.ParseBool(value)
	case "transcripts":
		c.Transcripts = value
	case "server.listen":
		c.Server.Listen = value
	case "server.read_limit":
		c.Server.ReadLimit, err = strconv.ParseInt(value, 10, 64)
	case "speakers.model":
		c.Speakers.Model = value
	case "speakers.db":
		c.Speakers.DB = value
	case "log.level":
		_, err = ParseLevel(value)
		c.Log.Level = value
	case "log.format":
		c.Log.Format = value
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return c.Save()
}
