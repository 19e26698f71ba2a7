package cli

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfig_NewConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "asr", "config.yaml")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", cfg.SampleRate)
	}
	if cfg.Server.Listen != DefaultListen {
		t.Errorf("Server.Listen = %q, want %q", cfg.Server.Listen, DefaultListen)
	}
	if want := filepath.Join(filepath.Dir(path), "speakers"); cfg.Speakers.DB != want {
		t.Errorf("Speakers.DB = %q, want %q", cfg.Speakers.DB, want)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("Config file should be created")
	}
}

func TestLoadConfig_Existing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `engine: fake
model: /models/en
max_alternatives: 3
words: true
server:
  listen: "127.0.0.1:9000"
log:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Engine != "fake" || cfg.Model != "/models/en" {
		t.Errorf("Engine, Model = %q, %q", cfg.Engine, cfg.Model)
	}
	if cfg.MaxAlternatives != 3 || !cfg.Words {
		t.Errorf("MaxAlternatives, Words = %d, %v", cfg.MaxAlternatives, cfg.Words)
	}
	if cfg.Server.Listen != "127.0.0.1:9000" {
		t.Errorf("Server.Listen = %q", cfg.Server.Listen)
	}
	if cfg.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want default 16000", cfg.SampleRate)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [1, 2"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("LoadConfig should fail on invalid YAML")
	}
}

func TestConfig_Set(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	for _, kv := range [][2]string{
		{"engine", "fake"},
		{"sample_rate", "8000"},
		{"words", "true"},
		{"server.listen", ":9999"},
		{"speakers.model", "/models/spk"},
	} {
		if err := cfg.Set(kv[0], kv[1]); err != nil {
			t.Fatalf("Set(%s, %s): %v", kv[0], kv[1], err)
		}
	}

	reloaded, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Engine != "fake" || reloaded.SampleRate != 8000 || !reloaded.Words {
		t.Errorf("reloaded = %+v", reloaded)
	}
	if reloaded.Server.Listen != ":9999" || reloaded.Speakers.Model != "/models/spk" {
		t.Errorf("reloaded = %+v", reloaded)
	}

	if err := cfg.Set("sample_rate", "fast"); err == nil {
		t.Error("Set should reject a non-numeric sample rate")
	}
	if err := cfg.Set("log.level", "loud"); err == nil {
		t.Error("Set should reject an unknown log level")
	}
	if err := cfg.Set("colour", "red"); err == nil {
		t.Error("Set should reject unknown settings")
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		cfg     LogConfig
		wantErr bool
		want    string
	}{
		{LogConfig{Level: "debug"}, false, "level=DEBUG"},
		{LogConfig{Level: "debug", Format: "json"}, false, `"level":"DEBUG"`},
		{LogConfig{Level: "nope"}, true, ""},
		{LogConfig{Format: "xml"}, true, ""},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		l, err := NewLogger(&buf, tt.cfg)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewLogger(%+v) error = %v, wantErr %v", tt.cfg, err, tt.wantErr)
			continue
		}
		if err != nil {
			continue
		}
		l.Debug("hello")
		if !strings.Contains(buf.String(), tt.want) {
			t.Errorf("NewLogger(%+v) wrote %q, want %q", tt.cfg, buf.String(), tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if l, err := ParseLevel("warn"); err != nil || l != slog.LevelWarn {
		t.Errorf("ParseLevel(warn) = %v, %v", l, err)
	}
}
