package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type speakers []string

func (s speakers) Table() Table {
	t := Table{Headers: []string{"SPEAKER"}}
	for _, name := range s {
		t.Rows = append(t.Rows, []string{name})
	}
	return t
}

func TestOutput(t *testing.T) {
	data := map[string]any{"speaker": "alice", "utterances": 3}
	tests := []struct {
		format OutputFormat
		want   string
	}{
		{FormatJSON, `"speaker": "alice"`},
		{FormatYAML, "speaker: alice"},
		{"", "utterances: 3"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := Output(data, OutputOptions{Format: tt.format, Writer: &buf}); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestOutput_Table(t *testing.T) {
	var buf bytes.Buffer
	if err := Output(speakers{"alice", "bob"}, OutputOptions{Format: FormatTable, Writer: &buf}); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"SPEAKER", "alice", "bob"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("table missing %q:\n%s", want, buf.String())
		}
	}

	if err := Output(42, OutputOptions{Format: FormatTable, Writer: &buf}); err == nil {
		t.Error("Output should reject non-tabular values as tables")
	}
	if err := Output(42, OutputOptions{Format: "xml", Writer: &buf}); err == nil {
		t.Error("Output should reject unknown formats")
	}
}

func TestOutput_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	if err := Output([]int{1, 2}, OutputOptions{Format: FormatJSON, File: path}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "1") {
		t.Errorf("file = %q", data)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Millisecond, "500ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1m30.0s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.00 KB"},
		{3 * 1024 * 1024, "3.00 MB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.n); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestAudioDuration(t *testing.T) {
	if got := AudioDuration(64000, 16000); got != 2*time.Second {
		t.Errorf("AudioDuration = %v, want 2s", got)
	}
	if got := AudioDuration(100, 0); got != 0 {
		t.Errorf("AudioDuration with rate 0 = %v", got)
	}
}

func TestLoadPhrases(t *testing.T) {
	dir := t.TempDir()
	yml := filepath.Join(dir, "phrases.yaml")
	os.WriteFile(yml, []byte("- yes\n- no\n- call mom\n"), 0600)
	js := filepath.Join(dir, "phrases.json")
	os.WriteFile(js, []byte(`["yes", "no"]`), 0600)
	empty := filepath.Join(dir, "empty.yaml")
	os.WriteFile(empty, []byte("[]"), 0600)

	if got, err := LoadPhrases(yml); err != nil || got != `["yes","no","call mom"]` {
		t.Errorf("LoadPhrases(yaml) = %q, %v", got, err)
	}
	if got, err := LoadPhrases(js); err != nil || got != `["yes","no"]` {
		t.Errorf("LoadPhrases(json) = %q, %v", got, err)
	}
	if _, err := LoadPhrases(empty); err == nil {
		t.Error("LoadPhrases should reject an empty list")
	}
	if _, err := LoadPhrases(filepath.Join(dir, "missing")); err == nil {
		t.Error("LoadPhrases should fail on a missing file")
	}
}

func TestPaths(t *testing.T) {
	p := &Paths{HomeDir: "/home/test"}
	if got := p.ConfigFile(); got != filepath.Join("/home/test", ".asr", "config.yaml") {
		t.Errorf("ConfigFile = %q", got)
	}
	if got := p.TranscriptsDir(); got != filepath.Join("/home/test", ".asr", "transcripts") {
		t.Errorf("TranscriptsDir = %q", got)
	}
}
