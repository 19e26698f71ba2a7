package transcript

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/haivivi/asr/pkg/recognizer"
	"github.com/haivivi/asr/pkg/recognizer/recognizertest"
)

func session(t *testing.T) *recognizer.Session {
	t.Helper()
	e := recognizertest.New([]recognizertest.Word{
		{Word: "hello", Start: 0.3, End: 0.9},
		{Word: "world", Start: 0.99, End: 1.5},
		{Word: "again", Start: 3.0, End: 3.6},
	})
	s, err := recognizer.New(e.Model(), 16000, recognizer.WithWords(true))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTranscribe(t *testing.T) {
	audio := make([]byte, 4*16000*2)
	tr, err := Transcribe(context.Background(), session(t), bytes.NewReader(audio))
	if err != nil {
		t.Fatal(err)
	}
	if tr.Bytes != int64(len(audio)) {
		t.Errorf("Bytes = %d, want %d", tr.Bytes, len(audio))
	}
	if len(tr.Results) != 2 {
		t.Fatalf("results = %v", tr.Raw)
	}
	if got := tr.Text(); got != "hello world again" {
		t.Errorf("Text = %q", got)
	}

	var srt bytes.Buffer
	if err := tr.Write(&srt, FormatSRT); err != nil {
		t.Fatal(err)
	}
	want := "1\n00:00:00,300 --> 00:00:01,500\nhello world\n\n" +
		"2\n00:00:03,000 --> 00:00:03,600\nagain\n\n"
	if srt.String() != want {
		t.Errorf("srt =\n%s\nwant\n%s", srt.String(), want)
	}

	var js bytes.Buffer
	if err := tr.Write(&js, FormatJSON); err != nil {
		t.Fatal(err)
	}
	if lines := strings.Split(strings.TrimSpace(js.String()), "\n"); len(lines) != 2 || !strings.Contains(lines[1], `"text":"again"`) {
		t.Errorf("json = %s", js.String())
	}
}

func TestTranscribeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Transcribe(ctx, session(t), bytes.NewReader(make([]byte, 8000))); err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestCuesSplit(t *testing.T) {
	var words []recognizer.Word
	for i := range 9 {
		words = append(words, recognizer.Word{Word: string(rune('a' + i)), Start: float64(i), End: float64(i) + 0.5})
	}
	tr := &Transcript{Results: []recognizer.Response{{BestPath: recognizer.BestPath{Result: words}}}}
	cues := tr.Cues()
	if len(cues) != 2 {
		t.Fatalf("cues = %+v", cues)
	}
	if cues[0].Text != "a b c d e f g" || cues[0].End != 6500*time.Millisecond {
		t.Errorf("cue 1 = %+v", cues[0])
	}
	if cues[1].Index != 2 || cues[1].Text != "h i" || cues[1].Start != 7*time.Second {
		t.Errorf("cue 2 = %+v", cues[1])
	}
}

func TestAlternatives(t *testing.T) {
	tr := &Transcript{Results: []recognizer.Response{{Alternatives: []recognizer.Alternative{
		{Confidence: -1, Text: "hello world", Result: []recognizer.AltWord{
			{Word: "hello", Start: 0.3, End: 0.9},
			{Word: "world", Start: 0.99, End: 1.5},
		}},
		{Confidence: -2, Text: "yellow world"},
	}}}}
	if got := tr.Text(); got != "hello world" {
		t.Errorf("Text = %q", got)
	}
	cues := tr.Cues()
	if len(cues) != 1 || cues[0].Text != "hello world" || cues[0].End != 1500*time.Millisecond {
		t.Errorf("cues = %+v", cues)
	}
}

func TestSRTTime(t *testing.T) {
	if got := srtTime(time.Hour + 2*time.Minute + 3*time.Second + 45*time.Millisecond); got != "01:02:03,045" {
		t.Errorf("srtTime = %q", got)
	}
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"txt", "SRT", "json"} {
		if _, err := ParseFormat(s); err != nil {
			t.Errorf("ParseFormat(%q): %v", s, err)
		}
	}
	if _, err := ParseFormat("vtt"); err == nil {
		t.Error("ParseFormat(vtt) succeeded")
	}
}
