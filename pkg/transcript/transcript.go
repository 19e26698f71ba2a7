// Package transcript turns recorded audio into text, subtitles or JSON
// results by running it through a recognition session.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/haivivi/asr/pkg/recognizer"
)

// WordsPerCue is the number of words per subtitle cue.
const WordsPerCue = 7

// ReadSize is the number of bytes read from the audio per step.
const ReadSize = 4000

// Format is an output format.
type Format string

const (
	FormatText Format = "txt"
	FormatSRT  Format = "srt"
	FormatJSON Format = "json"
)

// ParseFormat parses an output format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatSRT, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("transcript: unknown format %q (want txt, srt or json)", s)
}

// Recognizer is the part of a session a transcription drives.
// *recognizer.Session implements it.
type Recognizer interface {
	AcceptPCM16(data []byte) (bool, error)
	Result() (string, error)
	FinalResult() (string, error)
}

// Transcript is the result of transcribing one recording.
type Transcript struct {
	// Raw holds the session results in order, the final one last.
	Raw []string

	// Results holds the decoded Raw.
	Results []recognizer.Response

	// Bytes is the number of audio bytes read.
	Bytes int64
}

// Transcribe feeds 16-bit little-endian mono PCM from r into rec, taking a
// result at every endpoint and the final result at the end of the audio.
// The session must be configured with word times for subtitles.
func Transcribe(ctx context.Context, rec Recognizer, r io.Reader) (*Transcript, error) {
	t := &Transcript{}
	buf := make([]byte, ReadSize)
	for {
		if err := ctx.Err(); err != nil {
			return t, err
		}
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			t.Bytes += int64(n)
			endpoint, aerr := rec.AcceptPCM16(buf[:n])
			if aerr != nil {
				return t, aerr
			}
			if endpoint {
				res, rerr := rec.Result()
				if rerr != nil {
					return t, rerr
				}
				if perr := t.add(res); perr != nil {
					return t, perr
				}
			}
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return t, fmt.Errorf("transcript: read audio: %w", err)
		}
	}
	res, err := rec.FinalResult()
	if err != nil {
		return t, err
	}
	return t, t.add(res)
}

func (t *Transcript) add(raw string) error {
	r, err := recognizer.ParseResponse(raw)
	if err != nil {
		return fmt.Errorf("transcript: decode result: %w", err)
	}
	t.Raw = append(t.Raw, raw)
	t.Results = append(t.Results, r)
	return nil
}

// best returns the text and words of a result, the top alternative of
// N-best results.
func best(r recognizer.Response) (string, []recognizer.Word) {
	if len(r.Alternatives) == 0 {
		return r.Text, r.Result
	}
	alt := r.Alternatives[0]
	words := make([]recognizer.Word, len(alt.Result))
	for i, w := range alt.Result {
		words[i] = recognizer.Word{Conf: 1, End: w.End, Start: w.Start, Word: w.Word}
	}
	return alt.Text, words
}

// Text returns the texts of all results joined by spaces.
func (t *Transcript) Text() string {
	var parts []string
	for _, r := range t.Results {
		if text, _ := best(r); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// Cue is one subtitle.
type Cue struct {
	Index      int
	Start, End time.Duration
	Text       string
}

// Cues splits the word results into subtitles of up to WordsPerCue words.
// Results without word times are skipped.
func (t *Transcript) Cues() []Cue {
	var cues []Cue
	for _, r := range t.Results {
		_, ws := best(r)
		for i := 0; i < len(ws); i += WordsPerCue {
			line := ws[i:min(i+WordsPerCue, len(ws))]
			words := make([]string, len(line))
			for j, w := range line {
				words[j] = w.Word
			}
			cues = append(cues, Cue{
				Index: len(cues) + 1,
				Start: seconds(line[0].Start),
				End:   seconds(line[len(line)-1].End),
				Text:  strings.Join(words, " "),
			})
		}
	}
	return cues
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s*1000)) * time.Millisecond
}

// srtTime formats d as HH:MM:SS,mmm.
func srtTime(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d,%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}

// Write renders the transcript in format f.
func (t *Transcript) Write(w io.Writer, f Format) error {
	var err error
	switch f {
	case FormatText:
		_, err = fmt.Fprintln(w, t.Text())
	case FormatSRT:
		for _, c := range t.Cues() {
			if _, err = fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n", c.Index, srtTime(c.Start), srtTime(c.End), c.Text); err != nil {
				break
			}
		}
	case FormatJSON:
		for _, raw := range t.Raw {
			if _, err = fmt.Fprintln(w, raw); err != nil {
				break
			}
		}
	default:
		return fmt.Errorf("transcript: unknown format %q", f)
	}
	return err
}
