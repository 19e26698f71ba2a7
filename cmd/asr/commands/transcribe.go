package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/asr/pkg/cli"
	"github.com/haivivi/asr/pkg/recognizer"
	"github.com/haivivi/asr/pkg/storage"
	"github.com/haivivi/asr/pkg/transcript"
)

var transcribeFlags struct {
	audio        audioFlags
	format       string
	output       string
	grammarFile  string
	alternatives int
	speakers     bool
	archive      bool
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <file>",
	Short: "Transcribe a recording",
	Long: `Transcribe a WAV or raw 16-bit PCM recording ("-" reads stdin).

Formats:
  txt   the recognized text
  srt   subtitles, up to 7 words per cue
  json  one recognition result per line`,
	Args: cobra.ExactArgs(1),
	RunE: runTranscribe,
}

func init() {
	f := transcribeCmd.Flags()
	f.StringVarP(&transcribeFlags.format, "format", "f", "txt", "output format: txt, srt, json")
	f.StringVarP(&transcribeFlags.output, "output", "o", "", "output file (default stdout)")
	f.StringVar(&transcribeFlags.grammarFile, "grammar-file", "", "YAML or JSON list of phrases to restrict recognition to")
	f.IntVar(&transcribeFlags.alternatives, "alternatives", -1, "number of alternatives (default: the configured max_alternatives)")
	f.BoolVar(&transcribeFlags.speakers, "speakers", false, "identify enrolled speakers")
	f.BoolVar(&transcribeFlags.archive, "archive", false, "also store the transcript in the configured transcripts location")
	transcribeFlags.audio.register(transcribeCmd)
	rootCmd.AddCommand(transcribeCmd)
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := globalConfig
	format, err := transcript.ParseFormat(transcribeFlags.format)
	if err != nil {
		return err
	}

	model, err := openModel(ctx)
	if err != nil {
		return err
	}
	defer model.Release()

	alternatives := cfg.MaxAlternatives
	if transcribeFlags.alternatives >= 0 {
		alternatives = transcribeFlags.alternatives
	}
	opts := []recognizer.Option{
		recognizer.WithLogger(logger),
		recognizer.WithWords(true),
		recognizer.WithMaxAlternatives(alternatives),
	}
	if transcribeFlags.grammarFile != "" {
		grammar, err := cli.LoadPhrases(transcribeFlags.grammarFile)
		if err != nil {
			return err
		}
		opts = append(opts, recognizer.WithGrammar(grammar))
	}
	if transcribeFlags.speakers {
		spk, err := openSpeakerModel(ctx)
		if err != nil {
			return err
		}
		defer spk.Release()
		opts = append(opts, recognizer.WithSpeakerModel(spk))
	}

	sess, err := recognizer.New(model, float32(cfg.SampleRate), opts...)
	if err != nil {
		return err
	}
	defer sess.Close()

	pcm, closeAudio, err := transcribeFlags.audio.open(cmd, args[0], cfg.SampleRate)
	if err != nil {
		return err
	}
	defer closeAudio()

	tr, err := transcript.Transcribe(ctx, sess, pcm)
	if err != nil {
		return err
	}
	logger.Info("transcribed",
		"file", args[0],
		"audio", cli.FormatDuration(cli.AudioDuration(tr.Bytes, cfg.SampleRate)),
		"results", len(tr.Results))

	var buf bytes.Buffer
	if err := tr.Write(&buf, format); err != nil {
		return err
	}
	if transcribeFlags.archive {
		if err := archiveTranscript(cmd, args[0], format, buf.Bytes()); err != nil {
			return err
		}
	}
	if transcribeFlags.output != "" {
		return os.WriteFile(transcribeFlags.output, buf.Bytes(), 0644)
	}
	_, err = cmd.OutOrStdout().Write(buf.Bytes())
	return err
}

func archiveTranscript(cmd *cobra.Command, file string, format transcript.Format, data []byte) error {
	uri := globalConfig.Transcripts
	if uri == "" {
		p, err := cli.NewPaths()
		if err != nil {
			return err
		}
		uri = p.TranscriptsDir()
	}
	st, err := storage.Open(uri)
	if err != nil {
		return err
	}
	name := "stdin"
	if file != "-" {
		name = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	}
	name += "." + string(format)
	if err := storage.Save(cmd.Context(), st, name, data); err != nil {
		return fmt.Errorf("archive transcript: %w", err)
	}
	cli.PrintSuccess(cmd.ErrOrStderr(), "archived %s (%s) to %s", name, cli.FormatBytes(int64(len(data))), uri)
	return nil
}
