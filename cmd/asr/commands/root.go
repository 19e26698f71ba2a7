package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/asr/pkg/cli"
	"github.com/haivivi/asr/pkg/enroll"
	"github.com/haivivi/asr/pkg/recognizer"
	"github.com/haivivi/asr/pkg/voiceprint"
)

var (
	// Global flags
	configPath string
	logLevel   string
	logFormat  string
	engineName string
	modelDir   string
	verbose    bool

	// Loaded before every command runs
	globalConfig *cli.Config
	logger       = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "asr",
	Short: "Streaming speech recognition",
	Long: `asr - streaming speech recognition with speaker identification.

Models are loaded by a registered engine from a model directory. Both come
from the configuration file (~/.asr/config.yaml) or the --engine and
--model flags.

Examples:
  # Transcribe a recording to subtitles
  asr transcribe meeting.wav --format srt -o meeting.srt

  # Serve recognition over websocket on :2700
  asr serve

  # Enroll a speaker and identify speakers in results
  asr speaker enroll alice alice-1.wav alice-2.wav
  asr transcribe call.wav --speakers --format json`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&configPath, "config", "", "config file (default ~/.asr/config.yaml)")
	f.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	f.StringVar(&logFormat, "log-format", "", "log format: text, json")
	f.StringVar(&engineName, "engine", "", "recognition engine")
	f.StringVar(&modelDir, "model", "", "acoustic model directory")
	f.BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logs)")
}

func initConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := cli.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if engineName != "" {
		cfg.Engine = engineName
	}
	if modelDir != "" {
		cfg.Model = modelDir
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	l, err := cli.NewLogger(cmd.ErrOrStderr(), cfg.Log)
	if err != nil {
		return err
	}
	globalConfig, logger = cfg, l
	return nil
}

func provider() (recognizer.Provider, error) {
	if globalConfig.Engine == "" {
		return nil, fmt.Errorf("no engine configured (use --engine; available: %s)", available())
	}
	return recognizer.Lookup(globalConfig.Engine)
}

func available() string {
	if names := recognizer.Engines(); len(names) > 0 {
		return strings.Join(names, ", ")
	}
	return "none"
}

func openModel(ctx context.Context) (*recognizer.Model, error) {
	p, err := provider()
	if err != nil {
		return nil, err
	}
	if globalConfig.Model == "" {
		return nil, errors.New("no model directory configured (use --model)")
	}
	return p.OpenModel(ctx, globalConfig.Model)
}

func openSpeakerDB() (enroll.Store, error) {
	return enroll.OpenBadger(enroll.BadgerOptions{Dir: globalConfig.Speakers.DB, Logger: logger})
}

// openSpeakerModel loads the configured speaker model with the speakers
// enrolled in the database.
func openSpeakerModel(ctx context.Context) (*voiceprint.SpeakerModel, error) {
	p, err := provider()
	if err != nil {
		return nil, err
	}
	if globalConfig.Speakers.Model == "" {
		return nil, errors.New("no speaker model configured (set speakers.model)")
	}
	db, err := openSpeakerDB()
	if err != nil {
		return nil, err
	}
	defer db.Close()
	enrolled, err := enroll.Load(ctx, db)
	if err != nil {
		return nil, err
	}
	return p.OpenSpeakerModel(ctx, globalConfig.Speakers.Model, enrolled)
}
