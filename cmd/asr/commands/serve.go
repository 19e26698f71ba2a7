package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haivivi/asr/pkg/server"
	"github.com/haivivi/asr/pkg/storage"
)

var serveFlags struct {
	listen   string
	speakers bool
	archive  bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve streaming recognition over websocket",
	Long: `Serve streaming recognition over websocket.

Clients stream 16-bit mono PCM in binary messages and receive a JSON
result per message. A {"config": {...}} text message sets sample_rate,
max_alternatives, words and grammar; {"eof": 1} returns the final result
and closes the stream.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		cfg := globalConfig

		model, err := openModel(ctx)
		if err != nil {
			return err
		}
		defer model.Release()

		opts := []server.Option{
			server.WithLogger(logger),
			server.WithModelRate(cfg.SampleRate),
			server.WithDefaults(server.Config{
				SampleRate:      cfg.SampleRate,
				MaxAlternatives: cfg.MaxAlternatives,
				Words:           cfg.Words,
			}),
			server.WithReadLimit(cfg.Server.ReadLimit),
		}
		if serveFlags.speakers {
			spk, err := openSpeakerModel(ctx)
			if err != nil {
				return err
			}
			defer spk.Release()
			opts = append(opts, server.WithSpeakerModel(spk))
		}
		if serveFlags.archive && cfg.Transcripts != "" {
			st, err := storage.Open(cfg.Transcripts)
			if err != nil {
				return err
			}
			opts = append(opts, server.WithArchive(st))
		}

		listen := cfg.Server.Listen
		if serveFlags.listen != "" {
			listen = serveFlags.listen
		}
		return server.New(model, opts...).ListenAndServe(ctx, listen)
	},
}

func init() {
	f := serveCmd.Flags()
	f.StringVarP(&serveFlags.listen, "listen", "l", "", "listen address (default: server.listen, :2700)")
	f.BoolVar(&serveFlags.speakers, "speakers", false, "identify enrolled speakers")
	f.BoolVar(&serveFlags.archive, "archive", false, "store results in the configured transcripts location")
	rootCmd.AddCommand(serveCmd)
}
