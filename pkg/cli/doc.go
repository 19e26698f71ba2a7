// Package cli provides the configuration, logging and output helpers of
// the asr command.
//
// Configuration is a YAML file, ~/.asr/config.yaml by default:
//
//	engine: kaldi
//	model: /opt/models/en-us
//	sample_rate: 16000
//	words: true
//	server:
//	  listen: ":2700"
//	speakers:
//	  model: /opt/models/spk
//	log:
//	  level: debug
//
// Example usage:
//
//	cfg, err := cli.LoadConfig("")
//	logger, err := cli.NewLogger(os.Stderr, cfg.Log)
//	cli.Output(profiles, cli.OutputOptions{Format: cli.FormatTable})
package cli
