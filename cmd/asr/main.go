// Package main is the entry point for the asr CLI.
//
// Usage:
//
//	asr [flags] <command> [subcommand] [args]
//
// Commands:
//
//	serve       - Streaming recognition server (websocket)
//	transcribe  - Transcribe a recording to text, subtitles or JSON
//	speaker     - Speaker enrollment (enroll, list, remove, identify)
//	config      - Configuration (show, set, path)
//	version     - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/asr/cmd/asr/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
