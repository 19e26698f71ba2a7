package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/haivivi/asr/cmd/asr/internal/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, build.String())
		if verbose {
			fmt.Fprintf(out, "  go:      %s\n", runtime.Version())
			fmt.Fprintf(out, "  config:  %s\n", globalConfig.Path())
			fmt.Fprintf(out, "  engines: %s\n", available())
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
