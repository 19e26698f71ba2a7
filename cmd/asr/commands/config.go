package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/asr/pkg/cli"
)

var configOutput string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and edit the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Output(globalConfig, cli.OutputOptions{Format: cli.OutputFormat(configOutput), Writer: cmd.OutOrStdout()})
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value, e.g. server.listen :2700",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Reload so flag overrides are not saved.
		cfg, err := cli.LoadConfig(globalConfig.Path())
		if err != nil {
			return err
		}
		if err := cfg.Set(args[0], args[1]); err != nil {
			return err
		}
		cli.PrintSuccess(cmd.OutOrStdout(), "%s = %s", args[0], args[1])
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), globalConfig.Path())
	},
}

func init() {
	configShowCmd.Flags().StringVarP(&configOutput, "output", "o", "yaml", "output format: yaml, json")
	configCmd.AddCommand(configShowCmd, configSetCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}
