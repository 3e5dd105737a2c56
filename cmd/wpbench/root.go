package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wpbench",
		Short: "wpbench - benchmark the host a WordPress site runs on",
		Long: `wpbench measures the CPU, memory, disk, database, object cache and
outbound HTTP performance of a site's hosting environment.

Runs are scored from 0 to 100 against configurable target times and stored
so they can be compared over time.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentFlags().String("config", "", "Path to a .wpbench.yaml (default: search upward from the working directory)")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	// Add subcommands
	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newTestsCommand())
	cmd.AddCommand(newShowCommand())
	cmd.AddCommand(newHistoryCommand())
	cmd.AddCommand(newCompareCommand())
	cmd.AddCommand(newReportCommand())
	cmd.AddCommand(newRescoreCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newServeCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
