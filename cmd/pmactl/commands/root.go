// Package commands implements CLI commands for pmactl.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	version string
	rootCmd = &cobra.Command{
		Use:   "pmactl",
		Short: "Drive and inspect a Packed Memory Array",
		Long: `pmactl builds an in-memory Packed Memory Array and runs operations
against it: bulk inserts, sorted range scans, batch loads, and
latency benchmarks.`,
	}
)

// Execute runs the CLI.
func Execute(v string) error {
	version = v

	rootCmd.AddCommand(
		versionCmd(),
		insertCmd(),
		rangeCmd(),
		loadCmd(),
		benchCmd(),
		serveCmd(),
	)

	return rootCmd.Execute()
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("pmactl version %s\n", version)
		},
	}
}
