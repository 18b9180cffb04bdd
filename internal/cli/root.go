// Package cli implements the scriptdeck command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "scriptdeck",
	Short: "Launch scripts in persistent byobu sessions",
	Long: `scriptdeck inspects a Python script's argparse interface without
running it, composes a command from supplied argument values, and
launches it inside a persistent byobu terminal session.

Run "scriptdeck serve" to expose the same operations over HTTP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(runCmd)
}

// Execute runs the CLI and returns an exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
