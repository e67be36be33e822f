// Package cmd defines the CLI commands for the sitegauge executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitegauge",
		Short: "Crawls a website and audits every page for health signals.",
		Long: `sitegauge crawls a website within bounded limits and runs a
multi-probe audit against each visited page: accessibility, markup
validity, style complexity, page vitals and a carbon estimate. Results
reduce to per-page and aggregate 0-100 scores written as JSON reports.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional, env vars apply either way)")
	cmd.AddCommand(newAuditCmd())

	return cmd
}

// Execute is the main entry point. A fatal top-level failure (such as the
// browser refusing to launch) terminates the process with non-zero status.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "sitegauge: %v\n", err)
		os.Exit(1)
	}
}
