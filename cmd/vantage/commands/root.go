package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vantage",
	Short: "Vantage - momentum stock screening and position risk service",
	Long: `Vantage Unified CLI

Multi-stage screening funnel (SEPA and QM strategies) plus a
phase-based position risk monitor.

Usage:
  go run ./cmd/vantage [command]

Examples:
  go run ./cmd/vantage api
  go run ./cmd/vantage scan --top 10
  go run ./cmd/vantage monitor`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
