package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "labfolio",
	Short: "Labfolio - portfolio factor model analysis",
	Long: `Labfolio Unified CLI

Regresses a portfolio's daily returns on a chosen set of factor returns,
reports alpha, betas and fit statistics, and attributes each day's return
to the factors.

Usage:
  go run ./cmd/labfolio [command]

Examples:
  go run ./cmd/labfolio api
  go run ./cmd/labfolio analyze --portfolio <uuid> --preset ff3
  go run ./cmd/labfolio refresh
  go run ./cmd/labfolio test-db --migrate`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (LOG_LEVEL=debug)")
}
