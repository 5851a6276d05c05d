package commands

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

// refreshCmd represents the refresh command
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Append new factor returns to the archive",
	Long: `Runs the archive refresh once.

For every factor in the library, fetches adjusted closes for its proxy
ticker since the latest archived date (or over REFRESH_LOOKBACK_DAYS for a
new factor), derives daily returns and appends them. Existing rows are
never overwritten.

Example:
  go run ./cmd/labfolio refresh`,
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	started := time.Now()
	summary, err := a.refreshJob().Refresh(cmd.Context())
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	PrintHeader("Return Refresh")
	PrintKeyValue("Factors", fmt.Sprintf("%d", summary.Factors), 9)
	PrintKeyValue("Updated", fmt.Sprintf("%d", summary.Updated), 9)
	PrintKeyValue("Inserted", fmt.Sprintf("%d rows", summary.Inserted), 9)
	PrintKeyValue("Failed", fmt.Sprintf("%d", summary.Failed), 9)

	if len(summary.Errors) > 0 {
		fmt.Println()
		ids := make([]string, 0, len(summary.Errors))
		for id := range summary.Errors {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			PrintWarning(fmt.Sprintf("%s: %s", id, summary.Errors[id]))
		}
	}

	fmt.Println()
	PrintSuccess(fmt.Sprintf("Refresh completed in %.2fs", time.Since(started).Seconds()))
	return nil
}
