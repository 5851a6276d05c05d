package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// factorsCmd represents the factors command
var factorsCmd = &cobra.Command{
	Use:   "factors",
	Short: "List the factor library",
	Long: `Lists every factor in the library with its category and the date of
its latest archived return.

Example:
  go run ./cmd/labfolio factors`,
	RunE: runFactors,
}

func init() {
	rootCmd.AddCommand(factorsCmd)
}

func runFactors(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	factors, err := a.factors.List(ctx)
	if err != nil {
		return fmt.Errorf("list factors: %w", err)
	}

	PrintHeader(fmt.Sprintf("Factor Library (%d)", len(factors)))
	widths := []int{10, 28, 9, 12}
	PrintTableHeader([]string{"ID", "Name", "Category", "Latest"}, widths)
	for _, f := range factors {
		latest := "-"
		if d, ok, err := a.returns.LatestDate(ctx, f.ID); err == nil && ok {
			latest = d.Format("2006-01-02")
		}
		PrintTableRow([]string{f.ID, f.Name, string(f.Category), latest}, widths)
	}

	return nil
}
