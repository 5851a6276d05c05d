package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/labfolio/backend/internal/analysis"
	"github.com/wonny/labfolio/backend/internal/contracts"
	"github.com/wonny/labfolio/backend/internal/holdings"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one factor model analysis",
	Long: `Runs a factor model analysis and prints the fit and attribution.

Holdings come either from a registered portfolio (--portfolio) or a local
CSV file with yf_ticker,quantity columns (--holdings). Factors come from
--factors or a named preset (--preset).

Example:
  go run ./cmd/labfolio analyze --portfolio <uuid> --preset ff3
  go run ./cmd/labfolio analyze --holdings ./my.csv --factors MKT,SMB,HML --start 2023-01-01 --end 2023-12-31
  go run ./cmd/labfolio analyze --holdings ./my.csv --preset capm --json`,
	RunE: runAnalyze,
}

var (
	analyzePortfolio string
	analyzeHoldings  string
	analyzeFactors   []string
	analyzePreset    string
	analyzeStart     string
	analyzeEnd       string
	analyzeWeighting string
	analyzeJSON      bool
)

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzePortfolio, "portfolio", "", "registered portfolio id")
	analyzeCmd.Flags().StringVar(&analyzeHoldings, "holdings", "", "local holdings CSV (yf_ticker,quantity)")
	analyzeCmd.Flags().StringSliceVar(&analyzeFactors, "factors", nil, "comma-separated factor ids")
	analyzeCmd.Flags().StringVar(&analyzePreset, "preset", "", "factor model preset id")
	analyzeCmd.Flags().StringVar(&analyzeStart, "start", "", "start date (YYYY-MM-DD)")
	analyzeCmd.Flags().StringVar(&analyzeEnd, "end", "", "end date (YYYY-MM-DD)")
	analyzeCmd.Flags().StringVar(&analyzeWeighting, "weighting", "", "value or fixed (default from presets file)")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the raw result as JSON")
	analyzeCmd.MarkFlagsMutuallyExclusive("portfolio", "holdings")
	analyzeCmd.MarkFlagsMutuallyExclusive("factors", "preset")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	req := analysis.Request{
		PortfolioID: analyzePortfolio,
		FactorIDs:   analyzeFactors,
		Preset:      analyzePreset,
		Weighting:   analyzeWeighting,
	}

	var err error
	if req.Start, err = parseDateFlag("start", analyzeStart); err != nil {
		return err
	}
	if req.End, err = parseDateFlag("end", analyzeEnd); err != nil {
		return err
	}

	if analyzeHoldings != "" {
		f, err := os.Open(analyzeHoldings)
		if err != nil {
			return fmt.Errorf("open holdings file: %w", err)
		}
		req.Holdings, err = holdings.ParseCSV(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", analyzeHoldings, err)
		}
	}

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	engine, err := a.analysisService(cmd.Context())
	if err != nil {
		return err
	}

	result, err := engine.Analyze(cmd.Context(), req)
	if err != nil {
		PrintError(err.Error())
		return err
	}

	if analyzeJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printAnalysis(result)
	return nil
}

func parseDateFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(contracts.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s %q: expected YYYY-MM-DD", name, value)
	}
	return t, nil
}

func printAnalysis(a *contracts.Analysis) {
	fit := a.Fit

	PrintHeader("Factor Model Analysis")
	PrintKeyValue("Run ID", a.RunID, 14)
	if a.PortfolioID != "" {
		PrintKeyValue("Portfolio", a.PortfolioID, 14)
	}
	PrintKeyValue("Holdings", fmt.Sprintf("%d (%s weighted)", a.Holdings, a.Weighting), 14)
	PrintKeyValue("Factors", strings.Join(a.Spec.FactorIDs, ", "), 14)
	PrintKeyValue("Period", fmt.Sprintf("%s ~ %s", fit.Start.Format(contracts.DateLayout), fit.End.Format(contracts.DateLayout)), 14)
	PrintKeyValue("Observations", fmt.Sprintf("%d (df %d)", fit.Observations, fit.DegreesOfFreedom), 14)
	PrintKeyValue("R²", fmt.Sprintf("%.4f (adj %.4f)", fit.RSquared, fit.AdjRSquared), 14)
	PrintKeyValue("Resid. s.e.", fmt.Sprintf("%.6f", fit.ResidualStdErr), 14)
	PrintKeyValue("Condition", fmt.Sprintf("%.3g", fit.ConditionNumber), 14)

	fmt.Println()
	widths := []int{10, 12, 12, 10, 10}
	PrintTableHeader([]string{"Term", "Estimate", "Std. Err.", "t", "p"}, widths)
	PrintTableRow([]string{
		"alpha",
		fmt.Sprintf("%.6f", fit.Alpha),
		fmt.Sprintf("%.6f", fit.AlphaStdErr),
		fmt.Sprintf("%.3f", fit.AlphaTStat),
		fmt.Sprintf("%.4f", fit.AlphaPValue),
	}, widths)
	for _, b := range fit.Betas {
		PrintTableRow([]string{
			b.FactorID,
			fmt.Sprintf("%.6f", b.Coefficient),
			fmt.Sprintf("%.6f", b.StdErr),
			fmt.Sprintf("%.3f", b.TStat),
			fmt.Sprintf("%.4f", b.PValue),
		}, widths)
	}

	if rep := a.Attribution; rep != nil {
		PrintHeader("Return Attribution")
		widths := []int{10, 12, 12, 10}
		PrintTableHeader([]string{"Source", "Cumulative", "Variance", "Share"}, widths)

		factors := append([]contracts.FactorAttribution(nil), rep.Factors...)
		sort.SliceStable(factors, func(i, j int) bool {
			return factors[i].VarianceShare > factors[j].VarianceShare
		})
		for _, f := range factors {
			PrintTableRow([]string{
				f.FactorID,
				fmt.Sprintf("%+.6f", f.Cumulative),
				fmt.Sprintf("%.3g", f.VarianceContribution),
				fmt.Sprintf("%.1f%%", f.VarianceShare*100),
			}, widths)
		}
		PrintTableRow([]string{"alpha", fmt.Sprintf("%+.6f", rep.CumulativeAlpha), "", ""}, widths)
		PrintTableRow([]string{
			"residual",
			fmt.Sprintf("%+.6f", rep.CumulativeResidual),
			fmt.Sprintf("%.3g", rep.ResidualVariance),
			fmt.Sprintf("%.1f%%", rep.ResidualShare*100),
		}, widths)
		PrintSeparator()
		PrintTableRow([]string{"actual", fmt.Sprintf("%+.6f", rep.ActualCumulative), fmt.Sprintf("%.3g", rep.TotalVariance), ""}, widths)
	}

	if r := a.Risk; r != nil {
		PrintHeader("Risk")
		PrintKeyValue(fmt.Sprintf("VaR %.0f%% (hist)", r.Historical.Confidence*100), fmt.Sprintf("%.4f  CVaR %.4f", r.Historical.VaR, r.Historical.CVaR), 16)
		PrintKeyValue(fmt.Sprintf("VaR %.0f%% (norm)", r.Parametric.Confidence*100), fmt.Sprintf("%.4f  CVaR %.4f", r.Parametric.VaR, r.Parametric.CVaR), 16)
		PrintKeyValue("Volatility", fmt.Sprintf("%.2f%% annualized", r.Volatility*100), 16)
		PrintKeyValue("Tracking error", fmt.Sprintf("%.2f%% annualized", r.TrackingError*100), 16)
		PrintKeyValue("Max drawdown", fmt.Sprintf("%.2f%%", r.MaxDrawdown*100), 16)
		for _, sc := range r.StressScenarios {
			PrintKeyValue("Stress "+sc.Name, fmt.Sprintf("%+.2f%%", sc.Impact*100), 16)
		}
	}

	fmt.Println()
	for _, w := range a.Warnings {
		PrintWarning(w)
	}
	PrintSuccess(fmt.Sprintf("Completed in %s", a.Duration.Round(time.Millisecond)))
}
