package attribution

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/labfolio/backend/internal/align"
	"github.com/wonny/labfolio/backend/internal/contracts"
	"github.com/wonny/labfolio/backend/pkg/logger"
)

// DefaultTolerance is the relative reconciliation tolerance
const DefaultTolerance = 1e-6

// Config holds attribution parameters
type Config struct {
	Target    string  // column holding the portfolio return
	Tolerance float64 // relative, scaled by max(1, |actual cumulative|)
}

// Calculator decomposes realized return and variance using a fitted model
type Calculator struct {
	cfg    Config
	logger *logger.Logger
}

// New creates a Calculator
func New(cfg Config, log *logger.Logger) *Calculator {
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultTolerance
	}
	return &Calculator{cfg: cfg, logger: log.WithField("module", "attribution")}
}

// Attribute splits every period's return into β_i·f_i,t + α + ε_t and sums
// the parts over the fitted range. A reconciliation gap beyond tolerance is
// attached to the report as a warning, never returned as an error.
func (c *Calculator) Attribute(fit *contracts.FitResult, table *align.Table) (*contracts.AttributionReport, error) {
	y, ok := table.Column(c.cfg.Target)
	if !ok {
		return nil, fmt.Errorf("target column %q missing from aligned table", c.cfg.Target)
	}
	n := table.Rows()
	if fit.Residuals.Len() != n {
		return nil, fmt.Errorf("fit has %d residuals for %d aligned periods", fit.Residuals.Len(), n)
	}

	factors := make([][]float64, len(fit.Betas))
	for j, b := range fit.Betas {
		col, ok := table.Column(b.FactorID)
		if !ok {
			return nil, fmt.Errorf("factor column %q missing from aligned table", b.FactorID)
		}
		factors[j] = col
	}

	resid := fit.Residuals.Values()
	report := &contracts.AttributionReport{
		Periods: make([]contracts.PeriodAttribution, n),
		Factors: make([]contracts.FactorAttribution, len(fit.Betas)),
	}
	for j, b := range fit.Betas {
		report.Factors[j] = contracts.FactorAttribution{FactorID: b.FactorID, Beta: b.Coefficient}
	}

	for t := 0; t < n; t++ {
		if !fit.Residuals.At(t).Date.Equal(table.Dates[t]) {
			return nil, fmt.Errorf("residual dated %s does not match aligned period %s",
				fit.Residuals.At(t).Date.Format(contracts.DateLayout), table.Dates[t].Format(contracts.DateLayout))
		}

		period := contracts.PeriodAttribution{
			Date:          table.Dates[t],
			Actual:        y[t],
			Alpha:         fit.Alpha,
			Contributions: make(map[string]float64, len(fit.Betas)),
			Residual:      resid[t],
		}
		for j, b := range fit.Betas {
			contrib := b.Coefficient * factors[j][t]
			period.Contributions[b.FactorID] = contrib
			report.Factors[j].Cumulative += contrib
		}
		report.Periods[t] = period

		report.CumulativeAlpha += fit.Alpha
		report.CumulativeResidual += resid[t]
		report.ActualCumulative += y[t]
	}

	c.decomposeVariance(report, y, resid, factors)
	c.reconcile(report)

	return report, nil
}

// decomposeVariance uses Var(r) = Σ β_i·Cov(f_i, r) + Var(ε), exact for OLS with intercept
func (c *Calculator) decomposeVariance(report *contracts.AttributionReport, y, resid []float64, factors [][]float64) {
	if len(y) < 2 {
		return
	}
	report.TotalVariance = stat.Variance(y, nil)
	report.ResidualVariance = stat.Variance(resid, nil)

	for j := range report.Factors {
		report.Factors[j].VarianceContribution = report.Factors[j].Beta * stat.Covariance(factors[j], y, nil)
	}
	if report.TotalVariance == 0 {
		return
	}
	for j := range report.Factors {
		report.Factors[j].VarianceShare = report.Factors[j].VarianceContribution / report.TotalVariance
	}
	report.ResidualShare = report.ResidualVariance / report.TotalVariance
}

func (c *Calculator) reconcile(report *contracts.AttributionReport) {
	reconstructed := report.CumulativeAlpha + report.CumulativeResidual
	for _, f := range report.Factors {
		reconstructed += f.Cumulative
	}

	diff := math.Abs(reconstructed - report.ActualCumulative)
	tol := c.cfg.Tolerance * math.Max(1, math.Abs(report.ActualCumulative))
	if diff <= tol {
		return
	}

	report.Mismatch = &contracts.AttributionMismatch{
		Actual:        report.ActualCumulative,
		Reconstructed: reconstructed,
		Difference:    diff,
		Tolerance:     tol,
	}
	c.logger.WithFields(map[string]interface{}{
		"actual":        report.ActualCumulative,
		"reconstructed": reconstructed,
		"difference":    diff,
	}).Warn("Attribution does not reconcile")
}
