package risk

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/labfolio/backend/internal/contracts"
)

// TradingDays annualizes daily statistics
const TradingDays = 252

// Config holds risk summary parameters
type Config struct {
	Confidence float64
	Scenarios  []contracts.Scenario
}

// DefaultConfig is 95% VaR with no stress scenarios
func DefaultConfig() Config {
	return Config{Confidence: 0.95}
}

// Engine derives a risk summary from a fitted factor model.
// Pure calculator: inputs are assembled by the analysis service.
type Engine struct {
	cfg Config
}

// NewEngine creates a risk engine
func NewEngine(cfg Config) *Engine {
	if cfg.Confidence <= 0 || cfg.Confidence >= 1 {
		cfg.Confidence = 0.95
	}
	return &Engine{cfg: cfg}
}

// Summarize computes tail risk of the portfolio series and the
// idiosyncratic part left in the residuals
func (e *Engine) Summarize(portfolio []float64, fit *contracts.FitResult) (*contracts.RiskSummary, error) {
	if len(portfolio) < 2 {
		return nil, fmt.Errorf("risk summary needs 2 returns, got %d: %w",
			len(portfolio), contracts.ErrInsufficientObservations)
	}

	sd := stat.StdDev(portfolio, nil)
	out := &contracts.RiskSummary{
		Historical:      HistoricalVaR(portfolio, e.cfg.Confidence),
		Parametric:      ParametricVaR(portfolio, e.cfg.Confidence),
		Volatility:      sd * math.Sqrt(TradingDays),
		MaxDrawdown:     MaxDrawdown(portfolio),
		StressScenarios: e.StressTest(fit, e.cfg.Scenarios),
	}
	if resid := fit.Residuals.Values(); len(resid) > 1 {
		out.TrackingError = stat.StdDev(resid, nil) * math.Sqrt(TradingDays)
	}
	return out, nil
}

// MaxDrawdown is the largest peak-to-trough decline of the compounded series
func MaxDrawdown(returns []float64) float64 {
	wealth, peak, worst := 1.0, 1.0, 0.0
	for _, r := range returns {
		wealth *= 1 + r
		if wealth > peak {
			peak = wealth
		}
		if dd := (peak - wealth) / peak; dd > worst {
			worst = dd
		}
	}
	return worst
}

// StressTest applies factor shocks through the fitted betas.
// Factors missing from a scenario are left unshocked; "*" shocks every factor.
func (e *Engine) StressTest(fit *contracts.FitResult, scenarios []contracts.Scenario) []contracts.StressResult {
	if len(scenarios) == 0 {
		return nil
	}

	out := make([]contracts.StressResult, 0, len(scenarios))
	for _, sc := range scenarios {
		res := contracts.StressResult{Name: sc.Name, Contributions: make(map[string]float64)}
		for _, b := range fit.Betas {
			shock, ok := sc.Shocks[b.FactorID]
			if !ok {
				if shock, ok = sc.Shocks["*"]; !ok {
					continue
				}
			}
			c := b.Coefficient * shock
			res.Contributions[b.FactorID] = c
			res.Impact += c
		}
		out = append(out, res)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Impact < out[j].Impact })
	return out
}
