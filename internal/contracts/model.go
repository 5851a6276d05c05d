package contracts

import (
	"fmt"
	"time"
)

// Beta is one factor coefficient with its inference statistics
type Beta struct {
	FactorID    string  `json:"factor_id"`
	Coefficient float64 `json:"coefficient"`
	StdErr      float64 `json:"std_err"`
	TStat       float64 `json:"t_stat"`
	PValue      float64 `json:"p_value"`
}

// FitResult is the outcome of one OLS factor model fit
// ⭐ Ephemeral: recomputed per request, never persisted
type FitResult struct {
	Alpha            float64    `json:"alpha"`
	AlphaStdErr      float64    `json:"alpha_std_err"`
	AlphaTStat       float64    `json:"alpha_t_stat"`
	AlphaPValue      float64    `json:"alpha_p_value"`
	Betas            []Beta     `json:"betas"`
	RSquared         float64    `json:"r_squared"`
	AdjRSquared      float64    `json:"adj_r_squared"`
	ResidualStdErr   float64    `json:"residual_std_err"`
	Residuals        TimeSeries `json:"residuals"`
	Fitted           TimeSeries `json:"fitted"`
	Start            time.Time  `json:"start"`
	End              time.Time  `json:"end"`
	Observations     int        `json:"observations"`
	DegreesOfFreedom int        `json:"degrees_of_freedom"`
	ConditionNumber  float64    `json:"condition_number"`
}

// Beta returns the coefficient for factorID
func (f *FitResult) Beta(factorID string) (Beta, bool) {
	for _, b := range f.Betas {
		if b.FactorID == factorID {
			return b, true
		}
	}
	return Beta{}, false
}

// PeriodAttribution decomposes one period's portfolio return
type PeriodAttribution struct {
	Date          time.Time          `json:"date"`
	Actual        float64            `json:"actual"`
	Alpha         float64            `json:"alpha"`
	Contributions map[string]float64 `json:"contributions"`
	Residual      float64            `json:"residual"`
}

// FactorAttribution aggregates one factor over the fitted range
type FactorAttribution struct {
	FactorID             string  `json:"factor_id"`
	Beta                 float64 `json:"beta"`
	Cumulative           float64 `json:"cumulative"`
	VarianceContribution float64 `json:"variance_contribution"`
	VarianceShare        float64 `json:"variance_share"`
}

// AttributionMismatch is a non-fatal reconciliation warning
type AttributionMismatch struct {
	Actual        float64 `json:"actual"`
	Reconstructed float64 `json:"reconstructed"`
	Difference    float64 `json:"difference"`
	Tolerance     float64 `json:"tolerance"`
}

func (m *AttributionMismatch) String() string {
	return fmt.Sprintf("attribution mismatch: reconstructed %.10f vs actual %.10f (|diff| %.3g > %.3g)",
		m.Reconstructed, m.Actual, m.Difference, m.Tolerance)
}

// AttributionReport decomposes portfolio return and variance into factor,
// alpha and residual parts
type AttributionReport struct {
	Periods            []PeriodAttribution  `json:"periods"`
	Factors            []FactorAttribution  `json:"factors"`
	CumulativeAlpha    float64              `json:"cumulative_alpha"`
	CumulativeResidual float64              `json:"cumulative_residual"`
	ActualCumulative   float64              `json:"actual_cumulative"`
	TotalVariance      float64              `json:"total_variance"`
	ResidualVariance   float64              `json:"residual_variance"`
	ResidualShare      float64              `json:"residual_share"`
	Mismatch           *AttributionMismatch `json:"mismatch,omitempty"`
}

// Analysis is the caller-facing result of one analyze request
type Analysis struct {
	RunID       string             `json:"run_id"`
	PortfolioID string             `json:"portfolio_id,omitempty"`
	Spec        FactorModelSpec    `json:"spec"`
	Range       DateRange          `json:"range"`
	Holdings    int                `json:"holdings"`
	Weighting   string             `json:"weighting"`
	Fit         *FitResult         `json:"fit"`
	Attribution *AttributionReport `json:"attribution"`
	Risk        *RiskSummary       `json:"risk,omitempty"`
	Warnings    []string           `json:"warnings,omitempty"`
	GeneratedAt time.Time          `json:"generated_at"`
	Duration    time.Duration      `json:"duration_ns"`
}

// VaRResult reports value at risk; losses are positive fractions
type VaRResult struct {
	Method     string  `json:"method"`
	Confidence float64 `json:"confidence"`
	VaR        float64 `json:"var"`
	CVaR       float64 `json:"cvar"`
}

// Scenario is a set of one-day factor return shocks; "*" applies to every factor
type Scenario struct {
	Name   string             `yaml:"name" json:"name"`
	Shocks map[string]float64 `yaml:"shocks" json:"shocks"`
}

// StressResult is the portfolio return implied by a scenario through the betas
type StressResult struct {
	Name          string             `json:"name"`
	Impact        float64            `json:"impact"`
	Contributions map[string]float64 `json:"contributions"`
}

// RiskSummary is the tail risk of the analysed portfolio series.
// Volatility and TrackingError are annualized.
type RiskSummary struct {
	Historical      VaRResult      `json:"historical"`
	Parametric      VaRResult      `json:"parametric"`
	Volatility      float64        `json:"volatility"`
	TrackingError   float64        `json:"tracking_error"`
	MaxDrawdown     float64        `json:"max_drawdown"`
	StressScenarios []StressResult `json:"stress_scenarios,omitempty"`
}
