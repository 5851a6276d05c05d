package risk

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/wonny/labfolio/backend/internal/contracts"
)

// =============================================================================
// VaR (Value at Risk)
// =============================================================================

// HistoricalVaR computes VaR and CVaR by historical simulation.
// Losses are reported as positive numbers; a tail without losses reports 0.
func HistoricalVaR(returns []float64, confidence float64) contracts.VaRResult {
	if len(returns) == 0 {
		return contracts.VaRResult{Method: "historical", Confidence: confidence}
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	// (1 - confidence) quantile, losses first
	idx := int(math.Floor((1 - confidence) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	return contracts.VaRResult{
		Method:     "historical",
		Confidence: confidence,
		VaR:        loss(sorted[idx]),
		CVaR:       loss(stat.Mean(sorted[:idx+1], nil)),
	}
}

// ParametricVaR assumes normally distributed returns with the sample mean and std dev
func ParametricVaR(returns []float64, confidence float64) contracts.VaRResult {
	out := contracts.VaRResult{Method: "parametric", Confidence: confidence}
	if len(returns) < 2 {
		return out
	}

	mean, sd := stat.MeanStdDev(returns, nil)
	if sd == 0 {
		out.VaR, out.CVaR = loss(mean), loss(mean)
		return out
	}

	std := distuv.UnitNormal
	z := std.Quantile(1 - confidence)

	out.VaR = loss(mean + z*sd)
	// E[r | r <= q] = mean - sd·φ(z)/(1-c)
	out.CVaR = loss(mean - sd*std.Prob(z)/(1-confidence))
	return out
}

func loss(r float64) float64 {
	if r < 0 {
		return -r
	}
	return 0
}
