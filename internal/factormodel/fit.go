package factormodel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/wonny/labfolio/backend/internal/align"
	"github.com/wonny/labfolio/backend/internal/contracts"
)

// DefaultConditionThreshold bounds the condition number of the column-scaled design
const DefaultConditionThreshold = 1e10

// Config holds fitter parameters
type Config struct {
	Target             string  // column holding the dependent series
	ConditionThreshold float64 // designs above this are rejected as degenerate
}

// Fitter runs OLS factor regressions with an intercept
type Fitter struct {
	cfg Config
}

// New creates a Fitter
func New(cfg Config) *Fitter {
	if cfg.ConditionThreshold <= 0 {
		cfg.ConditionThreshold = DefaultConditionThreshold
	}
	return &Fitter{cfg: cfg}
}

// Fit regresses the target column on the spec's factor columns:
//
//	y = β0 + Σ βi·fi + ε
//
// The design is column-equilibrated and checked for near-singularity before
// the QR solve. An empty spec is allowed and reduces to alpha = mean(y).
func (f *Fitter) Fit(table *align.Table, spec contracts.FactorModelSpec) (*contracts.FitResult, error) {
	if spec.K() > 0 {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
	}

	y, ok := table.Column(f.cfg.Target)
	if !ok {
		return nil, fmt.Errorf("target column %q missing from aligned table", f.cfg.Target)
	}

	n, k := table.Rows(), spec.K()
	p := k + 1
	if n <= p {
		return nil, fmt.Errorf("%d observations for %d factors plus intercept: %w",
			n, k, contracts.ErrInsufficientObservations)
	}

	factors := make([][]float64, k)
	for j, id := range spec.FactorIDs {
		col, ok := table.Column(id)
		if !ok {
			return nil, fmt.Errorf("factor column %q missing from aligned table", id)
		}
		if isConstant(col) {
			return nil, fmt.Errorf("factor %s has zero variance over the sample: %w", id, contracts.ErrDegenerateModel)
		}
		factors[j] = col
	}

	// Design with unit-norm columns: X = Xs·D⁻¹
	xs := mat.NewDense(n, p, nil)
	norms := make([]float64, p)
	for i := 0; i < n; i++ {
		xs.Set(i, 0, 1)
		for j := 0; j < k; j++ {
			xs.Set(i, j+1, factors[j][i])
		}
	}
	for j := 0; j < p; j++ {
		norms[j] = floats.Norm(mat.Col(nil, j, xs), 2)
		if norms[j] == 0 {
			return nil, fmt.Errorf("factor %s is identically zero: %w", spec.FactorIDs[j-1], contracts.ErrDegenerateModel)
		}
	}
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			xs.Set(i, j, xs.At(i, j)/norms[j])
		}
	}

	cond, err := conditionNumber(xs)
	if err != nil {
		return nil, err
	}
	if math.IsInf(cond, 0) || math.IsNaN(cond) || cond > f.cfg.ConditionThreshold {
		return nil, fmt.Errorf("design condition number %.3g exceeds %.3g (collinear factors?): %w",
			cond, f.cfg.ConditionThreshold, contracts.ErrDegenerateModel)
	}

	var qr mat.QR
	qr.Factorize(xs)

	yv := mat.NewVecDense(n, append([]float64(nil), y...))
	var bs mat.VecDense
	if err := qr.SolveVecTo(&bs, false, yv); err != nil {
		return nil, fmt.Errorf("least squares solve: %v: %w", err, contracts.ErrDegenerateModel)
	}

	// (XsᵀXs)⁻¹ = R⁻¹·R⁻ᵀ from the thin R factor
	var full mat.Dense
	qr.RTo(&full)
	r := mat.NewTriDense(p, mat.Upper, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			r.SetTri(i, j, full.At(i, j))
		}
	}
	var rinv mat.TriDense
	if err := rinv.InverseTri(r); err != nil {
		return nil, fmt.Errorf("invert R: %v: %w", err, contracts.ErrDegenerateModel)
	}
	var cov mat.Dense
	cov.Mul(&rinv, rinv.T())

	coef := make([]float64, p)
	for j := 0; j < p; j++ {
		coef[j] = bs.AtVec(j) / norms[j]
	}

	fitted := make([]float64, n)
	resid := make([]float64, n)
	var ssRes float64
	for i := 0; i < n; i++ {
		v := coef[0]
		for j := 0; j < k; j++ {
			v += coef[j+1] * factors[j][i]
		}
		fitted[i] = v
		resid[i] = y[i] - v
		ssRes += resid[i] * resid[i]
	}

	dof := n - p
	sigma2 := ssRes / float64(dof)
	tdist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(dof)}

	infer := func(j int) (se, t, pv float64) {
		se = math.Sqrt(sigma2*cov.At(j, j)) / norms[j]
		if se == 0 {
			// exact fit: t is unbounded unless the coefficient is zero
			if coef[j] == 0 {
				return 0, 0, 1
			}
			return 0, finite(math.Copysign(math.Inf(1), coef[j])), 0
		}
		t = coef[j] / se
		pv = math.Min(1, 2*tdist.Survival(math.Abs(t)))
		return se, t, pv
	}

	out := &contracts.FitResult{
		Alpha:            coef[0],
		Betas:            make([]contracts.Beta, k),
		Start:            table.Dates[0],
		End:              table.Dates[n-1],
		Observations:     n,
		DegreesOfFreedom: dof,
		ConditionNumber:  cond,
		ResidualStdErr:   math.Sqrt(sigma2),
	}
	out.AlphaStdErr, out.AlphaTStat, out.AlphaPValue = infer(0)

	for j, id := range spec.FactorIDs {
		se, t, pv := infer(j + 1)
		out.Betas[j] = contracts.Beta{FactorID: id, Coefficient: coef[j+1], StdErr: se, TStat: t, PValue: pv}
	}

	out.RSquared, out.AdjRSquared = rSquared(y, ssRes, n, k)

	if out.Residuals, err = series("residual", table, resid); err != nil {
		return nil, err
	}
	if out.Fitted, err = series("fitted", table, fitted); err != nil {
		return nil, err
	}

	return out, nil
}

// conditionNumber returns σmax/σmin of the design
func conditionNumber(x *mat.Dense) (float64, error) {
	var svd mat.SVD
	if ok := svd.Factorize(x, mat.SVDNone); !ok {
		return 0, fmt.Errorf("singular value decomposition failed: %w", contracts.ErrDegenerateModel)
	}
	vals := svd.Values(nil)
	smallest := vals[len(vals)-1]
	if smallest == 0 {
		return math.Inf(1), nil
	}
	return vals[0] / smallest, nil
}

// rSquared is zero without factors or when y has no variation
func rSquared(y []float64, ssRes float64, n, k int) (r2, adj float64) {
	if k == 0 {
		return 0, 0
	}
	mean := stat.Mean(y, nil)
	var ssTot float64
	for _, v := range y {
		ssTot += (v - mean) * (v - mean)
	}
	if ssTot == 0 {
		return 0, 0
	}
	r2 = 1 - ssRes/ssTot
	adj = 1 - (1-r2)*float64(n-1)/float64(n-k-1)
	return r2, adj
}

func isConstant(col []float64) bool {
	for _, v := range col[1:] {
		if v != col[0] {
			return false
		}
	}
	return true
}

// finite keeps JSON encoding safe for unbounded statistics
func finite(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0
	case math.IsInf(x, 1):
		return math.MaxFloat64
	case math.IsInf(x, -1):
		return -math.MaxFloat64
	}
	return x
}

func series(symbol string, table *align.Table, values []float64) (contracts.TimeSeries, error) {
	obs := make([]contracts.Observation, len(values))
	for i, v := range values {
		obs[i] = contracts.Observation{Date: table.Dates[i], Value: v}
	}
	return contracts.NewTimeSeries(symbol, obs)
}
