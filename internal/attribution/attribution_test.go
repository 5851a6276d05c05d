package attribution

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/labfolio/backend/internal/align"
	"github.com/wonny/labfolio/backend/internal/contracts"
	"github.com/wonny/labfolio/backend/internal/factormodel"
	"github.com/wonny/labfolio/backend/pkg/logger"
)

const target = "portfolio"

func fixture(n int) (*align.Table, contracts.FactorModelSpec) {
	dates := make([]time.Time, n)
	y := make([]float64, n)
	mkt := make([]float64, n)
	hml := make([]float64, n)
	base := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		dates[i] = base.AddDate(0, 0, i)
		mkt[i] = 0.012 * math.Sin(0.45*float64(i))
		hml[i] = 0.006 * math.Cos(1.9*float64(i)+0.3)
		y[i] = 0.0003 + 0.9*mkt[i] + 0.35*hml[i] + 0.002*math.Sin(4.1*float64(i)+1)
	}
	return &align.Table{
		Dates:   dates,
		Names:   []string{target, "MKT", "HML"},
		Columns: [][]float64{y, mkt, hml},
	}, contracts.FactorModelSpec{FactorIDs: []string{"MKT", "HML"}}
}

func fitFixture(t *testing.T, n int) (*contracts.FitResult, *align.Table) {
	t.Helper()
	tbl, spec := fixture(n)
	fit, err := factormodel.New(factormodel.Config{Target: target}).Fit(tbl, spec)
	require.NoError(t, err)
	return fit, tbl
}

func TestAttribute_Reconciles(t *testing.T) {
	for _, n := range []int{4, 10, 120, 500} {
		fit, tbl := fitFixture(t, n)

		report, err := New(Config{Target: target}, logger.Nop()).Attribute(fit, tbl)
		require.NoError(t, err)
		assert.Nil(t, report.Mismatch, "n=%d", n)

		reconstructed := report.CumulativeAlpha + report.CumulativeResidual
		for _, f := range report.Factors {
			reconstructed += f.Cumulative
		}
		tol := 1e-6 * math.Max(1, math.Abs(report.ActualCumulative))
		assert.InDelta(t, report.ActualCumulative, reconstructed, tol, "n=%d", n)
		assert.Len(t, report.Periods, n)
	}
}

func TestAttribute_PeriodDecomposition(t *testing.T) {
	fit, tbl := fitFixture(t, 30)

	report, err := New(Config{Target: target}, logger.Nop()).Attribute(fit, tbl)
	require.NoError(t, err)

	mktBeta, _ := fit.Beta("MKT")
	mkt, _ := tbl.Column("MKT")
	for i, p := range report.Periods {
		assert.InDelta(t, mktBeta.Coefficient*mkt[i], p.Contributions["MKT"], 1e-15)

		sum := p.Alpha + p.Residual
		for _, v := range p.Contributions {
			sum += v
		}
		assert.InDelta(t, p.Actual, sum, 1e-12)
	}
	assert.InDelta(t, 30*fit.Alpha, report.CumulativeAlpha, 1e-12)
}

func TestAttribute_VarianceDecomposition(t *testing.T) {
	fit, tbl := fitFixture(t, 250)

	report, err := New(Config{Target: target}, logger.Nop()).Attribute(fit, tbl)
	require.NoError(t, err)

	total := report.ResidualShare
	for _, f := range report.Factors {
		total += f.VarianceShare
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	assert.InDelta(t, 1-fit.RSquared, report.ResidualShare, 1e-9)
	assert.Greater(t, report.Factors[0].VarianceShare, report.Factors[1].VarianceShare)
}

func TestAttribute_MismatchIsWarningNotError(t *testing.T) {
	fit, tbl := fitFixture(t, 50)
	fit.Alpha += 0.01 // corrupt the model

	report, err := New(Config{Target: target}, logger.Nop()).Attribute(fit, tbl)
	require.NoError(t, err)
	require.NotNil(t, report.Mismatch)
	assert.InDelta(t, 0.5, report.Mismatch.Difference, 1e-9)
	assert.Contains(t, report.Mismatch.String(), "mismatch")
	assert.Len(t, report.Periods, 50)
}

func TestAttribute_ShapeErrors(t *testing.T) {
	fit, tbl := fitFixture(t, 20)

	short := &align.Table{Dates: tbl.Dates[:10], Names: tbl.Names, Columns: [][]float64{
		tbl.Columns[0][:10], tbl.Columns[1][:10], tbl.Columns[2][:10],
	}}
	_, err := New(Config{Target: target}, logger.Nop()).Attribute(fit, short)
	assert.Error(t, err)

	_, err = New(Config{Target: "missing"}, logger.Nop()).Attribute(fit, tbl)
	assert.Error(t, err)
}
