package valuation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/labfolio/backend/internal/align"
	"github.com/wonny/labfolio/backend/internal/contracts"
	"github.com/wonny/labfolio/backend/pkg/logger"
)

// Symbol names the portfolio return column in aligned tables
const Symbol = contracts.PortfolioSymbol

// Weighting selects how constituent returns are combined
type Weighting string

const (
	// WeightingValue recomputes q·P(t-1) weights every period
	WeightingValue Weighting = "value"
	// WeightingFixed freezes the weights of the first period
	WeightingFixed Weighting = "fixed"
)

// Config holds valuation parameters
type Config struct {
	MaxConcurrency int
	Weighting      Weighting
}

// Valuer turns holdings into a portfolio return series
type Valuer struct {
	prices contracts.PriceHistoryProvider
	cfg    Config
	logger *logger.Logger
}

// New creates a Valuer over a price-capable provider (the Live MDP)
func New(prices contracts.PriceHistoryProvider, cfg Config, log *logger.Logger) *Valuer {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.Weighting == "" {
		cfg.Weighting = WeightingValue
	}
	return &Valuer{
		prices: prices,
		cfg:    cfg,
		logger: log.WithField("module", "valuation"),
	}
}

// Weighting returns the active weighting mode
func (v *Valuer) Weighting() Weighting { return v.cfg.Weighting }

// Value computes r_p,t = Σ q_i·(P_i,t − P_i,t−1) / Σ q_i·P_i,t−1 over the
// dates every holding has a close for. Any unresolved ticker fails the whole
// valuation; nothing is dropped or zero-filled.
func (v *Valuer) Value(ctx context.Context, holdings []contracts.Holding, start, end time.Time) (contracts.TimeSeries, error) {
	if err := contracts.ValidateHoldings(holdings); err != nil {
		return contracts.TimeSeries{}, err
	}

	prices, err := v.fetchPrices(ctx, holdings, start, end)
	if err != nil {
		return contracts.TimeSeries{}, err
	}

	table, err := align.Align(prices, start, end, 2)
	if err != nil {
		return contracts.TimeSeries{}, fmt.Errorf("align constituent prices: %w", err)
	}

	var obs []contracts.Observation
	switch v.cfg.Weighting {
	case WeightingFixed:
		obs, err = fixedWeighted(holdings, table)
	default:
		obs, err = valueWeighted(holdings, table)
	}
	if err != nil {
		return contracts.TimeSeries{}, err
	}

	v.logger.WithFields(map[string]interface{}{
		"holdings":  len(holdings),
		"periods":   len(obs),
		"weighting": string(v.cfg.Weighting),
	}).Debug("Portfolio valued")

	return contracts.NewTimeSeries(Symbol, obs)
}

// fetchPrices loads every constituent concurrently, bounded by MaxConcurrency
func (v *Valuer) fetchPrices(ctx context.Context, holdings []contracts.Holding, start, end time.Time) ([]contracts.TimeSeries, error) {
	out := make([]contracts.TimeSeries, len(holdings))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.cfg.MaxConcurrency)

	for i, h := range holdings {
		g.Go(func() error {
			ts, err := v.prices.GetPrices(gctx, h.Ticker, start, end)
			if err != nil {
				if !errors.Is(err, contracts.ErrDataUnavailable) {
					err = contracts.NewDataUnavailable(h.Ticker, start, end, err)
				}
				return err
			}
			out[i] = ts
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func valueWeighted(holdings []contracts.Holding, table *align.Table) ([]contracts.Observation, error) {
	obs := make([]contracts.Observation, 0, table.Rows()-1)
	for t := 1; t < table.Rows(); t++ {
		var gain, base float64
		for j, h := range holdings {
			q := float64(h.Quantity)
			prev, cur := table.Columns[j][t-1], table.Columns[j][t]
			gain += q * (cur - prev)
			base += q * prev
		}
		if base == 0 {
			return nil, fmt.Errorf("period ending %s: %w", table.Dates[t].Format(contracts.DateLayout), contracts.ErrZeroExposure)
		}
		obs = append(obs, contracts.Observation{Date: table.Dates[t], Value: gain / base})
	}
	return obs, nil
}

func fixedWeighted(holdings []contracts.Holding, table *align.Table) ([]contracts.Observation, error) {
	weights := make([]float64, len(holdings))
	var base float64
	for j, h := range holdings {
		weights[j] = float64(h.Quantity) * table.Columns[j][0]
		base += weights[j]
	}
	if base == 0 {
		return nil, fmt.Errorf("period ending %s: %w", table.Dates[1].Format(contracts.DateLayout), contracts.ErrZeroExposure)
	}
	for j := range weights {
		weights[j] /= base
	}

	obs := make([]contracts.Observation, 0, table.Rows()-1)
	for t := 1; t < table.Rows(); t++ {
		var r float64
		for j := range holdings {
			r += weights[j] * (table.Columns[j][t]/table.Columns[j][t-1] - 1)
		}
		obs = append(obs, contracts.Observation{Date: table.Dates[t], Value: r})
	}
	return obs, nil
}
