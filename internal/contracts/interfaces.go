package contracts

import (
	"context"
	"time"
)

// MarketDataProvider resolves a return series for a factor id or a ticker
// ⭐ SSOT: the single capability shared by the Archived and Live providers
type MarketDataProvider interface {
	GetReturns(ctx context.Context, symbol string, start, end time.Time) (TimeSeries, error)
}

// PriceHistoryProvider additionally exposes the adjusted closes behind a return series.
// Valuation needs start-of-period prices for value weights.
type PriceHistoryProvider interface {
	MarketDataProvider
	GetPrices(ctx context.Context, symbol string, start, end time.Time) (TimeSeries, error)
}

// QuoteSource returns daily adjusted close prices for a ticker
type QuoteSource interface {
	GetDailyCloses(ctx context.Context, ticker string, start, end time.Time) ([]Quote, error)
}

// HoldingsSource returns the parsed holdings of a portfolio
type HoldingsSource interface {
	GetHoldings(ctx context.Context, portfolioID string) ([]Holding, error)
}
