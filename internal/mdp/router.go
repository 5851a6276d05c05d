package mdp

import (
	"github.com/wonny/labfolio/backend/internal/contracts"
)

// Kind tells the router what an identifier refers to
type Kind int

const (
	KindFactor Kind = iota
	KindInstrument
)

func (k Kind) String() string {
	if k == KindFactor {
		return "factor"
	}
	return "instrument"
}

// Router statically maps identifier kinds to providers:
// factor ids always go to the archive, tickers always go live.
// ⭐ SSOT: provider selection happens here only
type Router struct {
	factors     contracts.MarketDataProvider
	instruments contracts.PriceHistoryProvider
}

// NewRouter wires the two provider variants
func NewRouter(factors contracts.MarketDataProvider, instruments contracts.PriceHistoryProvider) *Router {
	return &Router{factors: factors, instruments: instruments}
}

// For returns the provider serving kind
func (r *Router) For(kind Kind) contracts.MarketDataProvider {
	if kind == KindFactor {
		return r.factors
	}
	return r.instruments
}

// Factors returns the archive-backed provider
func (r *Router) Factors() contracts.MarketDataProvider { return r.factors }

// Instruments returns the live provider with price access
func (r *Router) Instruments() contracts.PriceHistoryProvider { return r.instruments }
