package holdings

import (
	"context"
	"fmt"

	"github.com/wonny/labfolio/backend/internal/contracts"
	"github.com/wonny/labfolio/backend/pkg/logger"
)

// Source resolves a portfolio id to its parsed holdings:
// registry lookup for the address, then the store matching its scheme.
type Source struct {
	registry contracts.PortfolioRegistry
	stores   map[string]ObjectStore
	logger   *logger.Logger
}

// NewSource creates a holdings source; stores is keyed by address scheme
func NewSource(registry contracts.PortfolioRegistry, stores map[string]ObjectStore, log *logger.Logger) *Source {
	return &Source{
		registry: registry,
		stores:   stores,
		logger:   log.WithField("module", "holdings"),
	}
}

// GetHoldings implements contracts.HoldingsSource
func (s *Source) GetHoldings(ctx context.Context, portfolioID string) ([]contracts.Holding, error) {
	portfolio, err := s.registry.Get(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("portfolio %s: %w", portfolioID, err)
	}

	address, err := ParseAddress(portfolio.Address)
	if err != nil {
		return nil, err
	}
	store, ok := s.stores[address.Scheme]
	if !ok {
		return nil, fmt.Errorf("no holdings store configured for %s:// addresses", address.Scheme)
	}

	body, err := store.Open(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("open holdings for portfolio %s: %w", portfolioID, err)
	}
	defer body.Close()

	holdings, err := ParseCSV(body)
	if err != nil {
		return nil, fmt.Errorf("holdings for portfolio %s: %w", portfolioID, err)
	}

	s.logger.WithFields(map[string]interface{}{
		"portfolio_id": portfolioID,
		"holdings":     len(holdings),
	}).Debug("Holdings loaded")

	return holdings, nil
}
