package mdp

import (
	"context"
	"time"

	"github.com/wonny/labfolio/backend/internal/contracts"
	"github.com/wonny/labfolio/backend/pkg/logger"
)

// Archived serves factor returns from the persisted return store.
// It never writes to the store.
type Archived struct {
	store  contracts.ReturnStore
	logger *logger.Logger
}

// NewArchived creates an archive-backed provider
func NewArchived(store contracts.ReturnStore, log *logger.Logger) *Archived {
	return &Archived{
		store:  store,
		logger: log.WithField("module", "mdp.archived"),
	}
}

// GetReturns returns exactly the stored rows within [start, end].
// An empty range yields an empty series, not an error.
func (a *Archived) GetReturns(ctx context.Context, symbol string, start, end time.Time) (contracts.TimeSeries, error) {
	rows, err := a.store.GetReturns(ctx, symbol, start, end)
	if err != nil {
		return contracts.TimeSeries{}, contracts.NewDataUnavailable(symbol, start, end, err)
	}

	obs := make([]contracts.Observation, 0, len(rows))
	for _, row := range rows {
		obs = append(obs, contracts.Observation{Date: row.Date, Value: row.Float()})
	}

	ts, err := contracts.NewTimeSeries(symbol, obs)
	if err != nil {
		return contracts.TimeSeries{}, contracts.NewDataUnavailable(symbol, start, end, err)
	}
	ts = ts.Between(start, end)

	a.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"rows":   ts.Len(),
	}).Debug("Archived returns loaded")

	return ts, nil
}
