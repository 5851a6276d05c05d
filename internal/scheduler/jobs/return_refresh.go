package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/labfolio/backend/internal/contracts"
	"github.com/wonny/labfolio/backend/internal/mdp"
	"github.com/wonny/labfolio/backend/pkg/config"
	"github.com/wonny/labfolio/backend/pkg/logger"
)

// ReturnRefreshJob appends new daily factor returns to the archive
// ⭐ SSOT: the archive is written by this job only
type ReturnRefreshJob struct {
	catalog  contracts.FactorCatalog
	writer   contracts.ReturnWriter
	source   contracts.QuoteSource
	schedule string
	lookback int
	logger   *logger.Logger
	now      func() time.Time

	mu sync.Mutex
}

// RefreshSummary reports one refresh run
type RefreshSummary struct {
	Factors  int               `json:"factors"`
	Updated  int               `json:"updated"`
	Failed   int               `json:"failed"`
	Inserted int64             `json:"inserted"`
	Errors   map[string]string `json:"errors,omitempty"`
}

// NewReturnRefreshJob creates the archive refresh job
func NewReturnRefreshJob(catalog contracts.FactorCatalog, writer contracts.ReturnWriter, source contracts.QuoteSource, cfg *config.Config, log *logger.Logger) *ReturnRefreshJob {
	return &ReturnRefreshJob{
		catalog:  catalog,
		writer:   writer,
		source:   source,
		schedule: cfg.Refresh.Schedule,
		lookback: cfg.Refresh.LookbackDays,
		logger:   log.WithField("job", "return_refresh"),
		now:      time.Now,
	}
}

// Name returns the job name
func (j *ReturnRefreshJob) Name() string {
	return "return_refresh"
}

// Schedule returns the cron schedule (weekdays after the US close by default)
func (j *ReturnRefreshJob) Schedule() string {
	return j.schedule
}

// Run executes the refresh. Individual factor failures do not fail the run
// unless every factor failed.
func (j *ReturnRefreshJob) Run(ctx context.Context) error {
	summary, err := j.Refresh(ctx)
	if err != nil {
		return err
	}
	if summary.Factors > 0 && summary.Failed == summary.Factors {
		return fmt.Errorf("all %d factors failed to refresh", summary.Factors)
	}
	return nil
}

// Refresh fetches and stores returns for every factor, one at a time.
// Concurrent calls are serialized.
func (j *ReturnRefreshJob) Refresh(ctx context.Context) (*RefreshSummary, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	factors, err := j.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list factors: %w", err)
	}

	j.logger.WithField("factors", len(factors)).Info("Starting return refresh")

	summary := &RefreshSummary{Factors: len(factors), Errors: make(map[string]string)}
	end := contracts.NormalizeDate(j.now())

	for _, f := range factors {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		inserted, err := j.refreshFactor(ctx, f.ID, end)
		if err != nil {
			summary.Failed++
			summary.Errors[f.ID] = err.Error()
			j.logger.WithError(err).WithField("factor_id", f.ID).Warn("Factor refresh failed")
			continue
		}
		if inserted > 0 {
			summary.Updated++
		}
		summary.Inserted += inserted
	}

	j.logger.WithFields(map[string]interface{}{
		"factors":  summary.Factors,
		"updated":  summary.Updated,
		"failed":   summary.Failed,
		"inserted": summary.Inserted,
	}).Info("Return refresh completed")

	return summary, nil
}

// refreshFactor stores returns dated after the latest archived date.
// The factor id doubles as its proxy ticker.
func (j *ReturnRefreshJob) refreshFactor(ctx context.Context, factorID string, end time.Time) (int64, error) {
	latest, ok, err := j.writer.LatestDate(ctx, factorID)
	if err != nil {
		return 0, err
	}

	// The latest archived close is re-fetched so the next day has a base price
	start := end.AddDate(0, 0, -j.lookback)
	if ok {
		latest = contracts.NormalizeDate(latest)
		if !latest.Before(end) {
			return 0, nil
		}
		start = latest
	}

	quotes, err := j.source.GetDailyCloses(ctx, factorID, start, end)
	if err != nil {
		return 0, fmt.Errorf("fetch closes: %w", err)
	}

	obs := make([]contracts.Observation, 0, len(quotes))
	for _, q := range quotes {
		if q.AdjClose <= 0 {
			return 0, fmt.Errorf("non-positive close %v on %s: %w",
				q.AdjClose, q.Date.Format(contracts.DateLayout), contracts.ErrInvalidObservation)
		}
		obs = append(obs, contracts.Observation{Date: q.Date, Value: q.AdjClose})
	}
	prices, err := contracts.NewTimeSeries(factorID, obs)
	if err != nil {
		return 0, err
	}

	var rows []contracts.ReturnRow
	for _, r := range mdp.SimpleReturns(prices) {
		if ok && !r.Date.After(latest) {
			continue
		}
		rows = append(rows, contracts.NewReturnRow(factorID, r.Date, r.Value))
	}
	if len(rows) == 0 {
		return 0, nil
	}

	return j.writer.UpsertBatch(ctx, rows)
}
