package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/labfolio/backend/internal/contracts"
	"github.com/wonny/labfolio/backend/pkg/config"
	"github.com/wonny/labfolio/backend/pkg/logger"
)

func day(s string) time.Time {
	t, _ := time.Parse(contracts.DateLayout, s)
	return t
}

type fakeCatalog []contracts.Factor

func (f fakeCatalog) List(ctx context.Context) ([]contracts.Factor, error) { return f, nil }

func (f fakeCatalog) Get(ctx context.Context, id string) (*contracts.Factor, error) {
	return nil, contracts.ErrNotFound
}

type fakeWriter struct {
	latest map[string]time.Time
	rows   []contracts.ReturnRow
}

func (f *fakeWriter) UpsertBatch(ctx context.Context, rows []contracts.ReturnRow) (int64, error) {
	f.rows = append(f.rows, rows...)
	return int64(len(rows)), nil
}

func (f *fakeWriter) LatestDate(ctx context.Context, id string) (time.Time, bool, error) {
	t, ok := f.latest[id]
	return t, ok, nil
}

type fakeQuotes struct {
	quotes map[string][]contracts.Quote
	starts map[string]time.Time
}

func (f *fakeQuotes) GetDailyCloses(ctx context.Context, ticker string, start, end time.Time) ([]contracts.Quote, error) {
	f.starts[ticker] = start
	q, ok := f.quotes[ticker]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	var out []contracts.Quote
	for _, x := range q {
		if !x.Date.Before(start) && !x.Date.After(end) {
			out = append(out, x)
		}
	}
	return out, nil
}

func newJob(catalog fakeCatalog, w *fakeWriter, q *fakeQuotes) *ReturnRefreshJob {
	cfg := &config.Config{Refresh: config.RefreshConfig{Schedule: "0 0 22 * * MON-FRI", LookbackDays: 730}}
	j := NewReturnRefreshJob(catalog, w, q, cfg, logger.Nop())
	j.now = func() time.Time { return day("2024-01-05").Add(23 * time.Hour) }
	return j
}

func quotes() map[string][]contracts.Quote {
	return map[string][]contracts.Quote{
		"MKT": {
			{Date: day("2024-01-02"), AdjClose: 100},
			{Date: day("2024-01-03"), AdjClose: 101},
			{Date: day("2024-01-04"), AdjClose: 99.99},
			{Date: day("2024-01-05"), AdjClose: 101.9898},
		},
	}
}

func TestReturnRefreshJob_FreshArchive(t *testing.T) {
	w := &fakeWriter{latest: map[string]time.Time{}}
	q := &fakeQuotes{quotes: quotes(), starts: map[string]time.Time{}}
	job := newJob(fakeCatalog{{ID: "MKT"}}, w, q)

	summary, err := job.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, day("2022-01-05"), q.starts["MKT"], "two-year lookback")
	assert.EqualValues(t, 3, summary.Inserted)
	assert.Equal(t, 1, summary.Updated)
	require.Len(t, w.rows, 3)
	assert.Equal(t, day("2024-01-03"), w.rows[0].Date)
	assert.Equal(t, "0.01", w.rows[0].Value.String())
	assert.Equal(t, "-0.01", w.rows[1].Value.String())
	assert.Equal(t, "0.02", w.rows[2].Value.String())
}

func TestReturnRefreshJob_AppendsAfterLatest(t *testing.T) {
	w := &fakeWriter{latest: map[string]time.Time{"MKT": day("2024-01-04")}}
	q := &fakeQuotes{quotes: quotes(), starts: map[string]time.Time{}}
	job := newJob(fakeCatalog{{ID: "MKT"}}, w, q)

	summary, err := job.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, day("2024-01-04"), q.starts["MKT"])
	assert.EqualValues(t, 1, summary.Inserted)
	require.Len(t, w.rows, 1)
	assert.Equal(t, day("2024-01-05"), w.rows[0].Date)
}

func TestReturnRefreshJob_UpToDateSkipsFetch(t *testing.T) {
	w := &fakeWriter{latest: map[string]time.Time{"MKT": day("2024-01-05")}}
	q := &fakeQuotes{quotes: quotes(), starts: map[string]time.Time{}}
	job := newJob(fakeCatalog{{ID: "MKT"}}, w, q)

	summary, err := job.Refresh(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Inserted)
	assert.NotContains(t, q.starts, "MKT")
}

func TestReturnRefreshJob_FailuresAreCounted(t *testing.T) {
	w := &fakeWriter{latest: map[string]time.Time{}}
	q := &fakeQuotes{quotes: quotes(), starts: map[string]time.Time{}}
	q.quotes["BAD"] = []contracts.Quote{{Date: day("2024-01-02"), AdjClose: 0}, {Date: day("2024-01-03"), AdjClose: 1}}
	job := newJob(fakeCatalog{{ID: "MKT"}, {ID: "GONE"}, {ID: "BAD"}}, w, q)

	summary, err := job.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Factors)
	assert.Equal(t, 2, summary.Failed)
	assert.Contains(t, summary.Errors, "GONE")
	assert.Contains(t, summary.Errors, "BAD")
	assert.NoError(t, job.Run(context.Background()), "partial failure is not fatal")

	all := newJob(fakeCatalog{{ID: "GONE"}}, w, q)
	err = all.Run(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
}
