package mdp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/labfolio/backend/internal/contracts"
	"github.com/wonny/labfolio/backend/pkg/config"
	"github.com/wonny/labfolio/backend/pkg/logger"
	"github.com/wonny/labfolio/backend/pkg/redis"
)

var (
	errNoQuotes      = errors.New("quote source returned no closes in range")
	errTooFewCloses  = errors.New("fewer than two closes in range")
	errNonPositiveAt = errors.New("non-positive adjusted close")
)

// Cache stores fetched quote histories; *redis.Cache and *MemoryCache implement it
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// LiveConfig holds the Live provider tuning knobs
type LiveConfig struct {
	Attempts       int           // total fetch attempts before DataUnavailable
	InitialBackoff time.Duration // doubled after every failed attempt
	MaxBackoff     time.Duration
	RatePerSecond  int // local throttle shared by every fetch of this provider
	CacheTTL       time.Duration
}

// LiveConfigFrom derives the Live provider settings from the app config
func LiveConfigFrom(cfg *config.Config) LiveConfig {
	return LiveConfig{
		Attempts:       cfg.Analysis.FetchAttempts,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		RatePerSecond:  cfg.Yahoo.RateLimit,
		CacheTTL:       cfg.Analysis.CacheTTL,
	}
}

// Live fetches adjusted closes on demand and derives simple returns.
// Transport failures never leak verbatim: they surface as DataUnavailable.
type Live struct {
	source  contracts.QuoteSource
	cache   Cache
	limiter *rate.Limiter
	cfg     LiveConfig
	logger  *logger.Logger
}

// NewLive creates a Live provider; cache may be nil
func NewLive(source contracts.QuoteSource, cache Cache, cfg LiveConfig, log *logger.Logger) *Live {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &Live{
		source:  source,
		cache:   cache,
		limiter: rate.NewLimiter(limit, max(cfg.RatePerSecond, 1)),
		cfg:     cfg,
		logger:  log.WithField("module", "mdp.live"),
	}
}

// GetReturns returns r_t = p_t/p_{t-1} - 1 for every close after the first in range
func (l *Live) GetReturns(ctx context.Context, symbol string, start, end time.Time) (contracts.TimeSeries, error) {
	prices, err := l.GetPrices(ctx, symbol, start, end)
	if err != nil {
		return contracts.TimeSeries{}, err
	}
	if prices.Len() < 2 {
		return contracts.TimeSeries{}, contracts.NewDataUnavailable(symbol, start, end, errTooFewCloses)
	}

	ts, err := contracts.NewTimeSeries(symbol, SimpleReturns(prices))
	if err != nil {
		return contracts.TimeSeries{}, contracts.NewDataUnavailable(symbol, start, end, err)
	}
	return ts, nil
}

// GetPrices returns the adjusted close series within [start, end]
func (l *Live) GetPrices(ctx context.Context, symbol string, start, end time.Time) (contracts.TimeSeries, error) {
	quotes, err := l.quotes(ctx, symbol, start, end)
	if err != nil {
		return contracts.TimeSeries{}, contracts.NewDataUnavailable(symbol, start, end, err)
	}

	obs := make([]contracts.Observation, 0, len(quotes))
	for _, q := range quotes {
		if q.AdjClose <= 0 {
			return contracts.TimeSeries{}, contracts.NewDataUnavailable(symbol, start, end,
				fmt.Errorf("%w on %s", errNonPositiveAt, q.Date.Format(contracts.DateLayout)))
		}
		obs = append(obs, contracts.Observation{Date: q.Date, Value: q.AdjClose})
	}

	ts, err := contracts.NewTimeSeries(symbol, obs)
	if err != nil {
		return contracts.TimeSeries{}, contracts.NewDataUnavailable(symbol, start, end, err)
	}
	ts = ts.Between(start, end)
	if ts.IsEmpty() {
		return contracts.TimeSeries{}, contracts.NewDataUnavailable(symbol, start, end, errNoQuotes)
	}
	return ts, nil
}

func (l *Live) quotes(ctx context.Context, symbol string, start, end time.Time) ([]contracts.Quote, error) {
	key := redis.PriceHistoryKey(symbol, start.Format(contracts.DateLayout), end.Format(contracts.DateLayout))

	if l.cache != nil {
		var cached []contracts.Quote
		found, err := l.cache.Get(ctx, key, &cached)
		if err != nil {
			l.logger.WithError(err).Warn("Price cache read failed")
		} else if found {
			return cached, nil
		}
	}

	quotes, err := l.fetchWithRetry(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	if l.cache != nil && len(quotes) > 0 {
		if err := l.cache.Set(ctx, key, quotes, l.cfg.CacheTTL); err != nil {
			l.logger.WithError(err).Warn("Price cache write failed")
		}
	}
	return quotes, nil
}

// fetchWithRetry makes at most cfg.Attempts calls with exponential backoff
func (l *Live) fetchWithRetry(ctx context.Context, symbol string, start, end time.Time) ([]contracts.Quote, error) {
	delay := l.cfg.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= l.cfg.Attempts; attempt++ {
		if err := l.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		quotes, err := l.source.GetDailyCloses(ctx, symbol, start, end)
		if err == nil {
			return quotes, nil
		}
		lastErr = err

		if !retryable(err) || attempt == l.cfg.Attempts {
			break
		}

		l.logger.WithFields(map[string]interface{}{
			"symbol":  symbol,
			"attempt": attempt,
			"delay":   delay,
			"error":   err.Error(),
		}).Warn("Quote fetch failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if l.cfg.MaxBackoff > 0 && delay > l.cfg.MaxBackoff {
			delay = l.cfg.MaxBackoff
		}
	}

	return nil, lastErr
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !errors.Is(err, contracts.ErrNotFound)
}

// SimpleReturns converts a price series into dated simple returns
func SimpleReturns(prices contracts.TimeSeries) []contracts.Observation {
	if prices.Len() < 2 {
		return nil
	}
	out := make([]contracts.Observation, 0, prices.Len()-1)
	for i := 1; i < prices.Len(); i++ {
		prev, cur := prices.At(i-1), prices.At(i)
		out = append(out, contracts.Observation{Date: cur.Date, Value: cur.Value/prev.Value - 1})
	}
	return out
}
