package commands

import (
	"context"
	"fmt"

	"github.com/wonny/labfolio/backend/internal/analysis"
	"github.com/wonny/labfolio/backend/internal/external/yahoo"
	"github.com/wonny/labfolio/backend/internal/holdings"
	"github.com/wonny/labfolio/backend/internal/mdp"
	"github.com/wonny/labfolio/backend/internal/modelconfig"
	"github.com/wonny/labfolio/backend/internal/scheduler/jobs"
	"github.com/wonny/labfolio/backend/internal/store"
	"github.com/wonny/labfolio/backend/pkg/config"
	"github.com/wonny/labfolio/backend/pkg/database"
	"github.com/wonny/labfolio/backend/pkg/httputil"
	"github.com/wonny/labfolio/backend/pkg/logger"
	"github.com/wonny/labfolio/backend/pkg/redis"
)

// app holds the process-wide dependencies shared by every command
// ⭐ SSOT: components are wired here only
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	db    *database.DB
	redis *redis.Client

	factors    *store.FactorRepository
	returns    *store.ReturnRepository
	portfolios *store.PortfolioRepository

	// set when Redis is disabled and Live falls back to the in-process cache
	memCache *mdp.MemoryCache
}

// bootstrap loads config, opens the database and (optionally) Redis
func bootstrap() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	rdb := redis.Disabled()
	if cfg.Redis.Enabled {
		if rdb, err = redis.New(cfg); err != nil {
			log.WithError(err).Warn("Redis unavailable, continuing without cache and shared rate limits")
			rdb = redis.Disabled()
		}
	}

	return &app{
		cfg:        cfg,
		log:        log,
		db:         db,
		redis:      rdb,
		factors:    store.NewFactorRepository(db.Pool),
		returns:    store.NewReturnRepository(db.Pool),
		portfolios: store.NewPortfolioRepository(db.Pool, cfg.Holdings.DemoPortfolioID),
	}, nil
}

func (a *app) close() {
	a.redis.Close()
	a.db.Close()
}

// quoteClient builds a Yahoo client; retry=false leaves retries to the Live MDP
func (a *app) quoteClient(retry bool) *yahoo.Client {
	limiter := redis.NewRateLimiter(a.redis, "ratelimit")
	hc := httputil.New(a.cfg, a.log).WithRateLimiter(limiter, redis.YahooRateLimit(a.cfg.Yahoo.RateLimit))
	if !retry {
		hc = hc.DisableRetry()
	}
	return yahoo.NewClient(hc, a.cfg.Yahoo.BaseURL, a.log)
}

// holdingsSource registers the file store and, when AWS config loads, the S3 store
func (a *app) holdingsSource(ctx context.Context) *holdings.Source {
	stores := map[string]holdings.ObjectStore{
		"file": holdings.NewFileStore(a.cfg.Holdings.Dir),
	}
	if s3, err := holdings.NewS3Store(ctx, a.cfg); err != nil {
		a.log.WithError(err).Warn("S3 holdings store disabled")
	} else {
		stores["s3"] = s3
	}
	return holdings.NewSource(a.portfolios, stores, a.log)
}

// analysisService wires the full engine
func (a *app) analysisService(ctx context.Context) (*analysis.Service, error) {
	presets, err := modelconfig.LoadOrDefault(a.cfg.ModelsFile, modelconfig.FromEnv(a.cfg))
	if err != nil {
		return nil, fmt.Errorf("load model presets: %w", err)
	}

	live := mdp.NewLive(a.quoteClient(false), a.quoteCache(), mdp.LiveConfigFrom(a.cfg), a.log)
	archived := mdp.NewArchived(a.returns, a.log)
	router := mdp.NewRouter(archived, live)

	return analysis.NewService(a.holdingsSource(ctx), router, presets, analysis.ConfigFrom(a.cfg), a.log), nil
}

// quoteCache prefers Redis and falls back to an in-process cache
func (a *app) quoteCache() mdp.Cache {
	if a.redis.Enabled() {
		return redis.NewCache(a.redis, "labfolio")
	}
	if a.memCache == nil {
		a.memCache = mdp.NewMemoryCache(a.log)
	}
	return a.memCache
}

// refreshJob builds the archive refresh job with a retrying quote client
func (a *app) refreshJob() *jobs.ReturnRefreshJob {
	return jobs.NewReturnRefreshJob(a.factors, a.returns, a.quoteClient(true), a.cfg, a.log)
}
