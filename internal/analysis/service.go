package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/labfolio/backend/internal/align"
	"github.com/wonny/labfolio/backend/internal/attribution"
	"github.com/wonny/labfolio/backend/internal/contracts"
	"github.com/wonny/labfolio/backend/internal/factormodel"
	"github.com/wonny/labfolio/backend/internal/mdp"
	"github.com/wonny/labfolio/backend/internal/modelconfig"
	"github.com/wonny/labfolio/backend/internal/risk"
	"github.com/wonny/labfolio/backend/internal/valuation"
	"github.com/wonny/labfolio/backend/pkg/config"
	"github.com/wonny/labfolio/backend/pkg/logger"
)

// Request is one analyze call. Holdings may be given inline instead of a
// PortfolioID; Preset may be given instead of FactorIDs. Zero dates fall back
// to the configured lookback ending today.
type Request struct {
	PortfolioID string              `json:"portfolio_id,omitempty"`
	Holdings    []contracts.Holding `json:"holdings,omitempty"`
	FactorIDs   []string            `json:"factor_ids,omitempty"`
	Preset      string              `json:"preset,omitempty"`
	Start       time.Time           `json:"start"`
	End         time.Time           `json:"end"`
	Weighting   string              `json:"weighting,omitempty"`
}

// Resolved is a request after defaults and boundary validation
type Resolved struct {
	PortfolioID string
	Holdings    []contracts.Holding
	Spec        contracts.FactorModelSpec
	Range       contracts.DateRange
	Weighting   valuation.Weighting
}

// Config holds engine parameters
type Config struct {
	MaxConcurrency     int
	Timeout            time.Duration
	ConditionThreshold float64
	ReconcileTolerance float64
}

// ConfigFrom derives the engine settings from the app config
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		MaxConcurrency:     cfg.Analysis.MaxConcurrency,
		Timeout:            cfg.Analysis.Timeout,
		ConditionThreshold: cfg.Analysis.ConditionThreshold,
		ReconcileTolerance: cfg.Analysis.ReconcileTolerance,
	}
}

// Service runs factor model analyses
// ⭐ SSOT: Valuation → Aligner → Fitter → Attribution is wired here only
type Service struct {
	holdings   contracts.HoldingsSource
	router     *mdp.Router
	presets    *modelconfig.Config
	fitter     *factormodel.Fitter
	attributor *attribution.Calculator
	risk       *risk.Engine
	cfg        Config
	logger     *logger.Logger
	now        func() time.Time
}

// NewService wires the engine; holdings may be nil when only inline holdings are used
func NewService(holdings contracts.HoldingsSource, router *mdp.Router, presets *modelconfig.Config, cfg Config, log *logger.Logger) *Service {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	return &Service{
		holdings:   holdings,
		router:     router,
		presets:    presets,
		fitter:     factormodel.New(factormodel.Config{Target: valuation.Symbol, ConditionThreshold: cfg.ConditionThreshold}),
		attributor: attribution.New(attribution.Config{Target: valuation.Symbol, Tolerance: cfg.ReconcileTolerance}, log),
		risk:       risk.NewEngine(risk.Config{Confidence: presets.Defaults.VaRConfidence, Scenarios: presets.Scenarios}),
		cfg:        cfg,
		logger:     log.WithField("module", "analysis"),
		now:        time.Now,
	}
}

// Presets returns the loaded model presets
func (s *Service) Presets() *modelconfig.Config { return s.presets }

// Validate applies defaults and rejects malformed requests without touching any data source
func (s *Service) Validate(req Request) (*Resolved, error) {
	if req.PortfolioID == "" && len(req.Holdings) == 0 {
		return nil, fmt.Errorf("portfolio_id or holdings is required: %w", contracts.ErrEmptyPortfolio)
	}
	if req.PortfolioID != "" && len(req.Holdings) > 0 {
		return nil, fmt.Errorf("give either portfolio_id or holdings, not both: %w", contracts.ErrInvalidRequest)
	}
	if len(req.Holdings) > 0 {
		if err := contracts.ValidateHoldings(req.Holdings); err != nil {
			return nil, err
		}
	}

	ids := req.FactorIDs
	if req.Preset != "" {
		if len(ids) > 0 {
			return nil, fmt.Errorf("give either preset or factor_ids, not both: %w", contracts.ErrInvalidRequest)
		}
		preset, ok := s.presets.Preset(req.Preset)
		if !ok {
			return nil, fmt.Errorf("unknown preset %q: %w", req.Preset, contracts.ErrInvalidRequest)
		}
		ids = preset.FactorIDs
	}
	spec, err := contracts.NewFactorModelSpec(ids)
	if err != nil {
		return nil, err
	}

	rng := contracts.DateRange{Start: req.Start, End: req.End}
	if rng.End.IsZero() {
		rng.End = s.now()
	}
	if rng.Start.IsZero() {
		rng.Start = rng.End.AddDate(0, 0, -s.presets.Defaults.LookbackDays)
	}
	rng.Start, rng.End = contracts.NormalizeDate(rng.Start), contracts.NormalizeDate(rng.End)
	if err := rng.Validate(); err != nil {
		return nil, err
	}

	weighting := valuation.Weighting(s.presets.Defaults.Weighting)
	if req.Weighting != "" {
		weighting = valuation.Weighting(req.Weighting)
	}
	if weighting != valuation.WeightingValue && weighting != valuation.WeightingFixed {
		return nil, fmt.Errorf("weighting %q must be value or fixed: %w", weighting, contracts.ErrInvalidRequest)
	}

	return &Resolved{
		PortfolioID: req.PortfolioID,
		Holdings:    req.Holdings,
		Spec:        spec,
		Range:       rng,
		Weighting:   weighting,
	}, nil
}

// Analyze values the portfolio, aligns it with the factor returns, fits the
// model and attributes the result. Any failure is terminal for the request.
func (s *Service) Analyze(ctx context.Context, req Request) (*contracts.Analysis, error) {
	started := s.now()
	runID := uuid.NewString()
	log := s.logger.WithField("run_id", runID)

	resolved, err := s.Validate(req)
	if err != nil {
		return nil, err
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	result, err := s.run(ctx, resolved)
	if err != nil {
		err = s.deadline(ctx, resolved.Range, err)
		log.WithError(err).Warn("Analysis failed")
		return nil, err
	}

	result.RunID = runID
	result.GeneratedAt = s.now()
	result.Duration = result.GeneratedAt.Sub(started)

	log.WithFields(map[string]interface{}{
		"portfolio_id": resolved.PortfolioID,
		"factors":      resolved.Spec.K(),
		"observations": result.Fit.Observations,
		"r_squared":    result.Fit.RSquared,
		"duration":     result.Duration,
	}).Info("Analysis completed")

	return result, nil
}

func (s *Service) run(ctx context.Context, r *Resolved) (*contracts.Analysis, error) {
	holdings := r.Holdings
	if len(holdings) == 0 {
		if s.holdings == nil {
			return nil, fmt.Errorf("no holdings source configured for portfolio %s", r.PortfolioID)
		}
		var err error
		if holdings, err = s.holdings.GetHoldings(ctx, r.PortfolioID); err != nil {
			return nil, err
		}
		if err := contracts.ValidateHoldings(holdings); err != nil {
			return nil, fmt.Errorf("portfolio %s: %w", r.PortfolioID, err)
		}
	}

	valuer := valuation.New(s.router.Instruments(), valuation.Config{
		MaxConcurrency: s.cfg.MaxConcurrency,
		Weighting:      r.Weighting,
	}, s.logger)
	portfolio, err := valuer.Value(ctx, holdings, r.Range.Start, r.Range.End)
	if err != nil {
		return nil, err
	}

	factors, err := s.factorSeries(ctx, r.Spec, r.Range)
	if err != nil {
		return nil, err
	}

	minObs := align.MinObservations(s.presets.Defaults.MinObservations, r.Spec.K())
	table, err := align.Align(append([]contracts.TimeSeries{portfolio}, factors...), r.Range.Start, r.Range.End, minObs)
	if err != nil {
		return nil, err
	}

	fit, err := s.fitter.Fit(table, r.Spec)
	if err != nil {
		return nil, err
	}

	report, err := s.attributor.Attribute(fit, table)
	if err != nil {
		return nil, err
	}

	y, _ := table.Column(valuation.Symbol)
	summary, err := s.risk.Summarize(y, fit)
	if err != nil {
		return nil, err
	}

	out := &contracts.Analysis{
		PortfolioID: r.PortfolioID,
		Spec:        r.Spec,
		Range:       r.Range,
		Holdings:    len(holdings),
		Weighting:   string(r.Weighting),
		Fit:         fit,
		Attribution: report,
		Risk:        summary,
	}
	if report.Mismatch != nil {
		out.Warnings = append(out.Warnings, report.Mismatch.String())
	}
	return out, nil
}

// factorSeries loads every factor from the archive concurrently
func (s *Service) factorSeries(ctx context.Context, spec contracts.FactorModelSpec, rng contracts.DateRange) ([]contracts.TimeSeries, error) {
	out := make([]contracts.TimeSeries, spec.K())
	provider := s.router.For(mdp.KindFactor)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrency)
	for i, id := range spec.FactorIDs {
		g.Go(func() error {
			ts, err := provider.GetReturns(gctx, id, rng.Start, rng.End)
			if err != nil {
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

// deadline turns an expired request deadline into DataUnavailable
func (s *Service) deadline(ctx context.Context, rng contracts.DateRange, err error) error {
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, contracts.ErrDataUnavailable) {
		return err
	}
	return contracts.NewDataUnavailable("analysis", rng.Start, rng.End,
		fmt.Errorf("request exceeded %s: %w", s.cfg.Timeout, context.DeadlineExceeded))
}
