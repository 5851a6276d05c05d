package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/wonny/labfolio/backend/internal/analysis"
	"github.com/wonny/labfolio/backend/internal/contracts"
	"github.com/wonny/labfolio/backend/internal/modelconfig"
	"github.com/wonny/labfolio/backend/pkg/logger"
)

// Analyzer is the engine surface the analysis endpoints need
type Analyzer interface {
	Validate(req analysis.Request) (*analysis.Resolved, error)
	Analyze(ctx context.Context, req analysis.Request) (*contracts.Analysis, error)
	Presets() *modelconfig.Config
}

// AnalysisHandler serves the factor model endpoints
// ⭐ SSOT: analysis API handlers live in this struct only
type AnalysisHandler struct {
	engine Analyzer
	logger *logger.Logger
}

// NewAnalysisHandler creates an analysis handler
func NewAnalysisHandler(engine Analyzer, log *logger.Logger) *AnalysisHandler {
	return &AnalysisHandler{engine: engine, logger: log}
}

// AnalysisRequest is the request body of the analysis endpoints
type AnalysisRequest struct {
	PortfolioID string              `json:"portfolio_id"`
	Holdings    []contracts.Holding `json:"holdings"`
	FactorIDs   []string            `json:"factor_ids"`
	Preset      string              `json:"preset"`
	Start       string              `json:"start"` // YYYY-MM-DD, optional
	End         string              `json:"end"`   // YYYY-MM-DD, optional
	Weighting   string              `json:"weighting"`
}

func (a AnalysisRequest) toRequest() (analysis.Request, error) {
	req := analysis.Request{
		PortfolioID: a.PortfolioID,
		Holdings:    a.Holdings,
		FactorIDs:   a.FactorIDs,
		Preset:      a.Preset,
		Weighting:   a.Weighting,
	}
	var err error
	if a.Start != "" {
		if req.Start, err = time.Parse(contracts.DateLayout, a.Start); err != nil {
			return req, fmt.Errorf("start %q (expected YYYY-MM-DD): %w", a.Start, contracts.ErrInvalidDateRange)
		}
	}
	if a.End != "" {
		if req.End, err = time.Parse(contracts.DateLayout, a.End); err != nil {
			return req, fmt.Errorf("end %q (expected YYYY-MM-DD): %w", a.End, contracts.ErrInvalidDateRange)
		}
	}
	return req, nil
}

func (h *AnalysisHandler) decode(w http.ResponseWriter, r *http.Request) (analysis.Request, bool) {
	var body AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return analysis.Request{}, false
	}
	req, err := body.toRequest()
	if err != nil {
		respondErr(w, err)
		return analysis.Request{}, false
	}
	return req, true
}

// Validate checks a request without fetching any data
// POST /api/analysis/validate
func (h *AnalysisHandler) Validate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	resolved, err := h.engine.Validate(req)
	if err != nil {
		respondJSON(w, StatusFor(err), map[string]interface{}{
			"valid": false,
			"error": err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"valid":      true,
		"factor_ids": resolved.Spec.FactorIDs,
		"range":      resolved.Range,
		"weighting":  resolved.Weighting,
	})
}

// FactorModel runs one analysis
// POST /api/analysis/factor-model
func (h *AnalysisHandler) FactorModel(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	result, err := h.engine.Analyze(r.Context(), req)
	if err != nil {
		if StatusFor(err) == http.StatusInternalServerError {
			h.logger.WithError(err).WithField("portfolio_id", req.PortfolioID).Error("Analysis failed")
		}
		respondErr(w, err)
		return
	}

	respondData(w, result)
}

// Models lists the configured factor model presets
// GET /api/models
func (h *AnalysisHandler) Models(w http.ResponseWriter, r *http.Request) {
	presets := h.engine.Presets()

	hash, err := modelconfig.Hash(presets)
	if err != nil {
		h.logger.WithError(err).Error("Failed to hash presets")
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	list := presets.Presets
	if list == nil {
		list = []modelconfig.Preset{}
	}
	respondData(w, map[string]interface{}{
		"version":  presets.Version,
		"hash":     hash,
		"defaults": presets.Defaults,
		"presets":  list,
	})
}
