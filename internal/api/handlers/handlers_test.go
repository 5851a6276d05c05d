package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/labfolio/backend/internal/analysis"
	"github.com/wonny/labfolio/backend/internal/contracts"
	"github.com/wonny/labfolio/backend/internal/modelconfig"
	"github.com/wonny/labfolio/backend/pkg/logger"
)

type fakeCatalog struct {
	factors []contracts.Factor
	err     error
}

func (f *fakeCatalog) List(ctx context.Context) ([]contracts.Factor, error) {
	return f.factors, f.err
}

func (f *fakeCatalog) Get(ctx context.Context, id string) (*contracts.Factor, error) {
	for _, fac := range f.factors {
		if fac.ID == id {
			return &fac, nil
		}
	}
	return nil, fmt.Errorf("factor %s: %w", id, contracts.ErrNotFound)
}

type fakeHoldings map[string][]contracts.Holding

func (f fakeHoldings) GetHoldings(ctx context.Context, id string) ([]contracts.Holding, error) {
	h, ok := f[id]
	if !ok {
		return nil, fmt.Errorf("portfolio %s: %w", id, contracts.ErrNotFound)
	}
	return h, nil
}

type fakePortfolios struct {
	byUser map[string][]contracts.Portfolio
	demo   contracts.Portfolio
	err    error
}

func (f *fakePortfolios) List(ctx context.Context, userID string) ([]contracts.Portfolio, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append(append([]contracts.Portfolio{}, f.byUser[userID]...), f.demo), nil
}

type fakeAnalyzer struct {
	got     analysis.Request
	result  *contracts.Analysis
	err     error
	presets *modelconfig.Config
}

func (f *fakeAnalyzer) Validate(req analysis.Request) (*analysis.Resolved, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	spec, err := contracts.NewFactorModelSpec(req.FactorIDs)
	if err != nil {
		return nil, err
	}
	return &analysis.Resolved{Spec: spec, Range: contracts.DateRange{Start: req.Start, End: req.End}, Weighting: "value"}, nil
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, req analysis.Request) (*contracts.Analysis, error) {
	f.got = req
	return f.result, f.err
}

func (f *fakeAnalyzer) Presets() *modelconfig.Config { return f.presets }

func serve(method, pattern, target, body string, h http.HandlerFunc) *httptest.ResponseRecorder {
	r := mux.NewRouter()
	r.HandleFunc(pattern, h).Methods(method)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestStatusFor(t *testing.T) {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"empty portfolio", contracts.ErrEmptyPortfolio, http.StatusBadRequest},
		{"duplicate factor", fmt.Errorf("x: %w", contracts.ErrDuplicateFactor), http.StatusBadRequest},
		{"bad range", contracts.ErrInvalidDateRange, http.StatusBadRequest},
		{"not found", contracts.ErrNotFound, http.StatusNotFound},
		{"unavailable ticker", contracts.NewDataUnavailable("ZZZ", day, day, contracts.ErrNotFound), http.StatusFailedDependency},
		{"timeout", contracts.NewDataUnavailable("analysis", day, day, context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"overlap", contracts.ErrInsufficientOverlap, http.StatusUnprocessableEntity},
		{"degenerate", contracts.ErrDegenerateModel, http.StatusUnprocessableEntity},
		{"zero exposure", contracts.ErrZeroExposure, http.StatusUnprocessableEntity},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestFactorHandler(t *testing.T) {
	catalog := &fakeCatalog{factors: []contracts.Factor{
		{ID: "MKT", Name: "Market", Category: contracts.CategoryStyle},
	}}
	h := NewFactorHandler(catalog, nil, logger.Nop())

	rec := serve("GET", "/api/factors", "/api/factors", "", h.List)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Len(t, body["data"], 1)

	rec = serve("GET", "/api/factors/{id}", "/api/factors/MKT", "", h.Get)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve("GET", "/api/factors/{id}", "/api/factors/XXX", "", h.Get)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	catalog.err = fmt.Errorf("connection refused")
	rec = serve("GET", "/api/factors", "/api/factors", "", h.List)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decodeBody(t, rec)["error"])
}

func TestPortfolioHandler_GetHoldings(t *testing.T) {
	h := NewPortfolioHandler(nil, fakeHoldings{
		"p-1": {{Ticker: "AAPL", Quantity: 10}},
	}, logger.Nop())

	rec := serve("GET", "/api/portfolios/{id}/holdings", "/api/portfolios/p-1/holdings", "", h.GetHoldings)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "p-1", data["portfolio_id"])
	assert.Len(t, data["holdings"], 1)

	rec = serve("GET", "/api/portfolios/{id}/holdings", "/api/portfolios/p-9/holdings", "", h.GetHoldings)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPortfolioHandler_List(t *testing.T) {
	lister := &fakePortfolios{
		byUser: map[string][]contracts.Portfolio{"u-1": {{ID: "p-1", UserID: "u-1", Name: "Core"}}},
		demo:   contracts.Portfolio{ID: "demo", Name: "Demo"},
	}
	h := NewPortfolioHandler(lister, nil, logger.Nop())

	tests := []struct {
		name   string
		target string
		err    error
		code   int
		ids    []string
	}{
		{"own plus demo", "/api/portfolios?user_id=u-1", nil, http.StatusOK, []string{"p-1", "demo"}},
		{"demo only", "/api/portfolios?user_id=u-2", nil, http.StatusOK, []string{"demo"}},
		{"missing user", "/api/portfolios", nil, http.StatusBadRequest, nil},
		{"store failure", "/api/portfolios?user_id=u-1", fmt.Errorf("connection refused"), http.StatusInternalServerError, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lister.err = tt.err
			rec := serve("GET", "/api/portfolios", tt.target, "", h.List)
			require.Equal(t, tt.code, rec.Code)
			if tt.ids == nil {
				return
			}

			data := decodeBody(t, rec)["data"].([]interface{})
			ids := make([]string, 0, len(data))
			for _, p := range data {
				ids = append(ids, p.(map[string]interface{})["portfolio_id"].(string))
			}
			assert.Equal(t, tt.ids, ids)
		})
	}
}

func TestAnalysisHandler_FactorModel(t *testing.T) {
	engine := &fakeAnalyzer{result: &contracts.Analysis{RunID: "run-1", Fit: &contracts.FitResult{Alpha: 0.01}}}
	h := NewAnalysisHandler(engine, logger.Nop())

	rec := serve("POST", "/api/analysis/factor-model", "/api/analysis/factor-model",
		`{"portfolio_id":"p-1","factor_ids":["MKT","SMB"],"start":"2024-01-01","end":"2024-06-30"}`, h.FactorModel)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p-1", engine.got.PortfolioID)
	assert.Equal(t, []string{"MKT", "SMB"}, engine.got.FactorIDs)
	assert.Equal(t, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), engine.got.End)
	data := decodeBody(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "run-1", data["run_id"])
}

func TestAnalysisHandler_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"malformed body", `{"factor_ids":`, nil, http.StatusBadRequest},
		{"bad date", `{"portfolio_id":"p-1","factor_ids":["MKT"],"start":"01/02/2024"}`, nil, http.StatusBadRequest},
		{"overlap", `{"portfolio_id":"p-1","factor_ids":["MKT"]}`, fmt.Errorf("align: %w", contracts.ErrInsufficientOverlap), http.StatusUnprocessableEntity},
		{"missing ticker", `{"portfolio_id":"p-1","factor_ids":["MKT"]}`,
			contracts.NewDataUnavailable("ZZZ", time.Now(), time.Now(), contracts.ErrNotFound), http.StatusFailedDependency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAnalysisHandler(&fakeAnalyzer{err: tt.err}, logger.Nop())
			rec := serve("POST", "/x", "/x", tt.body, h.FactorModel)
			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, decodeBody(t, rec)["error"])
		})
	}
}

func TestAnalysisHandler_Validate(t *testing.T) {
	h := NewAnalysisHandler(&fakeAnalyzer{}, logger.Nop())

	rec := serve("POST", "/v", "/v", `{"portfolio_id":"p-1","factor_ids":["MKT","HML"]}`, h.Validate)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, []interface{}{"MKT", "HML"}, body["factor_ids"])

	rec = serve("POST", "/v", "/v", `{"portfolio_id":"p-1","factor_ids":["MKT","MKT"]}`, h.Validate)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, false, body["valid"])
	assert.Contains(t, body["error"], "duplicate factor id")
}

func TestAnalysisHandler_Models(t *testing.T) {
	presets := modelconfig.Default()
	presets.Presets = []modelconfig.Preset{{ID: "capm", Name: "CAPM", FactorIDs: []string{"MKT"}}}
	h := NewAnalysisHandler(&fakeAnalyzer{presets: presets}, logger.Nop())

	rec := serve("GET", "/api/models", "/api/models", "", h.Models)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]interface{})
	assert.Len(t, data["presets"], 1)
	assert.NotEmpty(t, data["hash"])
	assert.EqualValues(t, 1, data["version"])
}
