package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/labfolio/backend/internal/contracts"
	"github.com/wonny/labfolio/backend/pkg/logger"
	"github.com/wonny/labfolio/backend/pkg/redis"
)

// FactorHandler serves the factor library
// ⭐ SSOT: factor library API handlers live in this struct only
type FactorHandler struct {
	catalog contracts.FactorCatalog
	cache   *redis.Cache
	logger  *logger.Logger
}

// NewFactorHandler creates a factor handler; cache may be nil
func NewFactorHandler(catalog contracts.FactorCatalog, cache *redis.Cache, log *logger.Logger) *FactorHandler {
	return &FactorHandler{
		catalog: catalog,
		cache:   cache,
		logger:  log,
	}
}

// List returns every factor in the library
// GET /api/factors
func (h *FactorHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var factors []contracts.Factor
	if h.cache != nil {
		if hit, err := h.cache.Get(ctx, redis.FactorListKey(), &factors); err == nil && hit {
			respondData(w, factors)
			return
		}
	}

	factors, err := h.catalog.List(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list factors")
		respondErr(w, err)
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, redis.FactorListKey(), factors, redis.TTLDaily); err != nil {
			h.logger.WithError(err).Warn("Failed to cache factor list")
		}
	}

	respondData(w, factors)
}

// Get returns one factor
// GET /api/factors/{id}
func (h *FactorHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		respondError(w, http.StatusBadRequest, "factor id is required")
		return
	}

	factor, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		if StatusFor(err) == http.StatusInternalServerError {
			h.logger.WithError(err).WithField("factor_id", id).Error("Failed to get factor")
		}
		respondErr(w, err)
		return
	}

	respondData(w, factor)
}
