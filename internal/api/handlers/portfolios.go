package handlers

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/labfolio/backend/internal/contracts"
	"github.com/wonny/labfolio/backend/pkg/logger"
)

// PortfolioHandler serves portfolio listings and holdings
type PortfolioHandler struct {
	portfolios contracts.PortfolioLister
	holdings   contracts.HoldingsSource
	logger     *logger.Logger
}

// NewPortfolioHandler creates a portfolio handler
func NewPortfolioHandler(portfolios contracts.PortfolioLister, holdings contracts.HoldingsSource, log *logger.Logger) *PortfolioHandler {
	return &PortfolioHandler{portfolios: portfolios, holdings: holdings, logger: log}
}

// List returns a user's portfolios, the demo portfolio included
// GET /api/portfolios?user_id=
func (h *PortfolioHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		respondErr(w, fmt.Errorf("user_id query parameter is required: %w", contracts.ErrInvalidRequest))
		return
	}

	portfolios, err := h.portfolios.List(r.Context(), userID)
	if err != nil {
		if StatusFor(err) == http.StatusInternalServerError {
			h.logger.WithError(err).WithField("user_id", userID).Error("Failed to list portfolios")
		}
		respondErr(w, err)
		return
	}

	respondData(w, portfolios)
}

// GetHoldings returns the parsed holdings file of a portfolio
// GET /api/portfolios/{id}/holdings
func (h *PortfolioHandler) GetHoldings(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	holdings, err := h.holdings.GetHoldings(r.Context(), id)
	if err != nil {
		if StatusFor(err) == http.StatusInternalServerError {
			h.logger.WithError(err).WithField("portfolio_id", id).Error("Failed to load holdings")
		}
		respondErr(w, err)
		return
	}
	if holdings == nil {
		holdings = []contracts.Holding{}
	}

	respondData(w, map[string]interface{}{
		"portfolio_id": id,
		"holdings":     holdings,
	})
}
