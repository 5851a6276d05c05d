package contracts

import (
	"fmt"
	"strings"
	"time"
)

// Holding is a position within a portfolio; negative quantity = short
type Holding struct {
	Ticker   string `json:"ticker"`
	Quantity int64  `json:"quantity"`
}

// Portfolio references an externally stored holdings file, never holdings inline
type Portfolio struct {
	ID        string    `json:"portfolio_id"`
	UserID    string    `json:"user_id,omitempty"`
	Name      string    `json:"portfolio_name"`
	Address   string    `json:"portfolio_address"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidateHoldings enforces the holdings invariants at the boundary.
// Duplicate tickers are rejected rather than merged.
func ValidateHoldings(holdings []Holding) error {
	if len(holdings) == 0 {
		return ErrEmptyPortfolio
	}

	seen := make(map[string]struct{}, len(holdings))
	for i, h := range holdings {
		ticker := strings.TrimSpace(h.Ticker)
		if ticker == "" {
			return fmt.Errorf("holding %d has no ticker: %w", i, ErrInvalidHolding)
		}
		if _, dup := seen[ticker]; dup {
			return fmt.Errorf("%s: %w", ticker, ErrDuplicateTicker)
		}
		seen[ticker] = struct{}{}
	}
	return nil
}

// Tickers returns the holding tickers in order
func Tickers(holdings []Holding) []string {
	out := make([]string, len(holdings))
	for i, h := range holdings {
		out[i] = h.Ticker
	}
	return out
}
