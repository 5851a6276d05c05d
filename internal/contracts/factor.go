package contracts

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FactorCategory classifies a factor in the library
type FactorCategory string

const (
	CategoryCountry FactorCategory = "Country"
	CategorySector  FactorCategory = "Sector"
	CategoryStyle   FactorCategory = "Style"
)

// Valid reports whether c is a known category
func (c FactorCategory) Valid() bool {
	switch c {
	case CategoryCountry, CategorySector, CategoryStyle:
		return true
	}
	return false
}

// Factor is a named systematic return driver
// ⭐ Owned by the factor library; the engine only reads it
type Factor struct {
	ID          string         `json:"factor_id"`
	Name        string         `json:"factor_name"`
	Category    FactorCategory `json:"category"`
	Description string         `json:"description"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ReturnScale is the number of fractional digits stored per return value
const ReturnScale = 6

// ReturnRow is one archived daily factor return; (FactorID, Date) is unique
type ReturnRow struct {
	FactorID string          `json:"factor_id"`
	Date     time.Time       `json:"date"`
	Value    decimal.Decimal `json:"return_value"`
}

// NewReturnRow rounds value to the archive precision
func NewReturnRow(factorID string, date time.Time, value float64) ReturnRow {
	return ReturnRow{
		FactorID: factorID,
		Date:     NormalizeDate(date),
		Value:    decimal.NewFromFloat(value).Round(ReturnScale),
	}
}

// Float returns the value as float64 for numerical work
func (r ReturnRow) Float() float64 {
	f, _ := r.Value.Float64()
	return f
}

// PortfolioSymbol names the portfolio return column in aligned tables; no factor may use it
const PortfolioSymbol = "portfolio"

// FactorModelSpec is the ordered, duplicate-free set of factors a fit regresses on
type FactorModelSpec struct {
	FactorIDs []string `json:"factor_ids"`
}

// NewFactorModelSpec trims ids and validates the result
func NewFactorModelSpec(ids []string) (FactorModelSpec, error) {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strings.TrimSpace(id)
	}
	spec := FactorModelSpec{FactorIDs: out}
	return spec, spec.Validate()
}

// Validate rejects empty sets, blank or reserved ids and duplicates
func (s FactorModelSpec) Validate() error {
	if len(s.FactorIDs) == 0 {
		return ErrEmptyFactorSet
	}
	seen := make(map[string]struct{}, len(s.FactorIDs))
	for _, id := range s.FactorIDs {
		if id == "" {
			return fmt.Errorf("blank factor id: %w", ErrEmptyFactorSet)
		}
		if id == PortfolioSymbol {
			return fmt.Errorf("factor id %q is reserved for the portfolio series: %w", id, ErrInvalidRequest)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%s: %w", id, ErrDuplicateFactor)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// K returns the number of factors
func (s FactorModelSpec) K() int { return len(s.FactorIDs) }
