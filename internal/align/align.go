package align

import (
	"fmt"
	"sort"
	"time"

	"github.com/wonny/labfolio/backend/internal/contracts"
)

// Table is a set of series on a shared date index.
// Columns[j][i] is the value of series Names[j] on Dates[i].
type Table struct {
	Dates   []time.Time
	Names   []string
	Columns [][]float64
}

// Rows returns the number of aligned dates
func (t *Table) Rows() int { return len(t.Dates) }

// Column returns the values of the named series
func (t *Table) Column(name string) ([]float64, bool) {
	for j, n := range t.Names {
		if n == name {
			return t.Columns[j], true
		}
	}
	return nil, false
}

// MinObservations returns the effective overlap floor for a k-factor model
// with intercept: at least k+2 dates so that degrees of freedom stay >= 1.
func MinObservations(configured, k int) int {
	return max(configured, k+2)
}

// Align inner-joins series on their common dates within [start, end].
// A date missing from any one series is dropped from all.
// ⭐ No imputation: missing values never enter the design matrix
func Align(series []contracts.TimeSeries, start, end time.Time, minObs int) (*Table, error) {
	rng := contracts.DateRange{Start: start, End: end}
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("no series to align over %s: %w", rng, contracts.ErrInsufficientOverlap)
	}

	names := make([]string, len(series))
	seen := make(map[string]struct{}, len(series))
	lookups := make([]map[time.Time]float64, len(series))
	for j, s := range series {
		names[j] = s.Symbol()
		if _, dup := seen[names[j]]; dup {
			return nil, fmt.Errorf("series %q given twice", names[j])
		}
		seen[names[j]] = struct{}{}
		lookups[j] = s.Between(start, end).Lookup()
	}

	// Walk the shortest series and keep dates every other series has
	shortest := 0
	for j := range lookups {
		if len(lookups[j]) < len(lookups[shortest]) {
			shortest = j
		}
	}

	dates := make([]time.Time, 0, len(lookups[shortest]))
	for d := range lookups[shortest] {
		common := true
		for j := range lookups {
			if _, ok := lookups[j][d]; !ok {
				common = false
				break
			}
		}
		if common {
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(a, b int) bool { return dates[a].Before(dates[b]) })

	if len(dates) < minObs {
		return nil, fmt.Errorf("%d common dates over %s, need %d (shortest series %s has %d): %w",
			len(dates), rng, minObs, names[shortest], len(lookups[shortest]), contracts.ErrInsufficientOverlap)
	}

	cols := make([][]float64, len(series))
	for j := range series {
		col := make([]float64, len(dates))
		for i, d := range dates {
			col[i] = lookups[j][d]
		}
		cols[j] = col
	}

	return &Table{Dates: dates, Names: names, Columns: cols}, nil
}
