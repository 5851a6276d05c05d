package holdings

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/wonny/labfolio/backend/internal/contracts"
)

const (
	columnTicker   = "yf_ticker"
	columnQuantity = "quantity"
)

// ParseCSV reads a holdings file whose only columns are yf_ticker and quantity
// (any order). Quantities must be integers; negative means short.
func ParseCSV(r io.Reader) ([]contracts.Holding, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("missing header: %w", contracts.ErrInvalidHolding)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %v: %w", err, contracts.ErrInvalidHolding)
	}

	tickerIdx, qtyIdx, err := columns(header)
	if err != nil {
		return nil, err
	}

	var out []contracts.Holding
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %v: %w", line, err, contracts.ErrInvalidHolding)
		}

		ticker := strings.TrimSpace(rec[tickerIdx])
		if ticker == "" {
			return nil, fmt.Errorf("line %d: empty ticker: %w", line, contracts.ErrInvalidHolding)
		}
		qty, err := strconv.ParseInt(strings.TrimSpace(rec[qtyIdx]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: quantity %q is not an integer: %w", line, rec[qtyIdx], contracts.ErrInvalidHolding)
		}
		out = append(out, contracts.Holding{Ticker: ticker, Quantity: qty})
	}

	if len(out) > 0 {
		if err := contracts.ValidateHoldings(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func columns(header []string) (tickerIdx, qtyIdx int, err error) {
	tickerIdx, qtyIdx = -1, -1
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case columnTicker:
			if tickerIdx >= 0 {
				return 0, 0, fmt.Errorf("column %s repeated: %w", columnTicker, contracts.ErrInvalidHolding)
			}
			tickerIdx = i
		case columnQuantity:
			if qtyIdx >= 0 {
				return 0, 0, fmt.Errorf("column %s repeated: %w", columnQuantity, contracts.ErrInvalidHolding)
			}
			qtyIdx = i
		default:
			return 0, 0, fmt.Errorf("unexpected column %q (only %s and %s are allowed): %w",
				h, columnTicker, columnQuantity, contracts.ErrInvalidHolding)
		}
	}
	if tickerIdx < 0 || qtyIdx < 0 {
		return 0, 0, fmt.Errorf("header must contain %s and %s: %w", columnTicker, columnQuantity, contracts.ErrInvalidHolding)
	}
	return tickerIdx, qtyIdx, nil
}
