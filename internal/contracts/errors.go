package contracts

import (
	"errors"
	"fmt"
	"time"
)

// ⭐ SSOT: engine error taxonomy lives here only
var (
	// ErrDataUnavailable: a required series cannot be resolved
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrInsufficientOverlap: aligned date intersection too small to fit
	ErrInsufficientOverlap = errors.New("insufficient overlap")
	// ErrInsufficientObservations: degrees of freedom exhausted
	ErrInsufficientObservations = errors.New("insufficient observations")
	// ErrDegenerateModel: collinear or near-singular factor design
	ErrDegenerateModel = errors.New("degenerate model")
	// ErrEmptyPortfolio: holdings set is empty
	ErrEmptyPortfolio = errors.New("empty portfolio")
	// ErrZeroExposure: net start-of-period portfolio value is zero
	ErrZeroExposure = errors.New("zero net exposure")

	// Boundary validation
	ErrDuplicateFactor  = errors.New("duplicate factor id")
	ErrEmptyFactorSet   = errors.New("empty factor set")
	ErrInvalidDateRange = errors.New("invalid date range")
	ErrDuplicateTicker  = errors.New("duplicate ticker")
	ErrInvalidHolding   = errors.New("invalid holding")
	ErrInvalidRequest   = errors.New("invalid request")

	// Series construction
	ErrDuplicateDate      = errors.New("duplicate date")
	ErrInvalidObservation = errors.New("non-finite observation")

	ErrNotFound = errors.New("not found")
)

// DataUnavailableError names the symbol and range that could not be resolved
type DataUnavailableError struct {
	Symbol string
	Start  time.Time
	End    time.Time
	Err    error
}

// NewDataUnavailable wraps cause for symbol over [start, end]
func NewDataUnavailable(symbol string, start, end time.Time, cause error) error {
	return &DataUnavailableError{Symbol: symbol, Start: start, End: end, Err: cause}
}

func (e *DataUnavailableError) Error() string {
	msg := fmt.Sprintf("data unavailable for %s between %s and %s",
		e.Symbol, e.Start.Format(DateLayout), e.End.Format(DateLayout))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrDataUnavailable) hold for every DataUnavailableError
func (e *DataUnavailableError) Is(target error) bool {
	return target == ErrDataUnavailable
}

// IsValidationError reports whether err was raised by boundary validation
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrEmptyPortfolio,
		ErrDuplicateFactor,
		ErrEmptyFactorSet,
		ErrInvalidDateRange,
		ErrDuplicateTicker,
		ErrInvalidHolding,
		ErrInvalidRequest,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
