package contracts

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

// DateLayout is the wire format for calendar dates
const DateLayout = "2006-01-02"

// Observation is a single dated value of a return or price series
type Observation struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// TimeSeries is an ordered series with strictly increasing, unique dates.
// ⭐ SSOT: the only series type exchanged between MDP, Valuation, Aligner and Fitter
// Values are never mutated after construction; accessors hand out copies.
type TimeSeries struct {
	symbol string
	obs    []Observation
}

// NewTimeSeries normalizes dates to UTC calendar days, sorts them and rejects
// duplicate dates and non-finite values.
func NewTimeSeries(symbol string, obs []Observation) (TimeSeries, error) {
	out := make([]Observation, len(obs))
	for i, o := range obs {
		if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
			return TimeSeries{}, fmt.Errorf("%s on %s: %w", symbol, o.Date.Format(DateLayout), ErrInvalidObservation)
		}
		out[i] = Observation{Date: NormalizeDate(o.Date), Value: o.Value}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	for i := 1; i < len(out); i++ {
		if out[i].Date.Equal(out[i-1].Date) {
			return TimeSeries{}, fmt.Errorf("%s on %s: %w", symbol, out[i].Date.Format(DateLayout), ErrDuplicateDate)
		}
	}

	return TimeSeries{symbol: symbol, obs: out}, nil
}

// EmptySeries returns a series with no observations
func EmptySeries(symbol string) TimeSeries {
	return TimeSeries{symbol: symbol}
}

// NormalizeDate truncates t to its calendar day in UTC
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Symbol returns the identifier the series belongs to
func (ts TimeSeries) Symbol() string { return ts.symbol }

// Len returns the number of observations
func (ts TimeSeries) Len() int { return len(ts.obs) }

// IsEmpty reports whether the series has no observations
func (ts TimeSeries) IsEmpty() bool { return len(ts.obs) == 0 }

// At returns the i-th observation
func (ts TimeSeries) At(i int) Observation { return ts.obs[i] }

// Observations returns a copy of the observations
func (ts TimeSeries) Observations() []Observation {
	out := make([]Observation, len(ts.obs))
	copy(out, ts.obs)
	return out
}

// Dates returns the observation dates in order
func (ts TimeSeries) Dates() []time.Time {
	out := make([]time.Time, len(ts.obs))
	for i, o := range ts.obs {
		out[i] = o.Date
	}
	return out
}

// Values returns the observation values in order
func (ts TimeSeries) Values() []float64 {
	out := make([]float64, len(ts.obs))
	for i, o := range ts.obs {
		out[i] = o.Value
	}
	return out
}

// Lookup returns a date → value index
func (ts TimeSeries) Lookup() map[time.Time]float64 {
	out := make(map[time.Time]float64, len(ts.obs))
	for _, o := range ts.obs {
		out[o.Date] = o.Value
	}
	return out
}

// Between returns the observations within [start, end] (inclusive)
func (ts TimeSeries) Between(start, end time.Time) TimeSeries {
	start, end = NormalizeDate(start), NormalizeDate(end)
	lo := sort.Search(len(ts.obs), func(i int) bool { return !ts.obs[i].Date.Before(start) })
	hi := sort.Search(len(ts.obs), func(i int) bool { return ts.obs[i].Date.After(end) })
	if lo >= hi {
		return EmptySeries(ts.symbol)
	}
	out := make([]Observation, hi-lo)
	copy(out, ts.obs[lo:hi])
	return TimeSeries{symbol: ts.symbol, obs: out}
}

// First and Last return the bounding dates; zero time for an empty series
func (ts TimeSeries) First() time.Time {
	if len(ts.obs) == 0 {
		return time.Time{}
	}
	return ts.obs[0].Date
}

func (ts TimeSeries) Last() time.Time {
	if len(ts.obs) == 0 {
		return time.Time{}
	}
	return ts.obs[len(ts.obs)-1].Date
}

type seriesJSON struct {
	Symbol       string        `json:"symbol"`
	Observations []Observation `json:"observations"`
}

// MarshalJSON implements json.Marshaler
func (ts TimeSeries) MarshalJSON() ([]byte, error) {
	obs := ts.obs
	if obs == nil {
		obs = []Observation{}
	}
	return json.Marshal(seriesJSON{Symbol: ts.symbol, Observations: obs})
}

// UnmarshalJSON implements json.Unmarshaler and re-applies construction rules
func (ts *TimeSeries) UnmarshalJSON(data []byte) error {
	var raw seriesJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewTimeSeries(raw.Symbol, raw.Observations)
	if err != nil {
		return err
	}
	*ts = parsed
	return nil
}

// Quote is one daily adjusted close from the live quote source
type Quote struct {
	Date     time.Time `json:"date"`
	AdjClose float64   `json:"adj_close"`
}

// DateRange is an inclusive calendar range
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate rejects zero or reversed ranges
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("start and end are required: %w", ErrInvalidDateRange)
	}
	if NormalizeDate(r.End).Before(NormalizeDate(r.Start)) {
		return fmt.Errorf("end %s is before start %s: %w",
			r.End.Format(DateLayout), r.Start.Format(DateLayout), ErrInvalidDateRange)
	}
	return nil
}

func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}
