package valuation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/labfolio/backend/internal/contracts"
	"github.com/wonny/labfolio/backend/pkg/logger"
)

func day(s string) time.Time {
	t, _ := time.Parse(contracts.DateLayout, s)
	return t
}

type fakePrices struct {
	mu       sync.Mutex
	inFlight int
	peak     int
	delay    time.Duration
	closes   map[string][]float64
	dates    []time.Time
	err      map[string]error
}

func (f *fakePrices) GetReturns(ctx context.Context, symbol string, start, end time.Time) (contracts.TimeSeries, error) {
	return contracts.TimeSeries{}, errors.New("not used")
}

func (f *fakePrices) GetPrices(ctx context.Context, symbol string, start, end time.Time) (contracts.TimeSeries, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err, ok := f.err[symbol]; ok {
		return contracts.TimeSeries{}, err
	}
	closes, ok := f.closes[symbol]
	if !ok {
		return contracts.TimeSeries{}, contracts.NewDataUnavailable(symbol, start, end, contracts.ErrNotFound)
	}
	obs := make([]contracts.Observation, len(closes))
	for i, c := range closes {
		obs[i] = contracts.Observation{Date: f.dates[i], Value: c}
	}
	return contracts.NewTimeSeries(symbol, obs)
}

func twoDays() []time.Time {
	return []time.Time{day("2024-01-02"), day("2024-01-03")}
}

func TestValue_LongShortScenario(t *testing.T) {
	// Weighted return = (10·100·0.10 + (−5)·50·0.10) / (10·100 − 5·50) = 75/750
	prices := &fakePrices{
		dates:  twoDays(),
		closes: map[string][]float64{"AAA": {100, 110}, "BBB": {50, 55}},
	}
	v := New(prices, Config{MaxConcurrency: 2}, logger.Nop())

	ts, err := v.Value(context.Background(),
		[]contracts.Holding{{Ticker: "AAA", Quantity: 10}, {Ticker: "BBB", Quantity: -5}},
		day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)

	require.Equal(t, 1, ts.Len())
	assert.Equal(t, 0.10, ts.At(0).Value)
	assert.Equal(t, day("2024-01-03"), ts.At(0).Date)
	assert.Equal(t, Symbol, ts.Symbol())
}

func TestValue_ShortGainsWhenPriceFalls(t *testing.T) {
	// BBB 50→45: the short earns +25 on a 750 net base, (100 + 25) / 750
	prices := &fakePrices{
		dates:  twoDays(),
		closes: map[string][]float64{"AAA": {100, 110}, "BBB": {50, 45}},
	}
	v := New(prices, Config{}, logger.Nop())

	ts, err := v.Value(context.Background(),
		[]contracts.Holding{{Ticker: "AAA", Quantity: 10}, {Ticker: "BBB", Quantity: -5}},
		day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)
	assert.InDelta(t, 125.0/750.0, ts.At(0).Value, 1e-15)
}

func TestValue_WeightsRecomputedEachPeriod(t *testing.T) {
	dates := []time.Time{day("2024-01-02"), day("2024-01-03"), day("2024-01-04")}
	prices := &fakePrices{
		dates:  dates,
		closes: map[string][]float64{"AAA": {100, 200, 200}, "BBB": {100, 100, 110}},
	}
	holdings := []contracts.Holding{{Ticker: "AAA", Quantity: 1}, {Ticker: "BBB", Quantity: 1}}

	value := New(prices, Config{Weighting: WeightingValue}, logger.Nop())
	ts, err := value.Value(context.Background(), holdings, day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)
	// period 2: base 300, gain 10
	assert.InDelta(t, 0.5, ts.At(0).Value, 1e-12)
	assert.InDelta(t, 10.0/300.0, ts.At(1).Value, 1e-12)

	fixed := New(prices, Config{Weighting: WeightingFixed}, logger.Nop())
	ts, err = fixed.Value(context.Background(), holdings, day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)
	// weights frozen at 50/50
	assert.InDelta(t, 0.5, ts.At(0).Value, 1e-12)
	assert.InDelta(t, 0.05, ts.At(1).Value, 1e-12)
}

func TestValue_EmptyPortfolio(t *testing.T) {
	v := New(&fakePrices{}, Config{}, logger.Nop())

	_, err := v.Value(context.Background(), nil, day("2024-01-01"), day("2024-01-31"))
	assert.ErrorIs(t, err, contracts.ErrEmptyPortfolio)
}

func TestValue_DuplicateTicker(t *testing.T) {
	v := New(&fakePrices{}, Config{}, logger.Nop())

	_, err := v.Value(context.Background(),
		[]contracts.Holding{{Ticker: "AAA", Quantity: 1}, {Ticker: "AAA", Quantity: 2}},
		day("2024-01-01"), day("2024-01-31"))
	assert.ErrorIs(t, err, contracts.ErrDuplicateTicker)
}

func TestValue_MissingTickerNamed(t *testing.T) {
	prices := &fakePrices{
		dates:  twoDays(),
		closes: map[string][]float64{"AAA": {100, 110}},
		err:    map[string]error{"BAD": errors.New("socket hang up")},
	}
	v := New(prices, Config{}, logger.Nop())

	_, err := v.Value(context.Background(),
		[]contracts.Holding{{Ticker: "AAA", Quantity: 1}, {Ticker: "BAD", Quantity: 1}},
		day("2024-01-01"), day("2024-01-31"))
	require.ErrorIs(t, err, contracts.ErrDataUnavailable)

	var typed *contracts.DataUnavailableError
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, "BAD", typed.Symbol)
}

func TestValue_ZeroNetExposure(t *testing.T) {
	prices := &fakePrices{
		dates:  twoDays(),
		closes: map[string][]float64{"AAA": {100, 110}, "BBB": {100, 90}},
	}
	v := New(prices, Config{}, logger.Nop())

	_, err := v.Value(context.Background(),
		[]contracts.Holding{{Ticker: "AAA", Quantity: 1}, {Ticker: "BBB", Quantity: -1}},
		day("2024-01-01"), day("2024-01-31"))
	assert.ErrorIs(t, err, contracts.ErrZeroExposure)
	assert.Contains(t, err.Error(), "2024-01-03")
}

func TestValue_ConcurrencyCap(t *testing.T) {
	closes := map[string][]float64{}
	var holdings []contracts.Holding
	for _, tk := range []string{"A", "B", "C", "D", "E", "F"} {
		closes[tk] = []float64{10, 11}
		holdings = append(holdings, contracts.Holding{Ticker: tk, Quantity: 1})
	}
	prices := &fakePrices{dates: twoDays(), closes: closes, delay: 10 * time.Millisecond}
	v := New(prices, Config{MaxConcurrency: 2}, logger.Nop())

	_, err := v.Value(context.Background(), holdings, day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)
	assert.LessOrEqual(t, prices.peak, 2)
}
