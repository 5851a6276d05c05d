package yahoo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/labfolio/backend/internal/contracts"
	"github.com/wonny/labfolio/backend/pkg/config"
	"github.com/wonny/labfolio/backend/pkg/httputil"
	"github.com/wonny/labfolio/backend/pkg/logger"
)

const chartFixture = `{
  "chart": {
    "result": [{
      "meta": {"symbol": "AAPL", "currency": "USD", "gmtoffset": -18000},
      "timestamp": [1704205800, 1704292200, 1704378600, 1704465000],
      "indicators": {
        "quote": [{"close": [185.64, 184.25, null, 181.18]}],
        "adjclose": [{"adjclose": [184.73, 183.35, null, 180.29]}]
      }
    }],
    "error": null
  }
}`

func newTestClient(baseURL string) *Client {
	hc := httputil.New(&config.Config{}, logger.Nop()).WithRetry(0, time.Millisecond)
	return NewClient(hc, baseURL, logger.Nop())
}

func TestGetDailyCloses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/AAPL", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.Equal(t, "1704153600", r.URL.Query().Get("period1")) // 2024-01-02
		assert.Equal(t, "1704499200", r.URL.Query().Get("period2")) // 2024-01-06
		_, _ = w.Write([]byte(chartFixture))
	}))
	defer server.Close()

	quotes, err := newTestClient(server.URL).GetDailyCloses(context.Background(), "AAPL",
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Len(t, quotes, 3)
	assert.Equal(t, "2024-01-02", quotes[0].Date.Format(contracts.DateLayout))
	assert.Equal(t, 184.73, quotes[0].AdjClose)
	assert.Equal(t, "2024-01-05", quotes[2].Date.Format(contracts.DateLayout))
	assert.Equal(t, 180.29, quotes[2].AdjClose)
}

func TestGetDailyCloses_NotFound(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"http 404", http.StatusNotFound, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`},
		{"api error body", http.StatusOK, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`},
		{"empty result", http.StatusOK, `{"chart":{"result":[],"error":null}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.payload))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).GetDailyCloses(context.Background(), "ZZZZ",
				time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
			assert.ErrorIs(t, err, contracts.ErrNotFound)
		})
	}
}

func TestGetDailyCloses_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetDailyCloses(context.Background(), "AAPL",
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.NotErrorIs(t, err, contracts.ErrNotFound)
	assert.True(t, strings.Contains(err.Error(), "502"))
}

func TestParseChart_FallsBackToClose(t *testing.T) {
	var chart chartResponse
	payload := `{"chart":{"result":[{"meta":{"gmtoffset":0},"timestamp":[1704153600],"indicators":{"quote":[{"close":[10.5]}]}}]}}`
	require.NoError(t, json.Unmarshal([]byte(payload), &chart))

	quotes, err := parseChart("X", &chart)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, 10.5, quotes[0].AdjClose)
}
