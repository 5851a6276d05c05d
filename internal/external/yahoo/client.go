package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wonny/labfolio/backend/internal/contracts"
	"github.com/wonny/labfolio/backend/pkg/httputil"
	"github.com/wonny/labfolio/backend/pkg/logger"
)

// Client fetches daily adjusted closes from the Yahoo Finance chart API
// ⭐ SSOT: Yahoo Finance calls happen in this client only
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new Yahoo Finance client
func NewClient(httpClient *httputil.Client, baseURL string, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("module", "yahoo"),
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// chartResponse is the subset of the v8 chart payload we read
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				Currency  string `json:"currency"`
				GMTOffset int64  `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetDailyCloses implements contracts.QuoteSource
func (c *Client) GetDailyCloses(ctx context.Context, ticker string, start, end time.Time) ([]contracts.Quote, error) {
	params := url.Values{}
	params.Set("period1", fmt.Sprintf("%d", contracts.NormalizeDate(start).Unix()))
	// period2 is exclusive
	params.Set("period2", fmt.Sprintf("%d", contracts.NormalizeDate(end).AddDate(0, 0, 1).Unix()))
	params.Set("interval", "1d")
	params.Set("events", "div,split")
	params.Set("includeAdjustedClose", "true")

	fullURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(ticker), params.Encode())

	var chart chartResponse
	if err := c.httpClient.GetJSON(ctx, fullURL, &chart); err != nil {
		var statusErr *httputil.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("yahoo %s: %w", ticker, contracts.ErrNotFound)
		}
		return nil, fmt.Errorf("yahoo %s: %w", ticker, err)
	}

	quotes, err := parseChart(ticker, &chart)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"ticker": ticker,
		"closes": len(quotes),
	}).Debug("Fetched daily closes")

	return quotes, nil
}

// parseChart prefers adjusted closes and skips null bars (holidays, halts)
func parseChart(ticker string, chart *chartResponse) ([]contracts.Quote, error) {
	if e := chart.Chart.Error; e != nil {
		if strings.EqualFold(e.Code, "Not Found") {
			return nil, fmt.Errorf("yahoo %s: %s: %w", ticker, e.Description, contracts.ErrNotFound)
		}
		return nil, fmt.Errorf("yahoo %s: api error %s: %s", ticker, e.Code, e.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo %s: empty result: %w", ticker, contracts.ErrNotFound)
	}

	result := chart.Chart.Result[0]
	var closes []*float64
	switch {
	case len(result.Indicators.AdjClose) > 0:
		closes = result.Indicators.AdjClose[0].AdjClose
	case len(result.Indicators.Quote) > 0:
		closes = result.Indicators.Quote[0].Close
	}

	quotes := make([]contracts.Quote, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		// exchange-local calendar day
		date := contracts.NormalizeDate(time.Unix(ts+result.Meta.GMTOffset, 0).UTC())
		if n := len(quotes); n > 0 && quotes[n-1].Date.Equal(date) {
			// intraday duplicate of the last bar, keep the latest value
			quotes[n-1].AdjClose = *closes[i]
			continue
		}
		quotes = append(quotes, contracts.Quote{Date: date, AdjClose: *closes[i]})
	}
	return quotes, nil
}
