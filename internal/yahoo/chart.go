package yahoo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"resty.dev/v3"

	"indexcast/internal/fetcher"
)

// DefaultBaseURL is the public Yahoo Finance query host.
const DefaultBaseURL = "https://query1.finance.yahoo.com"

const chartPath = "/v8/finance/chart/{symbol}"

// ChartClient reads daily bars from the Yahoo Finance chart API
type ChartClient struct {
	client *resty.Client
}

// NewChartClient creates a new chart API client
func NewChartClient(baseURL string, log zerolog.Logger) *ChartClient {
	return &ChartClient{
		client: fetcher.NewHTTPClient(baseURL, log.With().Str("comp", "yahoo").Logger()),
	}
}

// History implements fetcher.HistoryProvider.
func (c *ChartClient) History(ctx context.Context, symbol string, lookbackDays int) ([]fetcher.Bar, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("symbol", symbol).
		SetQueryParams(map[string]string{
			"range":          fmt.Sprintf("%dd", lookbackDays),
			"interval":       "1d",
			"includePrePost": "false",
		}).
		Get(chartPath)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fetcher.NewTimeoutError(err)
		}
		return nil, fetcher.NewNetworkError(err)
	}

	body := resp.Bytes()
	if !resp.IsSuccess() {
		fe := fetcher.ClassifyHTTPError(resp.StatusCode())
		if desc := chartErrorDescription(body); desc != "" {
			fe.Message = desc
		}
		return nil, fe
	}

	return parseChart(body)
}

// parseChart converts a chart API payload into bars.
//
// The payload shape is:
//
//	{"chart": {"result": [{
//	    "meta": {"gmtoffset": 32400, "exchangeTimezoneName": "Asia/Tokyo", ...},
//	    "timestamp": [1714521600, ...],
//	    "indicators": {"quote": [{"close": [38000.0, null, ...], ...}]}
//	}], "error": null}}
func parseChart(body []byte) ([]fetcher.Bar, error) {
	if !gjson.ValidBytes(body) {
		return nil, fetcher.NewValidationError("malformed chart response")
	}

	if desc := chartErrorDescription(body); desc != "" {
		return nil, fetcher.NewValidationError(desc)
	}

	result := gjson.GetBytes(body, "chart.result.0")
	if !result.Exists() {
		return nil, fetcher.NewValidationError("chart response has no result")
	}

	// Yahoo omits timestamp and indicators entirely when the range is empty.
	timestamps := result.Get("timestamp")
	if !timestamps.Exists() {
		return []fetcher.Bar{}, nil
	}
	if !timestamps.IsArray() {
		return nil, fetcher.NewValidationError("chart timestamp is not an array")
	}

	closes := result.Get("indicators.quote.0.close")
	if !closes.IsArray() {
		return nil, fetcher.NewValidationError("chart response has no close series")
	}

	ts := timestamps.Array()
	cs := closes.Array()
	if len(ts) != len(cs) {
		return nil, fetcher.NewValidationError(fmt.Sprintf("chart has %d timestamps but %d closes", len(ts), len(cs)))
	}

	loc := exchangeLocation(result.Get("meta"))

	bars := make([]fetcher.Bar, 0, len(ts))
	for i := range ts {
		if ts[i].Type != gjson.Number {
			return nil, fetcher.NewValidationError(fmt.Sprintf("timestamp %d is not numeric: %s", i, ts[i].Raw))
		}
		bar := fetcher.Bar{Time: time.Unix(ts[i].Int(), 0).In(loc)}

		switch cs[i].Type {
		case gjson.Null:
		case gjson.Number:
			v := cs[i].Float()
			bar.Close = &v
		default:
			return nil, fetcher.NewValidationError(fmt.Sprintf("close %d is not numeric: %s", i, cs[i].Raw))
		}
		bars = append(bars, bar)
	}

	return bars, nil
}

// exchangeLocation builds the exchange's zone from the chart metadata,
// falling back to UTC.
func exchangeLocation(meta gjson.Result) *time.Location {
	offset := meta.Get("gmtoffset")
	if offset.Type != gjson.Number {
		return time.UTC
	}
	name := meta.Get("exchangeTimezoneName").String()
	if name == "" {
		name = meta.Get("timezone").String()
	}
	return time.FixedZone(name, int(offset.Int()))
}

func chartErrorDescription(body []byte) string {
	e := gjson.GetBytes(body, "chart.error")
	if !e.Exists() || e.Type == gjson.Null {
		return ""
	}
	if desc := e.Get("description").String(); desc != "" {
		return desc
	}
	return e.Raw
}
