package yahoo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indexcast/internal/fetcher"
)

const nikkeiChart = `{
	"chart": {
		"result": [{
			"meta": {
				"currency": "JPY",
				"symbol": "^N225",
				"gmtoffset": 32400,
				"timezone": "JST",
				"exchangeTimezoneName": "Asia/Tokyo"
			},
			"timestamp": [1714521600, 1714608000],
			"indicators": {
				"quote": [{
					"close": [38000.0, 38500.25]
				}]
			}
		}],
		"error": null
	}
}`

func newTestServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewChartClient(t *testing.T) {
	client := NewChartClient("https://query1.finance.yahoo.com", zerolog.Nop())

	require.NotNil(t, client)
	assert.NotNil(t, client.client)
}

func TestChartClient_History_Success(t *testing.T) {
	server := newTestServer(t, http.StatusOK, nikkeiChart)

	client := NewChartClient(server.URL, zerolog.Nop())
	bars, err := client.History(context.Background(), "^N225", 7)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	require.NotNil(t, bars[1].Close)
	assert.Equal(t, 38500.25, *bars[1].Close)

	// 1714608000 is 2024-05-02 00:00 UTC, 09:00 in Tokyo.
	y, m, d := bars[1].Time.Date()
	assert.Equal(t, 2024, y)
	assert.Equal(t, time.May, m)
	assert.Equal(t, 2, d)
	assert.Equal(t, 9, bars[1].Time.Hour())
}

func TestChartClient_History_VerifyRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/^N225", r.URL.Path)
		assert.Equal(t, "5d", r.URL.Query().Get("range"))
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(nikkeiChart))
	}))
	defer server.Close()

	client := NewChartClient(server.URL, zerolog.Nop())
	_, err := client.History(context.Background(), "^N225", 5)
	require.NoError(t, err)
}

func TestChartClient_History_NullCloseKept(t *testing.T) {
	server := newTestServer(t, http.StatusOK, `{
		"chart": {
			"result": [{
				"meta": {"gmtoffset": 32400, "exchangeTimezoneName": "Asia/Tokyo"},
				"timestamp": [1714521600, 1714608000],
				"indicators": {"quote": [{"close": [38000.0, null]}]}
			}],
			"error": null
		}
	}`)

	client := NewChartClient(server.URL, zerolog.Nop())
	bars, err := client.History(context.Background(), "^N225", 7)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.NotNil(t, bars[0].Close)
	assert.Nil(t, bars[1].Close)
}

func TestChartClient_History_EmptyRange(t *testing.T) {
	server := newTestServer(t, http.StatusOK, `{
		"chart": {
			"result": [{
				"meta": {"gmtoffset": 32400},
				"indicators": {"quote": [{}]}
			}],
			"error": null
		}
	}`)

	client := NewChartClient(server.URL, zerolog.Nop())
	bars, err := client.History(context.Background(), "^N225", 7)
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestChartClient_History_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantType fetcher.ErrorType
	}{
		{"server error", http.StatusInternalServerError, ``, fetcher.ErrorTypeServer},
		{"rate limited", http.StatusTooManyRequests, ``, fetcher.ErrorTypeRateLimit},
		{"unknown symbol", http.StatusNotFound, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`, fetcher.ErrorTypeClient},
		{"malformed json", http.StatusOK, `{"chart": {`, fetcher.ErrorTypeValidation},
		{"missing result", http.StatusOK, `{"chart":{"result":[],"error":null}}`, fetcher.ErrorTypeValidation},
		{"non numeric close", http.StatusOK, `{"chart":{"result":[{"timestamp":[1714521600],"indicators":{"quote":[{"close":["n/a"]}]}}],"error":null}}`, fetcher.ErrorTypeValidation},
		{"length mismatch", http.StatusOK, `{"chart":{"result":[{"timestamp":[1714521600,1714608000],"indicators":{"quote":[{"close":[1.0]}]}}],"error":null}}`, fetcher.ErrorTypeValidation},
		{"missing close series", http.StatusOK, `{"chart":{"result":[{"timestamp":[1714521600],"indicators":{"quote":[{}]}}],"error":null}}`, fetcher.ErrorTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, tt.status, tt.body)

			client := NewChartClient(server.URL, zerolog.Nop())
			bars, err := client.History(context.Background(), "^N225", 7)
			require.Error(t, err)
			assert.Nil(t, bars)

			var fe *fetcher.FetchError
			require.True(t, errors.As(err, &fe), "error %v is not a *FetchError", err)
			assert.Equal(t, tt.wantType, fe.Type)
		})
	}
}

func TestChartClient_History_ErrorDescription(t *testing.T) {
	server := newTestServer(t, http.StatusNotFound, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`)

	client := NewChartClient(server.URL, zerolog.Nop())
	_, err := client.History(context.Background(), "^NOPE", 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symbol may be delisted")
}

func TestChartClient_History_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewChartClient(server.URL, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.History(ctx, "^N225", 7)
	require.Error(t, err)

	var fe *fetcher.FetchError
	assert.True(t, errors.As(err, &fe))
}

func TestExchangeLocation_Fallback(t *testing.T) {
	server := newTestServer(t, http.StatusOK, `{"chart":{"result":[{"timestamp":[1714608000],"indicators":{"quote":[{"close":[1.5]}]}}],"error":null}}`)

	client := NewChartClient(server.URL, zerolog.Nop())
	bars, err := client.History(context.Background(), "X", 7)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, time.UTC, bars[0].Time.Location())
}
