package fetcher

import (
	"time"

	"github.com/rs/zerolog"
	"resty.dev/v3"
)

const (
	defaultTimeout = 15 * time.Second

	// Yahoo and similar providers reject requests without a browser-like agent.
	defaultUserAgent = "Mozilla/5.0 (compatible; indexcast/1.0)"
)

// NewHTTPClient creates the HTTP client shared by provider implementations.
// Requests are single-shot: no retries are configured.
func NewHTTPClient(baseURL string, log zerolog.Logger) *resty.Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(defaultTimeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", defaultUserAgent).
		SetRetryCount(0).
		AddResponseMiddleware(responseLogger(log))

	return client
}

// responseLogger logs every completed request for observability
func responseLogger(log zerolog.Logger) resty.ResponseMiddleware {
	return func(_ *resty.Client, r *resty.Response) error {
		log.Debug().
			Str("method", r.Request.Method).
			Str("url", r.Request.URL).
			Int("status_code", r.StatusCode()).
			Dur("took", r.Duration()).
			Msg("provider request completed")
		return nil
	}
}
