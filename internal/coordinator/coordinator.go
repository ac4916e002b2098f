package coordinator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"indexcast/internal/broadcast"
	"indexcast/internal/fetcher"
	"indexcast/internal/metrics"
)

// RunStatus is the aggregate result of one run.
type RunStatus string

const (
	StatusOK            RunStatus = "ok"
	StatusPartial       RunStatus = "partial"
	StatusAllFailed     RunStatus = "all_failed"
	StatusNotConfigured RunStatus = "not_configured"
	StatusFetchFailed   RunStatus = "fetch_failed"
)

// Broadcaster fans a price out to destinations.
type Broadcaster interface {
	SendToAll(ctx context.Context, point fetcher.PricePoint, destinations []string) broadcast.Report
}

// Summary describes a finished run.
type Summary struct {
	RunID  string
	Status RunStatus
	Point  fetcher.PricePoint
	Report broadcast.Report
	// Err is the fetch failure when Status is StatusFetchFailed.
	Err  error
	Took time.Duration
}

// Failed reports whether the run should be treated as a failure by
// callers that alert on it.
func (s Summary) Failed() bool {
	return s.Status == StatusFetchFailed || s.Status == StatusAllFailed
}

// Coordinator runs fetch then broadcast for a configured symbol.
type Coordinator struct {
	fetcher      fetcher.Fetcher
	broadcaster  Broadcaster
	symbol       string
	destinations []string
	metrics      *metrics.Recorder
	log          zerolog.Logger
}

// New creates a Coordinator. rec may be nil.
func New(f fetcher.Fetcher, b Broadcaster, symbol string, destinations []string, rec *metrics.Recorder, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		fetcher:      f,
		broadcaster:  b,
		symbol:       symbol,
		destinations: destinations,
		metrics:      rec,
		log:          log.With().Str("comp", "coordinator").Logger(),
	}
}

// Run fetches the latest close and, only if that succeeds, broadcasts it.
// Failures are reported in the Summary; Run never returns early on a
// failing destination.
//
// Once started, a run is not interrupted by cancellation of ctx: every
// destination gets its attempt. Only the provider and platform client
// timeouts bound it. Values carried by ctx are kept.
func (c *Coordinator) Run(ctx context.Context) Summary {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	sum := Summary{RunID: uuid.NewString()}
	log := c.log.With().Str("run", sum.RunID).Str("symbol", c.symbol).Logger()

	point, err := c.fetcher.FetchLatestClose(ctx, c.symbol)
	if err != nil {
		sum.Status = StatusFetchFailed
		sum.Err = err
		sum.Took = time.Since(start)

		errType := fetcher.ErrorTypeUnknown
		if fe := fetcher.AsFetchError(err); fe != nil {
			errType = fe.Type
		}
		c.metrics.ObserveFetchFailure(string(errType))
		c.metrics.ObserveRun(string(sum.Status), sum.Took, false)

		log.Error().Err(err).Str("error_type", string(errType)).Msg("failed to fetch latest close, nothing sent")
		return sum
	}

	sum.Point = point
	c.metrics.ObserveClose(point.Symbol, point.Close)
	log.Info().
		Float64("close", point.Close).
		Str("trade_date", point.TradeDate.Format(broadcast.DateLayout)).
		Msg("fetched latest close")

	sum.Report = c.broadcaster.SendToAll(ctx, point, c.destinations)
	for _, o := range sum.Report.Outcomes {
		c.metrics.ObserveDelivery(string(o.Status))
	}

	switch {
	case sum.Report.NotConfigured():
		sum.Status = StatusNotConfigured
	case sum.Report.AllFailed():
		sum.Status = StatusAllFailed
	case sum.Report.Failed() > 0:
		sum.Status = StatusPartial
	default:
		sum.Status = StatusOK
	}
	sum.Took = time.Since(start)
	c.metrics.ObserveRun(string(sum.Status), sum.Took, sum.Report.Delivered() > 0)

	log.Info().
		Str("status", string(sum.Status)).
		Dur("took", sum.Took).
		Msg("run finished")
	return sum
}
