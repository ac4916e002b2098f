// Package metrics records the outcome of broadcast runs. A run is a short-lived
// process, so metrics are collected in a private registry and pushed to a
// Prometheus Pushgateway when one is configured.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "indexcast"

// Recorder holds the metrics of a process. A nil *Recorder is a valid no-op.
type Recorder struct {
	registry *prometheus.Registry

	Deliveries    *prometheus.CounterVec
	FetchFailures *prometheus.CounterVec
	LastClose     *prometheus.GaugeVec
	LastSuccess   prometheus.Gauge
	RunDuration   *prometheus.HistogramVec
}

// NewRecorder creates a Recorder with its own registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		Deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deliveries_total",
				Help:      "Per-destination delivery outcomes",
			},
			[]string{"outcome"},
		),
		FetchFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_failures_total",
				Help:      "Failed attempts to fetch the latest close, by error type",
			},
			[]string{"type"},
		),
		LastClose: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_close",
				Help:      "Most recently fetched close value",
			},
			[]string{"symbol"},
		),
		LastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last run with at least one delivery",
			},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of fetch-and-broadcast runs",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"status"},
		),
	}

	r.registry.MustRegister(
		r.Deliveries,
		r.FetchFailures,
		r.LastClose,
		r.LastSuccess,
		r.RunDuration,
	)

	return r
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveFetchFailure counts a failed fetch.
func (r *Recorder) ObserveFetchFailure(errType string) {
	if r == nil {
		return
	}
	r.FetchFailures.WithLabelValues(errType).Inc()
}

// ObserveClose records the fetched value.
func (r *Recorder) ObserveClose(symbol string, value float64) {
	if r == nil {
		return
	}
	r.LastClose.WithLabelValues(symbol).Set(value)
}

// ObserveDelivery counts one destination outcome.
func (r *Recorder) ObserveDelivery(outcome string) {
	if r == nil {
		return
	}
	r.Deliveries.WithLabelValues(outcome).Inc()
}

// ObserveRun records a finished run.
func (r *Recorder) ObserveRun(status string, took time.Duration, delivered bool) {
	if r == nil {
		return
	}
	r.RunDuration.WithLabelValues(status).Observe(took.Seconds())
	if delivered {
		r.LastSuccess.SetToCurrentTime()
	}
}

// Push sends the collected metrics to the Pushgateway at url under job.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if r == nil || url == "" {
		return nil
	}
	return push.New(url, job).
		Gatherer(r.registry).
		PushContext(ctx)
}
