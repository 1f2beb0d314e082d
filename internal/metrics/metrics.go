package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	// RequestsTotal tracks HTTP requests issued to the site per target and result
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arcsign_requests_total",
			Help: "Total number of HTTP requests issued to the site",
		},
		[]string{"target", "result"},
	)

	// RequestLatency tracks request latency
	RequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arcsign_request_latency_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"target"},
	)

	// EndpointOutcomes tracks the classification of each candidate endpoint attempt
	EndpointOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arcsign_endpoint_outcomes_total",
			Help: "Classified outcomes per candidate sign-in endpoint",
		},
		[]string{"endpoint", "outcome"},
	)

	// RunOutcome is 1 for the outcome of the last run and 0 for the others
	RunOutcome = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "arcsign_run_outcome",
			Help: "Outcome of the last sign-in run",
		},
		[]string{"outcome"},
	)

	// LastRunTimestamp records when the last run finished
	LastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "arcsign_last_run_timestamp_seconds",
			Help: "Unix time the last sign-in run finished",
		},
	)
)

// ObserveRequest records one HTTP round trip. result is "ok", "throttled" or "error".
func ObserveRequest(target, result string, latency time.Duration) {
	RequestsTotal.WithLabelValues(target, result).Inc()
	RequestLatency.WithLabelValues(target).Observe(latency.Seconds())
}

// SetRunOutcome marks outcome as the result of the finished run.
func SetRunOutcome(outcome string, all []string) {
	for _, o := range all {
		RunOutcome.WithLabelValues(o).Set(0)
	}
	RunOutcome.WithLabelValues(outcome).Set(1)
	LastRunTimestamp.SetToCurrentTime()
}

// Push sends the default registry to a Prometheus Pushgateway.
func Push(ctx context.Context, url, job, instance string) error {
	pusher := push.New(url, job).
		Gatherer(prometheus.DefaultGatherer).
		Grouping("instance", instance)
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
