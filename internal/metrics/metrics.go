// Package metrics exposes the marketplace core's Prometheus instrumentation.
//
// Counters follow the RED shape: claim rate by outcome, fallback activations,
// claim latency distribution, earnings read rate by period.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ClaimsTotal counts claim attempts by taxonomy outcome
	// (success, job_already_claimed, job_too_far, ...).
	ClaimsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_claims_total",
		Help: "Claim attempts partitioned by outcome code.",
	}, []string{"outcome"})

	// ClaimFallbackTotal counts switches to the non-atomic claim path.
	ClaimFallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_claim_fallback_total",
		Help: "Times the atomic accept primitive was missing and the fallback path was used.",
	})

	// ClaimDuration observes end-to-end claim latency including guards.
	ClaimDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "marketplace_claim_duration_seconds",
		Help:    "Claim operation latency.",
		Buckets: prometheus.DefBuckets,
	})

	// EarningsRequestsTotal counts earnings reads by period.
	EarningsRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_earnings_requests_total",
		Help: "Earnings aggregations served, partitioned by period.",
	}, []string{"period"})
)

func ObserveClaim(outcome string, d time.Duration) {
	ClaimsTotal.WithLabelValues(outcome).Inc()
	ClaimDuration.Observe(d.Seconds())
}
