// Package metrics defines the Prometheus instrumentation for the GitHub
// data layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GitHubRequests counts upstream GitHub requests by outcome class.
	GitHubRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gitboard_github_requests_total",
		Help: "GitHub API requests by outcome.",
	}, []string{"outcome"})

	// CacheHits counts response-cache hits.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gitboard_response_cache_hits_total",
		Help: "Response cache hits.",
	})

	// CacheMisses counts response-cache misses.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gitboard_response_cache_misses_total",
		Help: "Response cache misses.",
	})

	// RateLimitWaits counts rate-limit backoff pauses.
	RateLimitWaits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gitboard_rate_limit_waits_total",
		Help: "Pauses taken because GitHub signaled a rate limit.",
	})

	// RateLimitWaitSeconds accumulates time spent waiting on rate limits.
	RateLimitWaitSeconds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gitboard_rate_limit_wait_seconds_total",
		Help: "Total seconds spent waiting on GitHub rate limits.",
	})

	// PartialFetches counts paginated fetches that returned a partial result.
	PartialFetches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gitboard_partial_fetches_total",
		Help: "Paginated fetches that stopped early and returned partial data.",
	})
)

// Outcome labels for GitHubRequests.
const (
	OutcomeOK          = "ok"
	OutcomeAuth        = "auth_failed"
	OutcomeNotFound    = "not_found"
	OutcomeRateLimited = "rate_limited"
	OutcomeTransient   = "transient"
	OutcomeNetwork     = "network_error"
)
