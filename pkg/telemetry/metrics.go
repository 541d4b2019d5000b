// Package telemetry exposes the gateway's Prometheus metrics. Collectors are
// registered on the default registry and served at /metrics.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActiveSessions tracks live MCP sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "redditmcp",
		Name:      "active_sessions",
		Help:      "Number of live MCP sessions.",
	})

	// TokensIssued counts bearer tokens minted at the token endpoint,
	// labelled by grant type.
	TokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "redditmcp",
		Name:      "tokens_issued_total",
		Help:      "Bearer tokens issued, by grant type.",
	}, []string{"grant_type"})

	// RateLimitedRequests counts requests rejected by the rate limiter.
	RateLimitedRequests = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "redditmcp",
		Name:      "rate_limited_requests_total",
		Help:      "Requests rejected with 429.",
	})

	// SamplingRoundTrips counts server-initiated sampling calls by outcome
	// (completed, deadline_exceeded, transport_closed, cancelled).
	SamplingRoundTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "redditmcp",
		Name:      "sampling_round_trips_total",
		Help:      "Server-initiated sampling round trips, by outcome.",
	}, []string{"outcome"})

	// ToolCalls counts tool invocations by tool name and status.
	ToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "redditmcp",
		Name:      "tool_calls_total",
		Help:      "Tool invocations, by tool and status.",
	}, []string{"tool", "status"})
)

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
