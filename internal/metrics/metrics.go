// Package metrics holds the proxy's process-wide Prometheus collectors,
// exposed over /metrics via promhttp.Handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts router requests by route and outcome.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proxy_requests_total",
		Help: "Total requests handled by the proxy, by route and status.",
	}, []string{"route", "status"})

	// StreamEventsTotal counts SSE events emitted by the streaming translator.
	StreamEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proxy_stream_events_total",
		Help: "Total SSE events emitted, by event name.",
	}, []string{"event"})

	// UpstreamRequestsTotal counts calls made to upstream providers.
	UpstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proxy_upstream_requests_total",
		Help: "Total upstream calls, by provider and outcome.",
	}, []string{"provider", "outcome"})
)
