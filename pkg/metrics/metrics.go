// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// InboundMessagesTotal tracks inbound channel messages by variant.
	InboundMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbound_messages_total",
			Help: "Total inbound messages received from the channel",
		},
		[]string{"type"},
	)

	// OutboundMessagesTotal tracks outbound sends by kind and result.
	OutboundMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbound_messages_total",
			Help: "Total outbound messages sent to the channel",
		},
		[]string{"kind", "status"},
	)

	// ReferralsDispatchedTotal tracks dispatched referrals.
	ReferralsDispatchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "referrals_dispatched_total",
			Help: "Total referrals dispatched to patients",
		},
	)

	// GeocodeRequestsTotal tracks geocoding calls by outcome.
	GeocodeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geocode_requests_total",
			Help: "Total geocoding lookups",
		},
		[]string{"outcome"},
	)

	// MatchDuration tracks partner matching duration.
	MatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "match_duration_seconds",
			Help:    "Partner matching duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// MatchResultsTotal tracks matching outcomes.
	MatchResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_results_total",
			Help: "Partner matching outcomes",
		},
		[]string{"outcome"},
	)

	// LLMRequestsTotal tracks completion and embedding calls by provider.
	LLMRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "Total LLM provider calls",
		},
		[]string{"provider", "op", "status"},
	)

	// ActiveConversations tracks conversations currently in the store.
	ActiveConversations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_conversations",
			Help: "Number of ongoing conversations",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordGeocode records the outcome of a geocoding lookup.
func RecordGeocode(outcome string) {
	GeocodeRequestsTotal.WithLabelValues(outcome).Inc()
}

// RecordMatch records the outcome and duration of a matching run.
func RecordMatch(outcome string, duration float64) {
	MatchResultsTotal.WithLabelValues(outcome).Inc()
	MatchDuration.Observe(duration)
}

// RecordLLM records one LLM provider call.
func RecordLLM(provider, op, status string) {
	LLMRequestsTotal.WithLabelValues(provider, op, status).Inc()
}
