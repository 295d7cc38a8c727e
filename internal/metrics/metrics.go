// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Pipeline metrics
	MessagesIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_messages_ingested_total",
			Help: "Total user messages accepted at ingress",
		},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_events_published_total",
			Help: "Broker publish results",
		},
		[]string{"topic", "outcome"}, // "ok" or "error"
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_events_consumed_total",
			Help: "Broker deliveries handled",
		},
		[]string{"topic", "outcome"},
	)

	DropReplies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_drop_replies_total",
			Help: "Synthesized replies for dropped messages",
		},
		[]string{"intent"},
	)

	// Hub metrics
	HubSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_hub_subscribers",
			Help: "Live viewer subscriptions",
		},
	)

	HubPushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_hub_pushes_total",
			Help: "Events pushed to rooms",
		},
		[]string{"event"},
	)

	HubDeadSubscribers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_hub_dead_subscribers_total",
			Help: "Subscribers removed after a failed send",
		},
	)

	// Title metrics
	TitleOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_title_outcomes_total",
			Help: "Room title jobs by outcome",
		},
		[]string{"outcome"}, // "summarized", "fallback", "duplicate", "rejected"
	)
)

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)
