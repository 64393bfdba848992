// Package metrics defines the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tgpulse_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tgpulse_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
		},
		[]string{"method", "path"},
	)

	// Login metrics
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tgpulse_auth_attempts_total",
			Help: "Login steps by step and outcome",
		},
		[]string{"step", "outcome"},
	)

	PendingAuthsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tgpulse_pending_auths_expired_total",
			Help: "Abandoned logins dropped by the sweeper",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tgpulse_active_sessions",
			Help: "Authenticated sessions currently held",
		},
	)

	// Ingestion metrics
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tgpulse_events_ingested_total",
			Help: "Activity records produced from protocol events",
		},
		[]string{"type"}, // "message", "member_joined" or "member_left"
	)

	UpdatesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tgpulse_updates_dropped_total",
			Help: "Bridge notifications dropped because a session's queue was full",
		},
	)

	EventPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tgpulse_event_panics_total",
			Help: "Protocol events whose processing panicked",
		},
	)

	// Relay metrics
	RelayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tgpulse_relay_requests_total",
			Help: "Conversational relay calls by outcome",
		},
		[]string{"outcome"}, // "reply", "no_reply", "send_failed", "discarded", "rate_limited"
	)

	RelayLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tgpulse_relay_latency_seconds",
			Help:    "Conversational relay call latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)
)
