package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lovedoctor_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lovedoctor_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2, 5, 10},
		},
		[]string{"method", "route"},
	)

	AccountResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lovedoctor_account_resolutions_total",
			Help: "Account find-or-create results by role and outcome",
		},
		[]string{"role", "outcome"},
	)

	SessionEnrichments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lovedoctor_session_enrichments_total",
			Help: "Session reads that attempted to attach a chat identity",
		},
		[]string{"result"},
	)

	HandoffSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lovedoctor_handoff_steps_total",
			Help: "Lead to chat handoff step results",
		},
		[]string{"step", "result"},
	)

	AnalyticsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lovedoctor_analytics_events_dropped_total",
			Help: "Analytics events that could not be stored",
		},
	)

	LeadFeedConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lovedoctor_lead_feed_connections",
			Help: "Open coach lead feed websocket connections",
		},
	)
)
