package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unitydesk_http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "unitydesk_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "unitydesk_pipeline_stage_duration_seconds",
			Help:    "Duration of AI pipeline stages in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
		},
		[]string{"stage"},
	)

	StageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unitydesk_pipeline_stage_failures_total",
			Help: "Total number of failed AI pipeline stage calls, including ones that fell back",
		},
		[]string{"stage"},
	)

	PipelineResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unitydesk_pipeline_results_total",
			Help: "Pipeline runs by outcome (accepted, rejected, failed)",
		},
		[]string{"outcome"},
	)

	ComplaintsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unitydesk_complaints_created_total",
			Help: "Complaints persisted, by department and priority",
		},
		[]string{"department", "priority"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "unitydesk_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)
