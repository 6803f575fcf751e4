package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chirp_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chirp_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	// Domain
	LikeToggles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chirp_like_toggles_total",
			Help: "Like toggles by resulting state",
		},
		[]string{"outcome"}, // "liked", "unliked"
	)

	// Events
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chirp_events_published_total",
			Help: "Events written to the broker",
		},
		[]string{"type"},
	)

	EventPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chirp_event_publish_errors_total",
			Help: "Events that could not be written to the broker",
		},
		[]string{"type"},
	)

	WorkerEventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chirp_worker_events_processed_total",
			Help: "Events handled by the reconciler worker",
		},
		[]string{"type", "result"}, // result: "ok", "skipped", "error"
	)
)

// RecordAPIRequest records one finished HTTP request.
func RecordAPIRequest(method, route string, status int, d time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func RecordLikeToggle(liked bool) {
	if liked {
		LikeToggles.WithLabelValues("liked").Inc()
		return
	}
	LikeToggles.WithLabelValues("unliked").Inc()
}
