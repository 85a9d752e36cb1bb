// Package observability exposes Prometheus metrics for interviewd.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "interviewd_active_sessions",
		Help: "Number of sessions currently between start and a terminal state",
	})

	sessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interviewd_sessions_started_total",
		Help: "Total number of sessions that passed the gatekeeper and started",
	})

	sessionsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interviewd_sessions_completed_total",
		Help: "Total number of sessions that reached feedback_saved",
	})

	sessionsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interviewd_sessions_failed_total",
		Help: "Total number of sessions that reached the failed state",
	}, []string{"reason"})

	callDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "interviewd_call_duration_seconds",
		Help:    "Duration of interview calls in seconds",
		Buckets: []float64{30, 60, 120, 300, 600, 1200, 1800, 3600},
	})

	feedbackRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interviewd_feedback_requests_total",
		Help: "Total number of scoring service requests",
	}, []string{"status"})

	feedbackFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interviewd_feedback_fallbacks_total",
		Help: "Total number of sessions persisted with default fallback feedback",
	})

	attemptsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interviewd_attempts_recorded_total",
		Help: "Total number of attempt records persisted",
	})

	duplicateAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interviewd_duplicate_attempts_total",
		Help: "Total number of duplicate-attempt rejections (pre-check or insert race)",
	})
)

// SessionStarted increments the session counters.
func SessionStarted() {
	sessionsStarted.Inc()
	activeSessions.Inc()
}

// SessionCompleted records a session reaching feedback_saved.
func SessionCompleted() {
	sessionsCompleted.Inc()
	activeSessions.Dec()
}

// SessionFailed records a session reaching the failed state.
func SessionFailed(reason string) {
	sessionsFailed.WithLabelValues(reason).Inc()
	activeSessions.Dec()
}

// CallEnded observes the call duration of a completed call.
func CallEnded(seconds float64) {
	callDuration.Observe(seconds)
}

// FeedbackRequest records a scoring service call outcome ("ok" or "error").
func FeedbackRequest(status string) {
	feedbackRequests.WithLabelValues(status).Inc()
}

// FeedbackFallback records a session that persisted default feedback.
func FeedbackFallback() {
	feedbackFallbacks.Inc()
}

// AttemptRecorded records a persisted attempt.
func AttemptRecorded() {
	attemptsRecorded.Inc()
}

// DuplicateAttempt records a duplicate-attempt rejection.
func DuplicateAttempt() {
	duplicateAttempts.Inc()
}

// MetricsHandler returns the Prometheus scrape handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
