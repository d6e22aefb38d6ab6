package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the redirector.
// promauto registers everything with the default registry, which the
// /metrics endpoint serves via promhttp.

var (
	// ==================== HTTP METRICS ====================

	// HTTPRequestDuration tracks the duration of HTTP requests.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTPRequestsTotal counts total HTTP requests.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTPRequestsInFlight tracks currently processing requests.
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// ==================== REDIRECT METRICS ====================

	// SlugClicksTotal counts redirects per slug. Entries appear lazily on
	// first observation of a slug and live until process restart.
	SlugClicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redirect_clicks_total",
			Help: "Total number of redirects served, per slug",
		},
		[]string{"slug"},
	)

	// RedirectsTotal counts all redirects served.
	RedirectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redirects_total",
			Help: "Total number of redirects served",
		},
	)

	// FallbackSubstitutionsTotal counts destinations rejected by the
	// validator and replaced with the fallback URL.
	FallbackSubstitutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redirect_fallback_substitutions_total",
			Help: "Total number of destinations replaced by the fallback URL",
		},
		[]string{"reason"}, // empty, invalid, scheme, host
	)

	// ==================== EVENT LOG METRICS ====================

	// ClicksRecordedTotal counts click events successfully written to
	// the store.
	ClicksRecordedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clicks_recorded_total",
			Help: "Total number of click events recorded",
		},
	)

	// ClickLogFailuresTotal counts click events dropped because the store
	// write failed. Redirects are never failed for these; this counter is
	// how operators notice the drift.
	ClickLogFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "click_log_failures_total",
			Help: "Total number of click events dropped due to store errors",
		},
	)

	// ==================== RATE LIMITING METRICS ====================

	// RateLimitedRequestsTotal counts rate-limited requests.
	RateLimitedRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limited_requests_total",
			Help: "Total number of rate-limited requests",
		},
	)

	// RateLimitAllowedRequestsTotal counts allowed requests.
	RateLimitAllowedRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limit_allowed_requests_total",
			Help: "Total number of requests allowed by rate limiter",
		},
	)

	// ==================== KILL SWITCH METRICS ====================

	// KillSwitchEngaged is 1 while the kill switch is engaged, 0 while live.
	KillSwitchEngaged = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kill_switch_engaged",
			Help: "Whether the kill switch is engaged (1) or the service is live (0)",
		},
	)

	// KillSwitchRejectionsTotal counts requests rejected while killed.
	KillSwitchRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kill_switch_rejections_total",
			Help: "Total number of requests rejected by the kill switch",
		},
	)

	// ==================== DATABASE METRICS ====================

	// DatabaseErrorsTotal counts database errors by operation.
	DatabaseErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_errors_total",
			Help: "Total number of database errors",
		},
		[]string{"operation"},
	)
)

// RecordRedirect increments the redirect counters for a slug.
func RecordRedirect(slug string) {
	RedirectsTotal.Inc()
	SlugClicksTotal.WithLabelValues(slug).Inc()
}

// RecordFallback increments the fallback substitution counter.
func RecordFallback(reason string) {
	FallbackSubstitutionsTotal.WithLabelValues(reason).Inc()
}

// RecordClickRecorded increments the click recording counter.
func RecordClickRecorded() {
	ClicksRecordedTotal.Inc()
}

// RecordClickLogFailure increments the dropped-click counter.
func RecordClickLogFailure() {
	ClickLogFailuresTotal.Inc()
}

// RecordRateLimited increments the rate-limited requests counter.
func RecordRateLimited() {
	RateLimitedRequestsTotal.Inc()
}

// RecordRateLimitAllowed increments the allowed requests counter.
func RecordRateLimitAllowed() {
	RateLimitAllowedRequestsTotal.Inc()
}

// SetKillSwitch records the current kill switch state.
func SetKillSwitch(engaged bool) {
	if engaged {
		KillSwitchEngaged.Set(1)
	} else {
		KillSwitchEngaged.Set(0)
	}
}
