package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"redirector/internal/killswitch"
	"redirector/internal/metrics"

	"github.com/google/uuid"
)

// Middleware is a function that wraps an http.Handler. Cross-cutting
// concerns (logging, recovery, gating) live here so handlers stay focused
// on their own semantics.

// LoggingMiddleware logs HTTP requests with structured logging.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			logger.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration_ms", duration.Milliseconds(),
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RequestIDMiddleware adds a unique request ID to each request.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type requestIDKey struct{}

// RecoveryMiddleware recovers from panics and returns a 500 error instead
// of letting one request take the process down.
func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("Panic recovered",
						"error", err,
						"path", r.URL.Path,
						"method", r.Method,
					)
					http.Error(w, "Internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// KillSwitchMiddleware rejects all non-admin traffic with 503 while the
// switch is engaged. It must sit outside the rate limiter in the chain:
// a killed request consumes no rate-limit quota and produces no click
// event or counter increment. Admin paths always pass so the switch can
// be reversed.
func KillSwitchMiddleware(s *killswitch.Switch) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.Killed() && !strings.HasPrefix(r.URL.Path, "/admin/") {
				metrics.KillSwitchRejectionsTotal.Inc()
				respondError(w, http.StatusServiceUnavailable, "Service temporarily disabled")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter is the interface the rate limit middleware gates on.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (allowed bool, remaining int, resetTime time.Time, err error)
	MaxRequests() int
}

// RateLimitMiddleware bounds request rates per client IP. Applied only to
// the redirect path; admin, status and metrics traffic is never limited.
//
// Emits the standard RateLimit-* informational headers on every gated
// response. The legacy X-RateLimit-* variants are deliberately not set.
func RateLimitMiddleware(limiter RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)

			allowed, remaining, resetTime, err := limiter.Allow(r.Context(), ip)
			if err != nil {
				// Fail open: a broken limiter must not break redirects.
				next.ServeHTTP(w, r)
				return
			}

			resetSeconds := int(time.Until(resetTime).Seconds())
			if resetSeconds < 0 {
				resetSeconds = 0
			}

			w.Header().Set("RateLimit-Limit", strconv.Itoa(limiter.MaxRequests()))
			w.Header().Set("RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("RateLimit-Reset", strconv.Itoa(resetSeconds))

			if !allowed {
				metrics.RecordRateLimited()
				w.Header().Set("Retry-After", strconv.Itoa(resetSeconds))
				respondError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
				return
			}

			metrics.RecordRateLimitAllowed()
			next.ServeHTTP(w, r)
		})
	}
}

// MetricsMiddleware records Prometheus metrics for HTTP requests.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(wrapped.statusCode)
		endpoint := simplifyEndpoint(r.URL.Path)

		metrics.HTTPRequestDuration.WithLabelValues(r.Method, endpoint, status).Observe(duration)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, endpoint, status).Inc()
	})
}

// simplifyEndpoint reduces label cardinality by collapsing per-slug and
// per-day paths.
func simplifyEndpoint(path string) string {
	switch {
	case strings.HasPrefix(path, "/go/"):
		return "/go/:slug"
	case path == "/admin/export/day":
		return "/admin/export/day"
	case strings.HasPrefix(path, "/admin/"):
		return path
	case path == "/status" || path == "/metrics" || path == "/":
		return path
	default:
		return "other"
	}
}

// Chain combines multiple middleware functions, outermost first.
func Chain(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// ClientIP extracts the client IP address from the request. The same value
// keys the rate limiter and lands in the click event, so both see one
// consistent notion of "the client".
func ClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple hops; the first is the client.
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		ips := strings.Split(forwarded, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	realIP := r.Header.Get("X-Real-IP")
	if realIP != "" {
		return realIP
	}

	// Strip the port from the transport peer address.
	ip := r.RemoteAddr
	if colonIndex := strings.LastIndex(ip, ":"); colonIndex != -1 {
		ip = ip[:colonIndex]
	}

	return ip
}
