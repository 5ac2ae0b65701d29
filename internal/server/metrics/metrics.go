// Package metrics exposes the Prometheus collectors of the identity server.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/identity/internal/common"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "identity_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "identity_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	authEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_auth_events_total",
			Help: "Identity operations by outcome.",
		},
		[]string{"op", "result"},
	)

	tokensIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_tokens_issued_total",
			Help: "Issued tokens by kind.",
		},
		[]string{"kind"},
	)

	refreshReuseTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "identity_refresh_token_reuse_total",
		Help: "Detected refresh token replays; each revokes a token family.",
	})

	rateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "identity_rate_limited_requests_total",
		Help: "Requests rejected by the credential endpoint rate limiter.",
	})
)

var registerOnce sync.Once

// Init registers the collectors in the default registry. Safe to call more
// than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			authEventsTotal, tokensIssuedTotal, refreshReuseTotal, rateLimitedTotal,
		)
	})
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HTTPStarted marks a request in flight; call the returned func when done.
func HTTPStarted(method, route string) func(status int) {
	httpInFlight.Inc()
	start := time.Now()
	return func(status int) {
		s := strconv.Itoa(status)
		httpRequestDuration.WithLabelValues(method, route, s).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, route, s).Inc()
		httpInFlight.Dec()
	}
}

// AuthEvent counts one identity operation.
func AuthEvent(op string, err error) {
	authEventsTotal.WithLabelValues(op, Result(err)).Inc()
}

// Result maps an operation error to a low-cardinality label.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrValidation):
		return "invalid"
	case errors.Is(err, common.ErrDuplicateEmail):
		return "duplicate"
	case errors.Is(err, common.ErrInvalidCredentials), errors.Is(err, common.ErrInvalidOrExpiredToken):
		return "unauthenticated"
	case errors.Is(err, common.ErrForbidden):
		return "forbidden"
	case errors.Is(err, common.ErrUserNotFound):
		return "not_found"
	case errors.Is(err, common.ErrStorageUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

// TokenIssued counts an issued token of kind "access" or "refresh".
func TokenIssued(kind string) {
	tokensIssuedTotal.WithLabelValues(kind).Inc()
}

// RefreshReuse counts a detected refresh token replay.
func RefreshReuse() {
	refreshReuseTotal.Inc()
}

// RateLimited counts a request rejected by the limiter.
func RateLimited() {
	rateLimitedTotal.Inc()
}
