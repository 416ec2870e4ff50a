package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles Prometheus collectors for the console.
type Metrics struct {
	registry          *prometheus.Registry
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	rateLimited       prometheus.Counter
	transcriptFetches *prometheus.CounterVec
	avatarRequests    prometheus.Counter
}

func newMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "napgram",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests received",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "napgram",
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "napgram",
			Name:      "http_rate_limited_total",
			Help:      "Number of HTTP requests rejected due to rate limiting",
		}),
		transcriptFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "napgram",
			Name:      "transcript_fetches_total",
			Help:      "Transcript view requests by settled result",
		}, []string{"result"}),
		avatarRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "napgram",
			Name:      "avatar_requests_total",
			Help:      "Avatar proxy requests served",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.rateLimited,
		m.transcriptFetches,
		m.avatarRequests,
	)

	return m
}

// Handler returns an HTTP handler exposing the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records timing and status information.
func (m *Metrics) ObserveRequest(route, method string, status int, dur time.Duration, bytes int64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(dur.Seconds())
}

// IncRateLimited increments the rate limit counter.
func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// IncTranscriptFetch records how one transcript view settled
// ("ready", "error", "superseded", "timeout").
func (m *Metrics) IncTranscriptFetch(result string) {
	if m == nil {
		return
	}
	m.transcriptFetches.WithLabelValues(result).Inc()
}

// IncAvatarRequests increments the avatar proxy counter.
func (m *Metrics) IncAvatarRequests() {
	if m == nil {
		return
	}
	m.avatarRequests.Inc()
}
