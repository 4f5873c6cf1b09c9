package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "upfront"

// Metrics owns the Prometheus registry and the collectors recorded by the API. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	inFlight        prometheus.Gauge

	settlements *prometheus.CounterVec
	emails      *prometheus.CounterVec
	media       *prometheus.CounterVec
}

// NewMetrics registers runtime, HTTP and domain collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served.",
		}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "payments",
			Name:      "settlements_total",
			Help:      "Payment confirmation outcomes by provider.",
		}, []string{"provider", "outcome"}),
		emails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "notifications",
			Name:      "emails_total",
			Help:      "Notification emails by audience and delivery outcome.",
		}, []string{"audience", "outcome"}),
		media: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "media",
			Name:      "resolutions_total",
			Help:      "Media requests by the backend that served them.",
		}, []string{"backend"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestDuration,
		m.requestTotal,
		m.inFlight,
		m.settlements,
		m.emails,
		m.media,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in Prometheus text or OpenMetrics format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Middleware records latency and status per chi route pattern.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.inFlight.Inc()
			defer m.inFlight.Dec()

			recorder := newResponseRecorder(w)
			next.ServeHTTP(recorder, r)

			route := SanitizeRoute(routePattern(r))
			status := strconv.Itoa(recorder.Status())
			method := SanitizeMethod(r.Method)
			m.requestDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
			m.requestTotal.WithLabelValues(method, route, status).Inc()
		})
	}
}

// RecordSettlement counts a payment confirmation outcome.
func (m *Metrics) RecordSettlement(provider, outcome string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(provider, outcome).Inc()
}

// RecordEmail counts a notification email delivery attempt.
func (m *Metrics) RecordEmail(audience, outcome string) {
	if m == nil {
		return
	}
	m.emails.WithLabelValues(audience, outcome).Inc()
}

// RecordMediaResolution counts which backend answered a media request.
func (m *Metrics) RecordMediaResolution(backend string) {
	if m == nil {
		return
	}
	m.media.WithLabelValues(backend).Inc()
}
