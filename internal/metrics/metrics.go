// Package metrics exposes Prometheus counters for webhook traffic,
// chat commands and provisioning outcomes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry. A nil *Metrics records nothing.
type Metrics struct {
	reg *prometheus.Registry

	webhooks        *prometheus.CounterVec
	commands        *prometheus.CounterVec
	codes           *prometheus.CounterVec
	apiErrors       *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "boardbot",
			Name:      "webhook_events_total",
			Help:      "Inbound webhook events by kind and outcome.",
		}, []string{"kind", "outcome"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "boardbot",
			Name:      "commands_total",
			Help:      "Chat commands dispatched, by command.",
		}, []string{"command"}),
		codes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "boardbot",
			Name:      "activation_codes_total",
			Help:      "Activation code requests by result.",
		}, []string{"result"}),
		apiErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "boardbot",
			Name:      "webex_errors_total",
			Help:      "Webex API failures by kind.",
		}, []string{"kind"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "boardbot",
			Name:      "http_request_duration_seconds",
			Help:      "Webhook endpoint latencies in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "status"}),
	}
	m.reg.MustRegister(
		m.webhooks, m.commands, m.codes, m.apiErrors, m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Webhook counts one inbound event.
func (m *Metrics) Webhook(kind, outcome string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(kind, outcome).Inc()
}

// Command counts one dispatched chat command.
func (m *Metrics) Command(name string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(name).Inc()
}

// ActivationCode counts one provisioning attempt.
func (m *Metrics) ActivationCode(result string) {
	if m == nil {
		return
	}
	m.codes.WithLabelValues(result).Inc()
}

// APIError counts a remote failure classified by kind.
func (m *Metrics) APIError(kind string) {
	if m == nil {
		return
	}
	m.apiErrors.WithLabelValues(kind).Inc()
}

// Instrument records latency per path and status. Paths outside routes
// are recorded as "other".
func (m *Metrics) Instrument(next http.Handler, routes ...string) http.Handler {
	if m == nil {
		return next
	}
	known := make(map[string]bool, len(routes))
	for _, r := range routes {
		known[r] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)
		path := r.URL.Path
		if !known[path] {
			path = "other"
		}
		m.requestDuration.WithLabelValues(path, strconv.Itoa(sw.code)).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
