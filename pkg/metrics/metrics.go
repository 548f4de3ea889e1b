// Package metrics exposes Prometheus collectors for order lifecycle and
// HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "desintesa"

type Metrics struct {
	registry *prometheus.Registry

	OrderOperations     *prometheus.CounterVec
	ValidationFailures  *prometheus.CounterVec
	CertificatesIssued  prometheus.Counter
	DoseAlerts          prometheus.Counter
	StoreDuration       *prometheus.HistogramVec
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	EventsPublished     *prometheus.CounterVec
}

// New registers every collector on a fresh registry, plus the Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		OrderOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_operations_total",
			Help:      "Order operations by kind and outcome.",
		}, []string{"operation", "outcome"}),
		ValidationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Rejected order payloads by validation mode.",
		}, []string{"mode"}),
		CertificatesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "certificates_issued_total",
			Help:      "Certificates issued, including reissues.",
		}),
		DoseAlerts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dose_alerts_total",
			Help:      "Saved chemical applications above the safety limit.",
		}),
		StoreDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_duration_seconds",
			Help:      "Order store load and save latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"driver", "op"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "JetStream publishes by event type and outcome.",
		}, []string{"event_type", "outcome"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.OrderOperations,
		m.ValidationFailures,
		m.CertificatesIssued,
		m.DoseAlerts,
		m.StoreDuration,
		m.HTTPRequests,
		m.HTTPRequestDuration,
		m.EventsPublished,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveOperation counts an order operation; err == nil counts as success.
func (m *Metrics) ObserveOperation(op string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.OrderOperations.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) ObserveValidationFailure(mode string) {
	if m == nil {
		return
	}
	m.ValidationFailures.WithLabelValues(mode).Inc()
}

func (m *Metrics) ObserveCertificate() {
	if m == nil {
		return
	}
	m.CertificatesIssued.Inc()
}

func (m *Metrics) ObserveDoseAlert() {
	if m == nil {
		return
	}
	m.DoseAlerts.Inc()
}

func (m *Metrics) ObserveStore(driver, op string, started time.Time) {
	if m == nil {
		return
	}
	m.StoreDuration.WithLabelValues(driver, op).Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) ObservePublish(eventType string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.EventsPublished.WithLabelValues(eventType, outcome).Inc()
}
