package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/stablebooks/internal/core/domain"
)

const namespace = "stablebooks"

type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
	rejectedTotal   *prometheus.CounterVec

	decisionsTotal       *prometheus.CounterVec
	siblingsCreated      prometheus.Counter
	namesResolvedTotal   *prometheus.CounterVec
	approvalBlockedTotal *prometheus.CounterVec

	*ResilienceMetrics
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "requests_total",
			Help:        "Total HTTP requests processed.",
			ConstLabels: constLabels,
		},
		[]string{"method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "request_duration_seconds",
			Help:        "HTTP request duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: constLabels,
		},
	)
	rejectedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "rejected_total",
			Help:        "Requests refused before reaching a handler, by reason.",
			ConstLabels: constLabels,
		},
		[]string{"reason"},
	)
	decisionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "reconciliation",
			Name:        "decisions_total",
			Help:        "Invoices approved or rejected.",
			ConstLabels: constLabels,
		},
		[]string{"state"},
	)
	siblingsCreated := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "reconciliation",
			Name:        "siblings_created_total",
			Help:        "Sibling invoices split off approved invoices.",
			ConstLabels: constLabels,
		},
	)
	namesResolvedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "reconciliation",
			Name:        "names_resolved_total",
			Help:        "Unmatched names resolved by reviewers, by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"outcome"},
	)
	approvalBlockedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "reconciliation",
			Name:        "approval_blocked_total",
			Help:        "Approval attempts refused, by reason.",
			ConstLabels: constLabels,
		},
		[]string{"reason"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		rejectedTotal,
		decisionsTotal,
		siblingsCreated,
		namesResolvedTotal,
		approvalBlockedTotal,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		service:              service,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		rejectedTotal:        rejectedTotal,
		decisionsTotal:       decisionsTotal,
		siblingsCreated:      siblingsCreated,
		namesResolvedTotal:   namesResolvedTotal,
		approvalBlockedTotal: approvalBlockedTotal,
		ResilienceMetrics:    newResilienceMetrics(registry, constLabels),
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(r.Method, path, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordRejected counts requests shed by rate limiting or backpressure.
func (m *HTTPServerMetrics) RecordRejected(reason string) {
	m.rejectedTotal.WithLabelValues(reason).Inc()
}

func (m *HTTPServerMetrics) InvoiceDecided(state domain.ApprovalState, siblings int) {
	m.decisionsTotal.WithLabelValues(string(state)).Inc()
	if siblings > 0 {
		m.siblingsCreated.Add(float64(siblings))
	}
}

func (m *HTTPServerMetrics) NameResolved(outcome domain.ResolutionOutcome) {
	m.namesResolvedTotal.WithLabelValues(string(outcome)).Inc()
}

func (m *HTTPServerMetrics) ApprovalBlocked(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.approvalBlockedTotal.WithLabelValues(reason).Inc()
}

// normalizePath collapses ids so the path label stays low-cardinality.
func normalizePath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 || parts[0] != "v1" {
		return path
	}
	switch parts[1] {
	case "documents":
		parts[2] = "{document_id}"
	case "invoices":
		parts[2] = "{invoice_id}"
		if len(parts) >= 5 && parts[3] == "items" {
			parts[4] = "{item_id}"
		}
	case "horses":
		if parts[2] != "import" {
			parts[2] = "{horse_id}"
		}
	default:
		return path
	}
	return "/" + strings.Join(parts, "/")
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
