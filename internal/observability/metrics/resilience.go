package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/stablebooks/internal/infrastructure/resilience"
)

// ResilienceMetrics counts retries and circuit breaker transitions of
// outbound calls.
type ResilienceMetrics struct {
	retriesTotal       *prometheus.CounterVec
	breakerTransitions *prometheus.CounterVec
}

func newResilienceMetrics(registry *prometheus.Registry, constLabels prometheus.Labels) *ResilienceMetrics {
	retriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "resilience",
			Name:        "retries_total",
			Help:        "Retried outbound calls by operation.",
			ConstLabels: constLabels,
		},
		[]string{"operation"},
	)
	transitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "resilience",
			Name:        "breaker_transitions_total",
			Help:        "Circuit breaker state changes by operation and target state.",
			ConstLabels: constLabels,
		},
		[]string{"operation", "to"},
	)
	registry.MustRegister(retriesTotal, transitions)
	return &ResilienceMetrics{retriesTotal: retriesTotal, breakerTransitions: transitions}
}

// ResilienceHooks feeds executor events into these counters.
func (m *ResilienceMetrics) ResilienceHooks() resilience.Hooks {
	return resilience.Hooks{
		OnRetry: func(operation string, _ int) {
			m.retriesTotal.WithLabelValues(operation).Inc()
		},
		OnStateChange: func(operation, _, to string) {
			m.breakerTransitions.WithLabelValues(operation, to).Inc()
		},
	}
}
