package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics counts order transitions handled by the orchestration facade.
type OrderMetrics struct {
	transitions *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewOrderMetrics registers the order metrics on reg. A nil registerer yields a no-op collector.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "orders",
		Name:      "transitions_total",
		Help:      "Order actions that were applied, by action and resulting status.",
	}, []string{"action", "from", "to"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "orders",
		Name:      "rejections_total",
		Help:      "Order actions that failed, by action and error code.",
	}, []string{"action", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: "orders",
		Name:      "action_duration_seconds",
		Help:      "Latency of order actions including the database transaction.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"action"})
	reg.MustRegister(transitions, rejections, duration)
	return &OrderMetrics{
		transitions: transitions,
		rejections:  rejections,
		duration:    duration,
	}
}

func (m *OrderMetrics) ObserveTransition(action, from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(action), normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (m *OrderMetrics) ObserveRejection(action, code string) {
	if m == nil || m.rejections == nil {
		return
	}
	m.rejections.WithLabelValues(normalizeLabel(action), normalizeLabel(code)).Inc()
}

func (m *OrderMetrics) ObserveDuration(action string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(action)).Observe(d.Seconds())
}
