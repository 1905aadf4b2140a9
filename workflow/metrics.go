package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric definitions with appropriate labels.
var (
	// transitionsTotal counts attempts by workflow, event, endpoints and outcome.
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_transitions_total",
		Help: "Total number of transition attempts by workflow, event, from state, to state and outcome",
	}, []string{"workflow", "event", "from_state", "to_state", "outcome"})

	// transitionDuration tracks end-to-end attempt time, callbacks and persistence included.
	transitionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "workflow_transition_duration_seconds",
		Help:    "Duration of transition attempts by workflow, event and outcome",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"workflow", "event", "outcome"})

	// rescuedTotal counts errors suppressed by a rescue handler.
	rescuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_rescued_errors_total",
		Help: "Total number of errors suppressed by rescue handlers by workflow and event",
	}, []string{"workflow", "event"})
)

// Metric outcome labels beyond the Outcome values.
const (
	outcomeNoSuchEvent  = "no_such_event"
	outcomeNoTransition = "no_matching_transition"
	outcomeError        = "error"
)

func sanitizeLabel(value string) string {
	if value == "" {
		return "none"
	}

	return value
}

func (m *Machine[T]) recordMetrics(event, from, to, outcome string, seconds float64) {
	if !m.def.config.MetricsEnabled {
		return
	}

	name := sanitizeLabel(m.def.spec.Name())

	transitionsTotal.WithLabelValues(name, sanitizeLabel(event), sanitizeLabel(from), sanitizeLabel(to), outcome).Inc()
	transitionDuration.WithLabelValues(name, sanitizeLabel(event), outcome).Observe(seconds)
}

func (m *Machine[T]) recordRescue(event string) {
	if !m.def.config.MetricsEnabled {
		return
	}

	rescuedTotal.WithLabelValues(sanitizeLabel(m.def.spec.Name()), sanitizeLabel(event)).Inc()
}
