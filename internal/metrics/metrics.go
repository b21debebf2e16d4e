// Package metrics exposes the engine's Prometheus instrumentation. Metrics
// live on a caller-supplied registry so tests can assert against isolated
// registries instead of the process-global default.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "phaseflow"

// EngineMetrics counts the engine's externally visible outcomes.
type EngineMetrics struct {
	ValidationFailures *prometheus.CounterVec
	CascadesPreviewed  prometheus.Counter
	CascadesApplied    *prometheus.CounterVec
	CascadeConflicts   *prometheus.CounterVec
	PhasesMoved        prometheus.Counter
}

// NewEngineMetrics builds and registers the engine metric set.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		ValidationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dependency_validation_failures_total",
				Help:      "Rejected dependency edges by validation error kind",
			},
			[]string{"kind"},
		),
		CascadesPreviewed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cascades_previewed_total",
				Help:      "Cascade calculations served",
			},
		),
		CascadesApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cascades_applied_total",
				Help:      "Cascade apply attempts by outcome",
			},
			[]string{"outcome"},
		),
		CascadeConflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cascade_conflicts_total",
				Help:      "Conflicts reported by cascade calculations, by kind",
			},
			[]string{"kind"},
		),
		PhasesMoved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "phases_moved_total",
				Help:      "Phase date rows rewritten by applied cascades",
			},
		),
	}
	reg.MustRegister(
		m.ValidationFailures,
		m.CascadesPreviewed,
		m.CascadesApplied,
		m.CascadeConflicts,
		m.PhasesMoved,
	)
	return m
}

// Apply outcome label values.
const (
	OutcomeApplied    = "applied"
	OutcomeStale      = "stale"
	OutcomeInfeasible = "infeasible"
	OutcomeError      = "error"
)
