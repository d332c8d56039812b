// Package metrics wraps prometheus/client_golang to instrument the
// planner's search and the scheduler's register allocator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds every metric the planner and scheduler update during
// Construct and plan execution.
type Collector struct {
	candidatesExplored prometheus.Counter
	backtracks         prometheus.Counter
	plansFound         prometheus.Counter
	workerInvocations  *prometheus.CounterVec
	registerHighWater  prometheus.Gauge
}

// NewCollector registers the engine's metrics with registry (use
// prometheus.DefaultRegisterer for the global registry).
func NewCollector(registry prometheus.Registerer) *Collector {
	factory := promauto.With(registry)
	return &Collector{
		candidatesExplored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flowengine",
			Name:      "candidates_explored_total",
			Help:      "Number of (node, mode) candidates the planner tried across all Construct calls.",
		}),
		backtracks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flowengine",
			Name:      "backtracks_total",
			Help:      "Number of times the planner backtracked out of a search branch.",
		}),
		plansFound: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flowengine",
			Name:      "plans_found_total",
			Help:      "Number of complete plan snapshots the planner recorded.",
		}),
		workerInvocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowengine",
			Name:      "worker_invocations_total",
			Help:      "Number of worker calls executed, by node key.",
		}, []string{"node_key"}),
		registerHighWater: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "flowengine",
			Name:      "register_high_water",
			Help:      "Peak number of simultaneously live registers in the most recently scheduled plan.",
		}),
	}
}

// CandidateExplored records one planner candidate attempt.
func (c *Collector) CandidateExplored() {
	if c == nil {
		return
	}
	c.candidatesExplored.Inc()
}

// Backtrack records one planner backtrack.
func (c *Collector) Backtrack() {
	if c == nil {
		return
	}
	c.backtracks.Inc()
}

// PlanFound records one complete plan snapshot.
func (c *Collector) PlanFound() {
	if c == nil {
		return
	}
	c.plansFound.Inc()
}

// WorkerInvoked records one worker call for nodeKey.
func (c *Collector) WorkerInvoked(nodeKey string) {
	if c == nil {
		return
	}
	c.workerInvocations.WithLabelValues(nodeKey).Inc()
}

// SetRegisterHighWater records the peak register count of the most
// recently scheduled plan.
func (c *Collector) SetRegisterHighWater(n int) {
	if c == nil {
		return
	}
	c.registerHighWater.Set(float64(n))
}
