package engine

import (
	"github.com/cvebench/flowengine/engine/emit"
	"github.com/cvebench/flowengine/engine/metrics"
	"github.com/cvebench/flowengine/engine/store"
)

// Options configures a Builder. Zero value is usable: a NullEmitter, nil
// metrics, and no ledger.
type Options struct {
	Emitter         emit.Emitter
	Metrics         *metrics.Collector
	Ledger          store.Ledger
	DefaultPriority int
}

// Option is a functional option for NewBuilder.
type Option func(*Options)

// WithEmitter attaches an observability sink. Builder and the resulting
// PlanTemplates emit construct_start, option_tried, step_committed,
// backtrack, plan_found, schedule_start, worker_invoked,
// register_released, and plan_complete events to it.
func WithEmitter(e emit.Emitter) Option {
	return func(o *Options) { o.Emitter = e }
}

// WithMetrics attaches Prometheus instrumentation for candidates explored,
// backtracks, plans found, worker invocations, and the register
// high-water mark.
func WithMetrics(m *metrics.Collector) Option {
	return func(o *Options) { o.Metrics = m }
}

// WithLedger attaches a planning ledger that persists construction and
// execution records.
func WithLedger(l store.Ledger) Option {
	return func(o *Options) { o.Ledger = l }
}

// WithDefaultPriority sets the priority assigned to Register calls that do
// not supply one explicitly. Node priority otherwise defaults to
// registration order. A default of 0 is not distinguished from no default:
// registration order stays in effect.
func WithDefaultPriority(p int) Option {
	return func(o *Options) { o.DefaultPriority = p }
}

func resolveOptions(opts []Option) Options {
	cfg := Options{}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.Emitter == nil {
		cfg.Emitter = emit.NewNullEmitter()
	}
	return cfg
}
