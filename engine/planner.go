package engine

import (
	"fmt"

	"github.com/cvebench/flowengine/engine/emit"
	"github.com/cvebench/flowengine/engine/reach"
	"github.com/cvebench/flowengine/engine/target"
	"github.com/cvebench/flowengine/engine/usage"
)

// stepKey identifies one applied (node, mode) pair within a search
// branch; it is the comparable key type usage.Guard is instantiated with.
type stepKey struct {
	nodeIdx int
	mode    ModeID
}

func (k stepKey) String() string {
	return fmt.Sprintf("%d/%d", k.nodeIdx, k.mode)
}

// option is one candidate (node, mode) the planner may apply to resolve a
// pending target.
type option struct {
	nodeIdx  int
	mode     ModeID
	contract Contract
}

// planSnapshot is one complete, viable configuration the planner's search
// recorded: which steps were applied, what each bound to, and the
// precedence constraints between them. It is handed to the scheduler,
// which is the only consumer of its fields.
type planSnapshot struct {
	steps        map[int]stepKey
	bindings     map[int]target.StepBindings
	resources    map[int]string
	finalVersion map[string]int
	edges        [][2]int
}

// planner runs a depth-first search over (node, mode) options, sharing one
// reachability map between its usage.Guard and target.Tracker so both
// allocate IDs from the same space.
type planner struct {
	builder *Builder
	planID  string

	reach   *reach.Map
	usage   *usage.Guard[stepKey]
	targets *target.Tracker

	live      map[int]target.StepBindings
	snapshots []planSnapshot
}

func newPlanner(b *Builder, planID string) *planner {
	m := reach.New()
	return &planner{
		builder: b,
		planID:  planID,
		reach:   m,
		usage:   usage.New[stepKey](m),
		targets: target.New(m),
		live:    make(map[int]target.StepBindings),
	}
}

// search runs the depth-first search and returns every complete plan
// snapshot found.
func (p *planner) search(targets []ResourceName) []planSnapshot {
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = string(t)
	}
	p.targets.Seed(names)
	p.recurse()
	return p.snapshots
}

func (p *planner) recurse() {
	if p.targets.IsComplete() {
		p.recordSnapshot()
		return
	}

	name, ok := p.targets.NextTarget()
	if !ok {
		return
	}
	t := ResourceName(name)

	for _, opt := range p.candidatesFor(t) {
		key := stepKey{nodeIdx: opt.nodeIdx, mode: opt.mode}
		p.builder.opts.Metrics.CandidateExplored()
		p.builder.opts.Emitter.Emit(emit.Event{
			PlanID:  p.planID,
			NodeKey: key.String(),
			Msg:     "option_tried",
		})

		priority := p.builder.nodes[opt.nodeIdx].priority
		stepID, ok := p.usage.Push(key, priority)
		if !ok {
			continue
		}

		require, provide, override := splitContract(opt.contract)
		bindings, ok := p.targets.PushStep(require, provide, override, stepID)
		if !ok {
			p.usage.Rollback()
			continue
		}
		p.live[stepID] = bindings

		p.builder.opts.Emitter.Emit(emit.Event{
			PlanID:  p.planID,
			Step:    stepID,
			NodeKey: key.String(),
			Msg:     "step_committed",
		})

		p.recurse()

		delete(p.live, stepID)
		p.targets.Rollback()
		p.usage.Rollback()
		p.builder.opts.Metrics.Backtrack()
		p.builder.opts.Emitter.Emit(emit.Event{
			PlanID:  p.planID,
			NodeKey: key.String(),
			Msg:     "backtrack",
		})
	}
}

// candidatesFor computes the candidate set for resolving target t: static
// providers in registration order, then dynamic providers in registration
// order, filtered to steps usage.Guard still considers eligible.
//
// Within that set, any contract that overrides t (t appears in both its
// requires and provides) takes priority over a plain provider of t while
// at least one override candidate remains eligible. Registration alone
// does not serialize contracts the way a registration-time rewrite would
// (an override replacing the prior provider's bucket in place): here,
// override and plain candidates for the same resource are both visible to
// the search at once, so without this preference the search would also
// explore a branch that resolves t directly from a plain/origin provider
// and skips a registered override entirely, reporting a spurious second
// plan where exactly one is viable.
func (p *planner) candidatesFor(t ResourceName) []option {
	present := p.targets.DoneNames()
	presentNames := make([]ResourceName, len(present))
	for i, n := range present {
		presentNames[i] = ResourceName(n)
	}

	var overrideOpts, plainOpts []option
	add := func(nodeIdx int, mode ModeID, c Contract) {
		key := stepKey{nodeIdx: nodeIdx, mode: mode}
		if !p.usage.IsEligible(key) {
			return
		}
		opt := option{nodeIdx: nodeIdx, mode: mode, contract: c}
		if containsName(c.Requires, t) {
			overrideOpts = append(overrideOpts, opt)
		} else {
			plainOpts = append(plainOpts, opt)
		}
	}

	for nodeIdx, entry := range p.builder.nodes {
		for modeIdx, c := range entry.static {
			if !containsName(c.Provides, t) {
				continue
			}
			add(nodeIdx, ModeID(modeIdx), c)
		}
	}
	for nodeIdx, entry := range p.builder.nodes {
		dc, ok := entry.node.(DynamicContractor)
		if !ok {
			continue
		}
		for _, mode := range dc.DynamicContracts(t, presentNames) {
			c, ok := entry.node.GetContract(mode)
			if !ok || !containsName(c.Provides, t) {
				continue
			}
			add(nodeIdx, mode, c)
		}
	}

	if len(overrideOpts) > 0 {
		return overrideOpts
	}
	return plainOpts
}

func (p *planner) recordSnapshot() {
	bindings := make(map[int]target.StepBindings, len(p.live))
	for id, b := range p.live {
		bindings[id] = b
	}
	snap := planSnapshot{
		steps:        p.usage.Export(),
		bindings:     bindings,
		resources:    p.targets.Export(),
		finalVersion: p.targets.FinalVersions(),
		edges:        p.reach.Edges(),
	}
	p.builder.opts.Metrics.PlanFound()
	p.builder.opts.Emitter.Emit(emit.Event{PlanID: p.planID, Msg: "plan_found"})
	p.snapshots = append(p.snapshots, snap)
}
