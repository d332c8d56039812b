package engine

import (
	"context"
	"fmt"

	"github.com/cvebench/flowengine/engine/emit"
	"github.com/cvebench/flowengine/engine/store"
)

// NodeHandle identifies a node registered with a Builder.
type NodeHandle int

type nodeEntry struct {
	node     Node
	priority int
	static   []Contract // nil if the node is not a StaticContractor
}

// Builder accumulates registered nodes and turns a target resource list
// into zero or more viable PlanTemplates.
type Builder struct {
	nodes     []nodeEntry
	opts      Options
	planCount int
}

// NewBuilder returns an empty Builder.
func NewBuilder(opts ...Option) *Builder {
	return &Builder{opts: resolveOptions(opts)}
}

// Register adds node to the builder. priority defaults to registration
// order (or Options.DefaultPriority, if WithDefaultPriority set a non-zero
// value and no explicit priority is given here); passing an explicit priority
// overrides both. Returns KindNoNode if node exposes neither
// StaticContractor nor DynamicContractor.
func (b *Builder) Register(node Node, priority ...int) (NodeHandle, error) {
	static, isStatic := node.(StaticContractor)
	_, isDynamic := node.(DynamicContractor)
	if !isStatic && !isDynamic {
		return 0, &Error{Kind: KindNoNode, Message: fmt.Sprintf("node %T implements neither StaticContractor nor DynamicContractor", node)}
	}

	p := len(b.nodes)
	if b.opts.DefaultPriority != 0 {
		p = b.opts.DefaultPriority
	}
	if len(priority) > 0 {
		p = priority[0]
	}

	var contracts []Contract
	if isStatic {
		contracts = static.StaticContracts()
	}

	handle := NodeHandle(len(b.nodes))
	b.nodes = append(b.nodes, nodeEntry{node: node, priority: p, static: contracts})
	return handle, nil
}

// Construct plans execution for the given target resource names. It
// returns every viable PlanTemplate whose Setup negotiation succeeded; the
// caller is expected to treat zero templates as KindConstructionFailed and
// more than one as KindAmbiguous (exposed directly as the returned error).
func (b *Builder) Construct(targets []ResourceName) ([]*PlanTemplate, error) {
	b.planCount++
	planID := fmt.Sprintf("plan-%d", b.planCount)

	b.opts.Emitter.Emit(emit.Event{PlanID: planID, Msg: "construct_start", Meta: map[string]any{"targets": namesToStrings(targets)}})

	p := newPlanner(b, planID)
	snapshots := p.search(targets)

	var templates []*PlanTemplate
	var lastTypeErr error
	for _, snap := range snapshots {
		tmpl, err := schedule(b, snap, targets, planID)
		if err != nil {
			var engErr *Error
			if asError(err, &engErr) && engErr.Kind == KindTypeMismatch {
				lastTypeErr = err
				continue
			}
			return nil, err
		}
		templates = append(templates, tmpl)
	}

	if b.opts.Ledger != nil {
		rec := store.ConstructionRecord{
			PlanID:    planID,
			Targets:   namesToStrings(targets),
			StepCount: len(templates),
			Ambiguous: len(templates) > 1,
		}
		if len(templates) == 0 && lastTypeErr != nil {
			rec.Error = lastTypeErr.Error()
		}
		_ = b.opts.Ledger.RecordConstruction(context.Background(), rec)
	}

	switch {
	case len(templates) == 0:
		msg := "no viable plan found for the requested targets"
		cause := lastTypeErr
		if cause == nil {
			cause = fmt.Errorf("no candidate providers satisfied every target")
		}
		return nil, &Error{Kind: KindConstructionFailed, Message: msg, Cause: cause}
	case len(templates) > 1:
		return templates, &Error{Kind: KindAmbiguous, Message: fmt.Sprintf("%d viable plans found for the requested targets", len(templates))}
	default:
		b.opts.Emitter.Emit(emit.Event{PlanID: planID, Msg: "plan_complete"})
		return templates, nil
	}
}

func namesToStrings(names []ResourceName) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return out
}

// asError reports whether err is an *Error, writing it to out.
func asError(err error, out **Error) bool {
	e, ok := err.(*Error)
	if ok {
		*out = e
	}
	return ok
}
