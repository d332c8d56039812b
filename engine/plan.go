package engine

import (
	"context"
	"fmt"

	"github.com/cvebench/flowengine/engine/emit"
	"github.com/cvebench/flowengine/engine/metrics"
	"github.com/cvebench/flowengine/engine/store"
)

// instruction is one step of an assembled plan: invoke a node's worker,
// reading inputRegs and writing outputRegs, then free any registers
// listed in release. An outputRegs entry of -1 means no downstream
// consumer needs that slot; the worker may return a placeholder there.
type instruction struct {
	nodeIdx    int
	mode       ModeID
	key        string
	worker     Worker
	inputRegs  []int
	outputRegs []int
	release    []int
}

// PlanTemplate is an immutable, already type-negotiated program: the
// register count, instruction sequence, and result register mapping are
// fixed at Construct time. Assemble produces a fresh, independently
// executable Plan from the same template.
type PlanTemplate struct {
	planID        string
	instructions  []instruction
	resultRegs    []int
	resultTypes   []ResourceType
	registerCount int

	emitter emit.Emitter
	metrics *metrics.Collector
	ledger  store.Ledger
}

// ResultTypes returns the resource type descriptors of the template's
// results, in requested-target order.
func (t *PlanTemplate) ResultTypes() []ResourceType {
	out := make([]ResourceType, len(t.resultTypes))
	copy(out, t.resultTypes)
	return out
}

// RegisterCount reports the size of the register file a Plan assembled
// from this template allocates.
func (t *PlanTemplate) RegisterCount() int {
	return t.registerCount
}

// Plan is a zero-argument callable that executes one independent run of
// a PlanTemplate, returning one value per requested target in order.
type Plan func() ([]any, error)

// Assemble returns a fresh Plan with its own register file. Multiple
// Plans assembled from the same template may run independently; nodes
// that carry their own mutable state (an Injector, say) are not
// duplicated by Assemble and must be made safe for concurrent use by the
// caller if more than one Plan runs at once.
func (t *PlanTemplate) Assemble() Plan {
	return func() ([]any, error) {
		regs := make([]any, t.registerCount)
		t.emitter.Emit(emit.Event{PlanID: t.planID, Msg: "schedule_start"})

		for step, ins := range t.instructions {
			inputs := make([]any, len(ins.inputRegs))
			for i, r := range ins.inputRegs {
				inputs[i] = regs[r]
			}

			outputs, err := ins.worker(inputs)
			if err != nil {
				for i := range regs {
					regs[i] = nil
				}
				if t.ledger != nil {
					_ = t.ledger.RecordExecution(context.Background(), store.ExecutionRecord{
						PlanID:      t.planID,
						WorkerCalls: step,
						Error:       err.Error(),
					})
				}
				return nil, err
			}

			for i, r := range ins.outputRegs {
				if r < 0 {
					continue
				}
				regs[r] = outputs[i]
			}

			t.metrics.WorkerInvoked(ins.key)
			t.emitter.Emit(emit.Event{PlanID: t.planID, Step: step, NodeKey: ins.key, Msg: "worker_invoked"})

			for _, r := range ins.release {
				regs[r] = nil
				t.emitter.Emit(emit.Event{PlanID: t.planID, Step: step, Msg: "register_released", Meta: map[string]any{"register": r}})
			}
		}

		results := make([]any, len(t.resultRegs))
		for i, r := range t.resultRegs {
			results[i] = regs[r]
		}
		for i := range regs {
			regs[i] = nil
		}

		if t.ledger != nil {
			_ = t.ledger.RecordExecution(context.Background(), store.ExecutionRecord{
				PlanID:      t.planID,
				WorkerCalls: len(t.instructions),
			})
		}
		t.emitter.Emit(emit.Event{PlanID: t.planID, Msg: "plan_complete"})
		return results, nil
	}
}

func nodeKey(nodeIdx int, mode ModeID) string {
	return fmt.Sprintf("%d/%d", nodeIdx, mode)
}
