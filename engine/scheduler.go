package engine

import (
	"fmt"
	"sort"
)

// schedule converts one plan snapshot into a runnable program: it
// topologically orders the snapshot's steps, allocates a minimal register
// file via a greedy
// free-list allocator driven by each register's exact last consumer (not
// the snapshot's full transitive closure, which would over-count
// indirect consumers), negotiates runtime types by calling every step's
// Setup in order, and returns the resulting PlanTemplate.
//
// A TypeMismatch from any step's Setup aborts this snapshot only; the
// caller (Builder.Construct) treats that as a dropped candidate, not a
// fatal error, unless it was the only candidate.
func schedule(b *Builder, snap planSnapshot, targets []ResourceName, planID string) (*PlanTemplate, error) {
	order, err := topoOrder(snap)
	if err != nil {
		return nil, err
	}

	finalReg := make(map[int]bool, len(targets))
	resultIDs := make([]int, len(targets))
	for i, t := range targets {
		id, ok := snap.finalVersion[string(t)]
		if !ok {
			return nil, &Error{Kind: KindConstructionFailed, Message: fmt.Sprintf("target %q was never resolved in this plan snapshot", t)}
		}
		resultIDs[i] = id
		finalReg[id] = true
	}

	orderIndex := make(map[int]int, len(order))
	for i, id := range order {
		orderIndex[id] = i
	}

	lastConsumer := make(map[int]int)
	markConsumer := func(regID, stepID int) {
		cur, ok := lastConsumer[regID]
		if !ok || orderIndex[stepID] > orderIndex[cur] {
			lastConsumer[regID] = stepID
		}
	}
	for stepID, bindings := range snap.bindings {
		for _, bd := range bindings.Require {
			markConsumer(bd.ID, stepID)
		}
		for _, bd := range bindings.OverrideIn {
			markConsumer(bd.ID, stepID)
		}
	}

	regIndex := make(map[int]int)
	regTypes := make(map[int]ResourceType)
	var freeList []int
	next := 0
	alloc := func() int {
		if n := len(freeList); n > 0 {
			idx := freeList[n-1]
			freeList = freeList[:n-1]
			return idx
		}
		idx := next
		next++
		return idx
	}
	free := func(idx int) { freeList = append(freeList, idx) }

	var instructions []instruction

	for _, stepID := range order {
		key := snap.steps[stepID]
		entry := b.nodes[key.nodeIdx]
		contract, ok := entry.node.GetContract(key.mode)
		if !ok {
			return nil, &Error{Kind: KindConstructionFailed, Message: fmt.Sprintf("node %d no longer recognizes mode %d", key.nodeIdx, key.mode)}
		}
		bindings := snap.bindings[stepID]

		var (
			inputRegs   []int
			inputTypes  []ResourceType
			inputIDs    []int
			reqIdx      int
			ovInIdx     int
		)
		for _, name := range contract.Requires {
			var id int
			if containsName(contract.Provides, name) {
				id = bindings.OverrideIn[ovInIdx].ID
				ovInIdx++
			} else {
				id = bindings.Require[reqIdx].ID
				reqIdx++
			}
			idx, ok := regIndex[id]
			if !ok {
				return nil, &Error{Kind: KindConstructionFailed, Message: fmt.Sprintf("internal: register for resource id %d not produced before step %d", id, stepID)}
			}
			inputRegs = append(inputRegs, idx)
			inputTypes = append(inputTypes, regTypes[id])
			inputIDs = append(inputIDs, id)
		}

		var (
			outputIDs  []int
			outputMask []bool
			provIdx    int
			ovOutIdx   int
		)
		for _, name := range contract.Provides {
			var id int
			if containsName(contract.Requires, name) {
				id = bindings.OverrideOut[ovOutIdx].ID
				ovOutIdx++
			} else {
				id = bindings.Provide[provIdx].ID
				provIdx++
			}
			outputIDs = append(outputIDs, id)
			_, hasConsumer := lastConsumer[id]
			outputMask = append(outputMask, hasConsumer || finalReg[id])
		}

		worker, outTypes, err := entry.node.Setup(key.mode, inputTypes, outputMask)
		if err != nil {
			return nil, &Error{Kind: KindTypeMismatch, Message: fmt.Sprintf("node %d mode %d rejected negotiated input types", key.nodeIdx, key.mode), Cause: err}
		}

		outputRegs := make([]int, len(outputIDs))
		for i, id := range outputIDs {
			if !outputMask[i] {
				outputRegs[i] = -1
				continue
			}
			idx := alloc()
			regIndex[id] = idx
			if i < len(outTypes) {
				regTypes[id] = outTypes[i]
			}
			outputRegs[i] = idx
		}

		var release []int
		seen := make(map[int]bool)
		for _, id := range inputIDs {
			if seen[id] {
				continue
			}
			if lastConsumer[id] == stepID && !finalReg[id] {
				if idx, ok := regIndex[id]; ok {
					release = append(release, idx)
					free(idx)
					delete(regIndex, id)
					seen[id] = true
				}
			}
		}

		instructions = append(instructions, instruction{
			nodeIdx:    key.nodeIdx,
			mode:       key.mode,
			key:        nodeKey(key.nodeIdx, key.mode),
			worker:     worker,
			inputRegs:  inputRegs,
			outputRegs: outputRegs,
			release:    release,
		})
	}

	resultRegs := make([]int, len(resultIDs))
	resultTypes := make([]ResourceType, len(resultIDs))
	for i, id := range resultIDs {
		idx, ok := regIndex[id]
		if !ok {
			return nil, &Error{Kind: KindConstructionFailed, Message: fmt.Sprintf("target register for resource id %d was released before the final gather", id)}
		}
		resultRegs[i] = idx
		resultTypes[i] = regTypes[id]
	}

	b.opts.Metrics.SetRegisterHighWater(next)

	return &PlanTemplate{
		planID:        planID,
		instructions:  instructions,
		resultRegs:    resultRegs,
		resultTypes:   resultTypes,
		registerCount: next,
		emitter:       b.opts.Emitter,
		metrics:       b.opts.Metrics,
		ledger:        b.opts.Ledger,
	}, nil
}

// topoOrder returns a deterministic topological order of snap's steps,
// restricted to the step-to-step precedence edges present in the
// snapshot's full reachability closure (snap.edges also carries
// step-to-resource-version edges, which this filters out). Using the
// closure rather than only directly-staged edges is equivalent for
// ordering purposes: if a precedes b transitively, some direct chain of
// staged edges already orders every intermediate step between them, so
// restricting to steps never drops a real constraint.
func topoOrder(snap planSnapshot) ([]int, error) {
	steps := make([]int, 0, len(snap.steps))
	for id := range snap.steps {
		steps = append(steps, id)
	}
	sort.Ints(steps)

	stepSet := make(map[int]bool, len(steps))
	for _, id := range steps {
		stepSet[id] = true
	}

	adj := make(map[int][]int)
	indegree := make(map[int]int, len(steps))
	for _, id := range steps {
		indegree[id] = 0
	}
	for _, e := range snap.edges {
		a, b := e[0], e[1]
		if stepSet[a] && stepSet[b] {
			adj[a] = append(adj[a], b)
			indegree[b]++
		}
	}

	var ready []int
	for _, id := range steps {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	var order []int
	for len(ready) > 0 {
		sort.Ints(ready)
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for _, next := range adj[id] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	if len(order) != len(steps) {
		return nil, &Error{Kind: KindConstructionFailed, Message: "internal: plan snapshot's step precedence contains a cycle"}
	}
	return order, nil
}
