package engine

// Injector is a convenience Node that requires nothing and provides a
// fixed set of values, one mode per call to Add. It exists to feed data
// into a plan from outside the node graph — a dataset walker handing a
// nested plan its per-sample inputs, for instance — without every caller
// writing a bespoke Node for the purpose.
//
// Values are mutable up until a Plan assembled against this Injector
// actually runs: Set may be called again between Plan invocations to
// feed a new sample through the same PlanTemplate.
type Injector struct {
	modes []injectorMode
}

type injectorMode struct {
	provides []ResourceName
	types    []ResourceType
	values   []any
}

// NewInjector returns an empty Injector with no modes registered.
func NewInjector() *Injector {
	return &Injector{}
}

// Add registers one mode that provides names, bound to the given
// initial values and type descriptors (parallel slices, same length as
// names). It returns the mode id to pass to Set before each Plan run.
func (in *Injector) Add(names []ResourceName, types []ResourceType, values []any) ModeID {
	mode := ModeID(len(in.modes))
	in.modes = append(in.modes, injectorMode{
		provides: append([]ResourceName(nil), names...),
		types:    append([]ResourceType(nil), types...),
		values:   append([]any(nil), values...),
	})
	return mode
}

// Set replaces the values a previously-added mode provides. len(values)
// must equal the number of names the mode was added with.
func (in *Injector) Set(mode ModeID, values []any) {
	m := &in.modes[mode]
	copy(m.values, values)
}

// StaticContracts implements StaticContractor.
func (in *Injector) StaticContracts() []Contract {
	out := make([]Contract, len(in.modes))
	for i, m := range in.modes {
		out[i] = Contract{Provides: m.provides}
	}
	return out
}

// GetContract implements Node.
func (in *Injector) GetContract(mode ModeID) (Contract, bool) {
	if int(mode) < 0 || int(mode) >= len(in.modes) {
		return Contract{}, false
	}
	m := in.modes[mode]
	return Contract{Provides: m.provides}, true
}

// Setup implements Node. It ignores inputTypes (an Injector has none)
// and returns a worker that yields the mode's current values, honoring
// outputMask by substituting nil for slots no consumer needs.
func (in *Injector) Setup(mode ModeID, _ []ResourceType, outputMask []bool) (Worker, []ResourceType, error) {
	m := in.modes[mode]
	worker := func([]any) ([]any, error) {
		out := make([]any, len(m.values))
		for i, v := range m.values {
			if i < len(outputMask) && !outputMask[i] {
				continue
			}
			out[i] = v
		}
		return out, nil
	}
	return worker, m.types, nil
}

// StaticNode wraps an immutable contract list for nodes whose behavior
// is entirely captured by Setup; it shares the StaticContractor and
// GetContract boilerplate so a Setup implementation is the only thing a
// caller needs to supply.
type StaticNode struct {
	contracts []Contract
	setup     func(mode ModeID, inputTypes []ResourceType, outputMask []bool) (Worker, []ResourceType, error)
}

// NewStaticNode returns a Node whose contracts are fixed at construction
// and whose Setup delegates to fn.
func NewStaticNode(contracts []Contract, fn func(mode ModeID, inputTypes []ResourceType, outputMask []bool) (Worker, []ResourceType, error)) *StaticNode {
	return &StaticNode{contracts: contracts, setup: fn}
}

// StaticContracts implements StaticContractor.
func (s *StaticNode) StaticContracts() []Contract {
	return s.contracts
}

// GetContract implements Node.
func (s *StaticNode) GetContract(mode ModeID) (Contract, bool) {
	if int(mode) < 0 || int(mode) >= len(s.contracts) {
		return Contract{}, false
	}
	return s.contracts[mode], true
}

// Setup implements Node by delegating to the function supplied at
// construction.
func (s *StaticNode) Setup(mode ModeID, inputTypes []ResourceType, outputMask []bool) (Worker, []ResourceType, error) {
	return s.setup(mode, inputTypes, outputMask)
}
