// Package engine implements a resource-oriented dataflow planner: callers
// register nodes that declare what resources they consume and produce, and
// the engine plans a correct execution order, negotiates runtime types
// between nodes, allocates a minimal register file, and emits a callable
// plan.
package engine

// ResourceName identifies a value flowing through the plan, e.g.
// "dataset:testing" or "verifier:gt-vs-test:object-detection". Equality is
// byte-exact.
type ResourceName string

// ResourceType describes the runtime shape of a resource: an opaque kind
// token plus a small attribute bag used to propagate static properties
// (element type, storage class, ...) between nodes during type
// negotiation.
type ResourceType struct {
	Kind string
	Aux  map[string]any
}

// ModeID selects one of a node's contracts. Static modes are indexed by
// their position in StaticContracts(); dynamic modes are minted by the
// node itself in response to a DynamicContracts call and must remain
// resolvable by GetContract afterward.
type ModeID int

// Contract pairs the resource names a (node, mode) consumes and produces,
// in the order the node's worker expects/returns them. A name present in
// both Requires and Provides denotes an override: the node consumes the
// current version of that resource and produces the next one.
type Contract struct {
	Requires []ResourceName
	Provides []ResourceName
}

// Worker executes one (node, mode)'s computation: it consumes inputs in
// contract order and returns outputs in the same order. An output slot the
// scheduler marked unneeded in the corresponding output mask may be a
// placeholder (nil).
type Worker func(inputs []any) ([]any, error)

// Node is the minimal capability every registered node must expose beyond
// contract declaration: GetContract resolves a mode id to its contract,
// and Setup negotiates runtime types and returns the callable that
// performs the node's work.
type Node interface {
	// GetContract returns the contract for mode, and false if mode is not
	// one this node recognizes.
	GetContract(mode ModeID) (Contract, bool)

	// Setup negotiates the runtime types of a mode's inputs against the
	// previously-negotiated producer types and returns a worker plus the
	// resource types of its outputs. outputMask has one entry per
	// contract.Provides slot; false means no downstream consumer needs
	// that output, so the worker may return a placeholder in its place.
	// An error here is surfaced as ErrorKind KindTypeMismatch.
	Setup(mode ModeID, inputTypes []ResourceType, outputMask []bool) (Worker, []ResourceType, error)
}

// StaticContractor is implemented by nodes whose contracts are fixed at
// registration time. StaticContracts()[i] corresponds to ModeID(i).
type StaticContractor interface {
	StaticContracts() []Contract
}

// DynamicContractor is implemented by nodes that mint new modes on demand
// while the planner is searching for a provider of target. present lists
// every resource name the current branch has already resolved at least
// one provider for. Returned mode ids must subsequently resolve via
// GetContract.
type DynamicContractor interface {
	DynamicContracts(target ResourceName, present []ResourceName) []ModeID
}

func containsName(list []ResourceName, name ResourceName) bool {
	for _, r := range list {
		if r == name {
			return true
		}
	}
	return false
}

// splitContract partitions a contract's requires/provides into require,
// provide, and override buckets: override = requires ∩ provides, removed
// from both sides. Buckets preserve the order names appear in the contract.
func splitContract(c Contract) (require, provide, override []string) {
	seenOverride := make(map[ResourceName]bool)
	for _, r := range c.Requires {
		if containsName(c.Provides, r) {
			if !seenOverride[r] {
				override = append(override, string(r))
				seenOverride[r] = true
			}
			continue
		}
		require = append(require, string(r))
	}
	for _, r := range c.Provides {
		if !seenOverride[r] {
			provide = append(provide, string(r))
		}
	}
	return require, provide, override
}
