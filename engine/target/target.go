// Package target tracks, during one branch of the planner's search, which
// resource names still need a provider ("pending") and which have at least
// one committed provider ("done"), and allocates the reachability-map IDs
// that represent successive versions of an overridden resource.
package target

import (
	"errors"

	"github.com/cvebench/flowengine/engine/reach"
)

var errCycle = errors.New("target: staging this step would close a precedence cycle")

// Binding names a specific reachability-map ID a contract slot is bound to.
// Binding is mutable: when an override later supersedes a resource's
// current value, every Binding previously handed out for a plain require
// of that resource is updated in place so that, once the branch completes,
// every consumer transparently observes the final, most-overridden version:
// a consumer is always bound to the highest version ID a resource reaches.
type Binding struct {
	ID int
}

// StepBindings records the reachability IDs a single PushStep call assigned
// to each resource name in the step's require/provide/override lists, in
// the order the caller supplied them.
type StepBindings struct {
	Require     []*Binding
	Provide     []*Binding
	OverrideIn  []*Binding
	OverrideOut []*Binding
}

type resourceState struct {
	// versions holds one Binding per allocated version, oldest (the
	// origin, "version 0") first.
	versions []*Binding
	// consumers holds one entry per plain require of this resource so far;
	// when a later override allocates a new, higher version, each entry's
	// Binding is repointed to it and the consumer's step is re-staged to
	// follow the new version.
	consumers []consumerRef
	done      bool
}

// consumerRef pairs the Binding a require call was handed with the step id
// that require belongs to, so a later override can both repoint the
// Binding and re-stage precedence against the correct step.
type consumerRef struct {
	binding *Binding
	stepID  int
}

// Tracker tracks resolved and unresolved resource names and allocates
// version IDs for override chains.
type Tracker struct {
	reach *reach.Map

	resources map[string]*resourceState

	pending      map[string]bool
	pendingOrder []string

	undo [][]func()
}

// New returns a Tracker backed by the given shared reachability map. The
// same map instance must be shared with the usage.Guard for the branch, so
// both components allocate IDs from one global space.
func New(m *reach.Map) *Tracker {
	return &Tracker{
		reach:     m,
		resources: make(map[string]*resourceState),
		pending:   make(map[string]bool),
	}
}

// Seed marks names as pending without a committed step, used to prime the
// tracker with the caller's requested target list.
func (t *Tracker) Seed(names []string) {
	for _, n := range names {
		t.addPending(n)
	}
}

// NextTarget returns any pending resource name. Selection is deterministic
// for a given insertion history: it returns the first-seen-and-still-pending
// name, matching the original implementation's behavior (see SPEC_FULL.md).
func (t *Tracker) NextTarget() (string, bool) {
	for _, n := range t.pendingOrder {
		if t.pending[n] {
			return n, true
		}
	}
	return "", false
}

// IsComplete reports whether no resource name is still pending.
func (t *Tracker) IsComplete() bool {
	for _, v := range t.pending {
		if v {
			return false
		}
	}
	return true
}

// IsDone reports whether at least one provider has committed a value for
// name, including a not-yet-fully-resolved override chain.
func (t *Tracker) IsDone(name string) bool {
	st, ok := t.resources[name]
	return ok && st.done
}

// IsPending reports whether name currently needs a provider.
func (t *Tracker) IsPending(name string) bool {
	return t.pending[name]
}

// DoneNames returns every resource name with at least one committed
// provider, in no particular order. Passed to a node's dynamic-contract
// query as the "present resources" argument.
func (t *Tracker) DoneNames() []string {
	var out []string
	for name, st := range t.resources {
		if st.done {
			out = append(out, name)
		}
	}
	return out
}

// FinalVersions returns, for every resource name with at least one
// allocated version, the reachability ID of its latest version. Used by
// the scheduler to resolve a requested target name to the register that
// ultimately holds its value.
func (t *Tracker) FinalVersions() map[string]int {
	out := make(map[string]int)
	for name, st := range t.resources {
		if len(st.versions) > 0 {
			out[name] = st.versions[len(st.versions)-1].ID
		}
	}
	return out
}

func (t *Tracker) addPending(name string) {
	if t.pending[name] {
		return
	}
	if _, seen := indexOf(t.pendingOrder, name); !seen {
		t.pendingOrder = append(t.pendingOrder, name)
	}
	t.pending[name] = true
}

func indexOf(s []string, v string) (int, bool) {
	for i, x := range s {
		if x == v {
			return i, true
		}
	}
	return -1, false
}

func (t *Tracker) ensure(name string) *resourceState {
	st, ok := t.resources[name]
	if !ok {
		st = &resourceState{}
		t.resources[name] = st
	}
	return st
}

// mustStage stages pred -> succ and confirms the precedence actually holds
// afterward. Stage returns (false, nil) rather than an error when the
// reverse edge already held (a cycle, which must fail this step) or when
// pred == succ, so the precedence is confirmed with Reaches once staging
// settles.
func (t *Tracker) mustStage(pred, succ int) error {
	if _, err := t.reach.Stage(pred, succ); err != nil {
		return err
	}
	if !t.reach.Reaches(pred, succ) {
		return errCycle
	}
	return nil
}

// PushStep stages the constraints for one applied (node, mode) whose
// contract has been split into require, provide, and override resource-name
// lists (override = require ∩ provide, already removed from require and
// provide). stepID is the ID usage.Guard
// allocated for this step. On success it commits the staged reachability
// edges and returns the bindings assigned to each slot; on failure nothing
// is changed.
func (t *Tracker) PushStep(require, provide, override []string, stepID int) (StepBindings, bool) {
	for _, r := range provide {
		if t.IsDone(r) && !t.IsPending(r) {
			return StepBindings{}, false
		}
	}
	for _, r := range override {
		if t.IsDone(r) && !t.IsPending(r) {
			return StepBindings{}, false
		}
	}

	var undo []func()
	abort := func() (StepBindings, bool) {
		// Clear the staged cells while every ID they name still exists;
		// the undo list then drops any version IDs this step allocated.
		t.reach.Reset()
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		return StepBindings{}, false
	}

	allocateVersion := func(name string) (*Binding, bool) {
		id := t.reach.Allocate(1)
		if len(id) != 1 {
			return nil, false
		}
		b := &Binding{ID: id[0]}
		st := t.ensure(name)
		st.versions = append(st.versions, b)
		undo = append(undo, func() {
			st.versions = st.versions[:len(st.versions)-1]
			_ = t.reach.DropLast(b.ID)
		})
		return b, true
	}

	originOf := func(name string) (*Binding, bool) {
		st := t.ensure(name)
		if len(st.versions) > 0 {
			return st.versions[0], true
		}
		return allocateVersion(name)
	}

	currentOf := func(name string) (*Binding, bool) {
		st := t.ensure(name)
		if len(st.versions) > 0 {
			return st.versions[len(st.versions)-1], true
		}
		return allocateVersion(name)
	}

	var bindings StepBindings

	for _, r := range require {
		cur, ok := currentOf(r)
		if !ok {
			return abort()
		}
		if err := t.mustStage(cur.ID, stepID); err != nil {
			return abort()
		}
		st := t.ensure(r)
		// The consumer gets its own Binding, so a later override can repoint
		// it without moving the version entry it was copied from.
		consumer := &Binding{ID: cur.ID}
		st.consumers = append(st.consumers, consumerRef{binding: consumer, stepID: stepID})
		undoLen := len(st.consumers)
		undo = append(undo, func() {
			st.consumers = st.consumers[:undoLen-1]
		})
		wasDone := st.done
		if !wasDone {
			t.addPending(r)
			undo = append(undo, func() {
				// leave pendingOrder intact (harmless once re-seen); only
				// unmark membership if nothing else still needs it.
				if len(st.consumers) == 0 && !st.done {
					t.pending[r] = false
				}
			})
		}
		bindings.Require = append(bindings.Require, consumer)
	}

	for _, r := range provide {
		origin, ok := originOf(r)
		if !ok {
			return abort()
		}
		if err := t.mustStage(stepID, origin.ID); err != nil {
			return abort()
		}
		st := t.ensure(r)
		wasDone, wasPending := st.done, t.pending[r]
		st.done = true
		t.pending[r] = false
		undo = append(undo, func() {
			st.done = wasDone
			t.pending[r] = wasPending
		})
		bindings.Provide = append(bindings.Provide, origin)
	}

	for _, r := range override {
		st := t.ensure(r)
		wasNew := len(st.versions) == 0
		input, ok := currentOf(r)
		if !ok {
			return abort()
		}
		output, ok := allocateVersion(r)
		if !ok {
			return abort()
		}
		if err := t.mustStage(input.ID, stepID); err != nil {
			return abort()
		}
		if err := t.mustStage(stepID, output.ID); err != nil {
			return abort()
		}
		// Retroactively order every existing consumer of r after the new
		// version and repoint their Binding to it, so a plain require
		// processed before this override transparently observes the
		// overridden value.
		for _, c := range st.consumers {
			if err := t.reStage(c.stepID, output.ID); err != nil {
				return abort()
			}
			prevID := c.binding.ID
			c.binding.ID = output.ID
			undo = append(undo, func(b *Binding, old int) func() {
				return func() { b.ID = old }
			}(c.binding, prevID))
		}

		wasDone, wasPending := st.done, t.pending[r]
		st.done = true
		if wasNew {
			t.addPending(r)
		}
		undo = append(undo, func() {
			st.done = wasDone
			t.pending[r] = wasPending
		})

		bindings.OverrideIn = append(bindings.OverrideIn, input)
		bindings.OverrideOut = append(bindings.OverrideOut, output)
	}

	t.reach.Commit()
	t.undo = append(t.undo, undo)
	return bindings, true
}

// reStage orders newVersionID ahead of a retroactively-rebound consumer's
// step. The precedence from the version the consumer originally saw is
// left in place.
func (t *Tracker) reStage(consumerStepID, newVersionID int) error {
	return t.mustStage(newVersionID, consumerStepID)
}

// Rollback undoes the most recent successful PushStep.
func (t *Tracker) Rollback() {
	if len(t.undo) == 0 {
		panic("target: Rollback called with no pushed steps")
	}
	ops := t.undo[len(t.undo)-1]
	t.undo = t.undo[:len(t.undo)-1]
	// Clear the step's committed cells before its version IDs are dropped.
	t.reach.Rollback()
	for i := len(ops) - 1; i >= 0; i-- {
		ops[i]()
	}
}

// Export returns the mapping from allocated reachability ID to the
// resource name it belongs to, used by the scheduler to label IDs in the
// plan snapshot.
func (t *Tracker) Export() map[int]string {
	out := make(map[int]string)
	for name, st := range t.resources {
		for _, b := range st.versions {
			out[b.ID] = name
		}
	}
	return out
}
