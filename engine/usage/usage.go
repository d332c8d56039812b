// Package usage tracks, per plan prefix, the set of (node, mode) pairs
// already applied in a branch of the planner's search and enforces the
// node-priority partial order via the shared reachability map.
package usage

import "github.com/cvebench/flowengine/engine/reach"

// Guard tracks applied steps for one branch of the depth-first search. K is
// the step identity type — normally a (node handle, mode id) pair — and
// must be comparable so it can key a set.
type Guard[K comparable] struct {
	reach *reach.Map

	applied map[K]int // key -> allocated step id
	order   []entry[K]
}

type entry[K comparable] struct {
	key      K
	stepID   int
	priority int
}

// New returns a Guard backed by the given shared reachability map. The
// Guard does not own the map: a Tracker for resource versions (see
// engine/target) shares the same instance, since both allocate IDs in one
// global ID space.
func New[K comparable](m *reach.Map) *Guard[K] {
	return &Guard[K]{
		reach:   m,
		applied: make(map[K]int),
	}
}

// IsEligible reports whether key has not yet been applied in this branch.
func (g *Guard[K]) IsEligible(key K) bool {
	_, exists := g.applied[key]
	return !exists
}

// Push allocates a step ID for key and stages precedence edges against
// every previously pushed step: other_id -> step_id for strictly lower
// priority steps, step_id -> other_id for strictly greater priority steps.
// Equal-priority steps remain unordered with respect to each other.
//
// On success it commits the staged edges and returns the allocated step ID.
// On a cycle it resets the staged edges, drops the allocated ID, and
// returns ok=false.
func (g *Guard[K]) Push(key K, priority int) (stepID int, ok bool) {
	ids := g.reach.Allocate(1)
	id := ids[0]

	for _, e := range g.order {
		switch {
		case e.priority < priority:
			if _, err := g.reach.Stage(e.stepID, id); err != nil {
				g.abortPush(id)
				return 0, false
			}
		case e.priority > priority:
			if _, err := g.reach.Stage(id, e.stepID); err != nil {
				g.abortPush(id)
				return 0, false
			}
		default:
			// equal priority: unordered, no edge staged
		}
	}

	// Stage() returns (false, nil) rather than an error when the requested
	// edge would close a cycle, so a blocked edge is not visible above.
	// allPrecedenceEdgesHeld re-checks that every required precedence
	// actually holds (directly or transitively) after staging; anything
	// missing means a cycle blocked it.
	if !g.allPrecedenceEdgesHeld(id, priority) {
		g.abortPush(id)
		return 0, false
	}

	g.reach.Commit()
	g.applied[key] = id
	g.order = append(g.order, entry[K]{key: key, stepID: id, priority: priority})
	return id, true
}

// allPrecedenceEdgesHeld verifies that every required precedence edge for
// the newly allocated id actually holds in the map (directly or
// transitively). If Stage silently refused an edge because the reverse was
// already present, the required precedence does not hold and this push
// must fail as a cycle.
func (g *Guard[K]) allPrecedenceEdgesHeld(id, priority int) bool {
	for _, e := range g.order {
		switch {
		case e.priority < priority:
			if !g.reach.Reaches(e.stepID, id) {
				return false
			}
		case e.priority > priority:
			if !g.reach.Reaches(id, e.stepID) {
				return false
			}
		}
	}
	return true
}

func (g *Guard[K]) abortPush(id int) {
	g.reach.Reset()
	_ = g.reach.DropLast(id)
}

// Rollback undoes the most recently successful Push: it pops the
// reachability history entry, shrinks the ID space, and removes the step
// from the applied set.
func (g *Guard[K]) Rollback() {
	if len(g.order) == 0 {
		panic("usage: Rollback called with no pushed steps")
	}
	last := len(g.order) - 1
	e := g.order[last]
	g.order = g.order[:last]
	delete(g.applied, e.key)
	g.reach.Rollback()
	_ = g.reach.DropLast(e.stepID)
}

// Export returns the mapping from allocated step ID to the (node, mode)
// key applied at that step, used by the scheduler to recover which node
// and mode a given plan step refers to.
func (g *Guard[K]) Export() map[int]K {
	out := make(map[int]K, len(g.applied))
	for k, id := range g.applied {
		out[id] = k
	}
	return out
}
