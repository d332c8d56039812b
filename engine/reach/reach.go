// Package reach maintains the transitive-closure matrix of a growing DAG
// under staged edge insertions with commit/rollback semantics.
//
// A dense bit matrix keeps stage/commit/rollback O(n^2) per staged edge and
// trivial to reason about. No general-purpose graph library in the
// ecosystem exposes staged-insertion-with-rollback transitive closure, so
// this package is a small, self-contained structure built on the standard
// library rather than a third-party graph package (see DESIGN.md).
package reach

import "fmt"

// cell is a single matrix coordinate touched by a staged edge insertion.
type cell struct {
	row, col int
}

// Map is the transitive-closure matrix M where M[a][b] means "b is
// transitively reachable from a". IDs are allocated contiguously starting
// at 0.
type Map struct {
	rows [][]bool

	staging []cell
	history [][]cell
}

// New returns an empty reachability map.
func New() *Map {
	return &Map{}
}

// Allocate returns n fresh, contiguous IDs and grows the matrix to
// accommodate them. Newly covered rows and columns start zero-filled.
func (m *Map) Allocate(n int) []int {
	if n <= 0 {
		return nil
	}
	start := len(m.rows)
	newSize := start + n

	grown := make([][]bool, newSize)
	for i := 0; i < start; i++ {
		row := make([]bool, newSize)
		copy(row, m.rows[i])
		grown[i] = row
	}
	for i := start; i < newSize; i++ {
		grown[i] = make([]bool, newSize)
	}
	m.rows = grown

	ids := make([]int, n)
	for i := range ids {
		ids[i] = start + i
	}
	return ids
}

// DropLast shrinks the ID space by one. It is only permitted on the most
// recently allocated ID, which keeps the operation O(n) instead of O(n^2).
func (m *Map) DropLast(id int) error {
	last := len(m.rows) - 1
	if last < 0 || id != last {
		return fmt.Errorf("reach: DropLast(%d): only the most recently allocated id (%d) may be dropped", id, last)
	}
	for i := range m.rows {
		m.rows[i] = m.rows[i][:last]
	}
	m.rows = m.rows[:last]
	return nil
}

// Stage attempts to add the edge pred -> succ.
//
// It fails (returns false, nil) if the reverse edge succ -> pred is already
// present, which would close a cycle. If the edge is already transitively
// present the call succeeds without changing the matrix, but the attempt is
// still recorded in the staging buffer (an empty delta). Otherwise the set
// of newly-true cells is computed as
//
//	{(a, b) : M[a,pred] or a=pred, M[succ,b] or b=succ, not M[a,b]}
//
// and applied, with their coordinates appended to the staging buffer.
func (m *Map) Stage(pred, succ int) (bool, error) {
	if pred < 0 || pred >= len(m.rows) || succ < 0 || succ >= len(m.rows) {
		return false, fmt.Errorf("reach: Stage(%d, %d): id out of range", pred, succ)
	}
	if pred == succ {
		return false, nil
	}
	if m.reaches(succ, pred) {
		return false, nil
	}

	var delta []cell
	for a := 0; a < len(m.rows); a++ {
		if !(m.reaches(a, pred) || a == pred) {
			continue
		}
		for b := 0; b < len(m.rows); b++ {
			if !(m.reaches(succ, b) || b == succ) {
				continue
			}
			if !m.rows[a][b] {
				m.rows[a][b] = true
				delta = append(delta, cell{a, b})
			}
		}
	}

	m.staging = append(m.staging, delta...)
	return true, nil
}

// reaches reports whether b is reachable from a, including the trivial
// case a == b which this matrix does not store explicitly.
func (m *Map) reaches(a, b int) bool {
	if a == b {
		return true
	}
	return m.rows[a][b]
}

// Reaches reports whether b is transitively reachable from a (or a == b).
func (m *Map) Reaches(a, b int) bool {
	return m.reaches(a, b)
}

// Commit moves the current staging buffer into the history stack, so a
// later Rollback can undo exactly this batch of edges. An empty staging
// buffer is committed as an empty batch.
func (m *Map) Commit() {
	if m.staging == nil {
		m.history = append(m.history, nil)
		return
	}
	batch := m.staging
	m.staging = nil
	m.history = append(m.history, batch)
}

// Reset clears the staging buffer, undoing its cells without touching
// history.
func (m *Map) Reset() {
	for _, c := range m.staging {
		m.rows[c.row][c.col] = false
	}
	m.staging = nil
}

// Rollback pops the most recently committed batch and clears its cells.
// It panics if called with a non-empty staging buffer or an empty history,
// both of which indicate a caller bug.
func (m *Map) Rollback() {
	if len(m.staging) != 0 {
		panic("reach: Rollback called with a non-empty staging buffer")
	}
	if len(m.history) == 0 {
		panic("reach: Rollback called with empty history")
	}
	last := len(m.history) - 1
	batch := m.history[last]
	m.history = m.history[:last]
	for _, c := range batch {
		m.rows[c.row][c.col] = false
	}
}

// Len returns the current number of allocated IDs.
func (m *Map) Len() int {
	return len(m.rows)
}

// Edges returns every committed precedence pair (pred, succ) currently held
// in the matrix. Used to snapshot one plan branch's constraint set before
// backtracking mutates the map further; the pairs include transitively
// implied ones, not just directly staged edges.
func (m *Map) Edges() [][2]int {
	var out [][2]int
	for a := range m.rows {
		for b := range m.rows[a] {
			if m.rows[a][b] {
				out = append(out, [2]int{a, b})
			}
		}
	}
	return out
}
