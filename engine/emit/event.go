// Package emit provides event emission and observability for the planner
// and scheduler.
package emit

// Event is one observability point raised during construction or
// execution of a plan.
//
// Expected Msg values: construct_start, option_tried, step_committed,
// backtrack, plan_found, schedule_start, worker_invoked,
// register_released, plan_complete.
type Event struct {
	// PlanID identifies the Construct call (or, once assembled, the Plan
	// invocation) that raised this event.
	PlanID string

	// Step is the step this event concerns: the instruction index for
	// execution events, the planner's step ID for step_committed. Zero for
	// plan-level events (construct_start, plan_complete).
	Step int

	// NodeKey identifies which (node, mode) this event concerns. Empty
	// for plan-level events.
	NodeKey string

	// Msg is the event kind.
	Msg string

	// Meta carries event-specific structured data, e.g. {"targets": [...]}
	// for construct_start, {"register": 2} for register_released.
	Meta map[string]any
}
