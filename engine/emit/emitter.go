package emit

import "context"

// Emitter receives observability events raised during planning and plan
// execution. Implementations must not block the caller for long and must
// not panic; a misbehaving emitter should never break a plan.
type Emitter interface {
	// Emit sends a single event.
	Emit(event Event)

	// EmitBatch sends multiple events at once. Returns an error only for
	// catastrophic, non-per-event failures.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush blocks until any buffered events have been delivered.
	Flush(ctx context.Context) error
}
