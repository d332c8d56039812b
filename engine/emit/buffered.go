package emit

import (
	"context"
	"sync"
)

// BufferedEmitter stores every event in memory, grouped by PlanID, for
// tests and post-hoc inspection.
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event
}

// NewBufferedEmitter returns an empty BufferedEmitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{events: make(map[string][]Event)}
}

func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[event.PlanID] = append(b.events[event.PlanID], event)
}

func (b *BufferedEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, e := range events {
		b.Emit(e)
	}
	return nil
}

func (b *BufferedEmitter) Flush(context.Context) error { return nil }

// History returns a copy of every event recorded for planID, in emission
// order.
func (b *BufferedEmitter) History(planID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	events := b.events[planID]
	out := make([]Event, len(events))
	copy(out, events)
	return out
}

// Clear discards recorded events for planID, or every plan if planID is
// empty.
func (b *BufferedEmitter) Clear(planID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if planID == "" {
		b.events = make(map[string][]Event)
		return
	}
	delete(b.events, planID)
}
