package permission

import (
	"log/slog"
	"sync"
)

// Tracker is the status cache: it owns one Status per capability key
// and keeps each alive for the life of the process. There is no
// ambient global tracker; construct one and pass it by handle.
type Tracker struct {
	mu       sync.Mutex
	statuses map[Key]*Status
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		statuses: make(map[Key]*Status),
	}
}

// Resolve returns the tracked status for the capability d names,
// creating it on first use. When the tracked state differs from state
// the status is updated in place and exactly one change event is
// dispatched after the update; equal states dispatch nothing. The
// returned pointer is stable: every call for the same capability
// yields the same Status.
//
// Lookup, update and dispatch form one critical section per call, so
// concurrent updates of the same key can never interleave divergent
// notifications. Listeners therefore run under the tracker's lock and
// must not call back into it.
//
// Callers pass descriptors that are already validated and normalized;
// the facade guarantees this.
func (t *Tracker) Resolve(d Descriptor, state State) *Status {
	key := d.Key()

	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.statuses[key]
	if !ok {
		s = newStatus(t, key, state)
		t.statuses[key] = s
		slog.Debug("tracking capability", "capability", key.String(), "state", string(state))
		return s
	}

	if prev := s.swapState(state); prev != state {
		slog.Debug("capability state changed",
			"capability", key.String(),
			"previous", string(prev),
			"state", string(state),
		)
		s.emitter.Dispatch(&ChangeEvent{
			Type: EventTypeChange,
			Data: StateChange{Previous: prev, Current: state},
		})
	}

	return s
}

// Snapshot returns a copy of all tracked states, keyed by capability.
func (t *Tracker) Snapshot() map[Key]State {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[Key]State, len(t.statuses))
	for key, s := range t.statuses {
		out[key] = s.State()
	}
	return out
}

// Len returns the number of tracked capabilities.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.statuses)
}
