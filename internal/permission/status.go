package permission

import (
	"sync"

	"github.com/gatelet-dev/gatelet/internal/events"
)

// EventTypeChange is the event type dispatched after a tracked state
// transition.
const EventTypeChange = "change"

// StateChange is the payload of a change event. The status is already
// mutated when listeners run, so Current always agrees with a
// concurrent State() read.
type StateChange struct {
	Previous State
	Current  State
}

// ChangeEvent is the event delivered to status listeners.
type ChangeEvent = events.Event[StateChange]

// ChangeListener observes status change events.
type ChangeListener = events.Listener[StateChange]

// Status is the live view of one tracked capability. Statuses are
// created by a Tracker and only by a Tracker; for a given capability
// the Tracker hands out the same Status pointer every time, so holding
// one is holding the capability's current state.
type Status struct {
	owner *Tracker
	key   Key

	mu    sync.RWMutex
	state State

	emitter events.Emitter[StateChange]
}

func newStatus(owner *Tracker, key Key, state State) *Status {
	return &Status{owner: owner, key: key, state: state}
}

// State returns the current state. Safe to call from change listeners.
func (s *Status) State() State {
	s.ensureTracked()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Name returns the capability kind this status tracks.
func (s *Status) Name() Name {
	s.ensureTracked()
	return s.key.Name
}

// Qualifier returns the capability qualifier, empty for kind-wide
// capabilities.
func (s *Status) Qualifier() string {
	s.ensureTracked()
	return s.key.Qualifier
}

// Key returns the capability identity this status tracks.
func (s *Status) Key() Key {
	s.ensureTracked()
	return s.key
}

// AddListener registers a change listener. Listeners run synchronously
// inside the tracker's critical section, in registration order, and
// must not call back into the Tracker or a facade built on it.
func (s *Status) AddListener(l ChangeListener) {
	s.ensureTracked()
	s.emitter.AddListener(l)
}

// SetOnChange assigns the single on-change handler slot, replacing any
// previous handler. Passing nil clears the slot. The handler runs
// after all registered listeners.
func (s *Status) SetOnChange(l ChangeListener) {
	s.ensureTracked()
	s.emitter.SetHandler(l)
}

// String renders the tracked capability and its state.
func (s *Status) String() string {
	return s.Key().String() + " " + string(s.State())
}

// swapState stores next and returns the previous state. Called by the
// owning tracker with its lock held.
func (s *Status) swapState(next State) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.state
	s.state = next
	return prev
}

// ensureTracked guards against direct struct construction. Statuses
// built outside a Tracker indicate a programming error and are fatal.
func (s *Status) ensureTracked() {
	if s.owner == nil {
		panic("permission: Status must be obtained from a Tracker")
	}
}
