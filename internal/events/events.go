// Package events provides a small synchronous event target with typed
// payloads. Listeners are dispatched in registration order; a single
// assignable handler slot runs last and is the only participant that
// can cancel a cancelable event.
package events

import (
	"log/slog"
	"sync"
)

// Event carries a typed payload to listeners.
type Event[T any] struct {
	// Type names the event (e.g. "change").
	Type string
	// Cancelable marks whether the handler may prevent the event.
	Cancelable bool
	// Data is the event payload.
	Data T

	prevented bool
}

// PreventDefault marks the event prevented. It has no effect on
// non-cancelable events.
func (e *Event[T]) PreventDefault() {
	if e.Cancelable {
		e.prevented = true
	}
}

// DefaultPrevented reports whether the event was prevented.
func (e *Event[T]) DefaultPrevented() bool {
	return e.prevented
}

// Listener receives dispatched events.
type Listener[T any] func(*Event[T])

// Emitter dispatches events to registered listeners and an assignable
// handler slot. The zero value is ready to use. Registration and
// dispatch are safe for concurrent use; dispatch snapshots the
// listener list first, so listeners may register further listeners
// without deadlocking.
type Emitter[T any] struct {
	mu        sync.Mutex
	listeners []Listener[T]
	handler   Listener[T]
}

// AddListener registers a listener. Listeners run in registration
// order. A nil listener is ignored.
func (em *Emitter[T]) AddListener(l Listener[T]) {
	if l == nil {
		return
	}
	em.mu.Lock()
	defer em.mu.Unlock()
	em.listeners = append(em.listeners, l)
}

// SetHandler assigns the handler slot. Passing nil clears it.
func (em *Emitter[T]) SetHandler(l Listener[T]) {
	em.mu.Lock()
	defer em.mu.Unlock()
	em.handler = l
}

// Dispatch delivers ev to every registered listener in registration
// order, then to the handler slot. Only the handler can prevent a
// cancelable event; the event reads as non-cancelable while the
// registered listeners run. A panicking listener is recovered and
// logged, and delivery continues with the rest. Dispatch reports
// whether the event was not prevented.
func (em *Emitter[T]) Dispatch(ev *Event[T]) bool {
	em.mu.Lock()
	listeners := make([]Listener[T], len(em.listeners))
	copy(listeners, em.listeners)
	handler := em.handler
	em.mu.Unlock()

	cancelable := ev.Cancelable
	ev.Cancelable = false
	for _, l := range listeners {
		invoke(l, ev)
	}
	ev.Cancelable = cancelable

	if handler != nil {
		invoke(handler, ev)
	}

	return !ev.prevented
}

// invoke runs a single listener, recovering panics so one broken
// listener cannot sever delivery for the rest.
func invoke[T any](l Listener[T], ev *Event[T]) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event listener panicked", "type", ev.Type, "panic", r)
		}
	}()
	l(ev)
}
