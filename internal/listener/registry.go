package listener

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/callpilot/console-realtime/internal/events"
)

// Wildcard registers a listener for every event type. Wildcard listeners run
// only when no listener is registered for the dispatched type.
const Wildcard = "*"

// Listener receives the payload of one dispatched envelope.
type Listener func(data json.RawMessage)

// Handle identifies a registration. Go funcs are not comparable, so Off takes
// the handle returned by On instead of the callback itself.
type Handle struct {
	id uuid.UUID
}

// String returns the handle id.
func (h Handle) String() string {
	return h.id.String()
}

// IsZero reports whether h was never returned by On.
func (h Handle) IsZero() bool {
	return h.id == uuid.Nil
}

type entry struct {
	handle Handle
	fn     Listener
}

// Registry maps event types to ordered listener lists.
type Registry struct {
	logger *slog.Logger

	mu        sync.Mutex
	listeners map[string][]entry
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		logger:    logger,
		listeners: make(map[string][]entry),
	}
}

// On registers fn under eventType and returns its handle. A nil fn is ignored
// and yields the zero handle.
func (r *Registry) On(eventType string, fn Listener) Handle {
	if fn == nil {
		return Handle{}
	}

	h := Handle{id: uuid.New()}

	r.mu.Lock()
	r.listeners[eventType] = append(r.listeners[eventType], entry{handle: h, fn: fn})
	r.mu.Unlock()

	return h
}

// Off removes the registration h under eventType. Unknown handles are ignored.
func (r *Registry) Off(eventType string, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.listeners[eventType]
	for i, e := range list {
		if e.handle != h {
			continue
		}

		// Build a new slice so snapshots taken by in-flight dispatches stay intact.
		next := make([]entry, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)

		if len(next) == 0 {
			delete(r.listeners, eventType)
		} else {
			r.listeners[eventType] = next
		}
		return
	}
}

// Clear removes every registration.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.listeners = make(map[string][]entry)
	r.mu.Unlock()
}

// Len returns the total number of registrations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, list := range r.listeners {
		n += len(list)
	}
	return n
}

// Dispatch delivers env.Data to the listeners for env.Type, falling back to the
// wildcard listeners when none exist. It returns the number of listeners that
// completed without panicking.
func (r *Registry) Dispatch(env events.Envelope) int {
	targets := r.snapshot(env.Type)
	if len(targets) == 0 {
		return 0
	}

	delivered := 0
	for _, e := range targets {
		if r.invoke(env, e) {
			delivered++
		}
	}
	return delivered
}

// snapshot copies the listener list for eventType (or the wildcard list).
func (r *Registry) snapshot(eventType string) []entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.listeners[eventType]
	if len(list) == 0 {
		list = r.listeners[Wildcard]
	}
	if len(list) == 0 {
		return nil
	}

	out := make([]entry, len(list))
	copy(out, list)
	return out
}

// invoke runs one listener, recovering and logging a panic.
func (r *Registry) invoke(env events.Envelope, e entry) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("listener panicked",
				"event_type", env.Type,
				"listener", e.handle.String(),
				"error", fmt.Sprint(rec),
			)
			ok = false
		}
	}()

	e.fn(env.Data)
	return true
}
