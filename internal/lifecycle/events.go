package lifecycle

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType tags an emitted lifecycle event.
type EventType string

const (
	EventLoginSuccess       EventType = "login_success"
	EventLogout             EventType = "logout"
	EventSessionWarning     EventType = "session_warning"
	EventSessionExpired     EventType = "session_expired"
	EventSessionExtended    EventType = "session_extended"
	EventSessionRefreshed   EventType = "session_refreshed"
	EventTokenRefreshNeeded EventType = "token_refresh_needed"
)

// Event is delivered to subscribers. Fields not relevant to Type are zero.
type Event struct {
	Type         EventType
	Timestamp    time.Time
	Message      string
	NewExpiresAt time.Time
	ExpiresAt    time.Time
}

// Listener receives events. It runs on the goroutine that triggered the
// event and must not block for long.
type Listener func(Event)

type subscription struct {
	id uint64
	fn Listener
}

// Registry is an observer list. A panicking listener is recovered and logged
// and does not prevent delivery to the others.
type Registry struct {
	mu      sync.RWMutex
	nextID  uint64
	subs    []subscription
	logger  zerolog.Logger
	onPanic func(EventType, any)
}

// NewRegistry creates an empty registry. onPanic, if non-nil, is called after
// a listener panic has been recovered.
func NewRegistry(logger zerolog.Logger, onPanic func(EventType, any)) *Registry {
	return &Registry{logger: logger, onPanic: onPanic}
}

// Subscribe adds l and returns a function that removes it. Calling the
// returned function more than once is a no-op.
func (r *Registry) Subscribe(l Listener) (unsubscribe func()) {
	if l == nil {
		return func() {}
	}
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.subs = append(r.subs, subscription{id: id, fn: l})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(id) })
	}
}

func (r *Registry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.subs {
		if s.id == id {
			r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
			return
		}
	}
}

// Len returns the number of subscribers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Publish delivers e to a snapshot of the current subscribers in
// subscription order.
func (r *Registry) Publish(e Event) {
	r.mu.RLock()
	subs := make([]subscription, len(r.subs))
	copy(subs, r.subs)
	r.mu.RUnlock()

	for _, s := range subs {
		r.deliver(s.fn, e)
	}
}

func (r *Registry) deliver(fn Listener, e Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Str("event", string(e.Type)).
				Interface("panic", rec).
				Msg("session listener panicked")
			if r.onPanic != nil {
				r.onPanic(e.Type, rec)
			}
		}
	}()
	fn(e)
}
