package lifecycle

import "sync"

// ActivityKind classifies a user interaction that keeps a session alive.
type ActivityKind string

const (
	ActivityPointer ActivityKind = "pointer"
	ActivityKey     ActivityKind = "key"
	ActivityScroll  ActivityKind = "scroll"
	ActivityTouch   ActivityKind = "touch"
)

// DefaultTrackedActivity lists the kinds that reset the inactivity timer.
var DefaultTrackedActivity = []ActivityKind{ActivityPointer, ActivityKey, ActivityScroll, ActivityTouch}

// ActivitySource delivers user activity to a handler until detached.
type ActivitySource interface {
	Attach(handler func(ActivityKind)) (detach func())
}

// ManualSource is an ActivitySource fed by explicit Emit calls, e.g. from an
// HTTP middleware or a UI bridge.
type ManualSource struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]func(ActivityKind)
}

// NewManualSource creates a source with no handlers.
func NewManualSource() *ManualSource {
	return &ManualSource{handlers: make(map[int]func(ActivityKind))}
}

func (s *ManualSource) Attach(handler func(ActivityKind)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.handlers[id] = handler
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.handlers, id)
		s.mu.Unlock()
	}
}

// Emit delivers kind to every attached handler.
func (s *ManualSource) Emit(kind ActivityKind) {
	s.mu.Lock()
	handlers := make([]func(ActivityKind), 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h(kind)
	}
}

// Attached returns the number of attached handlers.
func (s *ManualSource) Attached() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}
