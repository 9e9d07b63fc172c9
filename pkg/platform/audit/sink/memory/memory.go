package memory

import (
	"sync"

	audit "patrol/pkg/platform/audit"
)

// Sink keeps events in memory. Used in tests and when no broker is configured.
type Sink struct {
	mu     sync.RWMutex
	events []audit.Event
}

func New() *Sink {
	return &Sink{}
}

func (s *Sink) Append(event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of everything appended so far.
func (s *Sink) Events() []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Event, len(s.events))
	copy(out, s.events)
	return out
}

// ByAction filters recorded events, useful in assertions.
func (s *Sink) ByAction(action audit.Action) []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

func (s *Sink) Close() error {
	return nil
}
