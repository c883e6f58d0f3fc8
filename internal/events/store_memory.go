package events

import (
	"context"
	"sync"
)

// InMemory keeps events in insertion order. It backs tests and local runs;
// postgres is the production store.
type InMemory struct {
	mu        sync.RWMutex
	events    []Event
	seen      map[string]struct{}
	published map[string]struct{}
}

func NewInMemory() *InMemory {
	return &InMemory{
		seen:      make(map[string]struct{}),
		published: make(map[string]struct{}),
	}
}

// Append stores the event once per ID; duplicate IDs are silently dropped.
func (s *InMemory) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.seen[event.ID]; dup {
		return nil
	}
	s.seen[event.ID] = struct{}{}
	s.events = append(s.events, event)
	return nil
}

func (s *InMemory) ListByToken(_ context.Context, token string, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for i := len(s.events) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.events[i].Token == token {
			out = append(out, s.events[i])
		}
	}
	return out, nil
}

func (s *InMemory) NextUnpublished(_ context.Context, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if _, done := s.published[e.ID]; done {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemory) MarkPublished(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.published[id] = struct{}{}
	}
	return nil
}
