package memory

import (
	"context"
	"sync"

	audit "covera/pkg/platform/audit"
)

// Store keeps audit events in memory. Intended for tests and single-process
// deployments without a Kafka pipeline.
type Store struct {
	mu     sync.RWMutex
	events []audit.Event
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// ListRecent returns up to limit events, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.events)
	if limit > n {
		limit = n
	}
	out := make([]audit.Event, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}
