package favorites

import (
	"context"
	"sync"

	"github.com/example/streambox/services/catalog/internal/media"
)

// InMemoryStore is a Store for development and tests.
type InMemoryStore struct {
	mu    sync.RWMutex
	lists map[string][]media.Media
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{lists: make(map[string][]media.Media)}
}

func (s *InMemoryStore) List(_ context.Context, clientID string) ([]media.Media, error) {
	if clientID == "" {
		return nil, ErrClientRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.lists[clientID]
	out := make([]media.Media, 0, len(list))
	for _, m := range list {
		out = append(out, m.Clone())
	}
	return out, nil
}

func (s *InMemoryStore) Add(_ context.Context, clientID string, m media.Media) (bool, error) {
	if clientID == "" {
		return false, ErrClientRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.lists[clientID] {
		if existing.SameTitle(m) {
			return false, nil
		}
	}
	s.lists[clientID] = append(s.lists[clientID], m.Clone())
	return true, nil
}

func (s *InMemoryStore) Remove(_ context.Context, clientID string, tmdbID int64, kind media.Kind) error {
	if clientID == "" {
		return ErrClientRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.lists[clientID]
	kept := make([]media.Media, 0, len(list))
	for _, m := range list {
		if m.TMDBID == tmdbID && m.Type == kind {
			continue
		}
		kept = append(kept, m)
	}
	s.lists[clientID] = kept
	return nil
}

func (s *InMemoryStore) Contains(_ context.Context, clientID string, tmdbID int64, kind media.Kind) (bool, error) {
	if clientID == "" {
		return false, ErrClientRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.lists[clientID] {
		if m.TMDBID == tmdbID && m.Type == kind {
			return true, nil
		}
	}
	return false, nil
}
