package store

import (
	"context"
	"sync"
	"time"

	"github.com/example/streambox/services/catalog/internal/media"
)

// InMemoryMediaStore keeps records for the lifetime of the process.
// Ids start at 1 and are not stable across restarts.
type InMemoryMediaStore struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]media.Media
	now    func() time.Time
}

func NewInMemoryMediaStore() *InMemoryMediaStore {
	return &InMemoryMediaStore{
		nextID: 1,
		byID:   make(map[int64]media.Media),
		now:    time.Now,
	}
}

func (s *InMemoryMediaStore) Insert(_ context.Context, m media.Media) (media.Media, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m = m.Clone()
	m.ID = s.nextID
	s.nextID++
	if m.LastUpdated.IsZero() {
		m.LastUpdated = s.now().UTC()
	}
	s.byID[m.ID] = m
	return m.Clone(), nil
}

func (s *InMemoryMediaStore) Get(_ context.Context, id int64) (media.Media, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.byID[id]
	if !ok {
		return media.Media{}, ErrNotFound
	}
	return m.Clone(), nil
}

func (s *InMemoryMediaStore) FindByExternal(_ context.Context, tmdbID int64, kind media.Kind) (media.Media, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found media.Media
	ok := false
	for id, m := range s.byID {
		if m.TMDBID != tmdbID || m.Type != kind {
			continue
		}
		if !ok || id < found.ID {
			found, ok = m, true
		}
	}
	if !ok {
		return media.Media{}, ErrNotFound
	}
	return found.Clone(), nil
}

// Len reports the number of stored records.
func (s *InMemoryMediaStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
