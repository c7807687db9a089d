package memlocation

import (
	"context"
	"sync"

	"github.com/serviapp/marketplace/internal/domain"
)

// Store keeps the last coordinates reported per professional. The location
// collaborator pushes into it; the distance guard reads from it.
type Store struct {
	mu   sync.RWMutex
	last map[string]domain.LatLng
}

func New() *Store {
	return &Store{last: make(map[string]domain.LatLng)}
}

func (s *Store) Record(ctx context.Context, professionalID string, loc domain.LatLng) error {
	s.mu.Lock()
	s.last[professionalID] = loc
	s.mu.Unlock()
	return nil
}

func (s *Store) LastKnown(ctx context.Context, professionalID string) (domain.LatLng, bool, error) {
	s.mu.RLock()
	loc, ok := s.last[professionalID]
	s.mu.RUnlock()
	return loc, ok, nil
}
