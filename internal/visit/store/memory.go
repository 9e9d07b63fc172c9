// Package store provides visit log persistence. Visit logs are append-only:
// no store exposes an update operation, so submitted history cannot be
// mutated in place.
package store

import (
	"context"
	"sort"
	"sync"

	"patrol/internal/visit/models"
	id "patrol/pkg/domain"
	"patrol/pkg/platform/sentinel"
)

// Memory is an in-memory visit store for tests and local runs.
type Memory struct {
	mu     sync.RWMutex
	visits map[id.VisitID]*models.VisitLog
}

// NewMemory creates an empty in-memory visit store.
func NewMemory() *Memory {
	return &Memory{visits: make(map[id.VisitID]*models.VisitLog)}
}

// Create appends a visit log.
func (s *Memory) Create(_ context.Context, v *models.VisitLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.visits[v.ID]; exists {
		return sentinel.ErrConflict
	}
	s.visits[v.ID] = v.Clone()
	return nil
}

// Get fetches one visit log.
func (s *Memory) Get(_ context.Context, visitID id.VisitID) (*models.VisitLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.visits[visitID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return v.Clone(), nil
}

// ListByStore returns the visit logs for one store, newest visit first.
func (s *Memory) ListByStore(_ context.Context, storeID id.StoreID) ([]*models.VisitLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.VisitLog
	for _, v := range s.visits {
		if v.StoreID == storeID {
			out = append(out, v.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].VisitDate.Equal(out[j].VisitDate) {
			return out[i].VisitDate.After(out[j].VisitDate)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}
