package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"patrol/internal/template/models"
	id "patrol/pkg/domain"
	"patrol/pkg/platform/sentinel"
)

// Memory is the in-memory template store. It backs unit tests and local
// development; the lifecycle invariants are enforced under one mutex so the
// semantics match the transactional backends.
type Memory struct {
	mu        sync.RWMutex
	templates map[id.TemplateID]*models.FormTemplate
}

// NewMemory creates an empty in-memory template store.
func NewMemory() *Memory {
	return &Memory{templates: make(map[id.TemplateID]*models.FormTemplate)}
}

func (s *Memory) Create(_ context.Context, t *models.FormTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.templates[t.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, existing := range s.templates {
		if existing.LineageID == t.LineageID && existing.Version == t.Version {
			return sentinel.ErrConflict
		}
	}
	s.templates[t.ID] = t.Clone()
	return nil
}

func (s *Memory) Get(_ context.Context, templateID id.TemplateID) (*models.FormTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[templateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return t.Clone(), nil
}

func (s *Memory) List(_ context.Context) ([]*models.FormTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.FormTemplate, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t.Clone())
	}
	sortTemplates(out)
	return out, nil
}

func (s *Memory) ListPublished(_ context.Context) ([]*models.FormTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.FormTemplate
	for _, t := range s.templates {
		if t.Status == models.StatusPublished {
			out = append(out, t.Clone())
		}
	}
	sortTemplates(out)
	return out, nil
}

func (s *Memory) NextVersion(_ context.Context, lineageID id.LineageID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	maxVersion := 0
	for _, t := range s.templates {
		if t.LineageID == lineageID && t.Version > maxVersion {
			maxVersion = t.Version
		}
	}
	return maxVersion + 1, nil
}

// UpdateDraft replaces a template's mutable fields, guarding the draft-only
// rule under the store lock.
func (s *Memory) UpdateDraft(_ context.Context, t *models.FormTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.templates[t.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if existing.Status != models.StatusDraft {
		return sentinel.ErrImmutable
	}
	s.templates[t.ID] = t.Clone()
	return nil
}

func (s *Memory) Delete(_ context.Context, templateID id.TemplateID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[templateID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.templates, templateID)
	return nil
}

// PublishExclusive transitions a draft to published and, in the same critical
// section, archives any currently published version of the same lineage. This
// is the at-most-one-published-per-lineage invariant; two concurrent publishes
// for one lineage serialize on the mutex, and the loser fails the draft guard.
func (s *Memory) PublishExclusive(_ context.Context, templateID id.TemplateID, scope *models.Scope, now time.Time, actor string) (*models.FormTemplate, *models.FormTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft, ok := s.templates[templateID]
	if !ok {
		return nil, nil, sentinel.ErrNotFound
	}
	if draft.Status != models.StatusDraft {
		return nil, nil, sentinel.ErrInvalidState
	}

	var archived *models.FormTemplate
	for _, sibling := range s.templates {
		if sibling.LineageID == draft.LineageID && sibling.Status == models.StatusPublished {
			sibling.ApplyArchive(now, actor)
			archived = sibling.Clone()
			break
		}
	}

	draft.ApplyPublish(scope, now, actor)
	return draft.Clone(), archived, nil
}

// Archive transitions a published template to archived, guarding the status
// under the store lock.
func (s *Memory) Archive(_ context.Context, templateID id.TemplateID, now time.Time, actor string) (*models.FormTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.templates[templateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if t.Status != models.StatusPublished {
		return nil, sentinel.ErrInvalidState
	}
	t.ApplyArchive(now, actor)
	return t.Clone(), nil
}

func sortTemplates(templates []*models.FormTemplate) {
	sort.Slice(templates, func(i, j int) bool {
		if !templates[i].CreatedAt.Equal(templates[j].CreatedAt) {
			return templates[i].CreatedAt.Before(templates[j].CreatedAt)
		}
		return templates[i].ID.String() < templates[j].ID.String()
	})
}
