package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"patrol/internal/template/models"
	id "patrol/pkg/domain"
	"patrol/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *Memory
	ctx   context.Context
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewMemory()
	s.ctx = context.Background()
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) newDraft(lineage id.LineageID, version int) *models.FormTemplate {
	templateID := id.NewTemplateID()
	if lineage.IsNil() {
		lineage = id.LineageID(templateID)
	}
	tmpl, err := models.NewFormTemplate(templateID, lineage, version,
		"Store check", "", models.AllStores(),
		[]models.Question{{
			ID:     id.NewQuestionID(),
			Type:   models.QuestionYesNo,
			Title:  "Signage present",
			Order:  1,
			Config: models.Config{Weight: 1},
		}},
		time.Now(), "tester")
	s.Require().NoError(err)
	return tmpl
}

func (s *MemoryStoreSuite) TestCreateAndGet() {
	tmpl := s.newDraft(id.LineageID{}, 1)
	s.Require().NoError(s.store.Create(s.ctx, tmpl))

	found, err := s.store.Get(s.ctx, tmpl.ID)
	s.Require().NoError(err)
	s.Equal(tmpl.Name, found.Name)

	// The store hands out copies, not aliases.
	found.Name = "mutated"
	again, err := s.store.Get(s.ctx, tmpl.ID)
	s.Require().NoError(err)
	s.Equal("Store check", again.Name)
}

func (s *MemoryStoreSuite) TestGetUnknownReturnsNotFound() {
	_, err := s.store.Get(s.ctx, id.NewTemplateID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestCreateRejectsDuplicateLineageVersion() {
	first := s.newDraft(id.LineageID{}, 1)
	s.Require().NoError(s.store.Create(s.ctx, first))

	dup := s.newDraft(first.LineageID, 1)
	s.Require().ErrorIs(s.store.Create(s.ctx, dup), sentinel.ErrConflict)
}

func (s *MemoryStoreSuite) TestNextVersion() {
	first := s.newDraft(id.LineageID{}, 1)
	s.Require().NoError(s.store.Create(s.ctx, first))

	next, err := s.store.NextVersion(s.ctx, first.LineageID)
	s.Require().NoError(err)
	s.Equal(2, next)

	fresh, err := s.store.NextVersion(s.ctx, id.NewLineageID())
	s.Require().NoError(err)
	s.Equal(1, fresh)
}

func (s *MemoryStoreSuite) TestUpdateDraftGuards() {
	tmpl := s.newDraft(id.LineageID{}, 1)
	s.Require().NoError(s.store.Create(s.ctx, tmpl))

	tmpl.Name = "Renamed"
	s.Require().NoError(s.store.UpdateDraft(s.ctx, tmpl))

	_, _, err := s.store.PublishExclusive(s.ctx, tmpl.ID, nil, time.Now(), "tester")
	s.Require().NoError(err)

	tmpl.Name = "Too late"
	s.Require().ErrorIs(s.store.UpdateDraft(s.ctx, tmpl), sentinel.ErrImmutable)
}

func (s *MemoryStoreSuite) TestPublishExclusiveArchivesSibling() {
	v1 := s.newDraft(id.LineageID{}, 1)
	s.Require().NoError(s.store.Create(s.ctx, v1))
	published, archived, err := s.store.PublishExclusive(s.ctx, v1.ID, nil, time.Now(), "tester")
	s.Require().NoError(err)
	s.Equal(models.StatusPublished, published.Status)
	s.Nil(archived)

	v2 := s.newDraft(v1.LineageID, 2)
	s.Require().NoError(s.store.Create(s.ctx, v2))
	published2, archived2, err := s.store.PublishExclusive(s.ctx, v2.ID, nil, time.Now(), "tester")
	s.Require().NoError(err)
	s.Equal(models.StatusPublished, published2.Status)
	s.Require().NotNil(archived2)
	s.Equal(v1.ID, archived2.ID)
	s.Equal(models.StatusArchived, archived2.Status)

	// Never two published versions per lineage.
	publishedList, err := s.store.ListPublished(s.ctx)
	s.Require().NoError(err)
	s.Len(publishedList, 1)
	s.Equal(v2.ID, publishedList[0].ID)
}

func (s *MemoryStoreSuite) TestPublishExclusiveRequiresDraft() {
	tmpl := s.newDraft(id.LineageID{}, 1)
	s.Require().NoError(s.store.Create(s.ctx, tmpl))
	_, _, err := s.store.PublishExclusive(s.ctx, tmpl.ID, nil, time.Now(), "tester")
	s.Require().NoError(err)

	_, _, err = s.store.PublishExclusive(s.ctx, tmpl.ID, nil, time.Now(), "tester")
	s.Require().ErrorIs(err, sentinel.ErrInvalidState)

	_, _, err = s.store.PublishExclusive(s.ctx, id.NewTemplateID(), nil, time.Now(), "tester")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestArchiveGuards() {
	tmpl := s.newDraft(id.LineageID{}, 1)
	s.Require().NoError(s.store.Create(s.ctx, tmpl))

	_, err := s.store.Archive(s.ctx, tmpl.ID, time.Now(), "tester")
	s.Require().ErrorIs(err, sentinel.ErrInvalidState, "drafts cannot be archived directly")

	_, _, err = s.store.PublishExclusive(s.ctx, tmpl.ID, nil, time.Now(), "tester")
	s.Require().NoError(err)

	archived, err := s.store.Archive(s.ctx, tmpl.ID, time.Now(), "tester")
	s.Require().NoError(err)
	s.Equal(models.StatusArchived, archived.Status)
}

func (s *MemoryStoreSuite) TestDelete() {
	tmpl := s.newDraft(id.LineageID{}, 1)
	s.Require().NoError(s.store.Create(s.ctx, tmpl))
	s.Require().NoError(s.store.Delete(s.ctx, tmpl.ID))
	s.Require().ErrorIs(s.store.Delete(s.ctx, tmpl.ID), sentinel.ErrNotFound)
}
