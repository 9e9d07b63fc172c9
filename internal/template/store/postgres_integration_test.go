//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"patrol/internal/template/models"
	"patrol/internal/template/store"
	id "patrol/pkg/domain"
	"patrol/pkg/platform/sentinel"
	"patrol/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "form_templates"))
}

func (s *PostgresStoreSuite) newDraft(lineage id.LineageID, version int) *models.FormTemplate {
	templateID := id.NewTemplateID()
	if lineage.IsNil() {
		lineage = id.LineageID(templateID)
	}
	tmpl, err := models.NewFormTemplate(templateID, lineage, version,
		"Store check", "", models.AllStores(),
		[]models.Question{{
			ID:     id.NewQuestionID(),
			Type:   models.QuestionNumber,
			Title:  "Facings",
			Order:  1,
			Config: models.Config{Weight: 1},
		}},
		time.Now().UTC().Truncate(time.Microsecond), "tester")
	s.Require().NoError(err)
	return tmpl
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	tmpl := s.newDraft(id.LineageID{}, 1)
	s.Require().NoError(s.store.Create(ctx, tmpl))

	found, err := s.store.Get(ctx, tmpl.ID)
	s.Require().NoError(err)
	s.Equal(tmpl.Name, found.Name)
	s.Equal(tmpl.Scope.Kind, found.Scope.Kind)
	s.Require().Len(found.Questions, 1)
	s.Equal(tmpl.Questions[0].ID, found.Questions[0].ID)
}

func (s *PostgresStoreSuite) TestLineageVersionUniqueness() {
	ctx := context.Background()
	first := s.newDraft(id.LineageID{}, 1)
	s.Require().NoError(s.store.Create(ctx, first))

	dup := s.newDraft(first.LineageID, 1)
	s.Require().ErrorIs(s.store.Create(ctx, dup), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestPublishExclusiveArchivesSibling() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	v1 := s.newDraft(id.LineageID{}, 1)
	s.Require().NoError(s.store.Create(ctx, v1))
	_, archived, err := s.store.PublishExclusive(ctx, v1.ID, nil, now, "tester")
	s.Require().NoError(err)
	s.Nil(archived)

	v2 := s.newDraft(v1.LineageID, 2)
	s.Require().NoError(s.store.Create(ctx, v2))
	published, archived, err := s.store.PublishExclusive(ctx, v2.ID, nil, now, "tester")
	s.Require().NoError(err)
	s.Equal(models.StatusPublished, published.Status)
	s.Require().NotNil(archived)
	s.Equal(v1.ID, archived.ID)

	publishedList, err := s.store.ListPublished(ctx)
	s.Require().NoError(err)
	s.Require().Len(publishedList, 1)
	s.Equal(v2.ID, publishedList[0].ID)
}

// TestConcurrentPublish verifies that racing publishes of two drafts in one
// lineage end with exactly one published version.
func (s *PostgresStoreSuite) TestConcurrentPublish() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	// Repeat the race over fresh lineages; a loser that trips the
	// one-published partial index must surface as a conflict, never as a
	// raw driver error.
	for round := 0; round < 8; round++ {
		v1 := s.newDraft(id.LineageID{}, 1)
		s.Require().NoError(s.store.Create(ctx, v1))
		v2 := s.newDraft(v1.LineageID, 2)
		s.Require().NoError(s.store.Create(ctx, v2))

		var wg sync.WaitGroup
		var successCount atomic.Int32
		for _, target := range []id.TemplateID{v1.ID, v2.ID} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _, err := s.store.PublishExclusive(ctx, target, nil, now, "tester")
				if err == nil {
					successCount.Add(1)
				} else if !errors.Is(err, sentinel.ErrInvalidState) && !errors.Is(err, sentinel.ErrConflict) {
					s.T().Errorf("unexpected publish error: %v", err)
				}
			}()
		}
		wg.Wait()

		publishedList, err := s.store.ListPublished(ctx)
		s.Require().NoError(err)
		lineagePublished := 0
		for _, t := range publishedList {
			if t.LineageID == v1.LineageID {
				lineagePublished++
			}
		}
		s.LessOrEqual(lineagePublished, 1)
		s.GreaterOrEqual(int(successCount.Load()), 1)
	}
}

func (s *PostgresStoreSuite) TestUpdateDraftGuards() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	tmpl := s.newDraft(id.LineageID{}, 1)
	s.Require().NoError(s.store.Create(ctx, tmpl))

	tmpl.Name = "Renamed"
	s.Require().NoError(s.store.UpdateDraft(ctx, tmpl))

	_, _, err := s.store.PublishExclusive(ctx, tmpl.ID, nil, now, "tester")
	s.Require().NoError(err)

	tmpl.Name = "Too late"
	s.Require().ErrorIs(s.store.UpdateDraft(ctx, tmpl), sentinel.ErrImmutable)

	missing := s.newDraft(id.LineageID{}, 1)
	s.Require().ErrorIs(s.store.UpdateDraft(ctx, missing), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestArchiveGuards() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	tmpl := s.newDraft(id.LineageID{}, 1)
	s.Require().NoError(s.store.Create(ctx, tmpl))

	_, err := s.store.Archive(ctx, tmpl.ID, now, "tester")
	s.Require().ErrorIs(err, sentinel.ErrInvalidState)

	_, _, err = s.store.PublishExclusive(ctx, tmpl.ID, nil, now, "tester")
	s.Require().NoError(err)

	archived, err := s.store.Archive(ctx, tmpl.ID, now, "tester")
	s.Require().NoError(err)
	s.Equal(models.StatusArchived, archived.Status)

	_, err = s.store.Archive(ctx, id.NewTemplateID(), now, "tester")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestNextVersion() {
	ctx := context.Background()
	first := s.newDraft(id.LineageID{}, 1)
	s.Require().NoError(s.store.Create(ctx, first))

	next, err := s.store.NextVersion(ctx, first.LineageID)
	s.Require().NoError(err)
	s.Equal(2, next)
}
