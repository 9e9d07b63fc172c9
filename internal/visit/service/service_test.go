package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"patrol/internal/compliance"
	templateservice "patrol/internal/template/service"
	templatestore "patrol/internal/template/store"
	tmplmodels "patrol/internal/template/models"
	"patrol/internal/visit/models"
	visitstore "patrol/internal/visit/store"
	dErrors "patrol/pkg/domain-errors"
	id "patrol/pkg/domain"
	audit "patrol/pkg/platform/audit"
	auditpublisher "patrol/pkg/platform/audit/publisher"
	memorysink "patrol/pkg/platform/audit/sink/memory"
)

type VisitServiceSuite struct {
	suite.Suite
	templates *templateservice.Service
	service   *Service
	sink      *memorysink.Sink
	ctx       context.Context

	template *tmplmodels.FormTemplate
	storeID  id.StoreID
}

func (s *VisitServiceSuite) SetupTest() {
	var err error
	s.templates, err = templateservice.New(templatestore.NewMemory())
	s.Require().NoError(err)

	s.sink = memorysink.New()
	s.service, err = New(visitstore.NewMemory(), s.templates,
		WithAuditPublisher(auditpublisher.New(s.sink)),
	)
	s.Require().NoError(err)
	s.ctx = context.Background()
	s.storeID = id.StoreID(uuid.New())

	s.template, err = s.templates.Create(s.ctx, tmplmodels.CreateTemplateRequest{
		Name: "Store check",
		Questions: []tmplmodels.QuestionInput{
			{Type: string(tmplmodels.QuestionYesNo), Title: "Signage present", Required: true, Order: 1,
				Config: tmplmodels.ConfigInput{ExpectedBool: boolPtr(true)}},
			{Type: string(tmplmodels.QuestionNumber), Title: "Facings", Required: true, Order: 2,
				Config: tmplmodels.ConfigInput{Min: floatPtr(10), Max: floatPtr(20)}},
		},
	})
	s.Require().NoError(err)
}

func TestVisitServiceSuite(t *testing.T) {
	suite.Run(t, new(VisitServiceSuite))
}

func boolPtr(b bool) *bool { return &b }

func floatPtr(f float64) *float64 { return &f }

func (s *VisitServiceSuite) recordRequest(answers []models.AnswerInput) models.RecordVisitRequest {
	return models.RecordVisitRequest{
		StoreID:    s.storeID.String(),
		TemplateID: s.template.ID.String(),
		Status:     string(models.VisitSubmitted),
		Answers:    answers,
	}
}

func (s *VisitServiceSuite) TestRecord() {
	s.Run("evaluates, scores, and persists", func() {
		visit, err := s.service.Record(s.ctx, s.recordRequest([]models.AnswerInput{
			{QuestionID: s.template.Questions[0].ID.String(), Value: compliance.BoolValue(true)},
			{QuestionID: s.template.Questions[1].ID.String(), Value: compliance.NumberValue(5)},
		}))
		s.Require().NoError(err)

		s.Equal(50.00, visit.ComplianceScore)
		s.Equal(compliance.Summary{Compliant: 1, NonCompliant: 1}, visit.Summary)
		s.Len(visit.Answers, 2)
		s.Equal(compliance.StatusCompliant, visit.Answers[0].Status)
		s.Equal(compliance.StatusNonCompliant, visit.Answers[1].Status)

		stored, err := s.service.Get(s.ctx, visit.ID)
		s.Require().NoError(err)
		s.Equal(visit.ComplianceScore, stored.ComplianceScore)
		s.Len(s.sink.ByAction(audit.ActionVisitRecorded), 1)
	})

	s.Run("a subset of answered questions does not penalize the score", func() {
		visit, err := s.service.Record(s.ctx, s.recordRequest([]models.AnswerInput{
			{QuestionID: s.template.Questions[0].ID.String(), Value: compliance.BoolValue(true)},
		}))
		s.Require().NoError(err)
		s.Equal(100.00, visit.ComplianceScore)
	})

	s.Run("rejects empty answer sets", func() {
		_, err := s.service.Record(s.ctx, s.recordRequest(nil))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects unknown question ids", func() {
		_, err := s.service.Record(s.ctx, s.recordRequest([]models.AnswerInput{
			{QuestionID: id.NewQuestionID().String(), Value: compliance.BoolValue(true)},
		}))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects duplicate question ids", func() {
		qid := s.template.Questions[0].ID.String()
		_, err := s.service.Record(s.ctx, s.recordRequest([]models.AnswerInput{
			{QuestionID: qid, Value: compliance.BoolValue(true)},
			{QuestionID: qid, Value: compliance.BoolValue(false)},
		}))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects value kinds that do not match the question type", func() {
		_, err := s.service.Record(s.ctx, s.recordRequest([]models.AnswerInput{
			{QuestionID: s.template.Questions[1].ID.String(), Value: compliance.StringValue("twelve")},
		}))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects references to missing templates", func() {
		req := s.recordRequest([]models.AnswerInput{
			{QuestionID: s.template.Questions[0].ID.String(), Value: compliance.BoolValue(true)},
		})
		req.TemplateID = id.NewTemplateID().String()
		_, err := s.service.Record(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects unknown visit status", func() {
		req := s.recordRequest([]models.AnswerInput{
			{QuestionID: s.template.Questions[0].ID.String(), Value: compliance.BoolValue(true)},
		})
		req.Status = "finished"
		_, err := s.service.Record(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("accepts templates in any lifecycle status", func() {
		_, err := s.templates.Publish(s.ctx, s.template.ID, nil)
		s.Require().NoError(err)
		_, err = s.templates.Archive(s.ctx, s.template.ID)
		s.Require().NoError(err)

		visit, err := s.service.Record(s.ctx, s.recordRequest([]models.AnswerInput{
			{QuestionID: s.template.Questions[0].ID.String(), Value: compliance.BoolValue(true)},
		}))
		s.Require().NoError(err)
		s.Equal(s.template.ID, visit.TemplateID)
	})

	s.Run("uses the supplied visit date", func() {
		visited := time.Date(2026, 8, 12, 9, 30, 0, 0, time.UTC)
		req := s.recordRequest([]models.AnswerInput{
			{QuestionID: s.template.Questions[0].ID.String(), Value: compliance.BoolValue(true)},
		})
		req.VisitDate = &visited
		visit, err := s.service.Record(s.ctx, req)
		s.Require().NoError(err)
		s.True(visit.VisitDate.Equal(visited))
	})
}

func (s *VisitServiceSuite) TestQueries() {
	s.Run("get unknown visit is not found", func() {
		_, err := s.service.Get(s.ctx, id.NewVisitID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("lists a store's visits newest first", func() {
		early := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
		late := time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC)
		for _, visited := range []time.Time{early, late} {
			req := s.recordRequest([]models.AnswerInput{
				{QuestionID: s.template.Questions[0].ID.String(), Value: compliance.BoolValue(true)},
			})
			req.VisitDate = &visited
			_, err := s.service.Record(s.ctx, req)
			s.Require().NoError(err)
		}

		visits, err := s.service.ListByStore(s.ctx, s.storeID)
		s.Require().NoError(err)
		s.Require().Len(visits, 2)
		s.True(visits[0].VisitDate.After(visits[1].VisitDate))

		other, err := s.service.ListByStore(s.ctx, id.StoreID(uuid.New()))
		s.Require().NoError(err)
		s.Empty(other)
	})
}
