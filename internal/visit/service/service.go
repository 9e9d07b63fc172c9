// Package service records store visits: it validates the submitted answers
// against the referenced template version, evaluates each answer, aggregates
// the compliance score, and persists the resulting visit log.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"patrol/internal/compliance"
	tmplmodels "patrol/internal/template/models"
	visitmetrics "patrol/internal/visit/metrics"
	"patrol/internal/visit/models"
	dErrors "patrol/pkg/domain-errors"
	id "patrol/pkg/domain"
	audit "patrol/pkg/platform/audit"
	"patrol/pkg/platform/sentinel"
	"patrol/pkg/requestcontext"
)

// Store is the persistence port for visit logs. No update operation exists;
// recorded visits are immutable.
type Store interface {
	Create(ctx context.Context, v *models.VisitLog) error
	Get(ctx context.Context, visitID id.VisitID) (*models.VisitLog, error)
	ListByStore(ctx context.Context, storeID id.StoreID) ([]*models.VisitLog, error)
}

// TemplateSource fetches the template version a visit references.
type TemplateSource interface {
	Get(ctx context.Context, templateID id.TemplateID) (*tmplmodels.FormTemplate, error)
}

// AuditPublisher receives visit events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service records and retrieves visit logs.
type Service struct {
	store     Store
	templates TemplateSource
	publisher AuditPublisher
	metrics   *visitmetrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
}

type serviceConfig struct {
	publisher AuditPublisher
	metrics   *visitmetrics.Metrics
	logger    *slog.Logger
}

// Option configures the Service.
type Option func(*serviceConfig)

// WithAuditPublisher installs an audit publisher for visit events.
func WithAuditPublisher(pub AuditPublisher) Option {
	return func(cfg *serviceConfig) { cfg.publisher = pub }
}

// WithMetrics installs the visit module metrics.
func WithMetrics(m *visitmetrics.Metrics) Option {
	return func(cfg *serviceConfig) { cfg.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *serviceConfig) { cfg.logger = logger }
}

// New creates a visit Service.
func New(store Store, templates TemplateSource, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("visit store is required")
	}
	if templates == nil {
		return nil, errors.New("template source is required")
	}
	cfg := &serviceConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Service{
		store:     store,
		templates: templates,
		publisher: cfg.publisher,
		metrics:   cfg.metrics,
		logger:    cfg.logger,
		tracer:    otel.Tracer("patrol/visit"),
	}, nil
}

// Record validates, evaluates, and persists one visit. Answer evaluation is
// independent per answer, so it fans out across goroutines; the aggregate is
// a weighted sum, so the result does not depend on completion order.
func (s *Service) Record(ctx context.Context, req models.RecordVisitRequest) (*models.VisitLog, error) {
	ctx, span := s.tracer.Start(ctx, "visit.Record")
	defer span.End()

	start := time.Now()

	storeID, err := id.ParseStoreID(req.StoreID)
	if err != nil {
		return nil, err
	}
	templateID, err := id.ParseTemplateID(req.TemplateID)
	if err != nil {
		return nil, err
	}
	status, err := models.ParseVisitStatus(req.Status)
	if err != nil {
		return nil, err
	}
	if len(req.Answers) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "a visit needs at least one answer")
	}

	var routeID *id.RouteID
	if req.RouteID != "" {
		parsed, err := id.ParseRouteID(req.RouteID)
		if err != nil {
			return nil, err
		}
		routeID = &parsed
	}
	var assigneeID *id.UserID
	if req.AssigneeID != "" {
		parsed, err := id.ParseUserID(req.AssigneeID)
		if err != nil {
			return nil, err
		}
		assigneeID = &parsed
	}

	// The template may be in any status: visits against archived versions stay
	// valid historical records. It just has to exist right now.
	template, err := s.templates.Get(ctx, templateID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.New(dErrors.CodeValidation, "referenced form template does not exist")
		}
		return nil, err
	}

	parsed, err := parseAnswers(template, req.Answers)
	if err != nil {
		return nil, err
	}

	answers, weighted, err := s.evaluateAll(ctx, template, parsed)
	if err != nil {
		return nil, err
	}
	score, summary := compliance.Aggregate(weighted)

	visitDate := requestcontext.Now(ctx)
	if req.VisitDate != nil {
		visitDate = *req.VisitDate
	}

	visit := &models.VisitLog{
		ID:              id.NewVisitID(),
		StoreID:         storeID,
		TemplateID:      templateID,
		RouteID:         routeID,
		AssigneeID:      assigneeID,
		Status:          status,
		VisitDate:       visitDate,
		ComplianceScore: score,
		Summary:         summary,
		Answers:         answers,
		CreatedAt:       requestcontext.Now(ctx),
		CreatedBy:       requestcontext.ActorID(ctx),
	}

	if err := s.store.Create(ctx, visit); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "visit already recorded")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "visit store failure")
	}

	if s.metrics != nil {
		s.metrics.ObserveRecord(start, score)
	}
	s.emitRecorded(ctx, visit)
	return visit, nil
}

// Get fetches one visit log.
func (s *Service) Get(ctx context.Context, visitID id.VisitID) (*models.VisitLog, error) {
	v, err := s.store.Get(ctx, visitID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "visit not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "visit store failure")
	}
	return v, nil
}

// ListByStore returns a store's visit history, newest first.
func (s *Service) ListByStore(ctx context.Context, storeID id.StoreID) ([]*models.VisitLog, error) {
	visits, err := s.store.ListByStore(ctx, storeID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "visit store failure")
	}
	return visits, nil
}

// parseAnswers validates the submitted answers against the template: every
// question id must exist in this template version, appear at most once, and
// carry a value of the right kind.
func parseAnswers(template *tmplmodels.FormTemplate, inputs []models.AnswerInput) ([]models.ParsedAnswer, error) {
	seen := make(map[id.QuestionID]struct{}, len(inputs))
	out := make([]models.ParsedAnswer, len(inputs))
	for i, input := range inputs {
		questionID, err := id.ParseQuestionID(input.QuestionID)
		if err != nil {
			return nil, err
		}
		question, ok := template.QuestionByID(questionID)
		if !ok {
			return nil, dErrors.Newf(dErrors.CodeValidation, "question %s is not part of this template", questionID)
		}
		if _, dup := seen[questionID]; dup {
			return nil, dErrors.Newf(dErrors.CodeValidation, "duplicate answer for question %s", questionID)
		}
		seen[questionID] = struct{}{}
		if !input.Value.MatchesType(question.Type) {
			return nil, dErrors.Newf(dErrors.CodeValidation, "answer value for question %s does not match its %s type", questionID, question.Type)
		}
		out[i] = models.ParsedAnswer{
			QuestionID:  questionID,
			Value:       input.Value,
			Attachments: input.Attachments,
		}
	}
	return out, nil
}

// evaluateAll evaluates every answer concurrently. The evaluator is pure, so
// each goroutine writes only its own slot.
func (s *Service) evaluateAll(ctx context.Context, template *tmplmodels.FormTemplate, parsed []models.ParsedAnswer) ([]models.Answer, []compliance.WeightedStatus, error) {
	answers := make([]models.Answer, len(parsed))
	weighted := make([]compliance.WeightedStatus, len(parsed))

	g, _ := errgroup.WithContext(ctx)
	for i, pa := range parsed {
		g.Go(func() error {
			question, _ := template.QuestionByID(pa.QuestionID)
			status := compliance.Evaluate(question, pa.Value, pa.Attachments)
			answers[i] = models.Answer{
				QuestionID:  pa.QuestionID,
				Value:       pa.Value,
				Attachments: pa.Attachments,
				Status:      status,
			}
			weighted[i] = compliance.WeightedStatus{Status: status, Weight: question.Config.Weight}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return answers, weighted, nil
}

func (s *Service) emitRecorded(ctx context.Context, visit *models.VisitLog) {
	if s.publisher == nil {
		return
	}
	event := audit.Event{
		Timestamp: requestcontext.Now(ctx),
		Action:    audit.ActionVisitRecorded,
		Subject:   visit.ID.String(),
		StoreID:   visit.StoreID.String(),
		ActorID:   requestcontext.ActorID(ctx),
		RequestID: requestcontext.RequestID(ctx),
	}
	if err := s.publisher.Emit(ctx, event); err != nil {
		s.logger.Warn("audit emit failed", "action", event.Action, "subject", event.Subject, "error", err)
	}
}
