// Package service orchestrates the template lifecycle and active-template
// resolution. Stores own atomicity; this layer owns validation, ordering, and
// the translation of infrastructure facts into domain errors.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	tmplmetrics "patrol/internal/template/metrics"
	"patrol/internal/template/models"
	dErrors "patrol/pkg/domain-errors"
	id "patrol/pkg/domain"
	"patrol/pkg/platform/sentinel"
	"patrol/pkg/requestcontext"
)

// Store is the persistence port for templates. Implementations must make
// PublishExclusive atomic: the draft transition and the sibling's archive
// either both happen or neither does.
type Store interface {
	Create(ctx context.Context, t *models.FormTemplate) error
	Get(ctx context.Context, templateID id.TemplateID) (*models.FormTemplate, error)
	List(ctx context.Context) ([]*models.FormTemplate, error)
	ListPublished(ctx context.Context) ([]*models.FormTemplate, error)
	NextVersion(ctx context.Context, lineageID id.LineageID) (int, error)
	UpdateDraft(ctx context.Context, t *models.FormTemplate) error
	Delete(ctx context.Context, templateID id.TemplateID) error
	PublishExclusive(ctx context.Context, templateID id.TemplateID, scope *models.Scope, now time.Time, actor string) (published *models.FormTemplate, archived *models.FormTemplate, err error)
	Archive(ctx context.Context, templateID id.TemplateID, now time.Time, actor string) (*models.FormTemplate, error)
}

// ResolverCache caches (store, format) → active template resolutions. Get
// reports the cache generation it read under; Set must write under that same
// generation so a concurrent Invalidate orphans in-flight resolutions.
type ResolverCache interface {
	Get(ctx context.Context, storeID id.StoreID, format id.StoreFormat) (*models.FormTemplate, int64, bool)
	Set(ctx context.Context, storeID id.StoreID, format id.StoreFormat, t *models.FormTemplate, gen int64)
	Invalidate(ctx context.Context)
}

// Service manages the template lifecycle and resolution.
type Service struct {
	store   Store
	cache   ResolverCache
	audit   *auditEmitter
	metrics *tmplmetrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

type serviceConfig struct {
	cache   ResolverCache
	audit   *auditEmitter
	metrics *tmplmetrics.Metrics
	logger  *slog.Logger
}

// Option configures the Service.
type Option func(*serviceConfig)

// WithResolverCache installs a resolver cache.
func WithResolverCache(cache ResolverCache) Option {
	return func(cfg *serviceConfig) { cfg.cache = cache }
}

// WithAuditPublisher installs an audit publisher for lifecycle events.
func WithAuditPublisher(pub AuditPublisher) Option {
	return func(cfg *serviceConfig) { cfg.audit = &auditEmitter{publisher: pub} }
}

// WithMetrics installs the template module metrics.
func WithMetrics(m *tmplmetrics.Metrics) Option {
	return func(cfg *serviceConfig) { cfg.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *serviceConfig) { cfg.logger = logger }
}

// New creates a template Service over the given store.
func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("template store is required")
	}
	cfg := &serviceConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.audit == nil {
		cfg.audit = &auditEmitter{}
	}
	cfg.audit.logger = cfg.logger
	return &Service{
		store:   store,
		cache:   cfg.cache,
		audit:   cfg.audit,
		metrics: cfg.metrics,
		logger:  cfg.logger,
		tracer:  otel.Tracer("patrol/template"),
	}, nil
}

// Create stores a new draft. A lineage id continues an existing lineage at
// its next version; otherwise a fresh lineage starts at version 1.
func (s *Service) Create(ctx context.Context, req models.CreateTemplateRequest) (*models.FormTemplate, error) {
	lineagePtr, err := models.ParseOptionalLineageID(req.LineageID)
	if err != nil {
		return nil, err
	}

	templateID := id.NewTemplateID()

	// A template with no lineage starts its own: the lineage id is the first
	// version's template id.
	lineageID := id.LineageID(templateID)
	version := 1
	if lineagePtr != nil {
		lineageID = *lineagePtr
		if version, err = s.store.NextVersion(ctx, lineageID); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to assign template version")
		}
	}

	scope := models.AllStores()
	if req.Scope != nil {
		scope = *req.Scope
	}
	questions, err := models.BuildQuestions(req.Questions)
	if err != nil {
		return nil, err
	}

	t, err := models.NewFormTemplate(templateID, lineageID, version,
		req.Name, req.Description, scope, questions,
		requestcontext.Now(ctx), requestcontext.ActorID(ctx))
	if err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, t); err != nil {
		return nil, wrapStoreErr(err)
	}
	s.audit.emitTemplate(ctx, auditTemplateCreated, t, "")
	return t, nil
}

// Get fetches one template version.
func (s *Service) Get(ctx context.Context, templateID id.TemplateID) (*models.FormTemplate, error) {
	t, err := s.store.Get(ctx, templateID)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return t, nil
}

// List returns every template version.
func (s *Service) List(ctx context.Context) ([]*models.FormTemplate, error) {
	templates, err := s.store.List(ctx)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return templates, nil
}

// Update edits a draft. Edits to published or archived templates fail with
// the Immutable code; history never changes shape after publication.
func (s *Service) Update(ctx context.Context, templateID id.TemplateID, req models.UpdateTemplateRequest) (*models.FormTemplate, error) {
	t, err := s.store.Get(ctx, templateID)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	if err := t.CanUpdate(); err != nil {
		return nil, err
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "template name must not be empty")
		}
		t.Name = *req.Name
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.Scope != nil {
		if err := req.Scope.Validate(); err != nil {
			return nil, err
		}
		t.Scope = *req.Scope
	}
	if req.Questions != nil {
		questions, err := models.BuildQuestions(*req.Questions)
		if err != nil {
			return nil, err
		}
		if err := models.ValidateQuestions(questions); err != nil {
			return nil, err
		}
		t.Questions = questions
	}
	t.UpdatedAt = requestcontext.Now(ctx)
	if actor := requestcontext.ActorID(ctx); actor != "" {
		t.UpdatedBy = actor
	}

	if err := s.store.UpdateDraft(ctx, t); err != nil {
		return nil, wrapStoreErr(err)
	}
	s.audit.emitTemplate(ctx, auditTemplateUpdated, t, "")
	return t, nil
}

// Publish transitions a draft to published, optionally replacing its scope,
// and archives the lineage's previously published version in the same atomic
// store operation.
func (s *Service) Publish(ctx context.Context, templateID id.TemplateID, scope *models.Scope) (*models.FormTemplate, error) {
	ctx, span := s.tracer.Start(ctx, "template.Publish")
	defer span.End()

	if scope != nil {
		if err := scope.Validate(); err != nil {
			return nil, err
		}
	}

	published, archived, err := s.store.PublishExclusive(ctx, templateID, scope,
		requestcontext.Now(ctx), requestcontext.ActorID(ctx))
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	if s.metrics != nil {
		s.metrics.TemplatesPublished.Inc()
		if archived != nil {
			s.metrics.TemplatesArchived.Inc()
		}
	}

	detail := ""
	if archived != nil {
		detail = "archived sibling " + archived.ID.String()
	}
	s.audit.emitTemplate(ctx, auditTemplatePublished, published, detail)
	if archived != nil {
		s.audit.emitTemplate(ctx, auditTemplateArchived, archived, "superseded by "+published.ID.String())
	}
	return published, nil
}

// Archive transitions a published template to archived.
func (s *Service) Archive(ctx context.Context, templateID id.TemplateID) (*models.FormTemplate, error) {
	archived, err := s.store.Archive(ctx, templateID, requestcontext.Now(ctx), requestcontext.ActorID(ctx))
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	if s.metrics != nil {
		s.metrics.TemplatesArchived.Inc()
	}
	s.audit.emitTemplate(ctx, auditTemplateArchived, archived, "")
	return archived, nil
}

// Delete removes a template version in any status. Visit logs that reference
// it stay valid historical records; deletion never cascades.
func (s *Service) Delete(ctx context.Context, templateID id.TemplateID) error {
	t, err := s.store.Get(ctx, templateID)
	if err != nil {
		return wrapStoreErr(err)
	}
	if err := s.store.Delete(ctx, templateID); err != nil {
		return wrapStoreErr(err)
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	s.audit.emitTemplate(ctx, auditTemplateDeleted, t, "")
	return nil
}

// ResolveActive picks the published template version that applies to a store.
// Tie-break across matching candidates: most specific scope kind first
// (stores > formats > all), highest version within the same kind. A miss is a
// recoverable NotFound; the caller prompts for manual selection.
func (s *Service) ResolveActive(ctx context.Context, storeID id.StoreID, format id.StoreFormat) (*models.FormTemplate, error) {
	ctx, span := s.tracer.Start(ctx, "template.ResolveActive")
	defer span.End()

	if storeID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "store id is required")
	}
	if s.metrics != nil {
		defer s.metrics.ObserveResolve(time.Now())
	}

	var cacheGen int64
	if s.cache != nil {
		t, gen, ok := s.cache.Get(ctx, storeID, format)
		if ok {
			if s.metrics != nil {
				s.metrics.ResolveCacheHits.Inc()
			}
			return t, nil
		}
		cacheGen = gen
	}

	published, err := s.store.ListPublished(ctx)
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	var candidates []*models.FormTemplate
	for _, t := range published {
		if t.Scope.Matches(storeID, format) {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		if s.metrics != nil {
			s.metrics.ResolveMisses.Inc()
		}
		return nil, dErrors.New(dErrors.CodeNotFound, "no published template applies to this store")
	}

	sort.Slice(candidates, func(i, j int) bool {
		si, sj := candidates[i].Scope.Specificity(), candidates[j].Scope.Specificity()
		if si != sj {
			return si > sj
		}
		return candidates[i].Version > candidates[j].Version
	})
	best := candidates[0]

	if s.cache != nil {
		s.cache.Set(ctx, storeID, format, best, cacheGen)
	}
	return best, nil
}

func wrapStoreErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "template not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeInvalidState, "template status does not permit this transition")
	case errors.Is(err, sentinel.ErrImmutable):
		return dErrors.New(dErrors.CodeImmutable, "only draft templates can be edited")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "template version conflict")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "template store failure")
	}
}
