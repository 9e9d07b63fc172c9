package service

import (
	"context"
	"log/slog"

	"patrol/internal/template/models"
	audit "patrol/pkg/platform/audit"
	"patrol/pkg/requestcontext"
)

const (
	auditTemplateCreated   = audit.ActionTemplateCreated
	auditTemplateUpdated   = audit.ActionTemplateUpdated
	auditTemplatePublished = audit.ActionTemplatePublished
	auditTemplateArchived  = audit.ActionTemplateArchived
	auditTemplateDeleted   = audit.ActionTemplateDeleted
)

// AuditPublisher receives template lifecycle events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// auditEmitter wraps the publisher so that audit failures log but never fail
// the operation that triggered them.
type auditEmitter struct {
	publisher AuditPublisher
	logger    *slog.Logger
}

func (a *auditEmitter) emitTemplate(ctx context.Context, action audit.Action, t *models.FormTemplate, detail string) {
	if a.publisher == nil {
		return
	}
	event := audit.Event{
		Timestamp: requestcontext.Now(ctx),
		Action:    action,
		Subject:   t.ID.String(),
		LineageID: t.LineageID.String(),
		ActorID:   requestcontext.ActorID(ctx),
		RequestID: requestcontext.RequestID(ctx),
		Detail:    detail,
	}
	if err := a.publisher.Emit(ctx, event); err != nil {
		logger := a.logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("audit emit failed", "action", action, "subject", event.Subject, "error", err)
	}
}
