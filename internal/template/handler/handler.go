// Package handler exposes the template lifecycle and scope resolution over
// HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	templateModel "patrol/internal/template/models"
	dErrors "patrol/pkg/domain-errors"
	id "patrol/pkg/domain"
	"patrol/pkg/platform/httputil"
	"patrol/pkg/requestcontext"
)

// Service defines the interface for template operations.
type Service interface {
	Create(ctx context.Context, req templateModel.CreateTemplateRequest) (*templateModel.FormTemplate, error)
	Get(ctx context.Context, templateID id.TemplateID) (*templateModel.FormTemplate, error)
	List(ctx context.Context) ([]*templateModel.FormTemplate, error)
	Update(ctx context.Context, templateID id.TemplateID, req templateModel.UpdateTemplateRequest) (*templateModel.FormTemplate, error)
	Publish(ctx context.Context, templateID id.TemplateID, scope *templateModel.Scope) (*templateModel.FormTemplate, error)
	Archive(ctx context.Context, templateID id.TemplateID) (*templateModel.FormTemplate, error)
	Delete(ctx context.Context, templateID id.TemplateID) error
	ResolveActive(ctx context.Context, storeID id.StoreID, format id.StoreFormat) (*templateModel.FormTemplate, error)
}

// Handler handles template endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
}

// New creates a template Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service}
}

// Register mounts the template routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/templates", func(r chi.Router) {
		r.Get("/active", h.handleResolveActive)
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Route("/{templateID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Patch("/", h.handleUpdate)
			r.Delete("/", h.handleDelete)
			r.Post("/publish", h.handlePublish)
			r.Post("/archive", h.handleArchive)
		})
	})
}

// handleResolveActive resolves the published template for a store. The route
// sits before /{templateID} so "active" is never parsed as an id.
func (h *Handler) handleResolveActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	storeID, err := id.ParseStoreID(r.URL.Query().Get("store_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	format := id.StoreFormat(r.URL.Query().Get("store_format"))

	t, err := h.service.ResolveActive(ctx, storeID, format)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logError(ctx, "resolve active template failed", err)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req templateModel.CreateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	t, err := h.service.Create(ctx, req)
	if err != nil {
		h.logError(ctx, "create template failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, t)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	templates, err := h.service.List(ctx)
	if err != nil {
		h.logError(ctx, "list templates failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, templates)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	templateID, err := id.ParseTemplateID(chi.URLParam(r, "templateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	t, err := h.service.Get(ctx, templateID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	templateID, err := id.ParseTemplateID(chi.URLParam(r, "templateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req templateModel.UpdateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	t, err := h.service.Update(ctx, templateID, req)
	if err != nil {
		h.logError(ctx, "update template failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	templateID, err := id.ParseTemplateID(chi.URLParam(r, "templateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req templateModel.PublishTemplateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	}

	t, err := h.service.Publish(ctx, templateID, req.Scope)
	if err != nil {
		h.logError(ctx, "publish template failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	templateID, err := id.ParseTemplateID(chi.URLParam(r, "templateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	t, err := h.service.Archive(ctx, templateID)
	if err != nil {
		h.logError(ctx, "archive template failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	templateID, err := id.ParseTemplateID(chi.URLParam(r, "templateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Delete(ctx, templateID); err != nil {
		h.logError(ctx, "delete template failed", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	)
}
