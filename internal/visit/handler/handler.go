// Package handler exposes visit recording and retrieval over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	visitModel "patrol/internal/visit/models"
	dErrors "patrol/pkg/domain-errors"
	id "patrol/pkg/domain"
	"patrol/pkg/platform/httputil"
	"patrol/pkg/requestcontext"
)

// Service defines the interface for visit operations.
type Service interface {
	Record(ctx context.Context, req visitModel.RecordVisitRequest) (*visitModel.VisitLog, error)
	Get(ctx context.Context, visitID id.VisitID) (*visitModel.VisitLog, error)
	ListByStore(ctx context.Context, storeID id.StoreID) ([]*visitModel.VisitLog, error)
}

// Handler handles visit endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
}

// New creates a visit Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service}
}

// Register mounts the visit routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/visits", func(r chi.Router) {
		r.Post("/", h.handleRecord)
		r.Get("/", h.handleListByStore)
		r.Get("/{visitID}", h.handleGet)
	})
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req visitModel.RecordVisitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	visit, err := h.service.Record(ctx, req)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "record visit failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, visit)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	visitID, err := id.ParseVisitID(chi.URLParam(r, "visitID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	visit, err := h.service.Get(ctx, visitID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, visit)
}

func (h *Handler) handleListByStore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	storeID, err := id.ParseStoreID(r.URL.Query().Get("store_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	visits, err := h.service.ListByStore(ctx, storeID)
	if err != nil {
		h.logger.ErrorContext(ctx, "list visits failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	if visits == nil {
		visits = []*visitModel.VisitLog{}
	}
	httputil.WriteJSON(w, http.StatusOK, visits)
}
