package permissions

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/dealer-iam/internal/platform/httpx"
	"github.com/noah-isme/dealer-iam/internal/rbac"
)

// Handler manages permission endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validate  *validator.Validate
	rbac      rbac.Middleware
	relations []*rbac.RelationHandler
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate, guard rbac.Middleware, relations ...*rbac.RelationHandler) *Handler {
	return &Handler{logger: logger, service: service, validate: validate, rbac: guard, relations: relations}
}

// MountRoutes registers permission routes. The router must already authenticate.
func (h *Handler) MountRoutes(r chi.Router) {
	admin := h.rbac.RequireAdmin()
	r.Get("/", h.listPermissions)
	r.With(admin).Post("/", h.createPermission)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.showPermission)
		r.With(admin).Patch("/", h.updatePermission)
		r.With(admin).Patch("/restore", h.restorePermission)
		r.With(admin).Delete("/", h.deletePermission)
		r.With(admin).Delete("/force", h.forceDeletePermission)
		for _, rel := range h.relations {
			rel.MountRoutes(r)
		}
	})
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.List(r.Context(), httpx.ListParams(r))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, "Successfully fetched permissions.", page)
}

func (h *Handler) showPermission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	perm, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, fmt.Sprintf("Successfully fetched permission with ID %s.", id), perm)
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeAndValidate(r, h.validate, &in); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	perm, err := h.service.Create(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Respond(w, r, http.StatusCreated, "Successfully created permission.", perm)
}

func (h *Handler) updatePermission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var in UpdateInput
	if err := httpx.DecodeAndValidate(r, h.validate, &in); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	perm, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, fmt.Sprintf("Successfully updated permission with ID %s.", id), perm)
}

func (h *Handler) restorePermission(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.service.Restore, "restored")
}

func (h *Handler) deletePermission(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.service.Delete, "soft deleted")
}

func (h *Handler) forceDeletePermission(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.service.ForceDelete, "force deleted")
}

func (h *Handler) lifecycle(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id string) error, verb string) {
	id := chi.URLParam(r, "id")
	if err := op(r.Context(), id); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, fmt.Sprintf("Successfully %s permission with ID %s.", verb, id), nil)
}
