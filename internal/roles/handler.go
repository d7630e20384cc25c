package roles

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/dealer-iam/internal/platform/httpx"
	"github.com/noah-isme/dealer-iam/internal/rbac"
)

// Handler manages role management endpoints.
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

// MountRoutes registers role routes. The router must already authenticate.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.With(h.rbac.RequireAdmin()).Post("/", h.create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAdmin())
			r.Patch("/", h.update)
			r.Patch("/restore", h.restore)
			r.Delete("/", h.delete)
			r.Delete("/force", h.forceDelete)
		})
		for _, rel := range h.relations {
			rel.MountRoutes(r)
		}
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.List(r.Context(), httpx.ListParams(r))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, "Successfully fetched roles.", page)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	role, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, "Successfully fetched role with ID "+id+".", role)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeAndValidate(r, h.validate, &in); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	role, err := h.service.Create(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Respond(w, r, http.StatusCreated, "Successfully created role.", role)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var in UpdateInput
	if err := httpx.DecodeAndValidate(r, h.validate, &in); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	role, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, "Successfully updated role with ID "+id+".", role)
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Restore(r.Context(), id); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, "Successfully restored role with ID "+id+".", nil)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, "Successfully soft deleted role with ID "+id+".", nil)
}

func (h *Handler) forceDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.ForceDelete(r.Context(), id); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, "Successfully force deleted role with ID "+id+".", nil)
}
