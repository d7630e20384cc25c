package users

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/dealer-iam/internal/platform/httpx"
	"github.com/noah-isme/dealer-iam/internal/rbac"
)

// Handler manages user management endpoints. Accounts are created through
// registration only.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
	roles    *rbac.RelationHandler
}

// NewHandler builds Handler instance. roles may be nil.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate, guard rbac.Middleware, roles *rbac.RelationHandler) *Handler {
	return &Handler{logger: logger, service: service, validate: validate, rbac: guard, roles: roles}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listUsers)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.showUser)
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAdmin())
			r.Patch("/", h.updateUser)
			r.Patch("/restore", h.restoreUser)
			r.Delete("/", h.deleteUser)
			r.Delete("/force", h.forceDeleteUser)
		})
		if h.roles != nil {
			h.roles.MountRoutes(r)
		}
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.ListUsers(r.Context(), httpx.ListParams(r))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, "Successfully fetched users.", page)
}

func (h *Handler) showUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	u, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, fmt.Sprintf("Successfully fetched user with ID %s.", id), u)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var in UpdateInput
	if err := httpx.DecodeAndValidate(r, h.validate, &in); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	u, err := h.service.UpdateUser(r.Context(), id, in)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, fmt.Sprintf("Successfully updated user with ID %s.", id), u)
}

func (h *Handler) restoreUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.RestoreUser(r.Context(), id); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, fmt.Sprintf("Successfully restored user with ID %s.", id), nil)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, fmt.Sprintf("Successfully soft deleted user with ID %s.", id), nil)
}

func (h *Handler) forceDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.ForceDeleteUser(r.Context(), id); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, fmt.Sprintf("Successfully force deleted user with ID %s.", id), nil)
}
