package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/dealer-iam/internal/platform/httpx"
)

// Summary is the compact view of an entity listed through a relation.
type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
}

// Directory resolves entity ids for relation endpoints.
type Directory interface {
	// Exists fails with a not-found error when id is missing or soft deleted.
	Exists(ctx context.Context, id string) error
	// Summaries returns the active entities among ids; unknown ids are skipped.
	Summaries(ctx context.Context, ids []string) ([]Summary, error)
}

type relationRequest struct {
	RoleIDs       []string `json:"roleIds"`
	PermissionIDs []string `json:"permissionIds"`
}

// RelationHandler exposes one relation of an entity under /{id}/<relation>.
type RelationHandler struct {
	logger   *slog.Logger
	manager  *Manager
	validate *validator.Validate
	rel      Relation
	owners   Directory
	related  Directory
	guard    Middleware
}

// NewRelationHandler builds a RelationHandler.
func NewRelationHandler(logger *slog.Logger, manager *Manager, validate *validator.Validate, rel Relation, owners, related Directory, guard Middleware) *RelationHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &RelationHandler{logger: logger, manager: manager, validate: validate, rel: rel, owners: owners, related: related, guard: guard}
}

// MountRoutes registers the relation routes on a router already scoped to /{id}.
func (h *RelationHandler) MountRoutes(r chi.Router) {
	path := "/" + h.rel.Name
	r.Get(path, h.list)
	if h.rel.ReadOnly {
		return
	}
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAdmin())
		r.Post(path, h.attach)
		r.Put(path+"/detach", h.detach)
		r.Put(path, h.sync)
	})
}

func (h *RelationHandler) list(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.owners.Exists(r.Context(), id); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	ids, err := h.manager.Related(r.Context(), h.rel, id)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	items, err := h.related.Summaries(r.Context(), ids)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, "Successfully fetched "+h.rel.Name+" of "+singular(h.rel.Owner)+" with ID "+id+".", map[string]any{
		"id":       id,
		h.rel.Name: items,
	})
}

func (h *RelationHandler) attach(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.manager.Attach, "Successfully attached selected "+h.rel.Name+".")
}

func (h *RelationHandler) detach(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.manager.Detach, "Successfully detached selected "+h.rel.Name+".")
}

func (h *RelationHandler) sync(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.manager.Sync, "Successfully synchronised "+h.rel.Name+".")
}

type mutation func(ctx context.Context, rel Relation, ownerID string, relatedIDs []string) error

func (h *RelationHandler) mutate(w http.ResponseWriter, r *http.Request, op mutation, message string) {
	ids, err := h.decodeIDs(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if err := op(r.Context(), h.rel, chi.URLParam(r, "id"), ids); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, message, map[string]any{"ids": ids})
}

func (h *RelationHandler) decodeIDs(r *http.Request) ([]string, error) {
	var req relationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return nil, err
	}
	field, ids := "roleIds", req.RoleIDs
	if h.rel.Related == EntityPermissions {
		field, ids = "permissionIds", req.PermissionIDs
	}
	if err := h.validate.Var(ids, "required,min=1,dive,required"); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, httpx.FieldErrors{field: "must be a non-empty list of ids"}
		}
		return nil, err
	}
	return ids, nil
}
