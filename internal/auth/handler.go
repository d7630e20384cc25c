package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/dealer-iam/internal/platform/httpx"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	limit     func(http.Handler) http.Handler
}

// NewHandler constructs a Handler instance. limit guards every route and may be nil.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate, limit func(http.Handler) http.Handler) *Handler {
	if validate == nil {
		validate = validator.New()
	}
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{logger: logger, service: service, validator: validate, limit: limit}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.limit)
		r.Post("/register", h.handleRegister)
		r.Post("/login", h.handleLogin)
		r.Get("/me", h.handleMe)
		r.Post("/refresh", h.handleRefresh)
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in RegisterInput
	if err := httpx.DecodeAndValidate(r, h.validator, &in); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	session, err := h.service.Register(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Respond(w, r, http.StatusCreated, "Successfully registering new user.", session)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in LoginInput
	if err := httpx.DecodeAndValidate(r, h.validator, &in); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	session, err := h.service.Login(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, "Login is success. Welcome back "+in.Email, session)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	raw, err := BearerToken(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	profile, err := h.service.Me(r.Context(), raw)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, "Successfully fetch personal data.", profile)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	raw, err := BearerToken(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	var in RefreshInput
	if err := httpx.DecodeAndValidate(r, h.validator, &in); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	refreshed, err := h.service.Refresh(r.Context(), raw, in.RefreshToken)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.Respond(w, r, http.StatusOK, "Successfully refresh auth or access token.", refreshed)
}
