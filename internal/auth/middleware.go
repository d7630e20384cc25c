package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/noah-isme/dealer-iam/internal/platform/httpx"
	"github.com/noah-isme/dealer-iam/internal/shared"
	"github.com/noah-isme/dealer-iam/internal/token"
)

const bearerPrefix = "Bearer "

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", shared.BadRequest("missing or invalid Authorization header")
	}
	raw := strings.TrimSpace(header[len(bearerPrefix):])
	if raw == "" {
		return "", shared.BadRequest("missing or invalid Authorization header")
	}
	return raw, nil
}

// Middleware authenticates requests carrying access tokens.
type Middleware struct {
	Validator *token.Validator
	Logger    *slog.Logger
}

// Authenticate stores the principal of a valid access token in the request context.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := BearerToken(r)
		if err != nil {
			httpx.RespondError(w, r, m.Logger, err)
			return
		}
		claims, err := m.Validator.ValidateKind(raw, "", token.KindAccess)
		if err != nil {
			httpx.RespondError(w, r, m.Logger, err)
			return
		}
		principal := claims.Principal()
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), &principal)))
	})
}
