package roles

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dealer-iam/internal/rbac"
	"github.com/noah-isme/dealer-iam/internal/shared"
)

type stubDirectory struct {
	items map[string]rbac.Summary
}

func (d stubDirectory) Exists(ctx context.Context, id string) error {
	if _, ok := d.items[id]; !ok {
		return shared.NotFound("permission with ID %s not found", id)
	}
	return nil
}

func (d stubDirectory) Summaries(ctx context.Context, ids []string) ([]rbac.Summary, error) {
	out := []rbac.Summary{}
	for _, id := range ids {
		if item, ok := d.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

type envelope struct {
	Status   int             `json:"status"`
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	Path     string          `json:"path"`
	Resource json.RawMessage `json:"resource"`
}

func newTestRouter(t *testing.T, roles ...string) (http.Handler, *Service) {
	t.Helper()
	svc, _, _ := newTestService(t)
	guard := rbac.Middleware{}
	validate := validator.New()
	permissions := stubDirectory{items: map[string]rbac.Summary{
		"P1": {ID: "P1", Name: "read_permission"},
	}}
	handler := NewHandler(nil, svc, validate, guard,
		rbac.NewRelationHandler(nil, svc.edges, validate, rbac.RolePermissions, svc, permissions, guard),
	)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			p := &shared.Principal{ID: "u-test", Roles: roles}
			next.ServeHTTP(w, req.WithContext(shared.ContextWithPrincipal(req.Context(), p)))
		})
	})
	r.Route("/v1/roles", handler.MountRoutes)
	return r, svc
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return rr, env
}

func TestHandlerCreateAndGet(t *testing.T) {
	router, _ := newTestRouter(t, rbac.RoleAdmin)

	rr, env := do(t, router, http.MethodPost, "/v1/roles", `{"name":"Sales","description":"sells","status":"active"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.True(t, env.Success)
	var created Role
	require.NoError(t, json.Unmarshal(env.Resource, &created))
	assert.Equal(t, "sales", created.Name)

	rr, env = do(t, router, http.MethodGet, "/v1/roles/"+created.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Successfully fetched role with ID "+created.ID+".", env.Message)
	assert.Equal(t, "/v1/roles/"+created.ID, env.Path)
}

func TestHandlerCreateValidation(t *testing.T) {
	router, _ := newTestRouter(t, rbac.RoleAdmin)

	rr, env := do(t, router, http.MethodPost, "/v1/roles", `{"description":"no name"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.False(t, env.Success)

	rr, _ = do(t, router, http.MethodPost, "/v1/roles", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerWritesRequireAdmin(t *testing.T) {
	router, svc := newTestRouter(t, "customer")
	_, err := svc.Create(adminCtx(), CreateInput{Name: "viewer", Description: "v", Status: "active"})
	require.NoError(t, err)

	rr, _ := do(t, router, http.MethodPost, "/v1/roles", `{"name":"x","description":"y","status":"active"}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	rr, _ = do(t, router, http.MethodDelete, "/v1/roles/R1", "")
	assert.Equal(t, http.StatusForbidden, rr.Code)
	rr, _ = do(t, router, http.MethodPost, "/v1/roles/R1/permissions", `{"permissionIds":["P1"]}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr, _ = do(t, router, http.MethodGet, "/v1/roles", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandlerListAndDeleteLifecycle(t *testing.T) {
	router, svc := newTestRouter(t, rbac.RoleSuperAdmin)
	ctx := adminCtx()
	for _, name := range []string{"alpha", "beta"} {
		_, err := svc.Create(ctx, CreateInput{Name: name, Description: name, Status: "active"})
		require.NoError(t, err)
	}

	rr, env := do(t, router, http.MethodGet, "/v1/roles?size=1&sortBy=name", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var page shared.Page[Role]
	require.NoError(t, json.Unmarshal(env.Resource, &page))
	assert.Equal(t, 2, page.TotalElements)
	assert.Len(t, page.Data, 1)
	assert.True(t, page.HasNext)

	rr, env = do(t, router, http.MethodDelete, "/v1/roles/R1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Successfully soft deleted role with ID R1.", env.Message)

	rr, _ = do(t, router, http.MethodGet, "/v1/roles/R1", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, _ = do(t, router, http.MethodPatch, "/v1/roles/R1/restore", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr, _ = do(t, router, http.MethodDelete, "/v1/roles/R1/force", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	rr, _ = do(t, router, http.MethodGet, "/v1/roles/R1", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandlerListsRelatedPermissions(t *testing.T) {
	router, svc := newTestRouter(t, "customer")
	_, err := svc.Create(adminCtx(), CreateInput{Name: "viewer", Description: "v", Status: "active"})
	require.NoError(t, err)

	rr, env := do(t, router, http.MethodGet, "/v1/roles/R1/permissions", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var body struct {
		ID          string         `json:"id"`
		Permissions []rbac.Summary `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(env.Resource, &body))
	assert.Equal(t, "R1", body.ID)
	require.Len(t, body.Permissions, 1)
	assert.Equal(t, "read_permission", body.Permissions[0].Name)

	rr, _ = do(t, router, http.MethodGet, "/v1/roles/R9/permissions", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
