package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dealer-iam/internal/platform/cache"
	"github.com/noah-isme/dealer-iam/internal/rbac"
	"github.com/noah-isme/dealer-iam/internal/shared"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepo struct {
	users map[string]User
	reads int
}

func (m *mockRepo) ListUsers(ctx context.Context, params shared.ListParams) ([]User, int, error) {
	var out []User
	for _, u := range m.users {
		if !u.Deleted() {
			out = append(out, u)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) GetUser(ctx context.Context, id string) (User, error) {
	m.reads++
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *mockRepo) GetUsers(ctx context.Context, ids []string) ([]User, error) {
	var out []User
	for _, id := range ids {
		if u, ok := m.users[id]; ok && !u.Deleted() {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockRepo) UpdateUser(ctx context.Context, id string, in UpdateInput, actor string, at time.Time) (User, error) {
	u, ok := m.users[id]
	if !ok || u.Deleted() {
		return User{}, ErrNotFound
	}
	for otherID, other := range m.users {
		if otherID != id && other.Email == in.Email {
			return User{}, shared.Conflict("email is already registered")
		}
	}
	u.Fullname, u.Bio, u.Email, u.PhoneNumber, u.Address, u.AvatarURL = in.Fullname, in.Bio, in.Email, in.PhoneNumber, in.Address, in.AvatarURL
	u.LastEditedBy, u.UpdatedAt = actor, at
	m.users[id] = u
	return u, nil
}

func (m *mockRepo) SoftDeleteUser(ctx context.Context, id, actor string, at time.Time) error {
	u, ok := m.users[id]
	if !ok || u.Deleted() {
		return ErrNotFound
	}
	u.DeletedAt = &at
	m.users[id] = u
	return nil
}

func (m *mockRepo) RestoreUser(ctx context.Context, id, actor string, at time.Time) error {
	u, ok := m.users[id]
	if !ok || !u.Deleted() {
		return ErrNotFound
	}
	u.DeletedAt = nil
	m.users[id] = u
	return nil
}

func (m *mockRepo) ForceDeleteUser(ctx context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	return nil
}

type roleGrants map[string][]string

func (g roleGrants) WithTx(ctx context.Context, fn func(context.Context, rbac.EdgeTx) error) error {
	return errors.New("not supported")
}

func (g roleGrants) Related(ctx context.Context, rel rbac.Relation, ownerID string) ([]string, error) {
	return g[ownerID], nil
}

type roleDirectory map[string]string

func (d roleDirectory) Exists(ctx context.Context, id string) error { return nil }

func (d roleDirectory) Summaries(ctx context.Context, ids []string) ([]rbac.Summary, error) {
	out := []rbac.Summary{}
	for _, id := range ids {
		if name, ok := d[id]; ok {
			out = append(out, rbac.Summary{ID: id, Name: name})
		}
	}
	return out, nil
}

// ============================================================================
// HELPERS
// ============================================================================

const longAddress = "Jalan Jenderal Sudirman No. 1, Kebayoran Baru, Jakarta Selatan 12190"

func newTestService(t *testing.T) (*Service, *mockRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := cache.NewStore(client, time.Minute, nil, nil)
	repo := &mockRepo{users: map[string]User{
		"U1": {ID: "U1", Fullname: "Dewi Lestari", Email: "dewi@example.com", PhoneNumber: "+628111", AccountStatus: AccountActive, PasswordHash: "$2a$10$secret"},
		"U2": {ID: "U2", Fullname: "Budi Santoso", Email: "budi@example.com", PhoneNumber: "+628222", AccountStatus: AccountActive},
	}}
	edges := rbac.NewManager(roleGrants{"U1": {"R-customer"}}, store, nil)
	return NewService(repo, store, edges, nil), repo, mr
}

func validUpdate(email string) UpdateInput {
	return UpdateInput{Fullname: "Dewi L.", Bio: "sales", Email: email, PhoneNumber: "+628111", Address: longAddress}
}

// ============================================================================
// TESTS
// ============================================================================

func TestGetUserDoesNotCachePasswordHash(t *testing.T) {
	svc, repo, mr := newTestService(t)
	ctx := context.Background()

	u, err := svc.GetUser(ctx, "U1")
	require.NoError(t, err)
	assert.Empty(t, u.PasswordHash)

	raw, err := mr.Get("users:U1")
	require.NoError(t, err)
	assert.NotContains(t, raw, "secret")

	cached, err := svc.GetUser(ctx, "U1")
	require.NoError(t, err)
	assert.Empty(t, cached.PasswordHash)
	assert.Equal(t, 1, repo.reads)
}

func TestUpdateUserIsVisibleAfterwards(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := shared.ContextWithPrincipal(context.Background(), &shared.Principal{ID: "admin"})

	_, err := svc.GetUser(ctx, "U1")
	require.NoError(t, err)
	_, err = svc.ListUsers(ctx, shared.ListParams{})
	require.NoError(t, err)

	updated, err := svc.UpdateUser(ctx, "U1", validUpdate("  DEWI.L@Example.com "))
	require.NoError(t, err)
	assert.Equal(t, "dewi.l@example.com", updated.Email)
	assert.Equal(t, "admin", updated.LastEditedBy)

	got, err := svc.GetUser(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, "Dewi L.", got.Fullname)

	page, err := svc.ListUsers(ctx, shared.ListParams{})
	require.NoError(t, err)
	var names []string
	for _, u := range page.Data {
		names = append(names, u.Fullname)
	}
	assert.Contains(t, names, "Dewi L.")
}

func TestUpdateUserConflict(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.UpdateUser(context.Background(), "U1", validUpdate("budi@example.com"))
	assert.ErrorIs(t, err, shared.ErrConflict)
}

func TestDeletedUserIsHidden(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.DeleteUser(ctx, "U2"))
	_, err := svc.GetUser(ctx, "U2")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	summaries, err := svc.Summaries(ctx, []string{"U1", "U2"})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "Dewi Lestari", summaries[0].Name)
	assert.Equal(t, "dewi@example.com", summaries[0].Description)

	require.NoError(t, svc.RestoreUser(ctx, "U2"))
	_, err = svc.GetUser(ctx, "U2")
	assert.NoError(t, err)
}

func TestForceDeleteUserDropsRoleViews(t *testing.T) {
	svc, _, mr := newTestService(t)
	mr.Set("users:U1:roles", `["R-customer"]`)
	mr.Set("roles:R-customer:users", `["U1"]`)

	require.NoError(t, svc.ForceDeleteUser(context.Background(), "U1"))
	assert.False(t, mr.Exists("users:U1:roles"))
	assert.False(t, mr.Exists("roles:R-customer:users"))

	err := svc.ForceDeleteUser(context.Background(), "U1")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUserRoutes(t *testing.T) {
	svc, _, _ := newTestService(t)
	validate := validator.New()
	guard := rbac.Middleware{}
	roles := rbac.NewRelationHandler(nil, svc.edges, validate, rbac.UserRoles, svc, roleDirectory{"R-customer": "customer"}, guard)
	h := NewHandler(nil, svc, validate, guard, roles)

	serve := func(method, path, body string, held ...string) *httptest.ResponseRecorder {
		router := chi.NewRouter()
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				p := &shared.Principal{ID: "caller", Roles: held}
				next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), p)))
			})
		})
		router.Route("/v1/users", h.MountRoutes)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(method, path, strings.NewReader(body)))
		return rr
	}

	rr := serve(http.MethodGet, "/v1/users/U1", "", "customer")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "password")

	rr = serve(http.MethodGet, "/v1/users/U1/roles", "", "customer")
	require.Equal(t, http.StatusOK, rr.Code)
	var env struct {
		Resource struct {
			ID    string         `json:"id"`
			Roles []rbac.Summary `json:"roles"`
		} `json:"resource"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	require.Len(t, env.Resource.Roles, 1)
	assert.Equal(t, "customer", env.Resource.Roles[0].Name)

	body, err := json.Marshal(UpdateInput{Fullname: "x", Bio: "y", Email: "x@example.com", PhoneNumber: "1", Address: "too short"})
	require.NoError(t, err)
	rr = serve(http.MethodPatch, "/v1/users/U1", string(body), "admin")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Address")

	rr = serve(http.MethodPatch, "/v1/users/U1", string(body), "customer")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = serve(http.MethodPost, "/v1/users", `{}`, "admin")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = serve(http.MethodDelete, "/v1/users/U2", "", "super admin")
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = serve(http.MethodGet, "/v1/users/U2", "", "customer")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
