package roles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/noah-isme/dealer-iam/internal/platform/cache"
	"github.com/noah-isme/dealer-iam/internal/rbac"
	"github.com/noah-isme/dealer-iam/internal/shared"
)

const entity = rbac.EntityRoles

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	List(ctx context.Context, params shared.ListParams) ([]Role, int, error)
	Get(ctx context.Context, id string) (Role, error)
	GetMany(ctx context.Context, ids []string) ([]Role, error)
	Create(ctx context.Context, role Role) (Role, error)
	Update(ctx context.Context, id string, in UpdateInput, actor string, at time.Time) (Role, error)
	SoftDelete(ctx context.Context, id, actor string, at time.Time) error
	Restore(ctx context.Context, id, actor string, at time.Time) error
	ForceDelete(ctx context.Context, id string) error
}

// Service handles role business logic.
type Service struct {
	repo   RepositoryPort
	cache  *cache.Store
	edges  *rbac.Manager
	logger *slog.Logger
	newID  shared.IDFunc
	now    func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, c *cache.Store, edges *rbac.Manager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: c, edges: edges, logger: logger, newID: shared.NewID, now: time.Now}
}

// List returns one page of active roles.
func (s *Service) List(ctx context.Context, params shared.ListParams) (shared.Page[Role], error) {
	params = params.Normalize(sortColumns...)
	return cache.ThroughVariant(ctx, s.cache, cache.Collection(entity), params.Fingerprint(), func(ctx context.Context) (shared.Page[Role], error) {
		items, total, err := s.repo.List(ctx, params)
		if err != nil {
			return shared.Page[Role]{}, err
		}
		return shared.NewPage(items, params, total), nil
	})
}

// Get returns an active role.
func (s *Service) Get(ctx context.Context, id string) (Role, error) {
	role, err := s.load(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if role.Deleted() {
		return Role{}, notFound(id)
	}
	return role, nil
}

// load reads a role through the cache, soft-deleted rows included.
func (s *Service) load(ctx context.Context, id string) (Role, error) {
	role, err := cache.Through(ctx, s.cache, cache.Item(entity, id), func(ctx context.Context) (Role, error) {
		return s.repo.Get(ctx, id)
	})
	if errors.Is(err, ErrNotFound) {
		return Role{}, notFound(id)
	}
	return role, err
}

// Exists fails unless id names an active role.
func (s *Service) Exists(ctx context.Context, id string) error {
	_, err := s.Get(ctx, id)
	return err
}

// Summaries returns the active roles among ids.
func (s *Service) Summaries(ctx context.Context, ids []string) ([]rbac.Summary, error) {
	ids = shared.UniqueIDs(ids)
	if len(ids) == 0 {
		return []rbac.Summary{}, nil
	}
	roles, err := s.repo.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("roles: load summaries: %w", err)
	}
	out := make([]rbac.Summary, 0, len(roles))
	for _, role := range roles {
		out = append(out, rbac.Summary{ID: role.ID, Name: role.Name, Description: role.Description, Status: role.Status})
	}
	return out, nil
}

// Create stores a new role and primes its cache entry.
func (s *Service) Create(ctx context.Context, in CreateInput) (Role, error) {
	role := Role{
		ID:           s.newID(),
		Name:         shared.NormalizeName(in.Name),
		Description:  strings.TrimSpace(in.Description),
		Status:       strings.TrimSpace(in.Status),
		LastEditedBy: shared.ActorID(ctx),
		CreatedAt:    s.now().UTC(),
	}
	if role.Status == "" {
		role.Status = StatusActive
	}
	created, err := s.repo.Create(ctx, role)
	if err != nil {
		return Role{}, err
	}
	if err := s.cache.Evict(ctx, cache.Collection(entity)); err != nil {
		return Role{}, err
	}
	if err := s.cache.Put(ctx, cache.Item(entity, created.ID), created); err != nil {
		s.logger.Warn("role cache write failed", slog.String("id", created.ID), slog.Any("error", err))
	}
	return created, nil
}

// Update replaces the editable fields of an active role.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Role, error) {
	in.Name = shared.NormalizeName(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Status = strings.TrimSpace(in.Status)
	role, err := s.repo.Update(ctx, id, in, shared.ActorID(ctx), s.now().UTC())
	if err != nil {
		return Role{}, s.mapErr(id, err)
	}
	return role, s.evict(ctx, id)
}

// Delete soft deletes a role.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.SoftDelete(ctx, id, shared.ActorID(ctx), s.now().UTC()); err != nil {
		return s.mapErr(id, err)
	}
	return s.evict(ctx, id)
}

// Restore undoes a soft delete.
func (s *Service) Restore(ctx context.Context, id string) error {
	if err := s.repo.Restore(ctx, id, shared.ActorID(ctx), s.now().UTC()); err != nil {
		return s.mapErr(id, err)
	}
	return s.evict(ctx, id)
}

// ForceDelete removes a role for good together with its edges.
func (s *Service) ForceDelete(ctx context.Context, id string) error {
	related, err := s.edges.Snapshot(ctx, entity, id)
	if err != nil {
		return err
	}
	if err := s.repo.ForceDelete(ctx, id); err != nil {
		return s.mapErr(id, err)
	}
	if err := s.evict(ctx, id); err != nil {
		return err
	}
	return s.edges.Forget(ctx, entity, id, related)
}

func (s *Service) evict(ctx context.Context, id string) error {
	return s.cache.Evict(ctx, cache.EntityKeys(entity, id)...)
}

func (s *Service) mapErr(id string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return notFound(id)
	}
	return err
}

func notFound(id string) error {
	return shared.NotFound("role with ID %s not found", id)
}
