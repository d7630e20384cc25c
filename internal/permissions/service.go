package permissions

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

const entity = rbac.EntityPermissions

// RepositoryPort defines data access methods for permissions.
type RepositoryPort interface {
	List(ctx context.Context, params shared.ListParams) ([]Permission, int, error)
	Get(ctx context.Context, id string) (Permission, error)
	GetMany(ctx context.Context, ids []string) ([]Permission, error)
	Create(ctx context.Context, p Permission) (Permission, error)
	Update(ctx context.Context, id string, in UpdateInput, actor string, at time.Time) (Permission, error)
	SoftDelete(ctx context.Context, id, actor string, at time.Time) error
	Restore(ctx context.Context, id, actor string, at time.Time) error
	ForceDelete(ctx context.Context, id string) error
}

// Service handles permission business logic.
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

// List returns one page of active permissions.
func (s *Service) List(ctx context.Context, params shared.ListParams) (shared.Page[Permission], error) {
	params = params.Normalize(sortColumns...)
	return cache.ThroughVariant(ctx, s.cache, cache.Collection(entity), params.Fingerprint(), func(ctx context.Context) (shared.Page[Permission], error) {
		items, total, err := s.repo.List(ctx, params)
		if err != nil {
			return shared.Page[Permission]{}, err
		}
		return shared.NewPage(items, params, total), nil
	})
}

// Get returns an active permission.
func (s *Service) Get(ctx context.Context, id string) (Permission, error) {
	perm, err := cache.Through(ctx, s.cache, cache.Item(entity, id), func(ctx context.Context) (Permission, error) {
		return s.repo.Get(ctx, id)
	})
	if errors.Is(err, ErrNotFound) || (err == nil && perm.Deleted()) {
		return Permission{}, notFound(id)
	}
	return perm, err
}

// Exists fails unless id names an active permission.
func (s *Service) Exists(ctx context.Context, id string) error {
	_, err := s.Get(ctx, id)
	return err
}

// Summaries returns the active permissions among ids.
func (s *Service) Summaries(ctx context.Context, ids []string) ([]rbac.Summary, error) {
	ids = shared.UniqueIDs(ids)
	if len(ids) == 0 {
		return []rbac.Summary{}, nil
	}
	perms, err := s.repo.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("permissions: load summaries: %w", err)
	}
	out := make([]rbac.Summary, len(perms))
	for i, p := range perms {
		out[i] = rbac.Summary{ID: p.ID, Name: p.Name, Description: p.Description, Status: p.Status}
	}
	return out, nil
}

// Create stores a new permission and primes its cache entry.
func (s *Service) Create(ctx context.Context, in CreateInput) (Permission, error) {
	perm := Permission{
		ID:           s.newID(),
		Name:         shared.NormalizeName(in.Name),
		Description:  strings.TrimSpace(in.Description),
		Status:       strings.TrimSpace(in.Status),
		LastEditedBy: shared.ActorID(ctx),
		CreatedAt:    s.now().UTC(),
	}
	if perm.Status == "" {
		perm.Status = StatusActive
	}
	created, err := s.repo.Create(ctx, perm)
	if err != nil {
		return Permission{}, err
	}
	if err := s.cache.Evict(ctx, cache.Collection(entity)); err != nil {
		return Permission{}, err
	}
	if err := s.cache.Put(ctx, cache.Item(entity, created.ID), created); err != nil {
		s.logger.Warn("permission cache write failed", slog.String("id", created.ID), slog.Any("error", err))
	}
	return created, nil
}

// Update replaces the editable fields of an active permission.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Permission, error) {
	in.Name = shared.NormalizeName(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Status = strings.TrimSpace(in.Status)
	perm, err := s.repo.Update(ctx, id, in, shared.ActorID(ctx), s.now().UTC())
	if err != nil {
		return Permission{}, mapErr(id, err)
	}
	return perm, s.evict(ctx, id)
}

// Delete soft deletes a permission.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.SoftDelete(ctx, id, shared.ActorID(ctx), s.now().UTC()); err != nil {
		return mapErr(id, err)
	}
	return s.evict(ctx, id)
}

// Restore undoes a soft delete.
func (s *Service) Restore(ctx context.Context, id string) error {
	if err := s.repo.Restore(ctx, id, shared.ActorID(ctx), s.now().UTC()); err != nil {
		return mapErr(id, err)
	}
	return s.evict(ctx, id)
}

// ForceDelete removes a permission for good. Roles that held it lose their
// cached permission views.
func (s *Service) ForceDelete(ctx context.Context, id string) error {
	related, err := s.edges.Snapshot(ctx, entity, id)
	if err != nil {
		return err
	}
	if err := s.repo.ForceDelete(ctx, id); err != nil {
		return mapErr(id, err)
	}
	if err := s.evict(ctx, id); err != nil {
		return err
	}
	return s.edges.Forget(ctx, entity, id, related)
}

func (s *Service) evict(ctx context.Context, id string) error {
	return s.cache.Evict(ctx, cache.EntityKeys(entity, id)...)
}

func mapErr(id string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return notFound(id)
	}
	return err
}

func notFound(id string) error {
	return shared.NotFound("permission with ID %s not found", id)
}
