package users

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

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, params shared.ListParams) ([]User, int, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUsers(ctx context.Context, ids []string) ([]User, error)
	UpdateUser(ctx context.Context, id string, in UpdateInput, actor string, at time.Time) (User, error)
	SoftDeleteUser(ctx context.Context, id, actor string, at time.Time) error
	RestoreUser(ctx context.Context, id, actor string, at time.Time) error
	ForceDeleteUser(ctx context.Context, id string) error
}

// Service handles user business logic.
type Service struct {
	repo   RepositoryPort
	cache  *cache.Store
	edges  *rbac.Manager
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, c *cache.Store, edges *rbac.Manager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: c, edges: edges, logger: logger, now: time.Now}
}

// ListUsers returns one page of active users.
func (s *Service) ListUsers(ctx context.Context, params shared.ListParams) (shared.Page[User], error) {
	params = params.Normalize(sortColumns...)
	return cache.ThroughVariant(ctx, s.cache, cache.Collection(rbac.EntityUsers), params.Fingerprint(), func(ctx context.Context) (shared.Page[User], error) {
		items, total, err := s.repo.ListUsers(ctx, params)
		if err != nil {
			return shared.Page[User]{}, err
		}
		return shared.NewPage(items, params, total), nil
	})
}

// GetUser returns an active user.
func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	u, err := cache.Through(ctx, s.cache, cache.Item(rbac.EntityUsers, id), func(ctx context.Context) (User, error) {
		return s.repo.GetUser(ctx, id)
	})
	switch {
	case errors.Is(err, ErrNotFound):
		return User{}, notFound(id)
	case err != nil:
		return User{}, err
	case u.Deleted():
		return User{}, notFound(id)
	}
	return u, nil
}

// Exists fails unless id names an active user.
func (s *Service) Exists(ctx context.Context, id string) error {
	_, err := s.GetUser(ctx, id)
	return err
}

// Summaries returns the active users among ids.
func (s *Service) Summaries(ctx context.Context, ids []string) ([]rbac.Summary, error) {
	ids = shared.UniqueIDs(ids)
	if len(ids) == 0 {
		return []rbac.Summary{}, nil
	}
	found, err := s.repo.GetUsers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("users: load summaries: %w", err)
	}
	out := make([]rbac.Summary, 0, len(found))
	for _, u := range found {
		out = append(out, rbac.Summary{ID: u.ID, Name: u.Fullname, Description: u.Email, Status: u.AccountStatus})
	}
	return out, nil
}

// UpdateUser replaces the profile fields of an active user.
func (s *Service) UpdateUser(ctx context.Context, id string, in UpdateInput) (User, error) {
	in.Fullname = strings.TrimSpace(in.Fullname)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	u, err := s.repo.UpdateUser(ctx, id, in, shared.ActorID(ctx), s.now().UTC())
	if err != nil {
		return User{}, mapErr(id, err)
	}
	if err := s.evict(ctx, id); err != nil {
		return User{}, err
	}
	s.logger.Info("user updated", slog.String("id", id), slog.String("actor", shared.ActorID(ctx)))
	return u, nil
}

// DeleteUser soft deletes a user.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	if err := s.repo.SoftDeleteUser(ctx, id, shared.ActorID(ctx), s.now().UTC()); err != nil {
		return mapErr(id, err)
	}
	return s.evict(ctx, id)
}

// RestoreUser undoes a soft delete.
func (s *Service) RestoreUser(ctx context.Context, id string) error {
	if err := s.repo.RestoreUser(ctx, id, shared.ActorID(ctx), s.now().UTC()); err != nil {
		return mapErr(id, err)
	}
	return s.evict(ctx, id)
}

// ForceDeleteUser removes a user for good.
func (s *Service) ForceDeleteUser(ctx context.Context, id string) error {
	related, err := s.edges.Snapshot(ctx, rbac.EntityUsers, id)
	if err != nil {
		return err
	}
	if err := s.repo.ForceDeleteUser(ctx, id); err != nil {
		return mapErr(id, err)
	}
	if err := s.evict(ctx, id); err != nil {
		return err
	}
	return s.edges.Forget(ctx, rbac.EntityUsers, id, related)
}

func (s *Service) evict(ctx context.Context, id string) error {
	return s.cache.Evict(ctx, cache.EntityKeys(rbac.EntityUsers, id)...)
}

func mapErr(id string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return notFound(id)
	}
	return err
}

func notFound(id string) error {
	return shared.NotFound("user with ID %s not found", id)
}
