package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/noah-isme/dealer-iam/internal/platform/cache"
	"github.com/noah-isme/dealer-iam/internal/rbac"
	"github.com/noah-isme/dealer-iam/internal/shared"
	"github.com/noah-isme/dealer-iam/internal/token"
	"github.com/noah-isme/dealer-iam/internal/users"
)

// DefaultRole is granted to self-registered accounts unless configured otherwise.
const DefaultRole = "customer"

// Config wires the Service collaborators.
type Config struct {
	Repo        Repository
	Hasher      PasswordHasher
	Issuer      *token.Issuer
	Validator   *token.Validator
	Roles       RoleResolver
	Cache       *cache.Store
	Logger      *slog.Logger
	DefaultRole string
}

// Service wraps authentication business rules.
type Service struct {
	repo        Repository
	hasher      PasswordHasher
	issuer      *token.Issuer
	validator   *token.Validator
	roles       RoleResolver
	cache       *cache.Store
	logger      *slog.Logger
	defaultRole string
	newID       shared.IDFunc
	now         func() time.Time
}

// NewService constructs a new Service.
func NewService(cfg Config) *Service {
	if cfg.Hasher == nil {
		cfg.Hasher = BcryptHasher{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if strings.TrimSpace(cfg.DefaultRole) == "" {
		cfg.DefaultRole = DefaultRole
	}
	return &Service{
		repo:        cfg.Repo,
		hasher:      cfg.Hasher,
		issuer:      cfg.Issuer,
		validator:   cfg.Validator,
		roles:       cfg.Roles,
		cache:       cfg.Cache,
		logger:      cfg.Logger,
		defaultRole: shared.NormalizeName(cfg.DefaultRole),
		newID:       shared.NewID,
		now:         time.Now,
	}
}

// Register creates an account holding the default role and signs it in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	roleID, err := s.repo.DefaultRoleID(ctx, s.defaultRole)
	if errors.Is(err, shared.ErrNotFound) {
		return Session{}, shared.Conflict("default role %q is not available", s.defaultRole)
	}
	if err != nil {
		return Session{}, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Session{}, err
	}
	now := s.now().UTC()
	u := users.User{
		ID:                s.newID(),
		Fullname:          strings.TrimSpace(in.Fullname),
		Bio:               strings.TrimSpace(in.Bio),
		Email:             strings.ToLower(strings.TrimSpace(in.Email)),
		PhoneNumber:       strings.TrimSpace(in.PhoneNumber),
		Address:           strings.TrimSpace(in.Address),
		AccountStatus:     users.AccountActive,
		ActiveStatus:      users.PresenceOff,
		AvatarURL:         strings.TrimSpace(in.AvatarURL),
		PasswordHash:      hash,
		PasswordChangedAt: &now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.CreateUser(ctx, u, roleID); err != nil {
		return Session{}, err
	}
	err = s.cache.Evict(ctx,
		cache.Collection(rbac.EntityUsers),
		cache.Relation(rbac.EntityRoles, roleID, rbac.RoleUsers.Name),
	)
	if err != nil {
		return Session{}, err
	}
	s.logger.Info("user registered", slog.String("id", u.ID), slog.String("role", s.defaultRole))
	return s.signIn(ctx, u)
}

// Login verifies credentials and issues a token pair.
func (s *Service) Login(ctx context.Context, in LoginInput) (Session, error) {
	u, err := s.repo.FindByEmail(ctx, strings.TrimSpace(in.Email))
	if errors.Is(err, shared.ErrNotFound) {
		return Session{}, shared.ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if !u.CanSignIn() {
		return Session{}, shared.ErrInvalidCredentials
	}
	if err := s.hasher.Compare(u.PasswordHash, in.Password); err != nil {
		return Session{}, shared.ErrInvalidCredentials
	}
	if err := s.repo.TouchLogin(ctx, u.ID, s.now().UTC()); err != nil {
		s.logger.Warn("record last login", slog.String("id", u.ID), slog.Any("error", err))
	} else if err := s.cache.Evict(ctx, cache.EntityKeys(rbac.EntityUsers, u.ID)...); err != nil {
		return Session{}, err
	}
	return s.signIn(ctx, u)
}

// Me returns the profile of the subject of an access token.
func (s *Service) Me(ctx context.Context, accessToken string) (Profile, error) {
	claims, err := s.validator.ValidateKind(accessToken, "", token.KindAccess)
	if err != nil {
		return Profile{}, err
	}
	u, err := s.activeUser(ctx, claims.Subject)
	if err != nil {
		return Profile{}, err
	}
	if u.Roles, err = s.roles.RoleNames(ctx, u.ID); err != nil {
		return Profile{}, err
	}
	now := s.now()
	return Profile{
		Data:            u,
		CurrentTime:     now.Unix(),
		CurrentDatetime: now.Format(datetimeLayout),
		TokenExpiredAt:  claims.ExpiresAtTime(),
	}, nil
}

// Refresh issues a new access token. The access token only identifies the
// subject and may already be expired; the refresh token must be valid for it.
func (s *Service) Refresh(ctx context.Context, accessToken, refreshToken string) (Refreshed, error) {
	identity, err := s.validator.Identify(accessToken)
	if err != nil {
		return Refreshed{}, err
	}
	if identity.Kind != token.KindAccess {
		return Refreshed{}, token.ErrWrongKind
	}
	if _, err := s.validator.ValidateKind(refreshToken, identity.Subject, token.KindRefresh); err != nil {
		return Refreshed{}, err
	}
	u, err := s.activeUser(ctx, identity.Subject)
	if err != nil {
		return Refreshed{}, err
	}
	principal, err := s.principal(ctx, u)
	if err != nil {
		return Refreshed{}, err
	}
	access, err := s.issuer.IssueAccess(principal)
	if err != nil {
		return Refreshed{}, err
	}
	return Refreshed{AccessToken: access.Value, Type: tokenType, ExpiresAt: access.ExpiresAt}, nil
}

// activeUser loads the token subject; missing accounts are not found while
// disabled ones can no longer authenticate.
func (s *Service) activeUser(ctx context.Context, id string) (users.User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, shared.ErrNotFound) || (err == nil && u.Deleted()) {
		return users.User{}, shared.NotFound("user with ID %s not found", id)
	}
	if err != nil {
		return users.User{}, err
	}
	if !u.CanSignIn() {
		return users.User{}, shared.Unauthorized("account is not active")
	}
	return u, nil
}

func (s *Service) principal(ctx context.Context, u users.User) (shared.Principal, error) {
	names, err := s.roles.RoleNames(ctx, u.ID)
	if err != nil {
		return shared.Principal{}, err
	}
	return shared.Principal{ID: u.ID, Name: u.Fullname, Roles: names}, nil
}

func (s *Service) signIn(ctx context.Context, u users.User) (Session, error) {
	principal, err := s.principal(ctx, u)
	if err != nil {
		return Session{}, err
	}
	pair, err := s.issuer.IssuePair(principal)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Tokens:    Tokens{AccessToken: pair.Access.Value, RefreshToken: pair.Refresh.Value},
		Type:      tokenType,
		ExpiresAt: pair.Access.ExpiresAt,
	}, nil
}
