package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/dealer-iam/internal/auth"
	"github.com/noah-isme/dealer-iam/internal/observability"
	"github.com/noah-isme/dealer-iam/internal/permissions"
	"github.com/noah-isme/dealer-iam/internal/platform/cache"
	"github.com/noah-isme/dealer-iam/internal/ratelimit"
	"github.com/noah-isme/dealer-iam/internal/rbac"
	"github.com/noah-isme/dealer-iam/internal/roles"
	"github.com/noah-isme/dealer-iam/internal/token"
	"github.com/noah-isme/dealer-iam/internal/users"
)

// Deps are the process-level resources the container is assembled from.
type Deps struct {
	Config  *Config
	Logger  *slog.Logger
	Pool    *pgxpool.Pool
	Redis   redis.UniversalClient
	Metrics *observability.Metrics
}

// Container holds the assembled HTTP surface and the components whose
// lifecycle the caller manages.
type Container struct {
	Router  http.Handler
	Limiter *ratelimit.Limiter
	Issuer  *token.Issuer
}

// Build wires repositories, services and handlers.
func Build(deps Deps) (*Container, error) {
	cfg := deps.Config
	if cfg == nil {
		return nil, errors.New("app: config required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	issuer, validatorTok, err := buildTokens(cfg)
	if err != nil {
		return nil, err
	}

	var cacheMetrics *cache.Metrics
	if deps.Metrics != nil {
		if cacheMetrics, err = cache.NewMetrics(deps.Metrics.Registerer()); err != nil {
			return nil, fmt.Errorf("app: cache metrics: %w", err)
		}
	}
	var store *cache.Store
	if deps.Redis != nil {
		store = cache.NewStore(deps.Redis, cfg.CacheTTL, logger, cacheMetrics)
	}

	limiter, err := ratelimit.New(ratelimit.Config{
		MaxRequests: cfg.RateLimitMax,
		Window:      cfg.RateLimitWindow,
		MaxClients:  cfg.RateLimitMaxClients,
	}, ratelimit.WithLogger(logger), ratelimit.WithRejectionCounter(deps.Metrics.RateLimited()))
	if err != nil {
		return nil, fmt.Errorf("app: rate limiter: %w", err)
	}

	validate := validator.New()
	guard := rbac.Middleware{Logger: logger}
	edges := rbac.NewManager(rbac.NewRepository(deps.Pool), store, logger)

	userService := users.NewService(users.NewRepository(deps.Pool), store, edges, logger)
	roleService := roles.NewService(roles.NewRepository(deps.Pool), store, edges, logger)
	permissionService := permissions.NewService(permissions.NewRepository(deps.Pool), store, edges, logger)

	hasher := auth.BcryptHasher{}
	if InTestMode() {
		hasher.Cost = bcrypt.MinCost
	}
	authService := auth.NewService(auth.Config{
		Repo:        auth.NewRepository(deps.Pool),
		Hasher:      hasher,
		Issuer:      issuer,
		Validator:   validatorTok,
		Roles:       auth.NewRoleResolver(edges, roleService),
		Cache:       store,
		Logger:      logger,
		DefaultRole: cfg.AuthDefaultRole,
	})

	relation := func(rel rbac.Relation, owners, related rbac.Directory) *rbac.RelationHandler {
		return rbac.NewRelationHandler(logger, edges, validate, rel, owners, related, guard)
	}
	limit := limiter.Middleware

	router := NewRouter(RouterParams{
		Logger:      logger,
		Config:      cfg,
		AuthHandler: auth.NewHandler(logger, authService, validate, limit),
		UsersHandler: users.NewHandler(logger, userService, validate, guard,
			relation(rbac.UserRoles, userService, roleService)),
		RolesHandler: roles.NewHandler(logger, roleService, validate, guard,
			relation(rbac.RolePermissions, roleService, permissionService),
			relation(rbac.RoleUsers, roleService, userService)),
		PermissionsHandler: permissions.NewHandler(logger, permissionService, validate, guard,
			relation(rbac.PermissionRoles, permissionService, roleService)),
		Limit:        limit,
		Authenticate: auth.Middleware{Validator: validatorTok, Logger: logger}.Authenticate,
		Metrics:      deps.Metrics,
		Ready:        readiness(deps.Pool, deps.Redis),
	})

	return &Container{Router: router, Limiter: limiter, Issuer: issuer}, nil
}

func buildTokens(cfg *Config) (*token.Issuer, *token.Validator, error) {
	private, public, err := cfg.TokenKeys()
	if err != nil {
		return nil, nil, err
	}
	keys, err := token.ParseKeyPair(private, public)
	if err != nil {
		return nil, nil, err
	}
	codec, err := token.NewCodec(keys)
	if err != nil {
		return nil, nil, err
	}
	issuer, err := token.NewIssuer(codec, token.IssuerConfig{
		Issuer:     cfg.TokenIssuer,
		AccessTTL:  cfg.TokenAccessTTL,
		RefreshTTL: cfg.TokenRefreshTTL,
	})
	if err != nil {
		return nil, nil, err
	}
	return issuer, token.NewValidator(codec), nil
}
