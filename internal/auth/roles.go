package auth

import (
	"context"

	"github.com/noah-isme/dealer-iam/internal/rbac"
)

// RoleResolver returns the names of the active roles a user holds.
type RoleResolver interface {
	RoleNames(ctx context.Context, userID string) ([]string, error)
}

type graphRoles struct {
	edges *rbac.Manager
	roles rbac.Directory
}

// NewRoleResolver resolves role names through the cached user-role relation.
func NewRoleResolver(edges *rbac.Manager, roles rbac.Directory) RoleResolver {
	return graphRoles{edges: edges, roles: roles}
}

func (g graphRoles) RoleNames(ctx context.Context, userID string) ([]string, error) {
	ids, err := g.edges.Related(ctx, rbac.UserRoles, userID)
	if err != nil {
		return nil, err
	}
	summaries, err := g.roles.Summaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(summaries))
	for i, s := range summaries {
		names[i] = s.Name
	}
	return names, nil
}
