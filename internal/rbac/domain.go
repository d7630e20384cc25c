package rbac

import (
	"context"
)

// Entity type names. They double as table names and cache key prefixes.
const (
	EntityUsers       = "users"
	EntityRoles       = "roles"
	EntityPermissions = "permissions"
)

// Relation describes one side of a many-to-many join table.
type Relation struct {
	// Name is the relation as seen from the owner, e.g. "permissions" on a role.
	Name    string
	Owner   string
	Related string
	// Inverse is the relation name on the related side.
	Inverse       string
	Table         string
	OwnerColumn   string
	RelatedColumn string
	ReadOnly      bool
}

var (
	RolePermissions = Relation{
		Name: EntityPermissions, Owner: EntityRoles, Related: EntityPermissions, Inverse: EntityRoles,
		Table: "role_permissions", OwnerColumn: "role_id", RelatedColumn: "permission_id",
	}
	PermissionRoles = Relation{
		Name: EntityRoles, Owner: EntityPermissions, Related: EntityRoles, Inverse: EntityPermissions,
		Table: "role_permissions", OwnerColumn: "permission_id", RelatedColumn: "role_id",
	}
	UserRoles = Relation{
		Name: EntityRoles, Owner: EntityUsers, Related: EntityRoles, Inverse: EntityUsers,
		Table: "user_roles", OwnerColumn: "user_id", RelatedColumn: "role_id",
	}
	// RoleUsers is read only; membership is managed from the user side.
	RoleUsers = Relation{
		Name: EntityUsers, Owner: EntityRoles, Related: EntityUsers, Inverse: EntityRoles,
		Table: "user_roles", OwnerColumn: "role_id", RelatedColumn: "user_id",
		ReadOnly: true,
	}
)

// Relations lists every relation, used when an entity is removed for good.
var Relations = []Relation{RolePermissions, PermissionRoles, UserRoles, RoleUsers}

// OwnedBy returns the relations whose owner is entity.
func OwnedBy(entity string) []Relation {
	out := make([]Relation, 0, 2)
	for _, rel := range Relations {
		if rel.Owner == entity {
			out = append(out, rel)
		}
	}
	return out
}

// Owner is the lock-time state of the relation owner.
type Owner struct {
	Found  bool
	Active bool
}

// EdgeStore is the transactional join-table storage.
type EdgeStore interface {
	WithTx(ctx context.Context, fn func(context.Context, EdgeTx) error) error
	Related(ctx context.Context, rel Relation, ownerID string) ([]string, error)
}

// EdgeTx groups the edge operations available inside one transaction.
type EdgeTx interface {
	// LockOwner locks the owner row for the rest of the transaction.
	LockOwner(ctx context.Context, rel Relation, ownerID string) (Owner, error)
	// ActiveIDs returns the subset of ids naming non-deleted related rows.
	ActiveIDs(ctx context.Context, rel Relation, ids []string) ([]string, error)
	Edges(ctx context.Context, rel Relation, ownerID string) ([]string, error)
	AddEdges(ctx context.Context, rel Relation, ownerID string, ids []string) error
	RemoveEdges(ctx context.Context, rel Relation, ownerID string, ids []string) (int64, error)
	ReplaceEdges(ctx context.Context, rel Relation, ownerID string, ids []string) error
}
