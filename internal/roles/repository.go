package roles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/dealer-iam/internal/platform/db"
	"github.com/noah-isme/dealer-iam/internal/shared"
)

// ErrNotFound is returned when no row matches.
var ErrNotFound = errors.New("roles: not found")

const roleColumns = `id, name, COALESCE(description, ''), COALESCE(status, 'active'), COALESCE(last_edited_by, ''), created_at, updated_at, deleted_at`

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.Description, &role.Status, &role.LastEditedBy, &role.CreatedAt, &role.UpdatedAt, &role.DeletedAt)
	return role, err
}

// List returns one page of active roles and the total number of matches.
func (r *Repository) List(ctx context.Context, params shared.ListParams) ([]Role, int, error) {
	const where = `deleted_at IS NULL AND ($1 = '' OR name ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%')`
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM roles WHERE `+where, params.Query).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count roles: %w", err)
	}
	sql := fmt.Sprintf(`SELECT %s FROM roles WHERE %s ORDER BY %s %s, id LIMIT $2 OFFSET $3`, roleColumns, where, params.SortBy, params.SortDir)
	rows, err := r.pool.Query(ctx, sql, params.Query, params.Size, params.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()
	var out []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, role)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Get returns a role by id, including soft-deleted ones.
func (r *Repository) Get(ctx context.Context, id string) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, ErrNotFound
	}
	return role, err
}

// GetMany returns the active roles among ids.
func (r *Repository) GetMany(ctx context.Context, ids []string) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = ANY($1) AND deleted_at IS NULL ORDER BY name`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

// Create inserts a role.
func (r *Repository) Create(ctx context.Context, role Role) (Role, error) {
	created, err := scanRole(r.pool.QueryRow(ctx, `INSERT INTO roles (id, name, description, status, last_edited_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $6)
RETURNING `+roleColumns, role.ID, role.Name, role.Description, role.Status, role.LastEditedBy, role.CreatedAt))
	if err != nil {
		if _, ok := db.IsUniqueViolation(err); ok {
			return Role{}, shared.Conflict("role %q already exists", role.Name)
		}
		return Role{}, fmt.Errorf("create role: %w", err)
	}
	return created, nil
}

// Update replaces the editable fields of an active role.
func (r *Repository) Update(ctx context.Context, id string, in UpdateInput, actor string, at time.Time) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `UPDATE roles
SET name = $2, description = $3, status = $4, last_edited_by = NULLIF($5, ''), updated_at = $6
WHERE id = $1 AND deleted_at IS NULL
RETURNING `+roleColumns, id, in.Name, in.Description, in.Status, actor, at))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return Role{}, ErrNotFound
	case err != nil:
		if _, ok := db.IsUniqueViolation(err); ok {
			return Role{}, shared.Conflict("role %q already exists", in.Name)
		}
		return Role{}, fmt.Errorf("update role: %w", err)
	}
	return role, nil
}

// SoftDelete marks an active role as deleted.
func (r *Repository) SoftDelete(ctx context.Context, id, actor string, at time.Time) error {
	return r.exec(ctx, `UPDATE roles SET deleted_at = $2, updated_at = $2, last_edited_by = NULLIF($3, '') WHERE id = $1 AND deleted_at IS NULL`, id, at, actor)
}

// Restore clears the deletion marker of a soft-deleted role.
func (r *Repository) Restore(ctx context.Context, id, actor string, at time.Time) error {
	return r.exec(ctx, `UPDATE roles SET deleted_at = NULL, updated_at = $2, last_edited_by = NULLIF($3, '') WHERE id = $1 AND deleted_at IS NOT NULL`, id, at, actor)
}

// ForceDelete removes a role and its edges.
func (r *Repository) ForceDelete(ctx context.Context, id string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE role_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *Repository) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
