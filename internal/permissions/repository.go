package permissions

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
var ErrNotFound = errors.New("permissions: not found")

const columns = `id, name, COALESCE(description, ''), COALESCE(status, 'active'), COALESCE(last_edited_by, ''), created_at, updated_at, deleted_at`

const searchFilter = `deleted_at IS NULL AND ($1 = '' OR name ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%')`

// Repository provides PostgreSQL backed persistence for permissions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns one page of active permissions and the total number of matches.
func (r *Repository) List(ctx context.Context, params shared.ListParams) ([]Permission, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM permissions WHERE `+searchFilter, params.Query).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count permissions: %w", err)
	}
	sql := fmt.Sprintf(`SELECT %s FROM permissions WHERE %s ORDER BY %s %s, id LIMIT $2 OFFSET $3`, columns, searchFilter, params.SortBy, params.SortDir)
	rows, err := r.pool.Query(ctx, sql, params.Query, params.Size, params.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list permissions: %w", err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Permission])
	if err != nil {
		return nil, 0, fmt.Errorf("scan permissions: %w", err)
	}
	return items, total, nil
}

// Get returns a permission by id, soft-deleted rows included.
func (r *Repository) Get(ctx context.Context, id string) (Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM permissions WHERE id = $1`, id)
	if err != nil {
		return Permission{}, err
	}
	perm, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Permission])
	if errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, ErrNotFound
	}
	return perm, err
}

// GetMany returns the active permissions among ids.
func (r *Repository) GetMany(ctx context.Context, ids []string) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM permissions WHERE id = ANY($1) AND deleted_at IS NULL ORDER BY name`, ids)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Permission])
}

// Create inserts a permission.
func (r *Repository) Create(ctx context.Context, p Permission) (Permission, error) {
	rows, err := r.pool.Query(ctx, `INSERT INTO permissions (id, name, description, status, last_edited_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $6)
RETURNING `+columns, p.ID, p.Name, p.Description, p.Status, p.LastEditedBy, p.CreatedAt)
	if err != nil {
		return Permission{}, fmt.Errorf("create permission: %w", err)
	}
	created, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Permission])
	if err != nil {
		if _, ok := db.IsUniqueViolation(err); ok {
			return Permission{}, shared.Conflict("permission %q already exists", p.Name)
		}
		return Permission{}, fmt.Errorf("create permission: %w", err)
	}
	return created, nil
}

// Update replaces the editable fields of an active permission.
func (r *Repository) Update(ctx context.Context, id string, in UpdateInput, actor string, at time.Time) (Permission, error) {
	rows, err := r.pool.Query(ctx, `UPDATE permissions
SET name = $2, description = $3, status = $4, last_edited_by = NULLIF($5, ''), updated_at = $6
WHERE id = $1 AND deleted_at IS NULL
RETURNING `+columns, id, in.Name, in.Description, in.Status, actor, at)
	if err != nil {
		return Permission{}, fmt.Errorf("update permission: %w", err)
	}
	perm, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Permission])
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return Permission{}, ErrNotFound
	case err != nil:
		if _, ok := db.IsUniqueViolation(err); ok {
			return Permission{}, shared.Conflict("permission %q already exists", in.Name)
		}
		return Permission{}, fmt.Errorf("update permission: %w", err)
	}
	return perm, nil
}

// SoftDelete marks an active permission as deleted.
func (r *Repository) SoftDelete(ctx context.Context, id, actor string, at time.Time) error {
	return r.exec(ctx, `UPDATE permissions SET deleted_at = $2, updated_at = $2, last_edited_by = NULLIF($3, '') WHERE id = $1 AND deleted_at IS NULL`, id, at, actor)
}

// Restore clears the deletion marker.
func (r *Repository) Restore(ctx context.Context, id, actor string, at time.Time) error {
	return r.exec(ctx, `UPDATE permissions SET deleted_at = NULL, updated_at = $2, last_edited_by = NULLIF($3, '') WHERE id = $1 AND deleted_at IS NOT NULL`, id, at, actor)
}

// ForceDelete removes a permission and its role grants.
func (r *Repository) ForceDelete(ctx context.Context, id string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE permission_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
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
