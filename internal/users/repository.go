package users

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
var ErrNotFound = errors.New("users: not found")

// Columns selected for every user read, in scan order.
const Columns = `id, fullname, COALESCE(bio, ''), email, phone_number, COALESCE(address, ''),
COALESCE(account_status, 'active'), COALESCE(active_status, 'offline'), COALESCE(avatar_url, ''), password_hash,
password_changed_at, last_login_at, COALESCE(last_edited_by, ''), created_at, updated_at, deleted_at`

// Scan reads one row selected with Columns.
func Scan(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Fullname, &u.Bio, &u.Email, &u.PhoneNumber, &u.Address,
		&u.AccountStatus, &u.ActiveStatus, &u.AvatarURL, &u.PasswordHash,
		&u.PasswordChangedAt, &u.LastLoginAt, &u.LastEditedBy, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt)
	return u, err
}

// UniqueConflict maps a unique violation on users to a conflict naming the
// field, or returns nil for any other error.
func UniqueConflict(err error) error {
	constraint, ok := db.IsUniqueViolation(err)
	if !ok {
		return nil
	}
	if constraint == "users_phone_number_key" {
		return shared.Conflict("phone number is already registered")
	}
	return shared.Conflict("email is already registered")
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListUsers returns one page of active users and the total number of matches.
func (r *Repository) ListUsers(ctx context.Context, params shared.ListParams) ([]User, int, error) {
	const where = `deleted_at IS NULL AND (@q = '' OR fullname ILIKE '%' || @q || '%' OR email ILIKE '%' || @q || '%' OR phone_number ILIKE '%' || @q || '%')`
	args := pgx.NamedArgs{"q": params.Query, "limit": params.Size, "offset": params.Offset()}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM users WHERE `+where, args).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	sql := fmt.Sprintf(`SELECT %s FROM users WHERE %s ORDER BY %s %s NULLS LAST, id LIMIT @limit OFFSET @offset`, Columns, where, params.SortBy, params.SortDir)
	rows, err := r.pool.Query(ctx, sql, args)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := Scan(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

// GetUser returns a user by id, soft-deleted rows included.
func (r *Repository) GetUser(ctx context.Context, id string) (User, error) {
	u, err := Scan(r.pool.QueryRow(ctx, `SELECT `+Columns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// GetUsers returns the active users among ids.
func (r *Repository) GetUsers(ctx context.Context, ids []string) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+Columns+` FROM users WHERE id = ANY($1) AND deleted_at IS NULL ORDER BY fullname`, ids)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (User, error) {
		return Scan(row)
	})
}

// UpdateUser replaces the profile fields of an active user.
func (r *Repository) UpdateUser(ctx context.Context, id string, in UpdateInput, actor string, at time.Time) (User, error) {
	u, err := Scan(r.pool.QueryRow(ctx, `UPDATE users
SET fullname = @fullname, bio = @bio, email = @email, phone_number = @phone, address = @address,
    avatar_url = NULLIF(@avatar, ''), last_edited_by = NULLIF(@actor, ''), updated_at = @at
WHERE id = @id AND deleted_at IS NULL
RETURNING `+Columns, pgx.NamedArgs{
		"id":       id,
		"fullname": in.Fullname,
		"bio":      in.Bio,
		"email":    in.Email,
		"phone":    in.PhoneNumber,
		"address":  in.Address,
		"avatar":   in.AvatarURL,
		"actor":    actor,
		"at":       at,
	}))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		if conflict := UniqueConflict(err); conflict != nil {
			return User{}, conflict
		}
		return User{}, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

// SoftDeleteUser marks an active user as deleted.
func (r *Repository) SoftDeleteUser(ctx context.Context, id, actor string, at time.Time) error {
	return r.exec(ctx, `UPDATE users SET deleted_at = $2, updated_at = $2, last_edited_by = NULLIF($3, '') WHERE id = $1 AND deleted_at IS NULL`, id, at, actor)
}

// RestoreUser clears the deletion marker.
func (r *Repository) RestoreUser(ctx context.Context, id, actor string, at time.Time) error {
	return r.exec(ctx, `UPDATE users SET deleted_at = NULL, updated_at = $2, last_edited_by = NULLIF($3, '') WHERE id = $1 AND deleted_at IS NOT NULL`, id, at, actor)
}

// ForceDeleteUser removes a user and its role grants.
func (r *Repository) ForceDeleteUser(ctx context.Context, id string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
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
