package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/dealer-iam/internal/platform/db"
	"github.com/noah-isme/dealer-iam/internal/shared"
	"github.com/noah-isme/dealer-iam/internal/users"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	// DefaultRoleID returns the id of the active role named name.
	DefaultRoleID(ctx context.Context, name string) (string, error)
	// CreateUser inserts user and grants it roleID in one transaction.
	CreateUser(ctx context.Context, user users.User, roleID string) error
	FindByEmail(ctx context.Context, email string) (users.User, error)
	FindByID(ctx context.Context, id string) (users.User, error)
	TouchLogin(ctx context.Context, id string, at time.Time) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// DefaultRoleID looks up the role granted on registration.
func (r *PGRepository) DefaultRoleID(ctx context.Context, name string) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `SELECT id FROM roles WHERE name = $1 AND deleted_at IS NULL`, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", shared.ErrNotFound
	}
	return id, err
}

// CreateUser persists a new account with its first role.
func (r *PGRepository) CreateUser(ctx context.Context, u users.User, roleID string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO users
    (id, fullname, bio, email, password_hash, phone_number, address, account_status, active_status, avatar_url, password_changed_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $11, $11)`,
			u.ID, u.Fullname, u.Bio, u.Email, u.PasswordHash, u.PhoneNumber, u.Address,
			u.AccountStatus, u.ActiveStatus, u.AvatarURL, u.CreatedAt)
		if err != nil {
			if conflict := users.UniqueConflict(err); conflict != nil {
				return conflict
			}
			return fmt.Errorf("insert user: %w", err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`, u.ID, roleID); err != nil {
			return fmt.Errorf("grant default role: %w", err)
		}
		return nil
	})
}

// FindByEmail fetches a user by email, soft-deleted rows included.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (users.User, error) {
	return r.find(ctx, `lower(email) = lower($1)`, email)
}

// FindByID fetches a user by id, soft-deleted rows included.
func (r *PGRepository) FindByID(ctx context.Context, id string) (users.User, error) {
	return r.find(ctx, `id = $1`, id)
}

func (r *PGRepository) find(ctx context.Context, where string, arg string) (users.User, error) {
	u, err := users.Scan(r.pool.QueryRow(ctx, `SELECT `+users.Columns+` FROM users WHERE `+where, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return users.User{}, shared.ErrNotFound
	}
	return u, err
}

// TouchLogin records a successful sign in.
func (r *PGRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at)
	return err
}

var _ Repository = (*PGRepository)(nil)
