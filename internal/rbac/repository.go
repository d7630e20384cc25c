package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/dealer-iam/internal/platform/db"
)

// Repository is the PostgreSQL EdgeStore. Table and column names come from
// the Relation values declared in this package, never from input.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	q db.Querier
}

// WithTx runs fn inside a RepeatableRead transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, EdgeTx) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{q: tx})
	})
}

// Related lists the related ids of owner.
func (r *Repository) Related(ctx context.Context, rel Relation, ownerID string) ([]string, error) {
	return edges(ctx, r.pool, rel, ownerID)
}

func (t *txRepo) LockOwner(ctx context.Context, rel Relation, ownerID string) (Owner, error) {
	sql := fmt.Sprintf(`SELECT deleted_at IS NULL FROM %s WHERE id = $1 FOR UPDATE`, rel.Owner)
	var active bool
	if err := t.q.QueryRow(ctx, sql, ownerID).Scan(&active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Owner{}, nil
		}
		return Owner{}, err
	}
	return Owner{Found: true, Active: active}, nil
}

func (t *txRepo) ActiveIDs(ctx context.Context, rel Relation, ids []string) ([]string, error) {
	// FOR SHARE keeps the rows from being soft deleted before commit.
	sql := fmt.Sprintf(`SELECT id FROM %s WHERE id = ANY($1) AND deleted_at IS NULL FOR SHARE`, rel.Related)
	rows, err := t.q.Query(ctx, sql, ids)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (t *txRepo) Edges(ctx context.Context, rel Relation, ownerID string) ([]string, error) {
	return edges(ctx, t.q, rel, ownerID)
}

func (t *txRepo) AddEdges(ctx context.Context, rel Relation, ownerID string, ids []string) error {
	sql := fmt.Sprintf(`INSERT INTO %s (%s, %s)
SELECT $1, related FROM unnest($2::text[]) AS related
ON CONFLICT DO NOTHING`, rel.Table, rel.OwnerColumn, rel.RelatedColumn)
	_, err := t.q.Exec(ctx, sql, ownerID, ids)
	return err
}

func (t *txRepo) RemoveEdges(ctx context.Context, rel Relation, ownerID string, ids []string) (int64, error) {
	sql := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND %s = ANY($2)`, rel.Table, rel.OwnerColumn, rel.RelatedColumn)
	tag, err := t.q.Exec(ctx, sql, ownerID, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *txRepo) ReplaceEdges(ctx context.Context, rel Relation, ownerID string, ids []string) error {
	sql := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND NOT (%s = ANY($2))`, rel.Table, rel.OwnerColumn, rel.RelatedColumn)
	if _, err := t.q.Exec(ctx, sql, ownerID, ids); err != nil {
		return err
	}
	return t.AddEdges(ctx, rel, ownerID, ids)
}

func edges(ctx context.Context, q db.Querier, rel Relation, ownerID string) ([]string, error) {
	sql := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 ORDER BY %s`, rel.RelatedColumn, rel.Table, rel.OwnerColumn, rel.RelatedColumn)
	rows, err := q.Query(ctx, sql, ownerID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
