package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/noah-isme/dealer-iam/internal/platform/cache"
	"github.com/noah-isme/dealer-iam/internal/shared"
)

var errReadOnly = errors.New("rbac: relation is read only")

// Manager validates and mutates RBAC edges and keeps the cache coherent with them.
type Manager struct {
	store  EdgeStore
	cache  *cache.Store
	logger *slog.Logger
}

// NewManager constructs a Manager. cache may be nil.
func NewManager(store EdgeStore, c *cache.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, cache: c, logger: logger}
}

// Attach adds the missing edges from owner to every related id. Either all ids
// resolve to active rows or nothing changes.
func (m *Manager) Attach(ctx context.Context, rel Relation, ownerID string, relatedIDs []string) error {
	ids, err := requestIDs(rel, relatedIDs)
	if err != nil {
		return err
	}
	err = m.store.WithTx(ctx, func(ctx context.Context, tx EdgeTx) error {
		if err := lockActiveOwner(ctx, tx, rel, ownerID); err != nil {
			return err
		}
		if err := requireActive(ctx, tx, rel, ids); err != nil {
			return err
		}
		current, err := tx.Edges(ctx, rel, ownerID)
		if err != nil {
			return fmt.Errorf("rbac: load %s of %s: %w", rel.Name, ownerID, err)
		}
		missing := difference(ids, current)
		if len(missing) == 0 {
			return nil
		}
		return tx.AddEdges(ctx, rel, ownerID, missing)
	})
	if err != nil {
		return err
	}
	return m.Invalidate(ctx, rel, ownerID, ids)
}

// Detach removes the edges from owner to the given ids. It fails when none of
// them was attached.
func (m *Manager) Detach(ctx context.Context, rel Relation, ownerID string, relatedIDs []string) error {
	ids, err := requestIDs(rel, relatedIDs)
	if err != nil {
		return err
	}
	err = m.store.WithTx(ctx, func(ctx context.Context, tx EdgeTx) error {
		if err := lockActiveOwner(ctx, tx, rel, ownerID); err != nil {
			return err
		}
		removed, err := tx.RemoveEdges(ctx, rel, ownerID, ids)
		if err != nil {
			return fmt.Errorf("rbac: detach %s of %s: %w", rel.Name, ownerID, err)
		}
		if removed == 0 {
			return shared.Conflict("no matching %s to detach", rel.Name)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return m.Invalidate(ctx, rel, ownerID, ids)
}

// Sync makes the owner's edge set exactly the given ids.
func (m *Manager) Sync(ctx context.Context, rel Relation, ownerID string, relatedIDs []string) error {
	ids, err := requestIDs(rel, relatedIDs)
	if err != nil {
		return err
	}
	var previous []string
	err = m.store.WithTx(ctx, func(ctx context.Context, tx EdgeTx) error {
		if err := lockActiveOwner(ctx, tx, rel, ownerID); err != nil {
			return err
		}
		if err := requireActive(ctx, tx, rel, ids); err != nil {
			return err
		}
		current, err := tx.Edges(ctx, rel, ownerID)
		if err != nil {
			return fmt.Errorf("rbac: load %s of %s: %w", rel.Name, ownerID, err)
		}
		previous = current
		return tx.ReplaceEdges(ctx, rel, ownerID, ids)
	})
	if err != nil {
		return err
	}
	return m.Invalidate(ctx, rel, ownerID, shared.UniqueIDs(append(previous, ids...)))
}

// Related returns the ids on the other side of rel, read through the cache.
func (m *Manager) Related(ctx context.Context, rel Relation, ownerID string) ([]string, error) {
	key := cache.Relation(rel.Owner, ownerID, rel.Name)
	ids, err := cache.Through(ctx, m.cache, key, func(ctx context.Context) ([]string, error) {
		ids, err := m.store.Related(ctx, rel, ownerID)
		if err != nil {
			return nil, fmt.Errorf("rbac: list %s of %s: %w", rel.Name, ownerID, err)
		}
		if ids == nil {
			ids = []string{}
		}
		return ids, nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Invalidate evicts the owner's item, collection and relation keys together
// with the inverse relation keys of every related id.
func (m *Manager) Invalidate(ctx context.Context, rel Relation, ownerID string, relatedIDs []string) error {
	keys := append(cache.EntityKeys(rel.Owner, ownerID), cache.Relation(rel.Owner, ownerID, rel.Name))
	for _, id := range relatedIDs {
		keys = append(keys, cache.Relation(rel.Related, id, rel.Inverse))
	}
	if err := m.cache.Evict(ctx, keys...); err != nil {
		m.logger.Error("rbac cache eviction failed", slog.String("owner", ownerID), slog.String("relation", rel.Name), slog.Any("error", err))
		return err
	}
	return nil
}

// Forget evicts every relation view touching an entity that is about to be, or
// has just been, removed.
func (m *Manager) Forget(ctx context.Context, entity, id string, related map[Relation][]string) error {
	for _, rel := range OwnedBy(entity) {
		if err := m.Invalidate(ctx, rel, id, related[rel]); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot collects the related ids of every relation owned by entity.
func (m *Manager) Snapshot(ctx context.Context, entity, id string) (map[Relation][]string, error) {
	out := make(map[Relation][]string)
	for _, rel := range OwnedBy(entity) {
		ids, err := m.store.Related(ctx, rel, id)
		if err != nil {
			return nil, fmt.Errorf("rbac: snapshot %s of %s: %w", rel.Name, id, err)
		}
		out[rel] = ids
	}
	return out, nil
}

func requestIDs(rel Relation, relatedIDs []string) ([]string, error) {
	if rel.ReadOnly {
		return nil, errReadOnly
	}
	ids := shared.UniqueIDs(relatedIDs)
	if len(ids) == 0 {
		return nil, shared.BadRequest("at least one %s id is required", singular(rel.Related))
	}
	return ids, nil
}

func lockActiveOwner(ctx context.Context, tx EdgeTx, rel Relation, ownerID string) error {
	owner, err := tx.LockOwner(ctx, rel, ownerID)
	if err != nil {
		return fmt.Errorf("rbac: lock %s %s: %w", singular(rel.Owner), ownerID, err)
	}
	if !owner.Found || !owner.Active {
		return shared.NotFound("%s with ID %s not found", singular(rel.Owner), ownerID)
	}
	return nil
}

func requireActive(ctx context.Context, tx EdgeTx, rel Relation, ids []string) error {
	active, err := tx.ActiveIDs(ctx, rel, ids)
	if err != nil {
		return fmt.Errorf("rbac: resolve %s: %w", rel.Related, err)
	}
	if len(active) != len(ids) {
		missing := difference(ids, active)
		return shared.BadRequest("not every %s was found or active: %v", singular(rel.Related), missing)
	}
	return nil
}

// difference returns the ids in want that are absent from have, in want's order.
func difference(want, have []string) []string {
	set := make(map[string]struct{}, len(have))
	for _, id := range have {
		set[id] = struct{}{}
	}
	out := make([]string, 0, len(want))
	for _, id := range want {
		if _, ok := set[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func singular(entity string) string {
	switch entity {
	case EntityUsers:
		return "user"
	case EntityRoles:
		return "role"
	case EntityPermissions:
		return "permission"
	}
	return entity
}
