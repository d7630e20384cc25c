package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	metrics, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return NewStore(client, time.Minute, nil, metrics), mr
}

func counterValue(t *testing.T, vec *prometheus.CounterVec, entity string) float64 {
	t.Helper()
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(vec))
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "entity" && label.GetValue() == entity {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestThroughCachesUntilEvicted(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	calls := 0
	current := role{ID: "r1", Name: "admin"}
	load := func(context.Context) (role, error) {
		calls++
		return current, nil
	}

	got, err := Through(ctx, store, Item("roles", "r1"), load)
	require.NoError(t, err)
	assert.Equal(t, "admin", got.Name)

	current.Name = "super admin"
	got, err = Through(ctx, store, Item("roles", "r1"), load)
	require.NoError(t, err)
	assert.Equal(t, "admin", got.Name, "second read should be served from cache")
	assert.Equal(t, 1, calls)

	require.NoError(t, store.Evict(ctx, Item("roles", "r1")))
	assert.False(t, mr.Exists("roles:r1"))

	got, err = Through(ctx, store, Item("roles", "r1"), load)
	require.NoError(t, err)
	assert.Equal(t, "super admin", got.Name)
	assert.Equal(t, 2, calls)
	assert.Equal(t, float64(1), counterValue(t, store.metrics.hits, "roles"))
	assert.Equal(t, float64(2), counterValue(t, store.metrics.misses, "roles"))
}

func TestFillIsDiscardedWhenEvictedMidLoad(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	key := Item("permissions", "p1")

	_, err := Through(ctx, store, key, func(ctx context.Context) (role, error) {
		// a concurrent mutation commits and evicts while the stale row is in hand
		require.NoError(t, store.Evict(ctx, key))
		return role{ID: "p1", Name: "stale"}, nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists(string(key)), "stale fill must not be cached")

	got, err := Through(ctx, store, key, func(context.Context) (role, error) {
		return role{ID: "p1", Name: "fresh"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.Name)
	assert.True(t, mr.Exists(string(key)))
}

func TestReadAfterEvictDoesNotJoinEarlierLoad(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	key := Item("roles", "r1")
	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		got, err := Through(ctx, store, key, func(context.Context) (role, error) {
			close(started)
			<-release
			return role{ID: "r1", Name: "old"}, nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "old", got.Name)
	}()
	<-started

	// the update commits while the first read still holds the old row
	require.NoError(t, store.Evict(ctx, key))
	time.AfterFunc(100*time.Millisecond, func() { close(release) })

	got, err := Through(ctx, store, key, func(context.Context) (role, error) {
		return role{ID: "r1", Name: "new"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "new", got.Name)

	wg.Wait()
	raw, err := mr.Get(string(key))
	require.NoError(t, err)
	assert.Contains(t, raw, `"new"`)
}

func TestCancelledLeaderDoesNotFailFollowers(t *testing.T) {
	store, _ := newTestStore(t)
	key := Item("roles", "r1")
	started := make(chan struct{})
	release := make(chan struct{})
	load := func(ctx context.Context) (role, error) {
		select {
		case <-started:
		default:
			close(started)
		}
		<-release
		if err := ctx.Err(); err != nil {
			return role{}, err
		}
		return role{ID: "r1", Name: "admin"}, nil
	}

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := Through(leaderCtx, store, key, load)
		leaderErr <- err
	}()
	<-started

	type result struct {
		got role
		err error
	}
	follower := make(chan result, 1)
	go func() {
		got, err := Through(context.Background(), store, key, load)
		follower <- result{got, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)
	close(release)

	res := <-follower
	require.NoError(t, res.err)
	assert.Equal(t, "admin", res.got.Name)
}

func TestThroughVariantSharesCollectionKey(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	coll := Collection("users")
	calls := 0
	load := func(context.Context) ([]role, error) {
		calls++
		return []role{{ID: "u1"}}, nil
	}

	_, err := ThroughVariant(ctx, store, coll, "p=1", load)
	require.NoError(t, err)
	_, err = ThroughVariant(ctx, store, coll, "p=2", load)
	require.NoError(t, err)
	_, err = ThroughVariant(ctx, store, coll, "p=1", load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	fields, err := mr.HKeys(string(coll))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p=1", "p=2"}, fields)
	assert.Greater(t, mr.TTL(string(coll)), time.Duration(0))

	require.NoError(t, store.Evict(ctx, coll))
	assert.False(t, mr.Exists(string(coll)))
	_, err = ThroughVariant(ctx, store, coll, "p=2", load)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestLoaderErrorIsNotCached(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := Through(ctx, store, Item("users", "u1"), func(context.Context) (role, error) {
		return role{}, boom
	})
	require.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("users:u1"))
}

func TestConcurrentMissesLoadOnce(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) (role, error) {
		calls.Add(1)
		<-release
		return role{ID: "r1"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := Through(ctx, store, Item("roles", "r1"), load)
			assert.NoError(t, err)
			assert.Equal(t, "r1", got.ID)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, calls.Load(), int32(2))
}

func TestUnavailableRedisFallsBackToLoader(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	got, err := Through(context.Background(), store, Item("roles", "r1"), func(context.Context) (role, error) {
		return role{ID: "r1", Name: "admin"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "admin", got.Name)

	err = store.Evict(context.Background(), Item("roles", "r1"))
	assert.Error(t, err)
}

func TestNilStorePassesThrough(t *testing.T) {
	var store *Store
	got, err := Through(context.Background(), store, Item("roles", "r1"), func(context.Context) (role, error) {
		return role{ID: "r1"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID)
	assert.NoError(t, store.Evict(context.Background(), Item("roles", "r1")))
	assert.NoError(t, store.Put(context.Background(), Item("roles", "r1"), got))
}

func TestNewMetricsReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewMetrics(reg)
	require.NoError(t, err)
	second, err := NewMetrics(reg)
	require.NoError(t, err)
	assert.Same(t, first.hits, second.hits)
}
