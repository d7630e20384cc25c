package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Loader computes a value on cache miss.
type Loader func(context.Context) (any, error)

// Fills only land when the key's generation is unchanged since the loader
// started, so a read racing a mutation never re-caches the pre-mutation value.
var (
	setIfGeneration = redis.NewScript(`
local g = redis.call('GET', KEYS[2])
if not g then g = '' end
if g ~= ARGV[1] then return 0 end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)
	hsetIfGeneration = redis.NewScript(`
local g = redis.call('GET', KEYS[2])
if not g then g = '' end
if g ~= ARGV[1] then return 0 end
redis.call('HSET', KEYS[1], ARGV[2], ARGV[3])
if redis.call('PTTL', KEYS[1]) < 0 then redis.call('PEXPIRE', KEYS[1], ARGV[4]) end
return 1
`)
)

// Store is a read-aside JSON cache kept coherent by explicit eviction.
// A nil *Store is valid and always calls the loader.
type Store struct {
	client  redis.UniversalClient
	ttl     time.Duration
	logger  *slog.Logger
	metrics *Metrics
	group   singleflight.Group
}

// NewStore instantiates the cache helper.
func NewStore(client redis.UniversalClient, ttl time.Duration, logger *slog.Logger, metrics *Metrics) *Store {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, ttl: ttl, logger: logger, metrics: metrics}
}

// Fetch loads a cached value into dest or populates it using the loader.
func (s *Store) Fetch(ctx context.Context, key Key, dest any, loader Loader) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if s == nil || s.client == nil {
		return loadInto(ctx, loader, dest)
	}
	payload, err := s.client.Get(ctx, string(key)).Bytes()
	if err == nil {
		s.metrics.hit(key)
		return json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		s.logger.Warn("cache read failed, loading from storage", slog.String("key", string(key)), slog.Any("error", err))
		return loadInto(ctx, loader, dest)
	}
	s.metrics.miss(key)
	raw, err := s.fill(ctx, string(key), key, loader, func(ctx context.Context, gen string, raw []byte) error {
		return setIfGeneration.Run(ctx, s.client,
			[]string{string(key), key.generation()},
			gen, raw, s.ttl.Milliseconds()).Err()
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// FetchVariant is Fetch for one parameter variant of a collection key.
func (s *Store) FetchVariant(ctx context.Context, collection Key, variant string, dest any, loader Loader) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if s == nil || s.client == nil {
		return loadInto(ctx, loader, dest)
	}
	payload, err := s.client.HGet(ctx, string(collection), variant).Bytes()
	if err == nil {
		s.metrics.hit(collection)
		return json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		s.logger.Warn("cache read failed, loading from storage", slog.String("key", string(collection)), slog.Any("error", err))
		return loadInto(ctx, loader, dest)
	}
	s.metrics.miss(collection)
	raw, err := s.fill(ctx, string(collection)+"#"+variant, collection, loader, func(ctx context.Context, gen string, raw []byte) error {
		return hsetIfGeneration.Run(ctx, s.client,
			[]string{string(collection), collection.generation()},
			gen, variant, raw, s.ttl.Milliseconds()).Err()
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Put writes value under key directly. Used for entities that were just created.
func (s *Store) Put(ctx context.Context, key Key, value any) error {
	if s == nil || s.client == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, string(key), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("cache: put %s: %w", key, err)
	}
	return nil
}

// Evict removes keys and bumps their generations so in-flight fills are discarded.
func (s *Store) Evict(ctx context.Context, keys ...Key) error {
	if s == nil || s.client == nil || len(keys) == 0 {
		return nil
	}
	genTTL := 2 * s.ttl
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Del(ctx, string(key))
			pipe.Incr(ctx, key.generation())
			pipe.PExpire(ctx, key.generation(), genTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache: evict: %w", err)
	}
	s.metrics.evicted(keys)
	return nil
}

// fill loads a missing value once per key generation. Callers that observe a
// newer generation start their own load instead of joining one that may have
// read pre-mutation state. The shared load is detached from the leader's
// cancellation; each caller still stops waiting when its own ctx ends.
func (s *Store) fill(ctx context.Context, flight string, key Key, loader Loader, store func(context.Context, string, []byte) error) ([]byte, error) {
	gen, err := s.client.Get(ctx, key.generation()).Result()
	switch {
	case errors.Is(err, redis.Nil):
		gen = ""
	case err != nil:
		s.logger.Warn("cache generation read failed, loading from storage", slog.String("key", string(key)), slog.Any("error", err))
		return encode(ctx, key, loader)
	}
	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(flight+"@"+gen, func() (any, error) {
		raw, err := encode(detached, key, loader)
		if err != nil {
			return nil, err
		}
		if err := store(detached, gen, raw); err != nil {
			s.logger.Warn("cache fill failed", slog.String("key", string(key)), slog.Any("error", err))
		}
		return raw, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func encode(ctx context.Context, key Key, loader Loader) ([]byte, error) {
	value, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("cache: encode %s: %w", key, err)
	}
	return raw, nil
}

func loadInto(ctx context.Context, loader Loader, dest any) error {
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Through reads key through the cache with a typed loader.
func Through[T any](ctx context.Context, s *Store, key Key, load func(context.Context) (T, error)) (T, error) {
	var out T
	err := s.Fetch(ctx, key, &out, func(ctx context.Context) (any, error) {
		return load(ctx)
	})
	return out, err
}

// ThroughVariant reads one collection variant through the cache with a typed loader.
func ThroughVariant[T any](ctx context.Context, s *Store, collection Key, variant string, load func(context.Context) (T, error)) (T, error) {
	var out T
	err := s.FetchVariant(ctx, collection, variant, &out, func(ctx context.Context) (any, error) {
		return load(ctx)
	})
	return out, err
}
