package contentstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/examvault/internal/config"
	"github.com/stemsi/examvault/internal/encryption"
)

// BlobCache is the slice of a key/value cache CachedStore needs.
type BlobCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// RedisCache adapts a Redis client to BlobCache.
type RedisCache struct {
	rdb *redis.Client
}

// NewRedisCache creates a RedisCache.
func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, val, ttl).Err()
}

// CachedStore puts a cache in front of a ContentStore. Only envelopes are
// cached, so the cache never holds plaintext. Cache errors degrade to the
// underlying store.
type CachedStore struct {
	inner ContentStore
	cache BlobCache
	ttl   time.Duration
	log   zerolog.Logger
}

// NewCachedStore creates a CachedStore.
func NewCachedStore(inner ContentStore, cache BlobCache, ttl time.Duration, log zerolog.Logger) *CachedStore {
	return &CachedStore{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		log:   log.With().Str("component", "content_cache").Logger(),
	}
}

func (s *CachedStore) Publish(ctx context.Context, name string, env *encryption.Envelope) (string, error) {
	handle, err := s.inner.Publish(ctx, name, env)
	if err != nil {
		return "", err
	}
	s.store(ctx, handle, env)
	return handle, nil
}

func (s *CachedStore) Fetch(ctx context.Context, handle string) (*encryption.Envelope, error) {
	key := config.CacheKey.ContentEnvelopeKey(handle)

	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("handle", handle).Msg("Cache read failed, falling back to store")
	}
	if ok {
		var env encryption.Envelope
		if err := json.Unmarshal(raw, &env); err == nil {
			return &env, nil
		}
		s.log.Warn().Str("handle", handle).Msg("Cached envelope unreadable, refetching")
	}

	env, err := s.inner.Fetch(ctx, handle)
	if err != nil {
		return nil, err
	}
	s.store(ctx, handle, env)
	return env, nil
}

func (s *CachedStore) store(ctx context.Context, handle string, env *encryption.Envelope) {
	raw, err := json.Marshal(env)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, config.CacheKey.ContentEnvelopeKey(handle), raw, s.ttl); err != nil {
		s.log.Warn().Err(err).Str("handle", handle).Msg("Cache write failed")
	}
}
