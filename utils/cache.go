package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultCacheTTL bounds staleness of every cached query result.
	DefaultCacheTTL = 300 * time.Second

	// KeySeparator delimits cache key segments: prefix:op:scope...:fingerprint
	KeySeparator = ":"
)

// CacheStore is the port the caching layer and the invalidation cascade talk
// to. The backing store is an accelerator only; it is always safe to treat any
// failure as a miss.
type CacheStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
}

// redisCacheStore implements CacheStore over go-redis.
type redisCacheStore struct {
	rc *redis.Client
}

// NewRedisCacheStore wraps a Redis client as a CacheStore.
func NewRedisCacheStore(rc *redis.Client) CacheStore {
	return &redisCacheStore{rc: rc}
}

func (s *redisCacheStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.rc == nil {
		return "", false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	v, err := s.rc.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *redisCacheStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if s.rc == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.rc.Set(ctx, key, value, ttl).Err()
}

func (s *redisCacheStore) Del(ctx context.Context, keys ...string) error {
	if s.rc == nil || len(keys) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	pipe := s.rc.Pipeline()
	for _, k := range keys {
		pipe.Del(ctx, k)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *redisCacheStore) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	if s.rc == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var keys []string
	var cursor uint64
	for i := 0; i < 10; i++ { // limit rounds to avoid long loops
		batch, cur, err := s.rc.Scan(ctx, cursor, pattern, 1000).Result()
		if err != nil {
			return keys, err
		}
		keys = append(keys, batch...)
		cursor = cur
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

// CacheKey joins key segments with the standard separator.
func CacheKey(parts ...string) string {
	return strings.Join(parts, KeySeparator)
}

// Fingerprint derives a deterministic short hash from an operation's
// parameters, so every distinct (pagination, filter, scoping) combination gets
// its own cache slot without unbounded key length.
func Fingerprint(params any) string {
	b, err := json.Marshal(params)
	if err != nil {
		// Marshal only fails for exotic types; fall back to the Go syntax
		// representation rather than colliding everything on one key.
		b = []byte(fmt.Sprintf("%#v", params))
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(b))
}

// CacheFetch is the read-through path: try the cache, fall back to load, then
// populate the cache best-effort. Hit and miss are observationally identical
// to the caller; any cache failure degrades to a direct load. Date fields come
// back through the JSON round-trip as time.Time values.
func CacheFetch[T any](ctx context.Context, store CacheStore, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	var zero T
	if store != nil {
		raw, ok, err := store.Get(ctx, key)
		if err != nil {
			if Sugar != nil {
				Sugar.Debugf("cache get failed key=%s err=%v", key, err)
			}
		} else if ok {
			var out T
			if uerr := json.Unmarshal([]byte(raw), &out); uerr == nil {
				return out, nil
			} else if Sugar != nil {
				Sugar.Warnf("cache entry corrupt key=%s err=%v", key, uerr)
			}
		}
	}

	out, err := load()
	if err != nil {
		return zero, err
	}

	if store != nil {
		if b, merr := json.Marshal(out); merr == nil {
			if serr := store.Set(ctx, key, string(b), ttl); serr != nil && Sugar != nil {
				Sugar.Warnf("cache set failed key=%s err=%v", key, serr)
			}
		}
	}
	return out, nil
}

// InvalidateByPrefix deletes every key under the given prefix using SCAN.
// Individual parameter fingerprints of past reads are not tracked, so pattern
// scanning is the only way to clear a namespace.
func InvalidateByPrefix(ctx context.Context, store CacheStore, prefix string) error {
	if store == nil {
		return nil
	}
	keys, err := store.ScanKeys(ctx, prefix+"*")
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return store.Del(ctx, keys...)
}
