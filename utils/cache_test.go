package utils

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	entries map[string]string
	getErr  error
	setErr  error
	gets    int
	sets    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: map[string]string{}}
}

func (f *fakeStore) Get(ctx context.Context, key string) (string, bool, error) {
	f.gets++
	if f.getErr != nil {
		return "", false, f.getErr
	}
	v, ok := f.entries[key]
	return v, ok, nil
}

func (f *fakeStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	f.entries[key] = value
	return nil
}

func (f *fakeStore) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.entries, k)
	}
	return nil
}

func (f *fakeStore) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range f.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestCacheFetchMissLoadsAndPopulates(t *testing.T) {
	store := newFakeStore()
	loads := 0

	got, err := CacheFetch(context.Background(), store, "k", time.Minute, func() (payload, error) {
		loads++
		return payload{Name: "a", Count: 2}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, payload{Name: "a", Count: 2}, got)
	assert.Equal(t, 1, loads)
	assert.Equal(t, 1, store.sets, "miss populates the cache")
}

func TestCacheFetchHitSkipsLoad(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	loads := 0

	load := func() (payload, error) {
		loads++
		return payload{Name: "fresh"}, nil
	}

	_, err := CacheFetch(ctx, store, "k", time.Minute, load)
	require.NoError(t, err)
	got, err := CacheFetch(ctx, store, "k", time.Minute, load)
	require.NoError(t, err)

	assert.Equal(t, "fresh", got.Name)
	assert.Equal(t, 1, loads, "second read served from cache")
}

func TestCacheFetchDegradesOnStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("connection refused")
	store.setErr = errors.New("connection refused")

	got, err := CacheFetch(context.Background(), store, "k", time.Minute, func() (int, error) {
		return 7, nil
	})
	require.NoError(t, err, "cache failure is invisible to the caller")
	assert.Equal(t, 7, got)
}

func TestCacheFetchCorruptEntryFallsBackToLoad(t *testing.T) {
	store := newFakeStore()
	store.entries["k"] = "{not json"

	got, err := CacheFetch(context.Background(), store, "k", time.Minute, func() (payload, error) {
		return payload{Name: "reloaded"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "reloaded", got.Name)
}

func TestCacheFetchLoadErrorNotCached(t *testing.T) {
	store := newFakeStore()
	boom := errors.New("db down")

	_, err := CacheFetch(context.Background(), store, "k", time.Minute, func() (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, store.sets, "failed loads are not cached")
}

func TestCacheFetchNilStore(t *testing.T) {
	got, err := CacheFetch(context.Background(), nil, "k", time.Minute, func() (string, error) {
		return "direct", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "direct", got)
}

func TestFingerprint(t *testing.T) {
	type q struct {
		Page int
		Term string
	}

	a := Fingerprint(q{Page: 1, Term: "x"})
	b := Fingerprint(q{Page: 1, Term: "x"})
	c := Fingerprint(q{Page: 2, Term: "x"})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16, "fixed-width hex fingerprint")
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "progress:list:plan=1", CacheKey("progress", "list", "plan=1"))
}

func TestInvalidateByPrefix(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()

	store.entries["progress:list:a"] = "1"
	store.entries["progress:list:b"] = "2"
	store.entries["progress:detail:1"] = "3"
	store.entries["plan:detail:1"] = "4"

	require.NoError(t, InvalidateByPrefix(ctx, store, "progress:list:"))

	assert.NotContains(t, store.entries, "progress:list:a")
	assert.NotContains(t, store.entries, "progress:list:b")
	assert.Contains(t, store.entries, "progress:detail:1")
	assert.Contains(t, store.entries, "plan:detail:1")
}

func TestInvalidateByPrefixEmptyNamespace(t *testing.T) {
	store := newFakeStore()
	assert.NoError(t, InvalidateByPrefix(context.Background(), store, "progress:list:"))
}
