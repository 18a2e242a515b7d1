package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrex/clinic-portal/pkg/encryption"
)

func newTestCipher(t *testing.T, key string) *encryption.AESEncryption {
	t.Helper()
	c, err := encryption.NewAESEncryption(key)
	require.NoError(t, err)
	return c
}

func setupRedisStore(t *testing.T, retention time.Duration, opts ...RedisOption) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStore(client, "portal:cache:", retention, opts...), mr
}

func newTestLRUStore(t *testing.T) Store {
	t.Helper()
	store, err := NewLRUStore(16, 0)
	require.NoError(t, err)
	return store
}

func TestStores_Contract(t *testing.T) {
	storedAt := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	stores := map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemoryStore() },
		"lru":    newTestLRUStore,
		"redis": func(t *testing.T) Store {
			store, _ := setupRedisStore(t, 0)
			return store
		},
		"encrypted redis": func(t *testing.T) Store {
			store, _ := setupRedisStore(t, 0, WithCipher(newTestCipher(t, "cache-secret")))
			return store
		},
	}

	for name, factory := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			defer store.Close()

			_, ok, err := store.Get(ctx, "/api/metrics:")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Set(ctx, "/api/metrics:", &Entry{Key: "/api/metrics:", Payload: "snapshot", StoredAt: storedAt}))
			require.NoError(t, store.Set(ctx, "/api/bills:", &Entry{Key: "/api/bills:", Payload: "bills", StoredAt: storedAt}))

			entry, ok, err := store.Get(ctx, "/api/metrics:")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "snapshot", entry.Payload)
			assert.True(t, storedAt.Equal(entry.StoredAt))

			n, err := store.Len(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			require.NoError(t, store.Delete(ctx, "/api/metrics:"))
			_, ok, _ = store.Get(ctx, "/api/metrics:")
			assert.False(t, ok)
			_, ok, _ = store.Get(ctx, "/api/bills:")
			assert.True(t, ok)

			require.NoError(t, store.Clear(ctx))
			n, err = store.Len(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestMemoryStore_Closed(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Close())

	_, _, err := store.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, store.Set(context.Background(), "k", &Entry{}), ErrClosed)
}

func TestLRUStore_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	store, err := NewLRUStore(2, 0)
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, "a", &Entry{Key: "a"}))
	require.NoError(t, store.Set(ctx, "b", &Entry{Key: "b"}))
	_, _, _ = store.Get(ctx, "a")
	require.NoError(t, store.Set(ctx, "c", &Entry{Key: "c"}))

	_, ok, _ := store.Get(ctx, "b")
	assert.False(t, ok)
	_, ok, _ = store.Get(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, int64(1), store.Evictions())
}

func TestNewLRUStore_InvalidSize(t *testing.T) {
	_, err := NewLRUStore(0, 0)
	assert.Error(t, err)
}

func TestRedisStore_ClearKeepsForeignKeys(t *testing.T) {
	ctx := context.Background()
	store, mr := setupRedisStore(t, 0)

	require.NoError(t, mr.Set("session:abc", "keep"))
	require.NoError(t, store.Set(ctx, "/api/doctors:", &Entry{Key: "/api/doctors:", Payload: []string{"d1"}}))

	require.NoError(t, store.Clear(ctx))

	assert.True(t, mr.Exists("session:abc"))
	assert.False(t, mr.Exists("portal:cache:/api/doctors:"))
}

func TestRedisStore_Retention(t *testing.T) {
	ctx := context.Background()
	store, mr := setupRedisStore(t, time.Minute)

	require.NoError(t, store.Set(ctx, "/api/bills:", &Entry{Key: "/api/bills:", Payload: 1}))
	assert.Equal(t, time.Minute, mr.TTL("portal:cache:/api/bills:"))

	mr.FastForward(2 * time.Minute)

	_, ok, err := store.Get(ctx, "/api/bills:")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	store, mr := setupRedisStore(t, 0)

	require.NoError(t, mr.Set("portal:cache:/api/bills:", "{not json"))

	_, ok, err := store.Get(ctx, "/api/bills:")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("portal:cache:/api/bills:"))
}

func TestRedisStore_Ping(t *testing.T) {
	store, mr := setupRedisStore(t, 0)
	assert.NoError(t, store.Ping(context.Background()))

	mr.Close()
	assert.Error(t, store.Ping(context.Background()))
}

func TestRedisStore_EncryptsPayloads(t *testing.T) {
	ctx := context.Background()
	store, mr := setupRedisStore(t, 0, WithCipher(newTestCipher(t, "cache-secret")))

	require.NoError(t, store.Set(ctx, "/api/patients:", &Entry{Key: "/api/patients:", Payload: "pat-2001", StoredAt: time.Now()}))

	raw, err := mr.Get("portal:cache:/api/patients:")
	require.NoError(t, err)
	assert.NotContains(t, raw, "pat-2001")

	// a replica holding a different key cannot read the entry and drops it
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	other := NewRedisStore(client, "portal:cache:", 0, WithCipher(newTestCipher(t, "rotated-secret")))
	defer other.Close()

	_, ok, err := other.Get(ctx, "/api/patients:")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("portal:cache:/api/patients:"))
}
