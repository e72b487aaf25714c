package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/storesync/backend/internal/domain/integration"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// ---------------------------------------------------------------------------
// Rate limit
// ---------------------------------------------------------------------------

func rateLimitStores(t *testing.T) map[string]struct {
	store RateLimitStore
	clock *fakeClock
} {
	_, client := setupTestRedis(t)

	redisClock := &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	redisStore := NewRedisRateLimitStore(client, "test:rl:")
	redisStore.now = redisClock.Now

	memClock := &fakeClock{t: redisClock.t}
	memStore := NewInMemoryRateLimitStore(time.Minute)
	memStore.now = memClock.Now
	t.Cleanup(func() { _ = memStore.Close() })

	return map[string]struct {
		store RateLimitStore
		clock *fakeClock
	}{
		"redis":    {redisStore, redisClock},
		"inmemory": {memStore, memClock},
	}
}

func TestRateLimitStore_Boundary(t *testing.T) {
	const limit = 3
	for name, tc := range rateLimitStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := "tenant-1:10.0.0.1"

			var remaining []int
			for i := 0; i < limit; i++ {
				allowed, rem, err := tc.store.Allow(ctx, key, limit, time.Minute)
				require.NoError(t, err)
				require.True(t, allowed, "request %d should be allowed", i+1)
				remaining = append(remaining, rem)
				tc.clock.Advance(time.Millisecond)
			}
			assert.Equal(t, []int{2, 1, 0}, remaining)

			allowed, rem, err := tc.store.Allow(ctx, key, limit, time.Minute)
			require.NoError(t, err)
			assert.False(t, allowed)
			assert.Equal(t, 0, rem)
		})
	}
}

func TestRateLimitStore_KeysAreIsolated(t *testing.T) {
	for name, tc := range rateLimitStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			allowed, _, err := tc.store.Allow(ctx, "tenant-1:10.0.0.1", 1, time.Minute)
			require.NoError(t, err)
			require.True(t, allowed)

			allowed, _, err = tc.store.Allow(ctx, "tenant-1:10.0.0.1", 1, time.Minute)
			require.NoError(t, err)
			assert.False(t, allowed)

			allowed, _, err = tc.store.Allow(ctx, "tenant-2:10.0.0.1", 1, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed, "another tenant behind the same IP has its own window")
		})
	}
}

func TestRateLimitStore_WindowSlides(t *testing.T) {
	for name, tc := range rateLimitStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := "tenant-3:10.0.0.9"

			allowed, _, err := tc.store.Allow(ctx, key, 2, time.Second)
			require.NoError(t, err)
			require.True(t, allowed)
			tc.clock.Advance(600 * time.Millisecond)

			allowed, _, err = tc.store.Allow(ctx, key, 2, time.Second)
			require.NoError(t, err)
			require.True(t, allowed)

			allowed, _, err = tc.store.Allow(ctx, key, 2, time.Second)
			require.NoError(t, err)
			require.False(t, allowed)

			// the first hit leaves the window, the second is still inside it
			tc.clock.Advance(500 * time.Millisecond)
			allowed, rem, err := tc.store.Allow(ctx, key, 2, time.Second)
			require.NoError(t, err)
			assert.True(t, allowed)
			assert.Equal(t, 0, rem)
		})
	}
}

func TestRedisRateLimitStore_ErrorWhenRedisDown(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewRedisRateLimitStore(client, "")
	mr.Close()

	_, _, err := store.Allow(context.Background(), "k", 1, time.Minute)
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// Tenant lease
// ---------------------------------------------------------------------------

func TestTenantLocker(t *testing.T) {
	_, client := setupTestRedis(t)
	lockers := map[string]integration.TenantLocker{
		"redis":    NewRedisTenantLocker(client, "test:lease:"),
		"inmemory": NewInMemoryTenantLocker(),
	}

	for name, locker := range lockers {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			tenantID := uuid.New()

			lease, err := locker.TryAcquire(ctx, tenantID, time.Minute)
			require.NoError(t, err)

			_, err = locker.TryAcquire(ctx, tenantID, time.Minute)
			assert.ErrorIs(t, err, integration.ErrTenantLeaseHeld)

			other, err := locker.TryAcquire(ctx, uuid.New(), time.Minute)
			require.NoError(t, err, "leases are per tenant")
			require.NoError(t, other.Release(ctx))

			require.NoError(t, lease.Release(ctx))
			again, err := locker.TryAcquire(ctx, tenantID, time.Minute)
			require.NoError(t, err)
			require.NoError(t, again.Release(ctx))
		})
	}
}

func TestRedisTenantLocker_ExpiredLeaseCannotReleaseNewHolder(t *testing.T) {
	mr, client := setupTestRedis(t)
	locker := NewRedisTenantLocker(client, "")
	ctx := context.Background()
	tenantID := uuid.New()

	stale, err := locker.TryAcquire(ctx, tenantID, time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	fresh, err := locker.TryAcquire(ctx, tenantID, time.Minute)
	require.NoError(t, err, "expired lease can be taken over")

	require.NoError(t, stale.Release(ctx))
	_, err = locker.TryAcquire(ctx, tenantID, time.Minute)
	assert.ErrorIs(t, err, integration.ErrTenantLeaseHeld, "stale release must not drop the new holder")

	require.NoError(t, fresh.Release(ctx))
}

func TestInMemoryTenantLocker_Expiry(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	locker := NewInMemoryTenantLocker()
	locker.now = clock.Now
	tenantID := uuid.New()

	_, err := locker.TryAcquire(context.Background(), tenantID, time.Second)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, err = locker.TryAcquire(context.Background(), tenantID, time.Second)
	assert.NoError(t, err)
}

// ---------------------------------------------------------------------------
// Delivery store
// ---------------------------------------------------------------------------

func TestDeliveryStore(t *testing.T) {
	_, client := setupTestRedis(t)
	mem := NewInMemoryDeliveryStore()
	defer mem.Close()

	stores := map[string]integration.DeliveryStore{
		"redis":    NewRedisDeliveryStore(client, ""),
		"inmemory": mem,
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			seen, err := store.IsProcessed(ctx, "delivery-1")
			require.NoError(t, err)
			assert.False(t, seen)

			isNew, err := store.MarkProcessed(ctx, "delivery-1", time.Hour)
			require.NoError(t, err)
			assert.True(t, isNew)

			isNew, err = store.MarkProcessed(ctx, "delivery-1", time.Hour)
			require.NoError(t, err)
			assert.False(t, isNew)

			seen, err = store.IsProcessed(ctx, "delivery-1")
			require.NoError(t, err)
			assert.True(t, seen)
		})
	}
}

// ---------------------------------------------------------------------------
// Factory
// ---------------------------------------------------------------------------

func TestNewStores(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("disabled redis uses in-memory stores", func(t *testing.T) {
		stores, err := NewStores(RedisConfig{Enabled: false}, time.Minute, true, logger)
		require.NoError(t, err)
		defer stores.Close()
		assert.False(t, stores.IsDistributed())
	})

	t.Run("unreachable redis falls back when allowed", func(t *testing.T) {
		stores, err := NewStores(RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}, time.Minute, true, logger)
		require.NoError(t, err)
		defer stores.Close()
		assert.False(t, stores.IsDistributed())
	})

	t.Run("unreachable redis errors without fallback", func(t *testing.T) {
		_, err := NewStores(RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}, time.Minute, false, logger)
		assert.Error(t, err)
	})

	t.Run("reachable redis is used", func(t *testing.T) {
		mr := miniredis.RunT(t)
		stores, err := NewStores(RedisConfig{Enabled: true, Host: mr.Host(), Port: atoiPort(t, mr.Port())}, time.Minute, false, logger)
		require.NoError(t, err)
		defer stores.Close()
		assert.True(t, stores.IsDistributed())
	})
}

func atoiPort(t *testing.T, s string) int {
	t.Helper()
	p, err := strconv.Atoi(s)
	require.NoError(t, err)
	return p
}
