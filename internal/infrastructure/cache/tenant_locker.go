package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/storesync/backend/internal/domain/integration"
)

const defaultLeaseKeyPrefix = "storesync:lease:tenant:"

// releaseScript deletes the lease only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// ---------------------------------------------------------------------------
// Redis
// ---------------------------------------------------------------------------

// RedisTenantLocker implements integration.TenantLocker with SET NX PX
type RedisTenantLocker struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisTenantLocker creates a locker with an existing Redis client
func NewRedisTenantLocker(client redis.UniversalClient, keyPrefix string) *RedisTenantLocker {
	if keyPrefix == "" {
		keyPrefix = defaultLeaseKeyPrefix
	}
	return &RedisTenantLocker{client: client, keyPrefix: keyPrefix}
}

// TryAcquire takes the tenant lease for ttl or returns ErrTenantLeaseHeld
func (l *RedisTenantLocker) TryAcquire(ctx context.Context, tenantID uuid.UUID, ttl time.Duration) (integration.Lease, error) {
	key := l.keyPrefix + tenantID.String()
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire tenant lease: %w", err)
	}
	if !ok {
		return nil, integration.ErrTenantLeaseHeld
	}
	return &redisLease{client: l.client, key: key, token: token}, nil
}

type redisLease struct {
	client redis.UniversalClient
	key    string
	token  string
}

func (l *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("failed to release tenant lease: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// In-memory
// ---------------------------------------------------------------------------

// InMemoryTenantLocker implements integration.TenantLocker for a single process
type InMemoryTenantLocker struct {
	mu     sync.Mutex
	leases map[uuid.UUID]memLeaseEntry
	now    func() time.Time
}

type memLeaseEntry struct {
	token     string
	expiresAt time.Time
}

// NewInMemoryTenantLocker creates an in-memory locker
func NewInMemoryTenantLocker() *InMemoryTenantLocker {
	return &InMemoryTenantLocker{
		leases: make(map[uuid.UUID]memLeaseEntry),
		now:    time.Now,
	}
}

// TryAcquire takes the tenant lease for ttl or returns ErrTenantLeaseHeld
func (l *InMemoryTenantLocker) TryAcquire(ctx context.Context, tenantID uuid.UUID, ttl time.Duration) (integration.Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.leases[tenantID]; ok && now.Before(e.expiresAt) {
		return nil, integration.ErrTenantLeaseHeld
	}
	token := uuid.NewString()
	l.leases[tenantID] = memLeaseEntry{token: token, expiresAt: now.Add(ttl)}
	return &memLease{locker: l, tenantID: tenantID, token: token}, nil
}

type memLease struct {
	locker   *InMemoryTenantLocker
	tenantID uuid.UUID
	token    string
}

func (l *memLease) Release(ctx context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	if e, ok := l.locker.leases[l.tenantID]; ok && e.token == l.token {
		delete(l.locker.leases, l.tenantID)
	}
	return nil
}

var (
	_ integration.TenantLocker = (*RedisTenantLocker)(nil)
	_ integration.TenantLocker = (*InMemoryTenantLocker)(nil)
)
