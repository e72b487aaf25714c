package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/integration"
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// RateLimitStore records requests in a sliding window
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, remaining int, err error)
}

// Stores bundles the shared-state backends used by the HTTP layer and the scheduler
type Stores struct {
	Client     *redis.Client // nil when running on the in-memory fallback
	RateLimit  RateLimitStore
	Locker     integration.TenantLocker
	Deliveries integration.DeliveryStore

	closers []func() error
}

// Close releases the Redis client or stops in-memory sweepers
func (s *Stores) Close() error {
	var firstErr error
	for _, c := range s.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// IsDistributed reports whether state is shared across instances
func (s *Stores) IsDistributed() bool {
	return s.Client != nil
}

// Connect opens and pings a Redis client
func Connect(cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisStores builds every store on one Redis client
func NewRedisStores(client *redis.Client) *Stores {
	return &Stores{
		Client:     client,
		RateLimit:  NewRedisRateLimitStore(client, ""),
		Locker:     NewRedisTenantLocker(client, ""),
		Deliveries: NewRedisDeliveryStore(client, ""),
		closers:    []func() error{client.Close},
	}
}

// NewInMemoryStores builds per-process stores
func NewInMemoryStores(maxWindow time.Duration) *Stores {
	rl := NewInMemoryRateLimitStore(maxWindow)
	ds := NewInMemoryDeliveryStore()
	return &Stores{
		RateLimit:  rl,
		Locker:     NewInMemoryTenantLocker(),
		Deliveries: ds,
		closers:    []func() error{rl.Close, ds.Close},
	}
}

// NewStores connects to Redis when enabled and falls back to in-memory
// stores when it is disabled or unreachable and fallback is allowed.
func NewStores(cfg RedisConfig, maxWindow time.Duration, allowFallback bool, logger *zap.Logger) (*Stores, error) {
	if !cfg.Enabled {
		logger.Info("Redis disabled, using in-memory stores")
		return NewInMemoryStores(maxWindow), nil
	}

	client, err := Connect(cfg)
	if err == nil {
		logger.Info("Using Redis stores", zap.String("addr", client.Options().Addr))
		return NewRedisStores(client), nil
	}

	if !allowFallback {
		return nil, fmt.Errorf("Redis required but unavailable: %w", err)
	}

	logger.Warn("Redis unavailable, falling back to in-memory stores. "+
		"Tenant leases and rate limits will not be shared across instances.",
		zap.Error(err),
	)
	return NewInMemoryStores(maxWindow), nil
}
