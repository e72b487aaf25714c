package cache

import (
	"context"
	"sync"
	"time"

	"github.com/storesync/backend/internal/domain/integration"
)

// InMemoryDeliveryStore implements integration.DeliveryStore with a map.
// State is per process, so it only deduplicates deliveries that land on the
// same instance.
type InMemoryDeliveryStore struct {
	mu        sync.RWMutex
	entries   map[string]time.Time // delivery id -> expiry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryDeliveryStore creates the store and starts its cleanup goroutine
func NewInMemoryDeliveryStore() *InMemoryDeliveryStore {
	s := &InMemoryDeliveryStore{
		entries:  make(map[string]time.Time),
		stopChan: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.cleanupLoop()
	return s
}

// MarkProcessed marks a delivery as processed with a TTL
func (s *InMemoryDeliveryStore) MarkProcessed(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expiresAt, ok := s.entries[deliveryID]; ok && time.Now().Before(expiresAt) {
		return false, nil
	}
	s.entries[deliveryID] = time.Now().Add(ttl)
	return true, nil
}

// IsProcessed checks if a delivery has already been processed
func (s *InMemoryDeliveryStore) IsProcessed(ctx context.Context, deliveryID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiresAt, ok := s.entries[deliveryID]
	return ok && time.Now().Before(expiresAt), nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *InMemoryDeliveryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryDeliveryStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *InMemoryDeliveryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, expiresAt := range s.entries {
		if now.After(expiresAt) {
			delete(s.entries, id)
		}
	}
}

// Size returns the number of tracked deliveries
func (s *InMemoryDeliveryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

var _ integration.DeliveryStore = (*InMemoryDeliveryStore)(nil)
