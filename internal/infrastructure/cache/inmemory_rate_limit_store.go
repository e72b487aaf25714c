package cache

import (
	"context"
	"sync"
	"time"
)

// InMemoryRateLimitStore is a per-process sliding window log
type InMemoryRateLimitStore struct {
	mu        sync.Mutex
	hits      map[string][]time.Time
	maxWindow time.Duration
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryRateLimitStore creates a store; entries idle for longer than
// maxWindow are dropped by a background sweep.
func NewInMemoryRateLimitStore(maxWindow time.Duration) *InMemoryRateLimitStore {
	s := &InMemoryRateLimitStore{
		hits:      make(map[string][]time.Time),
		maxWindow: maxWindow,
		now:       time.Now,
		stopChan:  make(chan struct{}),
	}
	s.wg.Add(1)
	go s.cleanupLoop()
	return s
}

// Allow records a request for key and reports whether it fits in the window
func (s *InMemoryRateLimitStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	kept := trimBefore(s.hits[key], now.Add(-window))
	if len(kept) >= limit {
		s.hits[key] = kept
		return false, 0, nil
	}
	kept = append(kept, now)
	s.hits[key] = kept
	return true, limit - len(kept), nil
}

// trimBefore drops timestamps at or before cutoff; hits are in time order
func trimBefore(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *InMemoryRateLimitStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryRateLimitStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Minute)
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

func (s *InMemoryRateLimitStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.maxWindow)
	for key, hits := range s.hits {
		kept := trimBefore(hits, cutoff)
		if len(kept) == 0 {
			delete(s.hits, key)
		} else {
			s.hits[key] = kept
		}
	}
}
