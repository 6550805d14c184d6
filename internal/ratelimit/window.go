// Package ratelimit counts requests per client identifier over a sliding
// window. WindowStore satisfies echo's middleware.RateLimiterStore.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// WindowStore admits at most Limit requests per identifier in any Window.
type WindowStore struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time
	now    func() time.Time
}

var _ middleware.RateLimiterStore = (*WindowStore)(nil)

// NewWindowStore creates a store allowing limit requests per window.
func NewWindowStore(limit int, window time.Duration) *WindowStore {
	return &WindowStore{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow records a request from identifier and reports whether it is within
// the limit. Denied requests are not recorded.
func (s *WindowStore) Allow(identifier string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	recent := prune(s.hits[identifier], now.Add(-s.window))
	if len(recent) >= s.limit {
		s.hits[identifier] = recent
		return false, nil
	}
	s.hits[identifier] = append(recent, now)
	return true, nil
}

// RetryAfter returns how long identifier must wait before its next request
// would be admitted. Zero means it would be admitted now.
func (s *WindowStore) RetryAfter(identifier string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	recent := prune(s.hits[identifier], now.Add(-s.window))
	if len(recent) < s.limit {
		return 0
	}
	return recent[len(recent)-s.limit].Add(s.window).Sub(now)
}

// Cleanup drops identifiers with no requests inside the window and returns
// how many were removed.
func (s *WindowStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.window)
	removed := 0
	for id, hits := range s.hits {
		if recent := prune(hits, cutoff); len(recent) == 0 {
			delete(s.hits, id)
			removed++
		} else {
			s.hits[id] = recent
		}
	}
	return removed
}

// Len returns the number of tracked identifiers.
func (s *WindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hits)
}

// Run calls Cleanup every interval until ctx is done.
func (s *WindowStore) Run(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Cleanup(); n > 0 && logger != nil {
				logger.Debug("ratelimit.cleanup", "removed", n, "tracked", s.Len())
			}
		}
	}
}

// prune drops timestamps at or before cutoff. hits is in ascending order.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}

// NewTokenBucketStore returns echo's in-memory token bucket store sized so
// that limit requests per window are admitted on average, with a burst of
// limit.
func NewTokenBucketStore(limit int, window time.Duration) middleware.RateLimiterStore {
	return middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(limit) / window.Seconds()),
		Burst:     limit,
		ExpiresIn: 2 * window,
	})
}
