package usage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter caps generate requests per user per hour. With a redis client the
// window is a shared fixed hourly bucket; without one it is an in-process sliding window.
type RateLimiter struct {
	client *redis.Client
	window time.Duration

	mu       sync.Mutex
	requests map[string][]time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	rl := &RateLimiter{
		client:   client,
		window:   time.Hour,
		requests: make(map[string][]time.Time),
		stop:     make(chan struct{}),
	}
	if client == nil {
		go rl.cleanup()
	}
	return rl
}

// Allow records one request for userID and reports whether it is within limit.
// A non-positive limit disables the check.
func (rl *RateLimiter) Allow(ctx context.Context, userID string, limit int) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	if rl.client != nil {
		return rl.allowRedis(ctx, userID, limit)
	}
	return rl.allowLocal(userID, limit, time.Now()), nil
}

func (rl *RateLimiter) allowRedis(ctx context.Context, userID string, limit int) (bool, error) {
	key := fmt.Sprintf("ratelimit:generate:%s:%s", userID, time.Now().UTC().Format("2006-01-02-15"))

	count, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	if count == 1 {
		rl.client.Expire(ctx, key, rl.window)
	}

	return count <= int64(limit), nil
}

func (rl *RateLimiter) allowLocal(userID string, limit int, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	filtered := prune(rl.requests[userID], now.Add(-rl.window))
	if len(filtered) >= limit {
		rl.requests[userID] = filtered
		return false
	}

	rl.requests[userID] = append(filtered, now)
	return true
}

func prune(requests []time.Time, cutoff time.Time) []time.Time {
	filtered := requests[:0]
	for _, reqTime := range requests {
		if reqTime.After(cutoff) {
			filtered = append(filtered, reqTime)
		}
	}
	return filtered
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			cutoff := now.Add(-rl.window)
			for userID, requests := range rl.requests {
				filtered := prune(requests, cutoff)
				if len(filtered) == 0 {
					delete(rl.requests, userID)
				} else {
					rl.requests[userID] = filtered
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Close stops the local cleanup loop. The redis client is owned by the caller.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}
