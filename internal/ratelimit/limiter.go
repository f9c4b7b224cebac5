// Package ratelimit throttles gateway callers per API client.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides whether one more request from key is allowed now.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// TokenBucket keeps one x/time/rate limiter per key in process memory.
type TokenBucket struct {
	limiters sync.Map
	rps      rate.Limit
	burst    int
}

func NewTokenBucket(rps float64, burst int) *TokenBucket {
	if burst <= 0 {
		burst = 5
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &TokenBucket{rps: limit, burst: burst}
}

func (b *TokenBucket) Allow(_ context.Context, key string) (bool, error) {
	return b.limiter(key).Allow(), nil
}

func (b *TokenBucket) limiter(key string) *rate.Limiter {
	if v, ok := b.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}
	actual, _ := b.limiters.LoadOrStore(key, rate.NewLimiter(b.rps, b.burst))
	return actual.(*rate.Limiter)
}

// FixedWindow counts requests per key in memory, resetting every window.
// It is the in-process twin of RedisWindow and its failover fallback.
type FixedWindow struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	limit   int
	window  time.Duration
	now     func() time.Time
}

type windowEntry struct {
	count     int
	expiresAt time.Time
}

func NewFixedWindow(limit int, window time.Duration) *FixedWindow {
	return &FixedWindow{
		entries: make(map[string]*windowEntry),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

func (w *FixedWindow) Allow(_ context.Context, key string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	entry, ok := w.entries[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &windowEntry{expiresAt: now.Add(w.window)}
		w.entries[key] = entry
	}
	entry.count++
	return entry.count <= w.limit, nil
}
