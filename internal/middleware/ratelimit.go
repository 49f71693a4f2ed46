package middleware

import (
	"context"
	"sync"
	"time"

	"snaprpc/server/internal/engine"
	"snaprpc/server/internal/jsonrpc"
	"snaprpc/server/internal/observability"
)

// RateLimiter implements per-origin sliding window rate limiting.
// State is in memory; each process enforces independently.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	mu          sync.Mutex
	origins     map[string]*originWindow
	stop        chan struct{}
	stopOnce    sync.Once
}

type originWindow struct {
	timestamps []time.Time
	lastAccess time.Time
}

// NewRateLimiter creates a rate limiter with the given requests-per-second
// limit. Call Close to stop its cleanup goroutine.
func NewRateLimiter(maxPerSecond int) *RateLimiter {
	rl := &RateLimiter{
		maxRequests: maxPerSecond,
		window:      time.Second,
		origins:     make(map[string]*originWindow),
		stop:        make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Allow checks if a request from the given origin is allowed.
func (rl *RateLimiter) Allow(origin string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	ow, ok := rl.origins[origin]
	if !ok {
		ow = &originWindow{}
		rl.origins[origin] = ow
	}

	// Remove timestamps outside the window
	cutoff := now.Add(-rl.window)
	start := 0
	for start < len(ow.timestamps) && ow.timestamps[start].Before(cutoff) {
		start++
	}
	ow.timestamps = ow.timestamps[start:]
	ow.lastAccess = now

	if len(ow.timestamps) >= rl.maxRequests {
		return false
	}

	ow.timestamps = append(ow.timestamps, now)
	return true
}

// cleanup removes stale origin entries every 60 seconds.
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.evictIdle(time.Now().Add(-5 * time.Minute))
		}
	}
}

func (rl *RateLimiter) evictIdle(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for origin, ow := range rl.origins {
		if ow.lastAccess.Before(cutoff) {
			delete(rl.origins, origin)
		}
	}
}

// Close stops the cleanup goroutine.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Middleware returns an engine middleware that rejects requests above the
// origin's limit with LimitExceeded.
func (rl *RateLimiter) Middleware() engine.Middleware {
	return func(ctx context.Context, req *jsonrpc.Request, res *jsonrpc.Response, next engine.Next, end engine.End) {
		if !rl.Allow(req.Origin) {
			observability.LogSecurityEvent(engine.RequestID(ctx), req.Origin, "rate_limited", map[string]any{
				"method": req.Method,
			})
			end(jsonrpc.NewLimitExceeded())
			return
		}
		next()
	}
}
