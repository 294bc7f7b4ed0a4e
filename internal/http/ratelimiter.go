package http

import (
	"sync"
	"time"
)

type rateLimiterClient struct {
	tokens   float64
	last     time.Time
	lastSeen time.Time
}

// RateLimiter implements a simple token bucket limiter keyed by client identifier.
type RateLimiter struct {
	mu         sync.Mutex
	clients    map[string]*rateLimiterClient
	maxTokens  float64
	refillRate float64
	ttl        time.Duration
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewRateLimiter constructs a rate limiter with the provided settings. Clients idle for
// longer than ttl are pruned in the background until Stop is called.
func NewRateLimiter(maxTokens int, refillPerSecond float64, ttl time.Duration) *RateLimiter {
	rl := &RateLimiter{
		clients:    make(map[string]*rateLimiterClient),
		maxTokens:  float64(maxTokens),
		refillRate: refillPerSecond,
		ttl:        ttl,
		now:        time.Now,
		stop:       make(chan struct{}),
	}

	if ttl > 0 {
		go rl.pruneLoop()
	}

	return rl
}

// Allow consumes a token for the provided key if possible.
func (rl *RateLimiter) Allow(key string) bool {
	if key == "" {
		key = "unknown"
	}

	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	client, ok := rl.clients[key]
	if !ok {
		client = &rateLimiterClient{
			tokens: rl.maxTokens,
			last:   now,
		}
		rl.clients[key] = client
	}

	if elapsed := now.Sub(client.last).Seconds(); elapsed > 0 {
		client.tokens = min(client.tokens+elapsed*rl.refillRate, rl.maxTokens)
		client.last = now
	}
	client.lastSeen = now

	if client.tokens < 1 {
		return false
	}

	client.tokens--
	return true
}

// Stop ends background pruning. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stop)
	})
}

func (rl *RateLimiter) pruneLoop() {
	ticker := time.NewTicker(rl.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.pruneStale()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) pruneStale() {
	if rl.ttl <= 0 {
		return
	}

	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, client := range rl.clients {
		if now.Sub(client.lastSeen) > rl.ttl {
			delete(rl.clients, key)
		}
	}
}

func (rl *RateLimiter) clientCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}
