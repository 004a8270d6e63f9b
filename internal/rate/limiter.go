package rate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config bounds each key to Max hits per Window.
type Config struct {
	Max    int
	Window time.Duration
	Prefix string
}

// Decision is the outcome of one Take.
type Decision struct {
	Allowed    bool
	Count      int
	RetryAfter time.Duration
}

// Counter increments a key and reports its count and remaining window.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Limiter applies Config over a Counter.
type Limiter struct {
	counter Counter
	config  Config
}

// New creates a Limiter. A nil counter falls back to process memory.
func New(counter Counter, cfg Config) *Limiter {
	if counter == nil {
		counter = NewMemoryCounter(nil)
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "rl"
	}
	return &Limiter{counter: counter, config: cfg}
}

// Take records one hit for key. A rejected hit returns ErrRateLimited with a
// Decision carrying RetryAfter.
func (l *Limiter) Take(ctx context.Context, key string) (Decision, error) {
	if l == nil || l.config.Max <= 0 || key == "" {
		return Decision{Allowed: true}, nil
	}
	count, ttl, err := l.counter.Incr(ctx, l.config.Prefix+":"+key, l.config.Window)
	if err != nil {
		return Decision{}, err
	}
	d := Decision{Allowed: count <= int64(l.config.Max), Count: int(count)}
	if !d.Allowed {
		d.RetryAfter = ttl
		return d, ErrRateLimited
	}
	return d, nil
}

// RedisCounter keeps counters as Redis integers expiring with the window.
type RedisCounter struct {
	redis redis.UniversalClient
}

// NewRedisCounter wraps client.
func NewRedisCounter(client redis.UniversalClient) *RedisCounter {
	return &RedisCounter{redis: client}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := c.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed window: the first hit starts the clock.
	if count == 1 {
		if err := c.redis.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return count, window, nil
	}

	ttl, err := c.redis.TTL(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl < 0 {
		ttl = window
	}
	return count, ttl, nil
}

type memoryWindow struct {
	count   int64
	resetAt time.Time
}

// MemoryCounter is a process-local Counter.
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]memoryWindow
	now     func() time.Time
}

// NewMemoryCounter creates an empty counter. A nil now uses time.Now.
func NewMemoryCounter(now func() time.Time) *MemoryCounter {
	if now == nil {
		now = time.Now
	}
	return &MemoryCounter{windows: make(map[string]memoryWindow), now: now}
}

func (c *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	w, ok := c.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = memoryWindow{resetAt: now.Add(window)}
	}
	w.count++
	c.windows[key] = w
	return w.count, w.resetAt.Sub(now), nil
}
