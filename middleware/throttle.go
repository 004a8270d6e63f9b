package middleware

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ThrottleConfig bounds requests per client IP.
type ThrottleConfig struct {
	Max            int
	Window         time.Duration
	TrustForwarded bool
	// Redis shares counters across instances; nil keeps them in memory.
	Redis  redis.UniversalClient
	Prefix string
	Logger zerolog.Logger
}

// ThrottleIP answers 429 with Retry-After once a client IP exceeds Max
// requests in Window. Counter backend failures let the request through.
func ThrottleIP(cfg ThrottleConfig) func(http.Handler) http.Handler {
	var counter rate.Counter
	if cfg.Redis != nil {
		counter = rate.NewRedisCounter(cfg.Redis)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "gg:ip"
	}
	limiter := rate.New(counter, rate.Config{Max: cfg.Max, Window: cfg.Window, Prefix: prefix})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := limiter.Take(r.Context(), clientIP(r, cfg.TrustForwarded))
			switch {
			case errors.Is(err, rate.ErrRateLimited):
				secs := int(math.Ceil(d.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			case err != nil:
				cfg.Logger.Warn().Err(err).Msg("ip throttle unavailable")
			}
			next.ServeHTTP(w, r)
		})
	}
}
