package httpmiddleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ThrottleConfig configures Throttle.
type ThrottleConfig struct {
	// RPS is the sustained request rate allowed per key.
	RPS float64
	// Burst is the number of requests a key may make at once.
	Burst int
	// KeyFunc identifies the caller. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
	// IdleTTL is how long an unused key keeps its bucket. Defaults to 10m.
	IdleTTL time.Duration
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// Throttle applies a token bucket per key. It protects expensive write
// endpoints, where the sliding window of RateLimit is too coarse.
func Throttle(cfg ThrottleConfig) Middleware {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}

	var (
		mu        sync.Mutex
		buckets   = make(map[string]*bucket)
		lastSweep time.Time
	)
	limiter := func(key string, now time.Time) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()

		if now.Sub(lastSweep) > cfg.IdleTTL {
			for k, b := range buckets {
				if now.Sub(b.seen) > cfg.IdleTTL {
					delete(buckets, k)
				}
			}
			lastSweep = now
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{lim: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst)}
			buckets[key] = b
		}
		b.seen = now
		return b.lim
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			res := limiter(cfg.KeyFunc(r), now).ReserveN(now, 1)
			if delay := res.DelayFrom(now); !res.OK() || delay > 0 {
				res.CancelAt(now)
				if res.OK() {
					w.Header().Set("Retry-After", strconv.Itoa(int(delay.Seconds())+1))
				}
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
