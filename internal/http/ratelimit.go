package httpapi

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/fairyhunter13/cafe-inventory/internal/obs"
)

// rateLimiter throttles requests per client address. It guards the
// sign-in and sign-up endpoints against password guessing.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*visitor
	rate     rate.Limit
	burst    int
}

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

func newRateLimiter(perSecond float64, burst int) *rateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{
		limiters: make(map[string]*visitor),
		rate:     rate.Limit(perSecond),
		burst:    burst,
	}
}

// allow reports whether key may proceed and how many clients are tracked.
func (rl *rateLimiter) allow(key string, now time.Time) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	v, ok := rl.limiters[key]
	if !ok {
		v = &visitor{lim: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = v
	}
	v.seen = now
	return v.lim.AllowN(now, 1), len(rl.limiters)
}

// prune drops visitors idle for longer than idle.
func (rl *rateLimiter) prune(now time.Time, idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	n := 0
	for k, v := range rl.limiters {
		if now.Sub(v.seen) > idle {
			delete(rl.limiters, k)
			n++
		}
	}
	return n
}

func (rl *rateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r)
		now := time.Now()
		ok, tracked := rl.allow(key, now)
		if !ok {
			obs.Logger.Warnw("rate_limit_exceeded", "key", key, "path", r.URL.Path, "request_id", RequestIDFromContext(r.Context()))
			w.Header().Set("Retry-After", "1")
			WriteJSONError(w, http.StatusTooManyRequests, "rate_limited", "Too many attempts. Please wait a moment.")
			return
		}
		if tracked > 10000 {
			rl.prune(now, 10*time.Minute)
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
