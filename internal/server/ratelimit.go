// Token bucket rate limiting keyed by client address.

package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiter manages per-client token buckets. A nil limiter allows
// everything, which is how a zero rate in the config is expressed.
type limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    rate.Limit
	burst   int
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newLimiter creates a limiter allowing perMin requests per minute per
// key. Returns nil when perMin is 0 (unlimited).
func newLimiter(perMin int) *limiter {
	if perMin <= 0 {
		return nil
	}
	burst := max(perMin/10, 1)
	return &limiter{
		buckets: make(map[string]*bucket),
		rate:    rate.Limit(float64(perMin) / 60),
		burst:   burst,
	}
}

// allow reports whether a request under key may proceed now.
func (l *limiter) allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[key] = b
		// Opportunistic cleanup keeps the map bounded without a
		// background goroutine.
		if len(l.buckets) > 1024 {
			for k, old := range l.buckets {
				if now.Sub(old.lastSeen) > 10*time.Minute {
					delete(l.buckets, k)
				}
			}
		}
	}
	b.lastSeen = now
	l.mu.Unlock()
	return b.limiter.Allow()
}

// clientKey extracts the client address used as the rate limit key.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
