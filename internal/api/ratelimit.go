package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// keyedLimiter keeps one token bucket per key. A nil *keyedLimiter allows everything.
type keyedLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// newKeyedLimiter refills one request per interval up to burst; a zero interval disables it
func newKeyedLimiter(interval time.Duration, burst int) *keyedLimiter {
	if interval <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &keyedLimiter{
		limit:    rate.Every(interval),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow spends one token from key's bucket
func (l *keyedLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}

// clientIP returns the first X-Forwarded-For address, falling back to the peer address
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if ip := strings.TrimSpace(strings.Split(fwd, ",")[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
