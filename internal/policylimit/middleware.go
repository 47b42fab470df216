// Package policylimit bounds request cost: body size caps and a per-client
// request rate window. Run timeouts are not enforced here; the loop owns its
// own deadline and the chat stream must outlive any short request timeout.
package policylimit

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	DefaultMaxRequestBodyBytes  = 1 << 20
	DefaultMaxRequestsPerWindow = 120
	DefaultWindow               = time.Minute
)

var (
	ErrRequestTooLarge = errors.New("policy request body too large")
	ErrRateLimited     = errors.New("policy request rate exceeded")
)

type Config struct {
	MaxRequestBodyBytes  int64
	MaxRequestsPerWindow int
	Window               time.Duration
}

type RejectFunc func(http.ResponseWriter, *http.Request, error)

func NormalizeConfig(cfg Config) Config {
	if cfg.MaxRequestBodyBytes <= 0 {
		cfg.MaxRequestBodyBytes = DefaultMaxRequestBodyBytes
	}
	if cfg.MaxRequestsPerWindow <= 0 {
		cfg.MaxRequestsPerWindow = DefaultMaxRequestsPerWindow
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return cfg
}

func Middleware(cfg Config, reject RejectFunc) func(http.Handler) http.Handler {
	cfg = NormalizeConfig(cfg)
	limiter := newWindowLimiter(cfg.MaxRequestsPerWindow, cfg.Window)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.allow(clientKey(r), time.Now()) {
				reject(w, r, fmt.Errorf("%w: retry after %s", ErrRateLimited, cfg.Window))
				return
			}

			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxRequestBodyBytes)
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// windowLimiter is a fixed-window counter per client key. Expired entries
// are evicted at most once per window so the map stays bounded by the number
// of clients active in the last two windows.
type windowLimiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	counts    map[string]*windowCount
	lastSweep time.Time
}

type windowCount struct {
	windowStart time.Time
	requests    int
}

func newWindowLimiter(limit int, window time.Duration) *windowLimiter {
	return &windowLimiter{
		limit:  limit,
		window: window,
		counts: make(map[string]*windowCount),
	}
}

func (l *windowLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.window {
		for staleKey, stale := range l.counts {
			if now.Sub(stale.windowStart) >= l.window {
				delete(l.counts, staleKey)
			}
		}
		l.lastSweep = now
	}

	count, ok := l.counts[key]
	if !ok || now.Sub(count.windowStart) >= l.window {
		l.counts[key] = &windowCount{windowStart: now, requests: 1}
		return true
	}
	if count.requests >= l.limit {
		return false
	}
	count.requests++
	return true
}
