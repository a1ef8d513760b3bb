package middleware

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// errorEnvelope matches the api package's envelope format for error responses.
type errorEnvelope struct {
	Error string `json:"error,omitempty"`
}

// Limits describes one rate-limit tier as tokens per second plus burst
// capacity. Each client address gets its own bucket.
type Limits struct {
	PerSecond rate.Limit
	Burst     int
}

var (
	// APILimits covers the CRM-facing JSON endpoints.
	APILimits = Limits{PerSecond: 20, Burst: 40}

	// BridgeLimits covers bridge creation. A bridge is a human clicking a
	// button; past two a second from one address it is a runaway client.
	BridgeLimits = Limits{PerSecond: 2, Burst: 5}

	// WebhookLimits covers provider callbacks, which arrive in bursts as
	// call legs change state.
	WebhookLimits = Limits{PerSecond: 50, Burst: 100}
)

// Buckets idle longer than bucketIdle are dropped on the next sweep.
const (
	sweepInterval = 5 * time.Minute
	bucketIdle    = 10 * time.Minute
)

type bucket struct {
	tokens   *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands out one token bucket per client address and drops
// buckets that go quiet so the map cannot grow without bound.
type IPRateLimiter struct {
	limits Limits

	mu      sync.Mutex
	buckets map[string]*bucket

	done chan struct{}
}

// NewIPRateLimiter starts a limiter for one tier, including its background
// sweeper. Call Stop when the server shuts down.
func NewIPRateLimiter(limits Limits) *IPRateLimiter {
	l := &IPRateLimiter{
		limits:  limits,
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
	}
	go l.sweep()
	return l
}

// Allow reports whether addr may make another request right now.
func (l *IPRateLimiter) Allow(addr string) bool {
	l.mu.Lock()
	b := l.buckets[addr]
	if b == nil {
		b = &bucket{tokens: rate.NewLimiter(l.limits.PerSecond, l.limits.Burst)}
		l.buckets[addr] = b
	}
	b.lastSeen = time.Now()
	l.mu.Unlock()

	return b.tokens.Allow()
}

// Stop ends the background sweeper.
func (l *IPRateLimiter) Stop() {
	close(l.done)
}

func (l *IPRateLimiter) sweep() {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-t.C:
			l.evictIdle(time.Now().Add(-bucketIdle))
		}
	}
}

// evictIdle drops every bucket last seen before cutoff.
func (l *IPRateLimiter) evictIdle(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	before := len(l.buckets)
	for addr, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, addr)
		}
	}
	if evicted := before - len(l.buckets); evicted > 0 {
		slog.Debug("rate limiter evicted idle buckets",
			"evicted", evicted,
			"active", len(l.buckets),
		)
	}
}

// RateLimit returns middleware that answers 429 with a Retry-After header
// once a client address exhausts its bucket.
func RateLimit(limiter *IPRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := clientIP(r)
			if limiter.Allow(addr) {
				next.ServeHTTP(w, r)
				return
			}

			slog.Warn("rate limit exceeded",
				"ip", addr,
				"method", r.Method,
				"path", r.URL.Path,
			)
			w.Header().Set("Retry-After", "1")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(errorEnvelope{Error: "rate limit exceeded"}) //nolint:errcheck
		})
	}
}

// clientIP strips the port from RemoteAddr. Behind a proxy, chi's RealIP
// middleware rewrites RemoteAddr first, so all tiers key on the real client.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
