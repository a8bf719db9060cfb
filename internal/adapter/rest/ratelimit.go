package rest

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const visitorIdleTTL = 5 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per client address
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	logger   *zap.Logger
	mu       sync.Mutex
	visitors map[string]*visitor
	clockNow func() time.Time
}

// NewRateLimiter allows requestsPerMinute per client with the given burst.
// A non-positive requestsPerMinute disables limiting.
func NewRateLimiter(requestsPerMinute, burst int, logger *zap.Logger) *RateLimiter {
	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Limit(float64(requestsPerMinute) / 60.0)
	}
	if burst <= 0 {
		burst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		limit:    limit,
		burst:    burst,
		logger:   logger,
		visitors: make(map[string]*visitor),
		clockNow: time.Now,
	}
}

// Middleware rejects requests over the limit with 429
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := clientID(r)
		if !l.allow(id) {
			l.logger.Info("rate limit exceeded", zap.String("client", id), zap.String("path", r.URL.Path))
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Detail: http.StatusText(http.StatusTooManyRequests)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) allow(id string) bool {
	if l.limit == rate.Inf {
		return true
	}

	l.mu.Lock()
	v, ok := l.visitors[id]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[id] = v
	}
	now := l.clockNow()
	v.lastSeen = now
	l.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// Run evicts idle visitors until ctx is done
func (l *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evictIdle()
		}
	}
}

func (l *RateLimiter) evictIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.clockNow().Add(-visitorIdleTTL)
	for id, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, id)
		}
	}
}

// clientID keys on RemoteAddr, which RealIP has already rewritten when proxy headers are trusted
func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
