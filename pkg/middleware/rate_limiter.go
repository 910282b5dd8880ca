package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiter ограничивает число запросов с одного IP (token bucket на клиента).
type RateLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*client
	idleTTL time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter пропускает не больше perWindow запросов за window с одного IP.
func NewRateLimiter(perWindow int, window time.Duration, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		limit:   rate.Limit(float64(perWindow) / window.Seconds()),
		burst:   perWindow,
		clients: make(map[string]*client),
		idleTTL: time.Hour,
		logger:  logger,
		now:     time.Now,
	}
}

func (r *RateLimiter) Allow(ip string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.clients[ip] = c
	}
	now := r.now()
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// Cleanup удаляет клиентов, не приходивших дольше idleTTL.
func (r *RateLimiter) Cleanup() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	cutoff := r.now().Add(-r.idleTTL)
	for ip, c := range r.clients {
		if c.lastSeen.Before(cutoff) {
			delete(r.clients, ip)
			removed++
		}
	}
	return removed
}

// Run периодически чистит карту клиентов, пока не закрыт done.
func (r *RateLimiter) Run(done <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			r.Cleanup()
		}
	}
}

func (r *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ip := clientIP(req)
		if !r.Allow(ip) {
			r.logger.Warn("Rate limit exceeded", zap.String("ip", ip))
			WriteError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}

		next.ServeHTTP(w, req)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
