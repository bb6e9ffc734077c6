package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"atsforge/internal/errors"
	"atsforge/internal/observability"

	"golang.org/x/time/rate"
)

const limiterEvictionAge = 10 * time.Minute

// LimiterManager keeps one token bucket per key. Keys are either
// "user:<id>" for authenticated callers or "ip:<addr>" as a fallback.
type LimiterManager struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	seen     map[string]time.Time
	perSec   rate.Limit
	burst    int
	done     chan struct{}
	logger   *errors.Logger
}

// NewRateLimiter builds a manager allowing requestsPerMin sustained requests
// with bursts up to burstCapacity, and starts the background eviction loop.
func NewRateLimiter(requestsPerMin, burstCapacity int, logger *errors.Logger) *LimiterManager {
	m := &LimiterManager{
		limiters: make(map[string]*rate.Limiter),
		seen:     make(map[string]time.Time),
		perSec:   rate.Limit(float64(requestsPerMin) / 60.0),
		burst:    burstCapacity,
		done:     make(chan struct{}),
		logger:   logger,
	}
	go m.evictLoop()
	return m
}

// Allow reports whether one more request under key fits its bucket now.
func (m *LimiterManager) Allow(key string) bool {
	m.mu.Lock()
	limiter, ok := m.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(m.perSec, m.burst)
		m.limiters[key] = limiter
	}
	m.seen[key] = time.Now()
	m.mu.Unlock()

	return limiter.Allow()
}

// GetStats returns current rate limiter statistics
func (m *LimiterManager) GetStats() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	return map[string]any{
		"active_limiters": len(m.limiters),
		"rate_per_second": float64(m.perSec),
		"rate_per_minute": float64(m.perSec) * 60.0,
		"burst_capacity":  m.burst,
	}
}

func (m *LimiterManager) evictLoop() {
	ticker := time.NewTicker(limiterEvictionAge)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.evictIdle()
		case <-m.done:
			return
		}
	}
}

// evictIdle drops buckets not used within the eviction age so the maps do
// not grow without bound.
func (m *LimiterManager) evictIdle() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-limiterEvictionAge)
	for key, last := range m.seen {
		if last.Before(cutoff) {
			delete(m.limiters, key)
			delete(m.seen, key)
		}
	}

	if m.logger != nil {
		m.logger.Debug("Rate limiter cleanup completed",
			"remaining_limiters", len(m.limiters))
	}
}

// Close stops the eviction goroutine.
func (m *LimiterManager) Close() {
	close(m.done)
}

// rateLimitMiddleware enforces per-key limits. It runs after authentication
// so limiters can be keyed by user identity.
func (s *Server) rateLimitMiddleware(metrics *observability.Metrics) func(http.HandlerFunc) http.HandlerFunc {
	if s.RateLimit == nil || !s.RateLimit.Enabled || s.RateLimiter == nil {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			limiterType, key := rateLimitKey(r, s.RateLimit.ByUser, s.RateLimit.ByIP)
			if key == "" || s.RateLimiter.Allow(key) {
				next(w, r)
				return
			}

			s.Logger.Info("Rate limit exceeded",
				"key", key,
				"endpoint", r.URL.Path,
				"client_ip", clientIP(r))
			metrics.RecordRateLimitHit(r.Context(), limiterType)
			writeErrorResponse(w, "Rate limit exceeded", "Too many requests", http.StatusTooManyRequests)
		}
	}
}

// rateLimitKey returns the limiter type and bucket key for a request.
func rateLimitKey(r *http.Request, byUser, byIP bool) (string, string) {
	if byUser {
		if userID := userIDFrom(r); userID != "" {
			return "user", "user:" + userID
		}
	}
	if byIP {
		return "ip", "ip:" + clientIP(r)
	}
	return "", ""
}

// clientIP prefers proxy headers over the socket address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := firstValidIP(xff); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func firstValidIP(list string) string {
	for ip := range strings.SplitSeq(list, ",") {
		ip = strings.TrimSpace(ip)
		if net.ParseIP(ip) != nil {
			return ip
		}
	}
	return ""
}
