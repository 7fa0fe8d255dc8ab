package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/clinicore/clinicore/internal/platform/auth"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// IdleTTL drops limiters for keys not seen within this period.
	IdleTTL time.Duration
	Skipper func(echo.Context) bool
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
		IdleTTL:           10 * time.Minute,
	}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore keeps one token bucket per client key.
type limiterStore struct {
	mu        sync.Mutex
	entries   map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newLimiterStore(cfg RateLimitConfig) *limiterStore {
	ttl := cfg.IdleTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &limiterStore{
		entries:   make(map[string]*limiterEntry),
		limit:     rate.Limit(cfg.RequestsPerSecond),
		burst:     cfg.BurstSize,
		ttl:       ttl,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (s *limiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) > s.ttl {
		for k, e := range s.entries {
			if now.Sub(e.lastSeen) > s.ttl {
				delete(s.entries, k)
			}
		}
		s.lastSweep = now
	}

	e, ok := s.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

func (s *limiterStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// rateLimitKey identifies the client: the authenticated user when known,
// otherwise the remote address.
func rateLimitKey(c echo.Context) string {
	if a, ok := auth.ActorFromContext(c.Request().Context()); ok && a.UserID != "" {
		return "user:" + a.UserID
	}
	return "ip:" + c.RealIP()
}

// RateLimit rejects requests over the configured rate with 429.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	return rateLimit(cfg, newLimiterStore(cfg))
}

func rateLimit(cfg RateLimitConfig, store *limiterStore) echo.MiddlewareFunc {
	limitHeader := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}

			lim := store.get(rateLimitKey(c))
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limitHeader)

			if !lim.Allow() {
				h.Set("Retry-After", strconv.Itoa(retryAfter(lim)))
				h.Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, errorBody("rate_limited", "rate limit exceeded"))
			}
			h.Set("X-RateLimit-Remaining", strconv.Itoa(int(math.Max(0, lim.Tokens()))))
			return next(c)
		}
	}
}

// retryAfter is the whole number of seconds until one token is available.
func retryAfter(lim *rate.Limiter) int {
	if lim.Limit() <= 0 {
		return 1
	}
	missing := 1 - lim.Tokens()
	if missing <= 0 {
		return 1
	}
	return int(math.Ceil(missing / float64(lim.Limit())))
}
