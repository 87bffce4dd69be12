package middlewares

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Limiter decides whether one more request for key fits in the current
// window. retryAfter is only meaningful when allowed is false.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// RateLimitObserver is told about every rejected request.
type RateLimitObserver interface {
	ObserveRateLimited(route string)
}

// MemoryLimiter is a per-key token bucket local to the process: limit
// requests burst, refilled evenly over window.
type MemoryLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	every   rate.Limit
	burst   int
	clients map[string]*clientLimiter
	now     func() time.Time
}

type clientLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}

	return &MemoryLimiter{
		window:  window,
		every:   rate.Every(window / time.Duration(limit)),
		burst:   limit,
		clients: make(map[string]*clientLimiter),
		now:     time.Now,
	}
}

func (rl *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.clients[key]
	if !ok {
		rl.sweep(now)
		c = &clientLimiter{lim: rate.NewLimiter(rl.every, rl.burst)}
		rl.clients[key] = c
	}
	c.lastSeen = now

	r := c.lim.ReserveN(now, 1)
	if !r.OK() {
		return false, rl.window, nil
	}

	if delay := r.DelayFrom(now); delay > 0 {
		// hand the token back; the request is rejected, not queued
		r.CancelAt(now)
		return false, delay, nil
	}

	return true, 0, nil
}

// sweep drops limiters idle for a full window; their buckets are full again
// so forgetting them changes nothing.
func (rl *MemoryLimiter) sweep(now time.Time) {
	if len(rl.clients) < 1024 {
		return
	}
	for k, c := range rl.clients {
		if now.Sub(c.lastSeen) > rl.window {
			delete(rl.clients, k)
		}
	}
}

// RateLimit rejects requests over the limit with 429. Limiter errors fail
// open so a backend outage never locks users out of login.
func RateLimit(l Limiter, keyFn func(*gin.Context) string, obs RateLimitObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)

		if key == "" {
			// fallback to IP if key cannot be derived
			key = clientIP(c)
		}

		route := c.FullPath()

		allowed, retryAfter, err := l.Allow(c.Request.Context(), route+"|"+key)
		if err != nil {
			slog.Default().WarnContext(c.Request.Context(), "rate limiter unavailable", "route", route, "err", err)
			c.Next()
			return
		}

		if !allowed {
			if obs != nil {
				obs.ObserveRateLimited(route)
			}

			secs := int(math.Ceil(retryAfter.Seconds()))
			if secs < 0 {
				secs = 0
			}
			c.Header("Retry-After", strconv.Itoa(secs))

			abortError(c, http.StatusTooManyRequests, "rate_limited", "Too many requests. Please try again shortly.")
			return
		}

		c.Next()
	}
}

// KeyByIP keys unauthenticated endpoints by client address.
func KeyByIP(c *gin.Context) string {
	return clientIP(c)
}

// KeyByUserOrIP keys by the authenticated caller, falling back to the client
// address. It must run after the auth middleware.
func KeyByUserOrIP(c *gin.Context) string {
	id, ok := UserIDFromContext(c)

	if ok && id != "" {
		return "user:" + id
	}

	return clientIP(c)
}

func clientIP(c *gin.Context) string {
	// forwarding headers only count from TRUSTED_PROXIES peers
	ip := c.ClientIP()

	host, _, err := net.SplitHostPort(ip)

	if err == nil && host != "" {
		return host
	}

	return ip
}
