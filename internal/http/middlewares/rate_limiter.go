package middlewares

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/userhub/internal/http/httperr"
)

// RateLimiter is a per-source sliding-window counter. State lives in one
// process-local map; it resets on restart and is not distributed-safe, which
// is acceptable for a single-instance deployment.
type RateLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	limit   int
	clients map[string]*clientBucket
	log     *slog.Logger
}

type clientBucket struct {
	count     int
	windowEnd time.Time
}

// Expired entries are swept lazily once the map grows past this, so many
// distinct sources cannot grow it without bound.
const evictThreshold = 10000

func NewRateLimiter(limit int, window time.Duration, log *slog.Logger) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		clients: make(map[string]*clientBucket),
		log:     log,
	}
}

// sensitive reports whether a request warrants a source-attributed audit log
// line: anything mutating, plus every authentication attempt.
func sensitive(c *gin.Context) bool {
	return c.Request.Method != http.MethodGet || strings.HasPrefix(c.Request.URL.Path, "/auth")
}

// marks a request already audit-logged, so stacked limiters emit one line
const ctxAuditedKey = "throttle.audited"

// Middleware enforces the limit for a derived key (falls back to client IP).
func (rl *RateLimiter) Middleware(keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sensitive(c) && !c.GetBool(ctxAuditedKey) {
			c.Set(ctxAuditedKey, true)
			rl.log.Info("sensitive request",
				"method", c.Request.Method, "path", c.Request.URL.Path, "ip", clientIP(c))
		}

		key := keyFn(c)

		if key == "" {
			key = clientIP(c)
		}

		now := time.Now()

		rl.mu.Lock()

		b, ok := rl.clients[key]

		if !ok || now.After(b.windowEnd) {
			if len(rl.clients) >= evictThreshold {
				rl.evictExpired(now)
			}

			rl.clients[key] = &clientBucket{
				count:     1,
				windowEnd: now.Add(rl.window),
			}

			rl.mu.Unlock()
			c.Next()
			return
		}

		b.count++

		if b.count > rl.limit {
			retryAfter := int(time.Until(b.windowEnd).Seconds())

			if retryAfter < 0 {
				retryAfter = 0
			}

			rl.mu.Unlock()

			c.Header("Retry-After", strconv.Itoa(retryAfter))
			httperr.Abort(c, http.StatusTooManyRequests, "rate_limited", "Too many requests. Please try again shortly.")

			return
		}

		rl.mu.Unlock()
		c.Next()
	}
}

// caller holds rl.mu
func (rl *RateLimiter) evictExpired(now time.Time) {
	for key, b := range rl.clients {
		if now.After(b.windowEnd) {
			delete(rl.clients, key)
		}
	}
}

// KeyByIP rate limits by source address.
func KeyByIP(c *gin.Context) string {
	return clientIP(c)
}

// KeyByUserOrIP rate limits authenticated traffic by user id when available.
func KeyByUserOrIP(c *gin.Context) string {
	p, ok := PrincipalFromContext(c)

	if ok && p.UserID != 0 {
		return "user:" + strconv.FormatInt(p.UserID, 10)
	}

	return clientIP(c)
}

func clientIP(c *gin.Context) string {
	// Gin's ClientIP respects X-Forwarded-For / X-Real-IP if configured.
	ip := c.ClientIP()

	// Normalize a host:port form if one slips through

	host, _, err := net.SplitHostPort(ip)

	if err == nil && host != "" {
		return host
	}

	return ip
}
