package middlewares

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func limiterRouter(limit int, window time.Duration) *gin.Engine {
	r := gin.New()
	rl := NewRateLimiter(limit, window, testLogger())
	r.Use(rl.Middleware(KeyByIP))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func doGet(r *gin.Engine, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = ip + ":12345"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiterRejectsOverLimit(t *testing.T) {
	const limit = 3
	r := limiterRouter(limit, time.Minute)

	for i := 0; i < limit; i++ {
		if w := doGet(r, "10.0.0.1"); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, w.Code)
		}
	}

	w := doGet(r, "10.0.0.1")

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("request %d: status = %d, want 429", limit+1, w.Code)
	}

	if w.Header().Get("Retry-After") == "" {
		t.Errorf("429 response missing Retry-After header")
	}
}

func TestRateLimiterIsolatesSources(t *testing.T) {
	r := limiterRouter(1, time.Minute)

	if w := doGet(r, "10.0.0.1"); w.Code != http.StatusOK {
		t.Fatalf("first source: status = %d, want 200", w.Code)
	}

	if w := doGet(r, "10.0.0.2"); w.Code != http.StatusOK {
		t.Errorf("second source throttled by first source's traffic: %d", w.Code)
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	r := limiterRouter(1, 30*time.Millisecond)

	if w := doGet(r, "10.0.0.1"); w.Code != http.StatusOK {
		t.Fatalf("first request: status = %d, want 200", w.Code)
	}

	if w := doGet(r, "10.0.0.1"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request in window: status = %d, want 429", w.Code)
	}

	time.Sleep(50 * time.Millisecond)

	if w := doGet(r, "10.0.0.1"); w.Code != http.StatusOK {
		t.Errorf("request after window elapsed: status = %d, want 200", w.Code)
	}
}

// Mutating and auth requests are logged with their source address before any
// throttling decision; plain reads are not.
func TestSensitiveRequestLogging(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	r := gin.New()
	rl := NewRateLimiter(10, time.Minute, log)
	r.Use(rl.Middleware(KeyByIP))

	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) }
	r.GET("/users", ok)
	r.POST("/users", ok)
	r.POST("/auth/login", ok)

	send := func(method, path string) {
		req := httptest.NewRequest(method, path, nil)
		req.RemoteAddr = "10.0.0.9:4567"
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	send(http.MethodGet, "/users")

	if buf.Len() != 0 {
		t.Errorf("plain GET was audit-logged: %s", buf.String())
	}

	send(http.MethodPost, "/users")
	send(http.MethodPost, "/auth/login")

	out := buf.String()

	if !strings.Contains(out, "ip=10.0.0.9") {
		t.Errorf("audit log missing source address: %s", out)
	}

	if !strings.Contains(out, "path=/users") || !strings.Contains(out, "path=/auth/login") {
		t.Errorf("audit log missing request paths: %s", out)
	}
}

// A per-account key draws from one budget no matter which address the
// requests arrive from, and falls back to the address when no identity is
// attached.
func TestKeyByUserOrIP(t *testing.T) {
	newRouter := func(p *Principal) *gin.Engine {
		r := gin.New()
		r.Use(func(c *gin.Context) {
			if p != nil {
				c.Set(ctxPrincipalKey, *p)
			}
			c.Next()
		})
		rl := NewRateLimiter(1, time.Minute, testLogger())
		r.Use(rl.Middleware(KeyByUserOrIP))
		r.POST("/x", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"ok": true})
		})
		return r
	}

	post := func(r *gin.Engine, ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req.RemoteAddr = ip + ":9999"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	// same user from two addresses shares one budget
	r := newRouter(&Principal{UserID: 7, Role: "user"})

	if code := post(r, "10.0.0.1"); code != http.StatusOK {
		t.Fatalf("first request: status = %d, want 200", code)
	}

	if code := post(r, "10.0.0.2"); code != http.StatusTooManyRequests {
		t.Errorf("same account from a new address: status = %d, want 429", code)
	}

	// without a principal, distinct addresses get distinct budgets
	r = newRouter(nil)

	if code := post(r, "10.0.0.1"); code != http.StatusOK {
		t.Fatalf("anonymous first address: status = %d, want 200", code)
	}

	if code := post(r, "10.0.0.2"); code != http.StatusOK {
		t.Errorf("anonymous second address throttled: status = %d, want 200", code)
	}
}

func TestEvictExpired(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute, testLogger())
	now := time.Now()

	rl.clients["stale"] = &clientBucket{count: 1, windowEnd: now.Add(-time.Second)}
	rl.clients["live"] = &clientBucket{count: 1, windowEnd: now.Add(time.Minute)}

	rl.evictExpired(now)

	if _, ok := rl.clients["stale"]; ok {
		t.Errorf("expired entry survived eviction")
	}

	if _, ok := rl.clients["live"]; !ok {
		t.Errorf("live entry was evicted")
	}
}
