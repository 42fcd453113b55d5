package middlewares

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/userhub/internal/auth"
	"github.com/geocoder89/userhub/internal/http/httperr"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifyToken(token string) (*auth.Claims, error)
}

// Principal is the authenticated identity for the duration of one request,
// reconstructed from a verified token. It is never persisted.
type Principal struct {
	UserID    int64
	Email     string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (p Principal) IsAdmin() bool {
	return p.Role == "admin" || p.Role == "super_admin"
}

type AuthGate struct {
	jwt TokenVerifier
	log *slog.Logger
}

func NewAuthGate(jwt TokenVerifier, log *slog.Logger) *AuthGate {
	return &AuthGate{jwt: jwt, log: log}
}

const ctxPrincipalKey = "auth.principal"

// Public routes that skip authentication: exact paths plus a few prefixes
// (docs, uploaded assets).
var publicPaths = map[string]struct{}{
	"/":           {},
	"/health":     {},
	"/auth/login": {},
	"/metrics":    {},
}

var publicPrefixes = []string{
	"/docs",
	"/uploads/",
}

func isPublic(path string) bool {
	if _, ok := publicPaths[path]; ok {
		return true
	}

	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}

	return false
}

// Gate is evaluated once per request, before any handler. Every route that is
// not on the public list requires a valid bearer token; this is the only
// place unauthenticated traffic terminates ahead of business logic.
func (g *AuthGate) Gate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isPublic(c.Request.URL.Path) {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			g.log.Warn("request without token",
				"ip", c.ClientIP(), "path", c.Request.URL.Path, "method", c.Request.Method)
			abortUnauthenticated(c, "Missing or invalid Authorization header")
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if raw == "" {
			abortUnauthenticated(c, "Missing or invalid access token")
			return
		}

		claims, err := g.jwt.VerifyToken(raw)
		if err != nil {
			g.log.Warn("request with invalid token",
				"ip", c.ClientIP(), "path", c.Request.URL.Path, "method", c.Request.Method)
			abortUnauthenticated(c, "Invalid or expired access token")
			return
		}

		p := Principal{
			UserID: claims.UserID,
			Email:  claims.Email,
			Role:   claims.Role,
		}

		if claims.IssuedAt != nil {
			p.IssuedAt = claims.IssuedAt.Time
		}

		if claims.ExpiresAt != nil {
			p.ExpiresAt = claims.ExpiresAt.Time
		}

		c.Set(ctxPrincipalKey, p)

		c.Next()
	}
}

func abortUnauthenticated(c *gin.Context, message string) {
	httperr.Abort(c, http.StatusUnauthorized, "unauthenticated", message)
}

// PrincipalFromContext returns the identity the gate attached, so handlers
// don't need to know the magic key.
func PrincipalFromContext(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(ctxPrincipalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}
