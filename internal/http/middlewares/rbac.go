package middlewares

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/userhub/internal/http/httperr"
)

// Role predicates. Each assumes the gate already attached a Principal; a
// missing principal is a wiring bug and rejects as unauthenticated.

// AdminOnly passes admins and super admins.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFromContext(c)

		if !ok {
			abortUnauthenticated(c, "Missing identity context")
			return
		}

		if !p.IsAdmin() {
			abortForbidden(c, "Administrator role required")
			return
		}
		c.Next()
	}
}

// Authenticated passes unconditionally; the gate already proved identity.
func Authenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := PrincipalFromContext(c); !ok {
			abortUnauthenticated(c, "Missing identity context")
			return
		}
		c.Next()
	}
}

// AdminOrOwner passes admins for any target, and ordinary users only when the
// route's id parameter is their own.
func AdminOrOwner(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFromContext(c)

		if !ok {
			abortUnauthenticated(c, "Missing identity context")
			return
		}

		if p.IsAdmin() {
			c.Next()
			return
		}

		targetID, err := strconv.ParseInt(c.Param(param), 10, 64)

		if err != nil || targetID != p.UserID {
			abortForbidden(c, "You can only access your own account")
			return
		}

		c.Next()
	}
}

func abortForbidden(c *gin.Context, message string) {
	httperr.Abort(c, http.StatusForbidden, "forbidden", message)
}
