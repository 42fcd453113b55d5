package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// mounts the predicate with a principal pre-attached, the way the gate would
func rbacRouter(p *Principal, predicate gin.HandlerFunc, path string) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if p != nil {
			c.Set(ctxPrincipalKey, *p)
		}
		c.Next()
	})
	r.GET(path, predicate, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestAdminOnly(t *testing.T) {
	tests := []struct {
		name string
		p    *Principal
		want int
	}{
		{name: "admin passes", p: &Principal{UserID: 1, Role: "admin"}, want: http.StatusOK},
		{name: "super admin passes", p: &Principal{UserID: 1, Role: "super_admin"}, want: http.StatusOK},
		{name: "plain user forbidden", p: &Principal{UserID: 1, Role: "user"}, want: http.StatusForbidden},
		{name: "no principal unauthenticated", p: nil, want: http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := rbacRouter(tc.p, AdminOnly(), "/x")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestAuthenticated(t *testing.T) {
	r := rbacRouter(&Principal{UserID: 3, Role: "user"}, Authenticated(), "/x")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for any authenticated principal", w.Code)
	}
}

func TestAdminOrOwner(t *testing.T) {
	tests := []struct {
		name   string
		p      Principal
		target string
		want   int
	}{
		{name: "owner allowed", p: Principal{UserID: 5, Role: "user"}, target: "5", want: http.StatusOK},
		{name: "non-owner forbidden", p: Principal{UserID: 5, Role: "user"}, target: "6", want: http.StatusForbidden},
		{name: "admin allowed for any target", p: Principal{UserID: 5, Role: "admin"}, target: "6", want: http.StatusOK},
		{name: "super admin allowed for any target", p: Principal{UserID: 5, Role: "super_admin"}, target: "6", want: http.StatusOK},
		{name: "malformed target forbidden for non-admin", p: Principal{UserID: 5, Role: "user"}, target: "abc", want: http.StatusForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := rbacRouter(&tc.p, AdminOrOwner("id"), "/users/:id")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/"+tc.target, nil))

			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}
