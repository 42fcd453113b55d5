package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/geocoder89/userhub/internal/auth"
	"github.com/geocoder89/userhub/internal/domain/user"
	"github.com/geocoder89/userhub/internal/http/handlers"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/geocoder89/userhub/internal/security"
	"github.com/geocoder89/userhub/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testProm() *observability.Prom {
	return observability.NewProm(prometheus.NewRegistry())
}

type fakeUserReader struct {
	findFn func(ctx context.Context, email string) (user.User, error)
}

func (f *fakeUserReader) FindByEmail(ctx context.Context, email string) (user.User, error) {
	if f.findFn != nil {
		return f.findFn(ctx, email)
	}
	return user.User{}, store.ErrNotFound
}

func loginRouter(users handlers.UserReader, m *auth.Manager) *gin.Engine {
	r := gin.New()
	h := handlers.NewAuthHandler(users, m, testLogger(), testProm())
	r.POST("/auth/login", h.Login)
	return r
}

func postLogin(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoginSuccess(t *testing.T) {
	hash, err := security.HashPassword("s3cret!!")

	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	stored := user.User{ID: 2, Name: "Bea", Email: "b@y.com", Role: user.RoleUser, Credential: hash}

	m := auth.NewManager("test-secret", 24*time.Hour, testLogger())
	r := loginRouter(&fakeUserReader{findFn: func(_ context.Context, email string) (user.User, error) {
		if email == stored.Email {
			return stored, nil
		}
		return user.User{}, store.ErrNotFound
	}}, m)

	w := postLogin(r, `{"email":"b@y.com","password":"s3cret!!"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}

	var resp handlers.LoginResponse

	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response did not decode: %v", err)
	}

	if resp.User.Email != "b@y.com" || resp.User.ID != 2 {
		t.Errorf("public user mismatch: %+v", resp.User)
	}

	// the token round-trips through the same manager with matching claims
	claims, err := m.VerifyToken(resp.Token)

	if err != nil {
		t.Fatalf("issued token failed verification: %v", err)
	}

	if claims.UserID != stored.ID || claims.Email != stored.Email || claims.Role != stored.Role {
		t.Errorf("token claims mismatch: %+v", claims)
	}
}

func TestLoginLegacyCredential(t *testing.T) {
	stored := user.User{ID: 1, Email: "a@x.com", Role: user.RoleSuperAdmin, Credential: "1234"}

	m := auth.NewManager("test-secret", time.Hour, testLogger())
	r := loginRouter(&fakeUserReader{findFn: func(context.Context, string) (user.User, error) {
		return stored, nil
	}}, m)

	if w := postLogin(r, `{"email":"a@x.com","password":"1234"}`); w.Code != http.StatusOK {
		t.Errorf("legacy plaintext credential rejected: status = %d", w.Code)
	}

	if w := postLogin(r, `{"email":"a@x.com","password":"12345"}`); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong legacy password accepted: status = %d", w.Code)
	}
}

// Unknown email and wrong password must be indistinguishable in the response.
func TestLoginFailuresAreUniform(t *testing.T) {
	hash, _ := security.HashPassword("right")
	stored := user.User{ID: 2, Email: "b@y.com", Role: user.RoleUser, Credential: hash}

	m := auth.NewManager("test-secret", time.Hour, testLogger())
	r := loginRouter(&fakeUserReader{findFn: func(_ context.Context, email string) (user.User, error) {
		if email == stored.Email {
			return stored, nil
		}
		return user.User{}, store.ErrNotFound
	}}, m)

	unknown := postLogin(r, `{"email":"nobody@y.com","password":"right"}`)
	wrongPw := postLogin(r, `{"email":"b@y.com","password":"wrong"}`)

	if unknown.Code != http.StatusUnauthorized || wrongPw.Code != http.StatusUnauthorized {
		t.Fatalf("statuses = (%d, %d), want (401, 401)", unknown.Code, wrongPw.Code)
	}

	if unknown.Body.String() != wrongPw.Body.String() {
		t.Errorf("failure bodies differ:\n%s\n%s", unknown.Body.String(), wrongPw.Body.String())
	}
}

func TestLoginValidation(t *testing.T) {
	m := auth.NewManager("test-secret", time.Hour, testLogger())
	r := loginRouter(&fakeUserReader{}, m)

	tests := []struct {
		name string
		body string
	}{
		{name: "missing password", body: `{"email":"b@y.com"}`},
		{name: "missing email", body: `{"password":"x"}`},
		{name: "malformed email", body: `{"email":"nope","password":"x"}`},
		{name: "bad json", body: `{`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if w := postLogin(r, tc.body); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestLoginStoreUnavailable(t *testing.T) {
	m := auth.NewManager("test-secret", time.Hour, testLogger())
	r := loginRouter(&fakeUserReader{findFn: func(context.Context, string) (user.User, error) {
		return user.User{}, errors.Join(store.ErrUnavailable, errors.New("connection refused"))
	}}, m)

	if w := postLogin(r, `{"email":"b@y.com","password":"x"}`); w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 when the store is down", w.Code)
	}
}
