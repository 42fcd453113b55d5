package auth

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGenerateAndVerifyToken(t *testing.T) {
	m := NewManager("test-secret", 24*time.Hour, testLogger())

	token, err := m.GenerateToken(5, "u@example.com", "user")

	if err != nil {
		t.Fatalf("GenerateToken returned error: %v", err)
	}

	claims, err := m.VerifyToken(token)

	if err != nil {
		t.Fatalf("VerifyToken returned error: %v", err)
	}

	if claims.UserID != 5 || claims.Email != "u@example.com" || claims.Role != "user" {
		t.Errorf("claims mismatch: got %+v", claims)
	}

	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		t.Fatalf("expected issued-at and expiry to be set")
	}

	ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time)

	if ttl != 24*time.Hour {
		t.Errorf("token ttl = %v, want 24h", ttl)
	}
}

func TestVerifyTokenFailures(t *testing.T) {
	m := NewManager("test-secret", time.Hour, testLogger())

	token, err := m.GenerateToken(1, "a@x.com", "super_admin")

	if err != nil {
		t.Fatalf("GenerateToken returned error: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{name: "tampered signature", token: token[:len(token)-3] + "abc"},
		{name: "garbage", token: "not-a-token"},
		{name: "empty", token: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := m.VerifyToken(tc.token); err == nil {
				t.Errorf("expected verification to fail")
			}
		})
	}
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	issuer := NewManager("secret-one", time.Hour, testLogger())
	verifier := NewManager("secret-two", time.Hour, testLogger())

	token, err := issuer.GenerateToken(1, "a@x.com", "admin")

	if err != nil {
		t.Fatalf("GenerateToken returned error: %v", err)
	}

	if _, err := verifier.VerifyToken(token); err == nil {
		t.Errorf("expected a token signed with another secret to be rejected")
	}
}

func TestVerifyTokenExpired(t *testing.T) {
	m := NewManager("test-secret", -time.Minute, testLogger())

	token, err := m.GenerateToken(1, "a@x.com", "user")

	if err != nil {
		t.Fatalf("GenerateToken returned error: %v", err)
	}

	_, err = m.VerifyToken(token)

	if err == nil {
		t.Fatalf("expected expired token to be rejected")
	}

	if !strings.Contains(err.Error(), "expired") {
		t.Errorf("expected an expiry error, got: %v", err)
	}
}

func TestGenerateTokenWithoutSecret(t *testing.T) {
	m := NewManager("", time.Hour, testLogger())

	if _, err := m.GenerateToken(1, "a@x.com", "user"); err != ErrNoSecret {
		t.Errorf("expected ErrNoSecret, got %v", err)
	}
}
