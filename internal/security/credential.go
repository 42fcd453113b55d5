package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Credential is a stored secret in one of two forms. The variant is decided
// once when the stored value is loaded, not at every call site.
type Credential interface {
	Verify(secret string) bool
}

// Hashed is a bcrypt hash.
type Hashed struct {
	hash []byte
}

func (h Hashed) Verify(secret string) bool {
	return bcrypt.CompareHashAndPassword(h.hash, []byte(secret)) == nil
}

// Legacy is a plaintext secret kept for records imported from the old
// directory. Verification is constant-time; the length check is folded into
// the comparison by hashing both sides first so unequal lengths cannot
// short-circuit.
type Legacy struct {
	secret []byte
}

func (l Legacy) Verify(secret string) bool {
	a := sha256.Sum256(l.secret)
	b := sha256.Sum256([]byte(secret))

	equalDigest := subtle.ConstantTimeCompare(a[:], b[:])
	equalLen := subtle.ConstantTimeEq(int32(len(l.secret)), int32(len(secret)))

	return equalDigest&equalLen == 1
}

// Parse classifies a stored credential. bcrypt output always starts with the
// "$2" version marker; anything else is treated as a legacy plaintext secret.
func Parse(stored string) Credential {
	if strings.HasPrefix(stored, "$2") {
		return Hashed{hash: []byte(stored)}
	}

	return Legacy{secret: []byte(stored)}
}

// HashPassword hashes a plain text password with bcrypt.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}
