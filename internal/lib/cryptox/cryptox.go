// Package cryptox holds the credential and token primitives: password salts,
// the password KDF, opaque session tokens and their storage hashes.
package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

// GenerateSalt returns n cryptographically random bytes.
func GenerateSalt(n int) ([]byte, error) {
	const op = "cryptox.GenerateSalt"

	salt := make([]byte, n)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return salt, nil
}

// HashPassword derives a key from the password and salt with Argon2id.
// The same (password, salt) pair always produces the same hash.
func HashPassword(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// VerifyPassword recomputes the hash for the candidate password and compares
// it in constant time against the stored one.
func VerifyPassword(password string, salt, hash []byte) bool {
	candidate := HashPassword(password, salt)

	return subtle.ConstantTimeCompare(candidate, hash) == 1
}

// NewOpaqueToken returns a URL-safe token built from n random bytes. The raw
// value is sent to the client exactly once; only HashToken(token) is stored.
func NewOpaqueToken(n int) (string, error) {
	const op = "cryptox.NewOpaqueToken"

	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken returns the SHA-256 hex digest of an opaque token. Deterministic,
// so stored tokens are looked up by exact hash match.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))

	return hex.EncodeToString(sum[:])
}
