// Package jwt issues and verifies the short-lived signed access tokens.
// Access tokens are stateless: verification never touches storage, and a
// revoked session cannot recall an already-issued, still-valid token.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
)

// Claims is the identity embedded in a verified access token.
type Claims struct {
	UserID string
	Email  string
}

// NewAccessToken signs an HS256 token carrying the user identity with an
// absolute expiry ttl from now.
func NewAccessToken(userID, email, secret string, ttl time.Duration) (string, error) {
	const op = "jwt.NewAccessToken"

	now := time.Now()

	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// ParseAccessToken validates the signature and expiry of a signed access
// token and returns the embedded identity.
func ParseAccessToken(tokenStr, secret string) (Claims, error) {
	const op = "jwt.ParseAccessToken"

	claims := jwt.MapClaims{}

	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%s: unexpected signing method", op)
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}

		return Claims{}, ErrTokenMalformed
	}

	if !parsed.Valid {
		return Claims{}, ErrTokenMalformed
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return Claims{}, ErrTokenMalformed
	}

	email, ok := claims["email"].(string)
	if !ok {
		return Claims{}, ErrTokenMalformed
	}

	return Claims{UserID: sub, Email: email}, nil
}
