// Package auth verifies bearer credentials and extracts the caller's
// identity. The pipeline trusts this identity unconditionally once verified.
package auth

import (
	"strings"
	"time"

	"atsforge/internal/errors"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates HS256-signed bearer tokens
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for the configured signing secret
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.NewInternalError(errors.ErrCodeInvalidConfig,
			"auth JWT secret is not configured", nil)
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// VerifyToken validates a bearer token and returns the user identity from
// its subject claim
func (v *Verifier) VerifyToken(tokenString string) (string, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return "", errors.NewUnauthorized(errors.ErrCodeMissingIdentity,
			"bearer token is required")
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", errors.NewUnauthorized(errors.ErrCodeInvalidToken,
			"bearer token is invalid or expired")
	}

	if claims.Subject == "" {
		return "", errors.NewUnauthorized(errors.ErrCodeInvalidToken,
			"bearer token has no subject claim")
	}
	return claims.Subject, nil
}

// IssueToken signs a token for the given user. Used by the CLI for local
// testing against a running server.
func (v *Verifier) IssueToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", errors.NewInternalError(errors.ErrCodeInvalidToken,
			"failed to sign token", err)
	}
	return signed, nil
}
