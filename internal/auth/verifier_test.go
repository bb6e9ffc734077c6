package auth

import (
	"testing"
	"time"

	"atsforge/internal/errors"

	"github.com/golang-jwt/jwt/v5"
)

func TestVerifyTokenRoundTrip(t *testing.T) {
	v, err := NewVerifier("test-secret")
	if err != nil {
		t.Fatalf("failed to create verifier: %v", err)
	}

	token, err := v.IssueToken("user-42", time.Hour)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	userID, err := v.VerifyToken(token)
	if err != nil {
		t.Fatalf("failed to verify token: %v", err)
	}
	if userID != "user-42" {
		t.Errorf("user id = %q, want user-42", userID)
	}
}

func TestVerifyTokenFailures(t *testing.T) {
	v, err := NewVerifier("test-secret")
	if err != nil {
		t.Fatalf("failed to create verifier: %v", err)
	}

	expired, err := v.IssueToken("user-42", -time.Minute)
	if err != nil {
		t.Fatalf("failed to issue expired token: %v", err)
	}

	other, err := NewVerifier("other-secret")
	if err != nil {
		t.Fatalf("failed to create verifier: %v", err)
	}
	wrongSecret, err := other.IssueToken("user-42", time.Hour)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	noSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	noSubjectSigned, err := noSubject.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	// Tokens signed with "none" must be rejected regardless of claims
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject: "user-42",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build unsigned token: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"expired", expired},
		{"wrong secret", wrongSecret},
		{"no subject", noSubjectSigned},
		{"none algorithm", unsigned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.VerifyToken(tt.token)
			if err == nil {
				t.Fatal("expected error")
			}
			if kind := errors.KindOf(err); kind != errors.KindUnauthorized {
				t.Errorf("error kind = %s, want %s", kind, errors.KindUnauthorized)
			}
		})
	}
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	if _, err := NewVerifier(""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
