package testutil

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSigner issues HS256 access tokens the way the upstream auth service does.
type TokenSigner struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
}

// Sign returns a token for userID in tenantID.
func (s TokenSigner) Sign(t *testing.T, userID, tenantID string) string {
	t.Helper()
	return s.SignAt(t, userID, tenantID, time.Now())
}

// SignAt returns a token issued at issuedAt.
func (s TokenSigner) SignAt(t *testing.T, userID, tenantID string, issuedAt time.Time) string {
	t.Helper()

	ttl := s.TTL
	if ttl == 0 {
		ttl = 15 * time.Minute
	}

	claims := jwt.MapClaims{
		"sub":       userID,
		"tenant_id": tenantID,
		"iat":       issuedAt.Unix(),
		"exp":       issuedAt.Add(ttl).Unix(),
	}
	if s.Issuer != "" {
		claims["iss"] = s.Issuer
	}
	if s.Audience != "" {
		claims["aud"] = s.Audience
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.Secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}
