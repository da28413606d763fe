// Package jwt verifies HS256 access tokens issued by the external auth service.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/pos-identity/internal/pkg/httputil"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// Config contains token verification settings.
type Config struct {
	SecretKey string
	Issuer    string        // optional; checked when set
	Audience  string        // optional; checked when set
	Leeway    time.Duration // tolerated clock skew
}

// Claims are the access token claims. Subject carries the user id.
type Claims struct {
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// Verifier implements httputil.TokenVerifier.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier creates a verifier for tokens signed with cfg.SecretKey.
func NewVerifier(cfg Config) *Verifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &Verifier{
		secret: []byte(cfg.SecretKey),
		parser: jwt.NewParser(opts...),
	}
}

// VerifyToken validates the signature and registered claims and returns the caller.
func (v *Verifier) VerifyToken(_ context.Context, tokenString string) (httputil.Principal, error) {
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return httputil.Principal{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.Subject == "" || claims.TenantID == "" {
		return httputil.Principal{}, fmt.Errorf("%w: missing sub or tenant_id claim", ErrInvalidToken)
	}

	return httputil.Principal{
		UserID:   claims.Subject,
		TenantID: claims.TenantID,
	}, nil
}
