// Package auth issues and verifies the HS256 bearer tokens that protect the
// VendorGuard HTTP API.
package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Scopes carried in API tokens.
const (
	// ScopeAnalyze allows running new analyses.
	ScopeAnalyze = "vendors:analyze"
	// ScopeRead allows reading reports, stats, the audit log and the policy.
	ScopeRead = "reports:read"
)

// DefaultScopes are granted when Issue is called without scopes.
var DefaultScopes = []string{ScopeAnalyze, ScopeRead}

// ErrMissingScope is returned by Claims.Require for an absent scope.
var ErrMissingScope = errors.New("token lacks required scope")

// Claims are the JWT claims of an API token.
type Claims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scopes"`
}

// Require returns ErrMissingScope unless c grants scope.
func (c *Claims) Require(scope string) error {
	if slices.Contains(c.Scopes, scope) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMissingScope, scope)
}

// TokenIssuer issues and verifies API tokens signed with a shared secret.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenIssuer creates a TokenIssuer.
//
//	secret: HMAC key; must be at least 32 bytes.
//	issuer: the "iss" claim value.
//	ttl:    token lifetime (default: 24 hours).
func NewTokenIssuer(secret, issuer string, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("auth secret must be at least 32 bytes, got %d", len(secret))
	}
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), issuer: issuer, ttl: ttl}, nil
}

// Issue creates a signed token for subject. With no scopes, DefaultScopes
// are granted.
func (t *TokenIssuer) Issue(subject string, scopes ...string) (string, error) {
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			ID:        uuid.New().String(),
		},
		Scopes: scopes,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign api token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims.
func (t *TokenIssuer) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return t.secret, nil
		},
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("verify api token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid api token claims")
	}
	return claims, nil
}
