// Package auth issues and checks operator tokens for the protected ops
// endpoints. Tokens are short-lived HS256 JWTs; there is no refresh flow,
// operators mint a new one with cmd/token when the old one expires.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the lifetime of a token when TokenConfig.TTL is zero.
const DefaultTTL = time.Hour

// Scopes granted to operators.
const (
	// ScopeRead allows reading fetch health from /v1/ops/status.
	ScopeRead = "status:read"
	// ScopeSweep allows starting a sweep with POST /v1/ops/sweep.
	ScopeSweep = "status:sweep"
)

var (
	ErrInvalidToken      = errors.New("invalid access token")
	ErrTokenExpired      = errors.New("access token has expired")
	ErrMissingSigningKey = errors.New("signing key is required")
)

// Claims are the contents of an operator token.
type Claims struct {
	jwt.RegisteredClaims

	// Scope is a space separated list of granted scopes.
	Scope string `json:"scope,omitempty"`
}

// HasScope reports whether the token grants scope.
func (c *Claims) HasScope(scope string) bool {
	return slices.Contains(strings.Fields(c.Scope), scope)
}

// TokenConfig configures a TokenService.
type TokenConfig struct {
	SigningKey string
	Issuer     string
	Audience   string
	TTL        time.Duration
}

// Token is a signed token and the moment it stops being accepted.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// TokenService issues and validates operator tokens.
type TokenService struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewTokenService returns a service for cfg. The signing key is required.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.SigningKey == "" {
		return nil, ErrMissingSigningKey
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	return &TokenService{
		key:      []byte(cfg.SigningKey),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cfg.TTL,
		now:      time.Now,
	}, nil
}

// Issue signs a token for subject granting scopes.
func (s *TokenService) Issue(subject string, scopes ...string) (Token, error) {
	now := s.now()
	expires := now.Add(s.ttl)

	id := make([]byte, 16)
	if _, err := rand.Read(id); err != nil {
		return Token{}, fmt.Errorf("generating token id: %w", err)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        base64.RawURLEncoding.EncodeToString(id),
			Issuer:    s.issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Scope: strings.Join(scopes, " "),
	}).SignedString(s.key)
	if err != nil {
		return Token{}, fmt.Errorf("signing token: %w", err)
	}

	return Token{Value: signed, ExpiresAt: expires}, nil
}

// Validate checks signature, issuer, audience and expiry and returns the
// claims. Tokens without a subject are rejected.
func (s *TokenService) Validate(token string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (interface{}, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	case claims.Subject == "":
		return nil, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return &claims, nil
}
