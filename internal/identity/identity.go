// Package identity turns an optional bearer credential into a caller
// identity. Resolution never fails: a missing, malformed, expired or
// unverifiable credential degrades to the anonymous identity and is logged.
//
// Two resolvers exist. Permissive trusts token claims without checking the
// signature and must only be selected for development; Verifying checks the
// signature and expiry before trusting any claim.
package identity

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pkordes/tripplanner/internal/domain"
)

// Resolver maps a credential to an identity.
type Resolver interface {
	Resolve(ctx context.Context, token string) domain.Identity
}

// Claims are the token claims the resolvers read. Cognito-style ID tokens
// carry the email claim; access tokens only carry cognito:username.
type Claims struct {
	Email           string `json:"email"`
	CognitoUsername string `json:"cognito:username"`
	jwt.RegisteredClaims
}

// userID picks the identifying claim: email, then cognito:username, then sub.
func (c *Claims) userID() string {
	switch {
	case c.Email != "":
		return c.Email
	case c.CognitoUsername != "":
		return c.CognitoUsername
	}
	return c.Subject
}

// StripBearer removes a leading "Bearer " (any case) and surrounding space.
func StripBearer(token string) string {
	token = strings.TrimSpace(token)
	if len(token) >= 7 && strings.EqualFold(token[:7], "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}

// ---- Permissive ----

// Permissive trusts unverified claims. It exists for local development and
// mirrors the lenient policy of the mobile and web clients it serves.
// Never select it where identities matter.
type Permissive struct {
	devToken string
	devUser  string
	now      func() time.Time
	logger   *slog.Logger
}

// NewPermissive builds a Permissive resolver. devToken, when non-empty, maps
// to devUser without any decoding.
func NewPermissive(devToken, devUser string, logger *slog.Logger) *Permissive {
	return &Permissive{devToken: devToken, devUser: devUser, now: time.Now, logger: logger}
}

// Resolve decodes token without verifying it.
func (p *Permissive) Resolve(_ context.Context, token string) domain.Identity {
	token = StripBearer(token)
	if token == "" {
		return domain.Anonymous()
	}
	if p.devToken != "" && token == p.devToken {
		return domain.Identity{UserID: p.devUser}
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		p.logger.Warn("identity degraded to anonymous", "reason", "malformed token", "error", err)
		return domain.Anonymous()
	}
	if exp := claims.ExpiresAt; exp != nil && exp.Before(p.now()) {
		p.logger.Warn("identity degraded to anonymous", "reason", "token expired", "expired_at", exp.Time)
		return domain.Anonymous()
	}
	id := claims.userID()
	if id == "" {
		p.logger.Warn("identity degraded to anonymous", "reason", "no identifying claim")
		return domain.Anonymous()
	}
	return domain.Identity{UserID: id}
}

// ---- Verifying ----

// Verifying trusts claims only from tokens whose signature and expiry check
// out against the configured key.
type Verifying struct {
	hmacSecret []byte
	rsaKey     *rsa.PublicKey
	parser     *jwt.Parser
	logger     *slog.Logger
}

// NewVerifyingHMAC verifies HS256/384/512 tokens against secret.
func NewVerifyingHMAC(secret []byte, logger *slog.Logger) (*Verifying, error) {
	if len(secret) == 0 {
		return nil, errors.New("identity.NewVerifyingHMAC: empty secret")
	}
	return &Verifying{
		hmacSecret: secret,
		parser:     jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}), jwt.WithExpirationRequired()),
		logger:     logger,
	}, nil
}

// NewVerifyingRSA verifies RS256/384/512 tokens against a PEM public key.
func NewVerifyingRSA(pemKey []byte, logger *slog.Logger) (*Verifying, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("identity.NewVerifyingRSA: %w", err)
	}
	return &Verifying{
		rsaKey: key,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}), jwt.WithExpirationRequired()),
		logger: logger,
	}, nil
}

// Resolve verifies token and returns its identity.
func (v *Verifying) Resolve(_ context.Context, token string) domain.Identity {
	token = StripBearer(token)
	if token == "" {
		return domain.Anonymous()
	}
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(token, claims, v.key)
	if err != nil {
		v.logger.Warn("identity degraded to anonymous", "reason", "token rejected", "error", err)
		return domain.Anonymous()
	}
	id := claims.userID()
	if id == "" {
		v.logger.Warn("identity degraded to anonymous", "reason", "no identifying claim")
		return domain.Anonymous()
	}
	return domain.Identity{UserID: id}
}

func (v *Verifying) key(*jwt.Token) (any, error) {
	if v.rsaKey != nil {
		return v.rsaKey, nil
	}
	return v.hmacSecret, nil
}

var (
	_ Resolver = (*Permissive)(nil)
	_ Resolver = (*Verifying)(nil)
)
