// Package token mints and validates access tokens and produces the opaque
// refresh tokens that back session rotation.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lazyrag/authplane/internal/core/domain"
)

const (
	DefaultAccessTTL  = 60 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Options configures an Engine. Zero TTLs fall back to the defaults.
type Options struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

// Claims are the access-token claims the rest of the system consumes.
type Claims struct {
	UserID    int64
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type accessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Engine signs access tokens with HS256 and computes refresh expiries.
type Engine struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	parser     *jwt.Parser
}

// NewEngine returns an Engine or a configuration error when no secret is set.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Secret == "" {
		return nil, fmt.Errorf("%w: JWT_SECRET is required", domain.ErrConfiguration)
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = DefaultAccessTTL
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = DefaultRefreshTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	e := &Engine{
		secret:     []byte(opts.Secret),
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
		now:        opts.Now,
	}
	e.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(e.now),
	)
	return e, nil
}

// AccessTTL is the lifetime of minted access tokens.
func (e *Engine) AccessTTL() time.Duration { return e.accessTTL }

// MintAccessToken signs {sub, role, iat, exp} for the given user.
func (e *Engine) MintAccessToken(userID int64, role string) (string, error) {
	now := e.now()
	claims := accessClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(e.accessTTL)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(e.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ValidateAccessToken verifies signature and expiry and returns the claims.
// Any failure, including a missing or non-numeric subject, is ErrInvalidToken.
func (e *Engine) ValidateAccessToken(raw string) (Claims, error) {
	var claims accessClaims
	tkn, err := e.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return e.secret, nil
	})
	if err != nil || !tkn.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, fmt.Errorf("%w: expired", domain.ErrInvalidToken)
		}
		return Claims{}, domain.ErrInvalidToken
	}

	if claims.Subject == "" {
		return Claims{}, domain.ErrInvalidToken
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return Claims{}, domain.ErrInvalidToken
	}

	out := Claims{UserID: userID, Role: claims.Role}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// RefreshExpiry is the expiry for a refresh token issued at now.
func (e *Engine) RefreshExpiry(now time.Time) time.Time {
	return now.Add(e.refreshTTL)
}

// Now exposes the engine clock so callers compare expiries consistently.
func (e *Engine) Now() time.Time { return e.now() }
