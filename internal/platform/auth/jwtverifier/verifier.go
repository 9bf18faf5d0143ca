// Package jwtverifier authenticates bearer tokens issued by the external identity provider.
package jwtverifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/skyporter/luggage-api/internal/domain"
	"github.com/skyporter/luggage-api/internal/platform/config"
	"github.com/skyporter/luggage-api/internal/ports/out/clock"
)

// ErrUnauthorized wraps every verification failure.
var ErrUnauthorized = errors.New("unauthorized")

// Identity is the authenticated caller extracted from a verified token.
type Identity struct {
	Subject domain.SubjectID
	// Email is empty when the provider omits the claim.
	Email string
}

type Verifier struct {
	cfg   config.JWTConfig
	clock clock.Clock
	keys  *keyCache
}

type Option func(*Verifier)

// WithClock replaces the wall clock used for exp/nbf checks and refresh scheduling.
func WithClock(c clock.Clock) Option {
	return func(v *Verifier) { v.clock = c }
}

// WithHTTPClient replaces the client used to fetch the key set.
func WithHTTPClient(c *retryablehttp.Client) Option {
	return func(v *Verifier) { v.keys.client = c }
}

func New(cfg config.JWTConfig, opts ...Option) *Verifier {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.JWKSRetryMax
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = time.Second
	rc.HTTPClient.Timeout = cfg.HTTPTimeout
	rc.Logger = nil

	v := &Verifier{
		cfg:   cfg,
		clock: clock.Func(time.Now),
		keys:  &keyCache{url: cfg.JWKSURL, client: rc, every: cfg.JWKSRefreshInterval, minGap: cfg.JWKSMinRefreshInterval},
	}
	for _, opt := range opts {
		opt(v)
	}
	v.keys.now = v.clock.Now
	return v
}

type claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// Verify checks an RS256 token's signature against the provider's key set and its
// iss, aud, exp and nbf claims.
func (v *Verifier) Verify(ctx context.Context, token string) (Identity, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token has no kid")
		}
		return v.keys.lookup(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithAudience(v.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.cfg.ClockSkew),
		jwt.WithTimeFunc(v.clock.Now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if c.Subject == "" {
		return Identity{}, fmt.Errorf("%w: empty sub", ErrUnauthorized)
	}
	return Identity{Subject: domain.SubjectID(c.Subject), Email: c.Email}, nil
}
