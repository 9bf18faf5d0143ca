package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/hlog"

	"github.com/skyporter/luggage-api/internal/app/apperr"
	"github.com/skyporter/luggage-api/internal/domain"
	"github.com/skyporter/luggage-api/internal/platform/auth/jwtverifier"
)

// Verifier checks a bearer token and returns the caller identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (jwtverifier.Identity, error)
}

// Auth failure reasons, used as the metric label.
const (
	authMissing   = "missing"
	authMalformed = "malformed"
	authInvalid   = "invalid"
)

type AuthOption func(*authConfig)

type authConfig struct {
	failures *prometheus.CounterVec
}

// CountAuthFailures increments failures{reason} for every rejected request.
func CountAuthFailures(failures *prometheus.CounterVec) AuthOption {
	return func(c *authConfig) { c.failures = failures }
}

func (c authConfig) reject(w http.ResponseWriter, r *http.Request, reason, msg string) {
	if c.failures != nil {
		c.failures.WithLabelValues(reason).Inc()
	}
	writeError(w, r, http.StatusUnauthorized, apperr.CodeUnauthorized, msg, nil)
}

// bearerToken extracts the token from Authorization. The scheme is matched case-insensitively.
func bearerToken(r *http.Request) (token, reason string) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz == "" {
		return "", authMissing
	}
	scheme, token, ok := strings.Cut(authz, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", authMalformed
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", authMissing
	}
	return token, ""
}

// NewAuthMiddleware requires a verified bearer JWT. Requests already carrying a subject
// (set by the portal session gate) pass through untouched.
func NewAuthMiddleware(v Verifier, opts ...AuthOption) func(http.Handler) http.Handler {
	var cfg authConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := SubjectFromContext(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}
			token, reason := bearerToken(r)
			switch reason {
			case authMissing:
				cfg.reject(w, r, reason, "missing bearer token")
				return
			case authMalformed:
				cfg.reject(w, r, reason, "malformed Authorization header")
				return
			}
			id, err := v.Verify(r.Context(), token)
			if err != nil {
				hlog.FromRequest(r).Debug().Err(err).Msg("bearer token rejected")
				cfg.reject(w, r, authInvalid, "invalid token")
				return
			}
			ctx := withPrincipal(r.Context(), principal{subject: id.Subject, email: id.Email})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewDevAuthMiddleware trusts X-Debug-Subject, falling back to defaultSubject. Local use only.
func NewDevAuthMiddleware(defaultSubject string) func(http.Handler) http.Handler {
	defaultSubject = strings.TrimSpace(defaultSubject)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := SubjectFromContext(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}
			sub := strings.TrimSpace(r.Header.Get("X-Debug-Subject"))
			if sub == "" {
				sub = defaultSubject
			}
			if sub == "" {
				writeError(w, r, http.StatusUnauthorized, apperr.CodeUnauthorized, "missing subject (set X-Debug-Subject)", nil)
				return
			}
			ctx := withPrincipal(r.Context(), principal{
				subject: domain.SubjectID(sub),
				email:   strings.TrimSpace(r.Header.Get("X-Debug-Email")),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
