// Package session issues and verifies the portal session cookie.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/skyporter/luggage-api/internal/domain"
	"github.com/skyporter/luggage-api/internal/ports/out/clock"
)

// Portal identifies a subdomain-scoped UI surface.
type Portal string

const (
	PortalAdmin      Portal = "admin"
	PortalContractor Portal = "contractor"
)

func (p Portal) Valid() bool { return p == PortalAdmin || p == PortalContractor }

// Role is the profile role a portal requires.
func (p Portal) Role() domain.Role {
	if p == PortalAdmin {
		return domain.RoleAdmin
	}
	return domain.RoleContractor
}

// CookieName is "<portal>_session".
func (p Portal) CookieName() string { return string(p) + "_session" }

var ErrInvalid = errors.New("invalid session")

type Claims struct {
	jwt.RegisteredClaims
	ProfileID domain.ProfileID `json:"pid"`
	Role      domain.Role      `json:"role"`
	Portal    Portal           `json:"portal"`
}

// Manager signs session tokens with HS256.
type Manager struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
	secure bool
	domain string
}

func NewManager(secret string, ttl time.Duration, clk clock.Clock, secureCookies bool, cookieDomain string) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl, clock: clk, secure: secureCookies, domain: cookieDomain}
}

// Issue signs a session for p on the given portal. The profile role must match the portal.
func (m *Manager) Issue(p domain.Profile, portal Portal) (string, time.Time, error) {
	if !portal.Valid() {
		return "", time.Time{}, fmt.Errorf("unknown portal %q", portal)
	}
	if p.Role != portal.Role() {
		return "", time.Time{}, ErrInvalid
	}
	now := m.clock.Now()
	exp := now.Add(m.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   string(p.Subject),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		ProfileID: p.ID,
		Role:      p.Role,
		Portal:    portal,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// Parse verifies the token and that it was issued for portal with the matching role.
func (m *Manager) Parse(token string, portal Portal) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.clock.Now),
	)
	if err != nil {
		return Claims{}, ErrInvalid
	}
	if claims.Portal != portal || claims.Role != portal.Role() || claims.Subject == "" {
		return Claims{}, ErrInvalid
	}
	return claims, nil
}

// Cookie builds the Set-Cookie value for a freshly issued token.
func (m *Manager) Cookie(portal Portal, token string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     portal.CookieName(),
		Value:    token,
		Path:     "/",
		Domain:   m.domain,
		Expires:  expires,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie expires the portal cookie.
func (m *Manager) ClearCookie(portal Portal) *http.Cookie {
	return &http.Cookie{
		Name:     portal.CookieName(),
		Value:    "",
		Path:     "/",
		Domain:   m.domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
