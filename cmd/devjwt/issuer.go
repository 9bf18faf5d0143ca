package main

import (
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/skyporter/luggage-api/internal/platform/auth/jwk"
	"github.com/skyporter/luggage-api/internal/ports/out/clock"
)

type issuer struct {
	key      *rsa.PrivateKey
	kid      string
	issuer   string
	audience string
	ttl      time.Duration
	clock    clock.Clock
}

type devClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

func (i *issuer) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	// Common JWKS path used by many providers.
	r.Get("/.well-known/jwks.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(i.jwks())
	})
	// Mint a JWT:
	//   GET /token?sub=dev|alice&email=alice@example.com
	r.Get("/token", i.token)
	return r
}

func (i *issuer) jwks() jwk.Set {
	return jwk.Set{Keys: []jwk.Key{jwk.FromRSA(i.kid, &i.key.PublicKey)}}
}

func (i *issuer) mint(sub, email string) (string, time.Time, error) {
	now := i.clock.Now()
	exp := now.Add(i.ttl)
	claims := devClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			// small skew tolerance for local use
			NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)),
		},
		Email: email,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = i.kid
	signed, err := tok.SignedString(i.key)
	return signed, exp, err
}

func (i *issuer) token(w http.ResponseWriter, r *http.Request) {
	sub := strings.TrimSpace(r.URL.Query().Get("sub"))
	if sub == "" {
		http.Error(w, "missing sub", http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(r.URL.Query().Get("email"))

	token, exp, err := i.mint(sub, email)
	if err != nil {
		http.Error(w, "failed to mint token", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"token": token,
		"sub":   sub,
		"iss":   i.issuer,
		"aud":   i.audience,
		"exp":   exp.Unix(),
	})
}
