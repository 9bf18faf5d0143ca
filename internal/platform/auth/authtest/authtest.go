// Package authtest mints RS256 tokens and serves their JWKS for tests.
package authtest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/skyporter/luggage-api/internal/platform/auth/jwk"
)

type Signer struct {
	Kid string
	Key *rsa.PrivateKey
}

func NewSigner(t testing.TB, kid string) Signer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	return Signer{Kid: kid, Key: key}
}

// Claims describes a token to mint. Zero NotBefore omits nbf; a negative TTL yields an
// already expired token.
type Claims struct {
	Issuer    string
	Audience  []string
	Subject   string
	Email     string
	IssuedAt  time.Time
	TTL       time.Duration
	NotBefore time.Time
}

func (s Signer) Sign(t testing.TB, c Claims) string {
	t.Helper()
	rc := jwt.MapClaims{
		"iss": c.Issuer,
		"aud": c.Audience,
		"sub": c.Subject,
		"iat": c.IssuedAt.Unix(),
		"exp": c.IssuedAt.Add(c.TTL).Unix(),
	}
	if !c.NotBefore.IsZero() {
		rc["nbf"] = c.NotBefore.Unix()
	}
	if c.Email != "" {
		rc["email"] = c.Email
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, rc)
	tok.Header["kid"] = s.Kid
	signed, err := tok.SignedString(s.Key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

// JWKS serves the public halves of the published signers. Publish swaps the set, which
// is how tests simulate key rotation.
type JWKS struct {
	*httptest.Server
	body atomic.Pointer[[]byte]
	hits atomic.Int64
}

func NewJWKS(t testing.TB, signers ...Signer) *JWKS {
	t.Helper()
	j := &JWKS{}
	j.Publish(signers...)
	j.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		j.hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(*j.body.Load())
	}))
	t.Cleanup(j.Close)
	return j
}

func (j *JWKS) Publish(signers ...Signer) {
	set := jwk.Set{Keys: make([]jwk.Key, 0, len(signers))}
	for _, s := range signers {
		set.Keys = append(set.Keys, jwk.FromRSA(s.Kid, &s.Key.PublicKey))
	}
	b, _ := json.Marshal(set)
	j.body.Store(&b)
}

// Hits reports how many times the key set was fetched.
func (j *JWKS) Hits() int64 { return j.hits.Load() }
