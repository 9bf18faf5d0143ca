package jwk

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RoundTripsRSAKeys(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	b, err := json.Marshal(Set{Keys: []Key{
		FromRSA("kid-1", &priv.PublicKey),
		{Kty: "EC", Kid: "ec-1", N: "x", E: "y"},
		{Kty: "RSA", Use: "enc", Kid: "enc-1", N: "x", E: "y"},
	}})
	require.NoError(t, err)

	keys, err := Parse(b)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.True(t, priv.PublicKey.Equal(keys["kid-1"]))
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte(`{"keys":[]}`))
	assert.ErrorIs(t, err, ErrNoKeys)

	_, err = Parse([]byte(`not json`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"keys":[{"kty":"RSA","kid":"k","n":"AQAB","e":"AQ"}]}`))
	assert.ErrorContains(t, err, "exponent out of range")

	_, err = Parse([]byte(`{"keys":[{"kty":"RSA","kid":"k","n":"!!","e":"AQAB"}]}`))
	assert.ErrorContains(t, err, "bad modulus")
}
