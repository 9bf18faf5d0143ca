// Command devjwt is a tiny dev-only JWT issuer and JWKS server.
//
// This is NOT a full OIDC provider. It exists to support local development against
// real RS256 JWT verification (iss/aud/exp + JWKS).
package main

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"

	platformclock "github.com/skyporter/luggage-api/internal/platform/clock"
)

type devConfig struct {
	Port     string        `envconfig:"PORT" default:"5556"`
	Issuer   string        `envconfig:"ISSUER" default:"http://devjwt:5556"`
	Audience string        `envconfig:"AUDIENCE" default:"luggage-api"`
	Kid      string        `envconfig:"KID" default:"dev-kid-1"`
	TTL      time.Duration `envconfig:"TTL" default:"30m"`
}

func loadDevConfig() (devConfig, error) {
	var cfg devConfig
	err := envconfig.Process("", &cfg)
	return cfg, err
}

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "devjwt").Logger()

	cfg, err := loadDevConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		log.Fatal().Err(err).Msg("generate key")
	}

	iss := &issuer{
		key:      priv,
		kid:      cfg.Kid,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cfg.TTL,
		clock:    platformclock.NewSystemClock(),
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           iss.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().Str("addr", srv.Addr).Str("iss", cfg.Issuer).Str("aud", cfg.Audience).
		Str("kid", cfg.Kid).Dur("ttl", cfg.TTL).Msg("devjwt listening")
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("listen")
	}
}
