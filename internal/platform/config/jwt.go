package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// JWTConfig configures bearer JWT verification against a JWKS endpoint.
type JWTConfig struct {
	Issuer   string `envconfig:"JWT_ISSUER" validate:"required"`
	Audience string `envconfig:"JWT_AUDIENCE" validate:"required"`
	JWKSURL  string `envconfig:"JWT_JWKS_URL" validate:"required,url"`

	ClockSkew time.Duration `envconfig:"JWT_CLOCK_SKEW" default:"30s" validate:"gte=0"`
	// Cached keys are refetched after this long even when every kid is known.
	JWKSRefreshInterval time.Duration `envconfig:"JWT_JWKS_REFRESH_INTERVAL" default:"5m"`
	// An unknown kid triggers a refetch at most this often.
	JWKSMinRefreshInterval time.Duration `envconfig:"JWT_JWKS_MIN_REFRESH_INTERVAL" default:"10s"`
	JWKSRetryMax           int           `envconfig:"JWT_JWKS_RETRY_MAX" default:"2" validate:"gte=0,lte=10"`

	HTTPTimeout time.Duration `envconfig:"JWT_HTTP_TIMEOUT" default:"5s" validate:"gt=0"`
}

func LoadJWTConfigFromEnv() (JWTConfig, error) {
	var cfg JWTConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return JWTConfig{}, fmt.Errorf("jwt config: %w", err)
	}
	if err := validateStruct(cfg); err != nil {
		return JWTConfig{}, err
	}
	return cfg, nil
}
