// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

const (
	AuthModeJWT = "jwt"
	AuthModeDev = "dev"

	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// devSessionSecret signs portal cookies in AUTH_MODE=dev when SESSION_SECRET is unset.
const devSessionSecret = "dev-only-session-secret-not-for-production"

type Config struct {
	Port string `envconfig:"PORT" default:"8080" validate:"required,numeric"`

	AuthMode   string `envconfig:"AUTH_MODE" default:"jwt" validate:"oneof=jwt dev"`
	DevSubject string `envconfig:"DEV_SUBJECT" default:"dev|local"`
	DevIssuer  string `envconfig:"DEV_ISSUER" default:"dev"`

	// JWT is loaded separately and only in jwt mode.
	JWT JWTConfig `ignored:"true" validate:"-"`

	BaseDomain    string        `envconfig:"BASE_DOMAIN" default:"localhost" validate:"required,hostname_rfc1123"`
	LoginURL      string        `envconfig:"LOGIN_URL" default:"/login" validate:"required"`
	SessionSecret string        `envconfig:"SESSION_SECRET" validate:"required,min=32"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"12h" validate:"gt=0"`
	CookieSecure  bool          `envconfig:"COOKIE_SECURE" default:"true"`

	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"memory" validate:"oneof=memory postgres"`
	DatabaseURL    string `envconfig:"DATABASE_URL" validate:"required_if=StorageBackend postgres"`

	GeminiAPIKey  string        `envconfig:"GEMINI_API_KEY"`
	GeminiModel   string        `envconfig:"GEMINI_MODEL" default:"gemini-1.5-flash" validate:"required"`
	GeminiBaseURL string        `envconfig:"GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com" validate:"required,url"`
	GeminiTimeout time.Duration `envconfig:"GEMINI_TIMEOUT" default:"15s"`

	AMQPURL      string `envconfig:"AMQP_URL" validate:"omitempty,url"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"luggage.events"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn error"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json console"`

	IdempotencyTTL   time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h" validate:"gt=0"`
	IdempotencySweep time.Duration `envconfig:"IDEMPOTENCY_SWEEP" default:"10m" validate:"gt=0"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// LoadEnv reads the environment without validating it. Commands that only need part of
// the configuration (such as migrate) use it.
func LoadEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Load reads the environment, fills dev-mode defaults, and validates the result.
func Load() (Config, error) {
	cfg, err := LoadEnv()
	if err != nil {
		return Config{}, err
	}
	if cfg.AuthMode == AuthModeDev && cfg.SessionSecret == "" {
		cfg.SessionSecret = devSessionSecret
	}
	if cfg.AuthMode == AuthModeJWT {
		jwtCfg, err := LoadJWTConfigFromEnv()
		if err != nil {
			return Config{}, err
		}
		cfg.JWT = jwtCfg
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = newValidator()

// newValidator reports fields by their environment variable names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("envconfig")
	})
	return v
}

func (c Config) Validate() error {
	return validateStruct(c)
}

func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// AuthIssuer is the issuer that scopes subjects in storage.
func (c Config) AuthIssuer() string {
	if c.AuthMode == AuthModeDev {
		return c.DevIssuer
	}
	return c.JWT.Issuer
}
