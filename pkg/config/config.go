// Package config loads the backend configuration from the environment
// (with optional .env file) plus an optional YAML overrides file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Credentials is one registered client application at one provider.
type Credentials struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
}

func (c Credentials) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type Config struct {
	Addr        string `env:"CROSSPOST_ADDR" envDefault:":8000"`
	BackendURL  string `env:"CROSSPOST_BACKEND_URL" envDefault:"http://localhost:8000" validate:"required,url"`
	FrontendURL string `env:"CROSSPOST_FRONTEND_URL" envDefault:"http://localhost:3000" validate:"required,url"`

	SessionSecret   string        `env:"CROSSPOST_SESSION_SECRET" validate:"required,min=32"`
	SessionTTL      time.Duration `env:"CROSSPOST_SESSION_TTL" envDefault:"24h"`
	PendingTTL      time.Duration `env:"CROSSPOST_PENDING_TTL" envDefault:"10m"`
	ExchangeTimeout time.Duration `env:"CROSSPOST_EXCHANGE_TIMEOUT" envDefault:"15s"`
	SecureCookies   bool          `env:"CROSSPOST_SECURE_COOKIES"`

	// RedisAddr switches the session and pending-state stores from the
	// in-process maps to Redis when set.
	RedisAddr string `env:"CROSSPOST_REDIS_ADDR"`

	AllowedOrigins []string `env:"CROSSPOST_ALLOWED_ORIGINS" envSeparator:","`
	MaxUploadBytes int64    `env:"CROSSPOST_MAX_UPLOAD_BYTES" envDefault:"52428800"`

	// OverridesFile points at an optional YAML file adjusting scopes
	// and CORS origins without touching the environment.
	OverridesFile string `env:"CROSSPOST_OVERRIDES_FILE"`

	Twitter   TwitterCredentials `envPrefix:"TWITTER_"`
	LinkedIn  Credentials        `envPrefix:"LINKEDIN_"`
	YouTube   Credentials        `envPrefix:"YOUTUBE_"`
	Facebook  Credentials        `envPrefix:"FACEBOOK_"`
	Instagram Credentials        `envPrefix:"INSTAGRAM_"`
	TikTok    Credentials        `envPrefix:"TIKTOK_"`

	// Scopes overrides the default scope set per provider.
	Scopes map[string][]string `env:"-"`
}

// TwitterCredentials is the 1.0a consumer key pair.
type TwitterCredentials struct {
	APIKey    string `env:"API_KEY"`
	APISecret string `env:"API_SECRET"`
}

func (c TwitterCredentials) Configured() bool {
	return c.APIKey != "" && c.APISecret != ""
}

type overrides struct {
	AllowedOrigins []string            `yaml:"allowed_origins"`
	Scopes         map[string][]string `yaml:"scopes"`
}

// Load reads .env (best effort), the environment and the optional
// overrides file, then validates the result.
func Load() (*Config, error) {
	// Missing .env is the normal case outside development.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("unable to parse environment: %w", err)
	}

	if cfg.OverridesFile != "" {
		if err := cfg.applyOverrides(cfg.OverridesFile); err != nil {
			return nil, err
		}
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{cfg.FrontendURL}
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to read overrides file: %w", err)
	}

	var ov overrides
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return fmt.Errorf("unable to parse overrides file: %w", err)
	}

	if len(ov.AllowedOrigins) > 0 {
		c.AllowedOrigins = ov.AllowedOrigins
	}
	if len(ov.Scopes) > 0 {
		c.Scopes = ov.Scopes
	}
	return nil
}

// CallbackURL is the registered redirect target for a provider.
func (c *Config) CallbackURL(provider string) string {
	return c.BackendURL + "/auth/" + provider + "/callback"
}

// ProviderScopes returns the override scopes for provider, or def.
func (c *Config) ProviderScopes(provider string, def []string) []string {
	if scopes, ok := c.Scopes[provider]; ok {
		return scopes
	}
	return def
}
