// Package config loads service configuration from the environment.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds every runtime setting of the API process. Values are read
// once at startup from OCTOBRE_* environment variables.
type Config struct {
	Addr     string `envconfig:"ADDR" default:":8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseDSN   string `envconfig:"PG_DSN"`
	MigrationsDir string `envconfig:"MIGRATIONS_DIR" default:"migrations"`
	SeedsDir      string `envconfig:"SEEDS_DIR" default:"seeds"`

	IssuerURL string `envconfig:"ISSUER_URL" default:"http://localhost:3080"`

	AltchaHMACKey string `envconfig:"ALTCHA_HMAC_KEY"`

	SMTPHost string `envconfig:"SMTP_HOST"`
	SMTPPort int    `envconfig:"SMTP_PORT" default:"465"`
	SMTPUser string `envconfig:"SMTP_USER"`
	SMTPPass string `envconfig:"SMTP_PASS"`
	MailFrom string `envconfig:"MAIL_FROM"`
	MailTo   string `envconfig:"MAIL_TO"`

	AuthorizedOrigins []string `envconfig:"AUTHORIZED_ORIGINS"`

	RateLimitPerSecond int   `envconfig:"RATE_LIMIT_PER_SECOND" default:"20"`
	RateLimitBurst     int   `envconfig:"RATE_LIMIT_BURST" default:"40"`
	MaxBodyBytes       int64 `envconfig:"MAX_BODY_BYTES" default:"1048576"`
}

// Load reads configuration from the OCTOBRE_ environment prefix.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("octobre", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// MailConfigured reports whether outbound mail can be sent.
func (c Config) MailConfigured() bool {
	return c.SMTPHost != "" && c.MailFrom != ""
}
