package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Env  string `env:"ENV" envDefault:"development"`
	Port string `env:"PORT" envDefault:"8080"`

	DatabaseURL   string `env:"DATABASE_URL,required"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	AccessTokenSecret  string        `env:"ACCESS_TOKEN_SECRET,required"`
	RefreshTokenSecret string        `env:"REFRESH_TOKEN_SECRET,required"`
	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`

	CookieDomain string `env:"COOKIE_DOMAIN"`
	FrontendURL  string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	// Store calls carry this timeout; a timed-out call during login denies
	// access rather than letting the request through.
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"3s"`

	MaxFailedLogins       int           `env:"MAX_FAILED_LOGINS" envDefault:"5"`
	LockoutDuration       time.Duration `env:"LOCKOUT_DURATION" envDefault:"30m"`
	AttemptWindow         time.Duration `env:"ATTEMPT_WINDOW" envDefault:"15m"`
	MaxAttemptsPerIP      int           `env:"MAX_ATTEMPTS_PER_IP" envDefault:"10"`
	MaxAttemptsPerEmail   int           `env:"MAX_ATTEMPTS_PER_EMAIL" envDefault:"5"`
	SuspiciousIPThreshold int           `env:"SUSPICIOUS_IP_THRESHOLD" envDefault:"20"`
	AttemptRetention      time.Duration `env:"ATTEMPT_RETENTION" envDefault:"720h"`

	MaxSessionsPerUser int `env:"MAX_SESSIONS_PER_USER" envDefault:"5"`

	ResetTokenTTL        time.Duration `env:"RESET_TOKEN_TTL" envDefault:"1h"`
	VerificationTokenTTL time.Duration `env:"VERIFICATION_TOKEN_TTL" envDefault:"24h"`

	SMTPAddr string `env:"SMTP_ADDR"`
	SMTPFrom string `env:"SMTP_FROM" envDefault:"no-reply@neture.co.kr"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.AccessTokenSecret) < 32 || len(c.RefreshTokenSecret) < 32 {
		return errors.New("token secrets must be at least 32 bytes")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= c.AccessTokenTTL {
		return errors.New("refresh token TTL must exceed access token TTL")
	}
	if c.MaxFailedLogins < 1 || c.MaxSessionsPerUser < 1 {
		return errors.New("limits must be positive")
	}
	return nil
}

// IsProduction gates secure-cookie behavior.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
