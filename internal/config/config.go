package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	LogLevel    string   `mapstructure:"LOG_LEVEL"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	RedisURL    string   `mapstructure:"REDIS_URL"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer     string `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string `mapstructure:"AUTH_AUDIENCE"`

	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`

	EditWindow            time.Duration `mapstructure:"EDIT_WINDOW"`
	ReferenceRangesFile   string        `mapstructure:"REFERENCE_RANGES_FILE"`
	CriticalWidthMultiple float64       `mapstructure:"CRITICAL_WIDTH_MULTIPLE"`
	TrendTolerance        float64       `mapstructure:"TREND_TOLERANCE"`

	SummarizerURL     string        `mapstructure:"SUMMARIZER_URL"`
	SummarizerTimeout time.Duration `mapstructure:"SUMMARIZER_TIMEOUT"`
}

// minSigningKeyLen is the shortest HS256 key accepted in production.
const minSigningKeyLen = 32

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL", "CORS_ORIGINS",
	"AUTH_SIGNING_KEY", "AUTH_ISSUER", "AUTH_AUDIENCE",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT", "BODY_LIMIT",
	"EDIT_WINDOW", "REFERENCE_RANGES_FILE", "CRITICAL_WIDTH_MULTIPLE", "TREND_TOLERANCE",
	"SUMMARIZER_URL", "SUMMARIZER_TIMEOUT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("EDIT_WINDOW", "1h")
	v.SetDefault("CRITICAL_WIDTH_MULTIPLE", 3)
	v.SetDefault("TREND_TOLERANCE", 0.1)
	v.SetDefault("SUMMARIZER_TIMEOUT", "20s")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// A missing .env file is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// DevAuth reports whether requests without a token run as the development actor.
func (c *Config) DevAuth() bool {
	return c.IsDev() && c.AuthSigningKey == ""
}

// Warnings lists settings that are allowed but unsafe outside local use.
func (c *Config) Warnings() []string {
	var w []string
	if c.DevAuth() {
		w = append(w, "AUTH_SIGNING_KEY is unset: every request runs as the development admin actor")
	}
	if c.RedisURL == "" {
		w = append(w, "REDIS_URL is unset: token revocations are kept in memory and critical lab alerts are only logged")
	}
	if c.SummarizerURL == "" {
		w = append(w, "SUMMARIZER_URL is unset: patient summaries are unavailable")
	}
	return w
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.Env != "development" && c.Env != "production" {
		return fmt.Errorf("ENV must be \"development\" or \"production\", got %q", c.Env)
	}
	if !c.IsDev() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required when ENV=%q", c.Env)
	}
	if c.IsProduction() && len(c.AuthSigningKey) < minSigningKeyLen {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least %d bytes in production", minSigningKeyLen)
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("invalid pool sizing: DB_MIN_CONNS=%d DB_MAX_CONNS=%d", c.DBMinConns, c.DBMaxConns)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive and RATE_LIMIT_BURST at least 1")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative")
	}
	if c.EditWindow <= 0 {
		return fmt.Errorf("EDIT_WINDOW must be positive, got %s", c.EditWindow)
	}
	if c.CriticalWidthMultiple < 0 {
		return fmt.Errorf("CRITICAL_WIDTH_MULTIPLE must not be negative (0 disables it)")
	}
	if c.TrendTolerance < 0 {
		return fmt.Errorf("TREND_TOLERANCE must not be negative")
	}
	if c.SummarizerURL != "" {
		u, err := url.Parse(c.SummarizerURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("SUMMARIZER_URL must be an absolute http(s) URL, got %q", c.SummarizerURL)
		}
	}
	return nil
}
