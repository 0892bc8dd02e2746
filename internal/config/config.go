// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang/glog"
	"github.com/joho/godotenv"
)

// Config is the complete runtime configuration
type Config struct {
	Port        int    `env:"PORT" envDefault:"3001"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	DBHost         string `env:"DB_HOST" envDefault:"127.0.0.1"`
	DBPort         int    `env:"DB_PORT" envDefault:"4000"`
	DBUser         string `env:"DB_USER" envDefault:"root"`
	DBPassword     string `env:"DB_PASSWORD"`
	DBName         string `env:"DB_NAME" envDefault:"tenantcrm"`
	DBMaxOpenConns int    `env:"DB_MAX_OPEN_CONNS" envDefault:"100"`

	JWTSecret     string        `env:"JWT_SECRET"`
	JWTTTL        time.Duration `env:"JWT_TTL" envDefault:"24h"`
	EncryptionKey string        `env:"ENCRYPTION_KEY"`

	WhatsAppAppSecret string `env:"WHATSAPP_APP_SECRET"`
	PublicBaseURL     string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:3001"`

	PublicRateLimitRPS   float64 `env:"PUBLIC_RATE_LIMIT_RPS" envDefault:"5"`
	PublicRateLimitBurst int     `env:"PUBLIC_RATE_LIMIT_BURST" envDefault:"10"`

	PlanCacheTTL      time.Duration `env:"PLAN_CACHE_TTL" envDefault:"5m"`
	SkipAssertions    bool          `env:"SKIP_ASSERTIONS" envDefault:"false"`
	SchedulerInterval time.Duration `env:"SCHEDULER_INTERVAL" envDefault:"60s"`
	MetricsEnabled    bool          `env:"METRICS_ENABLED" envDefault:"true"`

	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
	AdminName     string `env:"ADMIN_NAME" envDefault:"Platform Admin"`
}

// IsDevelopment reports whether paid plan changes may bypass payment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Addr is the HTTP listen address
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate checks settings that have no safe default
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		if !c.IsDevelopment() {
			return fmt.Errorf("JWT_SECRET is required outside development")
		}
		glog.Warning("JWT_SECRET not set; using an insecure development secret")
		c.JWTSecret = "development-secret-change-me"
	}
	if c.EncryptionKey != "" && len(c.EncryptionKey) != 64 {
		return fmt.Errorf("ENCRYPTION_KEY must be 64 hex characters")
	}
	if c.DBMaxOpenConns < 1 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be positive")
	}
	return nil
}

// Load reads the first .env found in the working directory or its parents,
// then parses the environment.
func Load() (*Config, error) {
	loadDotEnv()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv() {
	paths := []string{".env", filepath.Join("..", ".env"), filepath.Join("..", "..", ".env")}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			if err := godotenv.Load(p); err == nil {
				glog.Infof("Loaded environment from %s", p)
				return
			}
		}
	}
	glog.V(1).Info("No .env file found, using process environment")
}
