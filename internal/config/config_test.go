package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3001, cfg.Port)
	assert.Equal(t, 4000, cfg.DBPort)
	assert.Equal(t, "tenantcrm", cfg.DBName)
	assert.Equal(t, 100, cfg.DBMaxOpenConns)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 5*time.Minute, cfg.PlanCacheTTL)
	assert.Equal(t, time.Minute, cfg.SchedulerInterval)
	assert.Equal(t, 5.0, cfg.PublicRateLimitRPS)
	assert.Equal(t, 10, cfg.PublicRateLimitBurst)
	assert.True(t, cfg.MetricsEnabled)
	assert.True(t, cfg.IsDevelopment())
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.Equal(t, ":3001", cfg.Addr())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("SKIP_ASSERTIONS", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 2*time.Hour, cfg.JWTTTL)
	assert.True(t, cfg.SkipAssertions)
	assert.False(t, cfg.IsDevelopment())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"production without secret", Config{Environment: "production", DBMaxOpenConns: 1}, true},
		{"short encryption key", Config{Environment: "production", JWTSecret: "x", EncryptionKey: "abcd", DBMaxOpenConns: 1}, true},
		{"bad pool", Config{Environment: "production", JWTSecret: "x"}, true},
		{"ok", Config{Environment: "production", JWTSecret: "x", DBMaxOpenConns: 10}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
