package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoadConfig_DefaultsAndEnv(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", testSecret)

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, time.Hour, cfg.Auth.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, testSecret, cfg.Auth.JWTSecret)
	assert.Equal(t, 100, cfg.Audit.BatchSize)
}

func TestLoadConfig_FileWithEnvOverride(t *testing.T) {
	dir := writeConfig(t, `
server:
  port: 9000
auth:
  jwt_secret: "`+testSecret+`"
  access_ttl: 15m
  refresh_ttl: 24h
cache:
  driver: memory
ratelimit:
  driver: local
  max: 3
`)
	t.Setenv("SERVER_PORT", "7000")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 24*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Equal(t, 3, cfg.RateLimit.Max)
}

func TestLoadConfig_RequiresSigningKey(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "too-short")

	_, err := LoadConfig(t.TempDir())
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Auth: AuthConfig{
				JWTSecret:         testSecret,
				AccessTTL:         time.Hour,
				RefreshTTL:        24 * time.Hour,
				PasswordMinLength: 8,
			},
			Cache:     CacheConfig{Driver: "memory"},
			RateLimit: RateLimitConfig{Enabled: true, Driver: "local", Max: 10, Window: time.Minute},
		}
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(c *Config){
		"short secret":         func(c *Config) { c.Auth.JWTSecret = "x" },
		"zero access ttl":      func(c *Config) { c.Auth.AccessTTL = 0 },
		"access not shorter":   func(c *Config) { c.Auth.AccessTTL = c.Auth.RefreshTTL },
		"weak password policy": func(c *Config) { c.Auth.PasswordMinLength = 4 },
		"unknown cache driver": func(c *Config) { c.Cache.Driver = "memcached" },
		"unknown rate driver":  func(c *Config) { c.RateLimit.Driver = "nginx" },
		"zero rate max":        func(c *Config) { c.RateLimit.Max = 0 },
		"negative rate max":    func(c *Config) { c.RateLimit.Max = -1 },
		"zero rate window":     func(c *Config) { c.RateLimit.Window = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}

	// Выключенный лимитер не требует параметров
	c := valid()
	c.RateLimit = RateLimitConfig{Driver: "local"}
	assert.NoError(t, c.Validate())

	// Пара RSA-ключей заменяет секрет
	c = valid()
	c.Auth.JWTSecret = ""
	c.Auth.PrivateKey = []byte("priv")
	c.Auth.PublicKey = []byte("pub")
	assert.NoError(t, c.Validate())
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger(LoggerConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, l)

	_, err = NewLogger(LoggerConfig{Level: "loud"})
	assert.Error(t, err)
	_, err = NewLogger(LoggerConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}
