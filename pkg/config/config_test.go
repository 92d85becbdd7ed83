package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:     "heartrisk",
			Mode:     "development",
			LogLevel: "info",
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			Path:   "heartrisk.db",
		},
		API: APIConfig{
			Port:         8080,
			JWTSecret:    "secret",
			JWTDuration:  time.Hour,
			MaxBodyBytes: 1024,
			RateLimit:    RateLimitConfig{Global: 60, Auth: 5},
		},
		Models:     ModelsConfig{Dir: "models"},
		Cache:      CacheConfig{UserCacheSize: 16},
		Resilience: ResilienceConfig{MaxFailures: 3, Timeout: time.Second},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		modifyFunc  func(*Config)
		expectErr   bool
		errContains string
	}{
		{
			name:       "valid config",
			modifyFunc: func(c *Config) {},
		},
		{
			name: "valid postgres config",
			modifyFunc: func(c *Config) {
				c.Database = DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, Name: "heartrisk", MaxConnections: 5}
			},
		},
		{
			name:        "invalid mode",
			modifyFunc:  func(c *Config) { c.App.Mode = "staging" },
			expectErr:   true,
			errContains: "app.mode",
		},
		{
			name:        "invalid log level",
			modifyFunc:  func(c *Config) { c.App.LogLevel = "verbose" },
			expectErr:   true,
			errContains: "app.log_level",
		},
		{
			name:        "unknown driver",
			modifyFunc:  func(c *Config) { c.Database.Driver = "mysql" },
			expectErr:   true,
			errContains: "database.driver",
		},
		{
			name: "postgres without host",
			modifyFunc: func(c *Config) {
				c.Database = DatabaseConfig{Driver: "postgres", Port: 5432, Name: "heartrisk", MaxConnections: 5}
			},
			expectErr:   true,
			errContains: "database.host",
		},
		{
			name:        "sqlite without path",
			modifyFunc:  func(c *Config) { c.Database.Path = "" },
			expectErr:   true,
			errContains: "database.path",
		},
		{
			name: "default secret in production",
			modifyFunc: func(c *Config) {
				c.App.Mode = "production"
				c.API.JWTSecret = DefaultJWTSecret
			},
			expectErr:   true,
			errContains: "jwt_secret must be changed",
		},
		{
			name:        "missing models dir",
			modifyFunc:  func(c *Config) { c.Models.Dir = "" },
			expectErr:   true,
			errContains: "models.dir",
		},
		{
			name:        "zero rate limit",
			modifyFunc:  func(c *Config) { c.API.RateLimit.Auth = 0 },
			expectErr:   true,
			errContains: "api.rate_limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modifyFunc(cfg)

			err := cfg.Validate()
			if tt.expectErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateReportsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.App.Name = ""
	cfg.API.Port = 0
	cfg.Cache.UserCacheSize = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app.name")
	assert.Contains(t, err.Error(), "api.port")
	assert.Contains(t, err.Error(), "cache.user_cache_size")
}

func TestLoad_DefaultsFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  mode: test
database:
  driver: sqlite3
  path: /tmp/heartrisk-test.db
api:
  port: 9090
models:
  dir: /srv/models
`), 0o644))

	t.Setenv("HEARTRISK_API_PORT", "7070")
	t.Setenv("HEARTRISK_CACHE_USER_CACHE_SIZE", "42")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "heartrisk", cfg.App.Name)
	assert.Equal(t, "test", cfg.App.Mode)
	assert.Equal(t, "/tmp/heartrisk-test.db", cfg.Database.Path)
	assert.Equal(t, 7070, cfg.API.Port)
	assert.Equal(t, 42, cfg.Cache.UserCacheSize)
	assert.Equal(t, "/srv/models", cfg.Models.Dir)
	assert.Equal(t, 24*time.Hour, cfg.API.JWTDuration)
	assert.Equal(t, "auth_token", cfg.API.CookieName)
	assert.Equal(t, RateLimitConfig{Global: 120, Auth: 10}, cfg.API.RateLimit)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDatabaseConfig_ToDBConfig(t *testing.T) {
	d := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, Name: "heartrisk", User: "u", Password: "p", SSLMode: "require"}
	db := d.ToDBConfig()
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=heartrisk sslmode=require", db.DSN())
}
