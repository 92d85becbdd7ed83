package config

import (
	"errors"
	"fmt"
)

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	// App validation
	if c.App.Name == "" {
		errs = append(errs, errors.New("app.name is required"))
	}

	validModes := map[string]bool{"development": true, "production": true, "test": true}
	if !validModes[c.App.Mode] {
		errs = append(errs, fmt.Errorf("app.mode must be one of: development, production, test"))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.App.LogLevel] {
		errs = append(errs, fmt.Errorf("app.log_level must be one of: debug, info, warn, error"))
	}

	// Database validation
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" {
			errs = append(errs, errors.New("database.host is required"))
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, errors.New("database.port must be between 1 and 65535"))
		}
		if c.Database.Name == "" {
			errs = append(errs, errors.New("database.name is required"))
		}
		if c.Database.MaxConnections <= 0 {
			errs = append(errs, errors.New("database.max_connections must be positive"))
		}
	case "sqlite3":
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for sqlite3"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver must be one of: postgres, sqlite3"))
	}

	// API validation
	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, errors.New("api.port must be between 1 and 65535"))
	}
	if c.API.JWTSecret == "" {
		errs = append(errs, errors.New("api.jwt_secret is required"))
	}
	if c.App.Mode == "production" && c.API.JWTSecret == DefaultJWTSecret {
		errs = append(errs, errors.New("api.jwt_secret must be changed in production"))
	}
	if c.API.JWTDuration <= 0 {
		errs = append(errs, errors.New("api.jwt_duration must be positive"))
	}
	if c.API.RateLimit.Global <= 0 || c.API.RateLimit.Auth <= 0 {
		errs = append(errs, errors.New("api.rate_limit values must be positive"))
	}
	if c.API.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("api.max_body_bytes must be positive"))
	}

	if c.Models.Dir == "" {
		errs = append(errs, errors.New("models.dir is required"))
	}
	if c.Cache.UserCacheSize <= 0 {
		errs = append(errs, errors.New("cache.user_cache_size must be positive"))
	}
	if c.Resilience.MaxFailures <= 0 {
		errs = append(errs, errors.New("resilience.max_failures must be positive"))
	}
	if c.Resilience.Timeout <= 0 {
		errs = append(errs, errors.New("resilience.timeout must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %w", errors.Join(errs...))
	}

	return nil
}
