package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const DefaultJWTSecret = "change-me-in-production"

// Load reads configuration from defaults, an optional YAML file and
// HEARTRISK_* environment variables, in increasing precedence. A .env file
// in the working directory is loaded into the environment first.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/heartrisk")
	}

	v.SetEnvPrefix("HEARTRISK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "heartrisk")
	v.SetDefault("app.mode", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_file", "")
	v.SetDefault("app.log_max_size_mb", 50)
	v.SetDefault("app.log_max_backups", 5)
	v.SetDefault("app.log_max_age_days", 28)
	v.SetDefault("app.shutdown_timeout", "15s")

	// Database defaults
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.path", "heartrisk.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "heartrisk")
	v.SetDefault("database.user", "heartrisk")
	v.SetDefault("database.password", "")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.conn_max_idle_time", "5m")
	v.SetDefault("database.ping_timeout", "10s")

	// API defaults
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.read_timeout", "15s")
	v.SetDefault("api.write_timeout", "15s")
	v.SetDefault("api.idle_timeout", "60s")
	v.SetDefault("api.request_timeout", "10s")
	v.SetDefault("api.max_body_bytes", 1<<20)
	v.SetDefault("api.rate_limit.global", 120)
	v.SetDefault("api.rate_limit.auth", 10)
	v.SetDefault("api.jwt_secret", DefaultJWTSecret)
	v.SetDefault("api.jwt_duration", "24h")
	v.SetDefault("api.jwt_issuer", "heartrisk")
	v.SetDefault("api.cookie_name", "auth_token")
	v.SetDefault("api.cookie_path", "/")
	v.SetDefault("api.cookie_secure", false)
	v.SetDefault("api.cookie_http_only", true)
	v.SetDefault("api.cors.allowed_origins", []string{"*"})
	v.SetDefault("api.cors.allowed_methods", []string{"GET", "POST", "DELETE", "OPTIONS"})
	v.SetDefault("api.cors.allowed_headers", []string{"Origin", "Content-Type", "Authorization", "X-Trace-ID"})
	v.SetDefault("api.cors.exposed_headers", []string{"X-Trace-ID"})
	v.SetDefault("api.cors.allow_credentials", false)

	// Model artifacts
	v.SetDefault("models.dir", "models")

	// WebSocket defaults
	v.SetDefault("websocket.max_connections", 1000)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.write_timeout", "10s")
	v.SetDefault("websocket.pong_timeout", "60s")
	v.SetDefault("websocket.max_message_size", 512)
	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)
	v.SetDefault("websocket.broadcast_buffer", 256)
	v.SetDefault("websocket.client_buffer", 256)

	v.SetDefault("cache.user_cache_size", 1024)

	v.SetDefault("resilience.max_failures", 5)
	v.SetDefault("resilience.timeout", "30s")
	v.SetDefault("resilience.half_open_max", 1)

	v.SetDefault("events.buffer_size", 100)
}
