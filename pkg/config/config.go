package config

import (
	"time"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	API        APIConfig        `mapstructure:"api"`
	Models     ModelsConfig     `mapstructure:"models"`
	WebSocket  WebSocketConfig  `mapstructure:"websocket"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Resilience ResilienceConfig `mapstructure:"resilience"`
	Events     EventsConfig     `mapstructure:"events"`
}

type AppConfig struct {
	Name            string        `mapstructure:"name"`
	Mode            string        `mapstructure:"mode"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFile         string        `mapstructure:"log_file"`
	LogMaxSizeMB    int           `mapstructure:"log_max_size_mb"`
	LogMaxBackups   int           `mapstructure:"log_max_backups"`
	LogMaxAgeDays   int           `mapstructure:"log_max_age_days"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Path            string        `mapstructure:"path"`
	MaxConnections  int           `mapstructure:"max_connections"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type APIConfig struct {
	Port           int             `mapstructure:"port"`
	ReadTimeout    time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration   `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration   `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration   `mapstructure:"request_timeout"`
	MaxBodyBytes   int64           `mapstructure:"max_body_bytes"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
	JWTSecret      string          `mapstructure:"jwt_secret"`
	JWTDuration    time.Duration   `mapstructure:"jwt_duration"`
	JWTIssuer      string          `mapstructure:"jwt_issuer"`
	CookieName     string          `mapstructure:"cookie_name"`
	CookiePath     string          `mapstructure:"cookie_path"`
	CookieSecure   bool            `mapstructure:"cookie_secure"`
	CookieHTTPOnly bool            `mapstructure:"cookie_http_only"`
	CORS           CORSConfig      `mapstructure:"cors"`
}

// RateLimitConfig is requests per minute per client IP.
type RateLimitConfig struct {
	Global int `mapstructure:"global"`
	Auth   int `mapstructure:"auth"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type ModelsConfig struct {
	Dir string `mapstructure:"dir"`
}

type WebSocketConfig struct {
	MaxConnections  int           `mapstructure:"max_connections"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	PongTimeout     time.Duration `mapstructure:"pong_timeout"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
	BroadcastBuffer int           `mapstructure:"broadcast_buffer"`
	ClientBuffer    int           `mapstructure:"client_buffer"`
}

type CacheConfig struct {
	UserCacheSize int `mapstructure:"user_cache_size"`
}

type ResilienceConfig struct {
	MaxFailures int           `mapstructure:"max_failures"`
	Timeout     time.Duration `mapstructure:"timeout"`
	HalfOpenMax int           `mapstructure:"half_open_max"`
}

type EventsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}
