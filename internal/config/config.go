package config

import "time"

// Config holds all gateway configuration.
type Config struct {
	Server    ServerConfig              `mapstructure:"server"`
	API       APIConfig                 `mapstructure:"api"`
	Plugins   PluginsConfig             `mapstructure:"plugins"`
	Auth      AuthConfig                `mapstructure:"auth"`
	Database  DatabaseConfig            `mapstructure:"database"`
	Events    EventsConfig              `mapstructure:"events"`
	RateLimit RateLimitConfig           `mapstructure:"rate_limit"`
	Metrics   MetricsConfig             `mapstructure:"metrics"`
	Timing    TimingConfig              `mapstructure:"timing"`
	Reserved  map[string]ReservedConfig `mapstructure:"reserved" validate:"required,dive"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	UseTLS         bool     `mapstructure:"use_tls"`
	TLSCert        string   `mapstructure:"tls_cert" validate:"required_if=UseTLS true"`
	TLSKey         string   `mapstructure:"tls_key" validate:"required_if=UseTLS true"`
	LogLevel       string   `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type APIConfig struct {
	// ContextRoot prefixes every synthesized route, e.g. "/api".
	ContextRoot string `mapstructure:"context_root" validate:"required,startswith=/"`
}

type PluginsConfig struct {
	Folder string `mapstructure:"folder" validate:"required"`
	Prefix string `mapstructure:"prefix"`
	// Timeout bounds a single plugin call. Zero waits forever.
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

type AuthConfig struct {
	Mode      string        `mapstructure:"mode" validate:"required,oneof=none basic jwt"`
	JWTSecret string        `mapstructure:"jwt_secret" validate:"omitempty,min=16"`
	TokenTTL  time.Duration `mapstructure:"token_ttl" validate:"gt=0"`
	// Users maps user names to bcrypt password hashes.
	Users map[string]string `mapstructure:"users"`
}

type DatabaseConfig struct {
	URL            string `mapstructure:"url" validate:"omitempty,url"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

type EventsConfig struct {
	KafkaBrokers  []string `mapstructure:"kafka_brokers"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
	TopicPrefix   string   `mapstructure:"topic_prefix"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps" validate:"gte=0"`
	Burst int     `mapstructure:"burst" validate:"gte=0"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
}

type TimingConfig struct {
	// Capacity bounds the number of in-flight requests tracked by the timing store.
	Capacity int `mapstructure:"capacity" validate:"gt=0"`
}

// ReservedConfig is one row of the reserved parameter table.
type ReservedConfig struct {
	Type         string `mapstructure:"type" validate:"required,oneof=string boolean number"`
	DefaultValue any    `mapstructure:"defaultValue"`
}
