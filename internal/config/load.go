package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. OZONE_SERVER_PORT.
const EnvPrefix = "OZONE"

// DefaultPath is used when OZONE_CONFIG is not set.
const DefaultPath = "config/ozone.yaml"

// ErrNotFound is returned when the configuration file does not exist.
var ErrNotFound = errors.New("configuration file not found")

// ValidationError wraps struct validation failures.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return "invalid configuration: " + e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// Path returns the configuration file location from OZONE_CONFIG or DefaultPath.
func Path() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG"); p != "" {
		return p
	}
	return DefaultPath
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.use_tls", false)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("api.context_root", "/api")

	v.SetDefault("plugins.folder", "plugins")
	v.SetDefault("plugins.prefix", "ozone-")
	v.SetDefault("plugins.timeout", "0s")

	v.SetDefault("auth.mode", "none")
	v.SetDefault("auth.token_ttl", "1h")

	v.SetDefault("database.migrations_path", "")

	v.SetDefault("events.consumer_group", "ozone-gateway")
	v.SetDefault("events.topic_prefix", "ozone.")

	v.SetDefault("rate_limit.rps", 100)
	v.SetDefault("rate_limit.burst", 200)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("timing.capacity", 4096)

	v.SetDefault("reserved", map[string]any{
		"format":      map[string]any{"type": "string", "defaultValue": "json"},
		"performance": map[string]any{"type": "boolean", "defaultValue": false},
		"system":      map[string]any{"type": "boolean", "defaultValue": false},
		"request":     map[string]any{"type": "boolean", "defaultValue": false},
		"enumerate":   map[string]any{"type": "boolean", "defaultValue": false},
	})
}

// New returns a viper instance with defaults and environment overrides bound.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration file at path, applies environment overrides
// and validates the result. A missing file yields ErrNotFound, which callers
// treat as "run the installer".
func Load(path string) (*Config, error) {
	v := New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	return decode(v)
}

// LoadDefaults builds a configuration from defaults and environment only.
func LoadDefaults() (*Config, error) {
	return decode(New())
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate runs struct validation on cfg.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return &ValidationError{Err: err}
	}
	if cfg.Auth.Mode == "jwt" && cfg.Auth.JWTSecret == "" {
		return &ValidationError{Err: errors.New("auth.jwt_secret is required when auth.mode is jwt")}
	}
	return nil
}
