// Package config loads service configuration from defaults, an optional YAML
// file and BOOKING_ environment variables, in that order of precedence.
package config

import "time"

// Config is the complete service configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Storage StorageConfig `koanf:"storage"`
	Auth    AuthConfig    `koanf:"auth"`
	Authz   AuthzConfig   `koanf:"authz"`
	Events  EventsConfig  `koanf:"events"`
	Log     LogConfig     `koanf:"log"`
}

// ServerConfig holds HTTP listener settings. RateLimitRequests is allowed per
// RateLimitWindow per client IP; zero disables limiting.
type ServerConfig struct {
	Port              int           `koanf:"port" validate:"min=1,max=65535"`
	RequestTimeout    time.Duration `koanf:"request_timeout" validate:"gt=0"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
}

// StorageConfig selects the store backend.
type StorageConfig struct {
	Driver      string        `koanf:"driver" validate:"oneof=sqlite memory"`
	SQLitePath  string        `koanf:"sqlite_path" validate:"required_if=Driver sqlite"`
	BusyTimeout time.Duration `koanf:"busy_timeout" validate:"gte=0"`
}

// AuthConfig selects how bearer tokens are verified.
type AuthConfig struct {
	Mode          string        `koanf:"mode" validate:"oneof=hmac rsa decode"`
	Secret        string        `koanf:"secret" validate:"required_if=Mode hmac"`
	PublicKeyPath string        `koanf:"public_key_path" validate:"required_if=Mode rsa"`
	Issuer        string        `koanf:"issuer"`
	Audience      string        `koanf:"audience"`
	Leeway        time.Duration `koanf:"leeway" validate:"gte=0"`
}

// AuthzConfig optionally overrides the embedded Casbin model and policy.
type AuthzConfig struct {
	ModelPath  string `koanf:"model_path"`
	PolicyPath string `koanf:"policy_path"`
}

// EventsConfig selects the change event backend.
type EventsConfig struct {
	Backend     string `koanf:"backend" validate:"oneof=none gochannel nats"`
	NATSURL     string `koanf:"nats_url" validate:"required_if=Backend nats"`
	TopicPrefix string `koanf:"topic_prefix"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              8080,
			RequestTimeout:    15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
		},
		Storage: StorageConfig{
			Driver:      "sqlite",
			SQLitePath:  "data/booking.db",
			BusyTimeout: 5 * time.Second,
		},
		Auth: AuthConfig{
			Mode:   "hmac",
			Leeway: 30 * time.Second,
		},
		Events: EventsConfig{
			Backend:     "none",
			NATSURL:     "nats://127.0.0.1:4222",
			TopicPrefix: "booking",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
