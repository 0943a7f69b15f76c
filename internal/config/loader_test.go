package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoader_Defaults(t *testing.T) {
	t.Setenv("BOOKING_AUTH__SECRET", "a-secret-that-is-long-enough-for-hmac")

	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile returned error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout != 15*time.Second {
		t.Fatalf("unexpected request timeout %v", cfg.Server.RequestTimeout)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.SQLitePath == "" {
		t.Fatalf("unexpected storage config %+v", cfg.Storage)
	}
	if cfg.Auth.Mode != "hmac" || cfg.Events.Backend != "none" {
		t.Fatalf("unexpected defaults %+v %+v", cfg.Auth, cfg.Events)
	}
}

func TestLoader_EnvironmentOverrides(t *testing.T) {
	t.Setenv("BOOKING_SERVER__PORT", "9090")
	t.Setenv("BOOKING_SERVER__REQUEST_TIMEOUT", "3s")
	t.Setenv("BOOKING_SERVER__CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("BOOKING_STORAGE__DRIVER", "memory")
	t.Setenv("BOOKING_AUTH__MODE", "decode")
	t.Setenv("BOOKING_EVENTS__BACKEND", "gochannel")
	t.Setenv("BOOKING_LOG__LEVEL", "debug")

	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile returned error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout != 3*time.Second {
		t.Fatalf("expected 3s timeout, got %v", cfg.Server.RequestTimeout)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected CORS origins %v", cfg.Server.CORSOrigins)
	}
	if cfg.Storage.Driver != "memory" || cfg.Auth.Mode != "decode" || cfg.Events.Backend != "gochannel" {
		t.Fatalf("environment overrides not applied: %+v", cfg)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected debug level, got %q", cfg.Log.Level)
	}
}

func TestLoader_FileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 7000
  shutdown_timeout: 20s
auth:
  mode: rsa
  public_key_path: /etc/booking/jwt.pem
  issuer: https://idp.example
log:
  format: console
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("BOOKING_CONFIG", path)
	t.Setenv("BOOKING_SERVER__PORT", "7001")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != 7001 {
		t.Fatalf("environment should win over file, got port %d", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 20*time.Second {
		t.Fatalf("expected file shutdown timeout, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Auth.Mode != "rsa" || cfg.Auth.PublicKeyPath != "/etc/booking/jwt.pem" || cfg.Auth.Issuer != "https://idp.example" {
		t.Fatalf("unexpected auth config %+v", cfg.Auth)
	}
	if cfg.Log.Format != "console" {
		t.Fatalf("expected console format, got %q", cfg.Log.Format)
	}
}

func TestLoader_ReportsEveryInvalidKey(t *testing.T) {
	t.Setenv("BOOKING_SERVER__PORT", "0")
	t.Setenv("BOOKING_STORAGE__DRIVER", "postgres")
	t.Setenv("BOOKING_EVENTS__BACKEND", "nats")
	t.Setenv("BOOKING_EVENTS__NATS_URL", "")
	t.Setenv("BOOKING_LOG__LEVEL", "loud")

	_, err := LoadFile("")
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, key := range []string{"server.port", "storage.driver", "auth.secret", "events.nats_url", "log.level"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("expected %q in error %q", key, err.Error())
		}
	}
}

func TestLoader_MissingFile(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"BOOKING_SERVER__PORT":          "server.port",
		"BOOKING_AUTH__PUBLIC_KEY_PATH": "auth.public_key_path",
		"BOOKING_EVENTS__TOPIC_PREFIX":  "events.topic_prefix",
		"BOOKING_CONFIG":                "",
		"BOOKING_STORAGE__BUSY_TIMEOUT": "storage.busy_timeout",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}
