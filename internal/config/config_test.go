package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  name: test-server
database:
  dsn: postgres://localhost/test
jwt:
  secret: test-secret
bridge:
  reader_id: reader-1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want 8080", cfg.API.Port)
	}
	if cfg.Database.MaxOpenConns != 10 || cfg.Database.MaxIdleConns != 5 {
		t.Errorf("pool defaults = %d/%d, want 10/5", cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	}
	if cfg.Database.ConnMaxLifetime != time.Hour {
		t.Errorf("ConnMaxLifetime = %v, want 1h", cfg.Database.ConnMaxLifetime)
	}
	if cfg.NATS.ReconnectInterval != 5*time.Second {
		t.Errorf("ReconnectInterval = %v, want 5s", cfg.NATS.ReconnectInterval)
	}
	if cfg.NATS.MaxReconnects != -1 {
		t.Errorf("MaxReconnects = %d, want -1", cfg.NATS.MaxReconnects)
	}
	if cfg.JWT.AccessTokenTTL != 15*time.Minute {
		t.Errorf("AccessTokenTTL = %v, want 15m", cfg.JWT.AccessTokenTTL)
	}
	if cfg.JWT.RefreshTokenTTL != 7*24*time.Hour {
		t.Errorf("RefreshTokenTTL = %v, want 168h", cfg.JWT.RefreshTokenTTL)
	}
	if cfg.Bridge.ReaderID != "reader-1" {
		t.Errorf("ReaderID = %q, want reader-1", cfg.Bridge.ReaderID)
	}
	if cfg.Bridge.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %v, want 5s", cfg.Bridge.PollInterval)
	}
	if cfg.Bridge.DefaultTask != "read_fram" {
		t.Errorf("DefaultTask = %q, want read_fram", cfg.Bridge.DefaultTask)
	}
	// Decoder timeout is only defaulted when a URL is set
	if cfg.Decoder.Timeout != 0 {
		t.Errorf("Decoder.Timeout = %v, want 0 without URL", cfg.Decoder.Timeout)
	}
}

func TestLoadDecoderTimeoutDefault(t *testing.T) {
	path := writeConfig(t, `
decoder:
  url: http://localhost:9000/decode
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Decoder.Timeout != 10*time.Second {
		t.Errorf("Decoder.Timeout = %v, want 10s", cfg.Decoder.Timeout)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  dsn: postgres://localhost/original
nats:
  url: nats://original:4222
`)

	t.Setenv("DATABASE_URL", "postgres://localhost/override")
	t.Setenv("NATS_URL", "nats://override:4222")
	t.Setenv("READER_ID", "env-reader")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.DSN != "postgres://localhost/override" {
		t.Errorf("DSN = %q, want override", cfg.Database.DSN)
	}
	if cfg.NATS.URL != "nats://override:4222" {
		t.Errorf("NATS.URL = %q, want override", cfg.NATS.URL)
	}
	if cfg.Bridge.ReaderID != "env-reader" {
		t.Errorf("ReaderID = %q, want env-reader", cfg.Bridge.ReaderID)
	}
}

func TestLoadSimulateRequiresIdentity(t *testing.T) {
	path := writeConfig(t, `
bridge:
  simulate: true
  sim_patch_info: 9d083001712b
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for simulate mode without sim_uid")
	}
}

func TestLoadIntegrationDefaults(t *testing.T) {
	path := writeConfig(t, `
integrations:
  mqtt:
    enabled: true
    broker_url: tcp://localhost:1883
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Integrations.MQTT.ClientID != "cgm-bridge-server" {
		t.Errorf("ClientID = %q, want default", cfg.Integrations.MQTT.ClientID)
	}
	if cfg.Integrations.MQTT.TopicPattern != "cgm/{reader_id}/{sensor_uid}" {
		t.Errorf("TopicPattern = %q, want default", cfg.Integrations.MQTT.TopicPattern)
	}
}

func TestLoadHTTPIntegrationRequiresEndpoint(t *testing.T) {
	path := writeConfig(t, `
integrations:
  http:
    enabled: true
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for http integration without endpoint")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
