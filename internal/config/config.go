package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	JWT      JWTConfig      `yaml:"jwt"`
	Log      LogConfig      `yaml:"log"`
	Decoder  DecoderConfig  `yaml:"decoder"`
	Bridge   BridgeConfig   `yaml:"bridge"`

	Integrations IntegrationsConfig `yaml:"integrations"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// APIConfig represents API configuration
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// NATSConfig represents NATS configuration
type NATSConfig struct {
	URL               string        `yaml:"url"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	MaxReconnects     int           `yaml:"max_reconnects"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
}

// JWTConfig represents JWT configuration
type JWTConfig struct {
	Secret          string        `yaml:"secret"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DecoderConfig represents the out-of-process decoding service used for
// encrypted sensor memory. The URL is the service base; the auth, data
// and decode endpoints hang off it. An empty URL disables remote
// decoding.
type DecoderConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// BridgeConfig represents the NFC bridge daemon configuration.
type BridgeConfig struct {
	// ReaderID identifies this reader in NATS subjects and scan records.
	ReaderID string `yaml:"reader_id"`

	// PollInterval is how often the reader looks for a tag in the field.
	PollInterval time.Duration `yaml:"poll_interval"`

	// DefaultTask runs when no task has been requested through the API.
	DefaultTask string `yaml:"default_task"`

	// StreamingUnlockCode is persisted to the sensor when streaming is
	// enabled.
	StreamingUnlockCode uint32 `yaml:"streaming_unlock_code"`

	// Simulator settings, used when no physical reader is attached.
	Simulate     bool   `yaml:"simulate"`
	SimUid       string `yaml:"sim_uid"`
	SimPatchInfo string `yaml:"sim_patch_info"`
	SimImageFile string `yaml:"sim_image_file"`
}

// IntegrationsConfig configures outbound forwarding of scan results.
type IntegrationsConfig struct {
	HTTP HTTPIntegrationConfig `yaml:"http"`
	MQTT MQTTIntegrationConfig `yaml:"mqtt"`
}

// HTTPIntegrationConfig forwards scan results to an HTTP endpoint.
type HTTPIntegrationConfig struct {
	Enabled  bool              `yaml:"enabled"`
	Endpoint string            `yaml:"endpoint"`
	Headers  map[string]string `yaml:"headers"`
	Timeout  time.Duration     `yaml:"timeout"`
}

// MQTTIntegrationConfig forwards scan results to an MQTT broker. The
// topic pattern may contain {reader_id} and {sensor_uid} placeholders.
type MQTTIntegrationConfig struct {
	Enabled      bool   `yaml:"enabled"`
	BrokerURL    string `yaml:"broker_url"`
	ClientID     string `yaml:"client_id"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	TopicPattern string `yaml:"topic_pattern"`
	QoS          byte   `yaml:"qos"`
	TLS          bool   `yaml:"tls"`
}

// Load loads configuration from file
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.validateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.DSN = dsn
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		c.NATS.URL = natsURL
	}

	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		c.JWT.Secret = jwtSecret
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Log.Level = logLevel
	}

	if decoderURL := os.Getenv("DECODER_URL"); decoderURL != "" {
		c.Decoder.URL = decoderURL
	}

	if readerID := os.Getenv("READER_ID"); readerID != "" {
		c.Bridge.ReaderID = readerID
	}
}

// validateAndSetDefaults fills in defaults and rejects inconsistent
// settings.
func (c *Config) validateAndSetDefaults() error {
	if c.API.Port == 0 {
		c.API.Port = 8080
	}

	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = time.Hour
	}

	if c.NATS.ReconnectInterval == 0 {
		c.NATS.ReconnectInterval = 5 * time.Second
	}
	if c.NATS.MaxReconnects == 0 {
		c.NATS.MaxReconnects = -1
	}

	if c.JWT.AccessTokenTTL == 0 {
		c.JWT.AccessTokenTTL = 15 * time.Minute
	}
	if c.JWT.RefreshTokenTTL == 0 {
		c.JWT.RefreshTokenTTL = 7 * 24 * time.Hour
	}

	if c.Decoder.URL != "" && c.Decoder.Timeout == 0 {
		c.Decoder.Timeout = 10 * time.Second
	}

	if c.Bridge.ReaderID == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "reader"
		}
		c.Bridge.ReaderID = hostname
	}
	if c.Bridge.PollInterval == 0 {
		c.Bridge.PollInterval = 5 * time.Second
	}
	if c.Bridge.DefaultTask == "" {
		c.Bridge.DefaultTask = "read_fram"
	}
	if c.Integrations.HTTP.Enabled {
		if c.Integrations.HTTP.Endpoint == "" {
			return fmt.Errorf("integrations.http.endpoint is required when enabled")
		}
		if c.Integrations.HTTP.Timeout == 0 {
			c.Integrations.HTTP.Timeout = 30 * time.Second
		}
	}
	if c.Integrations.MQTT.Enabled {
		if c.Integrations.MQTT.BrokerURL == "" {
			return fmt.Errorf("integrations.mqtt.broker_url is required when enabled")
		}
		if c.Integrations.MQTT.ClientID == "" {
			c.Integrations.MQTT.ClientID = "cgm-bridge-server"
		}
		if c.Integrations.MQTT.TopicPattern == "" {
			c.Integrations.MQTT.TopicPattern = "cgm/{reader_id}/{sensor_uid}"
		}
	}

	if c.Bridge.Simulate {
		if c.Bridge.SimUid == "" {
			return fmt.Errorf("bridge.sim_uid is required in simulate mode")
		}
		if c.Bridge.SimPatchInfo == "" {
			return fmt.Errorf("bridge.sim_patch_info is required in simulate mode")
		}
	}

	return nil
}
