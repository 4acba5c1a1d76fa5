package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Gray Logic Appliances.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Cloud     CloudConfig     `yaml:"cloud"`
	Platforms PlatformsConfig `yaml:"platforms"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CloudConfig contains settings for the appliance vendor's cloud API.
type CloudConfig struct {
	// BaseURL is the root of the vendor API, e.g. "https://api.mcs3.miele.com/v1".
	BaseURL string `yaml:"base_url"`

	// AccessToken is the OAuth bearer token.
	// WARNING: Never log this value. Use String() for safe logging.
	AccessToken string `yaml:"access_token"`

	// Language selects the localisation of value_localized fields.
	Language string `yaml:"language"`

	// PollInterval is how often the device list is fetched (seconds).
	PollInterval int `yaml:"poll_interval"`

	// Timeout is the HTTP request timeout (seconds).
	Timeout int `yaml:"timeout"`

	// ActionQueueSize bounds the number of pending outbound actions.
	ActionQueueSize int `yaml:"action_queue_size"`

	// Backoff applies when polling fails repeatedly.
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig controls poll retry backoff after failures.
type BackoffConfig struct {
	MinDelay   int     `yaml:"min_delay"` // seconds
	MaxDelay   int     `yaml:"max_delay"` // seconds
	Multiplier float64 `yaml:"multiplier"`
}

// String returns a string representation with the access token masked.
func (c CloudConfig) String() string {
	token := ""
	if c.AccessToken != "" {
		token = "[REDACTED]"
	}
	return fmt.Sprintf("CloudConfig{BaseURL:%q, AccessToken:%s, Language:%q, PollInterval:%d, Timeout:%d}",
		c.BaseURL, token, c.Language, c.PollInterval, c.Timeout)
}

// MarshalJSON implements json.Marshaler to redact the token in JSON output.
func (c CloudConfig) MarshalJSON() ([]byte, error) {
	type redacted CloudConfig
	safe := redacted(c)
	if safe.AccessToken != "" {
		safe.AccessToken = "[REDACTED]"
	}
	return json.Marshal(safe)
}

// PlatformsConfig contains per-platform entity settings.
type PlatformsConfig struct {
	// UpdateInterval is the host refresh tick for all entities (seconds).
	UpdateInterval int `yaml:"update_interval"`

	// UpdateConcurrency bounds how many entities refresh in parallel.
	UpdateConcurrency int `yaml:"update_concurrency"`

	BinarySensor PlatformConfig `yaml:"binary_sensor"`
	Fan          PlatformConfig `yaml:"fan"`
	Light        PlatformConfig `yaml:"light"`
}

// PlatformConfig toggles a platform and optionally overrides its type filter.
type PlatformConfig struct {
	Enabled bool `yaml:"enabled"`

	// SupportedTypes overrides the built-in appliance type codes.
	// Empty means use the defaults. Ignored by binary_sensor.
	SupportedTypes []int `yaml:"supported_types"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker          MQTTBrokerConfig    `yaml:"broker"`
	Auth            MQTTAuthConfig      `yaml:"auth"`
	QoS             int                 `yaml:"qos"`
	Reconnect       MQTTReconnectConfig `yaml:"reconnect"`
	DiscoveryPrefix string              `yaml:"discovery_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_CLOUD_TOKEN, GRAYLOGIC_DATABASE_PATH
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Cloud: CloudConfig{
			BaseURL:         "https://api.mcs3.miele.com/v1",
			Language:        "en",
			PollInterval:    30,
			Timeout:         15,
			ActionQueueSize: 32,
			Backoff: BackoffConfig{
				MinDelay:   5,
				MaxDelay:   300,
				Multiplier: 2.0,
			},
		},
		Platforms: PlatformsConfig{
			UpdateInterval:    30,
			UpdateConcurrency: 4,
			BinarySensor:      PlatformConfig{Enabled: true},
			Fan:               PlatformConfig{Enabled: true},
			Light:             PlatformConfig{Enabled: true},
		},
		Database: DatabaseConfig{
			Path:        "./data/appliances.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-appliances",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			DiscoveryPrefix: "homeassistant",
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Cloud
	if v := os.Getenv("GRAYLOGIC_CLOUD_BASE_URL"); v != "" {
		cfg.Cloud.BaseURL = v
	}
	if v := os.Getenv("GRAYLOGIC_CLOUD_TOKEN"); v != "" {
		cfg.Cloud.AccessToken = v
	}

	// Database
	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("GRAYLOGIC_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// minPollInterval keeps the service under the vendor's rate limits.
const minPollInterval = 5

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	// Cloud validation
	if c.Cloud.BaseURL == "" {
		errs = append(errs, "cloud.base_url is required")
	} else if u, err := url.Parse(c.Cloud.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, "cloud.base_url must be an absolute URL")
	}
	if c.Cloud.AccessToken == "" {
		errs = append(errs, "cloud.access_token is required (set GRAYLOGIC_CLOUD_TOKEN environment variable)")
	}
	if c.Cloud.PollInterval < minPollInterval {
		errs = append(errs, fmt.Sprintf("cloud.poll_interval must be at least %d seconds", minPollInterval))
	}
	if c.Cloud.Timeout <= 0 {
		errs = append(errs, "cloud.timeout must be positive")
	}
	if c.Cloud.ActionQueueSize <= 0 {
		errs = append(errs, "cloud.action_queue_size must be positive")
	}
	if c.Cloud.Backoff.Multiplier < 1 {
		errs = append(errs, "cloud.backoff.multiplier must be at least 1")
	}

	// Platform validation
	if c.Platforms.UpdateInterval <= 0 {
		errs = append(errs, "platforms.update_interval must be positive")
	}
	if c.Platforms.UpdateConcurrency <= 0 {
		errs = append(errs, "platforms.update_concurrency must be positive")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.DiscoveryPrefix == "" {
		errs = append(errs, "mqtt.discovery_prefix is required")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetPollInterval returns the cloud poll interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Cloud.PollInterval) * time.Second
}

// GetCloudTimeout returns the cloud HTTP timeout as a Duration.
func (c *Config) GetCloudTimeout() time.Duration {
	return time.Duration(c.Cloud.Timeout) * time.Second
}

// GetUpdateInterval returns the entity refresh tick as a Duration.
func (c *Config) GetUpdateInterval() time.Duration {
	return time.Duration(c.Platforms.UpdateInterval) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetBackoff returns the poll retry backoff bounds as Durations.
func (c *Config) GetBackoff() (minDelay, maxDelay time.Duration) {
	return time.Duration(c.Cloud.Backoff.MinDelay) * time.Second,
		time.Duration(c.Cloud.Backoff.MaxDelay) * time.Second
}
