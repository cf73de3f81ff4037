package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for RF24MQTT.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	General  GeneralConfig  `yaml:"general"`
	RF24     RF24Config     `yaml:"rf24"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Devices  DevicesConfig  `yaml:"devices"`
	Database DatabaseConfig `yaml:"database"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`

	// dir is the directory of the loaded config file, used to resolve
	// relative paths.
	dir string
}

// GeneralConfig contains gateway behaviour and daemon settings.
type GeneralConfig struct {
	PIDFile string `yaml:"pidfile"`
	Stdout  string `yaml:"stdout"`

	// DuplicateCheckWindow is the dedup window in seconds. Fractions are allowed.
	DuplicateCheckWindow float64 `yaml:"duplicate_check_window"`

	// DefaultTopicPattern is used for devices without a mapping when
	// PublishUndefinedTopics is set. "{id}" is replaced by the device id.
	DefaultTopicPattern    string `yaml:"default_topic_pattern"`
	PublishUndefinedTopics bool   `yaml:"publish_undefined_topics"`

	PollIntervalMS int `yaml:"poll_interval_ms"`
	SweepInterval  int `yaml:"sweep_interval"`
	InboxSize      int `yaml:"inbox_size"`
}

// RF24Config contains the RF24Node radio subprocess settings.
type RF24Config struct {
	Command  string `yaml:"command"`
	Channel  int    `yaml:"channel"`
	PALevel  int    `yaml:"palevel"`
	DataRate int    `yaml:"datarate"`
	Node     string `yaml:"node"`
	Key      string `yaml:"key"`

	// Sudo runs the radio process (and its kill) through sudo.
	// RF24Node needs root for GPIO/SPI access.
	Sudo bool `yaml:"sudo"`

	// ProcessName is matched against /proc/<pid>/comm when cleaning up
	// lingering radio processes on stop/restart.
	ProcessName string `yaml:"process_name"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig `yaml:"broker"`
	Auth      MQTTAuthConfig   `yaml:"auth"`
	QoS       int              `yaml:"qos"`
	KeepAlive int              `yaml:"keepalive"`
	Topics    MQTTTopicsConfig `yaml:"topics"`
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

// MQTTTopicsConfig names the reserved topics used by the gateway.
type MQTTTopicsConfig struct {
	// IPCIn carries frames republished by the radio process.
	IPCIn string `yaml:"ipc_in"`
	// IPCOut carries commands for the radio process.
	IPCOut string `yaml:"ipc_out"`
	// Status is the retained online/offline topic (also the LWT).
	Status string `yaml:"status"`
}

// DevicesConfig selects where the device list comes from.
type DevicesConfig struct {
	Source string `yaml:"source"` // "yaml" or "sqlite"
	File   string `yaml:"file"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
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

// APIConfig contains the status HTTP server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`

	// WebSocket configures the live publish feed at /api/v1/ws.
	WebSocket WebSocketConfig `yaml:"websocket"`
}

// WebSocketConfig contains WebSocket feed settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: RF24MQTT_SECTION_KEY
// For example: RF24MQTT_MQTT_HOST, RF24MQTT_RF24_KEY
//
// Relative paths (radio command, device file, pid file, stdout, database)
// are resolved against the directory containing the config file.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}
	cfg.dir = filepath.Dir(abs)
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with the defaults RF24MQTT has always shipped with.
func defaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			PIDFile:              "/tmp/RF24MQTT.pid",
			Stdout:               "/dev/null",
			DuplicateCheckWindow: 1,
			DefaultTopicPattern:  "/raw/rf24/{id}",
			PollIntervalMS:       100,
			SweepInterval:        60,
			InboxSize:            256,
		},
		RF24: RF24Config{
			Command:     "libs/RF24Node",
			Sudo:        true,
			ProcessName: "RF24Node",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "rf24mqtt",
			},
			QoS:       0,
			KeepAlive: 60,
			Topics: MQTTTopicsConfig{
				IPCIn:  "/ipc/rf24mqtt",
				IPCOut: "/ipc/rf24_node",
				Status: "/system/rf24mqtt/status",
			},
		},
		Devices: DevicesConfig{
			Source: "yaml",
			File:   "Devices.yaml",
		},
		Database: DatabaseConfig{
			Path:        "./data/rf24mqtt.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8089,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
			WebSocket: WebSocketConfig{
				MaxMessageSize: 8192,
				PingInterval:   30,
				PongTimeout:    10,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
			File: FileLoggingConfig{
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     28,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: RF24MQTT_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("RF24MQTT_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("RF24MQTT_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("RF24MQTT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("RF24MQTT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Radio network key is a secret shared with every node.
	if v := os.Getenv("RF24MQTT_RF24_KEY"); v != "" {
		cfg.RF24.Key = v
	}

	if v := os.Getenv("RF24MQTT_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("RF24MQTT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("RF24MQTT_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
}

// resolvePaths makes relative file paths absolute against the config directory.
func (c *Config) resolvePaths() {
	c.RF24.Command = c.ResolvePath(c.RF24.Command)
	c.Devices.File = c.ResolvePath(c.Devices.File)
	c.General.PIDFile = c.ResolvePath(c.General.PIDFile)
	c.General.Stdout = c.ResolvePath(c.General.Stdout)
	c.Database.Path = c.ResolvePath(c.Database.Path)
	if c.Logging.File.Path != "" {
		c.Logging.File.Path = c.ResolvePath(c.Logging.File.Path)
	}
}

// ResolvePath returns path unchanged when absolute (or empty), otherwise
// joined onto the directory of the loaded config file.
func (c *Config) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) || c.dir == "" {
		return path
	}
	return filepath.Join(c.dir, path)
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// General
	if c.General.PIDFile == "" {
		errs = append(errs, "general.pidfile is required")
	}
	if c.General.DuplicateCheckWindow < 0 {
		errs = append(errs, "general.duplicate_check_window must not be negative")
	}
	if c.General.PublishUndefinedTopics && !strings.Contains(c.General.DefaultTopicPattern, "{id}") {
		errs = append(errs, "general.default_topic_pattern must contain {id} when publish_undefined_topics is set")
	}
	if c.General.PollIntervalMS <= 0 {
		errs = append(errs, "general.poll_interval_ms must be positive")
	}
	if c.General.SweepInterval <= 0 {
		errs = append(errs, "general.sweep_interval must be positive")
	}
	if c.General.InboxSize <= 0 {
		errs = append(errs, "general.inbox_size must be positive")
	}

	// Radio
	if c.RF24.Command == "" {
		errs = append(errs, "rf24.command is required")
	}
	if c.RF24.Channel < 0 || c.RF24.Channel > 125 {
		errs = append(errs, "rf24.channel must be between 0 and 125")
	}
	if c.RF24.Node == "" {
		errs = append(errs, "rf24.node is required")
	}

	// MQTT
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Topics.IPCIn == "" || c.MQTT.Topics.IPCOut == "" {
		errs = append(errs, "mqtt.topics.ipc_in and mqtt.topics.ipc_out are required")
	}

	// Devices
	switch c.Devices.Source {
	case "yaml":
		if c.Devices.File == "" {
			errs = append(errs, "devices.file is required when devices.source is yaml")
		}
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required when devices.source is sqlite")
		}
	default:
		errs = append(errs, "devices.source must be yaml or sqlite")
	}

	// InfluxDB
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	// API
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.Enabled && (c.API.WebSocket.PingInterval < 1 || c.API.WebSocket.PongTimeout < 1) {
		errs = append(errs, "api.websocket ping_interval and pong_timeout must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DuplicateWindow returns the dedup window as a Duration.
func (c *Config) DuplicateWindow() time.Duration {
	return time.Duration(c.General.DuplicateCheckWindow * float64(time.Second))
}

// PollInterval returns the idle poll delay as a Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.General.PollIntervalMS) * time.Millisecond
}

// SweepEvery returns the duplicate-filter sweep interval as a Duration.
func (c *Config) SweepEvery() time.Duration {
	return time.Duration(c.General.SweepInterval) * time.Second
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
