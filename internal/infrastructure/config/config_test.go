package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
general:
  pidfile: "/tmp/test-rf24mqtt.pid"
  duplicate_check_window: 2.5
  publish_undefined_topics: true
rf24:
  command: "/usr/local/bin/RF24Node"
  channel: 90
  palevel: 3
  datarate: 1
  node: "00"
  key: "0123456789abcdef"
mqtt:
  broker:
    host: "broker.local"
    port: 1883
    client_id: "test-client"
`
	configPath := writeConfig(t, content)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.General.PIDFile != "/tmp/test-rf24mqtt.pid" {
		t.Errorf("General.PIDFile = %q, want %q", cfg.General.PIDFile, "/tmp/test-rf24mqtt.pid")
	}

	if got := cfg.DuplicateWindow(); got != 2500*time.Millisecond {
		t.Errorf("DuplicateWindow() = %v, want 2.5s", got)
	}

	if cfg.RF24.Channel != 90 {
		t.Errorf("RF24.Channel = %d, want 90", cfg.RF24.Channel)
	}

	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}

	// Defaults survive partial files.
	if cfg.MQTT.Topics.IPCIn != "/ipc/rf24mqtt" {
		t.Errorf("MQTT.Topics.IPCIn = %q, want %q", cfg.MQTT.Topics.IPCIn, "/ipc/rf24mqtt")
	}
	if cfg.General.DefaultTopicPattern != "/raw/rf24/{id}" {
		t.Errorf("General.DefaultTopicPattern = %q, want %q", cfg.General.DefaultTopicPattern, "/raw/rf24/{id}")
	}
}

func TestLoad_ResolvesRelativePaths(t *testing.T) {
	content := `
general:
  pidfile: "run/rf24mqtt.pid"
rf24:
  command: "libs/RF24Node"
  node: "00"
devices:
  file: "Devices.yaml"
`
	configPath := writeConfig(t, content)
	dir := filepath.Dir(configPath)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if want := filepath.Join(dir, "libs/RF24Node"); cfg.RF24.Command != want {
		t.Errorf("RF24.Command = %q, want %q", cfg.RF24.Command, want)
	}
	if want := filepath.Join(dir, "Devices.yaml"); cfg.Devices.File != want {
		t.Errorf("Devices.File = %q, want %q", cfg.Devices.File, want)
	}
	if want := filepath.Join(dir, "run/rf24mqtt.pid"); cfg.General.PIDFile != want {
		t.Errorf("General.PIDFile = %q, want %q", cfg.General.PIDFile, want)
	}
	if cfg.General.Stdout != "/dev/null" {
		t.Errorf("General.Stdout = %q, want %q", cfg.General.Stdout, "/dev/null")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
rf24:
  channel: 200
`
	configPath := writeConfig(t, content)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "rf24.channel") || !strings.Contains(err.Error(), "rf24.node") {
		t.Errorf("Load() error = %v, want both rf24.channel and rf24.node reported", err)
	}
}

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.RF24.Node = "00"
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing node",
			mutate:  func(c *Config) { c.RF24.Node = "" },
			wantErr: true,
		},
		{
			name:    "channel out of range",
			mutate:  func(c *Config) { c.RF24.Channel = 126 },
			wantErr: true,
		},
		{
			name:    "negative window",
			mutate:  func(c *Config) { c.General.DuplicateCheckWindow = -1 },
			wantErr: true,
		},
		{
			name: "undefined topics without placeholder",
			mutate: func(c *Config) {
				c.General.PublishUndefinedTopics = true
				c.General.DefaultTopicPattern = "/raw/rf24"
			},
			wantErr: true,
		},
		{
			name: "pattern without placeholder is fine when unused",
			mutate: func(c *Config) {
				c.General.DefaultTopicPattern = "/raw/rf24"
			},
			wantErr: false,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "invalid broker port",
			mutate:  func(c *Config) { c.MQTT.Broker.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "unknown device source",
			mutate:  func(c *Config) { c.Devices.Source = "csv" },
			wantErr: true,
		},
		{
			name: "sqlite source without database path",
			mutate: func(c *Config) {
				c.Devices.Source = "sqlite"
				c.Database.Path = ""
			},
			wantErr: true,
		},
		{
			name:    "influxdb enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: true,
		},
		{
			name: "api port ignored when disabled",
			mutate: func(c *Config) {
				c.API.Enabled = false
				c.API.Port = 0
			},
			wantErr: false,
		},
		{
			name: "api port checked when enabled",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.API.Port = 0
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := &Config{
		General: GeneralConfig{
			DuplicateCheckWindow: 1,
			PollIntervalMS:       100,
			SweepInterval:        60,
		},
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.DuplicateWindow(); got != time.Second {
		t.Errorf("DuplicateWindow() = %v, want 1s", got)
	}
	if got := cfg.PollInterval(); got != 100*time.Millisecond {
		t.Errorf("PollInterval() = %v, want 100ms", got)
	}
	if got := cfg.SweepEvery(); got != time.Minute {
		t.Errorf("SweepEvery() = %v, want 1m", got)
	}
	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("RF24MQTT_MQTT_HOST", "mqtt.example.com")
	t.Setenv("RF24MQTT_MQTT_PORT", "8883")
	t.Setenv("RF24MQTT_MQTT_USERNAME", "testuser")
	t.Setenv("RF24MQTT_MQTT_PASSWORD", "testpass")
	t.Setenv("RF24MQTT_RF24_KEY", "fedcba9876543210")
	t.Setenv("RF24MQTT_LOGGING_LEVEL", "debug")
	t.Setenv("RF24MQTT_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("RF24MQTT_DATABASE_PATH", "/custom/path.db")

	applyEnvOverrides(cfg)

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.RF24.Key != "fedcba9876543210" {
		t.Errorf("RF24.Key = %q, want %q", cfg.RF24.Key, "fedcba9876543210")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.General.PIDFile != "/tmp/RF24MQTT.pid" {
		t.Errorf("defaultConfig General.PIDFile = %q, want %q", cfg.General.PIDFile, "/tmp/RF24MQTT.pid")
	}
	if cfg.General.DuplicateCheckWindow != 1 {
		t.Errorf("defaultConfig General.DuplicateCheckWindow = %v, want 1", cfg.General.DuplicateCheckWindow)
	}
	if cfg.General.PublishUndefinedTopics {
		t.Error("defaultConfig should not publish undefined topics")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Topics.IPCOut != "/ipc/rf24_node" {
		t.Errorf("defaultConfig MQTT.Topics.IPCOut = %q, want %q", cfg.MQTT.Topics.IPCOut, "/ipc/rf24_node")
	}
}
