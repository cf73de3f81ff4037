package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rf24mqtt/rf24mqtt/internal/daemon"
	"github.com/rf24mqtt/rf24mqtt/internal/device"
	"github.com/rf24mqtt/rf24mqtt/internal/infrastructure/config"
	"github.com/rf24mqtt/rf24mqtt/internal/infrastructure/logging"
)

// writeConfig writes a minimal valid config into a temp dir and returns its path.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
general:
  pidfile: rf24mqtt.pid
  stdout: stdout.log
rf24:
  command: RF24Node
  node: "00"
  sudo: false
mqtt:
  broker:
    host: 127.0.0.1
    port: 1883
devices:
  source: yaml
  file: Devices.yaml
logging:
  level: error
  output: stderr
` + extra
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestRealMain_Usage(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"unknown command", []string{"status"}},
		{"two commands", []string{"start", "stop"}},
		{"unknown flag", []string{"-bogus", "start"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := realMain(tt.args, &stdout, &stderr); code != exitUsage {
				t.Errorf("exit code = %d, want %d", code, exitUsage)
			}
			if !strings.Contains(stderr.String(), usage) {
				t.Errorf("stderr = %q, want usage line", stderr.String())
			}
		})
	}
}

func TestRealMain_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := realMain([]string{"-version"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.HasPrefix(stdout.String(), "rf24mqtt "+version) {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestRealMain_MissingConfig(t *testing.T) {
	for _, cmd := range []string{"start", "stop", "restart", "run"} {
		t.Run(cmd, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := realMain([]string{"-config", "/nonexistent/config.yaml", cmd}, &stdout, &stderr)
			if code != exitError {
				t.Errorf("exit code = %d, want %d", code, exitError)
			}
			if !strings.Contains(stderr.String(), "loading config") {
				t.Errorf("stderr = %q", stderr.String())
			}
		})
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv(configPathEnv, "")
	if got := getConfigPath(""); got != defaultConfigPath {
		t.Errorf("default = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv(configPathEnv, "/srv/rf24mqtt.yaml")
	if got := getConfigPath(""); got != "/srv/rf24mqtt.yaml" {
		t.Errorf("env = %q", got)
	}
	if got := getConfigPath("/cli.yaml"); got != "/cli.yaml" {
		t.Errorf("flag = %q, want the flag to win", got)
	}
}

func TestControl_StopNotRunning(t *testing.T) {
	path := writeConfig(t, "")

	var out bytes.Buffer
	if err := control("stop", path, &out); err != nil {
		t.Fatalf("control(stop) error = %v", err)
	}
	if !strings.Contains(out.String(), "not running") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRun_PIDFileHeld(t *testing.T) {
	path := writeConfig(t, "")
	pidPath := filepath.Join(filepath.Dir(path), "rf24mqtt.pid")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, path)
	if !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("run() = %v, want ErrAlreadyRunning", err)
	}
	if _, statErr := os.Stat(pidPath); statErr != nil {
		t.Error("another instance's pid file was removed")
	}
}

func TestRun_MissingDeviceFile(t *testing.T) {
	path := writeConfig(t, "")
	pidPath := filepath.Join(filepath.Dir(path), "rf24mqtt.pid")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, path)
	if err == nil || !strings.Contains(err.Error(), "loading devices") {
		t.Fatalf("run() = %v, want a device loading error", err)
	}
	if _, statErr := os.Stat(pidPath); !errors.Is(statErr, os.ErrNotExist) {
		t.Error("pid file not removed on exit")
	}
}

func TestRun_InvalidRadioConfig(t *testing.T) {
	path := writeConfig(t, "")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data = bytes.Replace(data, []byte(`node: "00"`), []byte(`node: "zz"`), 1)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	err = run(context.Background(), path)
	if err == nil || !strings.Contains(err.Error(), "configuring radio") {
		t.Fatalf("run() = %v, want a radio config error", err)
	}
}

func TestOpenDeviceSource_File(t *testing.T) {
	cfg := &config.Config{Devices: config.DevicesConfig{Source: "yaml", File: "/etc/rf24mqtt/Devices.yaml"}}

	source, closeSource, err := openDeviceSource(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("openDeviceSource() error = %v", err)
	}
	defer closeSource()

	fs, ok := source.(device.FileSource)
	if !ok || fs.Path != "/etc/rf24mqtt/Devices.yaml" {
		t.Errorf("source = %#v", source)
	}
}

func TestOpenDeviceSource_SQLite(t *testing.T) {
	cfg := &config.Config{
		Devices: config.DevicesConfig{Source: "sqlite"},
		Database: config.DatabaseConfig{
			Path:        filepath.Join(t.TempDir(), "rf24mqtt.db"),
			BusyTimeout: 5,
		},
	}

	source, closeSource, err := openDeviceSource(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("openDeviceSource() error = %v", err)
	}
	defer closeSource()

	devices, err := source.Devices(context.Background())
	if err != nil {
		t.Fatalf("Devices() error = %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("fresh database has %d devices", len(devices))
	}
}
