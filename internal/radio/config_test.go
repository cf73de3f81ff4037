package radio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rf24mqtt/rf24mqtt/internal/infrastructure/config"
)

func validConfig() Config {
	return Config{
		Command:  "/opt/rf24mqtt/libs/RF24Node",
		Channel:  76,
		PALevel:  3,
		DataRate: 2,
		Node:     "00",
		Key:      "1 2 3 4 5 6 7 8 9 10 11 12 13 14 15 16",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "octal node", mutate: func(c *Config) { c.Node = "011" }},
		{name: "hex node", mutate: func(c *Config) { c.Node = "0x1f" }},
		{name: "hex key", mutate: func(c *Config) { c.Key = "0x00 0x01 0xff" }},
		{name: "empty key", mutate: func(c *Config) { c.Key = "" }},
		{name: "missing command", mutate: func(c *Config) { c.Command = "" }, wantErr: true},
		{name: "channel too high", mutate: func(c *Config) { c.Channel = 126 }, wantErr: true},
		{name: "negative channel", mutate: func(c *Config) { c.Channel = -1 }, wantErr: true},
		{name: "palevel too high", mutate: func(c *Config) { c.PALevel = 4 }, wantErr: true},
		{name: "datarate too high", mutate: func(c *Config) { c.DataRate = 3 }, wantErr: true},
		{name: "empty node", mutate: func(c *Config) { c.Node = "" }, wantErr: true},
		{name: "bad node", mutate: func(c *Config) { c.Node = "abc" }, wantErr: true},
		{name: "key byte overflow", mutate: func(c *Config) { c.Key = "1 256" }, wantErr: true},
		{name: "key too long", mutate: func(c *Config) { c.Key = "1 2 3 4 5 6 7 8 9 10 11 12 13 14 15 16 17" }, wantErr: true},
		{name: "key not numeric", mutate: func(c *Config) { c.Key = "1 x" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_BuildArgs(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, []string{
		"-c", "76", "-p", "3", "-d", "2", "-n", "00",
		"-k", "1 2 3 4 5 6 7 8 9 10 11 12 13 14 15 16",
	}, cfg.BuildArgs())

	cfg.Verbose = true
	cfg.Key = "  1   2 "
	assert.Equal(t, []string{
		"-v", "-c", "76", "-p", "3", "-d", "2", "-n", "00", "-k", "1 2",
	}, cfg.BuildArgs())

	cfg.Key = ""
	args := cfg.BuildArgs()
	assert.NotContains(t, args, "-k")
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.RF24Config{
		Command:     "/opt/RF24Node",
		Channel:     90,
		PALevel:     1,
		DataRate:    0,
		Node:        "01",
		Key:         "7",
		Sudo:        true,
		ProcessName: "RF24Node",
	}, true)

	assert.Equal(t, Config{
		Command:     "/opt/RF24Node",
		Channel:     90,
		PALevel:     1,
		DataRate:    0,
		Node:        "01",
		Key:         "7",
		Verbose:     true,
		Sudo:        true,
		ProcessName: "RF24Node",
	}, cfg)
	require.NoError(t, cfg.Validate())
}
