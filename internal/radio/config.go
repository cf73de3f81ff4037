package radio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rf24mqtt/rf24mqtt/internal/infrastructure/config"
)

// Radio limits as accepted by RF24Node.
const (
	MaxChannel  = 125
	MaxPALevel  = 3 // RF24_PA_MAX
	MaxDataRate = 2 // RF24_250KBPS
	KeyLength   = 16
)

// Config holds the settings used to launch RF24Node.
type Config struct {
	// Command is the RF24Node binary, already resolved to an absolute path.
	Command string

	// Channel is the RF channel (0-125), passed as -c.
	Channel int

	// PALevel is the power amplifier level (0-3), passed as -p.
	PALevel int

	// DataRate selects 1MBPS (0), 2MBPS (1) or 250KBPS (2), passed as -d.
	DataRate int

	// Node is the RF24Network address in C integer notation (octal "00",
	// "01" or hex "0x1"), passed as -n.
	Node string

	// Key is up to 16 space-separated byte values for message signing,
	// passed as -k.
	Key string

	// Verbose makes RF24Node print debug output (-v).
	Verbose bool

	// Sudo launches and kills RF24Node through sudo.
	Sudo bool

	// ProcessName is the RF24Node command name in /proc.
	ProcessName string
}

// FromConfig builds a radio Config from the application configuration.
func FromConfig(cfg config.RF24Config, verbose bool) Config {
	return Config{
		Command:     cfg.Command,
		Channel:     cfg.Channel,
		PALevel:     cfg.PALevel,
		DataRate:    cfg.DataRate,
		Node:        cfg.Node,
		Key:         cfg.Key,
		Verbose:     verbose,
		Sudo:        cfg.Sudo,
		ProcessName: cfg.ProcessName,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Command == "" {
		return fmt.Errorf("%w: command is required", ErrInvalidConfig)
	}
	if c.Channel < 0 || c.Channel > MaxChannel {
		return fmt.Errorf("%w: channel must be between 0 and %d", ErrInvalidConfig, MaxChannel)
	}
	if c.PALevel < 0 || c.PALevel > MaxPALevel {
		return fmt.Errorf("%w: palevel must be between 0 and %d", ErrInvalidConfig, MaxPALevel)
	}
	if c.DataRate < 0 || c.DataRate > MaxDataRate {
		return fmt.Errorf("%w: datarate must be between 0 and %d", ErrInvalidConfig, MaxDataRate)
	}
	if _, err := strconv.ParseUint(c.Node, 0, 16); err != nil {
		return fmt.Errorf("%w: invalid node address %q", ErrInvalidConfig, c.Node)
	}
	if err := validateKey(c.Key); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// BuildArgs constructs the command-line arguments for RF24Node.
func (c *Config) BuildArgs() []string {
	var args []string

	if c.Verbose {
		args = append(args, "-v")
	}

	args = append(args,
		"-c", strconv.Itoa(c.Channel),
		"-p", strconv.Itoa(c.PALevel),
		"-d", strconv.Itoa(c.DataRate),
		"-n", c.Node,
	)

	// Without -k RF24Node keeps its compiled-in key.
	if key := strings.Join(strings.Fields(c.Key), " "); key != "" {
		args = append(args, "-k", key)
	}

	return args
}

func validateKey(key string) error {
	parts := strings.Fields(key)
	if len(parts) > KeyLength {
		return fmt.Errorf("key has %d bytes, at most %d allowed", len(parts), KeyLength)
	}
	for i, part := range parts {
		if _, err := strconv.ParseUint(part, 0, 8); err != nil {
			return fmt.Errorf("key byte %d %q is not a byte value", i, part)
		}
	}
	return nil
}
