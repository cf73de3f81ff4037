package radio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rf24mqtt/rf24mqtt/internal/infrastructure/logging"
	"github.com/rf24mqtt/rf24mqtt/internal/process"
)

const defaultStartupGrace = 250 * time.Millisecond

// Manager owns the RF24Node subprocess.
//
// A Manager is connected at most once. Its line stream ends when RF24Node
// exits and is not restarted; the gateway treats that as a fatal condition.
type Manager struct {
	config Config
	logger *logging.Logger

	// startupGrace is how long Connect watches for an immediate exit
	// (bad sudo setup, missing SPI device). Negative disables the check.
	startupGrace time.Duration

	mu      sync.Mutex
	process *process.Manager
}

// NewManager validates cfg and creates a radio manager.
func NewManager(cfg Config, logger *logging.Logger) (*Manager, error) {
	if cfg.ProcessName == "" {
		cfg.ProcessName = "RF24Node"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &Manager{
		config:       cfg,
		logger:       logger,
		startupGrace: defaultStartupGrace,
	}, nil
}

// Config returns the radio configuration.
func (m *Manager) Config() Config {
	return m.config
}

// Connect launches RF24Node.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.process != nil {
		return fmt.Errorf("%w: already connected", ErrConnectFailed)
	}

	args := m.config.BuildArgs()
	m.logger.Info("starting radio process",
		"command", m.config.Command,
		"args", args,
		"sudo", m.config.Sudo,
	)

	proc := process.NewManager(process.Config{
		Name:   m.config.ProcessName,
		Binary: m.config.Command,
		Args:   args,
		Sudo:   m.config.Sudo,
	})
	proc.SetLogger(m.logger)

	if err := proc.Start(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	m.process = proc

	if err := m.waitForStartup(ctx); err != nil {
		_ = proc.Terminate() //nolint:errcheck // Already returning the startup failure
		return fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	m.logger.Info("radio process running", "pid", proc.PID())
	return nil
}

// waitForStartup fails if RF24Node exits within the grace period.
func (m *Manager) waitForStartup(ctx context.Context) error {
	if m.startupGrace < 0 {
		return nil
	}

	timer := time.NewTimer(m.startupGrace)
	defer timer.Stop()

	select {
	case <-m.process.Done():
		if err := m.process.LastError(); err != nil {
			return fmt.Errorf("radio process exited during startup: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while starting radio: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// Lines returns the stream of raw frames printed by RF24Node. It is nil
// before Connect, so receiving from it blocks.
func (m *Manager) Lines() <-chan string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.process == nil {
		return nil
	}
	return m.process.Lines()
}

// Disconnect kills RF24Node.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	proc := m.process
	m.mu.Unlock()

	if proc == nil {
		return ErrNotConnected
	}

	m.logger.Info("stopping radio process", "pid", proc.PID())
	if err := proc.Terminate(); err != nil {
		return fmt.Errorf("terminating radio process: %w", err)
	}
	return nil
}

// IsRunning reports whether RF24Node is alive.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.process != nil && m.process.IsRunning()
}

// Stats returns the RF24Node process statistics.
func (m *Manager) Stats() process.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.process == nil {
		return process.Stats{Name: m.config.ProcessName, Status: process.StatusStopped}
	}
	return m.process.Stats()
}

// KillStray kills any RF24Node left behind by a previous run.
func KillStray(cfg Config, logger *logging.Logger) (int, error) {
	name := cfg.ProcessName
	if name == "" {
		name = "RF24Node"
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return process.KillByName(name, cfg.Sudo, logger)
}
