package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"
)

// Status represents the current state of a managed process.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
	StatusExited  Status = "exited"
	StatusFailed  Status = "failed"
)

const (
	defaultLineBuffer = 64
	defaultKillWait   = 5 * time.Second

	// maxLineLength bounds a single stdout line.
	maxLineLength = 64 * 1024
)

var (
	// ErrAlreadyStarted is returned by Start on a manager that was started
	// before. A manager runs one process; its line stream is not restartable.
	ErrAlreadyStarted = errors.New("process: already started")

	// ErrNotStarted is returned by Terminate before Start.
	ErrNotStarted = errors.New("process: not started")
)

// Config holds configuration for a managed subprocess.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the path to the executable.
	Binary string

	// Args are command-line arguments to pass to the binary.
	Args []string

	// Sudo runs the binary, and the kill that terminates it, through sudo.
	Sudo bool

	// SudoPath and KillPath default to "sudo" and "kill" on $PATH.
	SudoPath string
	KillPath string

	// LineBuffer is the capacity of the stdout line channel.
	LineBuffer int

	// KillWait bounds how long Terminate waits for the process to exit.
	KillWait time.Duration
}

// Logger defines the logging interface for the process manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Manager runs one subprocess, streams its stdout line by line and kills it
// on request.
//
// Stdout lines are delivered on Lines. Stderr lines are logged at info level.
// There is no automatic restart: the owner decides what an exit means.
type Manager struct {
	config Config
	logger Logger

	mu        sync.RWMutex
	cmd       *exec.Cmd
	status    Status
	lastError error
	startTime time.Time
	started   bool

	lines chan string
	stop  chan struct{}
	done  chan struct{}

	stopOnce sync.Once
}

// NewManager creates a new process manager with the given configuration.
func NewManager(cfg Config) *Manager {
	if cfg.LineBuffer <= 0 {
		cfg.LineBuffer = defaultLineBuffer
	}
	if cfg.KillWait <= 0 {
		cfg.KillWait = defaultKillWait
	}
	if cfg.SudoPath == "" {
		cfg.SudoPath = "sudo"
	}
	if cfg.KillPath == "" {
		cfg.KillPath = "kill"
	}

	return &Manager{
		config: cfg,
		logger: noopLogger{},
		status: StatusStopped,
		lines:  make(chan string, cfg.LineBuffer),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// Start launches the subprocess. It returns once the process has been
// spawned; it does not wait for it to do anything.
func (m *Manager) Start(_ context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.mu.Unlock()

	name, args := m.commandLine()
	m.logger.Info("starting process",
		"name", m.config.Name,
		"binary", m.config.Binary,
		"sudo", m.config.Sudo,
	)

	// Not CommandContext: the process outlives the start call and is only
	// ever stopped through Terminate.
	cmd := exec.Command(name, args...) //nolint:gosec // Binary comes from the operator's config file

	// New process group so Terminate reaches children of sudo.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return m.fail(fmt.Errorf("creating stdout pipe: %w", err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return m.fail(fmt.Errorf("creating stderr pipe: %w", err))
	}

	if err := cmd.Start(); err != nil {
		return m.fail(fmt.Errorf("starting %s: %w", m.config.Name, err))
	}

	m.mu.Lock()
	m.cmd = cmd
	m.status = StatusRunning
	m.startTime = time.Now()
	m.mu.Unlock()

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		defer close(m.lines)
		m.streamLines(stdout)
	}()
	go func() {
		defer readers.Done()
		m.logStderr(stderr)
	}()

	go m.monitor(cmd, &readers)

	m.logger.Info("process started", "name", m.config.Name, "pid", cmd.Process.Pid)
	return nil
}

func (m *Manager) fail(err error) error {
	m.mu.Lock()
	m.status = StatusFailed
	m.lastError = err
	m.mu.Unlock()
	close(m.lines)
	close(m.done)
	return err
}

// commandLine returns the program and argv, prefixed with sudo when configured.
func (m *Manager) commandLine() (string, []string) {
	if !m.config.Sudo {
		return m.config.Binary, m.config.Args
	}
	return m.config.SudoPath, append([]string{m.config.Binary}, m.config.Args...)
}

// streamLines forwards stdout lines until EOF or Terminate.
func (m *Manager) streamLines(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineLength)
	for scanner.Scan() {
		select {
		case m.lines <- scanner.Text():
		case <-m.stop:
			// Drain so the child never blocks on a full pipe.
			_, _ = io.Copy(io.Discard, r) //nolint:errcheck // Best effort drain
			return
		}
	}
	if err := scanner.Err(); err != nil {
		m.logger.Debug("stdout stream closed", "name", m.config.Name, "error", err)
	}
}

func (m *Manager) logStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineLength)
	for scanner.Scan() {
		m.logger.Info(m.config.Name+": "+scanner.Text(), "stream", "stderr")
	}
}

// monitor reaps the process once both output streams are finished.
func (m *Manager) monitor(cmd *exec.Cmd, readers *sync.WaitGroup) {
	readers.Wait()
	err := cmd.Wait()

	m.mu.Lock()
	m.lastError = err
	if err != nil {
		m.status = StatusFailed
	} else {
		m.status = StatusExited
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("process exited", "name", m.config.Name, "error", err)
	} else {
		m.logger.Info("process exited", "name", m.config.Name)
	}
	close(m.done)
}

// Lines returns the stdout line stream. It is closed when stdout closes.
// There is one stream per Manager; it cannot be restarted.
func (m *Manager) Lines() <-chan string {
	return m.lines
}

// Done is closed after the process has exited and been reaped.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Terminate kills the process group with SIGKILL and waits for it to be reaped.
//
// With Sudo the kill itself runs as "sudo kill -9 -- -<pgid>", since an
// unprivileged gateway cannot signal a root process.
func (m *Manager) Terminate() error {
	m.mu.RLock()
	cmd := m.cmd
	started := m.started
	m.mu.RUnlock()

	if !started {
		return ErrNotStarted
	}
	m.stopOnce.Do(func() { close(m.stop) })

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	select {
	case <-m.done:
		return nil
	default:
	}

	pid := cmd.Process.Pid
	m.logger.Info("killing process", "name", m.config.Name, "pid", pid)

	if err := m.kill(pid); err != nil {
		return err
	}

	select {
	case <-m.done:
		m.mu.Lock()
		m.status = StatusStopped
		m.mu.Unlock()
		return nil
	case <-time.After(m.config.KillWait):
		return fmt.Errorf("process %s (pid %d) did not exit within %s", m.config.Name, pid, m.config.KillWait)
	}
}

func (m *Manager) kill(pgid int) error {
	if m.config.Sudo {
		out, err := exec.Command(m.config.SudoPath, m.config.KillPath, "-9", "--", "-"+strconv.Itoa(pgid)).CombinedOutput() //nolint:gosec // pgid is our own child
		if err != nil {
			return fmt.Errorf("sudo kill %d: %w: %s", pgid, err, out)
		}
		return nil
	}

	if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("killing process group %s: %w", m.config.Name, err)
	}
	return nil
}

// Status returns the current status of the managed process.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// IsRunning returns true if the process is currently running.
func (m *Manager) IsRunning() bool {
	return m.Status() == StatusRunning
}

// LastError returns the error the process exited with, if any.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

// PID returns the process ID, or 0 if never started.
func (m *Manager) PID() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cmd != nil && m.cmd.Process != nil {
		return m.cmd.Process.Pid
	}
	return 0
}

// Stats returns statistics about the managed process.
type Stats struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	PID       int           `json:"pid,omitempty"`
	Uptime    time.Duration `json:"uptime,omitempty"`
	LastError string        `json:"last_error,omitempty"`
}

// Stats returns current statistics for the process.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		Name:   m.config.Name,
		Status: m.status,
	}
	if m.cmd != nil && m.cmd.Process != nil {
		stats.PID = m.cmd.Process.Pid
	}
	if m.status == StatusRunning {
		stats.Uptime = time.Since(m.startTime)
	}
	if m.lastError != nil {
		stats.LastError = m.lastError.Error()
	}
	return stats
}
