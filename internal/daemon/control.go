package daemon

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/rf24mqtt/rf24mqtt/internal/infrastructure/logging"
	"github.com/rf24mqtt/rf24mqtt/internal/process"
)

const (
	defaultStopTimeout  = 10 * time.Second
	defaultStartTimeout = 3 * time.Second
	pollInterval        = 50 * time.Millisecond
)

// Controller starts and stops a detached gateway.
type Controller struct {
	// PIDFile identifies the running instance.
	PIDFile *PIDFile

	// Executable and Args launch the foreground gateway, e.g.
	// "/usr/bin/rf24mqtt -config /etc/rf24mqtt/config.yaml run".
	Executable string
	Args       []string

	// Stdout receives the child's stdout and stderr. Empty means /dev/null.
	Stdout string

	// StopTimeout is how long Stop waits after SIGTERM before SIGKILL.
	StopTimeout time.Duration

	// StartTimeout is how long Start waits for the child to claim the pid file.
	StartTimeout time.Duration

	Logger *logging.Logger
}

func (c *Controller) log() *logging.Logger {
	if c.Logger == nil {
		return logging.Discard()
	}
	return c.Logger
}

// Start launches the gateway in a new session and returns its pid.
//
// It waits until the child has written its pid to the pid file, the child
// exits, or StartTimeout passes. A child still alive at the timeout is
// assumed to be starting.
func (c *Controller) Start() (int, error) {
	if pid, ok := c.PIDFile.Running(); ok {
		return pid, fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
	}

	stdout := c.Stdout
	if stdout == "" {
		stdout = os.DevNull
	}
	out, err := os.OpenFile(stdout, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec // Path from the operator's config file
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", stdout, err)
	}
	defer out.Close()

	cmd := exec.Command(c.Executable, c.Args...) //nolint:gosec // Re-executes our own binary
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStartFailed, err)
	}
	pid := cmd.Process.Pid

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	timeout := c.StartTimeout
	if timeout <= 0 {
		timeout = defaultStartTimeout
	}
	deadline := time.After(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-exited:
			if err == nil {
				err = errors.New("exited during startup")
			}
			return 0, fmt.Errorf("%w: %w (see %s)", ErrStartFailed, err, stdout)
		case <-deadline:
			c.log().Warn("gateway did not write its pid file in time", "pid", pid, "path", c.PIDFile.Path())
			return pid, nil
		case <-ticker.C:
			if recorded, err := c.PIDFile.Read(); err == nil && recorded == pid {
				c.log().Info("gateway started", "pid", pid)
				return pid, nil
			}
		}
	}
}

// Stop terminates the running gateway and removes its pid file.
func (c *Controller) Stop() error {
	pid, ok := c.PIDFile.Running()
	if !ok {
		// Leftover file from a crash.
		if err := c.PIDFile.Remove(); err != nil {
			c.log().Warn("failed to remove stale pid file", "error", err)
		}
		return ErrNotRunning
	}

	c.log().Info("stopping gateway", "pid", pid)
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("signalling pid %d: %w", pid, err)
	}

	timeout := c.StopTimeout
	if timeout <= 0 {
		timeout = defaultStopTimeout
	}
	if !waitExit(pid, timeout) {
		c.log().Warn("gateway ignored SIGTERM, killing", "pid", pid, "timeout", timeout)
		if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
			return fmt.Errorf("killing pid %d: %w", pid, err)
		}
		waitExit(pid, time.Second)
	}

	return c.PIDFile.Remove()
}

// Restart stops the running gateway, if any, and starts a new one.
func (c *Controller) Restart() (int, error) {
	if err := c.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
		return 0, err
	}
	return c.Start()
}

func waitExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !process.Alive(pid, "") {
			return true
		}
		time.Sleep(pollInterval)
	}
	return !process.Alive(pid, "")
}
