package daemon

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rf24mqtt/rf24mqtt/internal/infrastructure/logging"
	"github.com/rf24mqtt/rf24mqtt/internal/process"
)

const (
	pidFileMode = 0o600

	// maxPIDFileRetries bounds stale-file removal during Acquire.
	maxPIDFileRetries = 3
)

// PIDFile guards a single running instance.
type PIDFile struct {
	path   string
	name   string
	logger *logging.Logger
}

// NewPIDFile returns a pid file at path. A pid recorded in it counts as live
// only if that process is named name; an empty name accepts any process.
func NewPIDFile(path, name string, logger *logging.Logger) *PIDFile {
	if logger == nil {
		logger = logging.Discard()
	}
	return &PIDFile{path: path, name: name, logger: logger}
}

// Path returns the file location.
func (p *PIDFile) Path() string {
	return p.path
}

// Acquire atomically creates the pid file with pid. Stale or unreadable
// files are removed and creation is retried. It fails with
// ErrAlreadyRunning if the file names a live process.
func (p *PIDFile) Acquire(pid int) error {
	return p.acquire(pid, 0)
}

func (p *PIDFile) acquire(pid, attempt int) error {
	if attempt >= maxPIDFileRetries {
		return fmt.Errorf("failed to acquire pid file %s after %d attempts", p.path, maxPIDFileRetries)
	}

	f, err := os.OpenFile(p.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, pidFileMode)
	if err == nil {
		defer f.Close()
		if _, writeErr := fmt.Fprintf(f, "%d\n", pid); writeErr != nil {
			os.Remove(p.path) //nolint:errcheck // Best effort cleanup
			return fmt.Errorf("writing pid file: %w", writeErr)
		}
		p.logger.Debug("acquired pid file", "path", p.path, "pid", pid)
		return nil
	}
	if !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("creating pid file %s: %w", p.path, err)
	}

	existing, readErr := p.Read()
	if readErr != nil {
		p.logger.Warn("removing invalid pid file", "path", p.path, "error", readErr)
		os.Remove(p.path) //nolint:errcheck // Retried below
		return p.acquire(pid, attempt+1)
	}

	if !process.Alive(existing, p.name) {
		p.logger.Info("removing stale pid file", "path", p.path, "stale_pid", existing)
		os.Remove(p.path) //nolint:errcheck // Retried below
		return p.acquire(pid, attempt+1)
	}

	return fmt.Errorf("%w (pid %d, file %s)", ErrAlreadyRunning, existing, p.path)
}

// Read returns the pid recorded in the file.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, err
	}
	content := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(content)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file content %q", content)
	}
	return pid, nil
}

// Running returns the recorded pid and whether it is a live process with
// the expected name.
func (p *PIDFile) Running() (int, bool) {
	pid, err := p.Read()
	if err != nil {
		return 0, false
	}
	return pid, process.Alive(pid, p.name)
}

// Remove deletes the pid file. A missing file is not an error.
func (p *PIDFile) Remove() error {
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing pid file: %w", err)
	}
	return nil
}
