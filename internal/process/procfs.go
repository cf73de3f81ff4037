package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// procRoot is the procfs mount point. Tests point it at a fake tree.
var procRoot = "/proc"

// commLength is the kernel's TASK_COMM_LEN minus the terminating NUL.
const commLength = 15

// Comm returns the command name of pid as reported by /proc/<pid>/comm.
func Comm(pid int) (string, error) {
	data, err := os.ReadFile(filepath.Join(procRoot, strconv.Itoa(pid), "comm"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Alive reports whether pid exists and its command name is name.
// An empty name matches any live process.
func Alive(pid int, name string) bool {
	if pid <= 0 {
		return false
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix FindProcess always succeeds; signal 0 probes for existence.
	// EPERM means it exists but belongs to another user.
	if err := proc.Signal(syscall.Signal(0)); err != nil && !errors.Is(err, syscall.EPERM) {
		return false
	}

	if name == "" {
		return true
	}
	comm, err := Comm(pid)
	if err != nil {
		return false
	}
	return comm == truncateComm(name)
}

// FindByName returns the pids of every process whose command name is name,
// excluding the calling process.
func FindByName(name string) ([]int, error) {
	entries, err := os.ReadDir(procRoot)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", procRoot, err)
	}

	want := truncateComm(name)
	self := os.Getpid()

	var pids []int
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid == self {
			continue
		}
		comm, err := Comm(pid)
		if err != nil {
			// Exited between ReadDir and ReadFile.
			continue
		}
		if comm == want {
			pids = append(pids, pid)
		}
	}
	return pids, nil
}

// KillByName sends SIGKILL to every process named name and returns how many
// were signalled. With sudo the kill runs as "sudo kill -9 <pid>".
func KillByName(name string, sudo bool, logger Logger) (int, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	pids, err := FindByName(name)
	if err != nil {
		return 0, err
	}

	var errs []error
	killed := 0
	for _, pid := range pids {
		if err := killPID(pid, sudo); err != nil {
			errs = append(errs, err)
			continue
		}
		logger.Info("killed stray process", "name", name, "pid", pid)
		killed++
	}
	return killed, errors.Join(errs...)
}

func killPID(pid int, sudo bool) error {
	if sudo {
		out, err := exec.Command("sudo", "kill", "-9", strconv.Itoa(pid)).CombinedOutput() //nolint:gosec // pid read from procfs
		if err != nil {
			return fmt.Errorf("sudo kill %d: %w: %s", pid, err, strings.TrimSpace(string(out)))
		}
		return nil
	}
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("kill %d: %w", pid, err)
	}
	return nil
}

func truncateComm(name string) string {
	name = filepath.Base(name)
	if len(name) > commLength {
		return name[:commLength]
	}
	return name
}
