package daemon

import "errors"

var (
	// ErrAlreadyRunning is returned when the pid file names a live gateway.
	ErrAlreadyRunning = errors.New("daemon: already running")

	// ErrNotRunning is returned by Stop when no live gateway is found.
	ErrNotRunning = errors.New("daemon: not running")

	// ErrStartFailed is returned when the detached child exits during startup.
	ErrStartFailed = errors.New("daemon: start failed")
)
