package gateway

import "errors"

var (
	// ErrRadioConnect is returned by Run when RF24Node cannot be started.
	ErrRadioConnect = errors.New("gateway: radio connect failed")

	// ErrRadioExited is returned by Run when RF24Node exits on its own.
	ErrRadioExited = errors.New("gateway: radio process exited")

	// ErrAlreadyRunning is returned by a second concurrent call to Run.
	ErrAlreadyRunning = errors.New("gateway: already running")

	// ErrInboxFull is reported when a broker message is dropped because the
	// loop is not keeping up.
	ErrInboxFull = errors.New("gateway: inbox full")

	// ErrMissingDependency is returned by New when a required dependency is nil.
	ErrMissingDependency = errors.New("gateway: missing dependency")
)
