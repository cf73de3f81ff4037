package radio

import "errors"

var (
	// ErrInvalidConfig is returned when the radio settings cannot be used.
	ErrInvalidConfig = errors.New("radio: invalid config")

	// ErrConnectFailed is returned when RF24Node cannot be started.
	ErrConnectFailed = errors.New("radio: connect failed")

	// ErrNotConnected is returned when the radio has not been connected.
	ErrNotConnected = errors.New("radio: not connected")
)
