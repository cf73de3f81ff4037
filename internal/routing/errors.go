package routing

import "errors"

var (
	// ErrInvalidDevice is returned by Registry.Load for a malformed device list.
	ErrInvalidDevice = errors.New("routing: invalid device")

	// ErrMalformedFrame is returned by ParseFrame when a frame does not have
	// exactly one ':' separator.
	ErrMalformedFrame = errors.New("routing: malformed frame")
)
