package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device with an ID that already exists.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidDescriptor is returned when the rf24mqtt descriptor has the wrong shape.
	ErrInvalidDescriptor = errors.New("device: invalid rf24mqtt descriptor")

	// ErrInvalidTopic is returned when a device topic is empty or contains wildcards.
	ErrInvalidTopic = errors.New("device: invalid topic")

	// ErrInvalidTransform is returned when a processor block cannot be applied.
	ErrInvalidTransform = errors.New("device: invalid processor")
)
