package device

import (
	"fmt"
	"strings"
)

// Validation constants.
const (
	maxIDLength    = 64
	maxTopicLength = 256
)

// ValidateDevice checks a participating device for the fields the gateway
// relies on. Non-participating devices are not checked: they belong to other
// bridges sharing the same file.
func ValidateDevice(d Device) error {
	if !d.Participates() {
		return nil
	}

	if d.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidDevice)
	}
	if len(d.ID) > maxIDLength {
		return fmt.Errorf("%w: id exceeds %d characters", ErrInvalidDevice, maxIDLength)
	}
	// The radio frame separator cannot appear in an id.
	if strings.ContainsAny(d.ID, ": \t\n") {
		return fmt.Errorf("%w: id %q contains ':' or whitespace", ErrInvalidDevice, d.ID)
	}

	if err := ValidateTopic(d.Topic); err != nil {
		return err
	}

	if d.RF24MQTT.Controllable && len(d.RF24MQTT.ControlValues) == 0 {
		return fmt.Errorf("%w: controllable device needs control_values", ErrInvalidDescriptor)
	}
	for value, command := range d.RF24MQTT.ControlValues {
		if command == "" {
			return fmt.Errorf("%w: control value %q has an empty command", ErrInvalidDescriptor, value)
		}
	}

	if d.Transform != nil {
		if err := validateTransform(*d.Transform); err != nil {
			return err
		}
	}

	return nil
}

// ValidateTopic checks that a topic can be published to.
func ValidateTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: topic is required", ErrInvalidTopic)
	}
	if len(topic) > maxTopicLength {
		return fmt.Errorf("%w: topic exceeds %d characters", ErrInvalidTopic, maxTopicLength)
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: %q contains a wildcard", ErrInvalidTopic, topic)
	}
	return nil
}

func validateTransform(t Transform) error {
	switch t.Type {
	case "", "passthrough", "float", "int":
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTransform, t.Type)
	}
	if t.Precision != nil && (*t.Precision < 0 || *t.Precision > 10) {
		return fmt.Errorf("%w: precision must be between 0 and 10", ErrInvalidTransform)
	}
	if t.Format != "" && !strings.Contains(t.Format, "%") {
		return fmt.Errorf("%w: format %q has no verb", ErrInvalidTransform, t.Format)
	}
	return nil
}

// ValidateList validates every device and reports the first failure with its
// position in the list.
func ValidateList(devices []Device) error {
	for i, d := range devices {
		if err := ValidateDevice(d); err != nil {
			return fmt.Errorf("device %d (%q): %w", i, d.ID, err)
		}
	}
	return nil
}
