package device

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Device is one entry of the shared device list.
//
// The list is shared with other bridges, so most devices carry no
// RF24MQTT descriptor and are ignored by this gateway.
type Device struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name,omitempty" json:"name,omitempty"`
	Topic string `yaml:"topic" json:"topic"`

	// RF24MQTT is nil when the device does not participate in this gateway.
	RF24MQTT *Descriptor `yaml:"rf24mqtt,omitempty" json:"rf24mqtt,omitempty"`

	// Transform configures the value processor for this device's topic.
	Transform *Transform `yaml:"processor,omitempty" json:"processor,omitempty"`
}

// Descriptor declares how a device participates in the gateway.
type Descriptor struct {
	Controllable bool `yaml:"controllable" json:"controllable"`

	// ControlValues maps a value received on "<topic>/set" to the command
	// relayed to the radio process, e.g. "on" -> "01~1".
	ControlValues map[string]string `yaml:"control_values,omitempty" json:"control_values,omitempty"`
}

// Transform describes how a raw radio value becomes the published value.
type Transform struct {
	// Type is "passthrough" (default), "float" or "int".
	Type      string            `yaml:"type,omitempty" json:"type,omitempty"`
	Scale     *float64          `yaml:"scale,omitempty" json:"scale,omitempty"`
	Offset    float64           `yaml:"offset,omitempty" json:"offset,omitempty"`
	Precision *int              `yaml:"precision,omitempty" json:"precision,omitempty"`
	Format    string            `yaml:"format,omitempty" json:"format,omitempty"`
	Map       map[string]string `yaml:"map,omitempty" json:"map,omitempty"`
}

// Participates reports whether the device is routed by this gateway.
func (d Device) Participates() bool {
	return d.RF24MQTT != nil
}

// Controllable reports whether the device accepts commands on its control topic.
func (d Device) Controllable() bool {
	return d.RF24MQTT != nil && d.RF24MQTT.Controllable
}

// UnmarshalYAML accepts both shapes of the rf24mqtt key found in device files:
//
//	rf24mqtt: true            # participates, not controllable
//	rf24mqtt:                 # same (null)
//	rf24mqtt:
//	  controllable: true
//	  control_values: {"on": "01~1", "off": "01~0"}
//
// An explicit "rf24mqtt: false" opts the device out.
func (d *Device) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		ID        string     `yaml:"id"`
		Name      string     `yaml:"name"`
		Topic     string     `yaml:"topic"`
		RF24MQTT  yaml.Node  `yaml:"rf24mqtt"`
		Transform *Transform `yaml:"processor"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	d.ID = raw.ID
	d.Name = raw.Name
	d.Topic = raw.Topic
	d.Transform = raw.Transform
	d.RF24MQTT = nil

	node := raw.RF24MQTT
	switch node.Kind {
	case 0:
		// key absent
	case yaml.MappingNode:
		var desc Descriptor
		if err := node.Decode(&desc); err != nil {
			return fmt.Errorf("device %q: rf24mqtt: %w", raw.ID, err)
		}
		d.RF24MQTT = &desc
	case yaml.ScalarNode:
		if node.ShortTag() == "!!bool" {
			var on bool
			if err := node.Decode(&on); err != nil {
				return fmt.Errorf("device %q: rf24mqtt: %w", raw.ID, err)
			}
			if !on {
				return nil
			}
		}
		d.RF24MQTT = &Descriptor{}
	default:
		return fmt.Errorf("device %q: %w: rf24mqtt must be a mapping or a boolean", raw.ID, ErrInvalidDescriptor)
	}

	return nil
}
