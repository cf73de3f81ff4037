package routing

import (
	"fmt"
	"sort"

	"github.com/rf24mqtt/rf24mqtt/internal/device"
)

// ControlSuffix is appended to a device topic to form its control topic.
const ControlSuffix = "/set"

// Registry maps device ids to topics and control topics to commands.
//
// It is rebuilt wholesale by Load and read-only between loads. It is owned
// by the gateway loop and is not safe for concurrent use.
type Registry struct {
	routes  map[string]string            // device id -> topic
	actions map[string]map[string]string // "<topic>/set" -> value -> command
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		routes:  map[string]string{},
		actions: map[string]map[string]string{},
	}
}

// Load replaces all routes with those declared by devices.
//
// Devices without an rf24mqtt descriptor are skipped. When two devices
// share an id, the later one wins. On error the previous routes are kept.
func (r *Registry) Load(devices []device.Device) error {
	routes := make(map[string]string, len(devices))
	actions := make(map[string]map[string]string)

	for i, d := range devices {
		if !d.Participates() {
			continue
		}
		if err := device.ValidateDevice(d); err != nil {
			return fmt.Errorf("%w: device %d (%q): %w", ErrInvalidDevice, i, d.ID, err)
		}

		routes[d.ID] = d.Topic

		if d.Controllable() {
			values := make(map[string]string, len(d.RF24MQTT.ControlValues))
			for v, cmd := range d.RF24MQTT.ControlValues {
				values[v] = cmd
			}
			actions[d.Topic+ControlSuffix] = values
		}
	}

	r.routes = routes
	r.actions = actions
	return nil
}

// ResolveTopic returns the topic for a device id.
func (r *Registry) ResolveTopic(deviceID string) (string, bool) {
	topic, ok := r.routes[deviceID]
	return topic, ok
}

// ResolveAction returns the radio command for a value received on a control topic.
func (r *Registry) ResolveAction(controlTopic, value string) (string, bool) {
	cmd, ok := r.actions[controlTopic][value]
	return cmd, ok
}

// ControlTopics returns every control topic, sorted.
func (r *Registry) ControlTopics() []string {
	topics := make([]string, 0, len(r.actions))
	for t := range r.actions {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// Len returns the number of routed device ids.
func (r *Registry) Len() int {
	return len(r.routes)
}
