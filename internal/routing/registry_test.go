package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rf24mqtt/rf24mqtt/internal/device"
)

func testDevices() []device.Device {
	return []device.Device{
		{ID: "dev1", Topic: "/home/living/temperature", RF24MQTT: &device.Descriptor{}},
		{
			ID:    "pump",
			Topic: "/home/garden/pump",
			RF24MQTT: &device.Descriptor{
				Controllable:  true,
				ControlValues: map[string]string{"on": "02~1", "off": "02~0"},
			},
		},
		{ID: "knx-1", Topic: "/home/kitchen/light"},
	}
}

func TestRegistry_ResolveTopic(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Load(testDevices()))

	topic, ok := reg.ResolveTopic("dev1")
	assert.True(t, ok)
	assert.Equal(t, "/home/living/temperature", topic)

	topic, ok = reg.ResolveTopic("pump")
	assert.True(t, ok)
	assert.Equal(t, "/home/garden/pump", topic)

	_, ok = reg.ResolveTopic("knx-1")
	assert.False(t, ok, "devices without a descriptor are not routed")

	_, ok = reg.ResolveTopic("unknown")
	assert.False(t, ok)

	assert.Equal(t, 2, reg.Len())
}

func TestRegistry_ResolveAction(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Load(testDevices()))

	cmd, ok := reg.ResolveAction("/home/garden/pump/set", "on")
	assert.True(t, ok)
	assert.Equal(t, "02~1", cmd)

	cmd, ok = reg.ResolveAction("/home/garden/pump/set", "off")
	assert.True(t, ok)
	assert.Equal(t, "02~0", cmd)

	_, ok = reg.ResolveAction("/home/garden/pump/set", "toggle")
	assert.False(t, ok)

	_, ok = reg.ResolveAction("/home/garden/pump", "on")
	assert.False(t, ok, "control map is keyed by the /set topic")

	_, ok = reg.ResolveAction("/home/living/temperature/set", "on")
	assert.False(t, ok, "non-controllable devices have no control topic")
}

func TestRegistry_ControlTopics(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Load(append(testDevices(), device.Device{
		ID:    "blind",
		Topic: "/home/bedroom/blind",
		RF24MQTT: &device.Descriptor{
			Controllable:  true,
			ControlValues: map[string]string{"up": "05~1"},
		},
	})))

	topics := reg.ControlTopics()
	assert.Equal(t, []string{"/home/bedroom/blind/set", "/home/garden/pump/set"}, topics)
	for _, topic := range topics {
		assert.True(t, len(topic) > len(ControlSuffix) && topic[len(topic)-len(ControlSuffix):] == ControlSuffix)
	}
}

func TestRegistry_LoadReplaces(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Load(testDevices()))

	require.NoError(t, reg.Load([]device.Device{
		{ID: "dev2", Topic: "/home/office/temperature", RF24MQTT: &device.Descriptor{}},
	}))

	_, ok := reg.ResolveTopic("dev1")
	assert.False(t, ok, "load discards previous routes")
	_, ok = reg.ResolveAction("/home/garden/pump/set", "on")
	assert.False(t, ok, "load discards previous actions")
	assert.Empty(t, reg.ControlTopics())

	topic, ok := reg.ResolveTopic("dev2")
	assert.True(t, ok)
	assert.Equal(t, "/home/office/temperature", topic)
}

func TestRegistry_LoadIdempotent(t *testing.T) {
	once := NewRegistry()
	require.NoError(t, once.Load(testDevices()))

	twice := NewRegistry()
	require.NoError(t, twice.Load(testDevices()))
	require.NoError(t, twice.Load(testDevices()))

	assert.Equal(t, once.routes, twice.routes)
	assert.Equal(t, once.ControlTopics(), twice.ControlTopics())
	assert.Equal(t, once.actions, twice.actions)
}

func TestRegistry_LastWriteWins(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Load([]device.Device{
		{ID: "dev1", Topic: "/first", RF24MQTT: &device.Descriptor{}},
		{ID: "dev1", Topic: "/second", RF24MQTT: &device.Descriptor{}},
	}))

	topic, ok := reg.ResolveTopic("dev1")
	assert.True(t, ok)
	assert.Equal(t, "/second", topic)
}

func TestRegistry_LoadRejectsMalformed(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Load(testDevices()))

	err := reg.Load([]device.Device{
		{ID: "dev2", Topic: "/ok", RF24MQTT: &device.Descriptor{}},
		{ID: "bad", Topic: "", RF24MQTT: &device.Descriptor{}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidDevice)
	assert.ErrorIs(t, err, device.ErrInvalidTopic)

	// The failed load left the previous routes in place.
	topic, ok := reg.ResolveTopic("dev1")
	assert.True(t, ok)
	assert.Equal(t, "/home/living/temperature", topic)
	_, ok = reg.ResolveTopic("dev2")
	assert.False(t, ok)
}

func TestRegistry_ActionsAreCopied(t *testing.T) {
	devices := testDevices()
	reg := NewRegistry()
	require.NoError(t, reg.Load(devices))

	devices[1].RF24MQTT.ControlValues["on"] = "tampered"

	cmd, ok := reg.ResolveAction("/home/garden/pump/set", "on")
	assert.True(t, ok)
	assert.Equal(t, "02~1", cmd)
}

func TestRegistry_FalseDescriptorOptsOut(t *testing.T) {
	devs, err := device.Parse([]byte(`
devices:
  - id: "01"
    topic: /home/living/temperature
    rf24mqtt: true
  - id: "04"
    topic: /home/attic/humidity
    rf24mqtt: false
  - id: "05"
    topic: /home/cellar/temperature
`))
	require.NoError(t, err)
	require.Len(t, devs, 3)

	reg := NewRegistry()
	require.NoError(t, reg.Load(devs))

	assert.Equal(t, 1, reg.Len())
	_, ok := reg.ResolveTopic("04")
	assert.False(t, ok, "rf24mqtt: false keeps the device out of routing")
	_, ok = reg.ResolveTopic("01")
	assert.True(t, ok)
}
