package gateway

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/rf24mqtt/rf24mqtt/internal/device"
	"github.com/rf24mqtt/rf24mqtt/internal/infrastructure/logging"
	"github.com/rf24mqtt/rf24mqtt/internal/infrastructure/mqtt"
	"github.com/rf24mqtt/rf24mqtt/internal/routing"
)

// State is a gateway lifecycle state.
type State int32

const (
	StateInit State = iota
	StateConnecting
	StateRunning
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateConnecting:
		return "connecting"
	case StateRunning:
		return "running"
	case StateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Broker is the MQTT side of the gateway. *mqtt.Client implements it.
type Broker interface {
	Connect(ctx context.Context) error
	SubscribeAll(topics []string, handler mqtt.MessageHandler) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
	Close() error
}

// Radio is the RF24Node side of the gateway. *radio.Manager implements it.
type Radio interface {
	Connect(ctx context.Context) error
	Lines() <-chan string
	Disconnect() error
}

// Telemetry records accepted readings. *influxdb.Client implements it.
type Telemetry interface {
	RecordReading(topic, deviceID, value string)
}

// Observer is told about every successful publish. It is called from the
// loop goroutine and must not block.
type Observer interface {
	Observe(pub routing.Publish)
}

// Config tunes the gateway loop.
type Config struct {
	// PollInterval is the longest a step waits for work, and the delay
	// between broker connect attempts.
	PollInterval time.Duration

	// SweepInterval is how often expired duplicate-filter entries are removed.
	SweepInterval time.Duration

	// InboxSize is the capacity of the broker message queue.
	InboxSize int

	// QoS is used for every publish.
	QoS byte
}

const (
	defaultPollInterval  = 100 * time.Millisecond
	defaultSweepInterval = time.Minute
	defaultInboxSize     = 256
)

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = defaultSweepInterval
	}
	if c.InboxSize <= 0 {
		c.InboxSize = defaultInboxSize
	}
	return c
}

// Deps are the collaborators the gateway drives. Telemetry, Logger and
// Clock are optional.
type Deps struct {
	Broker     Broker
	Radio      Radio
	Registry   *routing.Registry
	Translator *routing.Translator
	Filter     *routing.DuplicateFilter
	Source     device.Source
	Telemetry  Telemetry
	Logger     *logging.Logger
	Clock      clock.Clock
}

// Message is a broker message waiting for the loop.
type Message struct {
	Topic   string
	Payload []byte
}

// DeviceInfo describes one routed device for the status API.
type DeviceInfo struct {
	ID            string   `json:"id"`
	Name          string   `json:"name,omitempty"`
	Topic         string   `json:"topic"`
	Controllable  bool     `json:"controllable"`
	ControlTopic  string   `json:"control_topic,omitempty"`
	ControlValues []string `json:"control_values,omitempty"`
	Processor     string   `json:"processor,omitempty"`
}

// Stats is a snapshot of the gateway counters.
type Stats struct {
	State         string    `json:"state"`
	StartedAt     time.Time `json:"started_at"`
	UptimeSeconds int64     `json:"uptime_seconds"`

	BrokerConnects        int64 `json:"broker_connects"`
	BrokerConnectFailures int64 `json:"broker_connect_failures"`
	BrokerDisconnects     int64 `json:"broker_disconnects"`
	SubscribeFailures     int64 `json:"subscribe_failures"`

	RadioFrames    int64 `json:"radio_frames"`
	DroppedFrames  int64 `json:"dropped_frames"`
	BrokerMessages int64 `json:"broker_messages"`
	InboxDropped   int64 `json:"inbox_dropped"`
	InboxLength    int   `json:"inbox_length"`

	Published     int64 `json:"published"`
	PublishErrors int64 `json:"publish_errors"`
	IdlePolls     int64 `json:"idle_polls"`

	Swept         int64 `json:"swept"`
	FilterEntries int64 `json:"filter_entries"`

	Devices        int   `json:"devices"`
	Reloads        int64 `json:"reloads"`
	ReloadFailures int64 `json:"reload_failures"`

	Translator routing.TranslatorStats `json:"translator"`
}
