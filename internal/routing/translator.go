package routing

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/rf24mqtt/rf24mqtt/internal/device"
	"github.com/rf24mqtt/rf24mqtt/internal/infrastructure/logging"
	"github.com/rf24mqtt/rf24mqtt/internal/processor"
)

// Default reserved topics and fallback pattern.
const (
	DefaultIPCInTopic   = "/ipc/rf24mqtt"
	DefaultIPCOutTopic  = "/ipc/rf24_node"
	DefaultTopicPattern = "/raw/rf24/{id}"

	idPlaceholder = "{id}"
)

// Kind tells readings from commands.
type Kind int

const (
	// KindReading is a device value headed for its topic (retained).
	KindReading Kind = iota
	// KindCommand is a radio command headed for the IPC-out topic (not retained).
	KindCommand
)

func (k Kind) String() string {
	if k == KindCommand {
		return "command"
	}
	return "reading"
}

// Publish is an instruction to publish Payload on Topic.
type Publish struct {
	Topic    string
	Payload  string
	Retain   bool
	Kind     Kind
	DeviceID string
}

// Options configures a Translator. Zero values take the defaults above.
type Options struct {
	PublishUndefined    bool
	DefaultTopicPattern string
	IPCInTopic          string
	IPCOutTopic         string
}

func (o Options) withDefaults() Options {
	if o.DefaultTopicPattern == "" {
		o.DefaultTopicPattern = DefaultTopicPattern
	}
	if o.IPCInTopic == "" {
		o.IPCInTopic = DefaultIPCInTopic
	}
	if o.IPCOutTopic == "" {
		o.IPCOutTopic = DefaultIPCOutTopic
	}
	return o
}

// TranslatorStats counts translator outcomes.
type TranslatorStats struct {
	Accepted       int64 `json:"accepted"`
	Duplicates     int64 `json:"duplicates"`
	Malformed      int64 `json:"malformed"`
	Unroutable     int64 `json:"unroutable"`
	Commands       int64 `json:"commands"`
	UnknownControl int64 `json:"unknown_control"`
	ProcessErrors  int64 `json:"process_errors"`
}

type translatorCounters struct {
	accepted, duplicates, malformed, unroutable atomic.Int64
	commands, unknownControl, processErrors     atomic.Int64
}

// Translator turns radio frames into reading publishes and control messages
// into radio commands.
//
// Inbound and Outbound must be called from a single goroutine (the gateway
// loop). Stats may be read from any goroutine.
type Translator struct {
	reg    *Registry
	filter *DuplicateFilter
	proc   processor.Processor
	opts   Options
	log    *logging.Logger
	stats  translatorCounters
}

// NewTranslator wires a translator. A nil processor passes values through
// and a nil logger discards.
func NewTranslator(reg *Registry, filter *DuplicateFilter, proc processor.Processor, opts Options, log *logging.Logger) *Translator {
	if proc == nil {
		proc = processor.Passthrough{}
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Translator{
		reg:    reg,
		filter: filter,
		proc:   proc,
		opts:   opts.withDefaults(),
		log:    log,
	}
}

// SetProcessor replaces the value processor after a device reload.
func (t *Translator) SetProcessor(proc processor.Processor) {
	if proc == nil {
		proc = processor.Passthrough{}
	}
	t.proc = proc
}

// ParseFrame cleans a raw radio frame and splits it into device id and value.
//
// Surrounding whitespace and one trailing '{' are removed. The rest must
// contain exactly one ':'. Either side may be empty.
func ParseFrame(raw string) (deviceID, value string, err error) {
	cleaned := strings.TrimSuffix(strings.TrimSpace(raw), "{")

	if strings.Count(cleaned, ":") != 1 {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedFrame, raw)
	}

	deviceID, value, _ = strings.Cut(cleaned, ":")
	return deviceID, value, nil
}

// Inbound handles one frame from the radio. It returns a retained reading
// publish, or false when the frame is empty, malformed, unroutable or a
// duplicate.
func (t *Translator) Inbound(frame string) (Publish, bool) {
	if frame == "" {
		return Publish{}, false
	}

	t.log.Debug("received frame", "frame", frame, "length", len(frame))

	deviceID, value, err := ParseFrame(frame)
	if err != nil {
		t.stats.malformed.Add(1)
		t.log.Debug("received data not in the expected format", "frame", frame)
		return Publish{}, false
	}

	topic, ok := t.resolveTopic(deviceID)
	if !ok {
		t.stats.unroutable.Add(1)
		return Publish{}, false
	}

	if !t.filter.ShouldPublish(topic, value) {
		t.stats.duplicates.Add(1)
		t.log.Debug("duplicate removed", "topic", topic, "value", value)
		return Publish{}, false
	}

	payload, err := t.proc.Process(topic, value)
	if err != nil {
		t.stats.processErrors.Add(1)
		t.log.Warn("value processor failed, publishing raw value",
			"topic", topic, "value", value, "error", err)
		payload = value
	}

	t.stats.accepted.Add(1)
	t.log.Info("sending message to broker", "topic", topic, "value", payload)

	return Publish{
		Topic:    topic,
		Payload:  payload,
		Retain:   true,
		Kind:     KindReading,
		DeviceID: deviceID,
	}, true
}

// Outbound handles one message received from the broker.
//
// A message on the IPC-in topic is a frame relayed by another process and
// goes through Inbound. Otherwise the topic/value pair is looked up in the
// control map and, when known, becomes a non-retained command on the IPC-out
// topic.
func (t *Translator) Outbound(topic, message string) (Publish, bool) {
	t.log.Debug("message received from broker", "topic", topic, "message", message)

	if topic == t.opts.IPCInTopic {
		t.log.Debug("message received from radio process via broker", "message", message)
		return t.Inbound(message)
	}

	command, ok := t.reg.ResolveAction(topic, message)
	if !ok {
		t.stats.unknownControl.Add(1)
		return Publish{}, false
	}

	t.stats.commands.Add(1)
	t.log.Debug("message sent to radio process via broker", "command", command)

	return Publish{
		Topic:   t.opts.IPCOutTopic,
		Payload: command,
		Retain:  false,
		Kind:    KindCommand,
	}, true
}

// SubscriptionTopics returns the IPC-in topic followed by every control topic.
func (t *Translator) SubscriptionTopics() []string {
	return append([]string{t.opts.IPCInTopic}, t.reg.ControlTopics()...)
}

// Stats returns a snapshot of the counters.
func (t *Translator) Stats() TranslatorStats {
	return TranslatorStats{
		Accepted:       t.stats.accepted.Load(),
		Duplicates:     t.stats.duplicates.Load(),
		Malformed:      t.stats.malformed.Load(),
		Unroutable:     t.stats.unroutable.Load(),
		Commands:       t.stats.commands.Load(),
		UnknownControl: t.stats.unknownControl.Load(),
		ProcessErrors:  t.stats.processErrors.Load(),
	}
}

func (t *Translator) resolveTopic(deviceID string) (string, bool) {
	if topic, ok := t.reg.ResolveTopic(deviceID); ok {
		return topic, true
	}
	if !t.opts.PublishUndefined {
		return "", false
	}

	// An id carrying '+' or '#' would yield a topic no broker accepts.
	topic := strings.ReplaceAll(t.opts.DefaultTopicPattern, idPlaceholder, deviceID)
	if err := device.ValidateTopic(topic); err != nil {
		t.log.Debug("fallback topic rejected", "device_id", deviceID, "error", err)
		return "", false
	}
	return topic, true
}
