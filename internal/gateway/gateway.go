package gateway

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/rf24mqtt/rf24mqtt/internal/device"
	"github.com/rf24mqtt/rf24mqtt/internal/infrastructure/logging"
	"github.com/rf24mqtt/rf24mqtt/internal/processor"
	"github.com/rf24mqtt/rf24mqtt/internal/routing"
)

type observerBox struct{ Observer }

type counters struct {
	connects        atomic.Int64
	connectFailures atomic.Int64
	disconnects     atomic.Int64
	subscribeFails  atomic.Int64
	frames          atomic.Int64
	droppedFrames   atomic.Int64
	messages        atomic.Int64
	inboxDropped    atomic.Int64
	published       atomic.Int64
	publishErrors   atomic.Int64
	idlePolls       atomic.Int64
	swept           atomic.Int64
	filterEntries   atomic.Int64
	reloads         atomic.Int64
	reloadFailures  atomic.Int64
}

// Gateway bridges RF24Node and the MQTT broker.
//
// A single goroutine (Run) owns the broker session, the radio process and
// the translator. Broker callbacks only enqueue onto the inbox, so all
// routing and duplicate-filter state is touched from one place.
type Gateway struct {
	cfg        Config
	broker     Broker
	radio      Radio
	registry   *routing.Registry
	translator *routing.Translator
	filter     *routing.DuplicateFilter
	source     device.Source
	telemetry  Telemetry
	log        *logging.Logger
	clock      clock.Clock
	observer   atomic.Pointer[observerBox]

	inbox  chan Message
	reload chan struct{}

	state      atomic.Int32
	running    atomic.Bool
	subscribed atomic.Bool
	stats      counters

	mu        sync.RWMutex
	devices   []DeviceInfo
	startedAt time.Time

	// Owned by the Run goroutine.
	radioUp       bool
	lines         <-chan string
	nextSubscribe time.Time
}

// New validates deps and returns a gateway in the init state.
func New(cfg Config, deps Deps) (*Gateway, error) {
	switch {
	case deps.Broker == nil:
		return nil, fmt.Errorf("%w: broker", ErrMissingDependency)
	case deps.Radio == nil:
		return nil, fmt.Errorf("%w: radio", ErrMissingDependency)
	case deps.Registry == nil:
		return nil, fmt.Errorf("%w: registry", ErrMissingDependency)
	case deps.Translator == nil:
		return nil, fmt.Errorf("%w: translator", ErrMissingDependency)
	case deps.Filter == nil:
		return nil, fmt.Errorf("%w: duplicate filter", ErrMissingDependency)
	case deps.Source == nil:
		return nil, fmt.Errorf("%w: device source", ErrMissingDependency)
	}

	cfg = cfg.withDefaults()
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}

	return &Gateway{
		cfg:        cfg,
		broker:     deps.Broker,
		radio:      deps.Radio,
		registry:   deps.Registry,
		translator: deps.Translator,
		filter:     deps.Filter,
		source:     deps.Source,
		telemetry:  deps.Telemetry,
		log:        deps.Logger.With("component", "gateway"),
		clock:      deps.Clock,
		inbox:      make(chan Message, cfg.InboxSize),
		reload:     make(chan struct{}, 1),
	}, nil
}

// Run drives the gateway until ctx is cancelled or the radio fails.
//
// It returns nil on a requested shutdown, ErrRadioConnect when RF24Node
// cannot be started and ErrRadioExited when it exits on its own. The radio
// process and the broker session are released before Run returns.
func (g *Gateway) Run(ctx context.Context) error {
	if !g.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer g.running.Store(false)

	g.setState(StateInit)
	g.mu.Lock()
	g.startedAt = g.clock.Now()
	g.mu.Unlock()

	if err := g.loadDevices(ctx); err != nil {
		g.setState(StateShutdown)
		return err
	}

	sweep := g.clock.Ticker(g.cfg.SweepInterval)
	defer sweep.Stop()

	g.setState(StateConnecting)
	for {
		if ctx.Err() != nil {
			return g.shutdown(nil)
		}

		var err error
		switch g.State() {
		case StateConnecting:
			err = g.connect(ctx, sweep.C)
		case StateRunning:
			err = g.step(ctx, sweep.C)
		default:
			return g.shutdown(nil)
		}
		if err != nil {
			return g.shutdown(err)
		}
	}
}

// connect makes one broker connection attempt and, the first time through,
// starts the radio process. A radio failure is fatal; a broker failure
// waits one poll interval and leaves the gateway in the connecting state.
func (g *Gateway) connect(ctx context.Context, sweep <-chan time.Time) error {
	brokerErr := g.broker.Connect(ctx)
	if brokerErr != nil {
		g.stats.connectFailures.Add(1)
		g.log.Warn("broker connect failed", "error", brokerErr, "retry_in", g.cfg.PollInterval)
	} else {
		g.stats.connects.Add(1)
		g.log.Info("connected to broker")
		if err := g.subscribe(); err != nil {
			g.log.Warn("subscribe failed", "error", err, "retry_in", g.cfg.PollInterval)
		}
	}

	if ctx.Err() != nil {
		return nil
	}

	if !g.radioUp {
		if err := g.radio.Connect(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrRadioConnect, err)
		}
		g.radioUp = true
		g.lines = g.radio.Lines()
		g.log.Info("radio connected")
	}

	if brokerErr == nil {
		g.setState(StateRunning)
		return nil
	}
	return g.backoff(ctx, sweep)
}

// backoff waits one poll interval while the broker is unreachable. Radio
// lines that arrive meanwhile are dropped without touching the duplicate
// filter, so a value seen during the outage is still published afterwards.
func (g *Gateway) backoff(ctx context.Context, sweep <-chan time.Time) error {
	timer := g.clock.Timer(g.cfg.PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			return nil
		case <-sweep:
			g.sweep()
		case <-g.reload:
			g.reloadDevices(ctx)
		case line, ok := <-g.lines:
			if !ok {
				return ErrRadioExited
			}
			g.stats.droppedFrames.Add(1)
			g.log.Debug("broker offline, dropping frame", "frame", line)
		}
	}
}

// step handles at most one unit of work. With nothing pending it returns
// after the poll interval so the broker connection is re-checked.
func (g *Gateway) step(ctx context.Context, sweep <-chan time.Time) error {
	if !g.broker.IsConnected() {
		g.stats.disconnects.Add(1)
		g.subscribed.Store(false)
		g.log.Warn("broker connection lost, reconnecting")
		g.setState(StateConnecting)
		return nil
	}

	if !g.subscribed.Load() && !g.clock.Now().Before(g.nextSubscribe) {
		if err := g.subscribe(); err != nil {
			g.log.Warn("subscribe retry failed", "error", err, "retry_in", g.cfg.PollInterval)
		}
	}

	timer := g.clock.Timer(g.cfg.PollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case msg := <-g.inbox:
		g.handleMessage(msg)
	case line, ok := <-g.lines:
		if !ok {
			return ErrRadioExited
		}
		g.handleFrame(line)
	case <-sweep:
		g.sweep()
	case <-g.reload:
		g.reloadDevices(ctx)
	case <-timer.C:
		g.stats.idlePolls.Add(1)
	}
	return nil
}

func (g *Gateway) shutdown(cause error) error {
	g.setState(StateShutdown)
	if cause != nil {
		g.log.Error("gateway stopping", "error", cause)
	} else {
		g.log.Info("gateway stopping")
	}

	if g.radioUp {
		if err := g.radio.Disconnect(); err != nil {
			g.log.Warn("radio disconnect failed", "error", err)
		}
		g.radioUp = false
	}
	if err := g.broker.Close(); err != nil {
		g.log.Warn("broker close failed", "error", err)
	}

	g.log.Info("gateway stopped")
	return cause
}

func (g *Gateway) handleFrame(line string) {
	g.stats.frames.Add(1)
	if pub, ok := g.translator.Inbound(line); ok {
		g.publish(pub)
	}
	g.stats.filterEntries.Store(int64(g.filter.Len()))
}

func (g *Gateway) handleMessage(msg Message) {
	g.stats.messages.Add(1)
	if pub, ok := g.translator.Outbound(msg.Topic, string(msg.Payload)); ok {
		g.publish(pub)
	}
	g.stats.filterEntries.Store(int64(g.filter.Len()))
}

func (g *Gateway) publish(pub routing.Publish) {
	if err := g.broker.Publish(pub.Topic, []byte(pub.Payload), g.cfg.QoS, pub.Retain); err != nil {
		g.stats.publishErrors.Add(1)
		g.log.Warn("publish failed", "topic", pub.Topic, "kind", pub.Kind.String(), "error", err)
		return
	}
	g.stats.published.Add(1)
	g.log.Debug("published", "topic", pub.Topic, "payload", pub.Payload, "kind", pub.Kind.String())

	if pub.Kind == routing.KindReading && g.telemetry != nil {
		g.telemetry.RecordReading(pub.Topic, pub.DeviceID, pub.Payload)
	}
	if box := g.observer.Load(); box != nil {
		box.Observe(pub)
	}
}

// SetObserver registers o to receive every successful publish. A nil o
// removes the current observer. It is safe to call while Run is active.
func (g *Gateway) SetObserver(o Observer) {
	if o == nil {
		g.observer.Store(nil)
		return
	}
	g.observer.Store(&observerBox{o})
}

// enqueue is the broker message handler. It runs on the MQTT client's
// goroutine and must not block.
func (g *Gateway) enqueue(topic string, payload []byte) error {
	msg := Message{Topic: topic, Payload: append([]byte(nil), payload...)}
	select {
	case g.inbox <- msg:
		return nil
	default:
		g.stats.inboxDropped.Add(1)
		return fmt.Errorf("%w: dropped message on %s", ErrInboxFull, topic)
	}
}

// subscribe installs the IPC-in and control topic subscriptions. After a
// failure the gateway stays unsubscribed and step retries once the poll
// interval has passed.
func (g *Gateway) subscribe() error {
	topics := g.translator.SubscriptionTopics()
	if err := g.broker.SubscribeAll(topics, g.enqueue); err != nil {
		g.subscribed.Store(false)
		g.stats.subscribeFails.Add(1)
		g.nextSubscribe = g.clock.Now().Add(g.cfg.PollInterval)
		return fmt.Errorf("subscribing to %d topics: %w", len(topics), err)
	}
	g.subscribed.Store(true)
	g.log.Info("subscribed", "topics", len(topics))
	return nil
}

func (g *Gateway) sweep() {
	n := g.filter.Sweep()
	g.stats.swept.Add(int64(n))
	g.stats.filterEntries.Store(int64(g.filter.Len()))
	if n > 0 {
		g.log.Debug("swept duplicate filter", "removed", n)
	}
}

// loadDevices reads the device list and installs its routes and processors.
// On error nothing is changed.
func (g *Gateway) loadDevices(ctx context.Context) error {
	devs, err := g.source.Devices(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}
	if err := g.registry.Load(devs); err != nil {
		return fmt.Errorf("loading routes: %w", err)
	}
	g.translator.SetProcessor(processor.New(devs))
	g.setDevices(devs)

	g.log.Info("devices loaded", "devices", len(devs), "routes", g.registry.Len())
	return nil
}

func (g *Gateway) reloadDevices(ctx context.Context) {
	g.stats.reloads.Add(1)
	if err := g.loadDevices(ctx); err != nil {
		g.stats.reloadFailures.Add(1)
		g.log.Error("device reload failed, keeping previous routes", "error", err)
		return
	}
	if g.broker.IsConnected() {
		if err := g.subscribe(); err != nil {
			g.log.Warn("resubscribe after reload failed", "error", err, "retry_in", g.cfg.PollInterval)
		}
	}
}

// Reload asks the loop to re-read the device list. It never blocks; a
// reload already pending absorbs the request.
func (g *Gateway) Reload() {
	select {
	case g.reload <- struct{}{}:
	default:
	}
}

// State returns the current lifecycle state.
func (g *Gateway) State() State {
	return State(g.state.Load())
}

func (g *Gateway) setState(s State) {
	prev := State(g.state.Swap(int32(s)))
	if prev != s {
		g.log.Debug("state change", "from", prev.String(), "to", s.String())
	}
}

func (g *Gateway) setDevices(devs []device.Device) {
	byID := make(map[string]DeviceInfo, len(devs))
	for _, d := range devs {
		if !d.Participates() {
			continue
		}
		info := DeviceInfo{
			ID:           d.ID,
			Name:         d.Name,
			Topic:        d.Topic,
			Controllable: d.Controllable(),
		}
		if info.Controllable {
			info.ControlTopic = d.Topic + routing.ControlSuffix
			for v := range d.RF24MQTT.ControlValues {
				info.ControlValues = append(info.ControlValues, v)
			}
			sort.Strings(info.ControlValues)
		}
		if d.Transform != nil {
			info.Processor = d.Transform.Type
			if info.Processor == "" {
				info.Processor = "passthrough"
			}
		}
		byID[d.ID] = info
	}

	infos := make([]DeviceInfo, 0, len(byID))
	for _, info := range byID {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })

	g.mu.Lock()
	g.devices = infos
	g.mu.Unlock()
}

// Devices returns the routed devices, sorted by id.
func (g *Gateway) Devices() []DeviceInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]DeviceInfo, len(g.devices))
	copy(out, g.devices)
	return out
}

// Stats returns a snapshot of the gateway counters.
func (g *Gateway) Stats() Stats {
	g.mu.RLock()
	startedAt := g.startedAt
	devices := len(g.devices)
	g.mu.RUnlock()

	s := Stats{
		State:     g.State().String(),
		StartedAt: startedAt,

		BrokerConnects:        g.stats.connects.Load(),
		BrokerConnectFailures: g.stats.connectFailures.Load(),
		BrokerDisconnects:     g.stats.disconnects.Load(),
		SubscribeFailures:     g.stats.subscribeFails.Load(),

		RadioFrames:    g.stats.frames.Load(),
		DroppedFrames:  g.stats.droppedFrames.Load(),
		BrokerMessages: g.stats.messages.Load(),
		InboxDropped:   g.stats.inboxDropped.Load(),
		InboxLength:    len(g.inbox),

		Published:     g.stats.published.Load(),
		PublishErrors: g.stats.publishErrors.Load(),
		IdlePolls:     g.stats.idlePolls.Load(),

		Swept:         g.stats.swept.Load(),
		FilterEntries: g.stats.filterEntries.Load(),

		Devices:        devices,
		Reloads:        g.stats.reloads.Load(),
		ReloadFailures: g.stats.reloadFailures.Load(),

		Translator: g.translator.Stats(),
	}
	if !startedAt.IsZero() {
		s.UptimeSeconds = int64(g.clock.Since(startedAt) / time.Second)
	}
	return s
}

// IsHealthy reports whether the gateway is running with a live, subscribed
// broker session.
func (g *Gateway) IsHealthy() bool {
	return g.State() == StateRunning && g.broker.IsConnected() && g.subscribed.Load()
}
