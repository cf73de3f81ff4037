package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/rf24mqtt/rf24mqtt/internal/infrastructure/config"
)

// Client is the gateway's broker connection.
//
// Automatic reconnection is off: the gateway loop notices a lost session
// through IsConnected and calls Connect again on its own schedule. Tracked
// subscriptions and the online status are restored on every connect.
// All methods are safe for concurrent use.
type Client struct {
	client   pahomqtt.Client
	options  *pahomqtt.ClientOptions
	cfg      config.MQTTConfig
	clientID string

	subMu         sync.RWMutex
	subscriptions map[string]subscription

	connected atomic.Bool
	sessions  atomic.Int64
	lost      atomic.Int64

	hookMu    sync.RWMutex
	onConnect func()
	logger    Logger
}

// Logger is the subset of logging.Logger the client needs.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// MessageHandler receives one broker message.
//
// Handlers run on paho goroutines and must not block; the gateway's
// handler only enqueues. A returned error is logged.
type MessageHandler func(topic string, payload []byte) error

// New builds a client from configuration without connecting.
//
// The Last Will is registered on the status topic so the broker marks the
// gateway offline if it disappears without a graceful Close.
func New(cfg config.MQTTConfig) *Client {
	clientID := resolveClientID(cfg.Broker.ClientID)
	opts := buildClientOptions(cfg, clientID)
	configureLWT(opts, cfg.Topics.Status, clientID)

	c := &Client{
		cfg:           cfg,
		options:       opts,
		clientID:      clientID,
		subscriptions: make(map[string]subscription),
	}
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.sessionUp() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.sessionLost(err) })

	c.client = pahomqtt.NewClient(opts)
	return c
}

// Connect makes one attempt to connect to the broker.
//
// Returns ErrConnectionFailed (wrapped) when the broker refuses, the
// attempt times out, or ctx ends first.
func (c *Client) Connect(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("%w: client not initialised", ErrConnectionFailed)
	}

	token := c.client.Connect()

	timer := time.NewTimer(defaultConnectTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrConnectionFailed, ctx.Err())
	case <-timer.C:
		return fmt.Errorf("%w: no CONNACK from %s after %v", ErrConnectionFailed, brokerURL(c.cfg.Broker), defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConnectionFailed, brokerURL(c.cfg.Broker), err)
	}

	// paho runs the on-connect handler asynchronously; IsConnected must
	// already be true when Connect returns.
	c.connected.Store(true)
	return nil
}

// ClientID returns the client identifier sent to the broker.
func (c *Client) ClientID() string {
	return c.clientID
}

// sessionUp runs on every successful connect.
func (c *Client) sessionUp() {
	c.connected.Store(true)
	c.sessions.Add(1)

	c.restoreSubscriptions()
	c.publishStatus(buildOnlinePayload(c.clientID), false)

	c.hookMu.RLock()
	callback := c.onConnect
	c.hookMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// sessionLost runs when paho detects a dead connection.
func (c *Client) sessionLost(err error) {
	c.connected.Store(false)
	c.lost.Add(1)

	if logger := c.getLogger(); logger != nil {
		logger.Warn("MQTT connection lost", "broker", brokerURL(c.cfg.Broker), "error", err)
	}
}

// restoreSubscriptions re-subscribes every tracked topic. Failures show up
// as missing traffic; the gateway resubscribes on its next connect anyway.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for topic, sub := range c.subscriptions {
		c.client.Subscribe(topic, sub.qos, c.wrapHandler(sub.handler))
	}
}

// publishStatus writes a retained payload to the status topic, if any.
func (c *Client) publishStatus(payload string, wait bool) {
	if c.cfg.Topics.Status == "" {
		return
	}
	token := c.client.Publish(c.cfg.Topics.Status, byte(c.cfg.QoS), true, payload)
	if wait {
		token.WaitTimeout(defaultPublishTimeout)
	}
}

// Close publishes a graceful offline status, distinct from the LWT, and
// disconnects. Pending operations get defaultDisconnectQuiesce to finish.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		c.publishStatus(buildOfflinePayload(c.clientID), true)
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	c.connected.Store(false)
	return nil
}

// HealthCheck reports ErrNotConnected when the broker link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether a broker session is up.
func (c *Client) IsConnected() bool {
	return c.connected.Load() && c.client != nil && c.client.IsConnected()
}

// Sessions returns how many sessions have been established and how many
// were lost without Close.
func (c *Client) Sessions() (established, lost int64) {
	return c.sessions.Load(), c.lost.Load()
}

// SetOnConnect sets a callback run after every successful connect, once
// subscriptions have been restored.
func (c *Client) SetOnConnect(callback func()) {
	c.hookMu.Lock()
	c.onConnect = callback
	c.hookMu.Unlock()
}

// SetLogger sets the logger for lost sessions and handler failures.
// Without one they are silent.
func (c *Client) SetLogger(logger Logger) {
	c.hookMu.Lock()
	c.logger = logger
	c.hookMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.hookMu.RLock()
	defer c.hookMu.RUnlock()
	return c.logger
}

// wrapHandler adapts a MessageHandler to paho, logging its error and
// recovering a panic so one bad message cannot kill paho's router.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT message not handled", "topic", msg.Topic(), "error", err)
			}
		}
	}
}
