package gateway

import (
	"context"
	"errors"
	"sync"

	"github.com/rf24mqtt/rf24mqtt/internal/device"
	"github.com/rf24mqtt/rf24mqtt/internal/infrastructure/mqtt"
)

var errBrokerDown = errors.New("connection refused")

type mockPublish struct {
	Topic    string
	Payload  string
	QoS      byte
	Retained bool
}

// MockBroker stands in for the MQTT client.
type MockBroker struct {
	mu             sync.Mutex
	connected      bool
	closed         bool
	failConnects   int
	failSubscribes int
	connectCalls   int
	subscribeCalls int
	subscriptions  []string
	handler        mqtt.MessageHandler
	published      []mockPublish
}

func NewMockBroker() *MockBroker {
	return &MockBroker{}
}

func (m *MockBroker) Connect(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectCalls++
	if m.failConnects != 0 {
		if m.failConnects > 0 {
			m.failConnects--
		}
		return errBrokerDown
	}
	m.connected = true
	return nil
}

func (m *MockBroker) SubscribeAll(topics []string, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribeCalls++
	if m.failSubscribes > 0 {
		m.failSubscribes--
		return errors.New("subscribe timed out")
	}
	m.subscriptions = append([]string(nil), topics...)
	m.handler = handler
	return nil
}

func (m *MockBroker) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return errors.New("not connected")
	}
	m.published = append(m.published, mockPublish{
		Topic:    topic,
		Payload:  string(payload),
		QoS:      qos,
		Retained: retained,
	})
	return nil
}

func (m *MockBroker) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockBroker) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.connected = false
	return nil
}

// FailConnects makes the next n connect attempts fail. A negative n fails
// every attempt until changed.
func (m *MockBroker) FailConnects(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failConnects = n
}

// FailSubscribes makes the next n SubscribeAll calls fail.
func (m *MockBroker) FailSubscribes(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSubscribes = n
}

// Drop simulates a lost broker connection.
func (m *MockBroker) Drop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
}

func (m *MockBroker) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mockPublish, len(m.published))
	copy(out, m.published)
	return out
}

func (m *MockBroker) GetSubscriptions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.subscriptions...)
}

func (m *MockBroker) ConnectCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectCalls
}

func (m *MockBroker) SubscribeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscribeCalls
}

func (m *MockBroker) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// SimulateMessage delivers a message as the MQTT client would.
func (m *MockBroker) SimulateMessage(topic, payload string) error {
	m.mu.Lock()
	handler := m.handler
	m.mu.Unlock()
	if handler == nil {
		return errors.New("no subscription handler")
	}
	return handler(topic, []byte(payload))
}

// MockRadio stands in for the RF24Node process.
type MockRadio struct {
	mu           sync.Mutex
	connectErr   error
	connectCalls int
	disconnected bool
	lines        chan string
	closeOnce    sync.Once
}

func NewMockRadio() *MockRadio {
	return &MockRadio{lines: make(chan string, 16)}
}

func (r *MockRadio) Connect(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectCalls++
	return r.connectErr
}

func (r *MockRadio) Lines() <-chan string {
	return r.lines
}

func (r *MockRadio) Disconnect() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnected = true
	return nil
}

// Send emits one line on the radio's stdout.
func (r *MockRadio) Send(line string) {
	r.lines <- line
}

// Exit simulates RF24Node exiting.
func (r *MockRadio) Exit() {
	r.closeOnce.Do(func() { close(r.lines) })
}

func (r *MockRadio) ConnectCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connectCalls
}

func (r *MockRadio) Disconnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disconnected
}

type reading struct {
	Topic, DeviceID, Value string
}

type mockTelemetry struct {
	mu       sync.Mutex
	readings []reading
}

func (m *mockTelemetry) RecordReading(topic, deviceID, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readings = append(m.readings, reading{topic, deviceID, value})
}

func (m *mockTelemetry) Readings() []reading {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]reading(nil), m.readings...)
}

type mockSource struct {
	mu    sync.Mutex
	devs  []device.Device
	err   error
	calls int
}

func (s *mockSource) Devices(_ context.Context) ([]device.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return append([]device.Device(nil), s.devs...), nil
}

func (s *mockSource) Set(devs []device.Device, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devs = devs
	s.err = err
}
