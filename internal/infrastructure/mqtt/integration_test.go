//go:build integration

package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/rf24mqtt/rf24mqtt/internal/infrastructure/config"
)

// Integration tests against a real broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func integrationConfig(clientID string) config.MQTTConfig {
	cfg := testConfig()
	cfg.Broker.ClientID = clientID
	return cfg
}

func connectIntegration(t *testing.T, clientID string) *Client {
	t.Helper()
	client := New(integrationConfig(clientID))
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestIntegration_Connect(t *testing.T) {
	client := connectIntegration(t, "rf24mqtt-int-connect")

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	client.Close()
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}

func TestIntegration_ReconnectAfterClose(t *testing.T) {
	client := New(integrationConfig("rf24mqtt-int-reconnect"))
	for i := 0; i < 2; i++ {
		if err := client.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() #%d error = %v", i+1, err)
		}
		client.Close()
	}
}

func TestIntegration_SubscribeAllReplaces(t *testing.T) {
	client := connectIntegration(t, "rf24mqtt-int-suball")
	handler := func(string, []byte) error { return nil }

	if err := client.SubscribeAll([]string{"/ipc/rf24mqtt", "/int/a/set", "/int/b/set"}, handler); err != nil {
		t.Fatalf("SubscribeAll() error = %v", err)
	}
	if client.SubscriptionCount() != 3 {
		t.Errorf("SubscriptionCount() = %d, want 3", client.SubscriptionCount())
	}

	if err := client.SubscribeAll([]string{"/ipc/rf24mqtt", "/int/b/set"}, handler); err != nil {
		t.Fatalf("SubscribeAll() error = %v", err)
	}
	for _, topic := range client.Topics() {
		if topic == "/int/a/set" {
			t.Error("removed topic is still subscribed")
		}
	}
	if client.SubscriptionCount() != 2 {
		t.Errorf("SubscriptionCount() = %d, want 2", client.SubscriptionCount())
	}
}

func TestIntegration_RetainedRoundtrip(t *testing.T) {
	publisher := connectIntegration(t, "rf24mqtt-int-pub")
	topic := "/int/rf24/retained"

	if err := publisher.Publish(topic, []byte("23"), 1, true); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	subscriber := connectIntegration(t, "rf24mqtt-int-sub")
	received := make(chan string, 1)
	if err := subscriber.Subscribe(topic, 1, func(_ string, payload []byte) error {
		received <- string(payload)
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	select {
	case got := <-received:
		if got != "23" {
			t.Errorf("payload = %q, want 23", got)
		}
	case <-time.After(2 * time.Second):
		t.Error("retained message not delivered to late subscriber")
	}

	// Clear the retained message.
	_ = publisher.Publish(topic, nil, 1, true)
}
