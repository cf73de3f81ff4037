package mqtt

import (
	"errors"
	"fmt"
	"sort"
)

// Subscribe registers a handler for messages on the specified topic.
//
// The handler is called in a paho goroutine for each received message.
// Subscriptions are tracked and restored when the connection is
// re-established.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	c.subscriptions[topic] = subscription{qos: qos, handler: handler}
	c.subMu.Unlock()

	token := c.client.Subscribe(topic, qos, c.wrapHandler(handler))
	if !token.WaitTimeout(defaultPublishTimeout) {
		c.forget(topic)
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		c.forget(topic)
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	return nil
}

// SubscribeAll makes the tracked subscriptions equal to topics, all with
// the configured QoS and the same handler.
//
// Topics no longer wanted are unsubscribed; this is how a device reload
// drops the control topics of removed devices. Every topic is attempted
// and the failures are joined.
func (c *Client) SubscribeAll(topics []string, handler MessageHandler) error {
	want := make(map[string]struct{}, len(topics))
	for _, topic := range topics {
		want[topic] = struct{}{}
	}

	var errs []error
	for _, topic := range c.Topics() {
		if _, keep := want[topic]; keep {
			continue
		}
		if err := c.Unsubscribe(topic); err != nil {
			errs = append(errs, fmt.Errorf("unsubscribe %s: %w", topic, err))
		}
	}

	for _, topic := range topics {
		if err := c.Subscribe(topic, byte(c.cfg.QoS), handler); err != nil {
			errs = append(errs, fmt.Errorf("subscribe %s: %w", topic, err))
		}
	}

	return errors.Join(errs...)
}

// Unsubscribe removes a subscription and stops receiving messages for a topic.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.forget(topic)

	token := c.client.Unsubscribe(topic)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrUnsubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsubscribeFailed, err)
	}

	return nil
}

func (c *Client) forget(topic string) {
	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()
}

// SubscriptionCount returns the number of active subscriptions.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}

// Topics returns the tracked subscription topics, sorted.
func (c *Client) Topics() []string {
	c.subMu.RLock()
	topics := make([]string, 0, len(c.subscriptions))
	for topic := range c.subscriptions {
		topics = append(topics, topic)
	}
	c.subMu.RUnlock()

	sort.Strings(topics)
	return topics
}
