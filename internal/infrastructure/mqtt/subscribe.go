package mqtt

import (
	"fmt"
)

// Subscribe registers handler for topic, which may contain + and # wildcards.
// The subscription is tracked and restored after reconnects.
//
//	err := client.Subscribe(mqtt.Topics{}.AllEntityCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        platform, uid, _ := mqtt.ParseEntityCommandTopic(topic)
//	        return handle(platform, uid, payload)
//	    })
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
	var err error
	if !token.WaitTimeout(defaultPublishTimeout) {
		err = fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	} else if tokenErr := token.Error(); tokenErr != nil {
		err = fmt.Errorf("%w: %w", ErrSubscribeFailed, tokenErr)
	}
	if err != nil {
		c.forget(topic)
		return err
	}
	return nil
}

// Unsubscribe removes a subscription. Messages already in flight may still
// be delivered.
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

// SubscriptionCount returns the number of tracked subscriptions.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}

// HasSubscription reports whether topic is tracked. Exact string match only.
func (c *Client) HasSubscription(topic string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, exists := c.subscriptions[topic]
	return exists
}
