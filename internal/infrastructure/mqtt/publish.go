package mqtt

import (
	"fmt"
)

// maxPayloadSize caps outgoing payloads at 1MB, a common broker limit.
const maxPayloadSize = 1 << 20

// Publish sends payload to topic.
//
// Retained messages are used for discovery configs and entity state so a
// newly connected subscriber sees the current value immediately.
//
//	err := client.Publish(mqtt.Topics{}.EntityState("binary_sensor", "000123456789_Door"), payload, 1, true)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := validatePublish(topic, payload, qos); err != nil {
		return err
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// PublishRetained publishes a retained message at the configured QoS.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}

func validatePublish(topic string, payload []byte, qos byte) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case len(payload) > maxPayloadSize:
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	return nil
}
