package mqtt

import "errors"

// Sentinel errors. Failures from the broker are wrapped around these, so
// check with errors.Is.
var (
	// ErrNotConnected means the broker link is down; the host retries on reconnect.
	ErrNotConnected = errors.New("mqtt: client not connected")

	ErrConnectionFailed  = errors.New("mqtt: connection failed")
	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS rejects anything outside 0..2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic rejects empty topics.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
