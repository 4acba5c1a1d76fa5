package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-appliances/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang with subscription tracking, availability
// publishing and handler panic recovery.
//
// All methods are safe for concurrent use. Subscriptions are restored
// after every reconnect.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig

	subscriptions map[string]subscription
	subMu         sync.RWMutex

	connected bool
	connMu    sync.RWMutex

	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
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

// MessageHandler is the callback signature for received messages.
//
// paho invokes handlers on its own goroutines, so they must not block for
// long. A returned error is logged and does not affect acknowledgement.
type MessageHandler func(topic string, payload []byte) error

// Connect dials the broker described by cfg and waits for the initial
// connection. The broker publishes "offline" to the availability topic if
// the process dies without calling Close.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:           cfg,
		subscriptions: make(map[string]subscription),
	}

	opts := buildClientOptions(cfg)
	configureLWT(opts)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) { c.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleDisconnect(err) })

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect handler runs asynchronously; mark connected now so
	// callers can publish immediately.
	c.setConnected(true)

	return c, nil
}

func (c *Client) handleConnect() {
	c.setConnected(true)
	c.restoreSubscriptions()
	c.client.Publish(Topics{}.Availability(), byte(c.cfg.QoS), true, PayloadOnline)

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.setConnected(false)

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

func (c *Client) setConnected(v bool) {
	c.connMu.Lock()
	c.connected = v
	c.connMu.Unlock()
}

func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for topic, sub := range c.subscriptions {
		c.client.Subscribe(topic, sub.qos, c.wrapHandler(sub.handler))
	}
}

// Close publishes "offline" to the availability topic and disconnects.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.client.Publish(Topics{}.Availability(), byte(c.cfg.QoS), true, PayloadOffline)
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)
	c.setConnected(false)
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

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	if c.client == nil {
		return false
	}
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// SetOnConnect sets a callback invoked on initial connect and every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the connection is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for handler errors and panics.
// Without one, handler failures are silently dropped.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// wrapHandler adapts a MessageHandler to paho, recovering panics so one bad
// message cannot take down the paho router goroutine.
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
				logger.Warn("MQTT handler returned error", "topic", msg.Topic(), "error", err)
			}
		}
	}
}
