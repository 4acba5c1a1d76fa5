package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-appliances/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second

	// milliseconds
	defaultDisconnectQuiesce = 1000

	defaultKeepAlive = 60 * time.Second
	maxQoS           = 2
)

// Availability payloads. Home Assistant's default payload_available and
// payload_not_available are these plain strings.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// buildClientOptions maps config onto paho options: broker URL, client id,
// credentials, clean session, auto-reconnect and TLS 1.2+.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	return opts
}

// configureLWT registers the retained "offline" will on the availability
// topic so subscribers see the service drop if it crashes.
func configureLWT(opts *pahomqtt.ClientOptions) {
	opts.SetWill(Topics{}.Availability(), PayloadOffline, 1, true)
}
