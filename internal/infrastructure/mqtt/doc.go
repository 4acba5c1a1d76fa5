// Package mqtt provides the MQTT client Gray Logic Appliances uses to talk
// to the home-automation host.
//
// The client adds three things on top of paho: subscriptions that survive
// reconnects, a retained online/offline availability topic backed by a
// Last Will, and panic recovery around message handlers.
//
// # Topics
//
//	{discovery_prefix}/{platform}/{unique_id}/config   retained discovery config
//	graylogic/appliance/{platform}/{unique_id}/state   retained entity state
//	graylogic/appliance/{platform}/{unique_id}/command host -> service commands
//	graylogic/appliance/status                         online / offline
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// Use TLS (cfg.Broker.TLS) for anything other than a local broker.
package mqtt
