//go:build integration

package mqtt

import (
	"testing"
	"time"
)

// Integration tests need a broker at 127.0.0.1:1883.
//
//	go test -tags=integration -count=1 ./internal/infrastructure/mqtt/...

func TestIntegration_CommandRoundtrip(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "graylogic-appliances-integration"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	received := make(chan string, 1)
	err = client.Subscribe(Topics{}.AllEntityCommands(), 1, func(topic string, _ []byte) error {
		_, uid, ok := ParseEntityCommandTopic(topic)
		if ok {
			received <- uid
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !client.HasSubscription(Topics{}.AllEntityCommands()) {
		t.Fatal("subscription not tracked")
	}

	time.Sleep(100 * time.Millisecond)

	if err := client.Publish(Topics{}.EntityCommand("fan", "000123456789"), []byte(`{"command":"turn_on"}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case uid := <-received:
		if uid != "000123456789" {
			t.Errorf("unique id = %q, want 000123456789", uid)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("command not received")
	}
}

func TestIntegration_RetainedAvailability(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "graylogic-appliances-availability"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	status := make(chan string, 1)
	err = client.Subscribe(Topics{}.Availability(), 1, func(_ string, payload []byte) error {
		select {
		case status <- string(payload):
		default:
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	select {
	case got := <-status:
		if got != PayloadOnline {
			t.Errorf("availability = %q, want %q", got, PayloadOnline)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retained availability not received")
	}
}
