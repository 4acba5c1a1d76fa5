package host

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-appliances/internal/audit"
	"github.com/nerrad567/gray-logic-appliances/internal/entity"
	"github.com/nerrad567/gray-logic-appliances/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-appliances/internal/infrastructure/mqtt"
)

// commandTimeout bounds the handling of one inbound command.
const commandTimeout = 10 * time.Second

// MQTTClient is the subset of the MQTT client the host needs.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// MetricsWriter records published states. *influxdb.Client implements it.
type MetricsWriter interface {
	WriteEntityState(s influxdb.EntityState)
}

// Logger is the logging interface used by the host.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Host.
type Options struct {
	MQTT     MQTTClient
	Store    *Store
	Registry *entity.Registry

	// Metrics and Audit are optional.
	Metrics MetricsWriter
	Audit   audit.Recorder

	DiscoveryPrefix string
	QoS             byte
	Version         string
	Logger          Logger
}

// Host exposes entities to a home-automation platform over MQTT discovery.
// It implements entity.Host.
//
// An entity is registered while its row exists and is not disabled.
// Disabling it removes its discovery config so the platform drops it, and
// PushAll stops publishing its state.
type Host struct {
	mqtt     MQTTClient
	store    *Store
	registry *entity.Registry
	metrics  MetricsWriter
	audit    audit.Recorder
	prefix   string
	qos      byte
	version  string
	logger   Logger

	ctx context.Context

	mu       sync.RWMutex
	disabled map[entity.Key]bool
	last     map[entity.Key][]byte

	listenersMu sync.RWMutex
	listeners   []func(entity.Snapshot)
}

var _ entity.Host = (*Host)(nil)

// New creates a Host. MQTT, Store and Registry are required.
func New(opts Options) (*Host, error) {
	if opts.MQTT == nil || opts.Store == nil || opts.Registry == nil {
		return nil, fmt.Errorf("host: mqtt client, store and registry are required")
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.DiscoveryPrefix == "" {
		opts.DiscoveryPrefix = "homeassistant"
	}
	return &Host{
		mqtt:     opts.MQTT,
		store:    opts.Store,
		registry: opts.Registry,
		metrics:  opts.Metrics,
		audit:    opts.Audit,
		prefix:   opts.DiscoveryPrefix,
		qos:      opts.QoS,
		version:  opts.Version,
		logger:   opts.Logger,
		disabled: make(map[entity.Key]bool),
		last:     make(map[entity.Key][]byte),
	}, nil
}

// Start loads persisted disabled flags and subscribes to entity commands.
// ctx bounds command handling and should live as long as the host.
func (h *Host) Start(ctx context.Context) error {
	stored, err := h.store.List(ctx)
	if err != nil {
		return fmt.Errorf("loading entities: %w", err)
	}

	h.mu.Lock()
	h.ctx = ctx
	for _, e := range stored {
		h.disabled[e.Key] = e.Disabled
	}
	h.mu.Unlock()

	if err := h.mqtt.Subscribe(mqtt.Topics{}.AllEntityCommands(), h.qos, h.handleCommand); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}

	h.logger.Info("host started", "known_entities", len(stored))
	return nil
}

// Stop drops the command subscription. Entity configs stay retained so the
// platform keeps them across a restart.
func (h *Host) Stop() error {
	if err := h.mqtt.Unsubscribe(mqtt.Topics{}.AllEntityCommands()); err != nil {
		return fmt.Errorf("unsubscribing from commands: %w", err)
	}
	h.logger.Info("host stopped")
	return nil
}

// OnState registers fn to be called whenever an entity's published state
// changes. Used for the WebSocket stream.
func (h *Host) OnState(fn func(entity.Snapshot)) {
	h.listenersMu.Lock()
	h.listeners = append(h.listeners, fn)
	h.listenersMu.Unlock()
}

// AddEntities persists the entities and publishes discovery configs for
// those not disabled. A publish failure is logged, not returned: Republish
// catches up once the broker is back.
func (h *Host) AddEntities(ctx context.Context, entities []entity.Entity) error {
	for _, e := range entities {
		key := e.Key()
		stored, err := h.store.Upsert(ctx, key, e.DeviceID(), e.Name())
		if err != nil {
			return err
		}

		h.mu.Lock()
		h.disabled[key] = stored.Disabled
		h.mu.Unlock()

		if stored.Disabled {
			h.logger.Info("entity disabled, not announcing", "entity", key.String())
			continue
		}
		if err := h.publishDiscovery(e); err != nil {
			h.logger.Warn("publishing discovery config", "entity", key.String(), "error", err)
		}
	}
	return nil
}

// IsRegistered reports whether key is known and enabled.
func (h *Host) IsRegistered(key entity.Key) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	disabled, known := h.disabled[key]
	return known && !disabled
}

// IsDisabled reports whether key is known and disabled.
func (h *Host) IsDisabled(key entity.Key) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.disabled[key]
}

// PublishState publishes the snapshot as retained JSON. When it differs
// from the previous one it is also persisted, recorded as a metric and
// passed to OnState listeners.
func (h *Host) PublishState(ctx context.Context, snap entity.Snapshot) error {
	key := snap.Key()
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding state for %s: %w", key, err)
	}

	if err := h.mqtt.Publish(mqtt.Topics{}.EntityState(string(key.Platform), key.UniqueID), payload, h.qos, true); err != nil {
		return fmt.Errorf("publishing state for %s: %w", key, err)
	}

	h.mu.Lock()
	changed := string(h.last[key]) != string(payload)
	h.last[key] = payload
	h.mu.Unlock()

	if !changed {
		return nil
	}

	if err := h.store.SaveState(ctx, snap); err != nil {
		h.logger.Warn("persisting entity state", "entity", key.String(), "error", err)
	}
	if h.metrics != nil {
		h.metrics.WriteEntityState(influxdb.EntityState{
			UniqueID: snap.UniqueID,
			DeviceID: snap.DeviceID,
			Platform: string(snap.Platform),
			IsOn:     snap.IsOn,
			Speed:    snap.Speed,
			Time:     time.Now(),
		})
	}
	h.notify(snap)
	return nil
}

// SetDisabled flips an entity's host-side disabled flag. Disabling
// retracts the discovery config; enabling republishes it.
func (h *Host) SetDisabled(ctx context.Context, key entity.Key, disabled bool) error {
	if err := h.store.SetDisabled(ctx, key, disabled); err != nil {
		return err
	}

	h.mu.Lock()
	h.disabled[key] = disabled
	delete(h.last, key)
	h.mu.Unlock()

	h.logger.Info("entity availability changed", "entity", key.String(), "disabled", disabled)

	if disabled {
		return h.retractDiscovery(key)
	}
	e, err := h.registry.Get(key)
	if err != nil {
		// Persisted but not discovered this run; nothing to announce.
		return nil
	}
	return h.publishDiscovery(e)
}

// Republish re-announces every enabled entity and its last state. Called
// after the broker connection is re-established.
func (h *Host) Republish(ctx context.Context) {
	for _, e := range h.registry.List() {
		key := e.Key()
		if !h.IsRegistered(key) {
			continue
		}
		if err := h.publishDiscovery(e); err != nil {
			h.logger.Warn("republishing discovery config", "entity", key.String(), "error", err)
			continue
		}
		h.mu.Lock()
		delete(h.last, key)
		h.mu.Unlock()
		if err := h.PublishState(ctx, e.Snapshot()); err != nil {
			h.logger.Warn("republishing state", "entity", key.String(), "error", err)
		}
	}
}

// Remove forgets an entity host-side: its row is deleted and its retained
// discovery config and state are cleared. It stays unregistered until the
// next discovery pass announces it again.
func (h *Host) Remove(ctx context.Context, key entity.Key) error {
	if err := h.store.Delete(ctx, key); err != nil {
		return err
	}

	h.mu.Lock()
	delete(h.disabled, key)
	delete(h.last, key)
	h.mu.Unlock()

	h.logger.Info("entity removed", "entity", key.String())

	if err := h.retractDiscovery(key); err != nil {
		return err
	}
	return h.mqtt.Publish(mqtt.Topics{}.EntityState(string(key.Platform), key.UniqueID), nil, h.qos, true)
}

func (h *Host) publishDiscovery(e entity.Entity) error {
	key := e.Key()
	payload, err := json.Marshal(h.discoveryConfig(e))
	if err != nil {
		return fmt.Errorf("encoding discovery config: %w", err)
	}
	return h.mqtt.Publish(mqtt.Topics{}.Discovery(h.prefix, string(key.Platform), key.UniqueID), payload, h.qos, true)
}

// retractDiscovery publishes an empty retained config, which removes the
// entity from the platform.
func (h *Host) retractDiscovery(key entity.Key) error {
	return h.mqtt.Publish(mqtt.Topics{}.Discovery(h.prefix, string(key.Platform), key.UniqueID), nil, h.qos, true)
}

func (h *Host) notify(snap entity.Snapshot) {
	h.listenersMu.RLock()
	defer h.listenersMu.RUnlock()
	for _, fn := range h.listeners {
		fn(snap)
	}
}

// handleCommand routes a command message to its entity. Errors are
// logged by the MQTT client.
func (h *Host) handleCommand(topic string, payload []byte) error {
	platform, uniqueID, ok := mqtt.ParseEntityCommandTopic(topic)
	if !ok {
		return fmt.Errorf("%w: topic %s", ErrInvalidCommand, topic)
	}
	key := entity.Key{Platform: entity.Platform(platform), UniqueID: uniqueID}

	if !h.IsRegistered(key) {
		h.logger.Debug("ignoring command for unregistered entity", "entity", key.String())
		return nil
	}

	var cmd entity.Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}

	e, err := h.registry.Get(key)
	if err != nil {
		return err
	}

	h.mu.RLock()
	base := h.ctx
	h.mu.RUnlock()
	if base == nil {
		return ErrNotStarted
	}
	ctx, cancel := context.WithTimeout(base, commandTimeout)
	defer cancel()

	h.logger.Info("received command", "entity", key.String(), "command", cmd.Command)
	execErr := entity.Execute(ctx, e, cmd)
	if h.audit != nil {
		if err := h.audit.Record(ctx, audit.CommandEntry(audit.SourceMQTT, e, cmd, execErr)); err != nil {
			h.logger.Warn("recording command", "entity", key.String(), "error", err)
		}
	}
	return execErr
}
