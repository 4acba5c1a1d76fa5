package entity

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-appliances/internal/appliance"
)

// Platform is the host entity kind.
type Platform string

// Supported platforms.
const (
	PlatformBinarySensor Platform = "binary_sensor"
	PlatformFan          Platform = "fan"
	PlatformLight        Platform = "light"
)

// Platforms lists every platform in discovery order.
var Platforms = []Platform{PlatformBinarySensor, PlatformFan, PlatformLight}

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	switch p {
	case PlatformBinarySensor, PlatformFan, PlatformLight:
		return true
	}
	return false
}

// Key identifies an entity. The host scopes unique ids by platform, and a
// hood's fan and light share the device id as unique id.
type Key struct {
	Platform Platform
	UniqueID string
}

func (k Key) String() string {
	return string(k.Platform) + "/" + k.UniqueID
}

// Cloud action addressing.
const (
	ActionDomain  = "miele"
	ActionService = "action"
)

// ActionRequest is the payload handed to the Dispatcher.
type ActionRequest struct {
	DeviceID string         `json:"device_id"`
	Body     map[string]any `json:"body"`
}

// Dispatcher delivers actions to the cloud. Submit must not block on
// network I/O; delivery results are not reported back.
type Dispatcher interface {
	Submit(ctx context.Context, domain, action string, req ActionRequest)
}

// Source is the read side of the shared appliance cache.
type Source interface {
	Get(deviceID string) (appliance.Record, bool)
}

// Host is the platform entities are registered with.
type Host interface {
	// AddEntities registers entities that were created together.
	AddEntities(ctx context.Context, entities []Entity) error
	// IsRegistered reports whether the host still tracks the entity. It
	// turns false when the entity is disabled or removed host-side.
	IsRegistered(key Key) bool
	// PublishState pushes the entity's current state to the host.
	PublishState(ctx context.Context, s Snapshot) error
}

// Entity is the common surface of every projection.
type Entity interface {
	Key() Key
	UniqueID() string
	DeviceID() string
	Platform() Platform
	Name() string
	IsOn() bool
	Available() bool
	Record() appliance.Record
	Update(ctx context.Context) error
	Snapshot() Snapshot
}

// Controllable entities accept on/off commands.
type Controllable interface {
	Entity
	TurnOn(ctx context.Context, opts ...TurnOnOption) error
	TurnOff(ctx context.Context) error
}

// SpeedController is a Controllable with discrete speeds.
type SpeedController interface {
	Controllable
	Speed() (int, bool)
	SpeedList() []int
	SetSpeed(ctx context.Context, speed int) error
}

// TurnOnOption configures a TurnOn command.
type TurnOnOption func(*turnOnOptions)

type turnOnOptions struct {
	speed *int
}

// WithSpeed requests a speed as part of turning on. Only fans accept it.
func WithSpeed(speed int) TurnOnOption {
	return func(o *turnOnOptions) {
		o.speed = &speed
	}
}

func applyTurnOn(opts []TurnOnOption) turnOnOptions {
	var o turnOnOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Snapshot is a point-in-time read of an entity, shared by the MQTT host,
// the REST API and the WebSocket stream.
type Snapshot struct {
	UniqueID          string    `json:"unique_id"`
	DeviceID          string    `json:"device_id"`
	Platform          Platform  `json:"platform"`
	Name              string    `json:"name"`
	IsOn              bool      `json:"is_on"`
	Available         bool      `json:"available"`
	DeviceClass       string    `json:"device_class,omitempty"`
	Speed             *int      `json:"speed,omitempty"`
	SpeedList         []int     `json:"speed_list,omitempty"`
	SupportedFeatures int       `json:"supported_features,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Key returns the snapshot's entity key.
func (s Snapshot) Key() Key {
	return Key{Platform: s.Platform, UniqueID: s.UniqueID}
}

// Logger is the logging interface used by this package.
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

// Deps are the collaborators shared by every entity. Source is required;
// Dispatcher is required for fans and lights.
type Deps struct {
	Source     Source
	Dispatcher Dispatcher
	Logger     Logger
	Now        func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = noopLogger{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}
