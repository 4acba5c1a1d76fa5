package entity

import (
	"fmt"

	"github.com/nerrad567/gray-logic-appliances/internal/appliance"
)

// Device classes reported for binary sensors.
const (
	DeviceClassDoor    = "door"
	DeviceClassProblem = "problem"
)

var sensorSuffixes = map[appliance.Aspect]string{
	appliance.AspectSignalInfo:    "Info",
	appliance.AspectSignalFailure: "Failure",
	appliance.AspectSignalDoor:    "Door",
}

// SensorSuffix returns the display and unique-id suffix for a signal key.
func SensorSuffix(a appliance.Aspect) (string, error) {
	suffix, ok := sensorSuffixes[a]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnmappedAspect, a)
	}
	return suffix, nil
}

// BinarySensor exposes one boolean signal of an appliance.
type BinarySensor struct {
	*projection
	aspect appliance.Aspect
	suffix string
}

var _ Entity = (*BinarySensor)(nil)

// NewBinarySensor creates the sensor for aspect on rec's device.
func NewBinarySensor(rec appliance.Record, aspect appliance.Aspect, deps Deps) (*BinarySensor, error) {
	suffix, err := SensorSuffix(aspect)
	if err != nil {
		return nil, err
	}
	p, err := newProjection(PlatformBinarySensor, rec.Ident.DeviceID+"_"+suffix, rec, deps)
	if err != nil {
		return nil, err
	}
	return &BinarySensor{projection: p, aspect: aspect, suffix: suffix}, nil
}

// Aspect returns the state key this sensor reads.
func (s *BinarySensor) Aspect() appliance.Aspect { return s.aspect }

// DeviceClass is door for the door signal and problem otherwise.
func (s *BinarySensor) DeviceClass() string {
	if s.aspect == appliance.AspectSignalDoor {
		return DeviceClassDoor
	}
	return DeviceClassProblem
}

// Name is the appliance name followed by the signal suffix.
func (s *BinarySensor) Name() (name string) {
	s.read(func(rec *appliance.Record) { name = s.name(rec) })
	return name
}

func (s *BinarySensor) IsOn() (on bool) {
	s.read(func(rec *appliance.Record) { on = s.isOn(rec) })
	return on
}

func (s *BinarySensor) Available() (ok bool) {
	s.read(func(rec *appliance.Record) { ok = rec.Has(s.aspect) })
	return ok
}

func (s *BinarySensor) Snapshot() Snapshot {
	return s.snapshot(func(rec *appliance.Record, snap *Snapshot) {
		snap.Name = s.name(rec)
		snap.IsOn = s.isOn(rec)
		snap.Available = rec.Has(s.aspect)
		snap.DeviceClass = s.DeviceClass()
	})
}

func (s *BinarySensor) name(rec *appliance.Record) string {
	return rec.DisplayName() + " " + s.suffix
}

func (s *BinarySensor) isOn(rec *appliance.Record) bool {
	on, _ := rec.Signal(s.aspect)
	return on
}
