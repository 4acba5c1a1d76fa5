package entity

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-appliances/internal/appliance"
)

// Light state codes, used both in records and in action bodies.
const (
	LightOn  = 1
	LightOff = 2
)

// Light is an appliance lamp (hood, oven, fridge interior).
type Light struct {
	*projection
}

var _ Controllable = (*Light)(nil)

// NewLight creates the light for rec's device.
func NewLight(rec appliance.Record, deps Deps) (*Light, error) {
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("%w: dispatcher", ErrMissingDependency)
	}
	p, err := newProjection(PlatformLight, rec.Ident.DeviceID, rec, deps)
	if err != nil {
		return nil, err
	}
	return &Light{projection: p}, nil
}

func (l *Light) Name() (name string) {
	l.read(func(rec *appliance.Record) { name = rec.DisplayName() })
	return name
}

func (l *Light) IsOn() (on bool) {
	l.read(func(rec *appliance.Record) { on = lightIsOn(rec) })
	return on
}

func (l *Light) Available() (ok bool) {
	l.read(func(rec *appliance.Record) { ok = rec.Has(appliance.AspectLight) })
	return ok
}

// TurnOn switches the lamp on. Lights have no speed.
func (l *Light) TurnOn(ctx context.Context, opts ...TurnOnOption) error {
	if o := applyTurnOn(opts); o.speed != nil {
		return fmt.Errorf("%w: light has no speed", ErrUnsupported)
	}
	return l.dispatch(ctx, map[string]any{"light": LightOn})
}

func (l *Light) TurnOff(ctx context.Context) error {
	return l.dispatch(ctx, map[string]any{"light": LightOff})
}

func (l *Light) Snapshot() Snapshot {
	return l.snapshot(func(rec *appliance.Record, snap *Snapshot) {
		snap.Name = rec.DisplayName()
		snap.IsOn = lightIsOn(rec)
		snap.Available = rec.Has(appliance.AspectLight)
	})
}

func lightIsOn(rec *appliance.Record) bool {
	return rec.State.Light != nil && *rec.State.Light == LightOn
}
