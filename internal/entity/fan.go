package entity

import (
	"context"
	"fmt"
	"slices"

	"github.com/nerrad567/gray-logic-appliances/internal/appliance"
)

// FeatureSetSpeed is the supported_features bit for speed control.
const FeatureSetSpeed = 1

// fanStatusOff is the status code a hood reports when switched off.
const fanStatusOff = 1

// FanSpeeds are the ventilation steps a hood accepts.
var FanSpeeds = []int{0, 1, 2, 3, 4}

// Fan is a cooker hood's extractor.
type Fan struct {
	*projection
}

var _ SpeedController = (*Fan)(nil)

// NewFan creates the fan for rec's device. The record must carry a status.
func NewFan(rec appliance.Record, deps Deps) (*Fan, error) {
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("%w: dispatcher", ErrMissingDependency)
	}
	if !rec.Has(appliance.AspectStatus) {
		return nil, fmt.Errorf("%w: %s on device %s", ErrMissingState, appliance.AspectStatus, rec.Ident.DeviceID)
	}
	p, err := newProjection(PlatformFan, rec.Ident.DeviceID, rec, deps)
	if err != nil {
		return nil, err
	}
	return &Fan{projection: p}, nil
}

func (f *Fan) Name() (name string) {
	f.read(func(rec *appliance.Record) { name = rec.DisplayName() })
	return name
}

// IsOn is true for every status except off.
func (f *Fan) IsOn() (on bool) {
	f.read(func(rec *appliance.Record) { on = fanIsOn(rec) })
	return on
}

func (f *Fan) Available() (ok bool) {
	f.read(func(rec *appliance.Record) { ok = rec.Has(appliance.AspectStatus) })
	return ok
}

// Speed returns the current ventilation step.
func (f *Fan) Speed() (speed int, ok bool) {
	f.read(func(rec *appliance.Record) {
		if rec.State.VentilationStep != nil {
			speed, ok = *rec.State.VentilationStep, true
		}
	})
	return speed, ok
}

func (f *Fan) SpeedList() []int {
	return slices.Clone(FanSpeeds)
}

func (f *Fan) SupportedFeatures() int {
	return FeatureSetSpeed
}

// TurnOn powers the hood on, optionally at a speed.
func (f *Fan) TurnOn(ctx context.Context, opts ...TurnOnOption) error {
	o := applyTurnOn(opts)
	body := map[string]any{"powerOn": true}
	if o.speed != nil {
		if err := validateSpeed(*o.speed); err != nil {
			return err
		}
		body["ventilationStep"] = *o.speed
	}
	return f.dispatch(ctx, body)
}

func (f *Fan) TurnOff(ctx context.Context) error {
	return f.dispatch(ctx, map[string]any{"powerOff": true})
}

func (f *Fan) SetSpeed(ctx context.Context, speed int) error {
	if err := validateSpeed(speed); err != nil {
		return err
	}
	return f.dispatch(ctx, map[string]any{"ventilationStep": speed})
}

func (f *Fan) Snapshot() Snapshot {
	return f.snapshot(func(rec *appliance.Record, snap *Snapshot) {
		snap.Name = rec.DisplayName()
		snap.IsOn = fanIsOn(rec)
		snap.Available = rec.Has(appliance.AspectStatus)
		if rec.State.VentilationStep != nil {
			speed := *rec.State.VentilationStep
			snap.Speed = &speed
		}
		snap.SpeedList = f.SpeedList()
		snap.SupportedFeatures = FeatureSetSpeed
	})
}

func fanIsOn(rec *appliance.Record) bool {
	return rec.State.Status != nil && *rec.State.Status != fanStatusOff
}

func validateSpeed(speed int) error {
	if !slices.Contains(FanSpeeds, speed) {
		return fmt.Errorf("%w: %d not in %v", ErrInvalidSpeed, speed, FanSpeeds)
	}
	return nil
}
