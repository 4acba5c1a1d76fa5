package appliance

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Aspect names one key of a record's state object.
type Aspect string

// State keys projected into entities.
const (
	AspectSignalInfo      Aspect = "signalInfo"
	AspectSignalFailure   Aspect = "signalFailure"
	AspectSignalDoor      Aspect = "signalDoor"
	AspectStatus          Aspect = "status"
	AspectVentilationStep Aspect = "ventilationStep"
	AspectLight           Aspect = "light"
)

// SignalAspects are the boolean state keys, in the order discovery visits them.
var SignalAspects = []Aspect{AspectSignalInfo, AspectSignalFailure, AspectSignalDoor}

// Record is one appliance as last reported by the cloud.
type Record struct {
	Ident Ident `json:"ident"`
	State State `json:"state"`
}

// Ident identifies an appliance. DeviceID is always non-empty for records
// produced by Parse.
type Ident struct {
	// DeviceID is ident.deviceIdentLabel.fabNumber.
	DeviceID string `json:"device_id"`
	// Name is ident.deviceName, a user-assigned label that may be empty.
	Name string `json:"name,omitempty"`
	// TypeCode is ident.type.value_raw.
	TypeCode int `json:"type_code"`
	// TypeName is ident.type.value_localized.
	TypeName string `json:"type_name,omitempty"`
}

// State holds the state keys this service understands. A nil pointer means
// the key was absent from the record.
type State struct {
	SignalInfo      *bool `json:"signal_info,omitempty"`
	SignalFailure   *bool `json:"signal_failure,omitempty"`
	SignalDoor      *bool `json:"signal_door,omitempty"`
	Status          *int  `json:"status,omitempty"`
	VentilationStep *int  `json:"ventilation_step,omitempty"`
	Light           *int  `json:"light,omitempty"`
}

// DisplayName is the user-assigned name, falling back to the localized
// type name when none was set.
func (r Record) DisplayName() string {
	if r.Ident.Name != "" {
		return r.Ident.Name
	}
	return r.Ident.TypeName
}

// Has reports whether the record carries the given state key.
func (r Record) Has(a Aspect) bool {
	switch a {
	case AspectSignalInfo:
		return r.State.SignalInfo != nil
	case AspectSignalFailure:
		return r.State.SignalFailure != nil
	case AspectSignalDoor:
		return r.State.SignalDoor != nil
	case AspectStatus:
		return r.State.Status != nil
	case AspectVentilationStep:
		return r.State.VentilationStep != nil
	case AspectLight:
		return r.State.Light != nil
	}
	return false
}

// Signal returns the value of a boolean state key. ok is false when the
// key is absent or a is not a signal aspect.
func (r Record) Signal(a Aspect) (value, ok bool) {
	var p *bool
	switch a {
	case AspectSignalInfo:
		p = r.State.SignalInfo
	case AspectSignalFailure:
		p = r.State.SignalFailure
	case AspectSignalDoor:
		p = r.State.SignalDoor
	}
	if p == nil {
		return false, false
	}
	return *p, true
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	r.State = State{
		SignalInfo:      cloneBool(r.State.SignalInfo),
		SignalFailure:   cloneBool(r.State.SignalFailure),
		SignalDoor:      cloneBool(r.State.SignalDoor),
		Status:          cloneInt(r.State.Status),
		VentilationStep: cloneInt(r.State.VentilationStep),
		Light:           cloneInt(r.State.Light),
	}
	return r
}

func cloneBool(p *bool) *bool {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// wireRecord mirrors the vendor JSON. Only the fields used here are decoded.
type wireRecord struct {
	Ident struct {
		Type struct {
			ValueRaw       *int   `json:"value_raw"`
			ValueLocalized string `json:"value_localized"`
		} `json:"type"`
		DeviceName       string `json:"deviceName"`
		DeviceIdentLabel struct {
			FabNumber string `json:"fabNumber"`
		} `json:"deviceIdentLabel"`
	} `json:"ident"`
	State map[string]json.RawMessage `json:"state"`
}

type wireValue struct {
	ValueRaw *int `json:"value_raw"`
}

var jsonNull = []byte("null")

// Parse decodes one vendor device record.
//
// Signal keys take the truthiness of whatever JSON value they hold, so a
// null signal is present and false. Status and ventilationStep are read
// from their value_raw member; light is a bare integer.
func Parse(data []byte) (Record, error) {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}

	id := w.Ident.DeviceIdentLabel.FabNumber
	if id == "" {
		return Record{}, ErrMissingIdentity
	}

	rec := Record{
		Ident: Ident{
			DeviceID: id,
			Name:     w.Ident.DeviceName,
			TypeName: w.Ident.Type.ValueLocalized,
		},
	}
	if w.Ident.Type.ValueRaw != nil {
		rec.Ident.TypeCode = *w.Ident.Type.ValueRaw
	}

	for key, raw := range w.State {
		if err := rec.State.set(Aspect(key), raw); err != nil {
			return Record{}, fmt.Errorf("%w: device %s: state.%s: %w", ErrMalformedRecord, id, key, err)
		}
	}
	return rec, nil
}

func (s *State) set(key Aspect, raw json.RawMessage) error {
	switch key {
	case AspectSignalInfo:
		return decodeSignal(raw, &s.SignalInfo)
	case AspectSignalFailure:
		return decodeSignal(raw, &s.SignalFailure)
	case AspectSignalDoor:
		return decodeSignal(raw, &s.SignalDoor)
	case AspectStatus:
		return decodeValueRaw(raw, &s.Status)
	case AspectVentilationStep:
		return decodeValueRaw(raw, &s.VentilationStep)
	case AspectLight:
		if bytes.Equal(bytes.TrimSpace(raw), jsonNull) {
			return nil
		}
		var v int
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		s.Light = &v
	}
	return nil
}

func decodeSignal(raw json.RawMessage, dst **bool) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	b := truthy(v)
	*dst = &b
	return nil
}

func decodeValueRaw(raw json.RawMessage, dst **int) error {
	if bytes.Equal(bytes.TrimSpace(raw), jsonNull) {
		return nil
	}
	var v wireValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	*dst = v.ValueRaw
	return nil
}

// truthy follows the usual dynamic-language rules: null, false, zero, and
// empty strings or collections are false.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}
