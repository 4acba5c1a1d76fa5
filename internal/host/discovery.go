package host

import (
	"github.com/nerrad567/gray-logic-appliances/internal/entity"
	"github.com/nerrad567/gray-logic-appliances/internal/infrastructure/mqtt"
)

// Manufacturer is reported in every discovery device block.
const Manufacturer = "Miele"

// Controllable entities use the command payloads as their state values:
// the host compares the rendered state template against payload_on and
// payload_off, so both must produce the same strings.
const (
	payloadOn  = `{"command":"turn_on"}`
	payloadOff = `{"command":"turn_off"}`

	// Binary sensors keep the host's default ON/OFF payloads.
	sensorOn  = "ON"
	sensorOff = "OFF"
)

// isOnTemplate renders on or off from the is_on field of the state JSON.
func isOnTemplate(on, off string) string {
	return "{{ '" + on + "' if value_json.is_on else '" + off + "' }}"
}

// DiscoveryConfig is the retained config payload the host reads to create
// an entity.
type DiscoveryConfig struct {
	Name               string     `json:"name"`
	UniqueID           string     `json:"unique_id"`
	ObjectID           string     `json:"object_id,omitempty"`
	DeviceClass        string     `json:"device_class,omitempty"`
	StateTopic         string     `json:"state_topic"`
	ValueTemplate      string     `json:"value_template,omitempty"`
	CommandTopic       string     `json:"command_topic,omitempty"`
	PayloadOn          string     `json:"payload_on,omitempty"`
	PayloadOff         string     `json:"payload_off,omitempty"`
	StateValueTemplate string     `json:"state_value_template,omitempty"`
	AvailabilityTopic  string     `json:"availability_topic"`
	JSONAttrsTopic     string     `json:"json_attributes_topic,omitempty"`
	Device             DeviceInfo `json:"device"`
	Origin             OriginInfo `json:"origin"`
	QoS                byte       `json:"qos"`

	// Set for fans only.
	*FanSpeedConfig
}

// FanSpeedConfig maps the host's percentage slider onto ventilation steps.
type FanSpeedConfig struct {
	PercentageStateTopic      string `json:"percentage_state_topic"`
	PercentageValueTemplate   string `json:"percentage_value_template"`
	PercentageCommandTopic    string `json:"percentage_command_topic"`
	PercentageCommandTemplate string `json:"percentage_command_template"`
	SpeedRangeMin             int    `json:"speed_range_min"`
	SpeedRangeMax             int    `json:"speed_range_max"`
}

// DeviceInfo groups an appliance's entities under one host device.
type DeviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name,omitempty"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model,omitempty"`
}

// OriginInfo names the software publishing the config.
type OriginInfo struct {
	Name            string `json:"name"`
	SoftwareVersion string `json:"sw_version,omitempty"`
}

// discoveryConfig builds the config payload for e.
func (h *Host) discoveryConfig(e entity.Entity) DiscoveryConfig {
	key := e.Key()
	rec := e.Record()
	stateTopic := mqtt.Topics{}.EntityState(string(key.Platform), key.UniqueID)

	cfg := DiscoveryConfig{
		Name:              e.Name(),
		UniqueID:          key.UniqueID,
		ObjectID:          string(key.Platform) + "_" + key.UniqueID,
		StateTopic:        stateTopic,
		AvailabilityTopic: mqtt.Topics{}.Availability(),
		JSONAttrsTopic:    stateTopic,
		Device: DeviceInfo{
			Identifiers:  []string{rec.Ident.DeviceID},
			Name:         rec.DisplayName(),
			Manufacturer: Manufacturer,
			Model:        rec.Ident.TypeName,
		},
		Origin: OriginInfo{Name: "graylogic-appliances", SoftwareVersion: h.version},
		QoS:    h.qos,
	}

	switch v := e.(type) {
	case *entity.BinarySensor:
		cfg.DeviceClass = v.DeviceClass()
		cfg.ValueTemplate = isOnTemplate(sensorOn, sensorOff)
	case entity.Controllable:
		cfg.CommandTopic = mqtt.Topics{}.EntityCommand(string(key.Platform), key.UniqueID)
		cfg.PayloadOn = payloadOn
		cfg.PayloadOff = payloadOff
		cfg.StateValueTemplate = isOnTemplate(payloadOn, payloadOff)
		if s, ok := v.(entity.SpeedController); ok {
			speeds := s.SpeedList()
			cfg.FanSpeedConfig = &FanSpeedConfig{
				PercentageStateTopic:      stateTopic,
				PercentageValueTemplate:   "{{ value_json.speed | default(0) }}",
				PercentageCommandTopic:    cfg.CommandTopic,
				PercentageCommandTemplate: `{"command":"set_speed","speed":{{ value }}}`,
				SpeedRangeMin:             1,
				SpeedRangeMax:             speeds[len(speeds)-1],
			}
		}
	}
	return cfg
}
