package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every topic this service owns.
// Discovery configs live under the host's discovery prefix instead.
const TopicPrefix = "graylogic/appliance"

// Topics provides builders for the service's MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.EntityState("binary_sensor", "000123456789_Door")
//	// "graylogic/appliance/binary_sensor/000123456789_Door/state"
type Topics struct{}

// Discovery returns the retained config topic the host watches to create
// an entity.
//
// Example: homeassistant/binary_sensor/000123456789_Door/config
func (Topics) Discovery(prefix, platform, uniqueID string) string {
	return fmt.Sprintf("%s/%s/%s/config", prefix, platform, uniqueID)
}

// EntityState returns the retained state topic for one entity. Unique ids
// are only unique within a platform, so the platform is part of the path.
//
// Example: graylogic/appliance/fan/000123456789/state
func (Topics) EntityState(platform, uniqueID string) string {
	return fmt.Sprintf("%s/%s/%s/state", TopicPrefix, platform, uniqueID)
}

// EntityCommand returns the command topic for one entity.
//
// Example: graylogic/appliance/light/000123456789/command
func (Topics) EntityCommand(platform, uniqueID string) string {
	return fmt.Sprintf("%s/%s/%s/command", TopicPrefix, platform, uniqueID)
}

// AllEntityCommands matches every entity's command topic.
func (Topics) AllEntityCommands() string {
	return TopicPrefix + "/+/+/command"
}

// Availability is the service-wide online/offline topic (also the LWT).
func (Topics) Availability() string {
	return TopicPrefix + "/status"
}

// ParseEntityCommandTopic extracts platform and unique id from a command
// topic. It reports false for anything that isn't exactly
// graylogic/appliance/{platform}/{unique_id}/command.
func ParseEntityCommandTopic(topic string) (platform, uniqueID string, ok bool) {
	rest, found := strings.CutPrefix(topic, TopicPrefix+"/")
	if !found {
		return "", "", false
	}
	rest, found = strings.CutSuffix(rest, "/command")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
