package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefixSystem is the base for logwarden's own status topics.
// Ingestion and command topics are configuration-driven and built with the
// prefix helpers below.
const TopicPrefixSystem = "logwarden/system"

// Topics provides builders for logwarden MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	sub := topics.IngestAll("network_monitor/logs")
//	// Returns: "network_monitor/logs/#"
type Topics struct{}

// IngestAll returns the wildcard subscription pattern matching every log
// topic under the configured ingestion prefix.
//
// Example: network_monitor/logs/#
func (Topics) IngestAll(prefix string) string {
	return fmt.Sprintf("%s/#", prefix)
}

// IngestDevice returns the log topic for a single device.
//
// Example: network_monitor/logs/router-01
func (Topics) IngestDevice(prefix, deviceID string) string {
	return fmt.Sprintf("%s/%s", prefix, deviceID)
}

// DeviceCommand returns the per-device command output topic.
//
// Example: logwarden/commands/router-01
func (Topics) DeviceCommand(prefix, deviceID string) string {
	return fmt.Sprintf("%s/%s", prefix, deviceID)
}

// Status returns the service status topic used for LWT and online/offline
// announcements.
//
// Example: logwarden/system/status
func (Topics) Status() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// DeviceFromTopic extracts the device identifier from an ingestion topic.
//
// The first topic segment after the ingestion prefix names the publishing
// device; deeper segments (facility, program) are ignored.
//
// Parameters:
//   - prefix: The configured ingestion prefix (no trailing slash)
//   - topic: The full topic a message arrived on
//
// Returns:
//   - string: The device ID, or "" if the topic carries no segment past the prefix
//   - bool: Whether the topic is under the prefix at all
func (Topics) DeviceFromTopic(prefix, topic string) (string, bool) {
	if topic == prefix {
		return "", true
	}
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return "", false
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest, true
}
