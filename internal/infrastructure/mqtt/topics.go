package mqtt

import "fmt"

// Topic prefixes for the SensorFlow MQTT namespace.
//
// Device topics use the scheme: sensorflow/{device_id}/{channel}
// where channel is "telemetry" (device to hub) or "ack" (hub to device).
const (
	// TopicPrefix is the base for all SensorFlow topics.
	TopicPrefix = "sensorflow"

	// TopicPrefixBridge is the base for hub bridge lifecycle topics.
	TopicPrefixBridge = "sensorflow/bridge"
)

// Topics provides builders for SensorFlow MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	telemetryTopic := topics.DeviceTelemetry("ESP32_KITCHEN")
//	// Returns: "sensorflow/ESP32_KITCHEN/telemetry"
type Topics struct{}

// =============================================================================
// Device Topics
// =============================================================================

// DeviceTelemetry returns the topic a device publishes readings to.
//
// Example: sensorflow/ESP32_KITCHEN/telemetry
func (Topics) DeviceTelemetry(deviceID string) string {
	return fmt.Sprintf("%s/%s/telemetry", TopicPrefix, deviceID)
}

// DeviceAck returns the topic the hub publishes ingest acknowledgements to.
// Devices may subscribe to their own ack topic to confirm delivery.
//
// Example: sensorflow/ESP32_KITCHEN/ack
func (Topics) DeviceAck(deviceID string) string {
	return fmt.Sprintf("%s/%s/ack", TopicPrefix, deviceID)
}

// =============================================================================
// Bridge Topics
// =============================================================================

// BridgeStatus returns the hub bridge lifecycle topic.
// Online and offline announcements (including the LWT) are published here
// as retained messages so devices can observe hub availability.
//
// Example: sensorflow/bridge/status
func (Topics) BridgeStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixBridge)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllTelemetry returns a pattern matching telemetry from every device.
// This is the hub bridge's primary subscription.
//
// Pattern: sensorflow/+/telemetry
func (Topics) AllTelemetry() string {
	return fmt.Sprintf("%s/+/telemetry", TopicPrefix)
}

// AllAcks returns a pattern matching acknowledgements to every device.
//
// Pattern: sensorflow/+/ack
func (Topics) AllAcks() string {
	return fmt.Sprintf("%s/+/ack", TopicPrefix)
}

// AllTopics returns a pattern matching all SensorFlow topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: sensorflow/#
func (Topics) AllTopics() string {
	return "sensorflow/#"
}
