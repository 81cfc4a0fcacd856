// Package mqtt provides MQTT client connectivity for the SensorFlow hub.
//
// This package manages:
//   - Connection to Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// SensorFlow uses MQTT as an alternative ingest path for sensor devices
// that cannot speak HTTP comfortably (constrained ESP32 firmware, flaky
// links). Devices publish telemetry to their own topic and the hub bridge
// subscribes to all of them through a single wildcard.
//
//	Sensor Devices → MQTT Broker → SensorFlow Hub Bridge
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Telemetry payloads carry session tokens; TLS protects them in transit
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff per config, subscriptions restored
//   - Message throughput: Broker-limited (typically 10K+ msg/sec)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to telemetry from every device
//	err = client.Subscribe(mqtt.Topics{}.AllTelemetry(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Acknowledge an accepted reading
//	topic := mqtt.Topics{}.DeviceAck("ESP32_KITCHEN")
//	client.Publish(topic, []byte(`{"status":"accepted"}`), 1, false)
package mqtt
