// Package mqtt provides MQTT client connectivity for logwarden.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// MQTT is both the inbound and outbound transport: devices publish raw log
// lines under the ingestion prefix, and validated configuration commands go
// back out on per-device command topics. The broker decouples logwarden from
// the device fleet.
//
//	Devices → MQTT Broker → logwarden → MQTT Broker → Devices
//
// # Security Considerations
//
//   - TLS is recommended for production deployments (cfg.Broker.TLS=true);
//     a custom CA bundle can be supplied via cfg.Broker.CACert
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff per cfg.Reconnect
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
//	// Subscribe to every device log topic
//	err = client.Subscribe(mqtt.Topics{}.IngestAll(cfg.MQTT.TopicPrefix), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a command
//	topic := mqtt.Topics{}.DeviceCommand(cfg.Output.TopicPrefix, "router-01")
//	client.Publish(topic, []byte("set system.hostname=gw1"), 1, false)
package mqtt
