// Package mqtt provides the MQTT publisher of the bridge.
//
// This package manages:
//   - Connection to a broker with auto-reconnect once established
//   - Retained availability topic with a Last Will and Testament
//   - Message publishing with QoS guarantees
//
// # Topics
//
// All topics live under the configured base (MQTT.Topic, default
// "dmx2c2ip/status"):
//
//	<base>/availability   online/offline, retained, LWT
//	<base>/receiver       receiver statistics, retained
//	<base>/values         served value tree, retained
//
// # Security Considerations
//
//   - Use an ssl:// or mqtts:// broker URL for TLS transport
//   - Credentials are validated against the broker ACL
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(config.MQTTSettings(store))
//	if err != nil {
//	    // degraded: run without MQTT
//	}
//	defer client.Close()
//
//	client.PublishRetained(client.Topics().Receiver(), payload)
package mqtt
