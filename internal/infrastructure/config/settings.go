package config

import "github.com/google/uuid"

// Group names of the optional telemetry sinks.
const (
	GroupMQTT      = "MQTT"
	GroupInfluxDB  = "InfluxDB"
	GroupTelemetry = "Telemetry"
)

// MQTTConfig contains MQTT publisher settings.
type MQTTConfig struct {
	// Broker is the broker URL, e.g. "tcp://127.0.0.1:1883". Empty disables MQTT.
	Broker string

	// ClientID identifies this bridge to the broker. Default: dmx2c2ip-<uuid>.
	ClientID string

	Username string
	Password string

	// Topic is the base topic for status publications. Default: dmx2c2ip/status.
	Topic string

	// QoS is the publish quality of service (0, 1 or 2). Default: 1.
	QoS int
}

// Enabled reports whether a broker was configured.
func (c MQTTConfig) Enabled() bool {
	return c.Broker != ""
}

// MQTTSettings returns the MQTT group with defaults applied.
func MQTTSettings(s *Store) MQTTConfig {
	cfg := MQTTConfig{
		ClientID: "dmx2c2ip-" + uuid.NewString(),
		Topic:    "dmx2c2ip/status",
		QoS:      1,
	}
	InjectString(s, &cfg.Broker, GroupMQTT, "Broker")
	InjectString(s, &cfg.ClientID, GroupMQTT, "ClientID")
	InjectString(s, &cfg.Username, GroupMQTT, "Username")
	InjectString(s, &cfg.Password, GroupMQTT, "Password")
	InjectString(s, &cfg.Topic, GroupMQTT, "Topic")
	InjectInt(s, &cfg.QoS, GroupMQTT, "QoS")
	return cfg
}

// InfluxDBConfig contains InfluxDB writer settings.
type InfluxDBConfig struct {
	// URL is the server URL, e.g. "http://127.0.0.1:8086". Empty disables InfluxDB.
	URL string

	Token  string
	Org    string
	Bucket string

	// BatchSize is the number of points buffered before a write. Default: 100.
	BatchSize int

	// FlushInterval is the maximum buffering time in seconds. Default: 10.
	FlushInterval int
}

// Enabled reports whether a server was configured.
func (c InfluxDBConfig) Enabled() bool {
	return c.URL != ""
}

// InfluxDBSettings returns the InfluxDB group with defaults applied.
func InfluxDBSettings(s *Store) InfluxDBConfig {
	cfg := InfluxDBConfig{
		Org:           "dmx2c2ip",
		Bucket:        "dmx",
		BatchSize:     100,
		FlushInterval: 10,
	}
	InjectString(s, &cfg.URL, GroupInfluxDB, "URL")
	InjectString(s, &cfg.Token, GroupInfluxDB, "Token")
	InjectString(s, &cfg.Org, GroupInfluxDB, "Org")
	InjectString(s, &cfg.Bucket, GroupInfluxDB, "Bucket")
	InjectInt(s, &cfg.BatchSize, GroupInfluxDB, "BatchSize")
	InjectInt(s, &cfg.FlushInterval, GroupInfluxDB, "FlushInterval")
	return cfg
}

// TelemetryConfig controls periodic publication of receiver statistics.
type TelemetryConfig struct {
	// Interval is the publication period in seconds. Default: 10.
	// Zero or negative disables periodic publication.
	Interval int
}

// TelemetrySettings returns the Telemetry group with defaults applied.
func TelemetrySettings(s *Store) TelemetryConfig {
	cfg := TelemetryConfig{Interval: 10}
	InjectInt(s, &cfg.Interval, GroupTelemetry, "Interval")
	return cfg
}
