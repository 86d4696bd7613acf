// Package config loads the dmx2c2ip configuration source and copies its
// values into typed option structs.
//
// This package manages:
//   - Loading a group/key/value store from a key file or YAML file
//   - Typed lookups that report absent keys instead of failing
//   - Injection of present values into options that carry their own defaults
//
// A configuration file is optional. Without one, the caller holds a nil
// *Store and every lookup reports absent, so every option keeps its default.
// Only an explicitly named file that cannot be read or parsed is an error.
//
// Example key file:
//
//	[DMXPort]
//	Device=/dev/ttyUSB0
//	Speed=250000
//
//	[HTTP]
//	Port=8080
//	Root=/srv/dmx2c2ip/www
//
// The same content as YAML:
//
//	DMXPort:
//	  Device: /dev/ttyUSB0
//	HTTP:
//	  Port: 8080
//
// Security Considerations:
//   - HTTP.Password and MQTT.Password are stored in clear; keep the file 0600.
//
// Usage:
//
//	store, err := config.Load("/etc/dmx2c2ip.conf")
//	if err != nil {
//	    return err
//	}
//	device, ok := store.String("DMXPort", "Device")
package config
