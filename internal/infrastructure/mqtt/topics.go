package mqtt

import "strings"

// Topics builds the topics the bridge publishes under a configured base.
//
//	topics := mqtt.NewTopics("dmx2c2ip/status")
//	topics.Receiver()     // "dmx2c2ip/status/receiver"
//	topics.Availability() // "dmx2c2ip/status/availability"
type Topics struct {
	base string
}

// NewTopics returns a topic builder rooted at base. Surrounding slashes are
// removed so "a/b/" and "a/b" produce the same topics.
func NewTopics(base string) Topics {
	return Topics{base: strings.Trim(base, "/")}
}

// Base returns the base topic.
func (t Topics) Base() string {
	return t.base
}

// Availability returns the retained online/offline topic, also used for
// the Last Will and Testament.
func (t Topics) Availability() string {
	return t.base + "/availability"
}

// Receiver returns the topic of periodic receiver statistics.
func (t Topics) Receiver() string {
	return t.base + "/receiver"
}

// Values returns the topic of the served value tree.
func (t Topics) Values() string {
	return t.base + "/values"
}
