package lifecycle

import (
	"github.com/nerrad567/dmx2c2ip/internal/dmx"
	"github.com/nerrad567/dmx2c2ip/internal/valuetree"
)

// StatusTree builds the static value tree served by the HTTP endpoint:
//
//	{
//	  "service": "dmx2c2ip",
//	  "version": "<version>",
//	  "dmx": {"device": "<device>", "speed": <speed>, "universe_size": 512},
//	  "c2ip": {"enabled": false}
//	}
func StatusTree(version, device string, speed int) valuetree.Node {
	return valuetree.NewBuilder().
		BeginObject().
		SetMember("service").AddString("dmx2c2ip").
		SetMember("version").AddString(version).
		SetMember("dmx").BeginObject().
		SetMember("device").AddString(device).
		SetMember("speed").AddInt(int64(speed)).
		SetMember("universe_size").AddInt(dmx.UniverseSize).
		EndObject().
		SetMember("c2ip").BeginObject().
		SetMember("enabled").AddBool(false).
		EndObject().
		EndObject().
		Root()
}
