// FILE: wxsdr/src/internal/identity/identity.go
package identity

import (
	"strings"

	"wxsdr/src/internal/core"
)

// Delimiter joins the three key parts. None of the parts may contain it:
// observation names and family tags come from a fixed vocabulary, and device
// identities are hex addresses or channel:code pairs.
const Delimiter = "."

// Key addresses one (observation, physical sensor, packet shape) tuple:
//
//	<observation>.<device_id>.<family>
//
// Construction is deterministic and stable across runs because device
// identities derive from payload bits, not assigned addresses. Two physically
// distinct devices of the same family can in principle derive the same
// identity; that collision risk is an accepted limitation of the address
// space.
func Key(observation, deviceID string, family core.Family) string {
	return observation + Delimiter + deviceID + Delimiter + string(family)
}

// Keys returns one key per field of the record
func Keys(rec *core.Record) []string {
	keys := make([]string, 0, len(rec.Fields))
	for name := range rec.Fields {
		keys = append(keys, Key(name, rec.DeviceID, rec.Family))
	}
	return keys
}

// Split breaks a key into its three parts. Returns false when the key does
// not have exactly three parts.
func Split(key string) (observation, deviceID, family string, ok bool) {
	parts := strings.Split(key, Delimiter)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}
