// FILE: wxsdr/src/internal/mapping/sensormap.go
package mapping

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"wxsdr/src/internal/identity"
)

// SensorMap is the user-authored table translating identity keys into output
// field names. Each entry reads
//
//	outTemp = "temperature.0BFA.Acurite5n1Packet"
//
// with glob patterns allowed per key part, so a whole device can be addressed
// at once ("temperature.*.FOWH1080Packet"). The table is parsed once at
// startup and immutable for the run.
type SensorMap struct {
	entries []entry
}

type entry struct {
	field   string
	pattern string
	parts   []string
}

// Parse validates the table and fails on any malformed pattern. A silently
// empty or broken map would make the consumer observe no sensors at all, so
// parse errors are fatal at startup.
func Parse(table map[string]string) (*SensorMap, error) {
	sm := &SensorMap{entries: make([]entry, 0, len(table))}

	// Deterministic match order across runs
	fields := make([]string, 0, len(table))
	for field := range table {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		pattern := table[field]
		if field == "" {
			return nil, fmt.Errorf("sensor map: empty output field for pattern '%s'", pattern)
		}
		if pattern == "" {
			return nil, fmt.Errorf("sensor map: field '%s' has empty pattern", field)
		}
		parts := strings.Split(pattern, identity.Delimiter)
		if len(parts) != 3 {
			return nil, fmt.Errorf("sensor map: field '%s' pattern '%s' must have 3 parts (observation.device.family)",
				field, pattern)
		}
		for _, part := range parts {
			if part == "" {
				return nil, fmt.Errorf("sensor map: field '%s' pattern '%s' has an empty part", field, pattern)
			}
			// Surface glob syntax errors now, not on first packet
			if _, err := path.Match(part, "probe"); err != nil {
				return nil, fmt.Errorf("sensor map: field '%s' pattern part '%s': %w", field, part, err)
			}
		}
		sm.entries = append(sm.entries, entry{field: field, pattern: pattern, parts: parts})
	}
	return sm, nil
}

// Len returns the number of map entries
func (sm *SensorMap) Len() int {
	return len(sm.entries)
}

// Lookup returns the output field for an identity key, matching exact
// patterns first and then glob patterns part by part
func (sm *SensorMap) Lookup(key string) (string, bool) {
	for _, e := range sm.entries {
		if e.pattern == key {
			return e.field, true
		}
	}
	obs, dev, fam, ok := identity.Split(key)
	if !ok {
		return "", false
	}
	keyParts := [3]string{obs, dev, fam}
	for _, e := range sm.entries {
		if matchParts(e.parts, keyParts) {
			return e.field, true
		}
	}
	return "", false
}

func matchParts(pattern []string, key [3]string) bool {
	for i := range key {
		ok, err := path.Match(pattern[i], key[i])
		if err != nil || !ok {
			return false
		}
	}
	return true
}
