// FILE: wxsdr/src/internal/core/types.go
package core

import (
	"time"
)

// RawLine is one line of child-process output, unparsed
type RawLine struct {
	Text string
	Time time.Time
}

// Family identifies one known packet shape. The set of families is closed;
// adding a sensor model means adding a family tag and its decoder.
type Family string

// Record is a decoded sensor packet with fields in canonical units
type Record struct {
	Family   Family
	DeviceID string
	Time     time.Time
	Fields   map[string]any
}

// Observation is one mapped output value and the time it was observed
type Observation struct {
	Value any       `json:"value"`
	Time  time.Time `json:"time"`
}

// Batch is an immutable snapshot of all known output fields at flush time
type Batch struct {
	Time   time.Time              `json:"time"`
	Fields map[string]Observation `json:"fields"`
}
