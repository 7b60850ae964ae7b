// FILE: wxsdr/src/internal/core/const.go
package core

// Default invocation of the radio decoder.
// -q suppresses non-data messages, -U prints timestamps in UTC,
// -F json selects the one-object-per-line output mode.
const DefaultCommand = "rtl_433"

var DefaultArgs = []string{"-q", "-U", "-F", "json"}

// Canonical battery status values
const (
	BatteryOK  = 0
	BatteryLow = 1
)
