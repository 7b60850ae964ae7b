// FILE: wxsdr/src/internal/mapping/mapping_test.go
package mapping

import (
	"testing"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

func TestParse(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		sm, err := Parse(map[string]string{
			"outTemp":     "temperature.0BFA.Acurite5n1Packet",
			"outHumidity": "humidity.*.Acurite5n1Packet",
		})
		require.NoError(t, err)
		assert.Equal(t, 2, sm.Len())
	})

	t.Run("Empty", func(t *testing.T) {
		sm, err := Parse(map[string]string{})
		require.NoError(t, err)
		assert.Equal(t, 0, sm.Len())
	})

	t.Run("EmptyField", func(t *testing.T) {
		_, err := Parse(map[string]string{"": "temperature.0BFA.Acurite5n1Packet"})
		assert.Error(t, err)
	})

	t.Run("EmptyPattern", func(t *testing.T) {
		_, err := Parse(map[string]string{"outTemp": ""})
		assert.Error(t, err)
	})

	t.Run("WrongPartCount", func(t *testing.T) {
		_, err := Parse(map[string]string{"outTemp": "temperature.0BFA"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "3 parts")
	})

	t.Run("EmptyPart", func(t *testing.T) {
		_, err := Parse(map[string]string{"outTemp": "temperature..Acurite5n1Packet"})
		assert.Error(t, err)
	})

	t.Run("BadGlob", func(t *testing.T) {
		_, err := Parse(map[string]string{"outTemp": "temperature.[.Acurite5n1Packet"})
		assert.Error(t, err)
	})
}

func TestSensorMap_Lookup(t *testing.T) {
	sm, err := Parse(map[string]string{
		"outTemp":     "temperature.0BFA.Acurite5n1Packet",
		"outHumidity": "humidity.*.Acurite5n1Packet",
		"inTemp":      "temperature.1:9.HidekiTS04Packet",
		"anyWind":     "wind_speed.*.*",
	})
	require.NoError(t, err)

	testCases := []struct {
		name  string
		key   string
		field string
		found bool
	}{
		{"Exact", "temperature.0BFA.Acurite5n1Packet", "outTemp", true},
		{"ExactWithChannel", "temperature.1:9.HidekiTS04Packet", "inTemp", true},
		{"GlobDevice", "humidity.0BFA.Acurite5n1Packet", "outHumidity", true},
		{"GlobAll", "wind_speed.140.OSWGR800Packet", "anyWind", true},
		{"UnmappedObservation", "rain_total.0BFA.Acurite5n1Packet", "", false},
		{"UnmappedDevice", "temperature.DEAD.Acurite5n1Packet", "", false},
		{"UnmappedFamily", "temperature.0BFA.AcuriteTowerPacket", "", false},
		{"NotAKey", "garbage", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			field, found := sm.Lookup(tc.key)
			assert.Equal(t, tc.found, found)
			assert.Equal(t, tc.field, field)
		})
	}
}

func TestSensorMap_ExactBeatsGlob(t *testing.T) {
	sm, err := Parse(map[string]string{
		"specific": "temperature.0BFA.Acurite5n1Packet",
		"anyTemp":  "temperature.*.Acurite5n1Packet",
	})
	require.NoError(t, err)

	field, found := sm.Lookup("temperature.0BFA.Acurite5n1Packet")
	assert.True(t, found)
	assert.Equal(t, "specific", field)
}

func TestEngine_Map(t *testing.T) {
	sm, err := Parse(map[string]string{
		"outTemp": "temperature.0BFA.Acurite5n1Packet",
	})
	require.NoError(t, err)
	e := NewEngine(sm, true, newTestLogger())

	field, ok := e.Map("temperature.0BFA.Acurite5n1Packet")
	assert.True(t, ok)
	assert.Equal(t, "outTemp", field)

	_, ok = e.Map("humidity.0BFA.Acurite5n1Packet")
	assert.False(t, ok)

	// The same unmapped key again still counts but is only logged once
	_, ok = e.Map("humidity.0BFA.Acurite5n1Packet")
	assert.False(t, ok)

	stats := e.GetStats()
	assert.Equal(t, uint64(1), stats["total_mapped"])
	assert.Equal(t, uint64(2), stats["total_unmapped"])
	assert.Equal(t, 1, stats["distinct_unmapped_keys"])
}

func TestEngine_UnmappedLoggingDisabled(t *testing.T) {
	sm, err := Parse(map[string]string{})
	require.NoError(t, err)
	e := NewEngine(sm, false, newTestLogger())

	_, ok := e.Map("temperature.0BFA.Acurite5n1Packet")
	assert.False(t, ok)

	// No diagnostics tracked when logging is off
	assert.Equal(t, 0, e.GetStats()["distinct_unmapped_keys"])
}
