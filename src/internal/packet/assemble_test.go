// FILE: wxsdr/src/internal/packet/assemble_test.go
package packet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembler_JSONLines(t *testing.T) {
	a := NewAssembler()
	now := time.Now()

	blocks := a.Add(`{"model" : "Acurite-Tower", "id" : 100}`, now)
	require.Len(t, blocks, 1)
	assert.Len(t, blocks[0].Lines, 1)
	assert.Equal(t, now, blocks[0].Time)

	// Each JSON line is its own block
	blocks = a.Add(`{"model" : "Acurite-Tower", "id" : 200}`, now)
	require.Len(t, blocks, 1)
}

func TestAssembler_TextBlocks(t *testing.T) {
	a := NewAssembler()
	now := time.Now()

	assert.Empty(t, a.Add("2017-01-01 12:00:04 :	HIDEKI TS04 sensor", now))
	assert.Empty(t, a.Add("Rolling Code: 9", now))
	assert.Empty(t, a.Add("Temperature: 27.30 C", now))

	// The next head line closes the open block
	blocks := a.Add("2017-01-01 12:00:08 : Thermo Sensor THR228N", now)
	require.Len(t, blocks, 1)
	assert.Equal(t, []string{
		"2017-01-01 12:00:04 :	HIDEKI TS04 sensor",
		"Rolling Code: 9",
		"Temperature: 27.30 C",
	}, blocks[0].Lines)
}

func TestAssembler_JSONClosesPendingText(t *testing.T) {
	a := NewAssembler()
	now := time.Now()

	a.Add("2017-01-01 12:00:04 :	HIDEKI TS04 sensor", now)
	a.Add("Rolling Code: 9", now)

	blocks := a.Add(`{"model" : "Acurite-Tower", "id" : 100}`, now)
	require.Len(t, blocks, 2)
	assert.Len(t, blocks[0].Lines, 2)
	assert.Len(t, blocks[1].Lines, 1)
}

func TestAssembler_OrphanContinuation(t *testing.T) {
	a := NewAssembler()

	// Startup mid-packet: continuation lines with no open block are dropped
	assert.Empty(t, a.Add("Temperature: 27.30 C", time.Now()))
	assert.Equal(t, uint64(1), a.GetStats()["dropped_orphan_lines"])
}

func TestAssembler_BlankLines(t *testing.T) {
	a := NewAssembler()
	assert.Empty(t, a.Add("", time.Now()))
	assert.Empty(t, a.Add("   ", time.Now()))
	assert.Equal(t, uint64(0), a.GetStats()["dropped_orphan_lines"])
}

func TestAssembler_Expire(t *testing.T) {
	a := NewAssembler()
	start := time.Now()

	a.Add("2017-01-01 12:00:04 :	HIDEKI TS04 sensor", start)
	a.Add("Temperature: 27.30 C", start)

	// Not old enough yet
	assert.Empty(t, a.Expire(start.Add(time.Second), 2*time.Second))

	blocks := a.Expire(start.Add(3*time.Second), 2*time.Second)
	require.Len(t, blocks, 1)
	assert.Len(t, blocks[0].Lines, 2)

	// Nothing pending after expiry
	assert.Empty(t, a.Expire(start.Add(10*time.Second), 2*time.Second))
}

func TestAssembler_ExpireMeasuresFromLastGrowth(t *testing.T) {
	a := NewAssembler()
	start := time.Now()

	a.Add("2017-01-01 12:00:04 :	HIDEKI TS04 sensor", start)
	// A late continuation keeps the block alive
	a.Add("Temperature: 27.30 C", start.Add(1500*time.Millisecond))

	assert.Empty(t, a.Expire(start.Add(2500*time.Millisecond), 2*time.Second))

	blocks := a.Expire(start.Add(4*time.Second), 2*time.Second)
	require.Len(t, blocks, 1)
	assert.Len(t, blocks[0].Lines, 2)
}

func TestAssembler_Reset(t *testing.T) {
	a := NewAssembler()
	now := time.Now()

	a.Add("2017-01-01 12:00:04 :	HIDEKI TS04 sensor", now)
	a.Reset()

	// The partial block is gone: a later continuation cannot resurrect it
	assert.Empty(t, a.Add("Temperature: 27.30 C", now))
	assert.Empty(t, a.Expire(now.Add(time.Minute), time.Second))
	assert.Equal(t, uint64(1), a.GetStats()["dropped_partial_blocks"])

	// Reset with nothing pending counts nothing
	a.Reset()
	assert.Equal(t, uint64(1), a.GetStats()["dropped_partial_blocks"])
}
