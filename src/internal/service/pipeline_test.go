// FILE: wxsdr/src/internal/service/pipeline_test.go
package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"wxsdr/src/internal/config"
	"wxsdr/src/internal/core"
	"wxsdr/src/internal/proc"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

// stubSource feeds lines and events directly, standing in for the
// supervised decoder process
type stubSource struct {
	lines  chan core.RawLine
	events chan proc.Event
}

func newStubSource() *stubSource {
	return &stubSource{
		lines:  make(chan core.RawLine, 64),
		events: make(chan proc.Event, 4),
	}
}

func (s *stubSource) Subscribe() <-chan core.RawLine { return s.lines }
func (s *stubSource) Events() <-chan proc.Event      { return s.events }
func (s *stubSource) Start() error                   { return nil }
func (s *stubSource) Stop()                          {}
func (s *stubSource) GetStats() map[string]any       { return map[string]any{} }

func (s *stubSource) push(text string) {
	s.lines <- core.RawLine{Text: text, Time: time.Now()}
}

func testConfig(sensorMap map[string]string) *config.Config {
	return &config.Config{
		Process: config.ProcessConfig{
			Command:              "rtl_433",
			BufferSize:           100,
			BackoffMinMs:         1000,
			BackoffMaxMs:         60000,
			RestartBudget:        5,
			RestartWindowMinutes: 10,
		},
		Pipeline: config.PipelineConfig{
			PollIntervalSeconds: 1,
			BlockMaxAgeMs:       100,
			LogUnknownSensors:   true,
			LogUnmappedSensors:  true,
		},
		Sensors: config.SensorsConfig{
			Map:    sensorMap,
			Deltas: map[string]string{"rain": "rain_total"},
		},
	}
}

func startPipeline(t *testing.T, cfg *config.Config, src LineSource) *Pipeline {
	t.Helper()
	p, err := NewPipeline(context.Background(), cfg, src, nil, newTestLogger())
	require.NoError(t, err)
	require.NoError(t, p.Start())
	t.Cleanup(p.Shutdown)
	return p
}

func TestNewPipeline_MalformedMap(t *testing.T) {
	cfg := testConfig(map[string]string{"outTemp": "temperature.0BFA"})
	_, err := NewPipeline(context.Background(), cfg, newStubSource(), nil, newTestLogger())
	assert.Error(t, err)
}

func TestPipeline_JSONIngestion(t *testing.T) {
	src := newStubSource()
	p := startPipeline(t, testConfig(map[string]string{
		"outTemp":   "temperature.0BFA.Acurite5n1Packet",
		"windSpeed": "wind_speed.0BFA.Acurite5n1Packet",
	}), src)

	src.push(`{"time" : "2017-01-01 12:00:00", "model" : "Acurite 5n1 sensor", "id" : "0BFA", "wind_avg_km_h" : 4.32, "temperature_F" : 68.9, "humidity" : 54}`)

	assert.Eventually(t, func() bool {
		b := p.Flush()
		_, hasTemp := b.Fields["outTemp"]
		_, hasWind := b.Fields["windSpeed"]
		return hasTemp && hasWind
	}, 2*time.Second, 20*time.Millisecond)

	b := p.Flush()
	assert.InDelta(t, 20.5, b.Fields["outTemp"].Value.(float64), 1e-9)
	assert.InDelta(t, 4.32, b.Fields["windSpeed"].Value.(float64), 1e-9)
	// humidity was decoded but is not in the sensor map
	assert.Len(t, b.Fields, 2)
}

func TestPipeline_TextBlockIngestion(t *testing.T) {
	src := newStubSource()
	p := startPipeline(t, testConfig(map[string]string{
		"inTemp": "temperature.1:9.HidekiTS04Packet",
	}), src)

	src.push("2017-01-01 12:00:04 :	HIDEKI TS04 sensor")
	src.push("Rolling Code: 9")
	src.push("Channel: 1")
	src.push("Temperature: 27.30 C")

	// No closing head line arrives; the expiry sweep completes the block
	assert.Eventually(t, func() bool {
		b := p.Flush()
		obs, ok := b.Fields["inTemp"]
		return ok && obs.Value.(float64) == 27.3
	}, 2*time.Second, 20*time.Millisecond)
}

func TestPipeline_DeltaDerivation(t *testing.T) {
	src := newStubSource()
	p := startPipeline(t, testConfig(map[string]string{
		"rain_total": "rain_total.0:166.OSPCR800Packet",
	}), src)

	src.push(`{"time" : "2017-01-01 12:00:00", "model" : "Oregon-PCR800", "id" : 166, "channel" : 0, "rain_mm" : 100.0}`)
	src.push(`{"time" : "2017-01-01 12:01:00", "model" : "Oregon-PCR800", "id" : 166, "channel" : 0, "rain_mm" : 101.5}`)

	assert.Eventually(t, func() bool {
		b := p.Flush()
		obs, ok := b.Fields["rain"]
		if !ok {
			return false
		}
		return obs.Value.(float64) > 1.49 && obs.Value.(float64) < 1.51
	}, 2*time.Second, 20*time.Millisecond)
}

func TestPipeline_DuplicateSuppression(t *testing.T) {
	src := newStubSource()
	p := startPipeline(t, testConfig(map[string]string{
		"outTemp": "temperature.100.AcuriteTowerPacket",
	}), src)

	// Same payload with the same packet time: a duplicate transmission
	line := `{"time" : "2017-01-01 12:00:00", "model" : "Acurite-Tower", "id" : 100, "temperature_C" : 20.0}`
	src.push(line)
	src.push(line)

	assert.Eventually(t, func() bool {
		return p.GetStats()["total_duplicates"] == uint64(1)
	}, 2*time.Second, 20*time.Millisecond)
}

func TestPipeline_DeviceIsolation(t *testing.T) {
	src := newStubSource()
	p := startPipeline(t, testConfig(map[string]string{
		"outTemp": "temperature.0BFA.Acurite5n1Packet",
		"inTemp":  "temperature.24A4.Acurite5n1Packet",
	}), src)

	// Interleaved transmissions from two devices of the same family
	src.push(`{"time" : "2017-01-01 12:00:00", "model" : "Acurite5n1", "id" : "0BFA", "temperature_C" : 21.5}`)
	src.push(`{"time" : "2017-01-01 12:00:01", "model" : "Acurite5n1", "id" : "24A4", "temperature_C" : 5.0}`)
	src.push(`{"time" : "2017-01-01 12:00:02", "model" : "Acurite5n1", "id" : "0BFA", "temperature_C" : 21.6}`)

	assert.Eventually(t, func() bool {
		b := p.Flush()
		out, hasOut := b.Fields["outTemp"]
		in, hasIn := b.Fields["inTemp"]
		return hasOut && hasIn &&
			out.Value.(float64) == 21.6 && in.Value.(float64) == 5.0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestPipeline_UnknownSignatureLoggedOnce(t *testing.T) {
	src := newStubSource()
	p := startPipeline(t, testConfig(map[string]string{
		"outTemp": "temperature.100.AcuriteTowerPacket",
	}), src)

	// Same unrecognized shape three times, a second shape once
	src.push("2017-01-01 12:00:04 New sensor 0x1111: 20.1 C")
	src.push("2017-01-01 12:00:09 New sensor 0x2222: 21.7 C")
	src.push("2017-01-01 12:00:14 New sensor 0x1111: 20.2 C")
	src.push("2017-01-01 12:00:19 Other gadget model 7")

	assert.Eventually(t, func() bool {
		parser := p.GetStats()["parser"].(map[string]any)
		return parser["total_unknown"] == uint64(4)
	}, 2*time.Second, 20*time.Millisecond)

	// One diagnostic per distinct signature, not per packet
	p.Shutdown()
	assert.Len(t, p.seenUnknown, 2)
}

func TestPipeline_UnknownSensorCounted(t *testing.T) {
	src := newStubSource()
	p := startPipeline(t, testConfig(map[string]string{
		"outTemp": "temperature.100.AcuriteTowerPacket",
	}), src)

	src.push(`{"model" : "Nexus-TH", "id" : 5, "temperature_C" : 20.0}`)

	assert.Eventually(t, func() bool {
		parser := p.GetStats()["parser"].(map[string]any)
		return parser["total_unknown"] == uint64(1)
	}, 2*time.Second, 20*time.Millisecond)

	assert.Empty(t, p.Flush().Fields)
}

func TestPipeline_RestartDropsPartialBlock(t *testing.T) {
	src := newStubSource()
	p := startPipeline(t, testConfig(map[string]string{
		"inTemp": "temperature.1:9.HidekiTS04Packet",
	}), src)

	src.push("2017-01-01 12:00:04 :	HIDEKI TS04 sensor")
	src.push("Rolling Code: 9")
	src.push("Channel: 1")
	src.events <- proc.Event{Type: proc.EventRestarted, Time: time.Now(), Restarts: 1}
	// The tail of the packet arrives from the new process run
	src.push("Temperature: 27.30 C")

	assert.Eventually(t, func() bool {
		asm := p.GetStats()["assembler"].(map[string]any)
		return asm["dropped_partial_blocks"] == uint64(1)
	}, 2*time.Second, 20*time.Millisecond)

	// The torn packet never becomes a value
	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, p.Flush().Fields)
}

func TestPipeline_FatalEvent(t *testing.T) {
	src := newStubSource()
	p := startPipeline(t, testConfig(map[string]string{
		"outTemp": "temperature.100.AcuriteTowerPacket",
	}), src)

	src.events <- proc.Event{Type: proc.EventFatal, Time: time.Now(), Err: errors.New("decoder gone")}

	select {
	case err := <-p.Fatal():
		assert.ErrorContains(t, err, "decoder gone")
	case <-time.After(2 * time.Second):
		t.Fatal("fatal event not propagated")
	}
}

func TestPipeline_StatsDuringIngestion(t *testing.T) {
	// GetStats is served by the status server while the ingest goroutine
	// is mutating every stage; both sides must be safe under the race
	// detector
	src := newStubSource()
	p := startPipeline(t, testConfig(map[string]string{
		"inTemp": "temperature.1:9.HidekiTS04Packet",
	}), src)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			p.GetStats()
			p.Flush()
		}
	}()

	for i := 0; i < 50; i++ {
		src.push("2017-01-01 12:00:04 :	HIDEKI TS04 sensor")
		src.push("Rolling Code: 9")
		src.push("Channel: 1")
		src.push("Temperature: 27.30 C")
		src.push("orphan continuation line")
	}
	<-done

	stats := p.GetStats()["assembler"].(map[string]any)
	_, ok := stats["dropped_orphan_lines"].(uint64)
	assert.True(t, ok)
}

func TestPipeline_FlushSnapshots(t *testing.T) {
	src := newStubSource()
	p := startPipeline(t, testConfig(map[string]string{
		"outTemp": "temperature.100.AcuriteTowerPacket",
	}), src)

	src.push(`{"time" : "2017-01-01 12:00:00", "model" : "Acurite-Tower", "id" : 100, "temperature_C" : 20.0}`)

	assert.Eventually(t, func() bool {
		return len(p.Flush().Fields) == 1
	}, 2*time.Second, 20*time.Millisecond)

	// Consecutive flushes repeat the value with fresh batch timestamps
	first := p.Flush()
	second := p.Flush()
	assert.Equal(t, first.Fields["outTemp"].Value, second.Fields["outTemp"].Value)
	assert.True(t, second.Time.After(first.Time) || second.Time.Equal(first.Time))
}
