// FILE: wxsdr/src/internal/mapping/engine.go
package mapping

import (
	"sync"
	"sync/atomic"

	"github.com/lixenwraith/log"
)

// Engine maps identity keys onto output fields. Unmapped keys are dropped,
// with at most one diagnostic per distinct key per process lifetime when
// unmapped-sensor logging is enabled. Two keys mapped to the same output
// field are accepted last-write-wins within a batch window.
type Engine struct {
	sensorMap   *SensorMap
	logUnmapped bool
	logger      *log.Logger

	mu           sync.Mutex
	seenUnmapped map[string]struct{}

	totalMapped   atomic.Uint64
	totalUnmapped atomic.Uint64
}

func NewEngine(sm *SensorMap, logUnmapped bool, logger *log.Logger) *Engine {
	return &Engine{
		sensorMap:    sm,
		logUnmapped:  logUnmapped,
		logger:       logger,
		seenUnmapped: make(map[string]struct{}),
	}
}

// Map resolves one identity key to its output field. Returns false for
// unmapped keys; the value is dropped by the caller.
func (e *Engine) Map(key string) (string, bool) {
	field, ok := e.sensorMap.Lookup(key)
	if ok {
		e.totalMapped.Add(1)
		return field, true
	}
	e.totalUnmapped.Add(1)

	if e.logUnmapped {
		e.mu.Lock()
		_, seen := e.seenUnmapped[key]
		if !seen {
			e.seenUnmapped[key] = struct{}{}
		}
		e.mu.Unlock()
		if !seen {
			e.logger.Info("msg", "Unmapped sensor",
				"component", "mapping",
				"key", key)
		}
	}
	return "", false
}

// GetStats returns mapping counters
func (e *Engine) GetStats() map[string]any {
	e.mu.Lock()
	distinct := len(e.seenUnmapped)
	e.mu.Unlock()
	return map[string]any{
		"map_entries":            e.sensorMap.Len(),
		"total_mapped":           e.totalMapped.Load(),
		"total_unmapped":         e.totalUnmapped.Load(),
		"distinct_unmapped_keys": distinct,
	}
}
