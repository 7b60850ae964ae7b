// FILE: wxsdr/src/internal/accum/accum.go
package accum

import (
	"sync"
	"time"

	"wxsdr/src/internal/core"

	"github.com/lixenwraith/log"
)

// Accumulator holds the most recent value of every mapped output field.
// Flush snapshots the current state without clearing it: a sensor that
// reports every few minutes stays valid between reports. Update and Flush
// run from different goroutines (ingestion vs polling) and share one mutex;
// neither ever blocks on process I/O.
type Accumulator struct {
	mu     sync.Mutex
	values map[string]core.Observation

	// deltas maps a derived per-interval field onto its cumulative source
	// field, e.g. rain <- rain_total. Counter decrements are ignored rather
	// than emitted as negative deltas.
	deltas     map[string]string
	lastTotals map[string]float64

	// staleAfter > 0 expires values older than the cutoff at flush time
	staleAfter time.Duration

	logger *log.Logger

	totalUpdates uint64
	totalFlushes uint64
}

func New(deltas map[string]string, staleAfter time.Duration, logger *log.Logger) *Accumulator {
	return &Accumulator{
		values:     make(map[string]core.Observation),
		deltas:     deltas,
		lastTotals: make(map[string]float64),
		staleAfter: staleAfter,
		logger:     logger,
	}
}

// Update stores the latest value for an output field and derives any
// configured delta fields from it
func (a *Accumulator) Update(field string, value any, ts time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalUpdates++
	a.values[field] = core.Observation{Value: value, Time: ts}

	for deltaField, totalField := range a.deltas {
		if totalField != field {
			continue
		}
		total, ok := value.(float64)
		if !ok {
			continue
		}
		last, has := a.lastTotals[totalField]
		if has {
			if total >= last {
				a.values[deltaField] = core.Observation{Value: total - last, Time: ts}
			} else {
				a.logger.Info("msg", "Counter decrement ignored",
					"component", "accumulator",
					"field", totalField,
					"new", total,
					"old", last)
			}
		}
		a.lastTotals[totalField] = total
	}
}

// Flush returns an immutable copy of the snapshot timestamped now. When a
// staleness policy is configured, values observed before the cutoff are
// dropped from the snapshot and from subsequent batches.
func (a *Accumulator) Flush(now time.Time) core.Batch {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalFlushes++
	if a.staleAfter > 0 {
		cutoff := now.Add(-a.staleAfter)
		for field, obs := range a.values {
			if obs.Time.Before(cutoff) {
				delete(a.values, field)
			}
		}
	}

	fields := make(map[string]core.Observation, len(a.values))
	for field, obs := range a.values {
		fields[field] = obs
	}
	return core.Batch{Time: now, Fields: fields}
}

// Len returns the number of fields currently held
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.values)
}

// GetStats returns accumulator counters
func (a *Accumulator) GetStats() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return map[string]any{
		"fields":        len(a.values),
		"total_updates": a.totalUpdates,
		"total_flushes": a.totalFlushes,
	}
}
