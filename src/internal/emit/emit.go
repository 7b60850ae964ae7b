// FILE: wxsdr/src/internal/emit/emit.go
package emit

import (
	"time"

	"wxsdr/src/internal/core"
)

// Emitter is an optional output for flushed batches, alongside the primary
// consumer poll path
type Emitter interface {
	// Emit hands one batch to the output
	Emit(b core.Batch) error

	// Stop gracefully shuts down the emitter
	Stop()

	// GetStats returns emitter statistics
	GetStats() EmitterStats
}

// EmitterStats contains statistics about an emitter
type EmitterStats struct {
	Type          string
	TotalBatches  uint64
	FailedBatches uint64
	StartTime     time.Time
	LastEmit      time.Time
}
