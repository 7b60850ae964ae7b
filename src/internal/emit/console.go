// FILE: wxsdr/src/internal/emit/console.go
package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"wxsdr/src/internal/core"

	"github.com/lixenwraith/log"
)

// ConsoleEmitter writes one JSON object per batch to a writer, the simplest
// way to pipe flushed batches into another process
type ConsoleEmitter struct {
	w      io.Writer
	logger *log.Logger

	totalBatches  atomic.Uint64
	failedBatches atomic.Uint64
	startTime     time.Time
	lastEmit      atomic.Value // time.Time
}

func NewConsoleEmitter(w io.Writer, logger *log.Logger) *ConsoleEmitter {
	c := &ConsoleEmitter{
		w:         w,
		logger:    logger,
		startTime: time.Now(),
	}
	c.lastEmit.Store(time.Time{})
	return c
}

func (c *ConsoleEmitter) Emit(b core.Batch) error {
	data, err := json.Marshal(b)
	if err != nil {
		c.failedBatches.Add(1)
		return fmt.Errorf("marshal batch: %w", err)
	}
	if _, err := fmt.Fprintf(c.w, "%s\n", data); err != nil {
		c.failedBatches.Add(1)
		return fmt.Errorf("write batch: %w", err)
	}
	c.totalBatches.Add(1)
	c.lastEmit.Store(time.Now())
	return nil
}

func (c *ConsoleEmitter) Stop() {}

func (c *ConsoleEmitter) GetStats() EmitterStats {
	lastEmit, _ := c.lastEmit.Load().(time.Time)
	return EmitterStats{
		Type:          "console",
		TotalBatches:  c.totalBatches.Load(),
		FailedBatches: c.failedBatches.Load(),
		StartTime:     c.startTime,
		LastEmit:      lastEmit,
	}
}
