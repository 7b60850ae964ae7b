// FILE: wxsdr/src/internal/packet/assemble.go
package packet

import (
	"strings"
	"sync/atomic"
	"time"
)

// Assembler groups raw lines into parseable blocks. The decoder's JSON mode
// emits one object per line, so a JSON line is a complete block on its own.
// Free-text mode spreads one packet over several lines: a timestamp-prefixed
// line opens a block and the indented name:value lines that follow belong to
// it. A block is completed by the next block opener, by Expire when no
// continuation arrived in time, or discarded by Reset on a process restart so
// that a packet split across the restart boundary never produces a record.
type Assembler struct {
	pending     []string
	pendingTime time.Time
	// last time the pending block grew; drives Expire
	lastLine time.Time

	// read by GetStats from the status server while the ingest
	// goroutine writes
	droppedOrphans atomic.Uint64
	droppedPartial atomic.Uint64
}

func NewAssembler() *Assembler {
	return &Assembler{}
}

// Add consumes one raw line and returns any blocks it completed
func (a *Assembler) Add(text string, now time.Time) []Block {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	var out []Block

	if strings.HasPrefix(trimmed, "{") {
		// JSON object: complete on its own, and closes any pending text block
		if len(a.pending) > 0 {
			out = append(out, a.take())
		}
		out = append(out, Block{Lines: []string{trimmed}, Time: now})
		return out
	}

	if hasTimestampPrefix(trimmed) {
		if len(a.pending) > 0 {
			out = append(out, a.take())
		}
		a.pending = []string{trimmed}
		a.pendingTime = now
		a.lastLine = now
		return out
	}

	// Continuation line; without an open block it cannot be anchored
	if len(a.pending) == 0 {
		a.droppedOrphans.Add(1)
		return nil
	}
	a.pending = append(a.pending, trimmed)
	a.lastLine = now
	return nil
}

// Expire completes the pending block when it has not grown for maxAge.
// The decoder emits packets in bursts, so a quiet gap means the block is done.
func (a *Assembler) Expire(now time.Time, maxAge time.Duration) []Block {
	if len(a.pending) == 0 || now.Sub(a.lastLine) < maxAge {
		return nil
	}
	return []Block{a.take()}
}

// Reset discards any pending partial block. Called on process restart.
func (a *Assembler) Reset() {
	if len(a.pending) > 0 {
		a.droppedPartial.Add(1)
	}
	a.pending = nil
}

// GetStats returns assembler counters
func (a *Assembler) GetStats() map[string]any {
	return map[string]any{
		"dropped_orphan_lines":   a.droppedOrphans.Load(),
		"dropped_partial_blocks": a.droppedPartial.Load(),
	}
}

func (a *Assembler) take() Block {
	b := Block{Lines: a.pending, Time: a.pendingTime}
	a.pending = nil
	return b
}
