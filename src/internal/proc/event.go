// FILE: wxsdr/src/internal/proc/event.go
package proc

import (
	"time"
)

// EventType classifies supervisor lifecycle events
type EventType string

const (
	// EventRestarted is recoverable: the child exited and was restarted
	EventRestarted EventType = "restarted"
	// EventFatal means supervision gave up; the pipeline has no data source
	EventFatal EventType = "fatal"
)

// Event is one supervisor lifecycle notification
type Event struct {
	Type     EventType
	Time     time.Time
	Err      error
	Restarts uint64
}
