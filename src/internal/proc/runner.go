// FILE: wxsdr/src/internal/proc/runner.go
package proc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"wxsdr/src/internal/config"
	"wxsdr/src/internal/core"

	"github.com/lixenwraith/log"
	"golang.org/x/time/rate"
)

// Runner owns the external radio-decoder process. It exposes stdout as a
// line stream, drains stderr separately so the child never stalls on a full
// pipe, and restarts the child with bounded exponential backoff on
// unexpected exit. A missing executable is a fatal startup error; repeated
// restarts at the backoff ceiling within the budget window become a fatal
// event. The child is killed and reaped on every shutdown path.
type Runner struct {
	cfg    config.ProcessConfig
	env    []string
	logger *log.Logger

	subscribers []chan core.RawLine
	events      chan Event
	done        chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup

	// stderr is diagnostics, not data; rate-limit it so a chatty child
	// cannot flood the log
	stderrLimit *rate.Limiter
	// budget for restarts that happen at the backoff ceiling
	restartBudget *rate.Limiter

	totalLines    atomic.Uint64
	droppedLines  atomic.Uint64
	stderrLines   atomic.Uint64
	totalRestarts atomic.Uint64
	startTime     time.Time
	lastLineTime  atomic.Value // time.Time
}

func NewRunner(cfg config.ProcessConfig, logger *log.Logger) *Runner {
	r := &Runner{
		cfg:         cfg,
		env:         buildEnv(cfg),
		logger:      logger,
		events:      make(chan Event, 16),
		done:        make(chan struct{}),
		stderrLimit: rate.NewLimiter(rate.Every(time.Second), 10),
		restartBudget: rate.NewLimiter(
			rate.Every(cfg.RestartWindow()/time.Duration(cfg.RestartBudgetCount())),
			cfg.RestartBudgetCount()),
		startTime: time.Now(),
	}
	r.lastLineTime.Store(time.Time{})
	return r
}

// buildEnv resolves the child environment: inherited, with optional PATH
// prepend and LD_LIBRARY_PATH override for decoders installed outside the
// default search paths
func buildEnv(cfg config.ProcessConfig) []string {
	env := os.Environ()
	if cfg.Path != "" {
		env = append(env, "PATH="+cfg.Path+":"+os.Getenv("PATH"))
	}
	if cfg.LDLibraryPath != "" {
		env = append(env, "LD_LIBRARY_PATH="+cfg.LDLibraryPath)
	}
	return env
}

// Subscribe returns a channel that receives raw output lines.
// Must be called before Start.
func (r *Runner) Subscribe() <-chan core.RawLine {
	ch := make(chan core.RawLine, r.cfg.BufferSizeOrDefault())
	r.subscribers = append(r.subscribers, ch)
	return ch
}

// Events returns the channel of supervisor lifecycle events
func (r *Runner) Events() <-chan Event {
	return r.events
}

// Start verifies the executable and launches the supervision loop.
// A missing executable fails here, synchronously: the pipeline must not
// silently run with no data source.
func (r *Runner) Start() error {
	if _, err := exec.LookPath(r.cfg.Command); err != nil {
		return fmt.Errorf("decoder executable not found: %w", err)
	}
	r.logger.Info("msg", "Starting decoder process",
		"component", "runner",
		"command", r.cfg.Command,
		"args", fmt.Sprintf("%v", r.cfg.Args))
	r.wg.Add(1)
	go r.superviseLoop()
	return nil
}

// Stop terminates the child and waits for the supervision loop to finish
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
		for _, ch := range r.subscribers {
			close(ch)
		}
		close(r.events)
		r.logger.Info("msg", "Decoder process stopped", "component", "runner")
	})
}

// GetStats returns runner counters
func (r *Runner) GetStats() map[string]any {
	lastLine, _ := r.lastLineTime.Load().(time.Time)
	return map[string]any{
		"command":        r.cfg.Command,
		"total_lines":    r.totalLines.Load(),
		"dropped_lines":  r.droppedLines.Load(),
		"stderr_lines":   r.stderrLines.Load(),
		"total_restarts": r.totalRestarts.Load(),
		"start_time":     r.startTime,
		"last_line_time": lastLine,
	}
}

func (r *Runner) superviseLoop() {
	defer r.wg.Done()

	backoff := r.cfg.BackoffMin()
	for {
		started := time.Now()
		err := r.runOnce()
		if r.stopped() {
			return
		}

		// A long stable run earns a fresh backoff
		if time.Since(started) >= r.cfg.BackoffMax() {
			backoff = r.cfg.BackoffMin()
		}

		if backoff >= r.cfg.BackoffMax() && !r.restartBudget.Allow() {
			fatal := fmt.Errorf("restart budget exhausted at backoff ceiling: %w", err)
			r.logger.Error("msg", "Decoder process failing persistently",
				"component", "runner",
				"error", fatal)
			r.emit(Event{Type: EventFatal, Time: time.Now(), Err: fatal, Restarts: r.totalRestarts.Load()})
			return
		}

		r.totalRestarts.Add(1)
		r.logger.Warn("msg", "Decoder process exited, restarting",
			"component", "runner",
			"error", err,
			"backoff", backoff.String(),
			"restarts", r.totalRestarts.Load())
		r.emit(Event{Type: EventRestarted, Time: time.Now(), Err: err, Restarts: r.totalRestarts.Load()})

		select {
		case <-r.done:
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > r.cfg.BackoffMax() {
			backoff = r.cfg.BackoffMax()
		}
	}
}

// runOnce runs the child until it exits or Stop is called. The kill
// goroutine guarantees the child is terminated and reaped on every path.
func (r *Runner) runOnce() error {
	cmd := exec.Command(r.cfg.Command, r.cfg.Args...)
	cmd.Env = r.env

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start process: %w", err)
	}

	exited := make(chan struct{})
	var killWG sync.WaitGroup
	killWG.Add(1)
	go func() {
		defer killWG.Done()
		select {
		case <-r.done:
			_ = cmd.Process.Kill()
		case <-exited:
		}
	}()

	var readWG sync.WaitGroup
	readWG.Add(2)
	go func() {
		defer readWG.Done()
		r.readStdout(stdout)
	}()
	go func() {
		defer readWG.Done()
		r.readStderr(stderr)
	}()

	readWG.Wait()
	waitErr := cmd.Wait()
	close(exited)
	killWG.Wait()
	return waitErr
}

func (r *Runner) readStdout(pipe io.Reader) {
	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := core.RawLine{Text: scanner.Text(), Time: time.Now()}
		r.totalLines.Add(1)
		r.lastLineTime.Store(line.Time)
		for _, ch := range r.subscribers {
			select {
			case ch <- line:
			case <-r.done:
				return
			default:
				r.droppedLines.Add(1)
				r.logger.Debug("msg", "Dropped line - subscriber buffer full",
					"component", "runner")
			}
		}
	}
}

func (r *Runner) readStderr(pipe io.Reader) {
	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		r.stderrLines.Add(1)
		if r.stderrLimit.Allow() {
			r.logger.Warn("msg", "Decoder stderr",
				"component", "runner",
				"line", scanner.Text())
		}
	}
}

func (r *Runner) stopped() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

func (r *Runner) emit(ev Event) {
	select {
	case r.events <- ev:
	default:
		// Event buffer full; the log line above already carries the details
	}
}
