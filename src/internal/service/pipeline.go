// FILE: wxsdr/src/internal/service/pipeline.go
package service

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"wxsdr/src/internal/accum"
	"wxsdr/src/internal/config"
	"wxsdr/src/internal/core"
	"wxsdr/src/internal/emit"
	"wxsdr/src/internal/identity"
	"wxsdr/src/internal/mapping"
	"wxsdr/src/internal/metric"
	"wxsdr/src/internal/packet"
	"wxsdr/src/internal/proc"

	"github.com/lixenwraith/log"
)

// LineSource abstracts the supervised decoder process. proc.Runner is the
// production implementation; tests feed lines directly.
type LineSource interface {
	Subscribe() <-chan core.RawLine
	Events() <-chan proc.Event
	Start() error
	Stop()
	GetStats() map[string]any
}

// Pipeline wires the source through assembly, parsing, identity mapping and
// accumulation. One background goroutine owns the whole ingestion chain and
// is the only writer into the accumulator; Flush reads it from the consumer
// side and never blocks on process I/O.
type Pipeline struct {
	cfg       *config.Config
	source    LineSource
	assembler *packet.Assembler
	parser    *packet.Parser
	engine    *mapping.Engine
	acc       *accum.Accumulator
	emitters  []emit.Emitter
	logger    *log.Logger

	// unknown-shape diagnostics fire once per distinct signature;
	// only the ingest goroutine touches this map
	logUnknown  bool
	seenUnknown map[string]struct{}

	// consecutive identical mapped updates are duplicate transmissions
	lastMapped map[string]any
	lastTime   time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	fatalOnce sync.Once
	fatalCh   chan error

	totalBatches    atomic.Uint64
	totalDuplicates atomic.Uint64
	startTime       time.Time
}

func NewPipeline(ctx context.Context, cfg *config.Config, src LineSource, emitters []emit.Emitter, logger *log.Logger) (*Pipeline, error) {
	sensorMap, err := mapping.Parse(cfg.Sensors.Map)
	if err != nil {
		return nil, err
	}
	if sensorMap.Len() == 0 {
		logger.Warn("msg", "Sensor map is empty - no data will be collected",
			"component", "pipeline")
	}

	pipelineCtx, cancel := context.WithCancel(ctx)
	return &Pipeline{
		cfg:         cfg,
		source:      src,
		assembler:   packet.NewAssembler(),
		parser:      packet.NewParser(logger),
		engine:      mapping.NewEngine(sensorMap, cfg.Pipeline.LogUnmappedSensors, logger),
		acc:         accum.New(cfg.Sensors.Deltas, cfg.Pipeline.StaleAfter(), logger),
		emitters:    emitters,
		logger:      logger,
		logUnknown:  cfg.Pipeline.LogUnknownSensors,
		seenUnknown: make(map[string]struct{}),
		ctx:         pipelineCtx,
		cancel:      cancel,
		fatalCh:     make(chan error, 1),
		startTime:   time.Now(),
	}, nil
}

// Start launches the source and the ingestion and polling goroutines
func (p *Pipeline) Start() error {
	lines := p.source.Subscribe()
	if err := p.source.Start(); err != nil {
		p.cancel()
		return err
	}

	p.wg.Add(1)
	go p.ingestLoop(lines, p.source.Events())

	if len(p.emitters) > 0 {
		p.wg.Add(1)
		go p.pollLoop()
	}

	p.logger.Info("msg", "Pipeline started",
		"component", "pipeline",
		"map_entries", p.engine.GetStats()["map_entries"],
		"poll_interval", p.cfg.Pipeline.PollInterval().String())
	return nil
}

// Flush captures the current snapshot as an independent batch. This is the
// consumer poll path; it blocks only for an in-progress accumulator update.
func (p *Pipeline) Flush() core.Batch {
	b := p.acc.Flush(time.Now())
	p.totalBatches.Add(1)
	metric.ObserveBatch(len(b.Fields))
	return b
}

// Fatal reports an unrecoverable pipeline failure (decoder gone for good).
// The channel receives at most one error.
func (p *Pipeline) Fatal() <-chan error {
	return p.fatalCh
}

// Shutdown stops the source, waits for in-flight processing and stops the
// emitters. Safe to call after a fatal event.
func (p *Pipeline) Shutdown() {
	p.logger.Info("msg", "Shutting down pipeline", "component", "pipeline")
	p.cancel()
	p.source.Stop()
	p.wg.Wait()
	for _, e := range p.emitters {
		e.Stop()
	}
	p.logger.Info("msg", "Pipeline shutdown complete", "component", "pipeline")
}

// GetStats returns statistics for every pipeline stage
func (p *Pipeline) GetStats() map[string]any {
	emitterStats := make([]map[string]any, 0, len(p.emitters))
	for _, e := range p.emitters {
		s := e.GetStats()
		emitterStats = append(emitterStats, map[string]any{
			"type":           s.Type,
			"total_batches":  s.TotalBatches,
			"failed_batches": s.FailedBatches,
			"last_emit":      s.LastEmit,
		})
	}
	return map[string]any{
		"uptime_seconds":   int(time.Since(p.startTime).Seconds()),
		"total_batches":    p.totalBatches.Load(),
		"total_duplicates": p.totalDuplicates.Load(),
		"source":           p.source.GetStats(),
		"assembler":        p.assembler.GetStats(),
		"parser":           p.parser.GetStats(),
		"mapping":          p.engine.GetStats(),
		"accumulator":      p.acc.GetStats(),
		"emitters":         emitterStats,
	}
}

func (p *Pipeline) ingestLoop(lines <-chan core.RawLine, events <-chan proc.Event) {
	defer p.wg.Done()

	// Sweep for blocks whose continuation lines stopped arriving
	expire := time.NewTicker(p.cfg.Pipeline.BlockMaxAge() / 2)
	defer expire.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return

		case line, ok := <-lines:
			if !ok {
				return
			}
			metric.ObserveLine()
			for _, b := range p.assembler.Add(line.Text, line.Time) {
				p.processBlock(b)
			}

		case now := <-expire.C:
			for _, b := range p.assembler.Expire(now, p.cfg.Pipeline.BlockMaxAge()) {
				p.processBlock(b)
			}

		case ev, ok := <-events:
			if !ok {
				return
			}
			p.handleEvent(ev)
		}
	}
}

func (p *Pipeline) handleEvent(ev proc.Event) {
	switch ev.Type {
	case proc.EventRestarted:
		// A line split across the restart boundary must never become data
		p.assembler.Reset()
		metric.ObserveRestart()
		p.logger.Info("msg", "Decoder process restarted",
			"component", "pipeline",
			"restarts", ev.Restarts)
	case proc.EventFatal:
		p.fatalOnce.Do(func() {
			p.fatalCh <- ev.Err
		})
	}
}

func (p *Pipeline) processBlock(b packet.Block) {
	rec := p.parser.Parse(b)
	if rec == nil {
		metric.ObserveUnknown()
		if p.logUnknown {
			sig := packet.Signature(b)
			if _, seen := p.seenUnknown[sig]; !seen && sig != "" {
				p.seenUnknown[sig] = struct{}{}
				p.logger.Info("msg", "Unknown sensor",
					"component", "pipeline",
					"signature", sig)
			}
		}
		return
	}
	metric.ObserveRecord(string(rec.Family))

	mapped := make(map[string]any)
	for name, value := range rec.Fields {
		key := identity.Key(name, rec.DeviceID, rec.Family)
		field, ok := p.engine.Map(key)
		if !ok {
			metric.ObserveUnmapped()
			continue
		}
		mapped[field] = value
	}
	if len(mapped) == 0 {
		return
	}

	if rec.Time.Equal(p.lastTime) && reflect.DeepEqual(mapped, p.lastMapped) {
		p.totalDuplicates.Add(1)
		p.logger.Debug("msg", "Ignoring duplicate packet",
			"component", "pipeline",
			"device", rec.DeviceID)
		return
	}
	p.lastMapped = mapped
	p.lastTime = rec.Time

	for field, value := range mapped {
		p.acc.Update(field, value, rec.Time)
		metric.ObserveUpdate()
	}
}

func (p *Pipeline) pollLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Pipeline.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			b := p.Flush()
			for _, e := range p.emitters {
				if err := e.Emit(b); err != nil {
					p.logger.Warn("msg", "Emitter failed",
						"component", "pipeline",
						"error", err)
				}
			}
		}
	}
}
