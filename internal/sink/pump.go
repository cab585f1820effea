package sink

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/cloudcost-notify/internal/envelope"
	"github.com/rickgao/cloudcost-notify/internal/queue"
)

// PumpConfig holds batching settings.
type PumpConfig struct {
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultPumpConfig returns sensible defaults.
func DefaultPumpConfig() PumpConfig {
	return PumpConfig{
		BatchSize:     100,
		FlushInterval: time.Second,
	}
}

// Metrics contains pump statistics.
type Metrics struct {
	Received   int64 `json:"received"`
	Written    int64 `json:"written"`
	Duplicates int64 `json:"duplicates"`
	Errors     int64 `json:"errors"`
	Dropped    int64 `json:"dropped"` // Offered after Stop or lost to a failed write
	Flushes    int64 `json:"flushes"`

	Queue queue.Stats `json:"queue"`
}

// Pump buffers events and hands them to a Writer in batches.
type Pump struct {
	cfg    PumpConfig
	w      Writer
	logger *slog.Logger
	now    func() time.Time

	// Input
	input *queue.Queue[Event]

	// Batching
	batch       []Event
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx          context.Context
	cancel       context.CancelFunc
	writeCtx     context.Context // Outlives ctx so the drain on Stop still writes
	consumerDone chan struct{}
	wg           sync.WaitGroup

	// Metrics
	metrics Metrics
}

// NewPump creates a pump for w.
func NewPump(cfg PumpConfig, w Writer, logger *slog.Logger) *Pump {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultPumpConfig().FlushInterval
	}
	return &Pump{
		cfg:    cfg,
		w:      w,
		logger: logger.With("sink", w.Name()),
		now:    time.Now,
		input:  queue.New[Event](cfg.BatchSize),
		batch:  make([]Event, 0, cfg.BatchSize),
	}
}

// Name returns the writer name.
func (p *Pump) Name() string {
	return p.w.Name()
}

// Offer enqueues a notification. Never blocks.
func (p *Pump) Offer(env envelope.Envelope) {
	ok := p.input.Push(NewEvent(env, p.now()))

	p.batchMu.Lock()
	if ok {
		p.metrics.Received++
	} else {
		p.metrics.Dropped++
	}
	p.batchMu.Unlock()
}

// Start begins consuming events. Cancelling ctx stops the periodic flush;
// queued events are still written by Stop.
func (p *Pump) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.writeCtx = context.WithoutCancel(ctx)
	p.flushTicker = time.NewTicker(p.cfg.FlushInterval)
	p.consumerDone = make(chan struct{})

	go p.consumeLoop()

	p.wg.Add(1)
	go p.flushLoop()

	p.logger.Info("sink started",
		"batch_size", p.cfg.BatchSize,
		"flush_interval", p.cfg.FlushInterval,
	)
	return nil
}

// Stop drains queued events, flushes them with ctx and shuts down.
func (p *Pump) Stop(ctx context.Context) error {
	p.logger.Info("stopping sink")

	p.input.Close()

	if p.consumerDone != nil {
		select {
		case <-p.consumerDone:
		case <-ctx.Done():
			p.logger.Warn("sink drain timed out", "pending", p.input.Len())
		}
	}

	if p.cancel != nil {
		p.cancel()
	}
	if p.flushTicker != nil {
		p.flushTicker.Stop()
	}
	p.wg.Wait()

	// Final flush
	p.flush(ctx)

	p.logger.Info("sink stopped")
	return nil
}

// Stats returns current metrics.
func (p *Pump) Stats() Metrics {
	p.batchMu.Lock()
	m := p.metrics
	p.batchMu.Unlock()

	m.Queue = p.input.Stats()
	return m
}

// consumeLoop moves events from the input queue into the batch until the
// queue is closed and drained.
func (p *Pump) consumeLoop() {
	defer close(p.consumerDone)

	for {
		events := p.input.PopBatch(p.cfg.BatchSize)
		if events == nil {
			return
		}

		p.batchMu.Lock()
		p.batch = append(p.batch, events...)
		shouldFlush := len(p.batch) >= p.cfg.BatchSize
		p.batchMu.Unlock()

		if shouldFlush {
			p.flush(p.writeCtx)
		}
	}
}

// flushLoop periodically flushes the batch.
func (p *Pump) flushLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.flushTicker.C:
			p.flush(p.writeCtx)
		}
	}
}

// flush writes the current batch.
func (p *Pump) flush(ctx context.Context) {
	p.batchMu.Lock()
	if len(p.batch) == 0 {
		p.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := p.batch
	p.batch = make([]Event, 0, p.cfg.BatchSize)
	p.batchMu.Unlock()

	start := time.Now()
	written, err := p.w.Write(ctx, batch)
	if err != nil {
		p.logger.Error("sink write failed", "error", err, "count", len(batch), "written", written)
		p.batchMu.Lock()
		p.metrics.Errors++
		p.metrics.Written += int64(written)
		p.metrics.Dropped += int64(len(batch) - written)
		p.batchMu.Unlock()
		return
	}

	p.batchMu.Lock()
	p.metrics.Written += int64(written)
	p.metrics.Duplicates += int64(len(batch) - written)
	p.metrics.Flushes++
	p.batchMu.Unlock()

	p.logger.Debug("flushed notifications",
		"count", len(batch),
		"duplicates", len(batch)-written,
		"duration", time.Since(start),
	)
}
