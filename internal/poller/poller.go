package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/cloudcost-notify/internal/channel"
)

// Target is satisfied by *channel.Channel.
type Target interface {
	State() channel.State
	RequestStats() error
}

// Config holds poller configuration.
type Config struct {
	Interval time.Duration // Request interval (default: 5m)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Interval: 5 * time.Minute}
}

// Stats contains poller statistics.
type Stats struct {
	Requests int64 `json:"requests"`
	Skipped  int64 `json:"skipped"`
	Errors   int64 `json:"errors"`
}

// Poller periodically requests server-side connection statistics.
type Poller struct {
	cfg    Config
	target Target
	logger *slog.Logger

	requests atomic.Int64
	skipped  atomic.Int64
	errors   atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, target Target, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Poller{
		cfg:    cfg,
		target: target,
		logger: logger,
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("stats poller started", "interval", p.cfg.Interval)
	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("stats poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current counters.
func (p *Poller) Stats() Stats {
	return Stats{
		Requests: p.requests.Load(),
		Skipped:  p.skipped.Load(),
		Errors:   p.errors.Load(),
	}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

func (p *Poller) poll() {
	if state := p.target.State(); state != channel.StateConnected {
		p.logger.Debug("skipping stats request", "state", state)
		p.skipped.Add(1)
		return
	}

	if err := p.target.RequestStats(); err != nil {
		p.logger.Warn("stats request failed", "error", err)
		p.errors.Add(1)
		return
	}
	p.requests.Add(1)
}
