// Package poller drives the job executor on a fixed interval. The poller
// itself is stateless: every tick derives its work from store queries, so a
// restart loses nothing.
package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/skillang/leadg-crm-backend-sub001/internal/metrics"
)

// Executor is the single tick entrypoint.
type Executor interface {
	ProcessDueJobs(ctx context.Context) error
}

type Poller struct {
	interval time.Duration
	executor Executor
	logger   *zap.Logger

	mu       sync.Mutex
	inFlight bool
}

func New(interval time.Duration, executor Executor, logger *zap.Logger) *Poller {
	return &Poller{
		interval: interval,
		executor: executor,
		logger:   logger,
	}
}

// Run ticks until the context is cancelled. A tick that starts while the
// previous one is still in flight is skipped (single-flight per process).
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("job poller started", zap.Duration("interval", p.interval))

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("job poller stopped")
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick runs one poll cycle if none is already running.
func (p *Poller) Tick(ctx context.Context) {
	p.mu.Lock()
	if p.inFlight {
		p.logger.Warn("previous tick still in flight, skipping")
		p.mu.Unlock()
		return
	}
	p.inFlight = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.inFlight = false
		p.mu.Unlock()
	}()

	start := time.Now()
	if err := p.executor.ProcessDueJobs(ctx); err != nil {
		p.logger.Error("tick error", zap.Error(err))
	}
	metrics.TickDuration.Observe(time.Since(start).Seconds())
}
