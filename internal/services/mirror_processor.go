package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// PendingMirror copies a batch of not yet mirrored entries and reports how
// many it handled. Implemented by worker.MirrorWorker.
type PendingMirror interface {
	ProcessPending(ctx context.Context, limit int) (int, error)
}

// MirrorProcessorConfig holds configuration for the mirror processor
type MirrorProcessorConfig struct {
	// PollInterval is how often to check for unmirrored entries (default: 30s)
	PollInterval time.Duration

	// BatchSize is the max number of entries per poll cycle (default: 50)
	BatchSize int

	// MaxBackoff caps the wait after consecutive failed cycles (default: 5m)
	MaxBackoff time.Duration
}

// DefaultMirrorProcessorConfig returns sensible defaults
func DefaultMirrorProcessorConfig() MirrorProcessorConfig {
	return MirrorProcessorConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    50,
		MaxBackoff:   5 * time.Minute,
	}
}

// MirrorProcessor periodically drains entries the event path missed, for
// example while the broker was down.
type MirrorProcessor struct {
	pending PendingMirror
	config  MirrorProcessorConfig

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	failures int
	skipped  int
}

func NewMirrorProcessor(pending PendingMirror, config MirrorProcessorConfig) *MirrorProcessor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultMirrorProcessorConfig().PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultMirrorProcessorConfig().BatchSize
	}
	if config.MaxBackoff < config.PollInterval {
		config.MaxBackoff = config.PollInterval
	}
	return &MirrorProcessor{
		pending: pending,
		config:  config,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *MirrorProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("mirror processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Mirror processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *MirrorProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Mirror processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Mirror processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *MirrorProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *MirrorProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.processBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.shouldSkip() {
				continue
			}
			p.processBatch(ctx)
		}
	}
}

// shouldSkip spaces out cycles after failures: 2^failures ticks, capped by
// MaxBackoff.
func (p *MirrorProcessor) shouldSkip() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures == 0 {
		return false
	}
	wait := p.backoffTicks()
	if p.skipped < wait {
		p.skipped++
		return true
	}
	p.skipped = 0
	return false
}

func (p *MirrorProcessor) backoffTicks() int {
	maxTicks := int(p.config.MaxBackoff / p.config.PollInterval)
	ticks := 1
	for i := 1; i < p.failures && ticks < maxTicks; i++ {
		ticks *= 2
	}
	if ticks > maxTicks {
		ticks = maxTicks
	}
	return ticks - 1
}

// processBatch drains up to BatchSize entries and records the outcome.
func (p *MirrorProcessor) processBatch(ctx context.Context) {
	n, err := p.pending.ProcessPending(ctx, p.config.BatchSize)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.failures++
		slog.ErrorContext(ctx, "Mirror batch failed",
			"error", err,
			"consecutive_failures", p.failures)
		return
	}
	p.failures = 0
	if n > 0 {
		slog.DebugContext(ctx, "Mirror batch processed", "count", n)
	}
}
