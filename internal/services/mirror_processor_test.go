package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakePending struct {
	mu     sync.Mutex
	calls  int
	limits []int
	err    error
}

func (f *fakePending) ProcessPending(ctx context.Context, limit int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.limits = append(f.limits, limit)
	return 0, f.err
}

func (f *fakePending) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestDefaultMirrorProcessorConfig(t *testing.T) {
	config := DefaultMirrorProcessorConfig()

	if config.PollInterval != 30*time.Second {
		t.Errorf("expected PollInterval 30s, got %v", config.PollInterval)
	}
	if config.BatchSize != 50 {
		t.Errorf("expected BatchSize 50, got %d", config.BatchSize)
	}
	if config.MaxBackoff != 5*time.Minute {
		t.Errorf("expected MaxBackoff 5m, got %v", config.MaxBackoff)
	}
}

func TestNewMirrorProcessor_FillsZeroValues(t *testing.T) {
	processor := NewMirrorProcessor(&fakePending{}, MirrorProcessorConfig{})

	if processor.config.PollInterval != 30*time.Second {
		t.Errorf("expected default PollInterval, got %v", processor.config.PollInterval)
	}
	if processor.config.BatchSize != 50 {
		t.Errorf("expected default BatchSize, got %d", processor.config.BatchSize)
	}
	if processor.config.MaxBackoff < processor.config.PollInterval {
		t.Errorf("MaxBackoff %v below PollInterval", processor.config.MaxBackoff)
	}
}

func TestMirrorProcessor_IsRunning(t *testing.T) {
	processor := NewMirrorProcessor(&fakePending{}, DefaultMirrorProcessorConfig())

	if processor.IsRunning() {
		t.Error("processor should not be running initially")
	}
}

func TestMirrorProcessor_StartStop(t *testing.T) {
	pending := &fakePending{}
	config := DefaultMirrorProcessorConfig()
	config.PollInterval = 10 * time.Millisecond
	config.BatchSize = 7
	processor := NewMirrorProcessor(pending, config)

	ctx := context.Background()
	if err := processor.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := processor.Start(ctx); err == nil {
		t.Error("expected error when starting already running processor")
	}

	deadline := time.Now().Add(time.Second)
	for pending.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := processor.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if processor.IsRunning() {
		t.Error("processor should not be running after Stop")
	}
	if pending.callCount() < 2 {
		t.Fatalf("expected at least 2 batches, got %d", pending.callCount())
	}
	pending.mu.Lock()
	defer pending.mu.Unlock()
	if pending.limits[0] != 7 {
		t.Errorf("expected batch limit 7, got %d", pending.limits[0])
	}
}

func TestMirrorProcessor_StopNotRunning(t *testing.T) {
	processor := NewMirrorProcessor(&fakePending{}, DefaultMirrorProcessorConfig())

	if err := processor.Stop(context.Background()); err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}
}

func TestMirrorProcessor_BackoffAfterFailures(t *testing.T) {
	pending := &fakePending{err: errors.New("sheets unavailable")}
	processor := NewMirrorProcessor(pending, MirrorProcessorConfig{
		PollInterval: time.Second,
		BatchSize:    1,
		MaxBackoff:   4 * time.Second,
	})
	ctx := context.Background()

	processor.processBatch(ctx)
	if processor.shouldSkip() {
		t.Fatal("one failure should not skip")
	}

	processor.processBatch(ctx)
	// Two failures wait two ticks: skip one, then run.
	if !processor.shouldSkip() {
		t.Fatal("expected skip after two failures")
	}
	if processor.shouldSkip() {
		t.Fatal("expected run on the second tick")
	}

	for i := 0; i < 5; i++ {
		processor.processBatch(ctx)
	}
	if got := processor.backoffTicks(); got != 3 {
		t.Fatalf("backoff ticks = %d, want capped at 3", got)
	}

	pending.err = nil
	processor.processBatch(ctx)
	if processor.shouldSkip() {
		t.Fatal("success should reset backoff")
	}
}
