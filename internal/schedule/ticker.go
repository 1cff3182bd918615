// Package schedule runs a function periodically on behalf of a screen.
package schedule

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Func is one run of a periodic task. ctx is cancelled when the run is
// superseded by the next tick or the ticker stops.
type Func func(ctx context.Context)

// Ticker runs fn immediately on Start and then every interval. A new tick
// cancels the previous run instead of waiting for it.
type Ticker struct {
	name     string
	interval time.Duration
	fn       Func
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewTicker(name string, interval time.Duration, fn Func, logger *zap.Logger) *Ticker {
	return &Ticker{name: name, interval: interval, fn: fn, logger: logger}
}

// Start stops any previous schedule and begins a new one bound to ctx.
func (t *Ticker) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()

	ctx, t.cancel = context.WithCancel(ctx)
	t.done = make(chan struct{})
	go t.loop(ctx, t.done)
	t.logger.Debug("schedule started", zap.String("task", t.name), zap.Duration("interval", t.interval))
}

// Stop cancels the schedule and waits for the in-flight run to return.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Running reports whether a schedule is active.
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

func (t *Ticker) stopLocked() {
	if t.cancel == nil {
		return
	}
	t.cancel()
	<-t.done
	t.cancel = nil
	t.done = nil
}

func (t *Ticker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	var (
		wg        sync.WaitGroup
		cancelRun context.CancelFunc
	)
	run := func() {
		if cancelRun != nil {
			cancelRun()
		}
		var runCtx context.Context
		runCtx, cancelRun = context.WithCancel(ctx)
		wg.Go(func() { t.fn(runCtx) })
	}
	defer func() {
		cancelRun()
		wg.Wait()
	}()

	run()
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			run()
		case <-ctx.Done():
			return
		}
	}
}
