package leafrunner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// PeriodicRunner calls a run function once on Start and then every
// interval until stopped. In run-once mode it only makes the first call.
type PeriodicRunner struct {
	interval time.Duration
	runOnce  bool
	logger   log.Logger
	callback func(ctx context.Context) error

	running atomic.Bool
	runs    atomic.Int64
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewPeriodicRunner creates a new PeriodicRunner.
func NewPeriodicRunner(interval time.Duration, runOnce bool, logger log.Logger) *PeriodicRunner {
	return &PeriodicRunner{
		interval: interval,
		runOnce:  runOnce,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// RegisterCallback registers the function called for every run.
func (p *PeriodicRunner) RegisterCallback(callback func(ctx context.Context) error) {
	p.callback = callback
}

// Start makes the first run synchronously and returns its error. Later runs
// happen in the background; their errors are logged.
func (p *PeriodicRunner) Start(ctx context.Context) error {
	if p.callback == nil {
		return errors.New("callback must be registered before starting the periodic runner")
	}
	if !p.runOnce && p.interval <= 0 {
		return errors.New("interval must be positive in continuous mode")
	}

	p.done = make(chan struct{})
	p.running.Store(true)

	if p.runOnce {
		p.logger.Info("Starting periodic runner in run-once mode")
		return p.call(ctx)
	}

	p.logger.Info("Starting periodic runner in continuous mode", "interval", p.interval)

	// Run tests immediately on startup
	if err := p.call(ctx); err != nil {
		return err
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.logger.Debug("Starting periodic test runner goroutine", "interval", p.interval)

		timer := time.NewTimer(p.interval)
		defer timer.Stop()
		for {
			select {
			case <-timer.C:
				if !p.running.Load() {
					p.logger.Debug("Service stopped, exiting periodic test runner")
					return
				}

				p.logger.Info("Running periodic tests")
				if err := p.call(ctx); err != nil {
					p.logger.Error("Error running periodic tests", "error", err)
				}
				p.logger.Info("Next test run scheduled", "interval", p.interval)
				timer.Reset(p.interval)

			case <-p.done:
				p.logger.Debug("Done signal received, stopping periodic test runner")
				return

			case <-ctx.Done():
				p.logger.Debug("Context canceled, stopping periodic test runner")
				p.running.Store(false)
				return
			}
		}
	}()

	return nil
}

func (p *PeriodicRunner) call(ctx context.Context) error {
	p.runs.Add(1)
	return p.callback(ctx)
}

// Runs returns how many runs were started.
func (p *PeriodicRunner) Runs() int64 {
	return p.runs.Load()
}

// Stop prevents further runs. A run in progress is not interrupted.
func (p *PeriodicRunner) Stop() error {
	if !p.running.CompareAndSwap(true, false) {
		p.logger.Debug("Periodic runner already stopped, nothing to do")
		return nil
	}

	p.logger.Debug("Sending done signal to goroutines")
	close(p.done)

	return nil
}

// Stopped returns true if the periodic runner is stopped.
func (p *PeriodicRunner) Stopped() bool {
	return !p.running.Load()
}

// WaitForShutdown blocks until all goroutines have terminated.
func (p *PeriodicRunner) WaitForShutdown(ctx context.Context) error {
	p.logger.Debug("Waiting for all goroutines to terminate")

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Debug("All goroutines terminated successfully")
		return nil
	case <-ctx.Done():
		p.logger.Warn("Timed out waiting for goroutines to terminate", "error", ctx.Err())
		return ctx.Err()
	}
}
