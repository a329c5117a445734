// Package leafrunner runs instance-per-leaf specs as a service: once, or
// periodically, printing a results table and reporting metrics after each
// run.
package leafrunner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/ethereum-optimism/optimism/op-service/cliapp"

	"github.com/ethereum-optimism/op-leafrunner/exitcodes"
	"github.com/ethereum-optimism/op-leafrunner/registry"
	"github.com/ethereum-optimism/op-leafrunner/runner"
	"github.com/ethereum-optimism/op-leafrunner/service"
	"github.com/ethereum-optimism/op-leafrunner/types"
)

// leafRunner implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &leafRunner{}

type leafRunner struct {
	config    *Config
	version   string
	registry  *registry.Registry
	executor  TestExecutor
	formatter ResultFormatter
	reporter  MetricsReporter
	periodic  *PeriodicRunner
	service   *service.Service

	mu     sync.Mutex
	result *runner.RunnerResult

	running atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*leafRunner, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.Log == nil {
		return nil, errors.New("config.Log is required")
	}

	config.Log.Debug("Creating leaf runner with config",
		"specs", config.SpecPaths,
		"concurrency", config.Concurrency,
		"defaultTimeout", config.DefaultTimeout,
		"queueAllChildren", config.QueueAllChildren,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce)

	reg, err := registry.NewRegistry(registry.Config{
		Log:       config.Log,
		SpecPaths: config.SpecPaths,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}
	if len(reg.GetFactories()) == 0 {
		return nil, fmt.Errorf("no specs found in %v", config.SpecPaths)
	}

	if shutdownCallback == nil {
		shutdownCallback = func(error) {}
	}

	l := &leafRunner{
		config:           config,
		version:          version,
		registry:         reg,
		executor:         NewDefaultTestExecutor(reg, config, config.Log),
		formatter:        NewConsoleResultFormatter(config.Log),
		reporter:         NewDefaultMetricsReporter(),
		periodic:         NewPeriodicRunner(config.RunInterval, config.RunOnce, config.Log),
		service:          service.New(config.Service, config.Log),
		shutdownCallback: shutdownCallback,
	}
	l.periodic.RegisterCallback(l.runTests)
	config.Log.Info("leafrunner.New: created registry", "specs", len(reg.GetFactories()), "version", version)
	return l, nil
}

// Start runs the specs once, then periodically unless in run-once mode.
// Start implements the cliapp.Lifecycle interface.
func (l *leafRunner) Start(ctx context.Context) (err error) {
	// Set up panic recovery to ensure we exit with code 2 for runtime errors
	defer func() {
		if r := recover(); r != nil {
			l.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	if err := l.service.Start(ctx); err != nil {
		return NewRuntimeError(err)
	}
	l.running.Store(true)
	defer func() {
		if err != nil {
			l.running.Store(false)
			if shutdownErr := l.service.Shutdown(context.Background()); shutdownErr != nil {
				l.config.Log.Warn("Failed to shut down service", "error", shutdownErr)
			}
		}
	}()

	if l.config.RunOnce {
		l.config.Log.Info("Starting op-leafrunner in run-once mode")
	} else {
		l.config.Log.Info("Starting op-leafrunner in continuous mode", "interval", l.config.RunInterval)
	}

	if err := l.periodic.Start(ctx); err != nil {
		l.config.Log.Error("Runtime error running tests", "error", err)
		return err
	}

	if !l.config.RunOnce {
		l.config.Log.Debug("op-leafrunner started successfully")
		return nil
	}

	l.config.Log.Info("Tests completed, exiting (run-once mode)")
	result := l.Result()
	switch {
	case result == nil:
		return NewRuntimeError(errors.New("run finished without a result"))
	case result.Status == types.TestStatusError && len(result.Faults) > 0:
		return NewRuntimeError(fmt.Errorf("runner consistency faults: %w", errors.Join(result.Faults...)))
	case result.Status == types.TestStatusFail || result.Status == types.TestStatusError:
		l.config.Log.Warn("Run-once test run completed with failures, returning exit code 1")
		return NewTestFailureError(result.String())
	}

	// Only need to call this when we're in run-once mode and all tests passed
	go func() {
		l.shutdownCallback(nil)
	}()
	return nil
}

// runTests runs all specs and processes the results
func (l *leafRunner) runTests(ctx context.Context) error {
	result, err := l.executor.RunTests(ctx)
	if result != nil {
		l.mu.Lock()
		l.result = result
		l.mu.Unlock()

		if fmtErr := l.formatter.FormatResults(result); fmtErr != nil {
			l.config.Log.Warn("Failed to print results", "error", fmtErr)
		}
		l.reporter.ReportResults(result.RunID, result)
		l.config.Log.Info("Test run completed", "run_id", result.RunID, "status", result.Status)
	}
	if err != nil {
		// This is a runtime error (not a test failure)
		return NewRuntimeError(err)
	}
	return nil
}

// Result returns the result of the latest run, or nil before the first one.
func (l *leafRunner) Result() *runner.RunnerResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.result
}

// Stop stops the op-leafrunner service.
// Stop implements the cliapp.Lifecycle interface.
func (l *leafRunner) Stop(ctx context.Context) error {
	l.config.Log.Info("Stopping op-leafrunner")

	if !l.running.CompareAndSwap(true, false) {
		l.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}

	var errs []error
	errs = append(errs, l.periodic.Stop())
	errs = append(errs, l.periodic.WaitForShutdown(ctx))
	errs = append(errs, l.service.Shutdown(ctx))

	l.config.Log.Info("op-leafrunner stopped")
	return errors.Join(errs...)
}

// Stopped returns true if the op-leafrunner service is stopped.
// Stopped implements the cliapp.Lifecycle interface.
func (l *leafRunner) Stopped() bool {
	return !l.running.Load()
}
