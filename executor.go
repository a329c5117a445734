package leafrunner

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/op-leafrunner/registry"
	"github.com/ethereum-optimism/op-leafrunner/runner"
)

// TestExecutor is responsible for running tests.
type TestExecutor interface {
	RunTests(ctx context.Context) (*runner.RunnerResult, error)
}

// RunnerFactory builds the runner used for one run.
type RunnerFactory func(cfg runner.Config) (runner.TestRunner, error)

// DefaultTestExecutor implements the TestExecutor interface. Each run picks
// up the current spec files from the registry.
type DefaultTestExecutor struct {
	registry  *registry.Registry
	config    *Config
	logger    log.Logger
	newRunner RunnerFactory
}

// NewDefaultTestExecutor creates a new DefaultTestExecutor.
func NewDefaultTestExecutor(reg *registry.Registry, config *Config, logger log.Logger) *DefaultTestExecutor {
	return &DefaultTestExecutor{
		registry:  reg,
		config:    config,
		logger:    logger,
		newRunner: runner.NewTestRunner,
	}
}

// RunTests runs all specs and returns the results. A partial result is
// returned together with the error when the run was aborted.
func (e *DefaultTestExecutor) RunTests(ctx context.Context) (*runner.RunnerResult, error) {
	if err := e.registry.Reload(); err != nil {
		e.logger.Warn("Failed to reload specs, running the previous ones", "error", err)
	}
	factories := e.registry.GetFactories()
	if len(factories) == 0 {
		return nil, errors.New("no specs found")
	}

	var listener runner.Listener
	if e.config.ShowProgress {
		progress := runner.NewConsoleProgressListener(e.logger, e.config.ProgressInterval)
		defer progress.Stop()
		listener = progress
	}

	testRunner, err := e.newRunner(runner.Config{
		Factories:        factories,
		Log:              e.logger,
		Listener:         listener,
		Concurrency:      e.config.Concurrency,
		DefaultTimeout:   e.config.DefaultTimeout,
		QueueAllChildren: e.config.QueueAllChildren,
		Filter:           e.config.Filter,
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Running all tests...", "specs", len(factories))
	result, err := testRunner.RunAll(ctx)
	if err != nil {
		e.logger.Error("Error running tests", "error", err)
		return result, err
	}
	e.logger.Info("Test run completed", "run_id", result.RunID, "status", result.Status)
	return result, nil
}
