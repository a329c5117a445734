package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/op-leafrunner/spec"
	"github.com/ethereum-optimism/op-leafrunner/types"
)

// RunnerResult captures the outcome of one run over all specs
type RunnerResult struct {
	RunID    string
	Specs    map[string]*SpecResult
	Tests    []*types.TestResult // In the order results were recorded
	Status   types.TestStatus
	Stats    types.ResultStats
	Duration time.Duration
	Faults   []error
}

// TestRunner runs a set of specs
type TestRunner interface {
	RunAll(ctx context.Context) (*RunnerResult, error)
}

// Config holds configuration for creating a new runner
type Config struct {
	Factories        []spec.Factory
	Log              log.Logger
	Listener         Listener      // Receives events of all specs; may be nil
	Concurrency      int           // Number of specs run at the same time; zero means one
	DefaultTimeout   time.Duration // Timeout for tests that set none; zero disables it
	QueueAllChildren bool
	Filter           *Filter
}

// engine implements TestRunner
type engine struct {
	factories        []spec.Factory
	log              log.Logger
	listener         Listener
	concurrency      int
	defaultTimeout   time.Duration
	queueAllChildren bool
	filter           *Filter
	tracer           trace.Tracer
}

var _ TestRunner = (*engine)(nil)

// NewTestRunner creates a new runner over the given specs
func NewTestRunner(cfg Config) (TestRunner, error) {
	if len(cfg.Factories) == 0 {
		return nil, fmt.Errorf("no specs to run")
	}
	seen := make(map[string]struct{}, len(cfg.Factories))
	for _, f := range cfg.Factories {
		if f == nil {
			return nil, fmt.Errorf("spec factory is nil")
		}
		if _, dup := seen[f.Name()]; dup {
			return nil, fmt.Errorf("duplicate spec name %q", f.Name())
		}
		seen[f.Name()] = struct{}{}
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Concurrency > MaxReasonableConcurrency {
		cfg.Log.Warn("Capping spec concurrency", "requested", cfg.Concurrency, "max", MaxReasonableConcurrency)
		cfg.Concurrency = MaxReasonableConcurrency
	}

	cfg.Log.Debug("NewTestRunner()", "specs", len(cfg.Factories), "concurrency", cfg.Concurrency,
		"defaultTimeout", cfg.DefaultTimeout, "queueAllChildren", cfg.QueueAllChildren)

	return &engine{
		factories:        cfg.Factories,
		log:              cfg.Log,
		listener:         NewCompositeListener(NewMetricsListener(), cfg.Listener),
		concurrency:      cfg.Concurrency,
		defaultTimeout:   cfg.DefaultTimeout,
		queueAllChildren: cfg.QueueAllChildren,
		filter:           cfg.Filter,
		tracer:           otel.Tracer(tracerName),
	}, nil
}

// RunAll runs every spec. The result is returned even when err is set, so
// that callers can report what ran before the run was aborted.
func (e *engine) RunAll(ctx context.Context) (*RunnerResult, error) {
	runID := uuid.New().String()
	ctx, span := e.tracer.Start(ctx, fmt.Sprintf("run %s", runID))
	defer span.End()

	start := time.Now()
	e.log.Debug("Running all specs", "run_id", runID)

	store := NewResultStore()
	executor := NewTestExecutor(ExecutorConfig{
		DefaultTimeout: e.defaultTimeout,
		Listener:       e.listener,
		Log:            e.log,
	})

	var mu sync.Mutex
	specResults := make(map[string]*SpecResult, len(e.factories))

	p := pool.New().
		WithErrors().
		WithFirstError().
		WithMaxGoroutines(e.concurrency).
		WithContext(ctx).
		WithCancelOnError()
	for _, factory := range e.factories {
		p.Go(func(ctx context.Context) error {
			scheduler, err := NewLeafScheduler(SchedulerConfig{
				Factory:          factory,
				Executor:         executor,
				Results:          store,
				Listener:         e.listener,
				Log:              e.log,
				QueueAllChildren: e.queueAllChildren,
				Filter:           e.filter,
			})
			if err != nil {
				return err
			}
			specResult, err := scheduler.Run(ctx)
			mu.Lock()
			specResults[factory.Name()] = specResult
			mu.Unlock()
			if err != nil {
				return fmt.Errorf("running spec %s: %w", factory.Name(), err)
			}
			return nil
		})
	}
	runErr := p.Wait()
	if runErr != nil {
		span.RecordError(runErr)
	}

	result := &RunnerResult{
		RunID:    runID,
		Specs:    specResults,
		Tests:    store.Results(),
		Stats:    store.Stats(),
		Duration: time.Since(start),
	}
	result.Stats.StartTime = start
	result.Stats.EndTime = time.Now()
	for _, name := range e.specNames() {
		if sr, ok := specResults[name]; ok {
			result.Faults = append(result.Faults, sr.Faults...)
		}
	}
	result.Status = determineRunnerStatus(result, runErr)

	e.log.Debug("Run finished", "run_id", runID, "status", result.Status, "total", result.Stats.Total,
		"duration", result.Duration, "err", runErr)
	return result, runErr
}

func (e *engine) specNames() []string {
	names := make([]string, 0, len(e.factories))
	for _, f := range e.factories {
		names = append(names, f.Name())
	}
	return names
}

// determineRunnerStatus reports error for a run that was aborted or hit a
// consistency fault, otherwise the status of its results
func determineRunnerStatus(result *RunnerResult, runErr error) types.TestStatus {
	if runErr != nil || len(result.Faults) > 0 {
		return types.TestStatusError
	}
	return result.Stats.Status()
}

// Failures returns the results that failed or errored
func (r *RunnerResult) Failures() []*types.TestResult {
	var failed []*types.TestResult
	for _, t := range r.Tests {
		if t.IsFailure() {
			failed = append(failed, t)
		}
	}
	return failed
}

func (r *RunnerResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s [%s]: %d tests, %d passed, %d failed, %d errored, %d skipped in %v",
		r.RunID, r.Status, r.Stats.Total, r.Stats.Passed, r.Stats.Failed, r.Stats.Errored, r.Stats.Skipped, r.Duration)
	for _, t := range r.Failures() {
		fmt.Fprintf(&b, "\n  %s", t)
	}
	return b.String()
}
