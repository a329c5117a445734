package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/op-leafrunner/metrics"
	"github.com/ethereum-optimism/op-leafrunner/spec"
	"github.com/ethereum-optimism/op-leafrunner/types"
)

// SpecResult summarises the run of one spec
type SpecResult struct {
	Spec           string
	Instantiations int
	Replays        int
	Faults         []error // Consistency faults, never test failures
	Duration       time.Duration
	Stats          types.ResultStats
}

// SchedulerConfig holds configuration for creating a new leaf scheduler
type SchedulerConfig struct {
	Factory  spec.Factory
	Executor TestExecutor
	Results  *ResultStore // Shared with other schedulers of the same run
	Listener Listener
	Log      log.Logger

	// QueueAllChildren gives every discovered child its own replay instead
	// of running the first one inline.
	QueueAllChildren bool
	Filter           *Filter
}

// LeafScheduler runs every leaf of one spec on a fresh instance. Containers
// are re-executed on each replay only to reach the current target.
type LeafScheduler struct {
	factory          spec.Factory
	executor         TestExecutor
	results          *ResultStore
	listener         Listener
	log              log.Logger
	queueAllChildren bool
	filter           *Filter
	queue            *pendingQueue
	tracer           trace.Tracer

	mu             sync.Mutex
	instantiations int
	replays        int
	faults         []error
	stats          types.ResultStats
}

// replay is the state of walking one fresh instance towards one target.
type replay struct {
	target     types.Description
	targetType types.TestType

	// settled is set once the target ran or a result was attributed to it
	settled atomic.Bool

	mu       sync.Mutex
	closed   atomic.Bool
	inflight sync.WaitGroup
}

// enter registers a body run with the replay. It fails once the replay is
// finished.
func (r *replay) enter() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed.Load() {
		return false
	}
	r.inflight.Add(1)
	return true
}

func (r *replay) exit() {
	r.inflight.Done()
}

// finish closes the replay and waits for bodies still unwinding after a
// timeout or cancellation.
func (r *replay) finish() {
	r.mu.Lock()
	r.closed.Store(true)
	r.mu.Unlock()
	r.inflight.Wait()
}

// NewLeafScheduler creates a scheduler for one spec
func NewLeafScheduler(cfg SchedulerConfig) (*LeafScheduler, error) {
	if cfg.Factory == nil {
		return nil, fmt.Errorf("spec factory is required")
	}
	if cfg.Factory.Name() == "" {
		return nil, fmt.Errorf("spec factory has no name")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Listener == nil {
		cfg.Listener = NewNoOpListener()
	}
	if cfg.Executor == nil {
		cfg.Executor = NewTestExecutor(ExecutorConfig{
			DefaultTimeout: DefaultTestTimeout,
			Listener:       cfg.Listener,
			Log:            cfg.Log,
		})
	}
	if cfg.Results == nil {
		cfg.Results = NewResultStore()
	}

	return &LeafScheduler{
		factory:          cfg.Factory,
		executor:         cfg.Executor,
		results:          cfg.Results,
		listener:         cfg.Listener,
		log:              cfg.Log.New("spec", cfg.Factory.Name()),
		queueAllChildren: cfg.QueueAllChildren,
		filter:           cfg.Filter,
		queue:            newPendingQueue(),
		tracer:           otel.Tracer(tracerName),
	}, nil
}

// Run executes the spec until no pending test is left. Only an
// instantiation failure or cancellation of ctx stops it early; the returned
// SpecResult is valid in both cases.
func (s *LeafScheduler) Run(ctx context.Context) (*SpecResult, error) {
	name := s.factory.Name()
	ctx, span := s.tracer.Start(ctx, fmt.Sprintf("spec %s", name))
	defer span.End()

	start := time.Now()
	s.mu.Lock()
	s.stats = types.ResultStats{StartTime: start}
	s.mu.Unlock()

	err := s.run(ctx)
	if err != nil {
		span.RecordError(err)
	}

	result := s.result(time.Since(start))
	s.log.Debug("Spec finished", "replays", result.Replays, "instantiations", result.Instantiations,
		"total", result.Stats.Total, "faults", len(result.Faults), "err", err)
	return result, err
}

func (s *LeafScheduler) run(ctx context.Context) error {
	name := s.factory.Name()
	if !s.filter.IncludesSpec(name) {
		s.log.Debug("Spec excluded by filter")
		return nil
	}

	first, err := s.instantiate()
	if err != nil {
		return err
	}
	for _, tc := range first.TestCases() {
		if !s.filter.Includes(tc.Description) {
			continue
		}
		if !tc.Config.Enabled {
			s.skip(tc)
			continue
		}
		s.enqueue(tc)
	}

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrRunAborted, err)
		}
		next, ok := s.queue.Pop()
		if !ok {
			metrics.RecordPending(name, 0)
			return nil
		}
		metrics.RecordPending(name, s.queue.Len())
		if s.results.Has(next.Description) {
			continue
		}
		if err := s.replay(ctx, next); err != nil {
			return err
		}
	}
}

// instantiate creates and checks a fresh spec instance
func (s *LeafScheduler) instantiate() (spec.Spec, error) {
	name := s.factory.Name()
	inst, err := s.factory.New()
	if err == nil {
		if inst.Name() != name {
			err = fmt.Errorf("instance is named %q, not %q", inst.Name(), name)
		} else {
			err = spec.ValidateTopLevel(inst)
		}
	}
	metrics.RecordInstantiation(name, err)
	if err != nil {
		s.log.Error("Failed to instantiate spec", "err", err)
		return nil, &InstantiationError{Spec: name, Err: err}
	}

	s.mu.Lock()
	s.instantiations++
	s.mu.Unlock()
	return inst, nil
}

// replay walks a fresh instance from its roots towards target
func (s *LeafScheduler) replay(ctx context.Context, target pendingTest) error {
	ctx, span := s.tracer.Start(ctx, fmt.Sprintf("replay %s", target.Description.FullName()))
	defer span.End()

	inst, err := s.instantiate()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.replays++
	s.mu.Unlock()
	metrics.RecordReplay(s.factory.Name())

	r := &replay{target: target.Description, targetType: target.Type}
	s.log.Debug("Replaying spec", "target", target.Description, "depth", target.Description.Depth())
	s.listener.SpecStarted(s.factory.Name(), target.Description)

	for _, tc := range inst.TestCases() {
		if err := s.locate(ctx, r, tc); err != nil {
			s.log.Debug("Stopped replay", "target", target.Description, "err", err)
			break
		}
	}
	r.finish()

	if ctx.Err() == nil && !r.settled.Load() {
		s.record(&types.TestResult{
			Description: target.Description,
			Type:        target.Type,
			Status:      types.TestStatusError,
			Error:       fmt.Errorf("%w: %s", ErrTargetNotFound, target.Description),
		}, true)
	}

	s.listener.SpecFinished(s.factory.Name(), target.Description, ctx.Err())
	return nil
}

// locate decides what a declared test means for the current replay: run it
// if it is the target, walk through it if it leads to the target, and skip
// it otherwise.
func (s *LeafScheduler) locate(ctx context.Context, r *replay, tc *spec.TestCase) error {
	switch {
	case tc.Description.Equal(r.target):
		r.settled.Store(true)
		return s.execute(ctx, r, tc)
	case tc.Description.IsAncestorOf(r.target):
		return s.executeAncestor(ctx, r, tc)
	default:
		return nil
	}
}

// execute runs tc for a result with a discovery context
func (s *LeafScheduler) execute(ctx context.Context, r *replay, tc *spec.TestCase) error {
	if !r.enter() {
		return fmt.Errorf("%w: %s", ErrContextClosed, tc.Description)
	}
	defer r.exit()

	tctx := newDiscoveryContext(s, r, tc)
	s.executor.Execute(ctx, tc, tctx, func(result *types.TestResult) {
		s.record(result, false)
	})
	tctx.close()
	return ctx.Err()
}

// executeAncestor runs a container on the path to the target. If its body
// fails before the target was reached, the failure is recorded for the
// target.
func (s *LeafScheduler) executeAncestor(ctx context.Context, r *replay, tc *spec.TestCase) error {
	if !r.enter() {
		return fmt.Errorf("%w: %s", ErrContextClosed, tc.Description)
	}
	defer r.exit()

	tctx := newLocatingContext(s, r, tc)
	err := s.executor.Invoke(ctx, tc, tctx)
	tctx.close()

	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if !r.settled.CompareAndSwap(false, true) {
		s.log.Debug("Ancestor failed after target ran", "ancestor", tc.Description, "err", err)
		return nil
	}

	s.log.Debug("Ancestor failed before reaching target", "ancestor", tc.Description, "target", r.target, "err", err)
	result := &types.TestResult{
		Description: r.target,
		Type:        r.targetType,
	}
	classify(result, &AncestorFailureError{Ancestor: tc.Description, Err: err})
	s.record(result, true)
	return nil
}

// skip records a disabled test without running it
func (s *LeafScheduler) skip(tc *spec.TestCase) {
	if s.results.Has(tc.Description) {
		return
	}
	s.record(&types.TestResult{
		Description: tc.Description,
		Type:        tc.Type,
		Status:      types.TestStatusSkip,
		Reason:      tc.Config.Reason,
	}, true)
}

// enqueue schedules tc for its own replay
func (s *LeafScheduler) enqueue(tc *spec.TestCase) {
	if s.results.Has(tc.Description) {
		return
	}
	if s.queue.Push(tc.Description, tc.Type) {
		s.log.Debug("Queued test", "test", tc.Description, "pending", s.queue.Len())
		metrics.RecordPending(s.factory.Name(), s.queue.Len())
	}
}

// record stores result. The executor reports its own results to the
// listener; notify is set for results the scheduler produces itself.
func (s *LeafScheduler) record(result *types.TestResult, notify bool) {
	if err := s.results.Record(result); err != nil {
		s.log.Error("Consistency fault", "err", err)
		metrics.RecordErrorDetails("consistency_"+s.factory.Name(), err)
		s.mu.Lock()
		s.faults = append(s.faults, err)
		s.mu.Unlock()
		return
	}
	s.mu.Lock()
	s.stats.Add(result)
	s.mu.Unlock()
	if notify {
		s.listener.TestFinished(result)
	}
}

func (s *LeafScheduler) result(d time.Duration) *SpecResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.stats
	stats.EndTime = time.Now()
	return &SpecResult{
		Spec:           s.factory.Name(),
		Instantiations: s.instantiations,
		Replays:        s.replays,
		Faults:         append([]error(nil), s.faults...),
		Duration:       d,
		Stats:          stats,
	}
}

// HasFaults reports whether the run hit a consistency fault
func (r *SpecResult) HasFaults() bool {
	return len(r.Faults) > 0
}

// Err joins the consistency faults of the run, if any
func (r *SpecResult) Err() error {
	return errors.Join(r.Faults...)
}
