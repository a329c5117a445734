package runner

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/op-leafrunner/spec"
	"github.com/ethereum-optimism/op-leafrunner/types"
)

var _ TestExecutor = (*testExecutor)(nil)

// TestExecutor runs test bodies. The calling goroutine is blocked until the
// body returns, times out, or ctx is cancelled, so a replay never runs two
// bodies side by side.
type TestExecutor interface {
	// Execute runs tc with tctx and calls onComplete exactly once with the
	// result, whatever happens inside the body.
	Execute(ctx context.Context, tc *spec.TestCase, tctx spec.TestContext, onComplete func(*types.TestResult))

	// Invoke runs the body of tc without producing a result. It is used for
	// containers that are only replayed to reach a deeper test.
	Invoke(ctx context.Context, tc *spec.TestCase, tctx spec.TestContext) error
}

// ExecutorConfig holds configuration for creating a new executor
type ExecutorConfig struct {
	DefaultTimeout time.Duration // Used when a test sets no timeout; zero disables it
	Listener       Listener
	Log            log.Logger
}

// testExecutor implements TestExecutor
type testExecutor struct {
	defaultTimeout time.Duration
	listener       Listener
	log            log.Logger
}

// NewTestExecutor creates a new test executor
func NewTestExecutor(cfg ExecutorConfig) TestExecutor {
	if cfg.Listener == nil {
		cfg.Listener = NewNoOpListener()
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	return &testExecutor{
		defaultTimeout: cfg.DefaultTimeout,
		listener:       cfg.Listener,
		log:            cfg.Log,
	}
}

// Execute runs a single test and reports its result
func (e *testExecutor) Execute(ctx context.Context, tc *spec.TestCase, tctx spec.TestContext, onComplete func(*types.TestResult)) {
	result := &types.TestResult{
		Description: tc.Description,
		Type:        tc.Type,
	}

	if !tc.Config.Enabled {
		result.Status = types.TestStatusSkip
		result.Reason = tc.Config.Reason
		e.listener.TestFinished(result)
		onComplete(result)
		return
	}

	e.listener.TestStarted(tc)
	e.log.Debug("Running test", "test", tc.Description, "type", tc.Type)

	start := time.Now()
	err := e.Invoke(ctx, tc, tctx)
	result.Duration = time.Since(start)
	classify(result, err)

	e.log.Debug("Test finished", "test", tc.Description, "status", result.Status, "duration", result.Duration)
	e.listener.TestFinished(result)
	onComplete(result)
}

// Invoke runs the body in its own goroutine under the test timeout
func (e *testExecutor) Invoke(ctx context.Context, tc *spec.TestCase, tctx spec.TestContext) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	timeout := e.timeoutFor(tc)
	var (
		bodyCtx context.Context
		cancel  context.CancelFunc
	)
	if timeout > 0 {
		bodyCtx, cancel = context.WithTimeoutCause(ctx, timeout, &TimeoutError{Description: tc.Description, Timeout: timeout})
	} else {
		bodyCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- &PanicError{Value: r, Stack: debug.Stack()}
			}
		}()
		done <- tc.Body(bodyCtx, tctx)
	}()

	select {
	case err := <-done:
		if bodyCtx.Err() != nil &&
			(err == nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
			// The context ended before the body returned; report why it ended
			return context.Cause(bodyCtx)
		}
		return err
	case <-bodyCtx.Done():
		e.log.Warn("Abandoning test body", "test", tc.Description, "cause", context.Cause(bodyCtx))
		return context.Cause(bodyCtx)
	}
}

func (e *testExecutor) timeoutFor(tc *spec.TestCase) time.Duration {
	if tc.Config.Timeout > 0 {
		return tc.Config.Timeout
	}
	return e.defaultTimeout
}

// classify sets status and error of result from the error a body returned
func classify(result *types.TestResult, err error) {
	var timeoutErr *TimeoutError
	switch {
	case err == nil:
		result.Status = types.TestStatusPass
	case errors.As(err, &timeoutErr):
		result.Status = types.TestStatusError
		result.TimedOut = true
		result.Error = err
	case spec.IsAssertionError(err):
		result.Status = types.TestStatusFail
		result.Error = err
	default:
		result.Status = types.TestStatusError
		result.Error = err
	}
}
