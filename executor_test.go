package leafrunner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/op-leafrunner/registry"
	"github.com/ethereum-optimism/op-leafrunner/runner"
	"github.com/ethereum-optimism/op-leafrunner/types"
)

// MockTestRunner is a mock implementation of the runner.TestRunner interface
type MockTestRunner struct {
	mock.Mock
}

func (m *MockTestRunner) RunAll(ctx context.Context) (*runner.RunnerResult, error) {
	args := m.Called(ctx)
	result := args.Get(0)
	err := args.Error(1)
	if result == nil {
		return nil, err
	}
	return result.(*runner.RunnerResult), err
}

func newTestRegistry(t *testing.T, paths ...string) *registry.Registry {
	t.Helper()
	reg, err := registry.NewRegistry(registry.Config{
		Log:       log.NewLogger(log.DiscardHandler()),
		SpecPaths: paths,
	})
	require.NoError(t, err)
	return reg
}

func newMockedExecutor(t *testing.T, cfg *Config, mockRunner *MockTestRunner, captured *runner.Config) *DefaultTestExecutor {
	executor := NewDefaultTestExecutor(newTestRegistry(t, "testdata/specs/passing"), cfg, log.NewLogger(log.DiscardHandler()))
	executor.newRunner = func(rc runner.Config) (runner.TestRunner, error) {
		if captured != nil {
			*captured = rc
		}
		return mockRunner, nil
	}
	return executor
}

// TestDefaultTestExecutor_RunTests_Success tests the success path of the DefaultTestExecutor
func TestDefaultTestExecutor_RunTests_Success(t *testing.T) {
	mockRunner := new(MockTestRunner)
	expectedResult := &runner.RunnerResult{
		RunID:  "test-run-1",
		Status: types.TestStatusPass,
		Stats:  types.ResultStats{Total: 5, Passed: 5},
	}
	mockRunner.On("RunAll", mock.Anything).Return(expectedResult, nil)

	filter, err := runner.NewFilter([]string{"shopping/cart"})
	require.NoError(t, err)
	cfg := &Config{
		Concurrency:      3,
		DefaultTimeout:   time.Second,
		QueueAllChildren: true,
		Filter:           filter,
	}
	var captured runner.Config
	executor := newMockedExecutor(t, cfg, mockRunner, &captured)

	result, err := executor.RunTests(context.Background())

	mockRunner.AssertExpectations(t)
	require.NoError(t, err)
	assert.Equal(t, expectedResult, result)

	require.Len(t, captured.Factories, 1)
	assert.Equal(t, "shopping", captured.Factories[0].Name())
	assert.Equal(t, 3, captured.Concurrency)
	assert.Equal(t, time.Second, captured.DefaultTimeout)
	assert.True(t, captured.QueueAllChildren)
	assert.Same(t, filter, captured.Filter)
	assert.Nil(t, captured.Listener)
}

// TestDefaultTestExecutor_RunTests_Error tests the error handling path of the DefaultTestExecutor
func TestDefaultTestExecutor_RunTests_Error(t *testing.T) {
	mockRunner := new(MockTestRunner)
	partial := &runner.RunnerResult{RunID: "partial", Status: types.TestStatusError}
	expectedError := errors.New("failed to instantiate spec")
	mockRunner.On("RunAll", mock.Anything).Return(partial, expectedError)

	executor := newMockedExecutor(t, &Config{ShowProgress: true, ProgressInterval: time.Hour}, mockRunner, nil)

	result, err := executor.RunTests(context.Background())

	mockRunner.AssertExpectations(t)
	assert.ErrorIs(t, err, expectedError)
	assert.Same(t, partial, result, "partial results are passed on")
}

func TestDefaultTestExecutor_RunnerConstructionError(t *testing.T) {
	executor := NewDefaultTestExecutor(newTestRegistry(t, "testdata/specs/passing"), &Config{}, log.NewLogger(log.DiscardHandler()))
	expectedError := errors.New("bad config")
	executor.newRunner = func(runner.Config) (runner.TestRunner, error) {
		return nil, expectedError
	}

	result, err := executor.RunTests(context.Background())
	assert.Nil(t, result)
	assert.ErrorIs(t, err, expectedError)
}

func TestDefaultTestExecutor_NoSpecs(t *testing.T) {
	executor := NewDefaultTestExecutor(newTestRegistry(t), &Config{}, log.NewLogger(log.DiscardHandler()))
	_, err := executor.RunTests(context.Background())
	assert.Error(t, err)
}

// TestDefaultTestExecutor_RealRunner runs the fixture specs end to end
func TestDefaultTestExecutor_RealRunner(t *testing.T) {
	executor := NewDefaultTestExecutor(
		newTestRegistry(t, "testdata/specs"),
		&Config{Concurrency: 2, DefaultTimeout: time.Minute, ShowProgress: true},
		log.NewLogger(log.DiscardHandler()),
	)

	result, err := executor.RunTests(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.TestStatusFail, result.Status)
	assert.Equal(t, 10, result.Stats.Total)
	assert.Equal(t, 7, result.Stats.Passed)
	assert.Equal(t, 1, result.Stats.Failed)
	assert.Equal(t, 1, result.Stats.Errored)
	assert.Equal(t, 1, result.Stats.Skipped)
	assert.Len(t, result.Specs, 2)
}
