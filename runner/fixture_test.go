package runner

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/op-leafrunner/spec"
	"github.com/ethereum-optimism/op-leafrunner/types"
)

// node describes one test of a fixture tree
type node struct {
	name      string
	children  []node
	container bool // Container even without children

	failBefore error // Returned before any child is declared
	failAfter  error // Returned after all children are declared
	failOnRun  int   // With failBefore: only fail on this run of the body (1-based); zero fails every run
	firstOnly  bool  // Only declared while the parent runs for the first time
	body       spec.Body
	opts       []spec.Option
}

func leaf(name string, opts ...spec.Option) node {
	return node{name: name, opts: opts}
}

func container(name string, children ...node) node {
	return node{name: name, children: children, container: true}
}

func (n node) isContainer() bool {
	return n.container || len(n.children) > 0
}

// fixture is a spec whose instances record every body execution
type fixture struct {
	t     *testing.T
	name  string
	roots []node

	newErr   error
	newAfter int // With newErr: the first instances succeed up to this count

	mu        sync.Mutex
	instances int
	runs      map[string]int
	order     []string
}

func newFixture(t *testing.T, name string, roots ...node) *fixture {
	return &fixture{t: t, name: name, roots: roots, runs: make(map[string]int)}
}

func (f *fixture) factory() spec.Factory {
	return spec.NewFactory(f.name, func() (spec.Spec, error) {
		f.mu.Lock()
		f.instances++
		n := f.instances
		f.mu.Unlock()
		if f.newErr != nil && n > f.newAfter {
			return nil, f.newErr
		}

		root := spec.NewRoot(f.name)
		for _, r := range f.roots {
			if r.isContainer() {
				root.Container(r.name, f.bodyFor(r), r.opts...)
			} else {
				root.Test(r.name, f.bodyFor(r), r.opts...)
			}
		}
		return root, nil
	})
}

func (f *fixture) bodyFor(n node) spec.Body {
	return func(ctx context.Context, t spec.TestContext) error {
		run := f.mark(t.Description())
		if n.body != nil {
			return n.body(ctx, t)
		}
		if n.failBefore != nil && (n.failOnRun == 0 || n.failOnRun == run) {
			return n.failBefore
		}
		for _, c := range n.children {
			if c.firstOnly && run > 1 {
				continue
			}
			var err error
			if c.isContainer() {
				err = spec.Container(ctx, t, c.name, f.bodyFor(c), c.opts...)
			} else {
				err = spec.Test(ctx, t, c.name, f.bodyFor(c), c.opts...)
			}
			if err != nil {
				return err
			}
		}
		return n.failAfter
	}
}

func (f *fixture) mark(d types.Description) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := d.FullName()
	f.runs[key]++
	f.order = append(f.order, key)
	return f.runs[key]
}

func (f *fixture) runsOf(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs[path]
}

func (f *fixture) instanceCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.instances
}

// desc builds a description of the fixture spec from a slash separated path
func (f *fixture) desc(path string) types.Description {
	d, err := types.ParseDescription(f.name + "/" + path)
	require.NoError(f.t, err)
	return d
}

// recordingListener keeps every event it receives
type recordingListener struct {
	mu       sync.Mutex
	replays  []types.Description
	finished []error
	started  []types.Description
	results  []*types.TestResult
}

func (l *recordingListener) SpecStarted(_ string, target types.Description) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.replays = append(l.replays, target)
}

func (l *recordingListener) SpecFinished(_ string, _ types.Description, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finished = append(l.finished, err)
}

func (l *recordingListener) TestStarted(tc *spec.TestCase) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = append(l.started, tc.Description)
}

func (l *recordingListener) TestFinished(result *types.TestResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results = append(l.results, result)
}

type schedulerOption func(*SchedulerConfig)

func withQueueAllChildren() schedulerOption {
	return func(cfg *SchedulerConfig) {
		cfg.QueueAllChildren = true
	}
}

func withFilter(t *testing.T, exprs ...string) schedulerOption {
	return func(cfg *SchedulerConfig) {
		f, err := NewFilter(exprs)
		require.NoError(t, err)
		cfg.Filter = f
	}
}

func withResults(store *ResultStore) schedulerOption {
	return func(cfg *SchedulerConfig) {
		cfg.Results = store
	}
}

func withExecutor(e TestExecutor) schedulerOption {
	return func(cfg *SchedulerConfig) {
		cfg.Executor = e
	}
}

// runFixture runs f with a fresh scheduler and returns its outputs
func runFixture(t *testing.T, ctx context.Context, f *fixture, opts ...schedulerOption) (*SpecResult, *ResultStore, *recordingListener, error) {
	t.Helper()
	listener := &recordingListener{}
	cfg := SchedulerConfig{
		Factory:  f.factory(),
		Listener: listener,
		Log:      log.NewLogger(log.DiscardHandler()),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Results == nil {
		cfg.Results = NewResultStore()
	}
	if cfg.Executor == nil {
		cfg.Executor = NewTestExecutor(ExecutorConfig{Listener: listener, Log: cfg.Log})
	}
	s, err := NewLeafScheduler(cfg)
	require.NoError(t, err)
	result, err := s.Run(ctx)
	return result, cfg.Results, listener, err
}

func requireResult(t *testing.T, store *ResultStore, d types.Description) *types.TestResult {
	t.Helper()
	result, ok := store.Get(d)
	require.True(t, ok, "no result for %s", d)
	return result
}

var errBoom = errors.New("boom")
