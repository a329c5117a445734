package runner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ethereum-optimism/op-leafrunner/spec"
	"github.com/ethereum-optimism/op-leafrunner/types"
)

var (
	_ spec.TestContext = (*discoveryContext)(nil)
	_ spec.TestContext = (*locatingContext)(nil)
)

// contextBase holds what both context strategies share: the running test,
// the replay it belongs to, and validation of declared children.
type contextBase struct {
	s       *LeafScheduler
	replay  *replay
	current *spec.TestCase
	closed  atomic.Bool

	mu   sync.Mutex
	seen map[string]struct{}
}

func newContextBase(s *LeafScheduler, r *replay, current *spec.TestCase) contextBase {
	return contextBase{
		s:       s,
		replay:  r,
		current: current,
		seen:    make(map[string]struct{}),
	}
}

func (c *contextBase) Description() types.Description {
	return c.current.Description
}

func (c *contextBase) Spec() spec.Spec {
	return c.current.Spec
}

// close rejects registrations from a body the runner no longer waits for.
func (c *contextBase) close() {
	c.closed.Store(true)
}

// accept validates a declared child before any strategy acts on it.
func (c *contextBase) accept(child *spec.TestCase) error {
	if c.closed.Load() || c.replay.closed.Load() {
		return fmt.Errorf("%w: %s", ErrContextClosed, c.current.Description)
	}
	if !c.current.IsContainer() {
		return fmt.Errorf("%w: %s", spec.ErrNestedInLeaf, c.current.Description)
	}
	if err := child.Validate(c.current.Description); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	id := child.Description.ID()
	if _, dup := c.seen[id]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateTest, child.Description)
	}
	c.seen[id] = struct{}{}
	return nil
}

// discoveryContext is used for the target of a replay and for the tests it
// runs inline. The first child declared under the current test runs right
// away on the same instance; later siblings are queued for their own replay.
type discoveryContext struct {
	contextBase
	ranFirst bool
}

func newDiscoveryContext(s *LeafScheduler, r *replay, current *spec.TestCase) *discoveryContext {
	return &discoveryContext{contextBase: newContextBase(s, r, current)}
}

func (c *discoveryContext) Register(ctx context.Context, child *spec.TestCase) error {
	if err := c.accept(child); err != nil {
		return err
	}
	if !c.s.filter.Includes(child.Description) {
		c.s.log.Debug("Test excluded by filter", "test", child.Description)
		return nil
	}
	if !child.Config.Enabled {
		c.s.skip(child)
		return nil
	}

	c.mu.Lock()
	inline := !c.ranFirst && !c.s.queueAllChildren
	if inline {
		c.ranFirst = true
	}
	c.mu.Unlock()

	if inline {
		return c.s.execute(ctx, c.replay, child)
	}
	c.s.enqueue(child)
	return nil
}

// locatingContext is used for strict ancestors of the target. Declared
// children are routed back into the location algorithm so only the branch
// holding the target is entered.
type locatingContext struct {
	contextBase
}

func newLocatingContext(s *LeafScheduler, r *replay, current *spec.TestCase) *locatingContext {
	return &locatingContext{contextBase: newContextBase(s, r, current)}
}

func (c *locatingContext) Register(ctx context.Context, child *spec.TestCase) error {
	if err := c.accept(child); err != nil {
		return err
	}
	return c.s.locate(ctx, c.replay, child)
}
