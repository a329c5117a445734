package specfile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum-optimism/op-leafrunner/spec"
)

// instance is one construction of a document. All bodies of an instance
// share its counter.
type instance struct {
	*spec.Root

	mu      sync.Mutex
	counter int
}

// Counter returns the current value of the instance counter.
func (i *instance) Counter() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.counter
}

func (i *instance) add(n int) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.counter += n
	return i.counter
}

// Factory returns a spec factory building fresh instances of doc.
func Factory(doc *Document) spec.Factory {
	return spec.NewFactory(doc.Name, func() (spec.Spec, error) {
		return newInstance(doc), nil
	})
}

func newInstance(doc *Document) *instance {
	inst := &instance{Root: spec.NewRoot(doc.Name)}
	for i := range doc.Tests {
		n := &doc.Tests[i]
		if n.IsContainer() {
			inst.Container(n.Name, inst.body(n), options(n)...)
		} else {
			inst.Test(n.Name, inst.body(n), options(n)...)
		}
	}
	return inst
}

func options(n *Node) []spec.Option {
	var opts []spec.Option
	if n.Timeout > 0 {
		opts = append(opts, spec.WithTimeout(n.Timeout.Std()))
	}
	if !n.IsEnabled() {
		opts = append(opts, spec.Disabled(n.Reason))
	}
	return opts
}

func (i *instance) body(n *Node) spec.Body {
	return func(ctx context.Context, t spec.TestContext) error {
		if n.Sleep > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(n.Sleep.Std()):
			}
		}

		counter := i.add(n.Increment)
		if n.ExpectCounter != nil && counter != *n.ExpectCounter {
			return spec.Fail("counter is %d, expected %d", counter, *n.ExpectCounter)
		}
		if n.Panic != "" {
			panic(n.Panic)
		}

		for j := range n.Children {
			c := &n.Children[j]
			var err error
			if c.IsContainer() {
				err = spec.Container(ctx, t, c.Name, i.body(c), options(c)...)
			} else {
				err = spec.Test(ctx, t, c.Name, i.body(c), options(c)...)
			}
			if err != nil {
				return fmt.Errorf("declaring %s: %w", c.Name, err)
			}
		}

		switch {
		case n.Fail != "":
			return spec.Fail("%s", n.Fail)
		case n.Error != "":
			return errors.New(n.Error)
		}
		return nil
	}
}
