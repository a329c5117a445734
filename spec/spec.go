// Package spec defines how test specifications are declared: a Spec exposes
// its top-level tests, container bodies declare nested tests through a
// TestContext while they run, and a Factory produces fresh instances so that
// each leaf can be executed in isolation.
package spec

import (
	"fmt"

	"github.com/ethereum-optimism/op-leafrunner/types"
)

// Spec is one instance of a test specification.
type Spec interface {
	Name() string
	// TestCases returns the top-level tests in declaration order.
	TestCases() []*TestCase
}

// Factory creates spec instances. Every call must return an instance whose
// bodies have not run yet and which shares no mutable state with earlier
// instances.
type Factory interface {
	Name() string
	New() (Spec, error)
}

// FactoryFunc adapts a constructor closure to the Factory interface.
type FactoryFunc struct {
	name string
	fn   func() (Spec, error)
}

var _ Factory = (*FactoryFunc)(nil)

// NewFactory creates a factory named name backed by fn.
func NewFactory(name string, fn func() (Spec, error)) *FactoryFunc {
	return &FactoryFunc{name: name, fn: fn}
}

func (f *FactoryFunc) Name() string {
	return f.name
}

// New calls the constructor, turning a panic into an error.
func (f *FactoryFunc) New() (s Spec, err error) {
	defer func() {
		if r := recover(); r != nil {
			s = nil
			err = fmt.Errorf("constructor for spec %s panicked: %v", f.name, r)
		}
	}()
	if f.fn == nil {
		return nil, fmt.Errorf("spec %s has no constructor", f.name)
	}
	s, err = f.fn()
	if err == nil && s == nil {
		err = fmt.Errorf("constructor for spec %s returned no instance", f.name)
	}
	return s, err
}

// Root is a Spec built by declaring top-level tests one by one.
type Root struct {
	name  string
	cases []*TestCase
}

var _ Spec = (*Root)(nil)

// NewRoot creates an empty spec named name.
func NewRoot(name string) *Root {
	return &Root{name: name}
}

func (r *Root) Name() string {
	return r.name
}

// Description returns the description of the spec itself.
func (r *Root) Description() types.Description {
	return types.NewDescription(r.name)
}

// TestCases returns a copy of the declared top-level tests.
func (r *Root) TestCases() []*TestCase {
	cp := make([]*TestCase, len(r.cases))
	copy(cp, r.cases)
	return cp
}

// Container declares a top-level container.
func (r *Root) Container(name string, body Body, opts ...Option) *TestCase {
	return r.add(name, types.TestTypeContainer, body, opts)
}

// Test declares a top-level leaf test.
func (r *Root) Test(name string, body Body, opts ...Option) *TestCase {
	return r.add(name, types.TestTypeTest, body, opts)
}

func (r *Root) add(name string, typ types.TestType, body Body, opts []Option) *TestCase {
	tc := NewTestCase(r, r.Description(), name, typ, body, opts...)
	r.cases = append(r.cases, tc)
	return tc
}

// ValidateTopLevel checks the top-level tests of an instance: every test
// must be a valid direct child of the spec and names must be unique.
func ValidateTopLevel(s Spec) error {
	root := types.NewDescription(s.Name())
	seen := make(map[string]struct{})
	for _, tc := range s.TestCases() {
		if err := tc.Validate(root); err != nil {
			return err
		}
		if _, dup := seen[tc.Description.ID()]; dup {
			return fmt.Errorf("duplicate top-level test %q", tc.Description)
		}
		seen[tc.Description.ID()] = struct{}{}
	}
	return nil
}
