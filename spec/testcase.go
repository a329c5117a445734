package spec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum-optimism/op-leafrunner/types"
)

// ErrNestedInLeaf is returned when a leaf test tries to declare children.
var ErrNestedInLeaf = errors.New("leaf tests cannot declare nested tests")

// Body is the executable part of a test. Container bodies declare their
// children through t; leaf bodies only perform checks.
type Body func(ctx context.Context, t TestContext) error

// TestContext is handed to a running body. Its only capability is accepting
// the children the body declares; what happens to them depends on how the
// runner is traversing the tree.
type TestContext interface {
	// Description of the test whose body is running.
	Description() types.Description
	// Spec is the instance the running test belongs to.
	Spec() Spec
	// Register hands a declared child to the runner. It may execute the
	// child before returning.
	Register(ctx context.Context, tc *TestCase) error
}

// Config holds per-test settings.
type Config struct {
	Enabled bool
	Reason  string        // Why the test is disabled
	Timeout time.Duration // Zero means the runner default
}

// Option customises a test while it is declared.
type Option func(*Config)

// WithTimeout overrides the runner default timeout for one test.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// Disabled marks a test as skipped; its body never runs.
func Disabled(reason string) Option {
	return func(c *Config) {
		c.Enabled = false
		c.Reason = reason
	}
}

// TestCase is a single declared test bound to one spec instance.
type TestCase struct {
	Description types.Description
	Spec        Spec
	Type        types.TestType
	Body        Body
	Config      Config
}

// NewTestCase declares a test named name below parent.
func NewTestCase(s Spec, parent types.Description, name string, typ types.TestType, body Body, opts ...Option) *TestCase {
	cfg := Config{Enabled: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &TestCase{
		Description: parent.Append(name),
		Spec:        s,
		Type:        typ,
		Body:        body,
		Config:      cfg,
	}
}

// IsContainer reports whether the test may declare children.
func (tc *TestCase) IsContainer() bool {
	return tc.Type == types.TestTypeContainer
}

func (tc *TestCase) String() string {
	return fmt.Sprintf("%s (%s)", tc.Description, tc.Type)
}

// Validate checks that tc is a well formed direct child of parent.
func (tc *TestCase) Validate(parent types.Description) error {
	if tc == nil {
		return errors.New("test case is nil")
	}
	if tc.Body == nil {
		return fmt.Errorf("test %q has no body", tc.Description)
	}
	if err := types.ValidateName(tc.Description.Name()); err != nil {
		return fmt.Errorf("invalid test %q: %w", tc.Description, err)
	}
	if !parent.IsParentOf(tc.Description) {
		return fmt.Errorf("test %q is not a direct child of %q", tc.Description, parent)
	}
	if tc.Type != types.TestTypeContainer && tc.Type != types.TestTypeTest {
		return fmt.Errorf("test %q has unknown type %q", tc.Description, tc.Type)
	}
	return nil
}

// Container declares a nested container from inside a running body.
func Container(ctx context.Context, t TestContext, name string, body Body, opts ...Option) error {
	return t.Register(ctx, NewTestCase(t.Spec(), t.Description(), name, types.TestTypeContainer, body, opts...))
}

// Test declares a nested leaf test from inside a running body.
func Test(ctx context.Context, t TestContext, name string, body Body, opts ...Option) error {
	return t.Register(ctx, NewTestCase(t.Spec(), t.Description(), name, types.TestTypeTest, body, opts...))
}
