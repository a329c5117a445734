package runner

import (
	"github.com/ethereum-optimism/op-leafrunner/metrics"
	"github.com/ethereum-optimism/op-leafrunner/spec"
	"github.com/ethereum-optimism/op-leafrunner/types"
)

// Listener observes a run. Calls may come from several goroutines when specs
// run concurrently. Listeners cannot influence scheduling.
type Listener interface {
	// SpecStarted is called after a fresh instance was created for a replay.
	SpecStarted(spec string, target types.Description)
	// SpecFinished is called when the replay is done with the instance.
	SpecFinished(spec string, target types.Description, err error)
	// TestStarted is called before a body runs for a result.
	TestStarted(tc *spec.TestCase)
	// TestFinished is called for every result, including skipped tests and
	// failures attributed to an ancestor.
	TestFinished(result *types.TestResult)
}

// noOpListener ignores all events
type noOpListener struct{}

// NewNoOpListener creates a listener that does nothing
func NewNoOpListener() Listener {
	return &noOpListener{}
}

func (n *noOpListener) SpecStarted(string, types.Description)         {}
func (n *noOpListener) SpecFinished(string, types.Description, error) {}
func (n *noOpListener) TestStarted(*spec.TestCase)                    {}
func (n *noOpListener) TestFinished(*types.TestResult)                {}

// compositeListener fans events out to several listeners in order
type compositeListener struct {
	listeners []Listener
}

// NewCompositeListener combines listeners. Nil entries are dropped.
func NewCompositeListener(listeners ...Listener) Listener {
	c := &compositeListener{}
	for _, l := range listeners {
		if l != nil {
			c.listeners = append(c.listeners, l)
		}
	}
	return c
}

func (c *compositeListener) SpecStarted(spec string, target types.Description) {
	for _, l := range c.listeners {
		l.SpecStarted(spec, target)
	}
}

func (c *compositeListener) SpecFinished(spec string, target types.Description, err error) {
	for _, l := range c.listeners {
		l.SpecFinished(spec, target, err)
	}
}

func (c *compositeListener) TestStarted(tc *spec.TestCase) {
	for _, l := range c.listeners {
		l.TestStarted(tc)
	}
}

func (c *compositeListener) TestFinished(result *types.TestResult) {
	for _, l := range c.listeners {
		l.TestFinished(result)
	}
}

// metricsListener exports results to Prometheus
type metricsListener struct {
	noOpListener
}

// NewMetricsListener creates a listener that records result metrics
func NewMetricsListener() Listener {
	return &metricsListener{}
}

func (m *metricsListener) SpecFinished(spec string, _ types.Description, err error) {
	metrics.RecordErrorDetails("replay_"+spec, err)
}

func (m *metricsListener) TestFinished(result *types.TestResult) {
	metrics.RecordTestResult(result.Description.Spec(), result.Type, result.Status, result.Duration)
}
