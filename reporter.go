package leafrunner

import (
	"github.com/ethereum-optimism/op-leafrunner/metrics"
	"github.com/ethereum-optimism/op-leafrunner/runner"
)

// MetricsReporter is responsible for reporting metrics from test results.
type MetricsReporter interface {
	ReportResults(runID string, result *runner.RunnerResult)
}

// DefaultMetricsReporter implements the MetricsReporter interface.
type DefaultMetricsReporter struct{}

// NewDefaultMetricsReporter creates a new DefaultMetricsReporter.
func NewDefaultMetricsReporter() *DefaultMetricsReporter {
	return &DefaultMetricsReporter{}
}

// ReportResults reports the run totals. Per-test metrics are recorded by the
// runner while tests finish.
func (r *DefaultMetricsReporter) ReportResults(runID string, result *runner.RunnerResult) {
	if result == nil {
		return
	}
	metrics.RecordRun(
		runID,
		string(result.Status),
		result.Stats.Total,
		result.Stats.Passed,
		result.Stats.Failed+result.Stats.Errored,
		result.Duration,
	)
}
