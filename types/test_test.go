package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultStats_Status(t *testing.T) {
	tests := []struct {
		name     string
		statuses []TestStatus
		expected TestStatus
	}{
		{name: "empty run passes", statuses: nil, expected: TestStatusPass},
		{name: "all pass", statuses: []TestStatus{TestStatusPass, TestStatusPass}, expected: TestStatusPass},
		{name: "one failure", statuses: []TestStatus{TestStatusPass, TestStatusFail}, expected: TestStatusFail},
		{name: "one error", statuses: []TestStatus{TestStatusPass, TestStatusError}, expected: TestStatusFail},
		{name: "only skips", statuses: []TestStatus{TestStatusSkip}, expected: TestStatusSkip},
		{name: "pass with skips", statuses: []TestStatus{TestStatusSkip, TestStatusPass}, expected: TestStatusPass},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stats ResultStats
			for _, status := range tt.statuses {
				stats.Add(&TestResult{Status: status, Type: TestTypeTest})
			}
			assert.Equal(t, tt.expected, stats.Status())
			assert.Equal(t, len(tt.statuses), stats.Total)
		})
	}
}

func TestResultStats_MergeAndPassRate(t *testing.T) {
	var a, b ResultStats
	a.Add(&TestResult{Status: TestStatusPass, Type: TestTypeContainer})
	a.Add(&TestResult{Status: TestStatusFail, Type: TestTypeTest})
	b.Add(&TestResult{Status: TestStatusSkip, Type: TestTypeTest})
	b.Add(&TestResult{Status: TestStatusError, Type: TestTypeTest})

	a.Merge(b)
	assert.Equal(t, 4, a.Total)
	assert.Equal(t, 1, a.Containers)
	assert.Equal(t, 1, a.Passed)
	assert.Equal(t, 1, a.Failed)
	assert.Equal(t, 1, a.Errored)
	assert.Equal(t, 1, a.Skipped)
	assert.InDelta(t, 33.3, a.PassRate(), 0.1)
}

func TestTestResult_String(t *testing.T) {
	d := NewDescription("spec", "a")
	assert.Equal(t, "spec: a [pass]", (&TestResult{Description: d, Status: TestStatusPass}).String())
	assert.Equal(t, "spec: a [fail]: boom", (&TestResult{Description: d, Status: TestStatusFail, Error: errors.New("boom")}).String())
	assert.Equal(t, "spec: a [skip]: later", (&TestResult{Description: d, Status: TestStatusSkip, Reason: "later"}).String())
	assert.True(t, (&TestResult{Status: TestStatusError}).IsFailure())
	assert.False(t, (&TestResult{Status: TestStatusSkip}).IsFailure())
}
