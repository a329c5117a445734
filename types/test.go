package types

import (
	"fmt"
	"time"
)

// TestStatus represents the possible states of a test execution
type TestStatus string

const (
	TestStatusPass  TestStatus = "pass"
	TestStatusFail  TestStatus = "fail"
	TestStatusSkip  TestStatus = "skip"
	TestStatusError TestStatus = "error"
)

// TestType tells containers apart from leaf tests.
type TestType string

const (
	TestTypeContainer TestType = "container"
	TestTypeTest      TestType = "test"
)

// TestResult captures the outcome of a single test run
type TestResult struct {
	Description Description
	Type        TestType
	Status      TestStatus
	Error       error         // Set for fail and error statuses
	Reason      string        // Why a test was skipped
	Duration    time.Duration // Time spent in the body, including inline children
	TimedOut    bool          // Track if this test timed out
}

// IsFailure reports whether the result counts against the run.
func (tr *TestResult) IsFailure() bool {
	return tr.Status == TestStatusFail || tr.Status == TestStatusError
}

func (tr *TestResult) String() string {
	switch {
	case tr.Error != nil:
		return fmt.Sprintf("%s [%s]: %v", tr.Description, tr.Status, tr.Error)
	case tr.Reason != "":
		return fmt.Sprintf("%s [%s]: %s", tr.Description, tr.Status, tr.Reason)
	default:
		return fmt.Sprintf("%s [%s]", tr.Description, tr.Status)
	}
}

// ResultStats tracks test statistics
type ResultStats struct {
	Total      int
	Containers int
	Passed     int
	Failed     int
	Errored    int
	Skipped    int
	StartTime  time.Time
	EndTime    time.Time
}

// Add counts a single result.
func (s *ResultStats) Add(result *TestResult) {
	s.Total++
	if result.Type == TestTypeContainer {
		s.Containers++
	}
	switch result.Status {
	case TestStatusPass:
		s.Passed++
	case TestStatusFail:
		s.Failed++
	case TestStatusError:
		s.Errored++
	case TestStatusSkip:
		s.Skipped++
	}
}

// Merge adds the counts of other into s.
func (s *ResultStats) Merge(other ResultStats) {
	s.Total += other.Total
	s.Containers += other.Containers
	s.Passed += other.Passed
	s.Failed += other.Failed
	s.Errored += other.Errored
	s.Skipped += other.Skipped
}

// Status derives an overall status from the counts.
func (s ResultStats) Status() TestStatus {
	switch {
	case s.Failed > 0 || s.Errored > 0:
		return TestStatusFail
	case s.Passed == 0 && s.Skipped > 0:
		return TestStatusSkip
	default:
		return TestStatusPass
	}
}

// PassRate returns the percentage of passed results, skips excluded.
func (s ResultStats) PassRate() float64 {
	executed := s.Total - s.Skipped
	if executed == 0 {
		return 0
	}
	return float64(s.Passed) * 100 / float64(executed)
}
