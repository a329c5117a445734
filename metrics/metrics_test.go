package metrics

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/ethereum-optimism/op-leafrunner/types"
)

func TestErrToLabel(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{
			name: "nil error",
			err:  nil,
		},
		{
			name: "simple error",
			err:  errors.New("test error"),
		},
		{
			name: "error with special chars",
			err:  errors.New("test@error#123"),
		},
		{
			name: "error with multiple spaces",
			err:  errors.New("test   error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := errToLabel(tt.err)
			validLabelRegex := regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*`)
			if !validLabelRegex.MatchString(result) {
				t.Errorf("errLabel() = %v, is not a valid Prometheus label", result)
			}
		})
	}
}

func TestRecordErrorDetails(t *testing.T) {
	before := testutil.ToFloat64(errorsTotal.WithLabelValues("replay.sample_error"))
	RecordErrorDetails("replay", nil)
	RecordErrorDetails("replay", errors.New("sample error"))
	after := testutil.ToFloat64(errorsTotal.WithLabelValues("replay.sample_error"))
	assert.Equal(t, before+1, after)
}

func TestRecordTestResult(t *testing.T) {
	counter := testResultsTotal.WithLabelValues("metrics-spec", "test", "pass")
	before := testutil.ToFloat64(counter)

	RecordTestResult("metrics-spec", types.TestTypeTest, types.TestStatusPass, 10*time.Millisecond)
	RecordTestResult("metrics-spec", types.TestTypeTest, types.TestStatus("bogus"), time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestRecordInstantiationAndReplay(t *testing.T) {
	RecordInstantiation("metrics-spec", nil)
	RecordInstantiation("metrics-spec", errors.New("boom"))
	RecordReplay("metrics-spec")
	RecordPending("metrics-spec", 3)

	assert.GreaterOrEqual(t, testutil.ToFloat64(instantiationsTotal.WithLabelValues("metrics-spec", "ok")), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(instantiationsTotal.WithLabelValues("metrics-spec", "error")), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(replaysTotal.WithLabelValues("metrics-spec")), 1.0)
	assert.Equal(t, 3.0, testutil.ToFloat64(pendingTests.WithLabelValues("metrics-spec")))
}

func TestRecordRun(t *testing.T) {
	RecordRun("run1", "pass", 2, 2, 0, time.Second)
	RecordRun("run1", "fail", 1, 0, 1, time.Second)
	assert.Equal(t, 3.0, testutil.ToFloat64(runTestTotal.WithLabelValues("run1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(runDuration.WithLabelValues("run1")))
}
