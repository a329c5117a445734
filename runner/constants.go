package runner

import "time"

const (
	// DefaultTestTimeout is the default timeout for individual test bodies
	DefaultTestTimeout = 10 * time.Minute

	// DefaultProgressInterval is how often the console listener logs progress
	DefaultProgressInterval = 30 * time.Second

	// MaxReasonableConcurrency caps the number of specs run at the same time
	MaxReasonableConcurrency = 32

	// tracerName is the OpenTelemetry instrumentation scope of this package
	tracerName = "leaf runner"
)
