// Package exitcodes defines the standard exit codes used by op-leafrunner.
package exitcodes

// Exit code constants used by op-leafrunner
// These constants define the exit codes that the application uses to indicate
// how a run ended:
//
// * Success (0): Used when every test passed or was skipped
// * TestFailure (1): Used when one or more tests failed or errored
// * RuntimeErr (2): Used when the run itself broke, e.g. a spec could not be instantiated
const (
	Success     = 0 // All tests pass
	TestFailure = 1 // Test failures
	RuntimeErr  = 2 // Runtime errors, aborted runs
)
