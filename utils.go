package leafrunner

import (
	"fmt"
	"strings"
	"time"

	"github.com/acarl005/stripansi"

	"github.com/ethereum-optimism/op-leafrunner/types"
)

// Helper function to convert bool to int
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// getResultString returns a string representing the test result
func getResultString(status types.TestStatus) string {
	switch status {
	case types.TestStatusPass:
		return "✓ pass"
	case types.TestStatusSkip:
		return "- skip"
	case types.TestStatusError:
		return "✗ error"
	default:
		return "✗ fail"
	}
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}

const maxErrorLength = 80

// extractKeyErrorMessage picks the line of an error that explains it best,
// so that the results table stays readable.
func extractKeyErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	errStr := stripansi.Strip(err.Error())

	for _, marker := range []string{"assertion failed:", "test panicked:", "timed out after"} {
		if idx := strings.Index(errStr, marker); idx != -1 {
			return truncate(firstLine(errStr[lineStart(errStr, idx):]))
		}
	}

	return truncate(firstLine(errStr))
}

// lineStart returns the index of the start of the line containing idx.
func lineStart(s string, idx int) int {
	return strings.LastIndex(s[:idx], "\n") + 1
}

func firstLine(s string) string {
	if i := strings.Index(s, "\n"); i != -1 {
		return s[:i]
	}
	return s
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrorLength {
		return s
	}
	return s[:maxErrorLength-3] + "..."
}
