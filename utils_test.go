package leafrunner

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ethereum-optimism/op-leafrunner/types"
)

func TestGetResultString(t *testing.T) {
	assert.Equal(t, "✓ pass", getResultString(types.TestStatusPass))
	assert.Equal(t, "- skip", getResultString(types.TestStatusSkip))
	assert.Equal(t, "✗ fail", getResultString(types.TestStatusFail))
	assert.Equal(t, "✗ error", getResultString(types.TestStatusError))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
	assert.Equal(t, "0.0s", formatDuration(0))
}

func TestBoolToInt(t *testing.T) {
	assert.Equal(t, 1, boolToInt(true))
	assert.Equal(t, 0, boolToInt(false))
}

func TestExtractKeyErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "nil",
			err:  nil,
			want: "",
		},
		{
			name: "assertion in wrapped error",
			err:  errors.New("ancestor \"a\" failed:\nassertion failed: expected 3\nmore context"),
			want: "assertion failed: expected 3",
		},
		{
			name: "panic",
			err:  errors.New("test panicked: nil map\ngoroutine 1 [running]"),
			want: "test panicked: nil map",
		},
		{
			name: "timeout",
			err:  errors.New("test \"s/a\" timed out after 1s"),
			want: "test \"s/a\" timed out after 1s",
		},
		{
			name: "ansi colours stripped",
			err:  errors.New("\x1b[31mconnection refused\x1b[0m"),
			want: "connection refused",
		},
		{
			name: "first line",
			err:  errors.New("first\nsecond"),
			want: "first",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractKeyErrorMessage(tt.err))
		})
	}

	long := extractKeyErrorMessage(errors.New(strings.Repeat("x", 200)))
	assert.Len(t, long, maxErrorLength)
	assert.True(t, strings.HasSuffix(long, "..."))
}
