package runner

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/op-leafrunner/spec"
	"github.com/ethereum-optimism/op-leafrunner/types"
)

// ConsoleProgressListener logs replays and results, and periodically
// summarises what is running.
type ConsoleProgressListener struct {
	logger log.Logger
	ticker *time.Ticker
	stopCh chan struct{}
	once   sync.Once
	mu     sync.RWMutex

	replays   int
	completed int
	failed    int
	startTime time.Time

	// Track currently running tests
	runningTests map[string]time.Time // test name -> start time
}

var _ Listener = (*ConsoleProgressListener)(nil)

// NewConsoleProgressListener creates a listener that reports progress every
// updateInterval. Call Stop to end the reporting goroutine.
func NewConsoleProgressListener(logger log.Logger, updateInterval time.Duration) *ConsoleProgressListener {
	if updateInterval == 0 {
		updateInterval = DefaultProgressInterval
	}

	listener := &ConsoleProgressListener{
		logger:       logger,
		ticker:       time.NewTicker(updateInterval),
		stopCh:       make(chan struct{}),
		startTime:    time.Now(),
		runningTests: make(map[string]time.Time),
	}

	go listener.progressReporter()

	return listener
}

func (c *ConsoleProgressListener) SpecStarted(spec string, target types.Description) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.replays++
	c.logger.Debug("Replaying spec", "spec", spec, "target", target.FullName(), "replay", c.replays)
}

func (c *ConsoleProgressListener) SpecFinished(spec string, target types.Description, err error) {
	if err != nil {
		c.logger.Warn("Replay stopped", "spec", spec, "target", target.FullName(), "err", err)
	}
}

// TestStarted tracks when a test starts running
func (c *ConsoleProgressListener) TestStarted(tc *spec.TestCase) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.runningTests[tc.Description.String()] = time.Now()
	c.logger.Debug("Test started", "test", tc.Description, "runningTests", len(c.runningTests))
}

func (c *ConsoleProgressListener) TestFinished(result *types.TestResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.runningTests, result.Description.String())
	c.completed++
	if result.IsFailure() {
		c.failed++
		c.logger.Info("Test failed", "test", result.Description, "status", result.Status, "err", result.Error)
		return
	}
	c.logger.Debug("Test completed", "test", result.Description, "status", result.Status, "completed", c.completed)
}

// Stop ends periodic reporting. It is safe to call more than once.
func (c *ConsoleProgressListener) Stop() {
	c.once.Do(func() {
		c.ticker.Stop()
		close(c.stopCh)
	})
}

// progressReporter runs in a goroutine and periodically reports progress
func (c *ConsoleProgressListener) progressReporter() {
	for {
		select {
		case <-c.ticker.C:
			c.reportProgress()
		case <-c.stopCh:
			return
		}
	}
}

func (c *ConsoleProgressListener) reportProgress() {
	c.mu.RLock()
	defer c.mu.RUnlock()

	c.logger.Info("Progress update",
		"completed", c.completed,
		"failed", c.failed,
		"replays", c.replays,
		"elapsed", time.Since(c.startTime).Truncate(time.Second),
		"numRunning", len(c.runningTests),
		"longestRunning", formatRunningTests(c.runningTests, 3),
	)
}

// Helper function that formats running tests into a display string
func formatRunningTests(runningTests map[string]time.Time, maxShow int) string {
	if len(runningTests) == 0 {
		return ""
	}

	type runningTest struct {
		name     string
		duration time.Duration
	}

	var running []runningTest
	now := time.Now()
	for testName, startTime := range runningTests {
		running = append(running, runningTest{
			name:     testName,
			duration: now.Sub(startTime),
		})
	}

	// Sort by duration (longest running first)
	sort.Slice(running, func(i, j int) bool {
		return running[i].duration > running[j].duration
	})

	var runningStrs []string
	for i, test := range running {
		if i >= maxShow {
			break
		}
		runningStrs = append(runningStrs, fmt.Sprintf("%s (%v)", test.name, test.duration.Truncate(time.Second)))
	}

	if len(running) > maxShow {
		runningStrs = append(runningStrs, fmt.Sprintf("+%d more", len(running)-maxShow))
	}

	return strings.Join(runningStrs, ", ")
}
