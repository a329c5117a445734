package leafrunner

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/op-leafrunner/runner"
	"github.com/ethereum-optimism/op-leafrunner/types"
)

// ResultFormatter is responsible for formatting and displaying test results.
type ResultFormatter interface {
	FormatResults(result *runner.RunnerResult) error
}

// ConsoleResultFormatter implements the ResultFormatter interface.
type ConsoleResultFormatter struct {
	logger log.Logger
	out    io.Writer
}

// NewConsoleResultFormatter creates a new ConsoleResultFormatter writing to
// stdout.
func NewConsoleResultFormatter(logger log.Logger) *ConsoleResultFormatter {
	return &ConsoleResultFormatter{
		logger: logger,
		out:    os.Stdout,
	}
}

// FormatResults renders one row per spec followed by its tests, indented by
// depth, in the order their results were recorded.
func (f *ConsoleResultFormatter) FormatResults(result *runner.RunnerResult) error {
	if result == nil {
		return fmt.Errorf("no result to format")
	}
	f.logger.Info("Printing results...")
	t := table.NewWriter()
	t.SetOutputMirror(f.out)
	t.SetTitle(fmt.Sprintf("Leaf Runner Results (%s)", formatDuration(result.Duration)))

	t.AppendHeader(table.Row{
		"Type", "ID", "Duration", "Tests", "Passed", "Failed", "Errored", "Skipped", "Status", "Error",
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Type", AutoMerge: true},
		{Name: "ID", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Tests", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Errored", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
		{Name: "Error", WidthMax: maxErrorLength, WidthMaxEnforcer: text.WrapSoft},
	})

	bySpec := make(map[string][]*types.TestResult)
	for _, r := range result.Tests {
		bySpec[r.Description.Spec()] = append(bySpec[r.Description.Spec()], r)
	}

	specNames := make([]string, 0, len(result.Specs))
	for name := range result.Specs {
		specNames = append(specNames, name)
	}
	sort.Strings(specNames)

	for _, name := range specNames {
		sr := result.Specs[name]
		if sr == nil {
			continue
		}
		status := sr.Stats.Status()
		if sr.HasFaults() {
			status = types.TestStatusError
		}
		t.AppendRow(table.Row{
			"Spec",
			name,
			formatDuration(sr.Duration),
			"-", // Don't count spec as a test
			sr.Stats.Passed,
			sr.Stats.Failed,
			sr.Stats.Errored,
			sr.Stats.Skipped,
			getResultString(status),
			extractKeyErrorMessage(sr.Err()),
		})

		tests := bySpec[name]
		for i, test := range tests {
			prefix := "├─"
			if i == len(tests)-1 {
				prefix = "└─"
			}
			t.AppendRow(testRow(test, prefix))
		}

		t.AppendSeparator()
	}

	switch result.Status {
	case types.TestStatusPass:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	case types.TestStatusSkip:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		"",
		formatDuration(result.Duration),
		result.Stats.Total,
		result.Stats.Passed,
		result.Stats.Failed,
		result.Stats.Errored,
		result.Stats.Skipped,
		getResultString(result.Status),
		"",
	})

	t.Render()

	_, err := fmt.Fprintln(f.out, result.String())
	return err
}

func testRow(test *types.TestResult, prefix string) table.Row {
	kind := "Test"
	if test.Type == types.TestTypeContainer {
		kind = "Container"
	}
	indent := strings.Repeat("   ", max(test.Description.Depth()-1, 0))

	detail := extractKeyErrorMessage(test.Error)
	if detail == "" {
		detail = test.Reason
	}

	return table.Row{
		kind,
		fmt.Sprintf("%s%s %s", indent, prefix, test.Description.Name()),
		formatDuration(test.Duration),
		"1", // Count actual test
		boolToInt(test.Status == types.TestStatusPass),
		boolToInt(test.Status == types.TestStatusFail),
		boolToInt(test.Status == types.TestStatusError),
		boolToInt(test.Status == types.TestStatusSkip),
		getResultString(test.Status),
		detail,
	}
}
