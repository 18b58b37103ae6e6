package launcher

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-launcher/orchestrator"
	"github.com/ethereum-optimism/infra/op-launcher/reporting"
)

// ResultFormatter is responsible for formatting and displaying run reports.
type ResultFormatter interface {
	FormatResults(report *orchestrator.Report) error
}

// ConsoleResultFormatter renders a report as a table.
type ConsoleResultFormatter struct {
	logger log.Logger
	out    io.Writer
}

// NewConsoleResultFormatter creates a formatter writing to out, or to
// os.Stdout when out is nil.
func NewConsoleResultFormatter(logger log.Logger, out io.Writer) *ConsoleResultFormatter {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleResultFormatter{
		logger: logger,
		out:    out,
	}
}

// FormatResults renders one row per child process, one per unit that was
// never launched and a footer with the summed results.
func (f *ConsoleResultFormatter) FormatResults(report *orchestrator.Report) error {
	f.logger.Info("Printing results...")
	t := table.NewWriter()
	t.SetOutputMirror(f.out)
	t.SetTitle(fmt.Sprintf("Test Results: %s isolation (%s)", report.Isolation, formatDuration(report.Duration)))

	t.AppendHeader(table.Row{
		"Unit", "Exit", "Duration", "Tests", "Failed", "Ignored", "Status",
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Unit", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Exit", Align: text.AlignRight},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Tests", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Ignored", Align: text.AlignRight},
	})

	for _, u := range report.Units {
		names := make([]string, len(u.Units))
		for i, unit := range u.Units {
			names[i] = string(unit)
		}

		exit := "-"
		if u.Launched {
			exit = fmt.Sprint(u.ExitCode)
		}

		row := table.Row{strings.Join(names, "\n"), exit, formatDuration(u.Duration), "-", "-", "-", unitStatus(u)}
		if u.HasResult {
			row[3], row[4], row[5] = u.Result.RunCount, u.Result.FailureCount, u.Result.IgnoreCount
		}
		t.AppendRow(row)
	}

	if len(report.Skipped) > 0 {
		t.AppendSeparator()
		for _, unit := range report.Skipped {
			t.AppendRow(table.Row{string(unit), "-", "-", "-", "-", "-", "- skipped"})
		}
	}

	switch {
	case report.Failed():
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	case len(report.Skipped) > 0:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}

	totals := report.Totals()
	status := "✓ pass"
	if report.Failed() {
		status = "✗ fail"
	}
	t.AppendFooter(table.Row{
		"TOTAL",
		"",
		formatDuration(report.Duration),
		totals.RunCount,
		totals.FailureCount,
		totals.IgnoreCount,
		status,
	})

	t.Render()

	_, err := fmt.Fprintln(f.out, reporting.FormatSummary(totals))
	return err
}

// unitStatus returns the status cell of one child process
func unitStatus(u orchestrator.UnitReport) string {
	switch {
	case !u.Launched:
		return "✗ not started"
	case u.TimedOut:
		return "✗ timeout"
	case u.Failed():
		return "✗ fail"
	default:
		return "✓ pass"
	}
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
