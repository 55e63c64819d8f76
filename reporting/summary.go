package reporting

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/launchdarkly/suite-runner/framework/testrun"
)

const maxErrorColumnWidth = 80

// PrintResults writes a table of every reported test followed by the suite's final status.
func PrintResults(w io.Writer, title string, results *Results) {
	tests := results.Tests()
	suite := results.Suite()

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("%s (%s)", title, formatDuration(time.Duration(suite.Time)*time.Millisecond)))
	t.AppendHeader(table.Row{"Test", "Status", "Duration", "Error"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Error", WidthMax: maxErrorColumnWidth, WidthMaxEnforcer: text.WrapSoft},
	})

	passed := 0
	for _, test := range tests {
		if test.Status == testrun.StatusOK {
			passed++
		}
		t.AppendRow(table.Row{
			test.TestID,
			string(test.Status),
			formatDuration(test.Duration),
			firstLine(test.Message),
		})
	}
	t.AppendFooter(table.Row{
		"TOTAL",
		fmt.Sprintf("%d/%d passed", passed, len(tests)),
		formatDuration(time.Duration(suite.Time) * time.Millisecond),
		"",
	})
	t.SetStyle(table.StyleLight)
	t.Render()

	switch {
	case results.OK():
		fmt.Fprintln(w, "All tests passed")
	case suite.Message != "":
		fmt.Fprintln(w, suite.Message)
	case suite.Status != testrun.StatusErr:
		fmt.Fprintln(w, "Test run did not finish")
	}
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
