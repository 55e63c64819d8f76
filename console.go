package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/launchdarkly/suite-runner/framework"
	"github.com/launchdarkly/suite-runner/framework/testrun"
	"github.com/launchdarkly/suite-runner/reporting"
)

var (
	failedColor  = color.New(color.FgRed)
	passedColor  = color.New(color.FgGreen)
	runningColor = color.New(color.Faint)
)

// consoleReporter prints test progress as it happens. If debug is set, the debug output logged
// while a test ran is printed after it when it fails.
type consoleReporter struct {
	out        io.Writer
	debug      *framework.CapturingLogger
	debugStart map[string]int
}

func newConsoleReporter(out io.Writer, debug *framework.CapturingLogger) *consoleReporter {
	return &consoleReporter{out: out, debug: debug, debugStart: make(map[string]int)}
}

func (c *consoleReporter) Attach(src reporting.EventSource) {
	src.OnChange(testrun.EventTestStatus, c.testStatus)
	src.OnChange(testrun.EventTestSuiteStatus, c.suiteStatus)
}

func (c *consoleReporter) testStatus(e testrun.Event) {
	ev := e.(testrun.TestStatusEvent)
	switch ev.Status {
	case testrun.StatusRunning:
		fmt.Fprintf(c.out, "[%s]\n", ev.TestID)
		c.debugStart[ev.TestID] = 0
		if c.debug != nil {
			c.debugStart[ev.TestID] = len(c.debug.Output())
		}
	case testrun.StatusOK:
		passedColor.Fprintf(c.out, "  OK (%dms)\n", ev.Time)
	case testrun.StatusErr:
		if _, started := c.debugStart[ev.TestID]; !started {
			// failed by a before hook without having started
			fmt.Fprintf(c.out, "[%s]\n", ev.TestID)
		}
		for _, line := range strings.Split(ev.Message, "\n") {
			fmt.Fprintf(c.out, "  %s\n", line)
		}
		failedColor.Fprintf(c.out, "  FAILED: %s\n", ev.TestID)
		c.dumpDebugOutput(ev.TestID)
	}
}

func (c *consoleReporter) suiteStatus(e testrun.Event) {
	ev := e.(testrun.SuiteStatusEvent)
	switch {
	case ev.Status == testrun.StatusRunning && ev.Progress > 0:
		runningColor.Fprintf(c.out, "  (%.0f%% complete)\n", ev.Progress)
	case ev.Status == testrun.StatusErr && ev.Progress < 100:
		failedColor.Fprintln(c.out, ev.Message)
	}
}

func (c *consoleReporter) dumpDebugOutput(testID string) {
	if c.debug == nil {
		return
	}
	output := c.debug.Output()
	start := c.debugStart[testID]
	if start > len(output) {
		start = len(output)
	}
	if len(output) > start {
		output[start:].Dump(c.out, "    DEBUG ")
	}
}
