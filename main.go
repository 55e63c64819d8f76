package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/fatih/color"

	"github.com/launchdarkly/suite-runner/framework"
	"github.com/launchdarkly/suite-runner/framework/testrun"
	"github.com/launchdarkly/suite-runner/reporting"
	"github.com/launchdarkly/suite-runner/suitefile"
)

func main() {
	var params commandParams
	if !params.Read(os.Args, os.Stderr) {
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, params, os.Stdout)
	stop()
	os.Exit(code)
}

// run executes one suite file and returns the process exit code: 0 if every test passed, 1 if
// anything failed, 2 if the suite could not be run at all.
func run(ctx context.Context, params commandParams, out io.Writer) int {
	if params.noColor {
		color.NoColor = true
	}

	var debugLogger framework.Logger = framework.NullLogger()
	var captured *framework.CapturingLogger
	switch {
	case params.debugAll:
		debugLogger = log.New(out, "", log.LstdFlags)
	case params.debug:
		captured = &framework.CapturingLogger{}
		debugLogger = captured
	}

	suite, err := suitefile.LoadFile(params.suitePath, suitefile.Options{
		Timeout: params.timeout,
		Logger:  debugLogger,
	})
	if err != nil {
		fmt.Fprintf(out, "Unable to load suite: %s\n", err)
		return 2
	}

	fmt.Fprintln(out)
	params.filters.Describe(out)
	tests := suite.Select(params.filters.AsFilter)

	r, err := testrun.New(suite.TestSuite(), tests, suite.Definitions(), debugLogger)
	if err != nil {
		fmt.Fprintf(out, "Invalid suite: %s\n", err)
		return 2
	}

	results := reporting.NewResults()
	results.Attach(r)

	console := newConsoleReporter(out, captured)
	console.Attach(r)

	var metrics *reporting.Metrics
	if params.metricsOut != "" {
		metrics = reporting.NewMetrics(suite.ID())
		metrics.Attach(r)
	}

	var sink *reporting.CallbackSink
	if params.callbackURL != "" {
		sink = reporting.NewCallbackSink(params.callbackURL, nil, framework.LoggerWithPrefix(debugLogger, "[callback] "))
		sink.Attach(r)
	}

	fmt.Fprintf(out, "Running test suite %q\n", suite.Name())
	if err := r.Execute(ctx); err != nil {
		fmt.Fprintf(out, "Unable to run suite: %s\n", err)
		return 2
	}
	if sink != nil {
		sink.Close()
	}

	fmt.Fprintln(out)
	reporting.PrintResults(out, suite.Name(), results)

	if metrics != nil {
		if err := metrics.WriteToTextfile(params.metricsOut); err != nil {
			fmt.Fprintf(out, "Unable to write metrics: %s\n", err)
		}
	}

	if !results.OK() {
		var failed []string
		for _, f := range results.Failures() {
			failed = append(failed, f.TestID)
		}
		if len(failed) > 0 {
			fmt.Fprintf(out, "\nTo run only the failed tests:\n  %s\n", params.rerunCommand(failed))
		}
		return 1
	}
	return 0
}
