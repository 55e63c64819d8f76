package main

import (
	"flag"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/alessio/shellescape"

	"github.com/launchdarkly/suite-runner/framework"
)

const commandName = "suite-runner"

type commandParams struct {
	suitePath   string
	filters     framework.RegexFilters
	timeout     time.Duration
	callbackURL string
	metricsOut  string
	debug       bool
	debugAll    bool
	noColor     bool
}

// Read parses the command line. On failure it writes the error and usage to errOut.
func (c *commandParams) Read(args []string, errOut io.Writer) bool {
	fs := flag.NewFlagSet(commandName, flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&c.suitePath, "suite", "", "path of the YAML suite file to run")
	fs.Var(&c.filters.MustMatch, "run", "regex pattern(s) to select tests to run")
	fs.Var(&c.filters.MustNotMatch, "skip", "regex pattern(s) to select tests not to run")
	fs.DurationVar(&c.timeout, "timeout", 0, "timeout for hooks and tests that do not set one (overrides the suite file)")
	fs.StringVar(&c.callbackURL, "callback-url", "", "base URL to post test events to")
	fs.StringVar(&c.metricsOut, "metrics-out", "", "file to write Prometheus metrics to at the end of the run")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging for failed tests")
	fs.BoolVar(&c.debugAll, "debug-all", false, "enable debug logging for all tests")
	fs.BoolVar(&c.noColor, "no-color", false, "disable colored output")

	if err := fs.Parse(args[1:]); err != nil {
		return false
	}
	if c.suitePath == "" {
		fmt.Fprintln(errOut, "-suite is required")
		fs.Usage()
		return false
	}
	return true
}

// rerunCommand returns a command line that runs only the given tests from the same suite.
func (c *commandParams) rerunCommand(testIDs []string) string {
	var cmd commandBuilder
	cmd.add(commandName, "-suite", c.suitePath)
	for _, id := range testIDs {
		cmd.add("-run", "^"+regexp.QuoteMeta(id)+"$")
	}
	if c.timeout > 0 {
		cmd.add("-timeout", c.timeout.String())
	}
	return cmd.String()
}

type commandBuilder []string

func (b *commandBuilder) add(args ...string) {
	for _, a := range args {
		*b = append(*b, shellescape.Quote(a))
	}
}

func (b commandBuilder) String() string {
	return strings.Join(b, " ")
}
