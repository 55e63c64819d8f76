package suitefile

import (
	"context"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/alessio/shellescape"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/pkg/errors"

	"github.com/launchdarkly/suite-runner/framework"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// scope is the state a step sees: the store it writes to, and the current view of the state
// that its expressions are evaluated against.
type scope struct {
	store *Store
	view  ldvalue.Value
}

func (s *scope) set(key string, value ldvalue.Value) {
	s.store.Set(key, value)
	s.view = withProperty(s.view, key, value)
}

type action func(ctx context.Context, s *scope) error

type computed struct {
	key     string
	source  string
	program *vm.Program
}

// compileStep validates a step and turns it into an action. Expressions are compiled here so
// that syntax errors are reported when the file is loaded.
func compileStep(step StepSpec, logger framework.Logger) (action, error) {
	switch n := step.actionCount(); {
	case n == 0:
		return nil, errors.New("step has no action; expected one of set, compute, assert, run, sleep, fail")
	case n > 1:
		return nil, errors.New("step has more than one action")
	}

	switch {
	case step.Set != nil:
		values := make(map[string]ldvalue.Value, len(step.Set))
		for k, v := range step.Set {
			values[k] = ldvalue.CopyArbitraryValue(v)
		}
		keys := sortedKeys(values)
		return func(_ context.Context, s *scope) error {
			for _, k := range keys {
				s.set(k, values[k])
			}
			return nil
		}, nil

	case step.Compute != nil:
		var exprs []computed
		for _, k := range sortedKeys(step.Compute) {
			program, err := expr.Compile(step.Compute[k], expr.AllowUndefinedVariables())
			if err != nil {
				return nil, errors.Wrapf(err, "compile expression for %q", k)
			}
			exprs = append(exprs, computed{key: k, source: step.Compute[k], program: program})
		}
		return func(_ context.Context, s *scope) error {
			for _, c := range exprs {
				out, err := expr.Run(c.program, exprEnv(s.view))
				if err != nil {
					return errors.Wrapf(err, "evaluate %q", c.source)
				}
				s.set(c.key, ldvalue.CopyArbitraryValue(out))
			}
			return nil
		}, nil

	case step.Assert != "":
		source := step.Assert
		program, err := expr.Compile(source, expr.AllowUndefinedVariables(), expr.AsBool())
		if err != nil {
			return nil, errors.Wrapf(err, "compile assertion %q", source)
		}
		return func(_ context.Context, s *scope) error {
			out, err := expr.Run(program, exprEnv(s.view))
			if err != nil {
				return errors.Wrapf(err, "evaluate assertion %q", source)
			}
			if ok, _ := out.(bool); !ok {
				return errors.Errorf("assertion failed: %s (state: %s)", source, s.view.JSONString())
			}
			return nil
		}, nil

	case step.Run != "":
		command := step.Run
		quoted := quoteCommand("sh", "-c", command)
		return func(ctx context.Context, _ *scope) error {
			logger.Printf("Running: %s", quoted)
			out, err := exec.CommandContext(ctx, "sh", "-c", command).CombinedOutput()
			if err != nil {
				return errors.Wrapf(err, "command %s failed: %s", quoted, strings.TrimSpace(string(out)))
			}
			return nil
		}, nil

	case step.Sleep != "":
		d, err := time.ParseDuration(step.Sleep)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid sleep duration %q", step.Sleep)
		}
		return func(ctx context.Context, _ *scope) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-timer.C:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}, nil

	default:
		message := step.Fail
		return func(context.Context, *scope) error {
			return errors.New(message)
		}, nil
	}
}

func quoteCommand(args ...string) string {
	quoted := make([]string, 0, len(args))
	for _, a := range args {
		quoted = append(quoted, shellescape.Quote(a))
	}
	return strings.Join(quoted, " ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
