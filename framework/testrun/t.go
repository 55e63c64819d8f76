package testrun

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// T is passed to test bodies and hooks created with WithT or HookWithT.
//
// It implements the same basic functionality as Go's testing.T, so the assert and require
// packages can be used by passing the *T as if it were a *testing.T. Errorf records a failure
// and lets the body continue; FailNow records a failure and exits the body immediately.
// When the body returns, any recorded failures become the error of the hook or test.
type T struct {
	ctx    context.Context
	name   string
	failed bool
	errors []error
}

type failNowSignal struct {
	t *T
}

// WithT adapts an assertion-style test body to a TestFunc.
func WithT(action func(t *T, test *Test, state ldvalue.Value)) TestFunc {
	return func(ctx context.Context, test *Test, state ldvalue.Value) error {
		t := &T{ctx: ctx, name: test.Name}
		return t.run(func(t *T) { action(t, test, state) })
	}
}

// HookWithT adapts an assertion-style hook body to a HookFunc.
func HookWithT(action func(t *T)) HookFunc {
	return func(ctx context.Context) error {
		t := &T{ctx: ctx}
		return t.run(action)
	}
}

func (t *T) run(action func(*T)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if s, ok := r.(failNowSignal); !ok || s.t != t {
				panic(r)
			}
		}
		err = t.err()
	}()
	action(t)
	return nil
}

func (t *T) err() error {
	if !t.failed {
		return nil
	}
	switch len(t.errors) {
	case 0:
		return errors.New("test failed with no failure message")
	case 1:
		return t.errors[0]
	}
	messages := make([]string, 0, len(t.errors))
	for _, e := range t.errors {
		messages = append(messages, e.Error())
	}
	return errors.New(strings.Join(messages, "\n"))
}

// Context returns the context of the hook or test, which is cancelled if it times out.
func (t *T) Context() context.Context {
	return t.ctx
}

// Name returns the name of the test, or an empty string in a hook.
func (t *T) Name() string {
	return t.name
}

// Errorf is called by assertions to log a failure. It does not cause an immediate exit.
func (t *T) Errorf(format string, args ...interface{}) {
	t.failed = true
	t.errors = append(t.errors, fmt.Errorf(format, args...))
}

// FailNow is called by assertions in the require package to fail and immediately exit.
func (t *T) FailNow() {
	t.failed = true
	panic(failNowSignal{t})
}

// Failed returns true if a failure has been recorded.
func (t *T) Failed() bool {
	return t.failed
}
