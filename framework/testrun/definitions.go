package testrun

import (
	"context"
	"time"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Status is the state of a test, or of a whole suite, as reported in status events.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusRunning Status = "RUNNING"
	StatusOK      Status = "OK"
	StatusErr     Status = "ERR"
)

// IsTerminal returns true for OK and ERR.
func (s Status) IsTerminal() bool {
	return s == StatusOK || s == StatusErr
}

// DefaultTimeout is used for any hook or test whose Timeout is zero or negative.
const DefaultTimeout = 5 * time.Second

// HookFunc is the callback of a hook. The context is cancelled if the hook times out.
type HookFunc func(ctx context.Context) error

// Hook is a callback with its own timeout.
type Hook struct {
	Callback HookFunc
	Timeout  time.Duration
}

// ContextDefinition describes one node of the context tree: a named group of tests (a
// "describe" block) with its hooks. ParentID is empty for the root context.
type ContextDefinition struct {
	ID              string
	Name            string
	ParentID        string
	BeforeHooks     []Hook
	BeforeEachHooks []Hook
	AfterHooks      []Hook
	AfterEachHooks  []Hook
}

// DefinitionSet is the frozen description of all contexts that tests may refer to.
type DefinitionSet struct {
	RootContextID string
	Contexts      map[string]ContextDefinition
}

// TestFunc is the body of a test. It receives the test itself and a snapshot of the state
// provider's state, taken once just before the body is called.
type TestFunc func(ctx context.Context, test *Test, state ldvalue.Value) error

// Test is a single test bound to a context. Status is updated in place by the engine while
// a TestRun executes; an empty Status is equivalent to StatusPending.
type Test struct {
	ID        string
	Name      string
	ContextID string
	Func      TestFunc
	Timeout   time.Duration
	Status    Status
}

// StateProvider gives test bodies read access to application state. The engine calls State
// once per test; it never modifies the returned value.
type StateProvider interface {
	State() ldvalue.Value
}

// StateFunc adapts a plain function to the StateProvider interface.
type StateFunc func() ldvalue.Value

func (f StateFunc) State() ldvalue.Value { return f() }

// Suite identifies the suite being run and supplies its state.
type Suite struct {
	ID    string
	Name  string
	State StateProvider
}

func effectiveTimeout(t time.Duration) time.Duration {
	if t <= 0 {
		return DefaultTimeout
	}
	return t
}
