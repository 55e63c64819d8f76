package testrun

import (
	"context"
	"fmt"
	"reflect"
	"runtime/debug"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/launchdarkly/suite-runner/framework"
)

var (
	// ErrNoStateProvider is returned by Execute if the Suite has no StateProvider. No events
	// are sent in that case.
	ErrNoStateProvider = errors.New("no state provider has been attached to the test suite")

	// ErrAlreadyExecuted is returned by Execute if it is called more than once on the same TestRun.
	ErrAlreadyExecuted = errors.New("test run has already been executed; create a new TestRun to run again")
)

// TestRun runs one set of tests, once. Create it with New, register listeners with OnChange,
// then call Execute.
type TestRun struct {
	suite          Suite
	tests          []*Test
	rootContextID  string
	contexts       map[string]*runnableContext
	completedTests int
	listeners      listenerRegistry
	runStartTime   time.Time
	traversalErr   error
	executed       bool
	logger         framework.Logger
	lock           sync.Mutex
}

// New builds a TestRun for the given tests. The Status fields of the tests are updated in
// place as the run progresses.
//
// It returns a *DefinitionError if a test refers to a context that is not in defs, or if the
// parent links of the contexts do not form a tree under defs.RootContextID.
func New(suite Suite, tests []*Test, defs DefinitionSet, logger framework.Logger) (*TestRun, error) {
	if logger == nil {
		logger = framework.NullLogger()
	}
	contexts, err := buildContextTree(tests, defs)
	if err != nil {
		return nil, err
	}
	return &TestRun{
		suite:         suite,
		tests:         tests,
		rootContextID: defs.RootContextID,
		contexts:      contexts,
		logger:        logger,
	}, nil
}

// OnChange registers a listener for one kind of event. Listeners of the same kind are called
// in the order they were registered. The returned function unregisters the listener.
func (r *TestRun) OnChange(kind EventKind, listener Listener) func() {
	return r.listeners.add(kind, listener)
}

// Execute runs every test and returns once the whole context tree has been traversed.
//
// Failures of hooks and tests are reported only through events. The only errors returned are
// ErrNoStateProvider and ErrAlreadyExecuted, both of which mean that nothing was run.
func (r *TestRun) Execute(ctx context.Context) error {
	if isNilStateProvider(r.suite.State) {
		r.logger.Printf("Failed to run %s tests as no state provider has been provided", r.suite.Name)
		return ErrNoStateProvider
	}
	r.lock.Lock()
	if r.executed {
		r.lock.Unlock()
		return ErrAlreadyExecuted
	}
	r.executed = true
	r.lock.Unlock()

	r.safelyEmit(SuiteStatusEvent{Status: StatusRunning})
	r.runStartTime = time.Now()

	if root := r.contexts[r.rootContextID]; root != nil {
		r.traverse(ctx, root)
	}

	errored := 0
	for _, test := range r.tests {
		if test.Status == StatusErr {
			errored++
		}
	}
	final := SuiteStatusEvent{Status: StatusOK, Progress: 100, Time: r.elapsed()}
	switch {
	case errored > 0:
		final.Status = StatusErr
		final.Message = testErrorsMessage(errored)
	case r.traversalErr != nil:
		final.Status = StatusErr
		final.Message = "Test suite failed: " + r.traversalErr.Error()
		final.StackTrace = stackTraceOf(r.traversalErr)
	}
	r.safelyEmit(final)
	return nil
}

// isNilStateProvider also catches a nil pointer or nil StateFunc stored in the interface.
func isNilStateProvider(p StateProvider) bool {
	if p == nil {
		return true
	}
	switch v := reflect.ValueOf(p); v.Kind() {
	case reflect.Ptr, reflect.Func, reflect.Map, reflect.Slice, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func testErrorsMessage(count int) string {
	if count == 1 {
		return "1 test has error(s)."
	}
	return fmt.Sprintf("%d tests has error(s).", count)
}

func (r *TestRun) traverse(ctx context.Context, root *runnableContext) {
	defer func() {
		if p := recover(); p != nil {
			r.reportTraversalFailure(&PanicError{Value: p, Stack: debug.Stack()})
		}
	}()
	r.runTestsInContext(ctx, root, nil, nil)
}

// runTestsInContext runs a context's before hooks, its own tests, its child contexts, and
// its after hooks. beforeEach holds the inherited beforeEach hooks in root-to-leaf order and
// afterEach the inherited afterEach hooks in leaf-to-root order; neither is modified.
func (r *TestRun) runTestsInContext(ctx context.Context, rc *runnableContext, beforeEach, afterEach []Hook) {
	r.logger.Printf("Entering context %q", rc.Name)
	if !r.runContextHooks(ctx, rc, hookBefore).OK() {
		r.logger.Printf("Skipping context %q because a before hook failed", rc.Name)
		return
	}

	ownBeforeEach := make([]Hook, 0, len(beforeEach)+len(rc.BeforeEachHooks))
	ownBeforeEach = append(append(ownBeforeEach, beforeEach...), rc.BeforeEachHooks...)
	ownAfterEach := make([]Hook, 0, len(afterEach)+len(rc.AfterEachHooks))
	ownAfterEach = append(append(ownAfterEach, rc.AfterEachHooks...), afterEach...)

	r.runTests(ctx, rc, ownBeforeEach, ownAfterEach)

	for _, id := range rc.childIDs {
		r.runTestsInContext(ctx, r.contexts[id], ownBeforeEach, ownAfterEach)
	}

	r.runContextHooks(ctx, rc, hookAfter)
}

// runTests runs the tests of one context in order. A panic that escapes from the loop itself,
// rather than from test code, fails the suite and abandons the remaining tests of the context.
func (r *TestRun) runTests(ctx context.Context, rc *runnableContext, beforeEach, afterEach []Hook) {
	defer func() {
		if p := recover(); p != nil {
			r.reportTraversalFailure(&PanicError{Value: p, Stack: debug.Stack()})
		}
	}()
	for _, test := range rc.tests {
		r.runTest(ctx, rc, test, beforeEach, afterEach)
	}
}

func (r *TestRun) runTest(ctx context.Context, rc *runnableContext, test *Test, beforeEach, afterEach []Hook) {
	test.Status = StatusRunning
	r.listeners.emit(TestStatusEvent{TestID: test.ID, Status: StatusRunning})

	testStart := time.Now()

	if !r.runHookChain(ctx, test, testStart, rc, hookBeforeEach, beforeEach).OK() {
		return
	}

	state := r.suite.State.State()
	var body func(context.Context) error
	if test.Func != nil {
		body = func(ctx context.Context) error { return test.Func(ctx, test, state) }
	}
	if err := safelyRun(ctx, body, test.Timeout, "Test"); err != nil {
		r.logger.Printf("Test %q failed: %s", test.Name, err)
		r.reportTestError(test, err, time.Since(testStart), "")
	} else {
		test.Status = StatusOK
		r.listeners.emit(TestStatusEvent{
			TestID: test.ID,
			Status: StatusOK,
			Time:   time.Since(testStart).Milliseconds(),
		})
	}

	r.completedTests++
	r.emitSuiteStatus(SuiteStatusEvent{
		Status:   StatusRunning,
		Progress: r.progress(),
		Time:     r.elapsed(),
	})

	r.runHookChain(ctx, test, testStart, rc, hookAfterEach, afterEach)
}

func (r *TestRun) reportTestError(test *Test, err error, elapsed time.Duration, prefix string) {
	test.Status = StatusErr
	r.listeners.emit(TestStatusEvent{
		TestID:     test.ID,
		Status:     StatusErr,
		Time:       elapsed.Milliseconds(),
		Message:    formatError(prefix, err),
		StackTrace: stackTraceOf(err),
	})
}

func (r *TestRun) reportTraversalFailure(err error) {
	r.logger.Printf("Test suite failed: %s", err)
	if r.traversalErr == nil {
		r.traversalErr = err
	}
	r.safelyEmit(SuiteStatusEvent{
		Status:     StatusErr,
		Progress:   r.progress(),
		Time:       r.elapsed(),
		Message:    "Test suite failed: " + err.Error(),
		StackTrace: stackTraceOf(err),
	})
}

func (r *TestRun) emitSuiteStatus(e SuiteStatusEvent) {
	e.SuiteID = r.suite.ID
	r.listeners.emit(e)
}

// safelyEmit is used where a panicking listener has nowhere left to be reported.
func (r *TestRun) safelyEmit(e SuiteStatusEvent) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Printf("Listener panicked while reporting suite status: %v", p)
		}
	}()
	r.emitSuiteStatus(e)
}

func (r *TestRun) progress() float64 {
	if len(r.tests) == 0 {
		return 100
	}
	return float64(r.completedTests) / float64(len(r.tests)) * 100
}

func (r *TestRun) elapsed() int64 {
	if r.runStartTime.IsZero() {
		return 0
	}
	return time.Since(r.runStartTime).Milliseconds()
}
