package reporting

import (
	"sync"
	"time"

	"github.com/launchdarkly/suite-runner/framework/testrun"
)

// EventSource is anything listeners can be attached to. *testrun.TestRun implements it.
type EventSource interface {
	OnChange(kind testrun.EventKind, listener testrun.Listener) func()
}

// TestResult is the latest known state of one test.
type TestResult struct {
	TestID     string
	Status     testrun.Status
	Duration   time.Duration
	Message    string
	StackTrace string
}

func (r TestResult) Failed() bool { return r.Status == testrun.StatusErr }

// Results collects test and suite status events.
type Results struct {
	tests map[string]*TestResult
	order []string
	suite testrun.SuiteStatusEvent
	lock  sync.Mutex
}

func NewResults() *Results {
	return &Results{tests: make(map[string]*TestResult)}
}

// Attach subscribes to both kinds of events.
func (r *Results) Attach(src EventSource) {
	src.OnChange(testrun.EventTestStatus, r.Listen)
	src.OnChange(testrun.EventTestSuiteStatus, r.Listen)
}

// Listen records one event. It can be used directly as a testrun.Listener.
func (r *Results) Listen(e testrun.Event) {
	r.lock.Lock()
	defer r.lock.Unlock()
	switch ev := e.(type) {
	case testrun.TestStatusEvent:
		result := r.tests[ev.TestID]
		if result == nil {
			result = &TestResult{TestID: ev.TestID}
			r.tests[ev.TestID] = result
			r.order = append(r.order, ev.TestID)
		}
		result.Status = ev.Status
		result.Duration = time.Duration(ev.Time) * time.Millisecond
		result.Message = ev.Message
		result.StackTrace = ev.StackTrace
	case testrun.SuiteStatusEvent:
		r.suite = ev
	}
}

// Tests returns every test that has been reported, in the order of its first event.
func (r *Results) Tests() []TestResult {
	r.lock.Lock()
	defer r.lock.Unlock()
	ret := make([]TestResult, 0, len(r.order))
	for _, id := range r.order {
		ret = append(ret, *r.tests[id])
	}
	return ret
}

func (r *Results) Failures() []TestResult {
	var ret []TestResult
	for _, t := range r.Tests() {
		if t.Failed() {
			ret = append(ret, t)
		}
	}
	return ret
}

// Suite returns the most recent suite status event.
func (r *Results) Suite() testrun.SuiteStatusEvent {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.suite
}

// OK is true if the run finished and nothing failed.
func (r *Results) OK() bool {
	suite := r.Suite()
	return suite.Status == testrun.StatusOK && len(r.Failures()) == 0
}
