package testrun

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

type eventRecorder struct {
	events []Event
	lock   sync.Mutex
}

func recordEvents(r *TestRun) *eventRecorder {
	rec := &eventRecorder{}
	r.OnChange(EventTestStatus, rec.add)
	r.OnChange(EventTestSuiteStatus, rec.add)
	return rec
}

func (rec *eventRecorder) add(e Event) {
	rec.lock.Lock()
	rec.events = append(rec.events, e)
	rec.lock.Unlock()
}

// withoutTimes returns the events with all timing and stack information cleared, so they can
// be compared exactly.
func (rec *eventRecorder) withoutTimes() []Event {
	rec.lock.Lock()
	defer rec.lock.Unlock()
	ret := make([]Event, 0, len(rec.events))
	for _, e := range rec.events {
		switch ev := e.(type) {
		case TestStatusEvent:
			ev.Time, ev.StackTrace = 0, ""
			ret = append(ret, ev)
		case SuiteStatusEvent:
			ev.Time, ev.StackTrace = 0, ""
			ret = append(ret, ev)
		}
	}
	return ret
}

func (rec *eventRecorder) testEvents(testID string) []TestStatusEvent {
	rec.lock.Lock()
	defer rec.lock.Unlock()
	var ret []TestStatusEvent
	for _, e := range rec.events {
		if ev, ok := e.(TestStatusEvent); ok && ev.TestID == testID {
			ret = append(ret, ev)
		}
	}
	return ret
}

func (rec *eventRecorder) suiteEvents() []SuiteStatusEvent {
	rec.lock.Lock()
	defer rec.lock.Unlock()
	var ret []SuiteStatusEvent
	for _, e := range rec.events {
		if ev, ok := e.(SuiteStatusEvent); ok {
			ret = append(ret, ev)
		}
	}
	return ret
}

func (rec *eventRecorder) lastSuiteEvent(t *testing.T) SuiteStatusEvent {
	events := rec.suiteEvents()
	require.NotEmpty(t, events)
	return events[len(events)-1]
}

// callLog records the order in which hooks and test bodies are called.
type callLog struct {
	calls []string
	lock  sync.Mutex
}

func (c *callLog) add(name string) {
	c.lock.Lock()
	c.calls = append(c.calls, name)
	c.lock.Unlock()
}

func (c *callLog) get() []string {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *callLog) hook(name string) Hook {
	return Hook{Callback: func(context.Context) error {
		c.add(name)
		return nil
	}}
}

func (c *callLog) failingHook(name string, err error) Hook {
	return Hook{Callback: func(context.Context) error {
		c.add(name)
		return err
	}}
}

func (c *callLog) test(id, contextID string) *Test {
	return &Test{
		ID:        id,
		Name:      id,
		ContextID: contextID,
		Func: func(context.Context, *Test, ldvalue.Value) error {
			c.add(id)
			return nil
		},
	}
}

func emptyState() StateProvider {
	return StateFunc(func() ldvalue.Value { return ldvalue.ObjectBuild().Build() })
}

func defineContexts(rootID string, contexts ...ContextDefinition) DefinitionSet {
	defs := DefinitionSet{RootContextID: rootID, Contexts: make(map[string]ContextDefinition)}
	for _, c := range contexts {
		defs.Contexts[c.ID] = c
	}
	return defs
}

func newTestRun(t *testing.T, tests []*Test, defs DefinitionSet) (*TestRun, *eventRecorder) {
	r, err := New(Suite{ID: "suite", Name: "suite", State: emptyState()}, tests, defs, nil)
	require.NoError(t, err)
	return r, recordEvents(r)
}

func execute(t *testing.T, r *TestRun) {
	done := make(chan error, 1)
	go func() { done <- r.Execute(context.Background()) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		require.Fail(t, "timed out waiting for test run to finish")
	}
}
