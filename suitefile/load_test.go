package suitefile

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/suite-runner/framework/testrun"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

func loadString(t *testing.T, source string) *Suite {
	s, err := Load(strings.NewReader(source), Options{})
	require.NoError(t, err)
	return s
}

type runOutcome struct {
	order  []string
	events map[string][]testrun.TestStatusEvent
	final  testrun.SuiteStatusEvent
}

func runSuite(t *testing.T, s *Suite, tests []*testrun.Test) runOutcome {
	r, err := testrun.New(s.TestSuite(), tests, s.Definitions(), nil)
	require.NoError(t, err)
	out := runOutcome{events: make(map[string][]testrun.TestStatusEvent)}
	r.OnChange(testrun.EventTestStatus, func(e testrun.Event) {
		ev := e.(testrun.TestStatusEvent)
		if ev.Status == testrun.StatusRunning {
			out.order = append(out.order, ev.TestID)
		}
		out.events[ev.TestID] = append(out.events[ev.TestID], ev)
	})
	r.OnChange(testrun.EventTestSuiteStatus, func(e testrun.Event) {
		out.final = e.(testrun.SuiteStatusEvent)
	})
	require.NoError(t, r.Execute(context.Background()))
	return out
}

func lastEvent(t *testing.T, out runOutcome, testID string) testrun.TestStatusEvent {
	events := out.events[testID]
	require.NotEmpty(t, events, "no events for %s", testID)
	return events[len(events)-1]
}

func TestLoadFileAndRun(t *testing.T) {
	s, err := LoadFile("testdata/counter.yaml", Options{})
	require.NoError(t, err)
	assert.Equal(t, "counter-suite", s.ID())
	assert.Equal(t, "counter", s.Name())

	out := runSuite(t, s, s.Select(nil))
	for id, events := range out.events {
		last := events[len(events)-1]
		assert.Equal(t, testrun.StatusOK, last.Status, "%s: %s", id, last.Message)
	}
	assert.Equal(t, testrun.StatusOK, out.final.Status)
	assert.Equal(t, []string{
		"root test",
		"increments/sees one increment",
		"increments/sees nested state",
		"increments/nested/sees both hooks",
		"shell/runs a command",
	}, out.order)
}

func TestTestsAreListedInFileOrder(t *testing.T) {
	s, err := LoadFile("testdata/counter.yaml", Options{})
	require.NoError(t, err)
	var ids []string
	for _, test := range s.Tests() {
		ids = append(ids, test.ID)
	}
	assert.Equal(t, []string{
		"root test",
		"increments/sees one increment",
		"increments/sees nested state",
		"increments/nested/sees both hooks",
		"shell/runs a command",
	}, ids)
	assert.Equal(t, 2*time.Second, s.Tests()[0].Timeout)
	assert.Equal(t, time.Second, s.Tests()[4].Timeout)
}

func TestSelectWithFilter(t *testing.T) {
	s, err := LoadFile("testdata/counter.yaml", Options{})
	require.NoError(t, err)
	selected := s.Select(func(path string) bool { return strings.HasPrefix(path, "increments/") })
	out := runSuite(t, s, selected)
	assert.Equal(t, []string{
		"increments/sees one increment",
		"increments/sees nested state",
		"increments/nested/sees both hooks",
	}, out.order)
	assert.Equal(t, testrun.StatusOK, out.final.Status)
}

func TestFailingAssertion(t *testing.T) {
	s := loadString(t, `
name: s
state: {x: 1}
tests:
  - name: wrong
    steps:
      - assert: x == 2
`)
	out := runSuite(t, s, s.Select(nil))
	last := lastEvent(t, out, "wrong")
	assert.Equal(t, testrun.StatusErr, last.Status)
	assert.Equal(t, `Error: assertion failed: x == 2 (state: {"x":1})`, last.Message)
	assert.NotEmpty(t, last.StackTrace)
	assert.Equal(t, "1 test has error(s).", out.final.Message)
}

func TestFailingBeforeHookFailsContext(t *testing.T) {
	s := loadString(t, `
name: s
contexts:
  - name: broken
    before:
      - fail: database unavailable
    tests:
      - name: a
        steps: [{assert: "true"}]
      - name: b
        steps: [{assert: "true"}]
`)
	out := runSuite(t, s, s.Select(nil))
	for _, id := range []string{"broken/a", "broken/b"} {
		events := out.events[id]
		require.Len(t, events, 1)
		assert.Equal(t, `Error occurred in "broken" before Hook: Error: database unavailable`, events[0].Message)
	}
	assert.Empty(t, out.order)
}

func TestFailingCommand(t *testing.T) {
	s := loadString(t, `
name: s
tests:
  - name: exits
    steps:
      - run: "echo oops; exit 3"
`)
	out := runSuite(t, s, s.Select(nil))
	last := lastEvent(t, out, "exits")
	assert.Equal(t, testrun.StatusErr, last.Status)
	assert.Contains(t, last.Message, "exit status 3")
	assert.Contains(t, last.Message, "oops")
}

func TestSleepingHookTimesOut(t *testing.T) {
	s := loadString(t, `
name: s
beforeEach:
  - sleep: 5s
    timeout: 20
tests:
  - name: never runs
    steps: [{fail: "should not get here"}]
`)
	out := runSuite(t, s, s.Select(nil))
	last := lastEvent(t, out, "never runs")
	assert.Equal(t, `Error occurred in "s" beforeEach Hook: TimeoutError: beforeEach hook took longer than 20ms. `+
		"This can be extended with the timeout option.", last.Message)
}

func TestTimeoutOption(t *testing.T) {
	s, err := Load(strings.NewReader(`
name: s
timeout: 100
tests:
  - name: a
  - name: b
    timeout: 7
`), Options{Timeout: 3 * time.Second})
	require.NoError(t, err)
	tests := s.Tests()
	assert.Equal(t, 3*time.Second, tests[0].Timeout)
	assert.Equal(t, 7*time.Millisecond, tests[1].Timeout)
}

func TestStepsWithinTestSeeTheirOwnUpdates(t *testing.T) {
	s := loadString(t, `
name: s
state: {n: 1}
tests:
  - name: a
    steps:
      - compute: {n: "n + 1"}
      - assert: n == 2
      - set: {label: "two"}
      - assert: label == "two"
`)
	out := runSuite(t, s, s.Select(nil))
	assert.Equal(t, testrun.StatusOK, lastEvent(t, out, "a").Status)
	assert.Equal(t, 2, s.Store().State().GetByKey("n").IntValue())
}

func TestGeneratedID(t *testing.T) {
	s := loadString(t, "name: s\n")
	_, err := uuid.Parse(s.ID())
	assert.NoError(t, err)
	assert.Empty(t, s.Tests())
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name    string
		source  string
		message string
	}{
		{"unknown field", "name: s\nbogus: 1\n", "field bogus not found"},
		{"missing suite name", "tests: []\n", "must have a name"},
		{"missing context name", "name: s\ncontexts:\n  - tests: []\n", "has no name"},
		{"missing test name", "name: s\ntests:\n  - steps: []\n", "has no name"},
		{"no action", "name: s\nbefore:\n  - timeout: 5\n", "step has no action"},
		{"two actions", "name: s\nbefore:\n  - {fail: x, sleep: 1s}\n", "more than one action"},
		{"bad expression", "name: s\ntests:\n  - name: a\n    steps: [{assert: \"x ==\"}]\n", "compile assertion"},
		{"bad compute", "name: s\ntests:\n  - name: a\n    steps: [{compute: {x: \"+\"}}]\n", "compile expression"},
		{"bad sleep", "name: s\nafter:\n  - sleep: soon\n", "invalid sleep duration"},
		{"step timeout in test", "name: s\ntests:\n  - name: a\n    steps: [{fail: x, timeout: 5}]\n", "only be set on hook steps"},
		{"duplicate test", "name: s\ntests:\n  - name: a\n  - name: a\n", `duplicate test "a"`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(c.source), Options{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), c.message)
		})
	}
}

func TestStoreSnapshotsAreImmutable(t *testing.T) {
	store := NewStore(map[string]interface{}{"a": 1})
	before := store.State()
	store.Set("a", ldvalue.Int(2))
	store.Set("b", ldvalue.String("x"))

	assert.Equal(t, 1, before.GetByKey("a").IntValue())
	assert.Equal(t, ldvalue.Null(), before.GetByKey("b"))
	after := store.State()
	assert.Equal(t, 2, after.GetByKey("a").IntValue())
	assert.Equal(t, "x", after.GetByKey("b").StringValue())
}

func TestRunOrderReversesEachContextGroup(t *testing.T) {
	tests := []*testrun.Test{
		{ID: "1", ContextID: "a"}, {ID: "2", ContextID: "a"}, {ID: "3", ContextID: "b"}, {ID: "4", ContextID: "b"}, {ID: "5", ContextID: "c"},
	}
	var ids []string
	for _, test := range runOrder(tests) {
		ids = append(ids, test.ID)
	}
	assert.Equal(t, []string{"2", "1", "4", "3", "5"}, ids)
}
