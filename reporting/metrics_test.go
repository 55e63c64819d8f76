package reporting

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/suite-runner/framework/testrun"
)

func TestMetricsFromRun(t *testing.T) {
	r := newRun(t, failing("bad", "boom"), passing("good"), passing("also good"))
	m := NewMetrics("suite-1")
	m.Attach(r)
	execute(t, r)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.tests.WithLabelValues("OK")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.tests.WithLabelValues("ERR")))
	assert.Equal(t, float64(100), testutil.ToFloat64(m.progress))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.suiteOK))
	assert.Equal(t, 1, testutil.CollectAndCount(m.testDuration))
}

func TestMetricsSuiteOK(t *testing.T) {
	r := newRun(t, passing("good"))
	m := NewMetrics("suite-1")
	m.Attach(r)
	execute(t, r)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.suiteOK))
}

func TestMetricsWriteToTextfile(t *testing.T) {
	r := newRun(t, passing("good"))
	m := NewMetrics("suite-1")
	m.Attach(r)
	execute(t, r)

	path := filepath.Join(t.TempDir(), "suite.prom")
	require.NoError(t, m.WriteToTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `suite_runner_tests{status="OK",suite_id="suite-1"} 1`)
	assert.Contains(t, string(data), `suite_runner_progress_percent{suite_id="suite-1"} 100`)
}

func TestMetricsCountEachTestOnceWhenLaterHooksFail(t *testing.T) {
	failHook := testrun.Hook{Callback: func(context.Context) error { return errors.New("teardown") }}
	defs := testrun.DefinitionSet{
		RootContextID: "root",
		Contexts: map[string]testrun.ContextDefinition{
			"root": {ID: "root", Name: "suite"},
			"each": {ID: "each", Name: "each", ParentID: "root", AfterEachHooks: []testrun.Hook{failHook}},
			"once": {ID: "once", Name: "once", ParentID: "root", AfterHooks: []testrun.Hook{failHook}},
		},
	}
	tests := []*testrun.Test{
		{ID: "a", Name: "a", ContextID: "each"},
		{ID: "b", Name: "b", ContextID: "once"},
		{ID: "c", Name: "c", ContextID: "once"},
		{ID: "d", Name: "d", ContextID: "root"},
	}
	r, err := testrun.New(testrun.Suite{ID: "suite-1", State: emptyStateProvider()}, tests, defs, nil)
	require.NoError(t, err)
	m := NewMetrics("suite-1")
	m.Attach(r)
	execute(t, r)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.tests.WithLabelValues("OK")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.tests.WithLabelValues("ERR")))

	count, err := testutil.GatherAndCount(m.Registry(), "suite_runner_test_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "suite_runner_test_duration_seconds" {
			assert.Equal(t, uint64(4), f.GetMetric()[0].GetHistogram().GetSampleCount())
		}
	}
}
