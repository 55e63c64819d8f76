package reporting

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/suite-runner/framework/testrun"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

func passing(id string) *testrun.Test {
	return &testrun.Test{ID: id, Name: id, ContextID: "root"}
}

func failing(id, message string) *testrun.Test {
	return &testrun.Test{
		ID:        id,
		Name:      id,
		ContextID: "root",
		Func: func(context.Context, *testrun.Test, ldvalue.Value) error {
			return errors.New(message)
		},
	}
}

func emptyStateProvider() testrun.StateProvider {
	return testrun.StateFunc(func() ldvalue.Value { return ldvalue.ObjectBuild().Build() })
}

func newRun(t *testing.T, tests ...*testrun.Test) *testrun.TestRun {
	defs := testrun.DefinitionSet{
		RootContextID: "root",
		Contexts:      map[string]testrun.ContextDefinition{"root": {ID: "root", Name: "suite"}},
	}
	r, err := testrun.New(testrun.Suite{ID: "suite-1", Name: "suite", State: emptyStateProvider()}, tests, defs, nil)
	require.NoError(t, err)
	return r
}

func execute(t *testing.T, r *testrun.TestRun) {
	require.NoError(t, r.Execute(context.Background()))
}
