package suitefile

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/launchdarkly/suite-runner/framework"
	"github.com/launchdarkly/suite-runner/framework/testrun"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Options control how a suite file is turned into runnable tests.
type Options struct {
	// Timeout, if positive, is used for every hook and test that does not set its own
	// timeout, overriding the file's top-level timeout.
	Timeout time.Duration

	// Logger receives debug output from steps, such as the commands executed by run steps.
	Logger framework.Logger
}

// Suite is a loaded suite file: the context definitions, the tests, and the state store that
// the steps act on.
type Suite struct {
	id    string
	name  string
	defs  testrun.DefinitionSet
	tests []*testrun.Test
	store *Store
}

// LoadFile reads and parses a suite file.
func LoadFile(path string, opts Options) (*Suite, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open suite file: %w", err)
	}
	defer f.Close()
	return Load(f, opts)
}

// Load parses a suite file from a reader. Unknown fields are rejected.
func Load(r io.Reader, opts Options) (*Suite, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var spec FileSpec
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode suite file: %w", err)
	}
	return Build(spec, opts)
}

type builder struct {
	suite          *Suite
	defaultTimeout time.Duration
	logger         framework.Logger
	lastContextID  int
	testPaths      map[string]bool
}

// Build creates a Suite from an already-decoded FileSpec.
func Build(spec FileSpec, opts Options) (*Suite, error) {
	if spec.Name == "" {
		return nil, errors.New("suite file must have a name")
	}
	s := &Suite{
		id:    spec.ID,
		name:  spec.Name,
		store: NewStore(spec.State),
		defs:  testrun.DefinitionSet{Contexts: make(map[string]testrun.ContextDefinition)},
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}

	b := &builder{
		suite:          s,
		defaultTimeout: time.Duration(spec.Timeout) * time.Millisecond,
		logger:         opts.Logger,
		testPaths:      make(map[string]bool),
	}
	if opts.Timeout > 0 {
		b.defaultTimeout = opts.Timeout
	}
	if b.logger == nil {
		b.logger = framework.NullLogger()
	}

	rootID, err := b.addContext(spec.ContextSpec, "", nil)
	if err != nil {
		return nil, err
	}
	s.defs.RootContextID = rootID
	return s, nil
}

func (b *builder) addContext(spec ContextSpec, parentID string, path []string) (string, error) {
	where := strings.Join(append(append([]string(nil), path...), spec.Name), "/")
	if spec.Name == "" {
		return "", fmt.Errorf("context in %q has no name", strings.Join(path, "/"))
	}
	b.lastContextID++
	id := fmt.Sprintf("context-%d", b.lastContextID)

	def := testrun.ContextDefinition{ID: id, Name: spec.Name, ParentID: parentID}
	var err error
	if def.BeforeHooks, err = b.hooks(spec.Before, where, "before"); err != nil {
		return "", err
	}
	if def.BeforeEachHooks, err = b.hooks(spec.BeforeEach, where, "beforeEach"); err != nil {
		return "", err
	}
	if def.AfterEachHooks, err = b.hooks(spec.AfterEach, where, "afterEach"); err != nil {
		return "", err
	}
	if def.AfterHooks, err = b.hooks(spec.After, where, "after"); err != nil {
		return "", err
	}
	b.suite.defs.Contexts[id] = def

	// the root context's name is the suite name, which is not part of test paths
	var childPath []string
	if parentID != "" {
		childPath = append(append([]string(nil), path...), spec.Name)
	}
	for _, ts := range spec.Tests {
		if err := b.addTest(ts, id, childPath); err != nil {
			return "", err
		}
	}
	for _, cs := range spec.Contexts {
		if _, err := b.addContext(cs, id, childPath); err != nil {
			return "", err
		}
	}
	return id, nil
}

func (b *builder) hooks(steps []StepSpec, where, kind string) ([]testrun.Hook, error) {
	var ret []testrun.Hook
	for i, step := range steps {
		act, err := compileStep(step, b.logger)
		if err != nil {
			return nil, fmt.Errorf("%s: %s step %d: %w", where, kind, i+1, err)
		}
		store := b.suite.store
		ret = append(ret, testrun.Hook{
			Timeout: b.timeout(step.Timeout),
			Callback: func(ctx context.Context) error {
				return act(ctx, &scope{store: store, view: store.State()})
			},
		})
	}
	return ret, nil
}

func (b *builder) addTest(spec TestSpec, contextID string, contextPath []string) error {
	if spec.Name == "" {
		return fmt.Errorf("test in %q has no name", strings.Join(contextPath, "/"))
	}
	path := strings.Join(append(append([]string(nil), contextPath...), spec.Name), "/")
	if b.testPaths[path] {
		return fmt.Errorf("duplicate test %q", path)
	}
	b.testPaths[path] = true

	var actions []action
	for i, step := range spec.Steps {
		if step.Timeout != 0 {
			return fmt.Errorf("%s: step %d: timeout can only be set on hook steps; set it on the test instead", path, i+1)
		}
		act, err := compileStep(step, b.logger)
		if err != nil {
			return fmt.Errorf("%s: step %d: %w", path, i+1, err)
		}
		actions = append(actions, act)
	}

	store := b.suite.store
	b.suite.tests = append(b.suite.tests, &testrun.Test{
		ID:        path,
		Name:      spec.Name,
		ContextID: contextID,
		Timeout:   b.timeout(spec.Timeout),
		Func: func(ctx context.Context, _ *testrun.Test, state ldvalue.Value) error {
			s := &scope{store: store, view: state}
			for _, act := range actions {
				if err := act(ctx, s); err != nil {
					return err
				}
			}
			return nil
		},
	})
	return nil
}

func (b *builder) timeout(ms int) time.Duration {
	if ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return b.defaultTimeout
}

// ID returns the suite's id from the file, or a random one if the file did not specify it.
func (s *Suite) ID() string { return s.id }

func (s *Suite) Name() string { return s.name }

func (s *Suite) Definitions() testrun.DefinitionSet { return s.defs }

// Tests returns all tests in the order they appear in the file. Each test's ID is its path:
// the names of its enclosing contexts below the root, and its own name, joined with "/".
func (s *Suite) Tests() []*testrun.Test {
	return append([]*testrun.Test(nil), s.tests...)
}

// Select returns the tests whose paths pass the filter, or all tests if filter is nil, in
// the order to pass them to testrun.New. The engine prepends each test to its context, so
// within each context the list is reversed; the result is that tests run in file order.
func (s *Suite) Select(filter framework.Filter) []*testrun.Test {
	var selected []*testrun.Test
	for _, t := range s.tests {
		if filter == nil || filter(t.ID) {
			selected = append(selected, t)
		}
	}
	return runOrder(selected)
}

// runOrder reverses each run of consecutive tests that share a context. Tests are stored in
// context pre-order, so every context's tests form one such run.
func runOrder(tests []*testrun.Test) []*testrun.Test {
	ret := make([]*testrun.Test, 0, len(tests))
	for start := 0; start < len(tests); {
		end := start
		for end < len(tests) && tests[end].ContextID == tests[start].ContextID {
			end++
		}
		for i := end - 1; i >= start; i-- {
			ret = append(ret, tests[i])
		}
		start = end
	}
	return ret
}

// Store returns the state store that steps act on.
func (s *Suite) Store() *Store { return s.store }

// TestSuite returns the engine's view of this suite.
func (s *Suite) TestSuite() testrun.Suite {
	return testrun.Suite{ID: s.id, Name: s.name, State: s.store}
}
