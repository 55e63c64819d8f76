package testrun

import "fmt"

// runnableContext is a context definition plus the tests and child contexts that are
// actually reachable from the tests selected for a run.
type runnableContext struct {
	ContextDefinition
	tests    []*Test
	childIDs []string
	childSet map[string]struct{}
}

func newRunnableContext(id string, def ContextDefinition) *runnableContext {
	rc := &runnableContext{
		ContextDefinition: def,
		childSet:          make(map[string]struct{}),
	}
	rc.ID = id
	return rc
}

// addChild registers a child context. Children keep the order in which they were first seen.
func (rc *runnableContext) addChild(id string) {
	if _, ok := rc.childSet[id]; ok {
		return
	}
	rc.childSet[id] = struct{}{}
	rc.childIDs = append(rc.childIDs, id)
}

// DefinitionError is returned by New when the tests and context definitions are inconsistent.
type DefinitionError struct {
	TestID    string
	ContextID string
	Reason    string

	// NilTest is set when the entry at TestIndex in the test list is nil.
	NilTest   bool
	TestIndex int
}

func (e *DefinitionError) Error() string {
	if e.NilTest {
		return fmt.Sprintf("invalid test definitions: test at index %d is nil", e.TestIndex)
	}
	if e.TestID != "" {
		return fmt.Sprintf("invalid test definitions for test %q: context %q %s", e.TestID, e.ContextID, e.Reason)
	}
	return fmt.Sprintf("invalid test definitions: context %q %s", e.ContextID, e.Reason)
}

// buildContextTree creates a runnableContext for every context that is either the context of
// some test or an ancestor of one. Contexts that no test depends on are left out.
//
// Each test is prepended to its context's list, so within a context tests end up in the
// reverse of the order they appear in tests.
func buildContextTree(tests []*Test, defs DefinitionSet) (map[string]*runnableContext, error) {
	if root, ok := defs.Contexts[defs.RootContextID]; !ok {
		return nil, &DefinitionError{ContextID: defs.RootContextID, Reason: "is the root context but is not defined"}
	} else if root.ParentID != "" {
		return nil, &DefinitionError{ContextID: defs.RootContextID, Reason: "is the root context but has a parent"}
	}

	contexts := make(map[string]*runnableContext)
	for i, test := range tests {
		if test == nil {
			return nil, &DefinitionError{NilTest: true, TestIndex: i}
		}
		if err := addContextChain(contexts, test.ContextID, defs); err != nil {
			err.TestID = test.ID
			return nil, err
		}
		rc := contexts[test.ContextID]
		rc.tests = append([]*Test{test}, rc.tests...)
	}
	return contexts, nil
}

// addContextChain walks from a context up to the root, creating any contexts that do not
// exist yet in target and registering each one as a child of its parent.
func addContextChain(target map[string]*runnableContext, id string, defs DefinitionSet) *DefinitionError {
	visited := make(map[string]bool)
	childID := ""
	for {
		def, ok := defs.Contexts[id]
		if !ok {
			return &DefinitionError{ContextID: id, Reason: "is not defined"}
		}
		if visited[id] {
			return &DefinitionError{ContextID: id, Reason: "is its own ancestor"}
		}
		visited[id] = true

		rc, existed := target[id]
		if !existed {
			rc = newRunnableContext(id, def)
			target[id] = rc
		}
		if childID != "" {
			rc.addChild(childID)
		}
		if existed {
			// everything above an existing context was already added and checked
			return nil
		}

		if def.ParentID == "" {
			if id != defs.RootContextID {
				return &DefinitionError{ContextID: id, Reason: "has no parent but is not the root context"}
			}
			return nil
		}
		childID, id = id, def.ParentID
	}
}
