// Package testrun is the execution engine for hierarchical test suites.
//
// A suite is described by a DefinitionSet (a tree of contexts, each of which may carry
// before, beforeEach, afterEach, and after hooks) and a flat list of Tests, each bound to one
// context. A TestRun walks the tree depth-first and runs every test exactly once, strictly
// sequentially:
//
// 1. A context's before hooks run once, before any of its own tests or descendant contexts.
// If one of them fails, every test under that context is marked as failed and the subtree is
// not run at all.
//
// 2. beforeEach and afterEach hooks are inherited by all descendant contexts. For each test,
// beforeEach hooks run from the root context down to the test's own context, and afterEach
// hooks run in the opposite order.
//
// 3. Every hook and test body runs with a timeout. A callback that takes too long is
// abandoned (its context is cancelled, but nothing forcibly stops it) and reported as failed.
//
// Progress is reported only through events (TEST_STATUS and TEST_SUITE_STATUS) delivered
// to listeners registered with OnChange. Failures in test code never cause Execute to return
// an error.
package testrun
