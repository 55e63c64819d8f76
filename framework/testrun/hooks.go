package testrun

import (
	"context"
	"fmt"
	"time"
)

type hookKind string

const (
	hookBefore     hookKind = "before"
	hookBeforeEach hookKind = "beforeEach"
	hookAfterEach  hookKind = "afterEach"
	hookAfter      hookKind = "after"
)

// chainResult is the outcome of a hook chain: either every hook succeeded, or err is the
// error of the first one that failed.
type chainResult struct {
	err error
}

func (r chainResult) OK() bool { return r.err == nil }

func (r *TestRun) runContextHooks(ctx context.Context, rc *runnableContext, kind hookKind) chainResult {
	hooks := rc.BeforeHooks
	if kind == hookAfter {
		hooks = rc.AfterHooks
	}
	return r.runHookChain(ctx, nil, time.Now(), rc, kind, hooks)
}

// runHookChain runs hooks one at a time and stops at the first failure. If test is non-nil
// the failure is reported against that test only; otherwise it is reported against every
// test in rc and in all of its descendant contexts.
func (r *TestRun) runHookChain(
	ctx context.Context,
	test *Test,
	testStart time.Time,
	rc *runnableContext,
	kind hookKind,
	hooks []Hook,
) chainResult {
	for _, hook := range hooks {
		err := safelyRun(ctx, hook.Callback, hook.Timeout, string(kind)+" hook")
		if err == nil {
			continue
		}
		r.logger.Printf("%s hook failed in context %q: %s", kind, rc.Name, err)
		prefix := fmt.Sprintf(`Error occurred in "%s" %s Hook: `, rc.Name, kind)
		if test != nil {
			r.reportTestError(test, err, time.Since(testStart), prefix)
		} else {
			r.reportAllTestsAsFailed(rc, err, testStart, prefix)
		}
		return chainResult{err: err}
	}
	return chainResult{}
}

func (r *TestRun) reportAllTestsAsFailed(rc *runnableContext, err error, testStart time.Time, prefix string) {
	for _, test := range rc.tests {
		r.reportTestError(test, err, time.Since(testStart), prefix)
	}
	for _, id := range rc.childIDs {
		r.reportAllTestsAsFailed(r.contexts[id], err, testStart, prefix)
	}
}
