package testrun

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// TimeoutError is the error reported for a hook or test that did not finish in time.
type TimeoutError struct {
	Description string
	Timeout     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s took longer than %dms. This can be extended with the timeout option.",
		e.Description, e.Timeout.Milliseconds())
}

func (e *TimeoutError) Name() string { return "TimeoutError" }

// PanicError is the error reported for a hook or test that panicked.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	if err, ok := e.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(e.Value)
}

func (e *PanicError) Name() string { return "Panic" }

func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

var errCallbackExited = errors.New("callback exited without returning")

// safelyRun calls fn and waits for it to return, for at most timeout. It never panics:
// a panic in fn, an error returned by fn, a timeout, or cancellation of ctx all come back as
// the returned error. A nil result means fn succeeded.
//
// A timed-out fn keeps running in the background; its context is cancelled and its result,
// whenever it arrives, is discarded.
func safelyRun(ctx context.Context, fn func(context.Context) error, timeout time.Duration, description string) error {
	if fn == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout = effectiveTimeout(timeout)

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	resultCh := make(chan error, 1) // buffered so an abandoned fn never blocks
	go func() {
		returned := false
		defer func() {
			if r := recover(); r != nil {
				resultCh <- &PanicError{Value: r, Stack: debug.Stack()}
			} else if !returned {
				resultCh <- errCallbackExited
			}
		}()
		err := fn(callCtx)
		returned = true
		resultCh <- err
	}()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	select {
	case err := <-resultCh:
		return err
	case <-deadline.C:
		return &TimeoutError{Description: description, Timeout: timeout}
	case <-ctx.Done():
		return ctx.Err()
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

type namedError interface {
	Name() string
}

// errorName is the label shown before an error message in status events.
func errorName(err error) string {
	var n namedError
	if errors.As(err, &n) {
		return n.Name()
	}
	return "Error"
}

func formatError(prefix string, err error) string {
	if err.Error() == "" {
		return prefix + errorName(err)
	}
	return prefix + errorName(err) + ": " + err.Error()
}

func stackTraceOf(err error) string {
	var p *PanicError
	if errors.As(err, &p) {
		return string(p.Stack)
	}
	var st stackTracer
	if errors.As(err, &st) {
		return strings.TrimPrefix(fmt.Sprintf("%+v", st.StackTrace()), "\n")
	}
	return ""
}
