// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package doeff

import (
	"fmt"
	"runtime"

	"github.com/pkg/errors"
)

// Error taxonomy (spec.md §7). Unlike kont, which panics on programmer
// error because it is a low-level combinator library, doeff is a runtime
// executing someone else's program: the same conditions are user-visible
// failures carried on RunResult.Err, not host-process panics.

// CreationSite records a source location (file, line, function). On a
// Failure it is the doeff function that constructed the error (for
// example the dispatch step that found no handler), not the user code
// that performed the failing effect; on a KPC it is CallProgram's caller.
type CreationSite struct {
	File     string
	Line     int
	Function string
}

func captureSite(skip int) CreationSite {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return CreationSite{}
	}
	fn := runtime.FuncForPC(pc)
	name := ""
	if fn != nil {
		name = fn.Name()
	}
	return CreationSite{File: file, Line: line, Function: name}
}

// Failure is the concrete error type carried on RunResult.Err. It wraps
// the triggering cause with github.com/pkg/errors (stack capture) and
// additionally carries the CreationSite of the doeff function that
// raised it.
type Failure struct {
	Kind  string
	Site  CreationSite
	cause error
}

func (f *Failure) Error() string {
	if f.Site.Function != "" {
		return fmt.Sprintf("doeff: %s at %s (%s:%d): %v", f.Kind, f.Site.Function, f.Site.File, f.Site.Line, f.cause)
	}
	return fmt.Sprintf("doeff: %s: %v", f.Kind, f.cause)
}

func (f *Failure) Unwrap() error { return f.cause }

func newFailure(kind string, cause error) *Failure {
	return &Failure{Kind: kind, Site: captureSite(2), cause: errors.WithStack(cause)}
}

// UnhandledEffectError is raised when an effect reaches no enclosing
// WithHandler — the scope chain was exhausted before locatePromptFor found
// a prompt (spec.md §4.2/§7).
type UnhandledEffectError struct {
	Effect Operation
}

func (e *UnhandledEffectError) Error() string {
	return fmt.Sprintf("doeff: unhandled effect %T", e.Effect)
}

func newUnhandledEffectError(op Operation) error {
	return newFailure("UnhandledEffect", &UnhandledEffectError{Effect: op})
}

// EffectFailureError wraps a panic recovered from a handler body. The
// panic value and a captured stack are both preserved.
type EffectFailureError struct {
	Recovered any
}

func (e *EffectFailureError) Error() string {
	return fmt.Sprintf("doeff: handler failed: %v", e.Recovered)
}

func newEffectFailureError(recovered any) error {
	return newFailure("EffectFailure", &EffectFailureError{Recovered: recovered})
}

// DoubleResumeError is raised when a ContHandle's Resume/Transfer is
// invoked a second time.
type DoubleResumeError struct{}

func (e *DoubleResumeError) Error() string { return "doeff: continuation resumed more than once" }

func newDoubleResumeError() error {
	return newFailure("DoubleResume", &DoubleResumeError{})
}

// InternalError marks a VM-internal invariant violation: an
// unclassifiable yielded value, or similar conditions that
// indicate a bug in doeff itself rather than in the program it is running.
type InternalError struct {
	Reason string
}

func (e *InternalError) Error() string { return "doeff: internal error: " + e.Reason }

func newInternalError(reason string) error {
	return newFailure("Internal", &InternalError{Reason: reason})
}

// DeadlockError is raised when the scheduler's ready queue empties while
// outstanding tasks are blocked on promises nothing will ever complete
// (spec.md §5, §7).
type DeadlockError struct {
	WaitingTasks int
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("doeff: scheduler deadlock: %d task(s) blocked with nothing runnable", e.WaitingTasks)
}

func newDeadlockError(waiting int) error {
	return newFailure("ScheduleDeadlock", &DeadlockError{WaitingTasks: waiting})
}

// CancelledError reports a cancelled task. Nothing in this package raises
// it: the scheduler has no operation that cancels a task.
type CancelledError struct {
	TaskId TaskId
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("doeff: task %d cancelled", e.TaskId)
}

func newCancelledError(id TaskId) error {
	return newFailure("Cancelled", &CancelledError{TaskId: id})
}

// HostAsyncEscapeError surfaces a host-async boundary crossing that AsyncRun
// did not resolve — e.g. Run (the synchronous entrypoint) encountering a
// Program that yields an Awaitable with no sync bridge configured.
type HostAsyncEscapeError struct {
	Escape *HostAsyncEscape
}

func (e *HostAsyncEscapeError) Error() string {
	return "doeff: host-async escape reached a synchronous Run boundary"
}

func newHostAsyncEscapeError(esc *HostAsyncEscape) error {
	return newFailure("HostAsyncEscape", &HostAsyncEscapeError{Escape: esc})
}
