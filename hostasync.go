// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package doeff

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Awaitable is anything outside the VM a Program can suspend on: an HTTP
// round trip, a timer, a subprocess — any host-side operation the VM
// itself never performs I/O for (spec.md §6, SPEC_FULL.md §7.6).
type Awaitable interface {
	Await(ctx context.Context) (Resumed, error)
}

// HostAsyncEscape is what the step machine yields when a Program awaits an
// Awaitable and no synchronous bridge handler is installed to absorb it —
// it can only be resolved by AsyncRun's pump.
type HostAsyncEscape struct {
	Awaitable   Awaitable
	Resume      func(Resumed) Expr[any]
	ResumeError func(error) Expr[any]
}

type awaitOp struct{ Awaitable Awaitable }

func (awaitOp) OpResult() any { panic("phantom") }

// Await suspends the current task on awaitable. Handled synchronously by a
// SyncBridgeHandler (usable only under Run) or, lacking one, escapes as a
// HostAsyncEscape for AsyncRun's pump to resolve.
func Await(awaitable Awaitable) Program {
	return Expr[any]{Frame: &EffectFrame[Erased]{
		Operation: awaitOp{Awaitable: awaitable},
		Resume:    identityResume,
		Next:      ReturnFrame{},
	}}
}

// SyncBridgeHandler blocks the calling goroutine until awaitable.Await
// resolves, running it on a goroutine bounded by a
// golang.org/x/sync/semaphore.Weighted pool of the given width — the only
// concurrency primitive this package reaches for is the pack's own
// golang.org/x/sync, never a raw unbounded goroutine spawn. It must never
// be installed under AsyncRun: doing so would defeat the entire point of
// the async pump, so driver.go only wires it into Run.
func SyncBridgeHandler(ctx context.Context, width int64) VMHandler {
	sem := semaphore.NewWeighted(width)
	return func(op Operation, k *ContHandle) Program {
		a, ok := op.(awaitOp)
		if !ok {
			return k.Delegate()
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			return ExprThrowError[error, any](err)
		}
		type outcome struct {
			v   Resumed
			err error
		}
		result := make(chan outcome, 1)
		go func() {
			defer sem.Release(1)
			v, err := a.Awaitable.Await(ctx)
			result <- outcome{v: v, err: err}
		}()
		o := <-result
		if o.err != nil {
			return ExprThrowError[error, any](o.err)
		}
		return k.Resume(o.v)
	}
}

// AsyncBridgeHandler turns an awaitOp into a HostAsyncEscape instead of
// blocking, for AsyncRun's driver (driver.go) to pump — the Go rendition
// of spec.md §4.3's Outcome contract for a generator-based VM: "yield to
// the event loop" becomes "return control to AsyncRun's select loop".
func AsyncBridgeHandler() VMHandler {
	return func(op Operation, k *ContHandle) Program {
		a, ok := op.(awaitOp)
		if !ok {
			return k.Delegate()
		}
		esc := &HostAsyncEscape{
			Awaitable:   a.Awaitable,
			Resume:      func(v Resumed) Expr[any] { return k.Resume(v) },
			ResumeError: func(err error) Expr[any] { return ExprThrowError[error, any](err) },
		}
		return Expr[any]{Frame: &EffectFrame[Erased]{
			Operation: hostAsyncEscapeOp{Escape: esc},
			Resume:    identityResume,
			Next:      ReturnFrame{},
		}}
	}
}

// hostAsyncEscapeOp is intercepted directly by machine.go's eval, never
// reaching any user handler — analogous to the four dispatch primitives
// conthandle.go defines, but specific to the async boundary.
type hostAsyncEscapeOp struct{ Escape *HostAsyncEscape }

func (hostAsyncEscapeOp) OpResult() any { panic("phantom") }

// hostAsyncEscapeSignal is what eng.eval returns (as its error half, like
// errTaskParked) when it hits a hostAsyncEscapeOp: it unwinds the Go call
// stack back to whichever driver loop knows how to pump it — AsyncRun's,
// or, for a task spawned under the scheduler, runScheduler's — since an
// ordinary VMHandler never sees this operation at all.
type hostAsyncEscapeSignal struct{ Escape *HostAsyncEscape }

func (s *hostAsyncEscapeSignal) Error() string {
	return "doeff: host-async escape reached a driver loop that did not pump it"
}
