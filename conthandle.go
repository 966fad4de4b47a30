// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package doeff

import "sync/atomic"

// Affine wraps a continuation with one-shot enforcement: it can be resumed
// at most once, and ContHandle below is the only thing in this package that
// constructs one. Affine types model affine resource usage and are
// fundamental to algebraic effect handlers, where a continuation must not
// be invoked twice or dropped silently.
type Affine[R, A any] struct {
	used   atomic.Uintptr
	resume func(A) R
}

// Once creates an affine continuation from a regular continuation. The
// returned Affine can be resumed at most once.
func Once[R, A any](k func(A) R) *Affine[R, A] {
	return &Affine[R, A]{resume: k}
}

// Resume invokes the continuation with the given value. Panics if the
// continuation has already been used — callers on the VM boundary use
// TryResume instead so a double call surfaces as a DoubleResumeError.
func (a *Affine[R, A]) Resume(v A) R {
	if a.used.Add(1) != 1 {
		panic("doeff: affine continuation resumed twice")
	}
	return a.resume(v)
}

// TryResume attempts to invoke the continuation. Returns (result, true) on
// success, or (zero, false) if already used.
func (a *Affine[R, A]) TryResume(v A) (R, bool) {
	if a.used.Add(1) != 1 {
		var zero R
		return zero, false
	}
	return a.resume(v), true
}

// Discard marks the continuation as used without invoking it, for
// explicitly dropping a continuation that will not be resumed.
func (a *Affine[R, A]) Discard() {
	a.used.Store(1)
}

// VMHandler is a Handler in spec terms: a function of (effect, K) that
// returns a Program describing what happens next. Installation is always
// structural, via WithHandler — there is no registry, no name lookup.
//
// A handler that recognizes op calls k.Resume or k.Transfer (or returns a
// value directly, abandoning k). A handler that does not recognize op calls
// k.Delegate to forward it to the next enclosing WithHandler.
type VMHandler func(op Operation, k *ContHandle) Program

// contResult is what resuming a ContHandle ultimately produces: eng.eval's
// own (value, error) pair, carried through Affine's single type parameter.
type contResult struct {
	v   any
	err error
}

// ContHandle is the opaque, one-shot continuation a handler receives
// alongside the effect it is handling (spec's K). It wraps a captured
// (prompt, scope, resume point) triple — the Go analogue of a reified
// delimited continuation — built directly on [Affine], the same one-shot
// primitive the CPS layer uses: resuming twice is reported as a
// DoubleResumeError, Affine.TryResume's false case, rather than a panic,
// since unlike an internal Affine this is a user-facing VM boundary
// (spec.md §7).
type ContHandle struct {
	aff      *Affine[contResult, any]
	promptID SegmentId
	effect   Operation
}

func (k *ContHandle) resume(v any) (any, error) {
	r, ok := k.aff.TryResume(v)
	if !ok {
		return nil, newDoubleResumeError()
	}
	return r.v, r.err
}

// Resume feeds v back into the suspended computation that performed the
// effect this handle was issued for, running it to completion (or to its
// next effect) and returning that value. Resume may be called at most once
// per ContHandle; a second call is reported as a DoubleResumeError rather
// than a panic, since unlike kont's internal Affine this is a user-facing
// VM boundary (spec.md §7).
func (k *ContHandle) Resume(v any) Program {
	return Expr[any]{Frame: &EffectFrame[Erased]{
		Operation: resumeOp{K: k, Value: v},
		Resume:    identityResume,
		Next:      ReturnFrame{},
	}}
}

// Transfer resumes the suspended computation like Resume, but abandons the
// rest of the handler body: the resumed computation's completion value
// becomes the result of the enclosing WithHandler directly (spec.md §4.4,
// testable scenario S4).
func (k *ContHandle) Transfer(v any) Program {
	return Expr[any]{Frame: &EffectFrame[Erased]{
		Operation: transferOp{K: k, Value: v},
		Resume:    identityResume,
		Next:      ReturnFrame{},
	}}
}

// Delegate forwards the effect this handle was issued for to the next
// enclosing handler, reusing the same continuation — the current handler
// declines without ever resuming or transferring.
func (k *ContHandle) Delegate() Program {
	return Expr[any]{Frame: &EffectFrame[Erased]{
		Operation: delegateOp{K: k},
		Resume:    identityResume,
		Next:      ReturnFrame{},
	}}
}

// DelegateEffect forwards a replacement effect to the next enclosing
// handler in place of the original one.
func (k *ContHandle) DelegateEffect(op Operation) Program {
	return Expr[any]{Frame: &EffectFrame[Erased]{
		Operation: delegateOp{K: k, Override: op, HasOverride: true},
		Resume:    identityResume,
		Next:      ReturnFrame{},
	}}
}

// resumeOp, transferOp, delegateOp, and withHandlerOp are the four
// dispatch/composition primitives from spec.md §3.1 rule 2. They are
// ordinary Operation values that flow through the same EffectFrame
// plumbing as user effects, but eval (machine.go) intercepts all four
// before they would ever reach a VMHandler — a handler is never asked to
// recognize its own control primitives.
type resumeOp struct {
	K     *ContHandle
	Value any
}

type transferOp struct {
	K     *ContHandle
	Value any
}

type delegateOp struct {
	K           *ContHandle
	Override    Operation
	HasOverride bool
}

type withHandlerOp struct {
	Handler VMHandler
	Body    Program
}

// WithHandler installs h around body for body's dynamic extent: effects
// body performs (and effects any handler invoked along the way performs,
// recursively) that h recognizes are routed to h; h sees the innermost
// handler position (spec.md §4.2 "innermost handler sees effects first").
func WithHandler(h VMHandler, body Program) Program {
	return Expr[any]{Frame: &EffectFrame[Erased]{
		Operation: withHandlerOp{Handler: h, Body: body},
		Resume:    identityResume,
		Next:      ReturnFrame{},
	}}
}

// WithHandlers nests multiple handlers, innermost last — handlers[0] is
// the outermost, handlers[len-1] is the innermost and sees effects first.
// This is exactly spec.md §6's "handlers=[h0,h1,h2] is exactly equivalent
// to WithHandler(h0, WithHandler(h1, WithHandler(h2, program)))".
func WithHandlers(handlers []VMHandler, body Program) Program {
	p := body
	for i := len(handlers) - 1; i >= 0; i-- {
		p = WithHandler(handlers[i], p)
	}
	return p
}
