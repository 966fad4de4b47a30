// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package doeff is an algebraic-effects virtual machine: it executes
// @do-style programs that yield effects, dispatches those effects through a
// stack of user-installed handlers with delimited-continuation semantics
// (resume / transfer / delegate), carries an environment and a mutable
// store, and hands off to a host async runtime through a single explicit
// escape type.
//
// # Two layers
//
// The package is built in two layers. The lower layer is a
// continuation-passing-style substrate — [Cont], [Expr], [Op], [Handler],
// [Perform], [Handle]/[HandleExpr] — that plays the same role kont plays
// standalone: a minimal, F-bounded, defunctionalizable effect-dispatch
// core. The upper layer is the VM proper: typed arena identities
// ([SegmentId], [ContId], [TaskId], [PromiseId]), [Segment]s and
// [ContHandle]s with real delimited-control semantics ([WithHandler],
// [Resume], [Transfer], [Delegate]), a cooperative [Scheduler] handler, a
// [KPC] deferred-call handler, a pluggable cache-effect contract in
// sub-package cache, and the public [Run]/[AsyncRun] entrypoints.
//
// # Design Philosophy
//
// doeff provides:
//   - Minimal but complete interfaces for continuations, control, and effects
//   - F-bounded polymorphism for compile-time dispatch and devirtualization
//   - Defunctionalized evaluation with allocation-free evaluation loops (construction may allocate)
//   - A step machine (see [Step], [StepExpr] below and machine.go) that classifies every yielded
//     value into exactly one of Effect / dispatch-primitive / DoThunk — never by duck-typing
//
// # F-Bounded Architecture
//
// The package uses Go 1.26 F-bounded polymorphism (type T[P T[P]]) as a core
// architectural principle. This enables:
//
//   - Compile-time knowledge of concrete types at monomorphization time
//   - Potential devirtualization of dispatch calls by the compiler
//   - Allocation-free trampoline loops for effect handling through typed dispatch
//
// Key F-bounded interfaces:
//
//   - [Op]: type Op[O Op[O, A], A any] — operations know their concrete type
//   - [Handler]: type Handler[H Handler[H, R], R any] — handlers know their concrete type
//
// # Core Operations
//
// Minimal monad operations:
//
//   - [Return]: Lift a pure value into a continuation
//   - [Bind]: Sequence two continuations
//
// Derived operations:
//
//   - [Map]: Apply a function to the result — equivalent to Bind(m, func(a) Return(f(a)))
//   - [Then]: Sequence, discarding first result — equivalent to Bind(m, func(_) n)
//
// Execution:
//
//   - [Suspend]: Create a continuation from a CPS function
//   - [RunCont]: Execute a continuation to obtain the result
//   - [RunContWith]: Execute with a custom final handler
//
// # Delimited Control (CPS layer)
//
//   - [Shift]: Capture the current continuation up to [Reset]
//   - [Reset]: Establish a delimiter for [Shift]
//
// These are the untyped CPS-layer primitives. The VM layer's own delimited
// control ([WithHandler], [ContHandle.Resume], [ContHandle.Transfer],
// [ContHandle.Delegate] in conthandle.go) is built from the same idea but
// operates on [Segment]s and [ContHandle]s rather than raw Go closures, so
// that a captured continuation survives being handed across an effect
// boundary to arbitrary handler code.
//
// # Stepping Boundary
//
// [Step] and [StepExpr] provide one-effect-at-a-time evaluation for external
// runtimes that drive computation asynchronously (e.g., event loops).
// Unlike [Handle]/[HandleExpr], which run a synchronous trampoline to completion,
// the stepping API yields control at each effect suspension. The VM's own
// step function (snapshot.go, unexported — the public surface is [Run] and
// [AsyncRun]) is the program-level generalization of this same idea, feeding
// an [ExecutionSnapshot] to an installed [WithOnStep] hook instead.
//
// Nil completion convention: effect runners and stepping treat a nil [Resumed]
// value as "completed with the zero value". This implies computations whose
// final result type is a pointer or interface cannot use nil as a meaningful
// result value; wrap such results in a sum type (e.g., [Either]) if you need to
// distinguish "completed with nil" from "completed with zero".
//
//   - [Step]: Drive a [Cont] computation until it completes or suspends
//   - [StepExpr]: Drive an [Expr] computation until it completes or suspends
//   - [Suspension]: Pending operation with one-shot resumption handle
//   - [Suspension.Op]: Returns the effect operation that caused the suspension
//   - [Suspension.Resume]: Advance to the next suspension or completion (panics on reuse)
//   - [Suspension.TryResume]: Non-panicking variant of Resume
//   - [Suspension.Discard]: Drop without invoking
//
// Returns (value, nil) on completion, or (zero, [*Suspension]) when pending.
// Affine semantics: each [Suspension] may be resumed at most once.
//
// # Algebraic Effects
//
// Effects are defined as types implementing the F-bounded [Op] constraint,
// and handlers interpret these effects via the F-bounded [Handler] interface.
// Handler dispatch returns (resumeValue, true) to continue the computation,
// or (finalResult, false) to short-circuit.
//
//   - [Op]: F-bounded effect operation interface
//   - [Operation]: Runtime type for effect operations
//   - [Resumed]: Runtime type for resumption values
//   - [Handler]: F-bounded effect interpreter interface
//   - [Perform]: Trigger an effect operation
//   - [Handle]: Run a computation with an F-bounded effect handler
//   - [HandleFunc]: Create a handler from a dispatch function
//
// # Standard Effects
//
// State effect for mutable state threading: [Get], [Put], [Modify],
// [StateHandler], [RunState]/[EvalState]/[ExecState].
//
// Reader effect for read-only environment: [Ask], [Local], [ReaderHandler],
// [RunReader].
//
// Writer effect for accumulating output: [Tell], [Listen], [Censor],
// [WriterHandler], [RunWriter]/[ExecWriter].
//
// Error effect for exception-like control flow: [Throw], [Catch],
// [RunError] (returns [Either]).
//
// # VM-level effects
//
// Scheduler: [Spawn], [Gather], [Race], [CreatePromise], [AwaitPromise],
// [CompletePromise], [FailPromise], [CreateExternalPromise] — see scheduler.go.
//
// Cache (contract only; backends in sub-package cache): [CacheGet],
// [CachePut], [CacheDelete], [CacheExists] — see cachehandler.go.
//
// Host-async boundary: [Await] — either absorbed synchronously by a sync
// bridge handler, or surfaced as [HostAsyncEscape] for [AsyncRun] to pump.
// See hostasync.go.
//
// # Either Type
//
// [Either] represents success (Right) or failure (Left): [Left], [Right],
// [Either.IsLeft], [Either.IsRight], [MatchEither], [MapEither],
// [FlatMapEither], [MapLeftEither].
//
// # Resource Safety
//
// This package has no bracket-style acquire/use/release combinator and no
// cleanup-on-error helper.
//
// # Affine Continuations
//
// [Affine] wraps a continuation with one-shot enforcement: [Once],
// [Affine.Resume], [Affine.TryResume], [Affine.Discard]. [ContHandle] (the
// VM's public K) reuses this same one-shot discipline.
//
// # Bridge: Reify / Reflect
//
// The two representations can be converted at runtime following
// Filinski (1994): reify converts semantic values to syntactic
// representations, and reflect is the inverse.
//
//   - [Reify]: Cont[Resumed, A] → Expr[A] (closures become frames)
//   - [Reflect]: Expr[A] → Cont[Resumed, A] (frames become closures)
//
// Conversion is lazy for effectful computations: each effect step is
// translated on demand during evaluation. Round-trip preserves semantics.
//
// # Defunctionalized Evaluation
//
// Defunctionalization (Reynolds 1972) enables allocation-free evaluation loops
// for continuation frames. Instead of closures, continuations are represented as tagged
// frame structures. The [Expr] type carries explicit frame data, unlike the
// closure-based [Cont] which tracks the answer type R at compile time. The VM's
// own program representation ([Program], machine.go) is built exclusively on
// [Expr], not [Cont] — the VM needs the frame chain to be inspectable (for
// [ExecutionSnapshot]) and splice-able (for captured continuations), which the
// closure form cannot offer.
//
// [Frame] is the marker interface for all frame types: [ReturnFrame],
// [BindFrame], [MapFrame], [ThenFrame], [EffectFrame], [UnwindFrame]. The
// VM's dispatch primitives (WithHandler, Resume, Transfer, Delegate) are
// operations carried by an [EffectFrame], not frame types of their own.
//
// # Example
//
//	type Ask[A any] struct{}
//	func (Ask[A]) OpResult() A { panic("phantom") }
//
//	comp := doeff.Bind(
//		doeff.Perform(Ask[int]{}),
//		func(x int) doeff.Cont[doeff.Resumed, int] {
//			return doeff.Return[doeff.Resumed](x * 2)
//		},
//	)
//
//	result := doeff.Handle(comp, doeff.HandleFunc[int](func(op doeff.Operation) (doeff.Resumed, bool) {
//		switch op.(type) {
//		case Ask[int]:
//			return 21, true // resume with 21
//		default:
//			panic("unhandled effect")
//		}
//	}))
//	// result == 42
//
// A full VM-level example lives in the package-level Run example in
// driver_test.go.
package doeff
