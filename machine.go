// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package doeff

// Program is a deferred effectful computation: the Go analogue of an
// `@do` function's call, per spec.md's glossary. Expr values are already
// lazy frame-chain data (adapted from kont.Expr) rather than something
// that runs on construction, so Program needs no separate thunk wrapper —
// building one never executes an effect; only eng.eval does.
type Program = Expr[any]

// engine is the step machine (spec.md C3) and dispatch engine (C4) fused
// into one recursive evaluator. They are inseparable in this design: every
// ordinary effect delimits exactly at its innermost enclosing WithHandler,
// which is both "locate a prompt and dispatch" (C4) and "advance the frame
// chain one step at a time" (C3) in the same act. eng.eval is the engine's
// only entry point; everything else is bookkeeping it calls into.
type engine struct {
	segs      *segmentArena
	onStep    func(ExecutionSnapshot) // optional; see snapshot.go
	stepCount uint64
}

func newEngine() *engine {
	return &engine{segs: newSegmentArena()}
}

// newContHandle captures (promptID, scope, the effect, and the remaining
// frame chain) as a resumable continuation. resume replays scope/frame
// through eval, exactly once — see ContHandle.Resume's doc comment.
func (eng *engine) newContHandle(promptID SegmentId, scope scopeChain, op Operation, next Frame) *ContHandle {
	k := &ContHandle{promptID: promptID, effect: op}
	k.aff = Once(func(v any) contResult {
		val, err := eng.eval(scope, v, next)
		return contResult{v: val, err: err}
	})
	return k
}

// eval is the unified step machine + dispatch engine. scope is the scope
// chain in effect at (current, frame) — i.e. which WithHandler segments
// are visible to an ordinary effect performed right here. Every ordinary
// effect (any Operation other than the four dispatch primitives) ends this
// call: it locates the innermost prompt in scope, invokes the handler, and
// returns whatever the handler program evaluates to — exactly like `shift`
// delimited by the nearest `reset`. Resume/Transfer re-enter a suspended
// body via a fresh, nested eval call; only the handler's own completion
// (or an explicit Transfer/Delegate) ends the *current* call.
func (eng *engine) eval(scope scopeChain, current any, frame Frame) (v any, err error) {
	for {
		switch f := frame.(type) {
		case ReturnFrame:
			return current, nil

		case *BindFrame[Erased, Erased]:
			next := f.F(current)
			current = Erased(next.Value)
			frame = ChainFrames(next.Frame, f.Next)

		case *MapFrame[Erased, Erased]:
			current = f.F(current)
			frame = f.Next

		case *ThenFrame[Erased, Erased]:
			current = Erased(f.Second.Value)
			frame = ChainFrames(f.Second.Frame, f.Next)

		case *chainedFrame:
			if nested, ok := f.first.(*chainedFrame); ok {
				frame = &chainedFrame{first: nested.first, rest: ChainFrames(nested.rest, f.rest)}
				continue
			}
			// Effect, Bind and Then heads fold f.rest into their own Next, so a
			// continuation captured at an effect carries the rest of the chain.
			if ef, ok := f.first.(*EffectFrame[Erased]); ok {
				frame = &EffectFrame[Erased]{Operation: ef.Operation, Resume: ef.Resume, Next: ChainFrames(ef.Next, f.rest)}
				continue
			}
			if bf, ok := f.first.(*BindFrame[Erased, Erased]); ok {
				next := bf.F(current)
				current, frame = Erased(next.Value), ChainFrames(ChainFrames(next.Frame, bf.Next), f.rest)
				continue
			}
			if tf, ok := f.first.(*ThenFrame[Erased, Erased]); ok {
				current, frame = Erased(tf.Second.Value), ChainFrames(ChainFrames(tf.Second.Frame, tf.Next), f.rest)
				continue
			}
			v, err := eng.eval(scope, current, ChainFrames(f.first, ReturnFrame{}))
			if err != nil {
				return nil, err
			}
			current, frame = v, f.rest

		case *EffectFrame[Erased]:
			switch op := f.Operation.(type) {
			case withHandlerOp:
				promptID, bodyScope := eng.segs.pushPrompt(scope, op.Handler)
				bodyVal, err := eng.eval(bodyScope, op.Body.Value, op.Body.Frame)
				eng.segs.markDone(promptID)
				eng.segs.sweep(promptID)
				if err != nil {
					return nil, err
				}
				current, frame = bodyVal, f.Next

			case resumeOp:
				bodyVal, err := op.K.resume(op.Value)
				if err != nil {
					return nil, err
				}
				current, frame = bodyVal, f.Next

			case transferOp:
				return op.K.resume(op.Value)

			case delegateOp:
				return eng.delegate(op)

			case parkOp:
				return nil, errTaskParked

			case hostAsyncEscapeOp:
				return nil, &hostAsyncEscapeSignal{Escape: op.Escape}

			default:
				eng.step(StepEffect, scope, op)
				return eng.dispatch(scope, op, f.Next)
			}

		default:
			if u, ok := frame.(interface{ Unwind(Erased) (Erased, Frame) }); ok {
				current, frame = u.Unwind(current)
				continue
			}
			return nil, newInternalError("unclassifiable yielded value")
		}
	}
}

// dispatch handles an ordinary user effect: locate the innermost prompt,
// invoke its handler, and evaluate the resulting Program strictly outside
// that prompt — a handler never sees its own emissions (spec.md §4.4).
func (eng *engine) dispatch(scope scopeChain, op Operation, next Frame) (any, error) {
	promptID, pb, ok := eng.segs.locatePromptFor(scope)
	if !ok {
		return nil, newUnhandledEffectError(op)
	}
	k := eng.newContHandle(promptID, scope, op, next)
	handlerProg, err := eng.invokeHandler(pb.Handler, op, k)
	if err != nil {
		return nil, err
	}
	v, err := eng.eval(pb.ParentScope, handlerProg.Value, handlerProg.Frame)
	eng.segs.markDone(promptID)
	eng.segs.sweep(promptID)
	return v, err
}

// delegate forwards op.K's effect to the next enclosing prompt, reusing
// the same continuation so that whoever eventually resumes it still
// resumes the original suspended body (spec.md §4.4 Delegate).
func (eng *engine) delegate(op delegateOp) (any, error) {
	outerScope := eng.segs.outerOf(op.K.promptID)
	eff := op.K.effect
	if op.HasOverride {
		eff = op.Override
	}
	promptID, pb, ok := eng.segs.locatePromptFor(outerScope)
	if !ok {
		return nil, newUnhandledEffectError(eff)
	}
	op.K.promptID = promptID
	handlerProg, err := eng.invokeHandler(pb.Handler, eff, op.K)
	if err != nil {
		return nil, err
	}
	v, err := eng.eval(pb.ParentScope, handlerProg.Value, handlerProg.Frame)
	eng.segs.markDone(promptID)
	eng.segs.sweep(promptID)
	return v, err
}

// invokeHandler calls h and recovers a panicking handler body into an
// EffectFailureError instead of unwinding the host Go stack — spec.md §7's
// "Handler raises inside its body" propagates as a value through the
// dispatching expression's Go-level error return, not as a process panic.
func (eng *engine) invokeHandler(h VMHandler, op Operation, k *ContHandle) (prog Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newEffectFailureError(r)
		}
	}()
	return h(op, k), nil
}

// RunPureProgram evaluates p with no handlers installed around it — any
// effect it performs outside a WithHandler of its own is unhandled. Used
// by tests; driver.go's Run and AsyncRun go through the scheduler instead.
func RunPureProgram(p Program) (any, error) {
	eng := newEngine()
	return eng.eval(scopeChain{}, p.Value, p.Frame)
}
