// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package doeff

// Built-in State, Reader, and Writer handlers for the VM layer (spec.md
// §4.5/C5), plus the Get/Put/Modify/Ask/Tell/Listen/Censor operation types
// both this file's VMHandlers and the Cont-level combinators in state.go,
// reader.go, and writer.go dispatch on — spec.md §8 invariant 2 requires "no
// special-casing of built-ins", so a user handler recognizing these same
// operation types is indistinguishable from the VM's own.

// Get is the effect operation for reading state.
// Perform(Get[S]{}) returns the current state of type S.
type Get[S any] struct{}

func (Get[S]) OpResult() S { panic("phantom") }

// DispatchState handles Get in State handler dispatch (state.go's
// Cont-level StateHandler/RunState).
func (Get[S]) DispatchState(state *S) (Resumed, bool) {
	return *state, true
}

// Put is the effect operation for writing state.
// Perform(Put[S]{Value: s}) replaces the current state.
type Put[S any] struct{ Value S }

func (Put[S]) OpResult() struct{} { panic("phantom") }

// DispatchState handles Put in State handler dispatch.
func (o Put[S]) DispatchState(state *S) (Resumed, bool) {
	*state = o.Value
	return struct{}{}, true
}

// Modify is the effect operation for modifying state.
// Perform(Modify[S]{F: f}) applies f to state and returns the new state —
// StoreHandler reuses this same type for the whole-map Modify that
// backs ModifyKey's per-key semantics below.
type Modify[S any] struct{ F func(S) S }

func (Modify[S]) OpResult() S { panic("phantom") }

// DispatchState handles Modify in State handler dispatch.
func (o Modify[S]) DispatchState(state *S) (Resumed, bool) {
	*state = o.F(*state)
	return *state, true
}

// Ask is the effect operation for reading the environment.
// Perform(Ask[E]{}) returns the current environment of type E.
type Ask[E any] struct{}

func (Ask[E]) OpResult() E { panic("phantom") }

// DispatchReader handles Ask in Reader handler dispatch (reader.go's
// Cont-level ReaderHandler/RunReader).
func (Ask[E]) DispatchReader(env *E) (Resumed, bool) {
	return *env, true
}

// Tell is the effect operation for appending output.
// Perform(Tell[W]{Value: w}) appends w to the accumulated output.
type Tell[W any] struct{ Value W }

func (Tell[W]) OpResult() struct{} { panic("phantom") }

// DispatchWriter handles Tell in Writer handler dispatch (writer.go's
// Cont-level writerHandler/RunWriter).
func (o Tell[W]) DispatchWriter(ctx *WriterContext[W]) (Resumed, bool) {
	*ctx.Output = append(*ctx.Output, o.Value)
	return struct{}{}, true
}

// Listen is the effect operation for observing output.
// Perform(Listen[W, A]{Body: m}) runs m and returns its output alongside
// the result. Listen[W, A] for all A implements DispatchWriter through
// structural interface assertion, sidestepping the type switch limitation
// where case Listen[W, Resumed] won't match Listen[W, int].
type Listen[W, A any] struct{ Body Cont[Resumed, A] }

func (Listen[W, A]) OpResult() Pair[A, []W] { panic("phantom") }

// DispatchWriter handles Listen in Writer handler dispatch.
func (o Listen[W, A]) DispatchWriter(ctx *WriterContext[W]) (Resumed, bool) {
	startLen := len(*ctx.Output)
	result := Handle(o.Body, writerDispatchHandler[W, A](ctx))
	written := make([]W, len(*ctx.Output)-startLen)
	copy(written, (*ctx.Output)[startLen:])
	return Pair[A, []W]{Fst: result, Snd: written}, true
}

// Censor is the effect operation for modifying output.
// Perform(Censor[W, A]{F: f, Body: m}) runs m and applies f to its output.
// Like Listen, Censor[W, A] for all A implements DispatchWriter.
type Censor[W, A any] struct {
	F    func([]W) []W
	Body Cont[Resumed, A]
}

func (Censor[W, A]) OpResult() A { panic("phantom") }

// DispatchWriter handles Censor in Writer handler dispatch.
func (o Censor[W, A]) DispatchWriter(ctx *WriterContext[W]) (Resumed, bool) {
	startLen := len(*ctx.Output)
	result := Handle(o.Body, writerDispatchHandler[W, A](ctx))
	newOutput := o.F((*ctx.Output)[startLen:])
	*ctx.Output = append((*ctx.Output)[:startLen], newOutput...)
	return result, true
}

// Pair holds two values — the result-plus-captured-log shape ListenOut
// and the CPS-level Listen both resume with.
type Pair[A, B any] struct {
	Fst A
	Snd B
}

// AskEnv reads the current environment map installed by the innermost
// EnvHandler (or Local overlay).
func AskEnv() Program {
	return Expr[any]{Frame: &EffectFrame[Erased]{
		Operation: Ask[map[string]any]{},
		Resume:    identityResume,
		Next:      ReturnFrame{},
	}}
}

type localOp struct {
	Overrides map[string]any
	Body      Program
}

// Local runs body under env overlaid with overrides, restoring the exact
// pre-Local environment afterward — new keys removed, shadowed keys
// restored (spec.md §3.5, testable property 4). Restoration falls out of
// WithHandler's own scoping rather than an explicit save/restore: the
// overlay handler is a fresh instance installed only for body's dynamic
// extent, so once body completes, the outer EnvHandler's untouched closure
// is simply what effects see again.
func Local(overrides map[string]any, body Program) Program {
	return Expr[any]{Frame: &EffectFrame[Erased]{
		Operation: localOp{Overrides: overrides, Body: body},
		Resume:    identityResume,
		Next:      ReturnFrame{},
	}}
}

// EnvHandler installs a read-only environment. Ask returns a defensive
// copy; Local installs a nested EnvHandler over the merged map for its
// body and relays the body's result back via Resume. Any other operation
// is declined via Delegate so EnvHandler composes underneath other
// handlers without swallowing effects it does not understand.
func EnvHandler(env map[string]any) VMHandler {
	return func(op Operation, k *ContHandle) Program {
		switch o := op.(type) {
		case Ask[map[string]any]:
			return k.Resume(cloneStringMap(env))
		case localOp:
			merged := mergeStringMap(env, o.Overrides)
			nested := WithHandler(EnvHandler(merged), o.Body)
			return ExprBind(nested, func(result any) Expr[any] { return k.Resume(result) })
		default:
			return k.Delegate()
		}
	}
}

func cloneStringMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func mergeStringMap(base, overrides map[string]any) map[string]any {
	out := cloneStringMap(base)
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// StoreHandler installs mutable VM state over a map[string]any — the
// backing type for RunResult.RawStore (spec.md §6). It returns the handler
// plus an accessor for the live (mutating) store, mirroring kont's
// StateHandler/getter pairing in state.go.
func StoreHandler(initial map[string]any) (VMHandler, func() map[string]any) {
	state := cloneStringMap(initial)
	h := func(op Operation, k *ContHandle) Program {
		switch o := op.(type) {
		case Get[map[string]any]:
			return k.Resume(cloneStringMap(state))
		case Put[map[string]any]:
			state = cloneStringMap(o.Value)
			return k.Resume(struct{}{})
		case Modify[map[string]any]:
			state = o.F(state)
			return k.Resume(cloneStringMap(state))
		default:
			return k.Delegate()
		}
	}
	return h, func() map[string]any { return state }
}

// WriterOutHandler installs an accumulating output log of arbitrary entries
// (spec.md §4.5's Writer built-in). Listen and Censor run their body under
// a fresh nested WriterOutHandler sharing the same backing slice pointer, so
// the body's writes are visible to the outer log too — matching
// kont.writerHandler's Listen/Censor semantics in writer.go.
func WriterOutHandler() (VMHandler, func() []any) {
	var output []any
	var h VMHandler
	h = func(op Operation, k *ContHandle) Program {
		switch o := op.(type) {
		case Tell[any]:
			output = append(output, o.Value)
			return k.Resume(struct{}{})
		case listenOp:
			start := len(output)
			nested := WithHandler(h, o.Body)
			return ExprBind(nested, func(result any) Expr[any] {
				written := append([]any(nil), output[start:]...)
				return k.Resume(Pair[any, []any]{Fst: result, Snd: written})
			})
		case censorOp:
			start := len(output)
			nested := WithHandler(h, o.Body)
			return ExprBind(nested, func(result any) Expr[any] {
				censored := o.F(append([]any(nil), output[start:]...))
				output = append(output[:start], censored...)
				return k.Resume(result)
			})
		default:
			return k.Delegate()
		}
	}
	return h, func() []any { return output }
}

type listenOp struct{ Body Program }
type censorOp struct {
	F    func([]any) []any
	Body Program
}

// GetKey reads a single key from the store installed by the innermost
// StoreHandler — the literal Get(key) operation of spec.md §3.5/§6,
// layered over the whole-map Get[map[string]any] the CPS substrate
// already provides.
func GetKey(key string) Program {
	return ExprBind(ExprPerform(Get[map[string]any]{}), func(store map[string]any) Expr[any] {
		return Expr[any]{Value: store[key]}
	})
}

// PutKey writes value under key in the store — spec.md's Put(key,value),
// implemented as read-modify-write over the whole-map Modify[map[string]any]
// so it composes with any other handler layered around StoreHandler.
func PutKey(key string, value any) Program {
	return ExprBind(ExprPerform(Modify[map[string]any]{F: func(s map[string]any) map[string]any {
		s[key] = value
		return s
	}}), func(map[string]any) Expr[any] {
		return Expr[any]{Value: struct{}{}}
	})
}

// ModifyKey applies f to the value stored under key and resumes with the
// value that was there *before* the modification (spec.md §4.5: "Modify
// returns old value", testable property 8) — not the new value the
// whole-map CPS-layer Modify[S] returns.
func ModifyKey(key string, f func(any) any) Program {
	return ExprBind(ExprPerform(Get[map[string]any]{}), func(store map[string]any) Expr[any] {
		old := store[key]
		return ExprBind(ExprPerform(Modify[map[string]any]{F: func(s map[string]any) map[string]any {
			s[key] = f(s[key])
			return s
		}}), func(map[string]any) Expr[any] {
			return Expr[any]{Value: old}
		})
	})
}

// TellOut appends an entry to the innermost WriterHandler's output log.
func TellOut(value any) Program {
	return Expr[any]{Frame: &EffectFrame[Erased]{
		Operation: Tell[any]{Value: value},
		Resume:    identityResume,
		Next:      ReturnFrame{},
	}}
}

// ListenOut runs body and returns its result paired with the entries it
// wrote, per spec.md §4.5.
func ListenOut(body Program) Program {
	return Expr[any]{Frame: &EffectFrame[Erased]{
		Operation: listenOp{Body: body},
		Resume:    identityResume,
		Next:      ReturnFrame{},
	}}
}

// CensorOut runs body and rewrites the entries it wrote through f.
func CensorOut(f func([]any) []any, body Program) Program {
	return Expr[any]{Frame: &EffectFrame[Erased]{
		Operation: censorOp{F: f, Body: body},
		Resume:    identityResume,
		Next:      ReturnFrame{},
	}}
}
