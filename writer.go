// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package doeff

// Writer effect combinators built on the Tell/Listen/Censor/Pair operation
// types env.go declares — TellOut/ListenOut/CensorOut and the Cont-level
// handler below both dispatch on the same types.

// TellWriter fuses Tell + Then: performs Tell, then runs next.
func TellWriter[W, B any](w W, next Cont[Resumed, B]) Cont[Resumed, B] {
	return func(k func(B) Resumed) Resumed {
		m := acquireMarker()
		m.op = Tell[W]{Value: w}
		m.f = next
		m.k = k
		m.resume = thenMarkerResume[B]
		return m
	}
}

// ListenWriter runs a computation and returns its output alongside the result.
func ListenWriter[W, A any](body Cont[Resumed, A]) Cont[Resumed, Pair[A, []W]] {
	return Perform(Listen[W, A]{Body: body})
}

// CensorWriter runs a computation and modifies its output.
func CensorWriter[W, A any](f func([]W) []W, body Cont[Resumed, A]) Cont[Resumed, A] {
	return Perform(Censor[W, A]{F: f, Body: body})
}

// writerHandler implements Handler for zero-allocation writer handling.
type writerHandler[W, R any] struct {
	ctx *WriterContext[W]
}

// Dispatch implements Handler for zero-allocation handling.
func (h *writerHandler[W, R]) Dispatch(op Operation) (Resumed, bool) {
	if wop, ok := op.(interface {
		DispatchWriter(ctx *WriterContext[W]) (Resumed, bool)
	}); ok {
		return wop.DispatchWriter(h.ctx)
	}
	unhandledEffect("WriterHandler")
	return nil, false
}

// writerDispatchHandler creates a handler using the dispatch interface.
// This is an internal helper used by WriterHandler and Listen/Censor dispatch.
func writerDispatchHandler[W, R any](ctx *WriterContext[W]) *writerHandler[W, R] {
	return &writerHandler[W, R]{ctx: ctx}
}

// WriterHandler creates a handler for Writer effects.
// Returns a concrete handler and a function to retrieve accumulated output.
func WriterHandler[W, R any]() (*writerHandler[W, R], func() []W) {
	var output []W
	ctx := &WriterContext[W]{Output: &output}
	return writerDispatchHandler[W, R](ctx), func() []W { return output }
}

// RunWriter runs a writer computation and returns both result and output.
func RunWriter[W, A any](m Cont[Resumed, A]) (A, []W) {
	var output []W
	ctx := &WriterContext[W]{Output: &output}
	h := &writerHandler[W, A]{ctx: ctx}
	result := Handle(m, h)
	return result, output
}

// ExecWriter runs a writer computation and returns only the output.
func ExecWriter[W, A any](m Cont[Resumed, A]) []W {
	_, output := RunWriter[W, A](m)
	return output
}

// RunWriterExpr runs an Expr writer computation.
func RunWriterExpr[W, A any](m Expr[A]) (A, []W) {
	var output []W
	ctx := &WriterContext[W]{Output: &output}
	h := &writerHandler[W, A]{ctx: ctx}
	result := HandleExpr(m, h)
	return result, output
}
