// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package doeff_test

import (
	"math/rand/v2"
	"testing"

	"code.hybscloud.com/doeff"
)

const propertyN = 1000

// randInt returns a random int in [-1000, 1000].
func randInt(rng *rand.Rand) int {
	return rng.IntN(2001) - 1000
}

// randString returns a random ASCII string of length [0, 8].
func randString(rng *rand.Rand) string {
	n := rng.IntN(9)
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(rng.IntN(95) + 32) // printable ASCII
	}
	return string(b)
}

// --- Group 1: Cont Monad Laws ---

// TestPropertyContLeftIdentity: Bind(Return(a), f) ≡ f(a)
func TestPropertyContLeftIdentity(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 0))
	for range propertyN {
		a := randInt(rng)
		f := func(x int) doeff.Cont[int, int] { return doeff.Return[int](x * 3) }
		left := doeff.RunCont(doeff.Bind(doeff.Return[int](a), f))
		right := doeff.RunCont(f(a))
		if left != right {
			t.Fatalf("left identity: %d != %d (a=%d)", left, right, a)
		}
	}
}

// TestPropertyContRightIdentity: Bind(m, Return) ≡ m
func TestPropertyContRightIdentity(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 0))
	for range propertyN {
		a := randInt(rng)
		m := doeff.Return[int](a)
		left := doeff.RunCont(doeff.Bind(m, func(x int) doeff.Cont[int, int] {
			return doeff.Return[int](x)
		}))
		right := doeff.RunCont(m)
		if left != right {
			t.Fatalf("right identity: %d != %d (a=%d)", left, right, a)
		}
	}
}

// TestPropertyContAssociativity: Bind(Bind(m, f), g) ≡ Bind(m, func(x) Bind(f(x), g))
func TestPropertyContAssociativity(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 0))
	for range propertyN {
		a := randInt(rng)
		m := doeff.Return[int](a)
		f := func(x int) doeff.Cont[int, int] { return doeff.Return[int](x + 3) }
		g := func(x int) doeff.Cont[int, int] { return doeff.Return[int](x * 2) }
		left := doeff.RunCont(doeff.Bind(doeff.Bind(m, f), g))
		right := doeff.RunCont(doeff.Bind(m, func(x int) doeff.Cont[int, int] {
			return doeff.Bind(f(x), g)
		}))
		if left != right {
			t.Fatalf("associativity: %d != %d (a=%d)", left, right, a)
		}
	}
}

// --- Group 2: Expr Monad Laws ---

// TestPropertyExprLeftIdentity: ExprBind(ExprReturn(a), f) ≡ f(a)
func TestPropertyExprLeftIdentity(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 0))
	for range propertyN {
		a := randInt(rng)
		f := func(x int) doeff.Expr[int] { return doeff.ExprReturn(x * 3) }
		left := doeff.RunPure(doeff.ExprBind(doeff.ExprReturn(a), f))
		right := doeff.RunPure(f(a))
		if left != right {
			t.Fatalf("expr left identity: %d != %d (a=%d)", left, right, a)
		}
	}
}

// TestPropertyExprRightIdentity: ExprBind(m, ExprReturn) ≡ m
func TestPropertyExprRightIdentity(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 0))
	for range propertyN {
		a := randInt(rng)
		m := doeff.ExprReturn(a)
		left := doeff.RunPure(doeff.ExprBind(m, func(x int) doeff.Expr[int] {
			return doeff.ExprReturn(x)
		}))
		right := doeff.RunPure(m)
		if left != right {
			t.Fatalf("expr right identity: %d != %d (a=%d)", left, right, a)
		}
	}
}

// TestPropertyExprAssociativity: ExprBind(ExprBind(m, f), g) ≡ ExprBind(m, func(x) ExprBind(f(x), g))
func TestPropertyExprAssociativity(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 0))
	for range propertyN {
		a := randInt(rng)
		m := doeff.ExprReturn(a)
		f := func(x int) doeff.Expr[int] { return doeff.ExprReturn(x + 3) }
		g := func(x int) doeff.Expr[int] { return doeff.ExprReturn(x * 2) }
		left := doeff.RunPure(doeff.ExprBind(doeff.ExprBind(m, f), g))
		right := doeff.RunPure(doeff.ExprBind(m, func(x int) doeff.Expr[int] {
			return doeff.ExprBind(f(x), g)
		}))
		if left != right {
			t.Fatalf("expr associativity: %d != %d (a=%d)", left, right, a)
		}
	}
}

// --- Group 3: Cont Functor Laws ---

// TestPropertyContFunctorIdentity: Map(m, id) ≡ m
func TestPropertyContFunctorIdentity(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 0))
	for range propertyN {
		a := randInt(rng)
		m := doeff.Return[int](a)
		left := doeff.RunCont(doeff.Map(m, func(x int) int { return x }))
		right := doeff.RunCont(m)
		if left != right {
			t.Fatalf("cont functor identity: %d != %d (a=%d)", left, right, a)
		}
	}
}

// TestPropertyContFunctorComposition: Map(m, f∘g) ≡ Map(Map(m, g), f)
func TestPropertyContFunctorComposition(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 0))
	f := func(x int) int { return x * 2 }
	g := func(x int) int { return x + 3 }
	fg := func(x int) int { return f(g(x)) }
	for range propertyN {
		a := randInt(rng)
		m := doeff.Return[int](a)
		left := doeff.RunCont(doeff.Map(m, fg))
		right := doeff.RunCont(doeff.Map(doeff.Map(m, g), f))
		if left != right {
			t.Fatalf("cont functor composition: %d != %d (a=%d)", left, right, a)
		}
	}
}

// --- Group 4: Expr Functor Laws ---

// TestPropertyExprFunctorIdentity: ExprMap(m, id) ≡ m
func TestPropertyExprFunctorIdentity(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 0))
	for range propertyN {
		a := randInt(rng)
		m := doeff.ExprReturn(a)
		left := doeff.RunPure(doeff.ExprMap(m, func(x int) int { return x }))
		right := doeff.RunPure(m)
		if left != right {
			t.Fatalf("expr functor identity: %d != %d (a=%d)", left, right, a)
		}
	}
}

// TestPropertyExprFunctorComposition: ExprMap(m, f∘g) ≡ ExprMap(ExprMap(m, g), f)
func TestPropertyExprFunctorComposition(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 0))
	f := func(x int) int { return x * 2 }
	g := func(x int) int { return x + 3 }
	fg := func(x int) int { return f(g(x)) }
	for range propertyN {
		a := randInt(rng)
		m := doeff.ExprReturn(a)
		left := doeff.RunPure(doeff.ExprMap(m, fg))
		right := doeff.RunPure(doeff.ExprMap(doeff.ExprMap(m, g), f))
		if left != right {
			t.Fatalf("expr functor composition: %d != %d (a=%d)", left, right, a)
		}
	}
}

// --- Group 5: Bridge Round-Trip ---

// TestPropertyBridgeReflectReify: RunState(s, Reflect(Reify(cont))) ≡ RunState(s, cont)
func TestPropertyBridgeReflectReify(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 0))
	for range propertyN {
		initial := randInt(rng)
		delta := randInt(rng)
		// Bind(Get, func(s) Then(Put(s+delta), Get))
		cont := doeff.GetState[int, int](func(s int) doeff.Eff[int] {
			return doeff.PutState[int, int](s+delta, doeff.Perform(doeff.Get[int]{}))
		})
		leftVal, leftState := doeff.RunState[int, int](initial, doeff.Reflect(doeff.Reify(cont)))
		rightVal, rightState := doeff.RunState[int, int](initial, cont)
		if leftVal != rightVal || leftState != rightState {
			t.Fatalf("reflect∘reify: (%d,%d) != (%d,%d) (init=%d delta=%d)",
				leftVal, leftState, rightVal, rightState, initial, delta)
		}
	}
}

// TestPropertyBridgeReifyReflect: RunStateExpr(s, Reify(Reflect(expr))) ≡ RunStateExpr(s, expr)
func TestPropertyBridgeReifyReflect(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 0))
	for range propertyN {
		initial := randInt(rng)
		delta := randInt(rng)
		// ExprBind(ExprPerform(Get), func(s) ExprThen(ExprPerform(Put{s+delta}), ExprPerform(Get)))
		expr := doeff.ExprBind(doeff.ExprPerform(doeff.Get[int]{}), func(s int) doeff.Expr[int] {
			return doeff.ExprThen(doeff.ExprPerform(doeff.Put[int]{Value: s + delta}), doeff.ExprPerform(doeff.Get[int]{}))
		})
		leftVal, leftState := doeff.RunStateExpr[int, int](initial, doeff.Reify(doeff.Reflect(expr)))
		rightVal, rightState := doeff.RunStateExpr[int, int](initial, expr)
		if leftVal != rightVal || leftState != rightState {
			t.Fatalf("reify∘reflect: (%d,%d) != (%d,%d) (init=%d delta=%d)",
				leftVal, leftState, rightVal, rightState, initial, delta)
		}
	}
}

// --- Group 6: Handler Coherence ---

// TestPropertyHandlerCoherence: same program gives identical result via RunState vs RunStateExpr
func TestPropertyHandlerCoherence(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 0))
	for range propertyN {
		initial := randInt(rng)
		delta := randInt(rng)
		// Bind(Get, func(s) Then(Put(s+delta), Get))
		cont := doeff.GetState[int, int](func(s int) doeff.Eff[int] {
			return doeff.PutState[int, int](s+delta, doeff.Perform(doeff.Get[int]{}))
		})
		expr := doeff.Reify(cont)
		contVal, contState := doeff.RunState[int, int](initial, cont)
		exprVal, exprState := doeff.RunStateExpr[int, int](initial, expr)
		if contVal != exprVal || contState != exprState {
			t.Fatalf("handler coherence: cont(%d,%d) != expr(%d,%d) (init=%d delta=%d)",
				contVal, contState, exprVal, exprState, initial, delta)
		}
	}
}

// --- Group 7: Either Monad Laws ---

// TestPropertyEitherLeftIdentity: FlatMapEither(Right(a), f) ≡ f(a)
func TestPropertyEitherLeftIdentity(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 0))
	for range propertyN {
		a := randInt(rng)
		f := func(x int) doeff.Either[string, int] { return doeff.Right[string](x * 3) }
		left := doeff.FlatMapEither(doeff.Right[string](a), f)
		right := f(a)
		lv, _ := left.GetRight()
		rv, _ := right.GetRight()
		if lv != rv {
			t.Fatalf("either left identity: %d != %d (a=%d)", lv, rv, a)
		}
	}
}

// TestPropertyEitherRightIdentity: FlatMapEither(m, Right) ≡ m
func TestPropertyEitherRightIdentity(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 0))
	for range propertyN {
		a := randInt(rng)
		m := doeff.Right[string](a)
		left := doeff.FlatMapEither(m, func(x int) doeff.Either[string, int] {
			return doeff.Right[string](x)
		})
		lv, _ := left.GetRight()
		rv, _ := m.GetRight()
		if lv != rv {
			t.Fatalf("either right identity: %d != %d (a=%d)", lv, rv, a)
		}
	}
}

// TestPropertyEitherAssociativity: FlatMapEither(FlatMapEither(m, f), g) ≡ FlatMapEither(m, func(x) FlatMapEither(f(x), g))
func TestPropertyEitherAssociativity(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 0))
	for range propertyN {
		a := randInt(rng)
		m := doeff.Right[string](a)
		f := func(x int) doeff.Either[string, int] { return doeff.Right[string](x + 3) }
		g := func(x int) doeff.Either[string, int] { return doeff.Right[string](x * 2) }
		left := doeff.FlatMapEither(doeff.FlatMapEither(m, f), g)
		right := doeff.FlatMapEither(m, func(x int) doeff.Either[string, int] {
			return doeff.FlatMapEither(f(x), g)
		})
		lv, _ := left.GetRight()
		rv, _ := right.GetRight()
		if lv != rv {
			t.Fatalf("either associativity: %d != %d (a=%d)", lv, rv, a)
		}
	}
}

// TestPropertyEitherLeftPropagation: FlatMapEither(Left(e), f) ≡ Left(e)
func TestPropertyEitherLeftPropagation(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 0))
	for range propertyN {
		e := randString(rng)
		m := doeff.Left[string, int](e)
		result := doeff.FlatMapEither(m, func(x int) doeff.Either[string, int] {
			return doeff.Right[string](x * 2)
		})
		if result.IsRight() {
			t.Fatalf("left should propagate (e=%q)", e)
		}
		got, _ := result.GetLeft()
		if got != e {
			t.Fatalf("left propagation: %q != %q", got, e)
		}
	}
}

// --- Group 8: Either Functor Laws ---

// TestPropertyEitherFunctorIdentity: MapEither(e, id) ≡ e
func TestPropertyEitherFunctorIdentity(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 0))
	for range propertyN {
		a := randInt(rng)
		e := doeff.Right[string](a)
		result := doeff.MapEither(e, func(x int) int { return x })
		lv, _ := result.GetRight()
		rv, _ := e.GetRight()
		if lv != rv {
			t.Fatalf("either functor identity: %d != %d (a=%d)", lv, rv, a)
		}
	}
}

// TestPropertyEitherFunctorComposition: MapEither(e, f∘g) ≡ MapEither(MapEither(e, g), f)
func TestPropertyEitherFunctorComposition(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 0))
	f := func(x int) int { return x * 2 }
	g := func(x int) int { return x + 3 }
	fg := func(x int) int { return f(g(x)) }
	for range propertyN {
		a := randInt(rng)
		e := doeff.Right[string](a)
		left := doeff.MapEither(e, fg)
		right := doeff.MapEither(doeff.MapEither(e, g), f)
		lv, _ := left.GetRight()
		rv, _ := right.GetRight()
		if lv != rv {
			t.Fatalf("either functor composition: %d != %d (a=%d)", lv, rv, a)
		}
	}
}
