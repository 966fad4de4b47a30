// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package doeff_test

import (
	"testing"

	"code.hybscloud.com/doeff"
)

type vmAsk struct{}

func (vmAsk) OpResult() int { panic("phantom") }

func TestWithHandlerResume(t *testing.T) {
	h := func(op doeff.Operation, k *doeff.ContHandle) doeff.Program {
		if _, ok := op.(vmAsk); ok {
			return k.Resume(21)
		}
		return k.Delegate()
	}
	body := doeff.ExprBind(doeff.ExprPerform(vmAsk{}), func(x int) doeff.Expr[any] {
		return doeff.Expr[any]{Value: x * 2}
	})
	v, err := doeff.RunPureProgram(doeff.WithHandler(h, body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 {
		t.Fatalf("got %v, want 42", v)
	}
}

func TestTransferAbandonsHandlerTail(t *testing.T) {
	// S4: handler resumes the body, then does more work after — with
	// Transfer that tail is abandoned and WithHandler's result is the
	// resumed body's own value directly.
	h := func(op doeff.Operation, k *doeff.ContHandle) doeff.Program {
		if _, ok := op.(vmAsk); ok {
			return doeff.ExprBind(k.Transfer(42), func(v any) doeff.Expr[any] {
				return doeff.Expr[any]{Value: "after"}
			})
		}
		return k.Delegate()
	}
	body := doeff.ExprBind(doeff.ExprPerform(vmAsk{}), func(x int) doeff.Expr[any] {
		return doeff.Expr[any]{Value: x}
	})
	v, err := doeff.RunPureProgram(doeff.WithHandler(h, body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 {
		t.Fatalf("got %v, want 42 (Transfer must abandon the handler's tail)", v)
	}
}

func TestResumeRunsHandlerTail(t *testing.T) {
	h := func(op doeff.Operation, k *doeff.ContHandle) doeff.Program {
		if _, ok := op.(vmAsk); ok {
			return doeff.ExprBind(k.Resume(42), func(v any) doeff.Expr[any] {
				return doeff.Expr[any]{Value: "after"}
			})
		}
		return k.Delegate()
	}
	body := doeff.ExprBind(doeff.ExprPerform(vmAsk{}), func(x int) doeff.Expr[any] {
		return doeff.Expr[any]{Value: x}
	})
	v, err := doeff.RunPureProgram(doeff.WithHandler(h, body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "after" {
		t.Fatalf("got %v, want \"after\" (Resume must run the handler's tail)", v)
	}
}

func TestDelegateReachesOuterHandler(t *testing.T) {
	inner := func(op doeff.Operation, k *doeff.ContHandle) doeff.Program {
		return k.Delegate()
	}
	outer := func(op doeff.Operation, k *doeff.ContHandle) doeff.Program {
		if _, ok := op.(vmAsk); ok {
			return k.Resume(7)
		}
		return k.Delegate()
	}
	body := doeff.ExprPerform(vmAsk{})
	v, err := doeff.RunPureProgram(doeff.WithHandler(outer, doeff.WithHandler(inner, doeff.Expr[any]{
		Value: body.Value, Frame: body.Frame,
	})))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 7 {
		t.Fatalf("got %v, want 7", v)
	}
}

func TestUnhandledEffectSurfacesAsFailure(t *testing.T) {
	_, err := doeff.RunPureProgram(doeff.ExprPerform(vmAsk{}))
	if err == nil {
		t.Fatal("expected an UnhandledEffectError, got nil")
	}
}

func TestHandlerPanicBecomesEffectFailure(t *testing.T) {
	h := func(op doeff.Operation, k *doeff.ContHandle) doeff.Program {
		panic("boom")
	}
	_, err := doeff.RunPureProgram(doeff.WithHandler(h, doeff.ExprPerform(vmAsk{})))
	if err == nil {
		t.Fatal("expected an EffectFailureError, got nil")
	}
}
