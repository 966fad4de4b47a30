// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package doeff_test

import (
	"context"
	"testing"
	"time"

	"code.hybscloud.com/doeff"
)

type fakeAwaitable struct {
	delay time.Duration
	value any
	err   error
}

func (f fakeAwaitable) Await(ctx context.Context) (doeff.Resumed, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.value, nil
}

func TestSyncBridgeHandlerResolvesUnderRun(t *testing.T) {
	program := doeff.ExprBind(doeff.Await(fakeAwaitable{value: "hello"}), func(v any) doeff.Expr[any] {
		return doeff.Expr[any]{Value: v}
	})

	res := doeff.Run(program, doeff.WithSyncBridge(4))
	if res.Result.IsLeft() {
		err, _ := res.Result.GetLeft()
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := res.Result.GetRight()
	if got != "hello" {
		t.Fatalf("got %v, want \"hello\"", got)
	}
}

func TestRunWithoutSyncBridgeFailsOnAwait(t *testing.T) {
	program := doeff.Await(fakeAwaitable{value: "hello"})
	res := doeff.Run(program)
	if !res.Result.IsLeft() {
		t.Fatal("expected Run to fail immediately on an unhandled host-async escape")
	}
}

func TestAsyncRunPumpsHostAsyncEscape(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	program := doeff.ExprBind(doeff.Await(fakeAwaitable{delay: 10 * time.Millisecond, value: 7}), func(v any) doeff.Expr[any] {
		return doeff.ExprBind(doeff.Await(fakeAwaitable{delay: 5 * time.Millisecond, value: 8}), func(w any) doeff.Expr[any] {
			return doeff.Expr[any]{Value: v.(int) + w.(int)}
		})
	})

	ch := doeff.AsyncRun(ctx, program)
	select {
	case res := <-ch:
		if res.Result.IsLeft() {
			err, _ := res.Result.GetLeft()
			t.Fatalf("unexpected error: %v", err)
		}
		got, _ := res.Result.GetRight()
		if got != 15 {
			t.Fatalf("got %v, want 15", got)
		}
	case <-ctx.Done():
		t.Fatal("AsyncRun did not deliver a result before the deadline")
	}
}

func TestAsyncRunSurfacesAwaitableError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	boom := errBoom{}
	program := doeff.Await(fakeAwaitable{err: boom})
	ch := doeff.AsyncRun(ctx, program)
	select {
	case res := <-ch:
		if !res.Result.IsLeft() {
			t.Fatal("expected the awaitable's error to surface as the program's result")
		}
	case <-ctx.Done():
		t.Fatal("AsyncRun did not deliver a result before the deadline")
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
