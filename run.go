// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package doeff

// RunCont executes a CPS-layer continuation with the identity continuation.
// The result type must match the value type (R = A).
//
// This is the low-level counterpart of [Run]: RunCont drives a raw [Cont]
// value to completion and has no notion of handlers, stores, or
// environments. Program-level code should use [Run] or [AsyncRun] instead;
// RunCont exists for the CPS primitives ([Reset], tests, and callers
// building directly on [Cont]) that predate the VM layer.
func RunCont[A any](m Cont[A, A]) A {
	return m(func(a A) A { return a })
}

// RunContWith executes a CPS-layer continuation with a custom final handler.
func RunContWith[R, A any](m Cont[R, A], k func(A) R) R {
	return m(k)
}
