// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package doeff

import "sort"

// KPC — Kleisli Program Call (spec.md §4.5, SPEC_FULL.md §7.4) — is how
// one @do-style program calls another as an ordinary value rather than via
// Go-level composition: Callable is itself a Program, invoked with Args
// and Kwargs resolved at the call site before Callable's body starts. Any
// argument that is itself a Program is evaluated in turn, left to right,
// positional before named. Argument programs (and Callable itself) run
// inside the KPC handler's program, so their effects reach only the
// handlers installed outside KPCHandler, not the ones between it and the
// call site (the scheduler and any user handler, under Run/AsyncRun).
type KPC struct {
	Callable     Program
	Args         []any
	Kwargs       map[string]any
	FunctionName string
	Provenance   CreationSite
}

func (KPC) OpResult() any { panic("phantom") }

// CallProgram performs a KPC effect.
func CallProgram(callable Program, args []any, kwargs map[string]any, functionName string) Program {
	return Expr[any]{Frame: &EffectFrame[Erased]{
		Operation: KPC{
			Callable:     callable,
			Args:         args,
			Kwargs:       kwargs,
			FunctionName: functionName,
			Provenance:   captureSite(1),
		},
		Resume: identityResume,
		Next:   ReturnFrame{},
	}}
}

// kpcArgsKey and kpcKwargsKey are the reserved AskEnv() keys Callable
// reads its resolved arguments back through — KPC has no Go-level
// parameter passing of its own, since Callable is an opaque Program, so
// the call's resolved arguments ride in as an environment overlay
// installed (via Local) for exactly Callable's dynamic extent.
const (
	kpcArgsKey   = "__kpc_args"
	kpcKwargsKey = "__kpc_kwargs"
)

// KPCHandler exposes doeff's built-in Kleisli-call semantics as an
// ordinary VMHandler, installed by driver.go alongside the other
// built-ins. Once every argument is resolved, Callable runs to completion
// under a Local argument overlay inside this handler's program, and its
// result is then delivered to the call site with Transfer. The KPC
// dispatch stays on the evaluator's stack while Callable runs; Transfer
// only drops what would follow it in the handler program.
func KPCHandler() VMHandler {
	return func(op Operation, k *ContHandle) Program {
		call, ok := op.(KPC)
		if !ok {
			return k.Delegate()
		}
		return resolveKPCArgs(call.Args, func(args []any) Program {
			return resolveKPCKwargs(call.Kwargs, func(kwargs map[string]any) Program {
				body := Local(map[string]any{kpcArgsKey: args, kpcKwargsKey: kwargs}, call.Callable)
				return ExprBind(body, func(result any) Expr[any] { return k.Transfer(result) })
			})
		})
	}
}

// KPCArgs reads the positional arguments Callable was invoked with.
func KPCArgs() Program {
	return ExprBind(AskEnv(), func(env any) Expr[any] {
		args, _ := env.(map[string]any)[kpcArgsKey].([]any)
		return Expr[any]{Value: args}
	})
}

// KPCKwargs reads the keyword arguments Callable was invoked with.
func KPCKwargs() Program {
	return ExprBind(AskEnv(), func(env any) Expr[any] {
		kwargs, _ := env.(map[string]any)[kpcKwargsKey].(map[string]any)
		return Expr[any]{Value: kwargs}
	})
}

func resolveKPCArgs(args []any, cont func([]any) Program) Program {
	acc := make([]any, len(args))
	var step func(i int) Program
	step = func(i int) Program {
		if i >= len(args) {
			return cont(acc)
		}
		if p, ok := args[i].(Program); ok {
			return ExprBind(p, func(v any) Expr[any] {
				acc[i] = v
				return step(i + 1)
			})
		}
		acc[i] = args[i]
		return step(i + 1)
	}
	return step(0)
}

func resolveKPCKwargs(kwargs map[string]any, cont func(map[string]any) Program) Program {
	if len(kwargs) == 0 {
		return cont(nil)
	}
	keys := make([]string, 0, len(kwargs))
	for key := range kwargs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	acc := make(map[string]any, len(kwargs))
	var step func(i int) Program
	step = func(i int) Program {
		if i >= len(keys) {
			return cont(acc)
		}
		key := keys[i]
		if p, ok := kwargs[key].(Program); ok {
			return ExprBind(p, func(v any) Expr[any] {
				acc[key] = v
				return step(i + 1)
			})
		}
		acc[key] = kwargs[key]
		return step(i + 1)
	}
	return step(0)
}
