// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package doeff

import (
	"context"

	"code.hybscloud.com/doeff/cache"
)

// CacheBackend is the storage contract a CacheHandler dispatches to — an
// alias for cache.Backend so callers configuring Run/AsyncRun via
// WithCache never need to import the cache subpackage themselves just for
// the interface type.
type CacheBackend = cache.Backend

// Cache effect operations (spec.md §6, SPEC_FULL.md §7.5).
type (
	CacheGet struct {
		Key string
		Ctx context.Context
	}
	CachePut struct {
		Key   string
		Value []byte
		Ctx   context.Context
	}
	CacheDelete struct {
		Key string
		Ctx context.Context
	}
	CacheExists struct {
		Key string
		Ctx context.Context
	}
)

func (CacheGet) OpResult() any    { panic("phantom") }
func (CachePut) OpResult() any    { panic("phantom") }
func (CacheDelete) OpResult() any { panic("phantom") }
func (CacheExists) OpResult() any { panic("phantom") }

func cacheCtx(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// CacheHandler exposes backend's Get/Put/Delete/Exists as ordinary VM
// effects, declining (via Delegate) anything it does not recognize so it
// composes underneath any other handler in the stack.
func CacheHandler(backend CacheBackend) VMHandler {
	return func(op Operation, k *ContHandle) Program {
		switch o := op.(type) {
		case CacheGet:
			v, ok, err := backend.Get(cacheCtx(o.Ctx), o.Key)
			if err != nil {
				return ExprThrowError[error, any](err)
			}
			return k.Resume(Pair[bool, []byte]{Fst: ok, Snd: v})

		case CachePut:
			if err := backend.Put(cacheCtx(o.Ctx), o.Key, o.Value); err != nil {
				return ExprThrowError[error, any](err)
			}
			return k.Resume(struct{}{})

		case CacheDelete:
			if err := backend.Delete(cacheCtx(o.Ctx), o.Key); err != nil {
				return ExprThrowError[error, any](err)
			}
			return k.Resume(struct{}{})

		case CacheExists:
			ok, err := backend.Exists(cacheCtx(o.Ctx), o.Key)
			if err != nil {
				return ExprThrowError[error, any](err)
			}
			return k.Resume(ok)

		default:
			return k.Delegate()
		}
	}
}

// CacheGetValue reads key, resuming with Pair[bool, []byte]{Fst: found,
// Snd: value}.
func CacheGetValue(key string) Program {
	return Expr[any]{Frame: &EffectFrame[Erased]{
		Operation: CacheGet{Key: key},
		Resume:    identityResume,
		Next:      ReturnFrame{},
	}}
}

// CachePutValue writes value under key.
func CachePutValue(key string, value []byte) Program {
	return Expr[any]{Frame: &EffectFrame[Erased]{
		Operation: CachePut{Key: key, Value: value},
		Resume:    identityResume,
		Next:      ReturnFrame{},
	}}
}

// CacheDeleteValue removes key.
func CacheDeleteValue(key string) Program {
	return Expr[any]{Frame: &EffectFrame[Erased]{
		Operation: CacheDelete{Key: key},
		Resume:    identityResume,
		Next:      ReturnFrame{},
	}}
}

// CacheExistsValue checks whether key is present.
func CacheExistsValue(key string) Program {
	return Expr[any]{Frame: &EffectFrame[Erased]{
		Operation: CacheExists{Key: key},
		Resume:    identityResume,
		Next:      ReturnFrame{},
	}}
}
